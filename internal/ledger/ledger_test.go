package ledger

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestMarkAndContains(t *testing.T) {
	l := New()
	dir := t.TempDir()
	path := filepath.Join(dir, "video.mp4")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if l.Contains(path) {
		t.Fatal("Contains() = true before Mark")
	}
	if err := l.Mark(path); err != nil {
		t.Fatalf("Mark: %v", err)
	}
	if !l.Contains(path) {
		t.Fatal("Contains() = false after Mark")
	}
}

func TestCanonicalizationFallback(t *testing.T) {
	l := New()
	missing := "/does/not/exist/here.jpg"
	if err := l.Mark(missing); err != nil {
		t.Fatalf("Mark(missing path): %v", err)
	}
	if !l.Contains(missing) {
		t.Fatal("Contains() = false, want true for path that failed symlink resolution")
	}
}

func TestClear(t *testing.T) {
	l := New()
	_ = l.Mark("/tmp/a.jpg")
	l.Clear()
	if l.Contains("/tmp/a.jpg") {
		t.Fatal("Contains() = true after Clear")
	}
}

func TestIsDuplicateRespectsForce(t *testing.T) {
	l := New()
	path := "/tmp/dup.mp4"
	_ = l.Mark(path)

	if !l.IsDuplicate(path, false) {
		t.Error("IsDuplicate(marked, force=false) = false, want true")
	}
	if l.IsDuplicate(path, true) {
		t.Error("IsDuplicate(marked, force=true) = true, want false")
	}
	if l.IsDuplicate("/tmp/new.mp4", false) {
		t.Error("IsDuplicate(unmarked, force=false) = true, want false")
	}
}

func TestConcurrentMarkAndContains(t *testing.T) {
	l := New()
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			p := filepath.Join("/tmp", "file", string(rune('a'+n%26)))
			_ = l.Mark(p)
			l.Contains(p)
		}(i)
	}
	wg.Wait()
}

func TestOpenPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "ledger-db")

	l1, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := l1.Mark("/videos/a.mkv"); err != nil {
		t.Fatalf("Mark: %v", err)
	}
	if err := l1.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	l2, err := Open(dbPath)
	if err != nil {
		t.Fatalf("re-Open: %v", err)
	}
	defer func() { _ = l2.Close() }()
	if !l2.Contains("/videos/a.mkv") {
		t.Error("Contains() = false after reopen, want true (persisted entry)")
	}
}

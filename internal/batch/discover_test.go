package batch

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path string, size int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestDiscoverSortsBySizeAscending(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "big.mp4"), 3000)
	writeFile(t, filepath.Join(dir, "small.mp4"), 10)
	writeFile(t, filepath.Join(dir, "medium.jpg"), 500)
	writeFile(t, filepath.Join(dir, "notes.txt"), 100)

	files, err := Discover(dir)
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if len(files) != 3 {
		t.Fatalf("Discover() found %d files, want 3 (txt excluded)", len(files))
	}
	want := []string{"small.mp4", "medium.jpg", "big.mp4"}
	for i, f := range files {
		if filepath.Base(f) != want[i] {
			t.Errorf("files[%d] = %s, want %s", i, filepath.Base(f), want[i])
		}
	}
}

func TestDiscoverNestedDirectories(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a", "clip.mkv"), 100)
	writeFile(t, filepath.Join(dir, "b", "c", "still.png"), 200)

	files, err := Discover(dir)
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("Discover() found %d files, want 2", len(files))
	}
}

func TestDiscoverSingleFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clip.mp4")
	writeFile(t, path, 100)

	files, err := Discover(path)
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if len(files) != 1 || files[0] != path {
		t.Errorf("Discover(single file) = %v, want [%s]", files, path)
	}
}

func TestDiscoverUnsupportedFindsNonMediaFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "clip.mp4"), 100)
	writeFile(t, filepath.Join(dir, "readme.txt"), 10)
	writeFile(t, filepath.Join(dir, "data.json"), 10)

	files, err := DiscoverUnsupported(dir)
	if err != nil {
		t.Fatalf("DiscoverUnsupported() error = %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("DiscoverUnsupported() found %d files, want 2", len(files))
	}
}

func TestDiscoverMissingPath(t *testing.T) {
	if _, err := Discover("/nonexistent/path/xyz"); err == nil {
		t.Error("Discover(missing path) = nil, want error")
	}
}

package batch

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hadronmedia/recompress/internal/config"
	"github.com/hadronmedia/recompress/internal/reporter"
)

func TestNewDriverDefaultsToInMemoryLedger(t *testing.T) {
	cfg := config.New(t.TempDir(), t.TempDir(), t.TempDir())
	d, err := NewDriver(cfg, nil, reporter.NullReporter{})
	if err != nil {
		t.Fatalf("NewDriver() error = %v", err)
	}
	defer func() { _ = d.Close() }()

	if d.led == nil {
		t.Fatal("expected an in-memory ledger when LedgerPath is unset")
	}
}

func TestNewDriverOpensDiskLedgerWhenConfigured(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "ledger")
	cfg := config.New(t.TempDir(), t.TempDir(), t.TempDir(), config.WithLedgerPath(dbPath))
	d, err := NewDriver(cfg, nil, reporter.NullReporter{})
	if err != nil {
		t.Fatalf("NewDriver() error = %v", err)
	}
	defer func() { _ = d.Close() }()

	if err := d.led.Mark("/input/clip.mp4"); err != nil {
		t.Fatalf("Mark() error = %v", err)
	}
	if !d.led.Contains("/input/clip.mp4") {
		t.Error("expected marked path to persist to the disk-backed ledger")
	}
}

func TestCopyThroughPreservesBytesAndMode(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "note.txt")
	if err := os.WriteFile(src, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	dst := filepath.Join(dir, "out", "note.txt")
	if err := copyThrough(src, dst); err != nil {
		t.Fatalf("copyThrough() error = %v", err)
	}

	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(got) != "hello" {
		t.Errorf("copied content = %q, want %q", got, "hello")
	}
}

func TestDetectEncodersDoesNotPanicWithoutFFmpeg(t *testing.T) {
	// detectEncoders degrades to (false, false) rather than erroring when
	// ffmpeg isn't on PATH; this just exercises that path doesn't panic.
	detectEncoders(context.Background())
}

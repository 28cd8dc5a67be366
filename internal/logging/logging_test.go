package logging

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSetupNoLog(t *testing.T) {
	l, err := Setup(t.TempDir(), false, true)
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if l != nil {
		t.Error("Setup() with noLog=true should return nil logger")
	}
}

func TestSetupCreatesFile(t *testing.T) {
	dir := t.TempDir()
	l, err := Setup(dir, false, false)
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	defer l.Close()

	if l.FilePath() == "" {
		t.Fatal("FilePath() should not be empty")
	}
	if filepath.Dir(l.FilePath()) != dir {
		t.Errorf("log file dir = %v, want %v", filepath.Dir(l.FilePath()), dir)
	}
	if _, err := os.Stat(l.FilePath()); err != nil {
		t.Errorf("log file should exist: %v", err)
	}
}

func TestNilLoggerIsSafe(t *testing.T) {
	var l *Logger
	l.Info("noop %s", "info")
	l.Debug("noop %s", "debug")
	l.Warn("noop %s", "warn")
	l.Error("noop %s", "error")
	if l.FilePath() != "" {
		t.Error("FilePath() on nil logger should return empty string")
	}
	if err := l.Close(); err != nil {
		t.Errorf("Close() on nil logger should return nil, got %v", err)
	}
}

func TestWithField(t *testing.T) {
	dir := t.TempDir()
	l, err := Setup(dir, true, false)
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	defer l.Close()

	child := l.WithField("input", "clip.mkv")
	child.Info("probing")

	data, err := os.ReadFile(l.FilePath())
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if len(data) == 0 {
		t.Error("expected log output to be written")
	}
}

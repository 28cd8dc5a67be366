// Package logging provides structured file logging for the
// recompress CLI, backed by zerolog.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps a zerolog.Logger with level filtering and timestamped file output.
type Logger struct {
	verbose  bool
	zl       zerolog.Logger
	file     *os.File
	filePath string
}

// Setup creates a new logger that writes structured JSON lines to a
// timestamped log file. Returns nil if logging is disabled (noLog=true).
func Setup(logDir string, verbose, noLog bool) (*Logger, error) {
	if noLog {
		return nil, nil
	}

	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", logDir, err)
	}

	timestamp := time.Now().Format("20060102_150405")
	filename := fmt.Sprintf("recompress_run_%s.log", timestamp)
	filePath := filepath.Join(logDir, filename)

	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file %s: %w", filePath, err)
	}

	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}

	zl := zerolog.New(file).Level(level).With().Timestamp().Logger()

	l := &Logger{
		verbose:  verbose,
		zl:       zl,
		file:     file,
		filePath: filePath,
	}

	l.Info("recompress starting")
	if verbose {
		l.Info("debug level logging enabled")
	}
	l.Info("log file: %s", filePath)

	return l, nil
}

// Close closes the log file.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}

// FilePath returns the path to the log file.
func (l *Logger) FilePath() string {
	if l == nil {
		return ""
	}
	return l.filePath
}

// Info logs an info-level message.
func (l *Logger) Info(format string, args ...any) {
	if l == nil {
		return
	}
	l.zl.Info().Msg(fmt.Sprintf(format, args...))
}

// Debug logs a debug-level message (only emitted if verbose mode is enabled).
func (l *Logger) Debug(format string, args ...any) {
	if l == nil {
		return
	}
	l.zl.Debug().Msg(fmt.Sprintf(format, args...))
}

// Warn logs a warning message.
func (l *Logger) Warn(format string, args ...any) {
	if l == nil {
		return
	}
	l.zl.Warn().Msg(fmt.Sprintf(format, args...))
}

// Error logs an error message.
func (l *Logger) Error(format string, args ...any) {
	if l == nil {
		return
	}
	l.zl.Error().Msg(fmt.Sprintf(format, args...))
}

// WithField returns a child logger with the given structured field attached
// to every subsequent log line. Useful for tagging per-file log output with
// the input path under concurrent batch processing.
func (l *Logger) WithField(key, value string) *Logger {
	if l == nil {
		return nil
	}
	child := *l
	child.zl = l.zl.With().Str(key, value).Logger()
	return &child
}

// Writer returns an io.Writer that writes to the log file. Useful for
// redirecting subprocess stderr or capturing output.
func (l *Logger) Writer() io.Writer {
	if l == nil || l.file == nil {
		return io.Discard
	}
	return l.file
}

// Package logging wires log/slog to a size-rotated log file.
//
// The terminal belongs to streamed model output, so logs go to a file under
// the user state directory. Verbose mode tees them to stderr as well.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the logger
type Options struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	Verbose    bool
	Stderr     io.Writer
}

// New builds a JSON logger writing to a rotated file. The returned close
// function flushes and closes the file.
func New(opts Options) (*slog.Logger, func() error, error) {
	if opts.File == "" {
		return nil, nil, fmt.Errorf("logging: no log file configured")
	}
	if err := os.MkdirAll(filepath.Dir(opts.File), 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	rotator := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     28,
		Compress:   true,
	}

	var w io.Writer = rotator
	if opts.Verbose {
		stderr := opts.Stderr
		if stderr == nil {
			stderr = os.Stderr
		}
		w = io.MultiWriter(rotator, stderr)
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: ParseLevel(opts.Level),
	})

	return slog.New(handler), rotator.Close, nil
}

// ParseLevel maps a config string to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// OrDiscard returns l, or a discarding logger when l is nil.
func OrDiscard(l *slog.Logger) *slog.Logger {
	if l == nil {
		return Discard()
	}
	return l
}

// Package logging builds the run logger: a text or JSON slog handler on the
// console, optionally teed to a size-rotated file.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// FileName is the log file written under Options.Dir.
const FileName = "extract_union.log"

const (
	maxSizeMB  = 5
	maxBackups = 5
)

type Options struct {
	Debug  bool
	Format string // "text" or "json"
	ToFile bool
	Dir    string

	// Console defaults to os.Stdout.
	Console io.Writer
}

// New returns a logger and a closer for the file sink. The closer is a no-op
// when file logging is off.
func New(opts Options) (*slog.Logger, io.Closer, error) {
	console := opts.Console
	if console == nil {
		console = os.Stdout
	}

	var (
		w      io.Writer = console
		closer io.Closer = nopCloser{}
	)
	if opts.ToFile {
		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log dir %s: %w", opts.Dir, err)
		}
		rotator := &lumberjack.Logger{
			Filename:   filepath.Join(opts.Dir, FileName),
			MaxSize:    maxSizeMB,
			MaxBackups: maxBackups,
		}
		w = io.MultiWriter(console, rotator)
		closer = rotator
	}

	level := slog.LevelInfo
	if opts.Debug {
		level = slog.LevelDebug
	}
	hopts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	switch opts.Format {
	case "", "text":
		h = slog.NewTextHandler(w, hopts)
	case "json":
		h = slog.NewJSONHandler(w, hopts)
	default:
		closer.Close()
		return nil, nil, fmt.Errorf("unknown log format %q", opts.Format)
	}
	return slog.New(h), closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

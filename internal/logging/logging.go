// Package logging configures the process-wide structured logger.
package logging

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls log level and the optional rotated log file.
type Options struct {
	Debug      bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Setup configures and installs the default logger. With a file configured,
// records go both to stdout and to a size-rotated log file, so a long-lived
// offline session cannot fill the disk.
func Setup(opts Options) *slog.Logger {
	logger := newLogger(os.Stdout, opts)
	slog.SetDefault(logger)
	return logger
}

func newLogger(console io.Writer, opts Options) *slog.Logger {
	logLevel := slog.LevelInfo
	if opts.Debug {
		logLevel = slog.LevelDebug
	}

	out := console
	if opts.File != "" {
		out = io.MultiWriter(console, &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
		})
	}

	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{
		Level:     logLevel,
		AddSource: true,
	}))
}

package kbui

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger builds the run logger. With an empty logPath, logs go to
// stderr as human-readable text; with a non-empty logPath, logs are
// written as JSON to a lumberjack-rotated file (10MB per file, 5 backups,
// 28 days retention) so long-running watch loops don't grow an unbounded
// log on disk.
func NewLogger(logPath string, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	if logPath == "" {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	}

	var w io.Writer = &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    10,
		MaxBackups: 5,
		MaxAge:     28,
		Compress:   true,
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// Copyright 2026 The Toolgate Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"log/slog"
	"os"

	"golang.org/x/term"
)

// NewCommandLogger creates a structured logger for command
// operations. When stderr is a terminal it uses slog.TextHandler for
// human-readable output; when stderr is piped or redirected (CI,
// scripts, agent hook harnesses) it uses slog.JSONHandler so the
// output stays machine-parseable.
//
// Callers scope the logger with command-specific context via With():
//
//	logger := cli.NewCommandLogger("info").With("command", "key/generate")
func NewCommandLogger(level string) *slog.Logger {
	options := &slog.HandlerOptions{Level: parseLevel(level)}

	var handler slog.Handler
	if term.IsTerminal(int(os.Stderr.Fd())) {
		handler = slog.NewTextHandler(os.Stderr, options)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, options)
	}
	return slog.New(handler)
}

// parseLevel maps a config logging level to a slog.Level. Unknown
// values fall back to info rather than erroring: logging must never
// be the reason the gate fails open or refuses to run.
func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SPDX-FileCopyrightText: 2026 The distrod authors
//
// SPDX-License-Identifier: MIT

// Package logging configures the process wide logger for the distrod
// binaries.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Configure installs a default [slog.Logger] writing text records to
// writer. The level name is parsed with [ParseLevel].
func Configure(writer io.Writer, level string) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(
		writer,
		&slog.HandlerOptions{
			Level: lvl,
		},
	)))

	return nil
}

// CurrentLevel reports the name of the lowest level the default
// logger records. It restores the level when the name is handed to a
// child process which calls [Configure] itself.
func CurrentLevel() string {
	ctx := context.Background()

	switch {
	case slog.Default().Enabled(ctx, slog.LevelDebug):
		return "debug"
	case slog.Default().Enabled(ctx, slog.LevelInfo):
		return "info"
	case slog.Default().Enabled(ctx, slog.LevelWarn):
		return "warn"
	default:
		return "error"
	}
}

// ParseLevel translates a level name into a [slog.Level]. The empty
// string selects the info level. The trace name is accepted for
// compatibility and maps to debug.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "", "info":
		return slog.LevelInfo, nil
	case "trace", "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnknownLevel, name)
	}
}

// SPDX-FileCopyrightText: 2026 The distrod authors
//
// SPDX-License-Identifier: MIT

package logging_test

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nullpo-head/wsl-distrod/internal/logging"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expected    slog.Level
		expectedErr error
	}{
		{
			name:     "empty selects info",
			expected: slog.LevelInfo,
		},
		{
			name:     "info",
			input:    "info",
			expected: slog.LevelInfo,
		},
		{
			name:     "debug",
			input:    "debug",
			expected: slog.LevelDebug,
		},
		{
			name:     "trace maps to debug",
			input:    "trace",
			expected: slog.LevelDebug,
		},
		{
			name:     "warn",
			input:    "warn",
			expected: slog.LevelWarn,
		},
		{
			name:     "warning",
			input:    "warning",
			expected: slog.LevelWarn,
		},
		{
			name:     "error",
			input:    "error",
			expected: slog.LevelError,
		},
		{
			name:     "mixed case",
			input:    "DeBuG",
			expected: slog.LevelDebug,
		},
		{
			name:        "unknown",
			input:       "verbose",
			expectedErr: logging.ErrUnknownLevel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actual, err := logging.ParseLevel(tt.input)
			require.ErrorIs(t, err, tt.expectedErr)

			if tt.expectedErr != nil {
				return
			}

			assert.Equal(t, tt.expected, actual)
		})
	}
}

func TestConfigure(t *testing.T) {
	defaultLogger := slog.Default()
	t.Cleanup(func() { slog.SetDefault(defaultLogger) })

	var buf bytes.Buffer

	err := logging.Configure(&buf, "debug")
	require.NoError(t, err)

	slog.Debug("configured", slog.String("sink", "buffer"))

	output := buf.String()
	assert.Contains(t, output, "level=DEBUG")
	assert.Contains(t, output, "msg=configured")
	assert.Contains(t, output, "sink=buffer")
}

func TestConfigureUnknownLevel(t *testing.T) {
	var buf bytes.Buffer

	err := logging.Configure(&buf, "loud")
	require.ErrorIs(t, err, logging.ErrUnknownLevel)
	assert.Empty(t, buf.String())
}

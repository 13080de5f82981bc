// SPDX-FileCopyrightText: 2026 The distrod authors
//
// SPDX-License-Identifier: MIT

package proc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStat(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expected    *Stat
		expectedErr error
	}{
		{
			name: "init process",
			input: "1 (systemd) S 0 1 1 0 -1 4194560 48574 197103 173 1112 " +
				"313 124 504 254 20 0 1 0 27 175811584 2129 " +
				"18446744073709551615 1 1 0 0 0 0 671173123 4096 1260 0 0 0 " +
				"17 4 0 0 0 0 0 0 0 0 0 0 0 0 0",
			expected: &Stat{
				Comm:      "systemd",
				State:     'S',
				PPID:      0,
				Starttime: 27,
			},
		},
		{
			name: "comm with spaces and parentheses",
			input: "4242 (tmux: server (1)) R 1 4242 4242 0 -1 4194560 0 0 " +
				"0 0 0 0 0 0 20 0 1 0 98765 0 0 0 0 0 0 0 0 0 0 0 0 0 17 0 " +
				"0 0 0 0 0 0 0 0 0 0 0 0 0",
			expected: &Stat{
				Comm:      "tmux: server (1)",
				State:     'R',
				PPID:      1,
				Starttime: 98765,
			},
		},
		{
			name: "zombie state",
			input: "7 (defunct) Z 1 7 7 0 -1 4194560 0 0 0 0 0 0 0 0 20 0 " +
				"1 0 333 0 0 0 0 0 0 0 0 0 0 0 0 0 17 0 0 0 0 0 0 0 0 0 0 " +
				"0 0 0 0",
			expected: &Stat{
				Comm:      "defunct",
				State:     'Z',
				PPID:      1,
				Starttime: 333,
			},
		},
		{
			name:        "missing parentheses",
			input:       "1 systemd S 0 1",
			expectedErr: ErrMalformedStat,
		},
		{
			name:        "too few fields",
			input:       "1 (systemd) S 0 1 1 0 -1",
			expectedErr: ErrMalformedStat,
		},
		{
			name: "non numeric starttime",
			input: "1 (systemd) S 0 1 1 0 -1 4194560 0 0 0 0 0 0 0 0 20 0 " +
				"1 0 nope 0",
			expectedErr: ErrMalformedStat,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actual, err := parseStat(tt.input)
			require.ErrorIs(t, err, tt.expectedErr)

			if tt.expectedErr != nil {
				return
			}

			assert.Equal(t, tt.expected, actual)
		})
	}
}

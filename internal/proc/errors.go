// SPDX-FileCopyrightText: 2026 The distrod authors
//
// SPDX-License-Identifier: MIT

package proc

import "errors"

var (
	// ErrMalformedStat is returned if a process stat file does not
	// have the expected shape.
	ErrMalformedStat = errors.New("malformed stat file")
)

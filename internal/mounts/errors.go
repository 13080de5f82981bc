// SPDX-FileCopyrightText: 2026 The distrod authors
//
// SPDX-License-Identifier: MIT

package mounts

import "errors"

var (
	// ErrMalformedEntry is returned if a mount table row has fewer
	// fields than the format requires.
	ErrMalformedEntry = errors.New("malformed mount entry")
)

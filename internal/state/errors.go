// SPDX-FileCopyrightText: 2026 The distrod authors
//
// SPDX-License-Identifier: MIT

package state

import "errors"

var (
	// ErrConflict is returned when saving would overwrite the record
	// of a different, still live container.
	ErrConflict = errors.New("another container instance is recorded")

	// ErrUntrustedRecord is returned when the record file is not owned
	// by root or the current user.
	ErrUntrustedRecord = errors.New("instance record has untrusted ownership")
)

// SPDX-FileCopyrightText: 2026 The distrod authors
//
// SPDX-License-Identifier: MIT

package passwd

import "errors"

var (
	// ErrMalformedEntry is returned for passwd lines which do not
	// follow the passwd(5) format.
	ErrMalformedEntry = errors.New("malformed passwd entry")

	// ErrNoSuchUser is returned when the passwd database has no entry
	// for the requested user.
	ErrNoSuchUser = errors.New("no such user")
)

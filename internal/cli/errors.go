// SPDX-FileCopyrightText: 2026 The distrod authors
//
// SPDX-License-Identifier: MIT

package cli

import "errors"

var (
	// ErrRootRequired is returned when a command which manages the
	// container is invoked without root privileges.
	ErrRootRequired = errors.New("distrod needs the root permission")
)

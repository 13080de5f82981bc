// SPDX-FileCopyrightText: 2026 The distrod authors
//
// SPDX-License-Identifier: MIT

package config

import "errors"

var (
	// ErrNotOwnedByRoot is returned if the configuration file is not
	// owned by root. Distrod acts on its content with root privileges,
	// so it refuses files other users could have written.
	ErrNotOwnedByRoot = errors.New("config file is not owned by root")
)

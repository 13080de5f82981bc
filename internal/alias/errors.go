// SPDX-FileCopyrightText: 2026 The distrod authors
//
// SPDX-License-Identifier: MIT

package alias

import "errors"

var (
	// ErrNotAlias is returned when a path expected to name an alias
	// link lies outside the alias directory.
	ErrNotAlias = errors.New("path is not under the alias directory")

	// ErrSourceNotAbsolute is returned when an alias is requested for
	// a relative command path.
	ErrSourceNotAbsolute = errors.New("alias source path is not absolute")
)

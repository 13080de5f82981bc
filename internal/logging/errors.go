// SPDX-FileCopyrightText: 2026 The distrod authors
//
// SPDX-License-Identifier: MIT

package logging

import "errors"

var (
	// ErrUnknownLevel is returned if a log level name is not recognized.
	ErrUnknownLevel = errors.New("unknown log level")
)

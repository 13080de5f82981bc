// SPDX-FileCopyrightText: 2026 The distrod authors
//
// SPDX-License-Identifier: MIT

package envfile

import "errors"

var (
	// ErrUnsafeValue is returned if a value would break the single
	// line statement format of the environment file.
	ErrUnsafeValue = errors.New("value must not contain newlines or backslashes")
)

// SPDX-FileCopyrightText: 2026 The distrod authors
//
// SPDX-License-Identifier: MIT

package rootfs

import "errors"

// ErrUnsafePath is returned when an archive entry would escape the
// directory it is unpacked into.
var ErrUnsafePath = errors.New("archive entry escapes the destination")

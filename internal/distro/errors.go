// SPDX-FileCopyrightText: 2026 The distrod authors
//
// SPDX-License-Identifier: MIT

package distro

import "errors"

// ErrNoInit is returned when a rootfs has no systemd init to boot.
var ErrNoInit = errors.New("rootfs has no init")

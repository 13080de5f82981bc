// SPDX-FileCopyrightText: 2026 The distrod authors
//
// SPDX-License-Identifier: MIT

package autostart

import "errors"

// ErrNoSystemDrive is returned when the Windows system drive is not
// mounted, which means the WSL interop facilities are unreachable.
var ErrNoSystemDrive = errors.New("no Windows system drive mount found")

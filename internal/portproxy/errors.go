// SPDX-FileCopyrightText: 2026 The distrod authors
//
// SPDX-License-Identifier: MIT

package portproxy

import "errors"

var (
	// ErrBadPort is returned when the ports file contains a token
	// which is not a TCP port.
	ErrBadPort = errors.New("invalid TCP port")

	// ErrNoAddress is returned when a network interface carries no
	// IPv4 address.
	ErrNoAddress = errors.New("interface has no IPv4 address")
)

// SPDX-FileCopyrightText: 2026 The distrod authors
//
// SPDX-License-Identifier: MIT

package portproxy

import (
	"fmt"
	"net"

	"github.com/vishvananda/netlink"
)

// InterfaceIPv4 returns the first IPv4 address of the named network
// interface. On WSL that of eth0 is the address Windows and the LAN
// reach the distribution under.
func InterfaceIPv4(name string) (net.IP, error) {
	link, err := netlink.LinkByName(name)
	if err != nil {
		return nil, fmt.Errorf("find interface %s: %w", name, err)
	}

	addrs, err := netlink.AddrList(link, netlink.FAMILY_V4)
	if err != nil {
		return nil, fmt.Errorf("list addresses of %s: %w", name, err)
	}

	if len(addrs) == 0 {
		return nil, fmt.Errorf("%s: %w", name, ErrNoAddress)
	}

	return addrs[0].IP, nil
}

// SPDX-FileCopyrightText: 2026 The distrod authors
//
// SPDX-License-Identifier: MIT

// Package portproxy forwards TCP connections from the WSL virtual
// interface to services which only listen on localhost inside the
// container, so they are reachable from Windows and the LAN.
package portproxy

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
)

// PortsFileSentinel keeps the ports file non-empty when no ports are
// forwarded. The parser skips it.
const PortsFileSentinel = "0\n"

// ParsePorts parses the ports file format: decimal TCP ports
// separated by whitespace. Zero entries are skipped.
func ParsePorts(content string) ([]int, error) {
	var ports []int

	for _, token := range strings.Fields(content) {
		port, err := strconv.Atoi(token)
		if err != nil || port < 0 || port > 65535 {
			return nil, fmt.Errorf("%w: %q", ErrBadPort, token)
		}

		if port == 0 {
			continue
		}

		ports = append(ports, port)
	}

	return ports, nil
}

// LoadPortsFile reads and parses the ports file at path.
func LoadPortsFile(path string) ([]int, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ports file: %w", err)
	}

	ports, err := ParsePorts(string(content))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return ports, nil
}

// EnsurePortsFile seeds the ports file with the sentinel entry when
// it does not exist yet. An existing file is kept as the user wrote
// it.
func EnsurePortsFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("probe ports file: %w", err)
	}

	if err := os.WriteFile(path, []byte(PortsFileSentinel), 0o644); err != nil {
		return fmt.Errorf("seed ports file: %w", err)
	}

	return nil
}

// SPDX-FileCopyrightText: 2026 The distrod authors
//
// SPDX-License-Identifier: MIT

package portproxy

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/nullpo-head/wsl-distrod/internal/config"
)

// ServiceName is the systemd unit running the proxy inside the
// container.
const ServiceName = "portproxy.service"

const serviceUnit = `[Unit]
Description=Distrod port proxy
After=network.target

[Service]
Type=exec
ExecStart=` + config.BinDir + `/portproxy proxy --dest-addr 127.0.0.1 --ports-file ` + config.PortsFilePath + `
Restart=on-failure
RestartSec=5

[Install]
WantedBy=multi-user.target
`

// InstallService writes the proxy unit into the rootfs and enables
// it for multi-user.target, the way systemctl enable would.
func InstallService(rootfsPath string) error {
	unitPath := filepath.Join(rootfsPath, "etc/systemd/system", ServiceName)

	if err := os.MkdirAll(filepath.Dir(unitPath), 0o755); err != nil {
		return fmt.Errorf("install %s: %w", ServiceName, err)
	}

	if err := os.WriteFile(unitPath, []byte(serviceUnit), 0o644); err != nil {
		return fmt.Errorf("install %s: %w", ServiceName, err)
	}

	wantsLink := wantsLinkPath(rootfsPath)

	if err := os.MkdirAll(filepath.Dir(wantsLink), 0o755); err != nil {
		return fmt.Errorf("enable %s: %w", ServiceName, err)
	}

	err := os.Symlink("/etc/systemd/system/"+ServiceName, wantsLink)
	if err != nil && !errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("enable %s: %w", ServiceName, err)
	}

	return nil
}

// RemoveService deletes the proxy unit and its enablement link from
// the rootfs. Absent files are fine; the service may never have been
// installed.
func RemoveService(rootfsPath string) error {
	paths := []string{
		wantsLinkPath(rootfsPath),
		filepath.Join(rootfsPath, "etc/systemd/system", ServiceName),
	}

	for _, path := range paths {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", ServiceName, err)
		}
	}

	return nil
}

func wantsLinkPath(rootfsPath string) string {
	return filepath.Join(
		rootfsPath, "etc/systemd/system/multi-user.target.wants", ServiceName)
}

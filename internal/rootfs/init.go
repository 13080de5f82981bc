// SPDX-FileCopyrightText: 2026 The distrod authors
//
// SPDX-License-Identifier: MIT

// Package rootfs prepares distribution root filesystems for running
// as distrod containers. It unpacks distribution images and rewrites
// the pieces of a stock rootfs that misbehave inside WSL, such as
// network management units and per-distribution PAM quirks.
package rootfs

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/nullpo-head/wsl-distrod/internal/config"
	"github.com/nullpo-head/wsl-distrod/internal/envfile"
	"github.com/nullpo-head/wsl-distrod/internal/interop"
	"github.com/nullpo-head/wsl-distrod/internal/unit"
)

// Initialize patches a rootfs so systemd can boot it inside WSL.
// With overwriteUserFiles it also replaces files the owner of an
// already-used rootfs may have customized, such as /etc/resolv.conf.
// It is idempotent and safe to run on every registration.
func Initialize(rootfsPath string, rules config.UnitRules, overwriteUserFiles bool) error {
	if err := fixHostname(rootfsPath); err != nil {
		return err
	}

	if err := disableNetworkConfigs(rootfsPath, overwriteUserFiles); err != nil {
		return err
	}

	neutralizeUnits(rootfsPath, rules)

	if err := interop.InstallLoader(rootfsPath); err != nil {
		return err
	}

	return patchForDistribution(rootfsPath, overwriteUserFiles)
}

// fixHostname writes the current WSL hostname into the rootfs.
// systemd would otherwise set the hostname baked into the image,
// which breaks sudo and name resolution on the host side.
func fixHostname(rootfsPath string) error {
	hostname, err := os.Hostname()
	if err != nil {
		return fmt.Errorf("get hostname: %w", err)
	}

	path := filepath.Join(rootfsPath, "etc/hostname")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create etc directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(hostname+"\n"), 0o644); err != nil {
		return fmt.Errorf("write hostname: %w", err)
	}

	return nil
}

// disableNetworkConfigs removes network manager configuration so the
// distribution does not fight WSL over the virtual interface.
func disableNetworkConfigs(rootfsPath string, overwriteUserFiles bool) error {
	patterns := []string{
		"etc/systemd/network/*.network",
		"etc/netplan/*.yaml",
	}
	for _, pattern := range patterns {
		paths, err := filepath.Glob(filepath.Join(rootfsPath, pattern))
		if err != nil {
			return fmt.Errorf("match network configs: %w", err)
		}

		for _, path := range paths {
			if err := os.Remove(path); err != nil {
				return fmt.Errorf("remove network config: %w", err)
			}
		}
	}

	ifcfg := filepath.Join(rootfsPath, "etc/sysconfig/network-scripts/ifcfg-eth0")
	if _, err := os.Stat(ifcfg); err == nil {
		disabled := filepath.Join(filepath.Dir(ifcfg), "disabled-by-distrod.ifcfg-eth0")
		if err := os.Rename(ifcfg, disabled); err != nil {
			return fmt.Errorf("disable ifcfg-eth0: %w", err)
		}
	}

	if !overwriteUserFiles {
		return nil
	}

	// Leave an empty file so systemd-resolved does not take the path
	// over; WSL bind-mounts its own resolv.conf on top at boot.
	resolv := filepath.Join(rootfsPath, "etc/resolv.conf")
	if err := os.Remove(resolv); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove resolv.conf: %w", err)
	}

	if err := os.WriteFile(resolv, nil, 0o644); err != nil {
		return fmt.Errorf("reset resolv.conf: %w", err)
	}

	return nil
}

// neutralizeUnits applies the configured unit rules and strips the
// sysusers credential that WSL cannot supply. Failures are logged
// rather than returned; a partially patched rootfs still boots,
// just with more noise from systemd.
func neutralizeUnits(rootfsPath string, rules config.UnitRules) {
	patcher, err := unit.NewPatcher(rootfsPath)
	if err != nil {
		slog.Warn("cannot patch systemd units", "error", err)

		return
	}

	if err := patcher.Apply(rules); err != nil {
		slog.Warn("some units were not patched", "error", err)
	}

	err = patcher.UnsetDirective("systemd-sysusers.service", "Service", "LoadCredential")
	if err != nil {
		slog.Warn("cannot patch systemd-sysusers.service", "error", err)
	}
}

// patchForDistribution applies fixes that only specific distributions
// need.
func patchForDistribution(rootfsPath string, overwriteUserFiles bool) error {
	id, err := osID(rootfsPath)
	if err != nil {
		return err
	}

	switch id {
	case "debian", "kali":
		// Debian flavored sudo PAM configs skip pam_env, so sudo
		// sessions would not see /etc/environment.
		if overwriteUserFiles {
			return enableSudoPamEnv(rootfsPath)
		}
	}

	return nil
}

// osID reads the distribution ID from os-release. An absent file
// yields an empty ID, not an error; minimal images may lack it.
func osID(rootfsPath string) (string, error) {
	file, err := envfile.Open(filepath.Join(rootfsPath, "etc/os-release"))
	if err != nil {
		return "", fmt.Errorf("read os-release: %w", err)
	}

	id, _ := file.Get("ID")

	return strings.Trim(id, `"`), nil
}

const (
	sudoPamEnvComment = "# The following line of pam_env.so is inserted by Distrod"
	sudoPamEnvRule    = "session    required   pam_env.so readenv=1 user_readenv=0"
)

// enableSudoPamEnv inserts a pam_env rule into the sudo PAM config
// right after its header so sudo sessions load /etc/environment.
func enableSudoPamEnv(rootfsPath string) error {
	path := filepath.Join(rootfsPath, "etc/pam.d/sudo")

	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read sudo PAM config: %w", err)
	}

	if strings.Contains(string(content), "pam_env.so") {
		return nil
	}

	lines := strings.Split(string(content), "\n")
	at := min(2, len(lines))
	lines = slices.Insert(lines, at, sudoPamEnvComment, sudoPamEnvRule)

	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0o644); err != nil {
		return fmt.Errorf("update sudo PAM config: %w", err)
	}

	return nil
}

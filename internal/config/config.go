// SPDX-FileCopyrightText: 2026 The distrod authors
//
// SPDX-License-Identifier: MIT

// Package config loads and persists the global distrod configuration.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"syscall"

	"gopkg.in/yaml.v3"
)

// Locations of the distrod installation tree.
const (
	// RootDir is the directory all distrod files live under.
	RootDir = "/opt/distrod"

	// AliasDir holds the alias links for the command bridge.
	AliasDir = RootDir + "/alias"

	// BinDir holds the distrod binaries.
	BinDir = RootDir + "/bin"

	// BinPath is the distrod binary.
	BinPath = BinDir + "/distrod"

	// ExecBinPath is the setuid helper binary.
	ExecBinPath = BinDir + "/distrod-exec"

	// RunOverlayDir holds static files bind mounted into /run of the
	// container.
	RunOverlayDir = RootDir + "/run"

	// ConfDir holds files modified by users. They must stay backward
	// compatible across updates.
	ConfDir = RootDir + "/conf"

	// FilePath is the global configuration file.
	FilePath = ConfDir + "/distrod.yaml"

	// PortsFilePath lists the TCP ports the port proxy forwards.
	PortsFilePath = ConfDir + "/tcp4_ports"
)

// Locations of the per boot runtime files. They live on /run and
// vanish on shutdown.
const (
	// RuntimeDir holds files distrod shares with container sessions.
	RuntimeDir = "/run/distrod"

	// RunInfoPath is the record of the running container instance.
	RunInfoPath = RuntimeDir + "/distrod_run_info.json"
)

// Config is the global configuration of the distrod tools.
type Config struct {
	DefaultDistroImage string    `yaml:"default_distro_image"`
	DistroImagesDir    string    `yaml:"distro_images_dir"`
	LogLevel           string    `yaml:"log_level"`
	KmsgLogLevel       string    `yaml:"kmsg_log_level"`
	Units              UnitRules `yaml:"units"`
}

// UnitRules lists systemd units that are known to break the container
// boot and are neutralized before the init process starts.
type UnitRules struct {
	Disable []string `yaml:"disable"`
	Mask    []string `yaml:"mask"`
}

// Default returns the built in configuration.
func Default() *Config {
	return &Config{
		DistroImagesDir: RootDir + "/distros",
		Units: UnitRules{
			Disable: []string{
				"dhcpcd.service",
				"NetworkManager.service",
				"multipathd.service",
			},
			Mask: []string{
				"systemd-remount-fs.service",
				"systemd-modules-load.service",
				"getty@tty1.service",
				"serial-getty@ttyS0.service",
				"console-getty.service",
			},
		},
	}
}

// Load reads the configuration file. Values absent from the file keep
// their defaults, and a missing file yields the defaults entirely. The
// file must be owned by root since its content is acted on with root
// privileges.
func Load() (*Config, error) {
	file, err := os.Open(FilePath)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}

	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat config: %w", err)
	}

	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok || stat.Uid != 0 || stat.Gid != 0 {
		return nil, fmt.Errorf("%s: %w", FilePath, ErrNotOwnedByRoot)
	}

	cfg, err := decode(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", FilePath, err)
	}

	return cfg, nil
}

// Save writes cfg to the configuration file.
func Save(cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	if err := os.WriteFile(FilePath, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

func decode(reader io.Reader) (*Config, error) {
	cfg := Default()

	decoder := yaml.NewDecoder(reader)

	err := decoder.Decode(cfg)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	return cfg, nil
}

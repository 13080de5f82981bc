// SPDX-FileCopyrightText: 2026 The distrod authors
//
// SPDX-License-Identifier: MIT

package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nullpo-head/wsl-distrod/internal/config"
	"github.com/nullpo-head/wsl-distrod/internal/rootfs"
	"github.com/nullpo-head/wsl-distrod/internal/state"
)

func createCmd() *cobra.Command {
	var (
		imagePath string
		name      string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Install a new distribution from a rootfs archive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := guardManage(state.NewStore()); err != nil {
				return err
			}

			return runCreate(imagePath, name)
		},
	}

	cmd.Flags().StringVarP(
		&imagePath, "distro-image", "i", "",
		"tar archive of the rootfs, optionally gzip, xz, zstd or lz4 compressed",
	)
	cmd.Flags().StringVarP(
		&name, "name", "n", "distrod",
		"name of the new distribution",
	)
	_ = cmd.MarkFlagRequired("distro-image")

	return cmd
}

func runCreate(imagePath, name string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	image, err := os.Open(imagePath)
	if err != nil {
		return fmt.Errorf("open distro image: %w", err)
	}
	defer image.Close()

	rootfsPath := filepath.Join(cfg.DistroImagesDir, name)

	slog.Info("unpacking the distro image",
		"image", imagePath, "rootfs", rootfsPath)

	if err := rootfs.Unpack(image, rootfsPath); err != nil {
		return err
	}

	if err := rootfs.Initialize(rootfsPath, cfg.Units, true); err != nil {
		return err
	}

	cfg.DefaultDistroImage = rootfsPath
	if err := saveConfig(cfg); err != nil {
		return err
	}

	slog.Info("the distribution is installed and set as the default",
		"rootfs", rootfsPath)

	return nil
}

// saveConfig persists cfg, creating the configuration directory on
// the first run.
func saveConfig(cfg *config.Config) error {
	if err := os.MkdirAll(config.ConfDir, 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	return config.Save(cfg)
}

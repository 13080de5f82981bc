// SPDX-FileCopyrightText: 2026 The distrod authors
//
// SPDX-License-Identifier: MIT

package unit_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nullpo-head/wsl-distrod/internal/config"
	"github.com/nullpo-head/wsl-distrod/internal/unit"
)

const unitDir = "etc/systemd/system"

func writeUnit(t *testing.T, rootfs, relPath, content string) {
	t.Helper()

	path := filepath.Join(rootfs, unitDir, relPath)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func linkUnit(t *testing.T, rootfs, relPath, target string) {
	t.Helper()

	path := filepath.Join(rootfs, unitDir, relPath)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.Symlink(target, path))
}

func unitExists(t *testing.T, rootfs, relPath string) bool {
	t.Helper()

	_, err := os.Lstat(filepath.Join(rootfs, unitDir, relPath))

	return err == nil
}

func setupRootfs(t *testing.T) string {
	t.Helper()

	rootfs := t.TempDir()

	writeUnit(t, rootfs, "simple.service",
		"[Unit]\nDescription=Simple\n\n[Install]\nWantedBy=multi-user.target\n")
	linkUnit(t, rootfs, "multi-user.target.wants/simple.service", "../simple.service")

	writeUnit(t, rootfs, "aliasing.service",
		"[Install]\nAlias=aliased.service\n")
	linkUnit(t, rootfs, "multi-user.target.wants/aliased.service", "../aliasing.service")

	writeUnit(t, rootfs, "also.service",
		"[Install]\nAlso=sibling1.service sibling2.service\n")
	writeUnit(t, rootfs, "sibling1.service", "[Unit]\nDescription=Sibling\n")
	writeUnit(t, rootfs, "sibling2.service", "[Unit]\nDescription=Sibling\n")
	linkUnit(t, rootfs, "multi-user.target.wants/sibling1.service", "../sibling1.service")

	writeUnit(t, rootfs, "unrelated.service", "[Unit]\nDescription=Unrelated\n")

	return rootfs
}

func TestPatcherDisable(t *testing.T) {
	rootfs := setupRootfs(t)

	patcher, err := unit.NewPatcher(rootfs)
	require.NoError(t, err)

	require.NoError(t, patcher.Disable("simple.service"))

	assert.False(t, unitExists(t, rootfs, "simple.service"))
	assert.False(t, unitExists(t, rootfs, "multi-user.target.wants/simple.service"))
	assert.True(t, unitExists(t, rootfs, "simple.service.distrod-disabled"))
	assert.True(t, unitExists(t, rootfs, "unrelated.service"))
	assert.True(t, patcher.IsDisabled("simple.service"))
}

func TestPatcherDisableAlias(t *testing.T) {
	rootfs := setupRootfs(t)

	patcher, err := unit.NewPatcher(rootfs)
	require.NoError(t, err)

	require.NoError(t, patcher.Disable("aliasing.service"))

	assert.False(t, unitExists(t, rootfs, "aliasing.service"))
	assert.False(t, unitExists(t, rootfs, "multi-user.target.wants/aliased.service"))
}

func TestPatcherDisableAlso(t *testing.T) {
	rootfs := setupRootfs(t)

	patcher, err := unit.NewPatcher(rootfs)
	require.NoError(t, err)

	require.NoError(t, patcher.Disable("also.service"))

	assert.False(t, unitExists(t, rootfs, "also.service"))
	assert.False(t, unitExists(t, rootfs, "sibling1.service"))
	assert.False(t, unitExists(t, rootfs, "sibling2.service"))
	assert.False(t, unitExists(t, rootfs, "multi-user.target.wants/sibling1.service"))
	assert.True(t, unitExists(t, rootfs, "unrelated.service"))
}

func TestPatcherDisableMissingUnit(t *testing.T) {
	rootfs := setupRootfs(t)

	patcher, err := unit.NewPatcher(rootfs)
	require.NoError(t, err)

	require.NoError(t, patcher.Disable("nonexistent.service"))
	assert.False(t, patcher.IsDisabled("nonexistent.service"))
}

func TestPatcherMask(t *testing.T) {
	rootfs := setupRootfs(t)

	patcher, err := unit.NewPatcher(rootfs)
	require.NoError(t, err)

	require.NoError(t, patcher.Mask("simple.service"))
	require.NoError(t, patcher.Mask("nonexistent.service"))

	for _, name := range []string{"simple.service", "nonexistent.service"} {
		target, err := os.Readlink(filepath.Join(rootfs, unitDir, name))
		require.NoError(t, err)
		assert.Equal(t, "/dev/null", target)
		assert.True(t, patcher.IsDisabled(name))
	}

	assert.True(t, unitExists(t, rootfs, "simple.service.distrod-disabled"))
}

func TestPatcherMaskIsIdempotent(t *testing.T) {
	rootfs := setupRootfs(t)

	patcher, err := unit.NewPatcher(rootfs)
	require.NoError(t, err)

	require.NoError(t, patcher.Mask("simple.service"))
	require.NoError(t, patcher.Mask("simple.service"))

	target, err := os.Readlink(filepath.Join(rootfs, unitDir, "simple.service"))
	require.NoError(t, err)
	assert.Equal(t, "/dev/null", target)
}

func TestPatcherCyclicSymlink(t *testing.T) {
	rootfs := setupRootfs(t)
	linkUnit(t, rootfs, "self.service", "self.service")

	patcher, err := unit.NewPatcher(rootfs)
	require.NoError(t, err)

	require.ErrorIs(t, patcher.Mask("self.service"), unit.ErrCyclicSymlink)
	require.ErrorIs(t, patcher.Disable("self.service"), unit.ErrCyclicSymlink)
}

func TestPatcherSymlinkChain(t *testing.T) {
	rootfs := setupRootfs(t)

	// A three hop chain with an absolute target, which must stay
	// inside the rootfs.
	require.NoError(t, os.MkdirAll(filepath.Join(rootfs, "lib/systemd/system"), 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(rootfs, "lib/systemd/system/real.service"),
		[]byte("[Install]\nAlias=chained-alias.service\n"),
		0o644,
	))
	linkUnit(t, rootfs, "chain.service", "chain2.service")
	linkUnit(t, rootfs, "chain2.service", "/lib/systemd/system/real.service")
	linkUnit(t, rootfs, "multi-user.target.wants/chained-alias.service", "../chain.service")

	patcher, err := unit.NewPatcher(rootfs)
	require.NoError(t, err)

	require.NoError(t, patcher.Disable("chain.service"))

	assert.False(t, unitExists(t, rootfs, "chain.service"))
	assert.False(t, unitExists(t, rootfs, "multi-user.target.wants/chained-alias.service"))
}

func TestPatcherApply(t *testing.T) {
	rootfs := setupRootfs(t)
	linkUnit(t, rootfs, "self.service", "self.service")

	patcher, err := unit.NewPatcher(rootfs)
	require.NoError(t, err)

	err = patcher.Apply(config.UnitRules{
		Disable: []string{"simple.service", "nonexistent.service", "self.service"},
		Mask:    []string{"unrelated.service"},
	})

	// The cyclic unit fails, all others are still patched.
	require.ErrorIs(t, err, unit.ErrCyclicSymlink)

	var patchErrs *unit.PatchErrors
	require.ErrorAs(t, err, &patchErrs)
	require.Len(t, patchErrs.Errs, 1)
	assert.Equal(t, "self.service", patchErrs.Errs[0].Unit)

	assert.True(t, patcher.IsDisabled("simple.service"))
	assert.True(t, patcher.IsDisabled("unrelated.service"))
}

func TestPatcherRevert(t *testing.T) {
	rootfs := setupRootfs(t)

	patcher, err := unit.NewPatcher(rootfs)
	require.NoError(t, err)

	require.NoError(t, patcher.Disable("simple.service"))
	require.NoError(t, patcher.Mask("unrelated.service"))
	require.NoError(t, patcher.Revert())

	assert.True(t, unitExists(t, rootfs, "simple.service"))
	assert.True(t, unitExists(t, rootfs, "multi-user.target.wants/simple.service"))
	assert.False(t, unitExists(t, rootfs, "simple.service.distrod-disabled"))

	info, err := os.Lstat(filepath.Join(rootfs, unitDir, "unrelated.service"))
	require.NoError(t, err)
	assert.True(t, info.Mode().IsRegular())

	// A fresh patcher sees no journal and nothing disabled.
	patcher, err = unit.NewPatcher(rootfs)
	require.NoError(t, err)
	assert.False(t, patcher.IsDisabled("simple.service"))
	assert.False(t, patcher.IsDisabled("unrelated.service"))
}

func TestPatcherRevertKeepsUserChanges(t *testing.T) {
	rootfs := setupRootfs(t)

	patcher, err := unit.NewPatcher(rootfs)
	require.NoError(t, err)

	require.NoError(t, patcher.Mask("simple.service"))

	// The user replaced the mask with their own unit file.
	path := filepath.Join(rootfs, unitDir, "simple.service")
	require.NoError(t, os.Remove(path))
	require.NoError(t, os.WriteFile(path, []byte("[Unit]\nDescription=Mine\n"), 0o644))

	require.NoError(t, patcher.Revert())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "Description=Mine")
}

func TestPatcherUnsetDirective(t *testing.T) {
	tests := []struct {
		name           string
		unitContent    string
		expectOverride bool
	}{
		{
			name: "directive present",
			unitContent: "[Unit]\nDescription=Create System Users\n\n" +
				"[Service]\nType=oneshot\nLoadCredential=passwd.hashed-password.root\n",
			expectOverride: true,
		},
		{
			name:           "directive absent",
			unitContent:    "[Service]\nType=oneshot\n",
			expectOverride: false,
		},
		{
			name:           "unit missing",
			expectOverride: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rootfs := t.TempDir()

			if tt.unitContent != "" {
				dir := filepath.Join(rootfs, "lib/systemd/system")
				require.NoError(t, os.MkdirAll(dir, 0o755))
				require.NoError(t, os.WriteFile(
					filepath.Join(dir, "systemd-sysusers.service"),
					[]byte(tt.unitContent),
					0o644,
				))
			}

			patcher, err := unit.NewPatcher(rootfs)
			require.NoError(t, err)

			require.NoError(t,
				patcher.UnsetDirective("systemd-sysusers.service", "Service", "LoadCredential"))

			dropIn := filepath.Join(
				rootfs, unitDir, "systemd-sysusers.service.d/distrod-override.conf",
			)

			if !tt.expectOverride {
				assert.NoFileExists(t, dropIn)
				return
			}

			content, err := os.ReadFile(dropIn)
			require.NoError(t, err)
			assert.Equal(t, "[Service]\nLoadCredential=\n", string(content))

			require.NoError(t, patcher.Revert())
			assert.NoFileExists(t, dropIn)
		})
	}
}

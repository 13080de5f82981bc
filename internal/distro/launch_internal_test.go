// SPDX-FileCopyrightText: 2026 The distrod authors
//
// SPDX-License-Identifier: MIT

package distro

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nullpo-head/wsl-distrod/internal/config"
)

func TestWriteSystemEnvFile(t *testing.T) {
	rootfs := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(rootfs, "etc"), 0o755))

	existing := "LANG=C.UTF-8\n# keep me\n"
	envPath := filepath.Join(rootfs, "etc/environment")
	require.NoError(t, os.WriteFile(envPath, []byte(existing), 0o644))

	session := map[string]string{
		"WSL_INTEROP":     "/run/WSL/8_interop",
		"WSL_DISTRO_NAME": "Ubuntu",
		"WSLENV":          "WT_SESSION::payload\nextra",
	}

	err := writeSystemEnvFile(rootfs, session, []string{"/mnt/c/Windows"})
	require.NoError(t, err)

	content, err := os.ReadFile(envPath)
	require.NoError(t, err)

	text := string(content)
	assert.Contains(t, text, "LANG=C.UTF-8")
	assert.Contains(t, text, "# keep me")
	assert.Contains(t, text, "WSL_INTEROP='/run/WSL/8_interop'")
	assert.Contains(t, text, "WSL_DISTRO_NAME='Ubuntu'")
	assert.NotContains(t, text, "payload", "unsafe values must not spread")
	assert.Contains(t, text, "/mnt/c/Windows")
	assert.Contains(t, text, config.BinDir)
}

func TestBridgeScript(t *testing.T) {
	envs := map[string]string{
		"WSL_INTEROP": "/run/WSL/8_interop",
		"WSLENV":      "WT_SESSION::payload\nextra",
	}

	rendered := bridgeScript(envs, []string{"/mnt/c/Windows"}, false).Render()
	assert.Contains(t, rendered, "WSL_INTEROP")
	assert.Contains(t, rendered, "payload", "own tier keeps raw values")
	assert.Contains(t, rendered, "/mnt/c/Windows")
	assert.Contains(t, rendered, config.BinDir)

	sanitized := bridgeScript(envs, nil, true).Render()
	assert.Contains(t, sanitized, "WSL_INTEROP")
	assert.NotContains(t, sanitized, "payload", "shared tier is sanitized")
}

func TestOverlayMounts(t *testing.T) {
	overlay := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(overlay, "systemd"), 0o755))

	files := []string{"tcp4_ports", "systemd/netif"}
	for _, name := range files {
		path := filepath.Join(overlay, name)
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	}

	plan := overlayMounts(overlay)
	require.Len(t, plan, 2)

	targets := []string{plan[0].Target, plan[1].Target}
	assert.ElementsMatch(
		t, []string{"/run/tcp4_ports", "/run/systemd/netif"}, targets,
	)

	for _, mount := range plan {
		assert.True(t, mount.IsFile)
	}
}

func TestOverlayMountsMissingDir(t *testing.T) {
	assert.Empty(t, overlayMounts(filepath.Join(t.TempDir(), "absent")))
}

func TestCanonicalRootfs(t *testing.T) {
	dir := t.TempDir()
	rootfs := filepath.Join(dir, "rootfs")
	require.NoError(t, os.Mkdir(rootfs, 0o755))

	link := filepath.Join(dir, "default")
	require.NoError(t, os.Symlink(rootfs, link))

	expected, err := filepath.EvalSymlinks(rootfs)
	require.NoError(t, err)

	resolved, err := canonicalRootfs(link)
	require.NoError(t, err)
	assert.Equal(t, expected, resolved)

	_, err = canonicalRootfs(filepath.Join(dir, "absent"))
	assert.Error(t, err)
}

// SPDX-FileCopyrightText: 2026 The distrod authors
//
// SPDX-License-Identifier: MIT

package interop

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"
	"text/template"

	"github.com/nullpo-head/wsl-distrod/internal/config"
	"github.com/nullpo-head/wsl-distrod/internal/envfile"
)

// LoaderScriptName is the name of the profile.d script which sources
// the env bridge scripts at login.
const LoaderScriptName = "distrod-user-wsl-envs.sh"

//go:embed assets/load_per_user_wsl_envs.sh
var loaderScript string

// ScriptPath returns the path of the env bridge script for the user.
func ScriptPath(uid int) string {
	return fmt.Sprintf("%s/distrod_wsl_env-uid%d", config.RuntimeDir, uid)
}

// Publish writes the env bridge script tier for the given user and
// returns its path. Root's script is the world readable fallback any
// login may source, while a user's own script stays private so other
// users cannot read the session variables captured in it.
func Publish(script *envfile.ShellScript, uid, gid int) (string, error) {
	if err := os.MkdirAll(config.RuntimeDir, 0o755); err != nil {
		return "", fmt.Errorf("create runtime directory: %w", err)
	}

	return publish(ScriptPath(uid), script, uid, gid)
}

func publish(
	path string, script *envfile.ShellScript, uid, gid int,
) (string, error) {
	if err := checkOwner(path, uid); err != nil {
		return "", err
	}

	mode := tierMode(uid)

	if err := script.WriteFile(path, mode); err != nil {
		return "", fmt.Errorf("write env bridge script: %w", err)
	}

	// WriteFile keeps the mode of a preexisting file.
	if err := os.Chmod(path, mode); err != nil {
		return "", fmt.Errorf("restrict env bridge script: %w", err)
	}

	if err := os.Chown(path, uid, gid); err != nil {
		return "", fmt.Errorf("chown env bridge script: %w", err)
	}

	return path, nil
}

func tierMode(uid int) os.FileMode {
	if uid == 0 {
		return 0o644
	}

	return 0o600
}

// checkOwner refuses to reuse a bridge script another user planted.
// The path is predictable, so an existing file is trusted only when
// root or the target user owns it and it is a regular file.
func checkOwner(path string, uid int) error {
	info, err := os.Lstat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("inspect env bridge script: %w", err)
	}

	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s: %w", path, ErrUntrustedScript)
	}

	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok || (stat.Uid != 0 && stat.Uid != uint32(uid)) {
		return fmt.Errorf("%s: %w", path, ErrUntrustedScript)
	}

	return nil
}

// InstallLoader puts the login script into the rootfs which sources
// the env bridge script of the logging-in user, then the shared one
// root published to fill in variables the user's own script lacks.
func InstallLoader(rootfsPath string) error {
	tmpl, err := template.New(LoaderScriptName).Parse(loaderScript)
	if err != nil {
		return fmt.Errorf("parse login script template: %w", err)
	}

	var buf bytes.Buffer

	err = tmpl.Execute(&buf, map[string]string{
		// $(id -u) is expanded by the shell at login time.
		"PerUserScriptPath": config.RuntimeDir + "/distrod_wsl_env-uid$(id -u)",
		"RootScriptPath":    ScriptPath(0),
	})
	if err != nil {
		return fmt.Errorf("render login script: %w", err)
	}

	path := filepath.Join(rootfsPath, "etc/profile.d", LoaderScriptName)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("install login script: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("install login script: %w", err)
	}

	return nil
}

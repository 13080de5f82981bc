// SPDX-FileCopyrightText: 2026 The distrod authors
//
// SPDX-License-Identifier: MIT

// Package autostart registers a Windows scheduled task which starts
// the distro at user logon, so its systemd services are up before
// the first WSL session opens. The task scheduler is driven through
// powershell.exe from inside WSL via the interop bridge.
package autostart

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"text/template"

	"github.com/nullpo-head/wsl-distrod/internal/interop"
)

//go:embed assets/distrod_autostart.xml
var taskDefinition string

//go:embed assets/schedule_task.ps1
var scheduleScript string

//go:embed assets/unschedule_task.ps1
var unscheduleScript string

// Windows binaries relative to the system drive mount.
const (
	powershellPath = "Windows/System32/WindowsPowerShell/v1.0/powershell.exe"
	whoamiPath     = "Windows/System32/whoami.exe"
)

type taskParams struct {
	UserName            string
	DistroName          string
	TaskName            string
	TaskFileWindowsPath string
}

// Register schedules a logon task for the current Windows user which
// starts the named WSL distribution.
func Register(ctx context.Context, distroName string) error {
	drive, err := systemDrive()
	if err != nil {
		return err
	}

	userName, err := windowsUserName(ctx, drive)
	if err != nil {
		return err
	}

	taskFile, err := writeTaskFile(userName, distroName)
	if err != nil {
		return err
	}
	defer os.Remove(taskFile)

	taskFileWinPath, err := toWindowsPath(ctx, taskFile)
	if err != nil {
		return err
	}

	command, err := render(scheduleScript, taskParams{
		UserName:            userName,
		TaskName:            taskName(userName, distroName),
		TaskFileWindowsPath: taskFileWinPath,
	})
	if err != nil {
		return err
	}

	return runPowershell(ctx, drive, command)
}

// Unregister removes the logon task Register created for the current
// Windows user and the named distribution.
func Unregister(ctx context.Context, distroName string) error {
	drive, err := systemDrive()
	if err != nil {
		return err
	}

	userName, err := windowsUserName(ctx, drive)
	if err != nil {
		return err
	}

	command, err := render(unscheduleScript, taskParams{
		TaskName: taskName(userName, distroName),
	})
	if err != nil {
		return err
	}

	return runPowershell(ctx, drive, command)
}

func systemDrive() (string, error) {
	drive, err := interop.DrivePath("c")
	if err != nil {
		return "", err
	}

	if drive == "" {
		return "", ErrNoSystemDrive
	}

	return drive, nil
}

// windowsUserName asks whoami.exe who the Windows side user is. The
// WSL user name can differ, and the task must run as the former.
func windowsUserName(ctx context.Context, drive string) (string, error) {
	output, err := exec.CommandContext(ctx, filepath.Join(drive, whoamiPath)).Output()
	if err != nil {
		return "", fmt.Errorf("run whoami.exe: %w", err)
	}

	return strings.TrimSpace(string(output)), nil
}

// writeTaskFile renders the task definition into a temp file which
// must be world readable so the Windows side can fetch it over the
// 9p mount.
func writeTaskFile(userName, distroName string) (string, error) {
	content, err := render(taskDefinition, taskParams{
		UserName:   userName,
		DistroName: distroName,
		TaskName:   taskName(userName, distroName),
	})
	if err != nil {
		return "", err
	}

	file, err := os.CreateTemp("", "distrod_autostart-*.xml")
	if err != nil {
		return "", fmt.Errorf("create task file: %w", err)
	}

	_, writeErr := file.WriteString(content)
	if writeErr == nil {
		writeErr = file.Chmod(0o644)
	}

	if err := file.Close(); writeErr == nil {
		writeErr = err
	}

	if writeErr != nil {
		os.Remove(file.Name())

		return "", fmt.Errorf("write task file: %w", writeErr)
	}

	return file.Name(), nil
}

func toWindowsPath(ctx context.Context, path string) (string, error) {
	output, err := exec.CommandContext(ctx, "/bin/wslpath", "-w", path).Output()
	if err != nil {
		return "", fmt.Errorf("translate %s for Windows: %w", path, err)
	}

	return strings.TrimSpace(string(output)), nil
}

func runPowershell(ctx context.Context, drive, command string) error {
	cmd := exec.CommandContext(ctx, filepath.Join(drive, powershellPath),
		"-Command", command)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("run powershell: %w", err)
	}

	return nil
}

var taskNameUnsafe = regexp.MustCompile("[^a-zA-Z0-9]")

// taskName returns the scheduled task name for the pair. Windows user
// names carry a domain separator and other characters the scheduler
// rejects in task names, so those become dashes.
func taskName(userName, distroName string) string {
	return fmt.Sprintf("StartWSL_%s_for_%s",
		distroName, taskNameUnsafe.ReplaceAllString(userName, "-"))
}

func render(asset string, params taskParams) (string, error) {
	tmpl, err := template.New("task").Parse(asset)
	if err != nil {
		return "", fmt.Errorf("parse task template: %w", err)
	}

	var buf bytes.Buffer

	if err := tmpl.Execute(&buf, params); err != nil {
		return "", fmt.Errorf("render task template: %w", err)
	}

	return buf.String(), nil
}

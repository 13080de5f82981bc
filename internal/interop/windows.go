// SPDX-FileCopyrightText: 2026 The distrod authors
//
// SPDX-License-Identifier: MIT

package interop

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/nullpo-head/wsl-distrod/internal/mounts"
)

var windowsDrivePattern = regexp.MustCompile(`^[A-Za-z]:\\`)

// DrivePath returns the path where the Windows drive with the given
// letter is mounted, or an empty string when it is not mounted.
func DrivePath(letter string) (string, error) {
	entries, err := mounts.Current()
	if err != nil {
		return "", fmt.Errorf("locate Windows drive: %w", err)
	}

	return drivePath(entries, letter), nil
}

func drivePath(entries []mounts.Entry, letter string) string {
	prefix := strings.ToUpper(letter) + `:\`

	for _, entry := range entries {
		if entry.FSType == "9p" && strings.HasPrefix(entry.Source, prefix) {
			return entry.Path
		}
	}

	return ""
}

// DriveMounts returns the mount paths of the Windows drives of this
// session, which the container needs bound so Windows binaries stay
// reachable.
func DriveMounts() ([]string, error) {
	entries, err := mounts.Current()
	if err != nil {
		return nil, fmt.Errorf("locate Windows drives: %w", err)
	}

	return driveMounts(entries), nil
}

func driveMounts(entries []mounts.Entry) []string {
	var paths []string

	for _, entry := range entries {
		if entry.FSType == "9p" && windowsDrivePattern.MatchString(entry.Source) {
			paths = append(paths, entry.Path)
		}
	}

	return paths
}

// WindowsPaths returns the PATH members which live on Windows drive
// mounts. WSL appends them to PATH on the host side, so they must be
// re-added inside the container where WSL does not reach.
func WindowsPaths() ([]string, error) {
	entries, err := mounts.Current()
	if err != nil {
		return nil, fmt.Errorf("collect Windows PATH members: %w", err)
	}

	return windowsPaths(entries, os.Getenv("PATH")), nil
}

func windowsPaths(entries []mounts.Entry, pathEnv string) []string {
	drives := driveMounts(entries)

	var paths []string

	for _, member := range filepath.SplitList(pathEnv) {
		for _, drive := range drives {
			if mounts.Within(member, drive) {
				paths = append(paths, member)
				break
			}
		}
	}

	return paths
}

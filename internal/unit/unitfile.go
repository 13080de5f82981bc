// SPDX-FileCopyrightText: 2026 The distrod authors
//
// SPDX-License-Identifier: MIT

package unit

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// unitSearchPaths are the directories systemd loads system units
// from, in precedence order.
var unitSearchPaths = []string{
	"etc/systemd/system",
	"run/systemd/system",
	"lib/systemd/system",
	"usr/lib/systemd/system",
}

// FindUnit returns the path of the named unit file inside the rootfs,
// or an empty string when the distribution does not ship it.
func FindUnit(rootfsPath, name string) (string, error) {
	for _, dir := range unitSearchPaths {
		path := filepath.Join(rootfsPath, dir, name)

		_, err := os.Lstat(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}

		if err != nil {
			return "", fmt.Errorf("find unit %s: %w", name, err)
		}

		return path, nil
	}

	return "", nil
}

// UnsetDirective writes a drop-in which resets the given directive of
// the unit, for directives the distribution sets but which cannot
// work inside the container. Nothing is written when the unit does
// not exist or does not set the directive.
func (p *Patcher) UnsetDirective(unitName, section, key string) error {
	path, err := FindUnit(p.rootfs, unitName)
	if err != nil {
		return err
	}

	if path == "" {
		return nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read unit %s: %w", unitName, err)
	}

	if !hasDirective(parseUnitDirectives(string(content)), key) {
		return nil
	}

	dropInDir := filepath.Join(p.unitDir(), unitName+".d")
	if err := os.MkdirAll(dropInDir, 0o755); err != nil {
		return fmt.Errorf("write unit override: %w", err)
	}

	dropIn := filepath.Join(dropInDir, "distrod-override.conf")
	override := fmt.Sprintf("[%s]\n%s=\n", section, key)

	if err := os.WriteFile(dropIn, []byte(override), 0o644); err != nil {
		return fmt.Errorf("write unit override: %w", err)
	}

	p.journal.record(patchRecord{
		Op:   opOverrideFile,
		Unit: unitName,
		Path: p.rel(dropIn),
	})

	return p.journal.save()
}

// unitDirective is a single Key=Value assignment of a unit file.
type unitDirective struct {
	Section string
	Key     string
	Value   string
}

// parseUnitDirectives parses the subset of the unit file syntax the
// patcher needs. Lines ending with a backslash continue on the next
// line, like systemd treats them.
func parseUnitDirectives(content string) []unitDirective {
	var directives []unitDirective

	section := ""
	lines := strings.Split(content, "\n")

	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])

		for strings.HasSuffix(line, "\\") && i+1 < len(lines) {
			i++
			line = line[:len(line)-1] + " " + strings.TrimSpace(lines[i])
		}

		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = line[1 : len(line)-1]
			continue
		}

		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}

		directives = append(directives, unitDirective{
			Section: section,
			Key:     strings.TrimSpace(key),
			Value:   strings.TrimSpace(value),
		})
	}

	return directives
}

// installCompanions returns the units the [Install] section names via
// Alias and Also. Disabling a unit disables these as well, like
// systemctl disable does.
func installCompanions(directives []unitDirective) []string {
	var companions []string

	for _, d := range directives {
		if d.Section != "Install" {
			continue
		}

		if d.Key != "Alias" && d.Key != "Also" {
			continue
		}

		companions = append(companions, strings.Fields(d.Value)...)
	}

	return companions
}

func hasDirective(directives []unitDirective, key string) bool {
	for _, d := range directives {
		if d.Key == key {
			return true
		}
	}

	return false
}

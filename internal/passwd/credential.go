// SPDX-FileCopyrightText: 2026 The distrod authors
//
// SPDX-License-Identifier: MIT

package passwd

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// Credential identifies the user a command runs as inside the
// container.
type Credential struct {
	UID    int
	GID    int
	Groups []int
}

// NewCredential returns a credential for the given IDs.
func NewCredential(uid, gid int, groups []int) *Credential {
	return &Credential{
		UID:    uid,
		GID:    gid,
		Groups: groups,
	}
}

// RealCredential returns the credential of the invoking user. For a
// setuid binary these are the real IDs, not the elevated effective
// ones.
func RealCredential() (*Credential, error) {
	groups, err := os.Getgroups()
	if err != nil {
		return nil, fmt.Errorf("read supplementary groups: %w", err)
	}

	return NewCredential(os.Getuid(), os.Getgid(), groups), nil
}

// CredentialFor looks up the named user in the rootfs and builds its
// credential, including supplementary groups from the group database.
func CredentialFor(rootfsPath, name string) (*Credential, error) {
	passwdFile, err := Open(rootfsPath + "/etc/passwd")
	if err != nil {
		return nil, err
	}

	entry := passwdFile.ByName(name)
	if entry == nil {
		return nil, fmt.Errorf("%s: %w", name, ErrNoSuchUser)
	}

	groups, err := supplementaryGroups(rootfsPath+"/etc/group", name, entry.GID)
	if err != nil {
		return nil, err
	}

	return NewCredential(entry.UID, entry.GID, groups), nil
}

// DropPrivilege permanently switches this process to the credential.
// Supplementary groups are set first, while we are still allowed to.
func (c *Credential) DropPrivilege() error {
	groups := c.Groups
	if len(groups) == 0 {
		groups = []int{c.GID}
	}

	if err := unix.Setgroups(groups); err != nil {
		return fmt.Errorf("set groups: %w", err)
	}

	if err := unix.Setresgid(c.GID, c.GID, c.GID); err != nil {
		return fmt.Errorf("set gid %d: %w", c.GID, err)
	}

	if err := unix.Setresuid(c.UID, c.UID, c.UID); err != nil {
		return fmt.Errorf("set uid %d: %w", c.UID, err)
	}

	return nil
}

// supplementaryGroups returns the primary gid plus the gids of every
// group listing the user as a member. A missing group database is not
// an error, minimal rootfs images may lack one.
func supplementaryGroups(groupPath, name string, primary int) ([]int, error) {
	file, err := os.Open(groupPath)
	if errors.Is(err, fs.ErrNotExist) {
		return []int{primary}, nil
	}

	if err != nil {
		return nil, fmt.Errorf("open group file: %w", err)
	}
	defer file.Close()

	groups := []int{primary}

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		fields := strings.Split(scanner.Text(), ":")
		if len(fields) != 4 {
			continue
		}

		gid, err := strconv.Atoi(fields[2])
		if err != nil || gid == primary {
			continue
		}

		for _, member := range strings.Split(fields[3], ",") {
			if member == name {
				groups = append(groups, gid)
				break
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read group file: %w", err)
	}

	return groups, nil
}

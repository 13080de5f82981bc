// SPDX-FileCopyrightText: 2026 The distrod authors
//
// SPDX-License-Identifier: MIT

package container

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/sys/unix"

	"github.com/nullpo-head/wsl-distrod/internal/logging"
	"github.com/nullpo-head/wsl-distrod/internal/mounts"
)

// initStage is PID 1 of the fresh namespaces. It pivots into the
// rootfs, applies the mount plan and execs the guest init with a
// clean environment. It only returns on failure.
func initStage() int {
	var payload initPayload
	if err := readPayload(&payload); err != nil {
		fmt.Fprintln(os.Stderr, "distrod:", err)

		return 1
	}

	_ = logging.Configure(os.Stderr, payload.LogLevel)

	if err := runInitStage(&payload); err != nil {
		slog.Error("container init stage failed", "error", err)

		return 1
	}

	return 1
}

func runInitStage(payload *initPayload) error {
	// A setuid launcher leaves the real uid at the invoking user, but
	// systemd refuses to run unless the real uid is root.
	if err := unix.Setresgid(0, 0, 0); err != nil {
		return fmt.Errorf("reset gid: %w", err)
	}

	if err := unix.Setresuid(0, 0, 0); err != nil {
		return fmt.Errorf("reset uid: %w", err)
	}

	// Mount events in the container must not leak back to the host
	// session, its /run and /mnt serve every other distro.
	err := unix.Mount("", "/", "", unix.MS_REC|unix.MS_SLAVE, "")
	if err != nil {
		return fmt.Errorf("make mounts slave: %w", err)
	}

	oldRootMount := "/"

	pivoted := payload.Rootfs != "/"
	if pivoted {
		if err := pivotIntoRootfs(payload.Rootfs, payload.OldRoot); err != nil {
			return err
		}

		oldRootMount = payload.OldRoot
	} else if err := markHostRootfs(payload.OldRoot); err != nil {
		return err
	}

	if err := mountBaseFilesystems(pivoted); err != nil {
		return err
	}

	applyMounts(payload.Mounts, oldRootMount)

	if pivoted {
		detachHostMounts(payload.OldRoot)
	}

	if err := detachStdio(); err != nil {
		return err
	}

	argv := append([]string{payload.Init}, payload.Args...)

	if err := unix.Exec(payload.Init, argv, payload.Envs); err != nil {
		return fmt.Errorf("exec %s: %w", payload.Init, err)
	}

	return nil
}

// pivotIntoRootfs makes rootfs the root of this mount namespace,
// keeping the host root reachable at oldRoot inside it.
func pivotIntoRootfs(rootfs, oldRoot string) error {
	// pivot_root requires the new root to be a mount point.
	if err := unix.Mount(rootfs, rootfs, "", unix.MS_BIND, ""); err != nil {
		return fmt.Errorf("bind rootfs %s: %w", rootfs, err)
	}

	putOld := filepath.Join(rootfs, oldRoot)
	if err := os.MkdirAll(putOld, 0o755); err != nil {
		return fmt.Errorf("create old root mount point: %w", err)
	}

	if err := unix.PivotRoot(rootfs, putOld); err != nil {
		return fmt.Errorf("pivot root to %s: %w", rootfs, err)
	}

	if err := os.Chdir("/"); err != nil {
		return fmt.Errorf("enter new root: %w", err)
	}

	return nil
}

// markHostRootfs prepares a container sharing the host rootfs. The
// host proc stays reachable under oldRoot, which doubles as the
// marker mount identifying the container from inside.
func markHostRootfs(oldRoot string) error {
	hostProc := filepath.Join(oldRoot, "proc")
	if err := os.MkdirAll(hostProc, 0o755); err != nil {
		return fmt.Errorf("create host proc mount point: %w", err)
	}

	if err := unix.Mount("/proc", hostProc, "", unix.MS_BIND, ""); err != nil {
		return fmt.Errorf("bind host proc: %w", err)
	}

	return nil
}

// mountBaseFilesystems mounts what every container needs before the
// mount plan applies. A container sharing the host rootfs only gets
// its own proc, everything else must stay the host's.
func mountBaseFilesystems(pivoted bool) error {
	base := []Mount{
		{Target: "/proc", FSType: "proc"},
	}

	if pivoted {
		base = append(base,
			Mount{Target: "/tmp", FSType: "tmpfs"},
			Mount{Target: "/run", FSType: "tmpfs"},
			Mount{Target: "/run/shm", FSType: "tmpfs"},
		)
	}

	for _, mount := range base {
		if err := applyMount(mount, "/"); err != nil {
			return err
		}
	}

	return nil
}

// applyMounts applies the mount plan. A failing entry is skipped with
// a warning, a missing WSL file must not keep the distro from
// starting.
func applyMounts(plan []Mount, oldRootMount string) {
	for _, mount := range plan {
		if err := applyMount(mount, oldRootMount); err != nil {
			slog.Warn("skipping container mount",
				"target", mount.Target, "error", err)
		}
	}
}

func applyMount(mount Mount, oldRootMount string) error {
	source := resolveSource(mount.Source, oldRootMount)
	if source == mount.Target {
		// The path is shared with the host rootfs already.
		return nil
	}

	if err := ensureMountPoint(mount.Target, mount.IsFile); err != nil {
		return err
	}

	device := source
	if device == "" {
		device = mount.FSType
	}

	err := unix.Mount(
		device, mount.Target, mount.FSType, mount.Flags, mount.Data,
	)
	if err != nil {
		return fmt.Errorf("mount %s on %s: %w", device, mount.Target, err)
	}

	return nil
}

// resolveSource translates a host path into the container view, where
// the host root is a subtree at the old root mount.
func resolveSource(source, oldRootMount string) string {
	if source == "" || oldRootMount == "/" {
		return source
	}

	return filepath.Join(oldRootMount, source)
}

// ensureMountPoint creates the mount target if it does not exist. A
// dangling symlink is replaced, WSL images ship /etc/resolv.conf as
// one.
func ensureMountPoint(target string, isFile bool) error {
	if !isFile {
		if err := os.MkdirAll(target, 0o755); err != nil {
			return fmt.Errorf("create mount point %s: %w", target, err)
		}

		return nil
	}

	if info, err := os.Lstat(target); err == nil {
		if info.Mode()&os.ModeSymlink == 0 {
			return nil
		}

		if _, err := os.Stat(target); err == nil {
			return nil
		}

		if err := os.Remove(target); err != nil {
			return fmt.Errorf("replace dangling symlink %s: %w", target, err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create mount point %s: %w", target, err)
	}

	file, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create mount point %s: %w", target, err)
	}

	return file.Close()
}

// detachHostMounts unmounts what the container inherited from the
// host below oldRoot, keeping only the host root itself reachable.
// Busy mounts are logged and stay.
func detachHostMounts(oldRoot string) {
	entries, err := mounts.Current()
	if err != nil {
		slog.Warn("keeping host mounts, cannot read mount table",
			"error", err)

		return
	}

	for _, path := range hostMountsToDetach(entries, oldRoot) {
		if err := unix.Unmount(path, 0); err != nil {
			slog.Warn("keeping host mount", "path", path, "error", err)
		}
	}
}

// hostMountsToDetach lists the mounts strictly below oldRoot, deepest
// first so children unmount before their parents.
func hostMountsToDetach(entries []mounts.Entry, oldRoot string) []string {
	var paths []string

	for _, entry := range entries {
		if entry.Path != oldRoot && mounts.Within(entry.Path, oldRoot) {
			paths = append(paths, entry.Path)
		}
	}

	sort.Slice(paths, func(i, j int) bool {
		return len(paths[i]) > len(paths[j])
	})

	return paths
}

// detachStdio points stdio at /dev/null. The launcher's terminal must
// not stay attached to the long-lived init.
func detachStdio() error {
	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("open %s: %w", os.DevNull, err)
	}
	defer devNull.Close()

	for fd := 0; fd <= 2; fd++ {
		if err := unix.Dup2(int(devNull.Fd()), fd); err != nil {
			return fmt.Errorf("detach stdio: %w", err)
		}
	}

	return nil
}

// SPDX-FileCopyrightText: 2026 The distrod authors
//
// SPDX-License-Identifier: MIT

package rootfs

import (
	"archive/tar"
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"
	"golang.org/x/sys/unix"

	"github.com/nullpo-head/wsl-distrod/internal/mounts"
)

// Compression magics distribution images commonly ship with.
var (
	gzipMagic = []byte{0x1f, 0x8b}
	xzMagic   = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	lz4Magic  = []byte{0x04, 0x22, 0x4d, 0x18}
)

// Unpack extracts a distribution image into destDir, creating it if
// needed. The image is a tar stream, optionally compressed with
// gzip, xz, zstd or lz4. The compression is detected from magic
// bytes rather than the file name, since downloaded images are often
// misnamed.
func Unpack(reader io.Reader, destDir string) error {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("create destination: %w", err)
	}

	destDir, err := filepath.EvalSymlinks(destDir)
	if err != nil {
		return fmt.Errorf("resolve destination: %w", err)
	}

	decompressed, closeDecoder, err := decompress(bufio.NewReader(reader))
	if err != nil {
		return err
	}

	unpackErr := untar(tar.NewReader(decompressed), destDir)

	if closeDecoder != nil {
		if err := closeDecoder(); err != nil && unpackErr == nil {
			unpackErr = fmt.Errorf("close decompressor: %w", err)
		}
	}

	return unpackErr
}

// decompress wraps reader with the decoder matching its leading
// magic bytes. Unrecognized input passes through unchanged, assuming
// an uncompressed tar. The returned close function may be nil.
func decompress(reader *bufio.Reader) (io.Reader, func() error, error) {
	magic, err := reader.Peek(len(xzMagic))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, nil, fmt.Errorf("sniff archive type: %w", err)
	}

	switch {
	case bytes.HasPrefix(magic, gzipMagic):
		gzReader, err := gzip.NewReader(reader)
		if err != nil {
			return nil, nil, fmt.Errorf("open gzip stream: %w", err)
		}

		return gzReader, gzReader.Close, nil
	case bytes.HasPrefix(magic, xzMagic):
		xzReader, err := xz.NewReader(reader)
		if err != nil {
			return nil, nil, fmt.Errorf("open xz stream: %w", err)
		}

		return xzReader, nil, nil
	case bytes.HasPrefix(magic, zstdMagic):
		zstdReader, err := zstd.NewReader(reader)
		if err != nil {
			return nil, nil, fmt.Errorf("open zstd stream: %w", err)
		}

		closeFn := func() error {
			zstdReader.Close()

			return nil
		}

		return zstdReader, closeFn, nil
	case bytes.HasPrefix(magic, lz4Magic):
		return lz4.NewReader(reader), nil, nil
	default:
		return reader, nil, nil
	}
}

func untar(archive *tar.Reader, destDir string) error {
	for {
		header, err := archive.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return fmt.Errorf("read archive: %w", err)
		}

		if err := extract(archive, header, destDir); err != nil {
			return err
		}
	}
}

func extract(archive *tar.Reader, header *tar.Header, destDir string) error {
	path, err := securePath(destDir, header.Name)
	if err != nil {
		return err
	}

	switch header.Typeflag {
	case tar.TypeDir:
		if err := removeSymlinkAt(path); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}

		if err := os.MkdirAll(path, header.FileInfo().Mode().Perm()); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	case tar.TypeReg:
		if err := writeRegular(archive, header, path); err != nil {
			return err
		}
	case tar.TypeSymlink:
		if err := replaceWithLink(path, func() error {
			return os.Symlink(header.Linkname, path)
		}); err != nil {
			return fmt.Errorf("create symlink %s: %w", header.Name, err)
		}
	case tar.TypeLink:
		target, err := securePath(destDir, header.Linkname)
		if err != nil {
			return err
		}

		if err := replaceWithLink(path, func() error {
			return os.Link(target, path)
		}); err != nil {
			return fmt.Errorf("create hard link %s: %w", header.Name, err)
		}
	case tar.TypeChar, tar.TypeBlock, tar.TypeFifo:
		if err := makeNode(header, path); err != nil {
			return err
		}
	default:
		slog.Warn("skipping unsupported archive entry",
			"name", header.Name, "type", header.Typeflag)

		return nil
	}

	return applyMetadata(header, path)
}

func writeRegular(archive *tar.Reader, header *tar.Header, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create parent directory: %w", err)
	}

	if err := removeSymlinkAt(path); err != nil {
		return fmt.Errorf("create file: %w", err)
	}

	file, err := os.OpenFile(
		path,
		os.O_WRONLY|os.O_CREATE|os.O_TRUNC,
		header.FileInfo().Mode().Perm(),
	)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}

	//nolint:gosec
	if _, err := io.Copy(file, archive); err != nil {
		_ = file.Close()

		return fmt.Errorf("write %s: %w", header.Name, err)
	}

	if err := file.Close(); err != nil {
		return fmt.Errorf("write %s: %w", header.Name, err)
	}

	return nil
}

// replaceWithLink removes any previous entry at path before creating
// a link there, so unpacking over an existing rootfs succeeds.
func replaceWithLink(path string, create func() error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	return create()
}

func makeNode(header *tar.Header, path string) error {
	mode := uint32(header.Mode) & 0o7777

	switch header.Typeflag {
	case tar.TypeChar:
		mode |= unix.S_IFCHR
	case tar.TypeBlock:
		mode |= unix.S_IFBLK
	case tar.TypeFifo:
		mode |= unix.S_IFIFO
	}

	dev := unix.Mkdev(uint32(header.Devmajor), uint32(header.Devminor))
	if err := unix.Mknod(path, mode, int(dev)); err != nil {
		return fmt.Errorf("create device node %s: %w", header.Name, err)
	}

	return nil
}

const xattrPrefix = "SCHILY.xattr."

// applyMetadata restores ownership, permissions, extended attributes
// and timestamps. Ownership is restored before permissions since
// chown clears setuid bits.
func applyMetadata(header *tar.Header, path string) error {
	if err := os.Lchown(path, header.Uid, header.Gid); err != nil {
		return fmt.Errorf("chown %s: %w", header.Name, err)
	}

	for key, value := range header.PAXRecords {
		attr, found := strings.CutPrefix(key, xattrPrefix)
		if !found {
			continue
		}

		if err := unix.Lsetxattr(path, attr, []byte(value), 0); err != nil {
			// Not all filesystems store every attribute class.
			slog.Warn("cannot restore extended attribute",
				"name", header.Name, "attr", attr, "error", err)
		}
	}

	if header.Typeflag == tar.TypeSymlink {
		return nil
	}

	if err := os.Chmod(path, header.FileInfo().Mode()); err != nil {
		return fmt.Errorf("chmod %s: %w", header.Name, err)
	}

	if !header.ModTime.IsZero() {
		_ = os.Chtimes(path, header.AccessTime, header.ModTime)
	}

	return nil
}

// removeSymlinkAt drops a symlink occupying path so the entry about
// to be written cannot be redirected through it.
func removeSymlinkAt(path string) error {
	info, err := os.Lstat(path)
	if err != nil || info.Mode()&fs.ModeSymlink == 0 {
		return nil
	}

	return os.Remove(path)
}

// securePath joins an archive entry name into destDir, refusing
// names which would escape it, whether by dot-dot components or
// through a symlink a previous entry planted on the way.
func securePath(destDir, name string) (string, error) {
	path := filepath.Join(destDir, name)
	if !mounts.Within(path, destDir) {
		return "", fmt.Errorf("%s: %w", name, ErrUnsafePath)
	}

	parent, err := resolveParent(path)
	if err != nil {
		return "", fmt.Errorf("resolve parent of %s: %w", name, err)
	}

	if !mounts.Within(parent, destDir) {
		return "", fmt.Errorf("%s: %w", name, ErrUnsafePath)
	}

	return filepath.Join(parent, filepath.Base(path)), nil
}

// resolveParent resolves symlinks in the deepest existing ancestor of
// path. Components below it do not exist yet, so they cannot be
// symlinks themselves.
func resolveParent(path string) (string, error) {
	dir := filepath.Dir(path)

	var missing []string

	for {
		resolved, err := filepath.EvalSymlinks(dir)
		if err == nil {
			return filepath.Join(append([]string{resolved}, missing...)...), nil
		}

		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fs.ErrNotExist
		}

		missing = append([]string{filepath.Base(dir)}, missing...)
		dir = parent
	}
}

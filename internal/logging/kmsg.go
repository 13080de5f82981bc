// SPDX-FileCopyrightText: 2026 The distrod authors
//
// SPDX-License-Identifier: MIT

package logging

import (
	"fmt"
	"io"
	"os"
)

const kmsgPath = "/dev/kmsg"

// kmsgTag prefixes every record so the messages can be found with dmesg.
const kmsgTag = "distrod: "

// KmsgWriter writes log records into the kernel ring buffer. The kernel
// treats each write call as one record, so the writer must receive one
// complete record per call, which [slog.TextHandler] guarantees.
type KmsgWriter struct {
	kmsg io.Writer
}

// NewKmsgWriter opens /dev/kmsg for appending. The kernel rejects
// writes from unprivileged processes, so without an effective GID of 0
// a discarding writer is returned instead of an error.
func NewKmsgWriter() (*KmsgWriter, error) {
	if os.Getegid() != 0 {
		return &KmsgWriter{kmsg: io.Discard}, nil
	}

	file, err := os.OpenFile(kmsgPath, os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		return nil, fmt.Errorf("open kmsg: %w", err)
	}

	return &KmsgWriter{kmsg: file}, nil
}

// Write emits p as a single tagged record.
func (w *KmsgWriter) Write(p []byte) (int, error) {
	record := make([]byte, 0, len(kmsgTag)+len(p))
	record = append(record, kmsgTag...)
	record = append(record, p...)

	if _, err := w.kmsg.Write(record); err != nil {
		return 0, err
	}

	return len(p), nil
}

// Package tail implements incremental reading of growing log files.
// The byte offset is owned by the caller; tail itself keeps no state.
package tail

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// ReadNew returns the complete lines appended to path since offset and
// the offset positioned after the last fully consumed line.
//
// A missing file means "not yet produced": no lines, offset unchanged.
// A file smaller than offset means truncation or rotation: no lines,
// offset reset to the current size so the next poll starts over. A
// trailing partial line without a terminating newline is withheld and
// re-read from the same offset once complete.
//
// ReadNew never fails. Transient errors (permission, race with the
// writer) are logged and the offset left unchanged so the next poll
// retries from the same position.
func ReadNew(ctx context.Context, path string, offset int64) ([]string, int64) {
	info, err := os.Stat(path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.DebugContext(ctx, "stat log file failed, will retry", "path", path, "error", err)
		}
		return nil, offset
	}

	size := info.Size()
	if size < offset {
		slog.DebugContext(ctx, "log file shrunk, resetting offset", "path", path, "offset", offset, "size", size)
		return nil, size
	}
	if size == offset {
		return nil, offset
	}

	f, err := os.Open(path)
	if err != nil {
		slog.DebugContext(ctx, "open log file failed, will retry", "path", path, "error", err)
		return nil, offset
	}
	defer func() {
		_ = f.Close()
	}()

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		slog.DebugContext(ctx, "seek log file failed, will retry", "path", path, "offset", offset, "error", err)
		return nil, offset
	}

	// Reads only already available data: to the current EOF, never
	// waiting for more.
	data, err := io.ReadAll(f)
	if err != nil {
		slog.DebugContext(ctx, "read log file failed, will retry", "path", path, "error", err)
		return nil, offset
	}
	if len(data) == 0 {
		return nil, offset
	}

	last := bytes.LastIndexByte(data, '\n')
	if last < 0 {
		// no complete line yet
		return nil, offset
	}

	complete := data[:last]
	lines := strings.Split(string(complete), "\n")
	return lines, offset + int64(last) + 1
}

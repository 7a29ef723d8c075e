// Reads and writes collection files.

package docdb

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// SaveFile encodes c and atomically replaces the file at path.
//
// The blob is written to a temporary file in the same directory, synced and
// renamed over path, so a crash leaves either the old or the new file. When
// the save compacted tombstones away, the dirty flag is cleared; the
// in-memory slots are left untouched. It returns whether the save compacted.
//
// Compaction only lasts until the next clean save: a clean collection is
// written verbatim, so the tombstones still held in memory go back to the
// file. They disappear for good once the collection is reloaded from a
// compacted file.
func SaveFile[T Row[T]](path string, c *Collection[T], opts *Options) (bool, error) {
	data, compacted, err := Encode(c, opts)
	if err != nil {
		return false, &EncodeError{Path: path, Err: err}
	}
	if err := writeFileAtomic(path, data); err != nil {
		return false, err
	}
	if compacted {
		c.dirty = false
	}
	return compacted, nil
}

// LoadFile reads and decodes the collection file at path.
//
// A missing file returns an error matching both [ErrAbsent] and
// fs.ErrNotExist. A file that cannot be decoded returns a [DecodeError].
func LoadFile[T Row[T]](path string) (*Collection[T], error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the data directory configuration
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %w", ErrAbsent, err)
		}
		return nil, fmt.Errorf("failed to read collection file %s: %w", path, err)
	}
	c, err := decode[T](data)
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}
	return c, nil
}

// LoadOrEmpty loads the collection at path, starting empty when the file is
// absent. A corrupt file is an error unless opts.Lenient is set, in which
// case a warning is logged and the collection starts empty.
func LoadOrEmpty[T Row[T]](ctx context.Context, path string, opts *Options) (*Collection[T], error) {
	c, err := LoadFile[T](path)
	switch {
	case err == nil:
		return c, nil
	case errors.Is(err, ErrAbsent):
		slog.DebugContext(ctx, "docdb: starting empty collection", "path", path)
		return NewCollection[T](), nil
	case errors.Is(err, ErrCorrupt) && opts != nil && opts.Lenient:
		slog.WarnContext(ctx, "docdb: ignoring corrupt collection file", "path", path, "err", err)
		return NewCollection[T](), nil
	default:
		return nil, err
	}
}

// writeFileAtomic writes data to a temp file next to path and renames it
// into place.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:gosec // G301: 0o755 is intentional for data directories
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		if tmpName != "" {
			_ = os.Remove(tmpName)
		}
	}()
	if err := tmp.Chmod(0o644); err != nil {
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to rename %s: %w", tmpName, err)
	}
	tmpName = ""
	// Best-effort: fsync the directory so the rename is durable on POSIX.
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}

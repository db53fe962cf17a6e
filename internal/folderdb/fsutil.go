// Filesystem helpers: atomic replacement and tolerant removal.

package folderdb

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// tmpPrefix marks in-flight writes. Such files are never records.
const tmpPrefix = ".tmp_"

// renameFile is replaced in tests to simulate an interrupted commit.
var renameFile = os.Rename

// writeFileAtomic replaces path with data. A temporary file is written in the
// same directory and renamed over path, so readers observe either the prior
// content or the new content, never a partial write.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	f, err := os.CreateTemp(dir, tmpPrefix+"*")
	if err != nil {
		return fmt.Errorf("failed to create temp file in %s: %w", dir, err)
	}
	tmpPath := f.Name()
	if _, err := f.Write(data); err != nil {
		return errors.Join(fmt.Errorf("failed to write temp file: %w", err), f.Close(), os.Remove(tmpPath))
	}
	if err := f.Sync(); err != nil {
		return errors.Join(fmt.Errorf("failed to sync temp file: %w", err), f.Close(), os.Remove(tmpPath))
	}
	if err := f.Close(); err != nil {
		return errors.Join(fmt.Errorf("failed to close temp file: %w", err), os.Remove(tmpPath))
	}
	if err := renameFile(tmpPath, path); err != nil {
		return errors.Join(fmt.Errorf("failed to rename temp file to %s: %w", path, err), os.Remove(tmpPath))
	}
	return nil
}

// removeFile removes path. A missing file is not an error.
func removeFile(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}
	return nil
}

func isTempName(name string) bool {
	return strings.HasPrefix(name, tmpPrefix)
}

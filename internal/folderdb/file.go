package folderdb

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// File is a single JSON value stored at one path. Writing replaces it wholly.
type File interface {
	// Read returns the stored value.
	//
	// Returns ErrNotFound when never written and ErrCorrupt when unparsable.
	Read() (any, error)
	// Write replaces the stored value.
	Write(v any) error
	// Purge deletes the stored value.
	Purge() error
}

type diskFile struct {
	path string
}

func (f *diskFile) Read() (any, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		// A table directory with the same name is not a value.
		if fi, statErr := os.Stat(f.path); statErr == nil && fi.IsDir() {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read file %s: %w", f.path, err)
	}
	return decodeValue(data)
}

func (f *diskFile) Write(v any) error {
	data, err := encodeValue(v)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil { //nolint:gosec // G301: data directories are world readable
		return fmt.Errorf("failed to create directory for %s: %w", f.path, err)
	}
	if err := writeFileAtomic(f.path, data); err != nil {
		return err
	}
	writesTotal.WithLabelValues(kindFile).Inc()
	return nil
}

func (f *diskFile) Purge() error {
	return removeFile(f.path)
}

package folderdb

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Table is a collection of [Record] values keyed by id.
type Table interface {
	// Read returns the record stored under id.
	//
	// Returns ErrInvalidName, ErrNotFound or ErrCorrupt when there is no value.
	Read(id string) (Record, error)
	// ReadAll returns every readable record accepted by match, keyed by id.
	// A nil match accepts all. Unreadable entries are skipped.
	ReadAll(match func(Record) bool) (map[string]Record, error)
	// Write stores r and returns its id, assigning a new one when r has none.
	// The caller's map is not modified.
	Write(r Record) (string, error)
	// Delete removes the record. Deleting a missing record is not an error.
	Delete(id string) error
	// Purge removes every record.
	Purge() error
	// AddObserver registers fn to be called with each record before it is
	// committed.
	AddObserver(fn func(Record))
}

// diskTable stores one JSON object per file in dir.
type diskTable struct {
	dir string
	obs observers[Record]
}

func newDiskTable(dir string) (*diskTable, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:gosec // G301: data directories are world readable
		return nil, fmt.Errorf("failed to create table directory %s: %w", dir, err)
	}
	return &diskTable{dir: dir}, nil
}

func (t *diskTable) Read(id string) (Record, error) {
	if !ValidName(id, false) {
		return nil, ErrInvalidName
	}
	path := filepath.Join(t.dir, id)
	data, err := os.ReadFile(path) //nolint:gosec // G304: id is validated
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		// A nested table directory is not a record.
		if fi, statErr := os.Stat(path); statErr == nil && fi.IsDir() {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read record %s: %w", path, err)
	}
	r, err := decodeRecord(data)
	if err != nil {
		return nil, err
	}
	r[idField] = id
	return r, nil
}

func (t *diskTable) ReadAll(match func(Record) bool) (map[string]Record, error) {
	out := map[string]Record{}
	entries, err := os.ReadDir(t.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return out, nil
		}
		return nil, fmt.Errorf("failed to list table %s: %w", t.dir, err)
	}
	for _, entry := range entries {
		id := entry.Name()
		if entry.IsDir() || isTempName(id) || !ValidName(id, false) {
			continue
		}
		r, err := t.Read(id)
		if err != nil {
			if IsAbsent(err) {
				continue
			}
			return nil, err
		}
		if match == nil || match(r) {
			out[id] = r
		}
	}
	return out, nil
}

func (t *diskTable) Write(r Record) (string, error) {
	r, id, err := withID(r)
	if err != nil {
		return "", err
	}
	t.obs.notify(r)
	data, err := encodeValue(r)
	if err != nil {
		return "", err
	}
	// The directory may have been moved away by an archive.
	if err := os.MkdirAll(t.dir, 0o755); err != nil { //nolint:gosec // G301: data directories are world readable
		return "", fmt.Errorf("failed to create table directory %s: %w", t.dir, err)
	}
	if err := writeFileAtomic(filepath.Join(t.dir, id), data); err != nil {
		return "", err
	}
	writesTotal.WithLabelValues(kindTable).Inc()
	return id, nil
}

func (t *diskTable) Delete(id string) error {
	if !ValidName(id, false) {
		return ErrInvalidName
	}
	return removeFile(filepath.Join(t.dir, id))
}

func (t *diskTable) Purge() error {
	entries, err := os.ReadDir(t.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to list table %s: %w", t.dir, err)
	}
	var errs []error
	for _, entry := range entries {
		// Subdirectories belong to nested handles.
		if entry.IsDir() {
			continue
		}
		if err := removeFile(filepath.Join(t.dir, entry.Name())); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t *diskTable) AddObserver(fn func(Record)) {
	t.obs.add(fn)
}

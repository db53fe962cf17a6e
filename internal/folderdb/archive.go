// Moves live data into the _archive_ namespace.

package folderdb

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Archive moves the table, journal or file called name into the archive
// namespace, where it keeps the same shape under "_archive_/<name>".
//
// When match is set and name is an open table, only the records accepted by
// match are moved, one by one. When match is set and name is an open journal,
// the accepted entries are appended to the archive journal and the live
// journal is rewritten with the others, under the journal's lock so that
// concurrent appends are preserved. match receives records and journal objects
// alike as map[string]any.
//
// Otherwise the whole file or directory is moved. A directory merges into an
// existing archive. A file lands on an existing archive file only when its
// kind is known from an open handle: a journal is appended, a file is
// replaced. An unopened file never overwrites an archive and fails with
// fs.ErrExist. Moving is not atomic across records: a crash midway can leave
// a record in both places.
func (db *Db) Archive(name string, match func(any) bool) error {
	if !ValidName(name, true) {
		return ErrInvalidName
	}
	dstName := archiveFolder + "/" + name
	if match != nil {
		if t, ok := db.tables.Get(name); ok {
			return db.archiveRecords(t, dstName, match)
		}
		if j, ok := db.journals.Get(name); ok {
			return db.archiveEntries(j, dstName, match)
		}
	}
	if db.memory {
		return db.archiveHandles(name)
	}
	return db.archivePath(name, dstName)
}

func (db *Db) archiveRecords(t Table, dstName string, match func(any) bool) error {
	recs, err := t.ReadAll(func(r Record) bool { return match(map[string]any(r)) })
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		return nil
	}
	arc, err := db.Table(dstName)
	if err != nil {
		return err
	}
	for _, id := range slices.Sorted(maps.Keys(recs)) {
		if _, err := arc.Write(recs[id]); err != nil {
			return fmt.Errorf("failed to archive record %s: %w", id, err)
		}
		if err := t.Delete(id); err != nil {
			return fmt.Errorf("failed to delete archived record %s: %w", id, err)
		}
	}
	archivedTotal.WithLabelValues(kindTable).Inc()
	return nil
}

func (db *Db) archiveEntries(j Journal, dstName string, match func(any) bool) error {
	p, ok := j.(partitioner)
	if !ok {
		return fmt.Errorf("journal %s cannot be partitioned", dstName)
	}
	arc, err := db.Journal(dstName)
	if err != nil {
		return err
	}
	err = p.partition(match, func(entries []any) error {
		for _, e := range entries {
			if err := arc.Append(e); err != nil {
				return fmt.Errorf("failed to archive entry: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	archivedTotal.WithLabelValues(kindJournal).Inc()
	return nil
}

// archivePath moves the on-disk file or directory of name.
func (db *Db) archivePath(name, dstName string) error {
	src, dst := db.path(name), db.path(dstName)
	fi, err := os.Stat(src)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to stat %s: %w", src, err)
	}
	kind, mode := kindFile, moveKeep
	j, isJournal := db.journals.Get(name)
	if dj, ok := j.(*diskJournal); ok {
		// Appends must not land in the file while it moves.
		dj.mu.Lock()
		defer dj.mu.Unlock()
	}
	_, isFile := db.files.Get(name)
	switch {
	case fi.IsDir():
		kind = kindTable
	case isJournal:
		kind, mode = kindJournal, moveAppend
	case isFile:
		mode = moveReplace
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil { //nolint:gosec // G301: data directories are world readable
		return fmt.Errorf("failed to create archive directory: %w", err)
	}
	if err := moveTree(src, dst, mode); err != nil {
		return fmt.Errorf("failed to archive %s: %w", name, err)
	}
	archivedTotal.WithLabelValues(kind).Inc()
	return nil
}

// moveMode is what moveTree does when the destination file already exists.
type moveMode int

const (
	// moveKeep fails with fs.ErrExist and leaves both files untouched.
	moveKeep moveMode = iota
	// moveReplace renames over the destination.
	moveReplace
	// moveAppend concatenates the source to the destination.
	moveAppend
)

// moveTree renames src to dst. When dst already exists, directories are merged
// entry by entry, replacing the files inside, and a file is handled per mode.
func moveTree(src, dst string, mode moveMode) error {
	dfi, err := os.Stat(dst)
	if errors.Is(err, os.ErrNotExist) {
		return os.Rename(src, dst)
	}
	if err != nil {
		return err
	}
	sfi, err := os.Stat(src)
	if err != nil {
		return err
	}
	switch {
	case sfi.IsDir() && dfi.IsDir():
		entries, err := os.ReadDir(src)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if err := moveTree(filepath.Join(src, e.Name()), filepath.Join(dst, e.Name()), moveReplace); err != nil {
				return err
			}
		}
		return os.Remove(src)
	case sfi.IsDir() != dfi.IsDir():
		return fmt.Errorf("cannot move %s over %s", src, dst)
	case mode == moveAppend:
		return appendAndRemove(src, dst)
	case mode == moveReplace:
		return os.Rename(src, dst)
	default:
		return fmt.Errorf("%s: %w", dst, fs.ErrExist)
	}
}

func appendAndRemove(src, dst string) error {
	data, err := os.ReadFile(src) //nolint:gosec // G304: path is under the database folder
	if err != nil {
		return err
	}
	if len(data) > 0 && data[len(data)-1] != '\n' {
		data = append(data, '\n')
	}
	f, err := os.OpenFile(dst, os.O_APPEND|os.O_WRONLY, 0o644) //nolint:gosec // G302: journal files are world readable
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		return errors.Join(err, f.Close())
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}

// archiveHandles moves the content of in-memory handles called name, or nested
// under it, into the archive namespace.
func (db *Db) archiveHandles(name string) error {
	under := func(n string) bool {
		return n == name || strings.HasPrefix(n, name+"/")
	}
	var tables, journals, files []string
	db.tables.ForEach(func(n string, _ Table) bool {
		if under(n) {
			tables = append(tables, n)
		}
		return true
	})
	db.journals.ForEach(func(n string, _ Journal) bool {
		if under(n) {
			journals = append(journals, n)
		}
		return true
	})
	db.files.ForEach(func(n string, _ File) bool {
		if under(n) {
			files = append(files, n)
		}
		return true
	})

	all := func(any) bool { return true }
	for _, n := range tables {
		t, _ := db.tables.Get(n)
		if err := db.archiveRecords(t, archiveFolder+"/"+n, all); err != nil {
			return err
		}
	}
	for _, n := range journals {
		j, _ := db.journals.Get(n)
		if err := db.archiveEntries(j, archiveFolder+"/"+n, all); err != nil {
			return err
		}
	}
	for _, n := range files {
		f, _ := db.files.Get(n)
		v, err := f.Read()
		if err != nil {
			if IsAbsent(err) {
				continue
			}
			return err
		}
		arc, err := db.File(archiveFolder + "/" + n)
		if err != nil {
			return err
		}
		if err := arc.Write(v); err != nil {
			return err
		}
		if err := f.Purge(); err != nil {
			return err
		}
		archivedTotal.WithLabelValues(kindFile).Inc()
	}
	return nil
}

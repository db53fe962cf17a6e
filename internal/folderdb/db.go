package folderdb

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/alphadose/haxmap"
)

// Reserved names inside the root folder.
const (
	backupFolder   = "_backup_"
	backupTimeFile = "_backup_time_"
	archiveFolder  = "_archive_"
)

// Options configures a [Db]. The zero value is a disk-backed Db.
type Options struct {
	// InMemory selects the in-process backends for every handle.
	InMemory bool
	// OnBackup is called with the path of every new backup archive.
	OnBackup func(path string)
	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// Db is a database stored in a folder, one table per subfolder.
//
// Handles returned by [Db.Table], [Db.Journal] and [Db.File] are memoized: the
// same name always returns the same handle for the lifetime of the Db.
type Db struct {
	folder   string
	memory   bool
	temp     bool
	onBackup func(string)
	now      func() time.Time

	// Lock-free caches; concurrent first access to a name may build a handle
	// twice, and only one of them is kept.
	tables   *haxmap.Map[string, Table]
	journals *haxmap.Map[string, Journal]
	files    *haxmap.Map[string, File]

	mu      sync.Mutex
	onClose []func()
	closed  bool
}

// New creates a Db rooted at folder.
//
// If folder is empty, a disk-backed Db uses a new temporary folder and an
// in-memory Db uses no folder at all; either way [Db.Close] cleans it up.
func New(folder string, opts *Options) (*Db, error) {
	if opts == nil {
		opts = &Options{}
	}
	db := &Db{
		memory:   opts.InMemory,
		onBackup: opts.OnBackup,
		now:      opts.Now,
		tables:   haxmap.New[string, Table](),
		journals: haxmap.New[string, Journal](),
		files:    haxmap.New[string, File](),
	}
	if db.now == nil {
		db.now = time.Now
	}
	switch {
	case folder != "":
		if err := os.MkdirAll(folder, 0o755); err != nil { //nolint:gosec // G301: data directories are world readable
			return nil, fmt.Errorf("failed to create database folder: %w", err)
		}
		db.folder = filepath.Clean(folder)
	case opts.InMemory:
		db.temp = true
	default:
		dir, err := os.MkdirTemp("", "folderdb-")
		if err != nil {
			return nil, fmt.Errorf("failed to create temporary database folder: %w", err)
		}
		db.folder, db.temp = dir, true
	}
	return db, nil
}

// Folder returns the root folder, or "" for a folderless in-memory Db.
func (db *Db) Folder() string {
	return db.folder
}

// InMemory reports whether handles use the in-process backends.
func (db *Db) InMemory() bool {
	return db.memory
}

// Table returns the table called name.
func (db *Db) Table(name string) (Table, error) {
	if !ValidName(name, true) {
		return nil, ErrInvalidName
	}
	if t, ok := db.tables.Get(name); ok {
		return t, nil
	}
	var t Table
	if db.memory {
		t = newMemTable()
	} else {
		dt, err := newDiskTable(db.path(name))
		if err != nil {
			return nil, err
		}
		t = dt
	}
	t, _ = db.tables.GetOrCompute(name, func() Table { return t })
	return t, nil
}

// Journal returns the journal called name.
func (db *Db) Journal(name string) (Journal, error) {
	if !ValidName(name, true) {
		return nil, ErrInvalidName
	}
	if j, ok := db.journals.Get(name); ok {
		return j, nil
	}
	var j Journal
	if db.memory {
		j = &memJournal{}
	} else {
		dj, err := newDiskJournal(db.path(name))
		if err != nil {
			return nil, err
		}
		j = dj
	}
	j, _ = db.journals.GetOrCompute(name, func() Journal { return j })
	return j, nil
}

// File returns the file called name.
func (db *Db) File(name string) (File, error) {
	if !ValidName(name, true) {
		return nil, ErrInvalidName
	}
	if f, ok := db.files.Get(name); ok {
		return f, nil
	}
	var f File
	if db.memory {
		f = &memFile{}
	} else {
		f = &diskFile{path: db.path(name)}
	}
	f, _ = db.files.GetOrCompute(name, func() File { return f })
	return f, nil
}

// ListFiles returns the sorted, slash-separated paths of every stored file,
// journal and record whose name starts with subfolder + "/".
func (db *Db) ListFiles(subfolder string) ([]string, error) {
	prefix := subfolder + "/"
	var out []string
	add := func(p string) {
		if strings.HasPrefix(p, prefix) {
			out = append(out, p)
		}
	}
	if db.memory {
		db.files.ForEach(func(name string, f File) bool {
			if mf, ok := f.(*memFile); ok && mf.exists() {
				add(name)
			}
			return true
		})
		db.journals.ForEach(func(name string, j Journal) bool {
			if mj, ok := j.(*memJournal); ok && !mj.empty() {
				add(name)
			}
			return true
		})
		db.tables.ForEach(func(name string, t Table) bool {
			if mt, ok := t.(*memTable); ok {
				for _, id := range mt.ids() {
					add(name + "/" + id)
				}
			}
			return true
		})
	} else if db.folder != "" {
		err := filepath.WalkDir(db.folder, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					return nil
				}
				return err
			}
			if d.IsDir() || isTempName(d.Name()) {
				return nil
			}
			rel, err := filepath.Rel(db.folder, path)
			if err != nil {
				return err
			}
			add(filepath.ToSlash(rel))
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", subfolder, err)
		}
	}
	slices.Sort(out)
	return out, nil
}

// OnClose registers fn to be called by [Db.Close]. If the Db is already
// closed, fn is called immediately.
func (db *Db) OnClose(fn func()) {
	db.mu.Lock()
	if db.closed {
		db.mu.Unlock()
		fn()
		return
	}
	db.onClose = append(db.onClose, fn)
	db.mu.Unlock()
}

// Close runs the shutdown callbacks in registration order, then deletes the
// folder if the Db owns a temporary one. Calling Close again does nothing.
func (db *Db) Close() error {
	db.mu.Lock()
	if db.closed {
		db.mu.Unlock()
		return nil
	}
	db.closed = true
	hooks := db.onClose
	db.onClose = nil
	db.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
	if db.temp && db.folder != "" {
		if err := os.RemoveAll(db.folder); err != nil {
			return fmt.Errorf("failed to remove temporary database folder: %w", err)
		}
	}
	return nil
}

// Purge erases the database: every cached handle is purged, then the folder is
// removed, which also takes data of handles that were never opened.
func (db *Db) Purge() error {
	var errs []error
	db.tables.ForEach(func(_ string, t Table) bool {
		errs = append(errs, t.Purge())
		return true
	})
	db.journals.ForEach(func(_ string, j Journal) bool {
		errs = append(errs, j.Purge())
		return true
	})
	db.files.ForEach(func(_ string, f File) bool {
		errs = append(errs, f.Purge())
		return true
	})
	if db.folder != "" {
		if err := os.RemoveAll(db.folder); err != nil {
			errs = append(errs, fmt.Errorf("failed to remove database folder: %w", err))
		}
	}
	return errors.Join(errs...)
}

// path maps a validated handle name to its location under the root folder.
func (db *Db) path(name string) string {
	return filepath.Join(db.folder, filepath.FromSlash(name))
}

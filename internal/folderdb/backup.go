// Snapshot backups of the database folder, with retention.

package folderdb

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/klauspost/compress/zip"
)

// DefaultMaxKeep is the number of backups kept when none is specified.
const DefaultMaxKeep = 50

// backupTimeLayout names default backups so that lexicographic order is
// chronological order.
const backupTimeLayout = "20060102_150405"

// Backup writes a zip snapshot of the database folder into "_backup_" and
// returns its path.
//
// name defaults to the current local time as YYYYMMDD_HHMMSS.zip. Before the
// snapshot is written, the oldest backups (by filename) are deleted so that at
// most maxKeep remain afterwards; maxKeep <= 0 means [DefaultMaxKeep].
//
// A Db without a folder has nothing to back up and returns "".
func (db *Db) Backup(name string, maxKeep int) (string, error) {
	if db.folder == "" {
		return "", nil
	}
	if name != "" && (filepath.Base(name) != name || name == "." || name == "..") {
		return "", fmt.Errorf("backup name %q: %w", name, ErrInvalidName)
	}
	if maxKeep <= 0 {
		maxKeep = DefaultMaxKeep
	}
	start := time.Now()
	dir := filepath.Join(db.folder, backupFolder)
	if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:gosec // G301: data directories are world readable
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}
	if err := pruneBackups(dir, maxKeep-1); err != nil {
		backupsTotal.WithLabelValues("error").Inc()
		return "", err
	}
	if name == "" {
		name = db.now().Format(backupTimeLayout) + ".zip"
	}
	path := filepath.Join(dir, name)
	if err := db.snapshot(path); err != nil {
		backupsTotal.WithLabelValues("error").Inc()
		return "", err
	}
	backupsTotal.WithLabelValues("ok").Inc()
	backupDuration.Observe(time.Since(start).Seconds())
	slog.Info("Created backup", "path", path, "duration", time.Since(start))
	if db.onBackup != nil {
		db.onBackup(path)
	}
	return path, nil
}

// pruneBackups deletes the lexicographically smallest files in dir until at
// most keep remain.
func pruneBackups(dir string, keep int) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to list backups: %w", err)
	}
	var names []string
	for _, e := range entries {
		// In-flight snapshots are not backups yet.
		if !e.IsDir() && !isTempName(e.Name()) {
			names = append(names, e.Name())
		}
	}
	if len(names) <= keep {
		return nil
	}
	slices.Sort(names)
	var errs []error
	for _, n := range names[:len(names)-keep] {
		if err := removeFile(filepath.Join(dir, n)); err != nil {
			errs = append(errs, err)
			continue
		}
		backupsPrunedTotal.Inc()
		slog.Debug("Deleted old backup", "name", n)
	}
	return errors.Join(errs...)
}

// snapshot zips the database folder, except "_backup_", into path. The walk
// takes no consistency snapshot; files changing during it may be captured in
// either state. The archive is written to a temporary file renamed over path
// once complete, so path only ever holds a whole archive.
func (db *Db) snapshot(path string) (err error) {
	f, err := os.CreateTemp(filepath.Dir(path), tmpPrefix+"*")
	if err != nil {
		return fmt.Errorf("failed to create backup: %w", err)
	}
	tmpPath := f.Name()
	defer func() {
		if err != nil {
			err = errors.Join(err, removeFile(tmpPath))
		}
	}()
	zw := zip.NewWriter(f)
	walkErr := filepath.WalkDir(db.folder, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			// Files may disappear while the walk is in progress.
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		rel, err := filepath.Rel(db.folder, p)
		if err != nil {
			return err
		}
		if d.IsDir() {
			if rel == backupFolder {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || isTempName(d.Name()) {
			return nil
		}
		return addToZip(zw, p, filepath.ToSlash(rel))
	})
	if walkErr != nil {
		return errors.Join(fmt.Errorf("failed to write backup: %w", walkErr), zw.Close(), f.Close())
	}
	if err := zw.Close(); err != nil {
		return errors.Join(fmt.Errorf("failed to finalize backup: %w", err), f.Close())
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close backup: %w", err)
	}
	if err := renameFile(tmpPath, path); err != nil {
		return fmt.Errorf("failed to commit backup %s: %w", path, err)
	}
	return nil
}

func addToZip(zw *zip.Writer, path, name string) error {
	src, err := os.Open(path) //nolint:gosec // G304: path is under the database folder
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	defer func() {
		_ = src.Close()
	}()
	info, err := src.Stat()
	if err != nil {
		return err
	}
	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	hdr.Name = name
	hdr.Method = zip.Deflate
	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, src)
	return err
}

// Background loop that backs up the database periodically.

package folderdb

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Defaults for [AutoBackupConfig].
const (
	DefaultBackupInterval   = 3 * time.Hour
	DefaultBackupCheckDelay = 3 * time.Second
)

// AutoBackupConfig configures [Db.AutoBackup]. Zero fields take defaults.
type AutoBackupConfig struct {
	// Interval is the minimum time between two backups.
	Interval time.Duration
	// CheckDelay is how often the loop wakes up to compare the durable last
	// backup time against Interval. It also bounds how long stopping takes.
	CheckDelay time.Duration
	// MaxKeep is the retention passed to [Db.Backup].
	MaxKeep int
}

// AutoBackup starts a background loop calling [Db.Backup] every Interval.
//
// The time of the last backup is kept in the "_backup_time_" file so the
// schedule survives restarts; a fresh Db records the current time first and
// does not back up immediately.
//
// The loop ends when the returned stop function is called, when ctx is
// canceled or when the Db is closed. stop is idempotent and returns once the
// loop has exited, letting an in-flight backup finish. It must not be called
// from [Options.OnBackup].
func (db *Db) AutoBackup(ctx context.Context, cfg AutoBackupConfig) (func(), error) {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultBackupInterval
	}
	if cfg.CheckDelay <= 0 {
		cfg.CheckDelay = DefaultBackupCheckDelay
	}
	f, err := db.File(backupTimeFile)
	if err != nil {
		return nil, err
	}
	if _, err := readBackupTime(f); err != nil {
		if !IsAbsent(err) {
			return nil, err
		}
		if err := writeBackupTime(f, db.now()); err != nil {
			return nil, err
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		db.backupLoop(ctx, f, cfg)
	}()
	var once sync.Once
	stop := func() {
		once.Do(cancel)
		<-done
	}
	db.OnClose(stop)
	return stop, nil
}

func (db *Db) backupLoop(ctx context.Context, f File, cfg AutoBackupConfig) {
	ticker := time.NewTicker(cfg.CheckDelay)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		now := db.now()
		last, err := readBackupTime(f)
		if err != nil && !IsAbsent(err) {
			slog.WarnContext(ctx, "Failed to read last backup time", "err", err)
			continue
		}
		if now.Before(last.Add(cfg.Interval)) {
			continue
		}
		if err := writeBackupTime(f, now); err != nil {
			slog.ErrorContext(ctx, "Failed to record backup time", "err", err)
			continue
		}
		if _, err := db.Backup("", cfg.MaxKeep); err != nil {
			slog.ErrorContext(ctx, "Auto-backup failed", "err", err)
		}
	}
}

// readBackupTime decodes the last backup time, stored as Unix seconds.
// An absent value decodes as the zero time alongside the error.
func readBackupTime(f File) (time.Time, error) {
	v, err := f.Read()
	if err != nil {
		return time.Time{}, err
	}
	secs, ok := v.(float64)
	if !ok {
		return time.Time{}, ErrCorrupt
	}
	return time.UnixMilli(int64(secs * 1000)), nil
}

func writeBackupTime(f File, t time.Time) error {
	return f.Write(float64(t.UnixMilli()) / 1000)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/maruel/folderdb/internal/config"
	"github.com/maruel/folderdb/internal/folderdb"
)

// run keeps the database open until ctx is canceled.
func run(ctx context.Context, stop context.CancelFunc, dataDir string, cfg *config.Config) (err error) {
	db, err := folderdb.New(dataDir, &folderdb.Options{InMemory: cfg.InMemory})
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, db.Close())
	}()
	slog.InfoContext(ctx, "Opened database", "dir", db.Folder(), "memory", db.InMemory())

	if cfg.Backup.Interval > 0 {
		if _, err := db.AutoBackup(ctx, cfg.Backup.AutoBackup()); err != nil {
			return fmt.Errorf("failed to start automatic backups: %w", err)
		}
		slog.InfoContext(ctx, "Automatic backups enabled", "interval", cfg.Backup.Interval.String(), "keep", cfg.Backup.MaxKeep)
	}

	// Watch own executable for modifications (for development restarts)
	if err := watchExecutable(ctx, stop); err != nil {
		return fmt.Errorf("failed to watch executable: %w", err)
	}

	serverErr := make(chan error, 1)
	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           mux,
			BaseContext:       func(_ net.Listener) context.Context { return ctx },
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			slog.InfoContext(ctx, "Serving metrics", "addr", cfg.MetricsAddr)
			serverErr <- metricsServer.ListenAndServe()
		}()
	}

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	// A burst of SIGHUP must not fill the disk with archives.
	limiter := rate.NewLimiter(rate.Every(time.Minute), 1)

	for {
		select {
		case <-hup:
			if db.InMemory() {
				slog.WarnContext(ctx, "Ignoring backup request, in-memory data is not in the data directory")
				continue
			}
			if !limiter.Allow() {
				slog.WarnContext(ctx, "Ignoring backup request, last one was less than a minute ago")
				continue
			}
			if _, err := db.Backup("", cfg.Backup.MaxKeep); err != nil {
				slog.ErrorContext(ctx, "Backup failed", "err", err)
			}
		case err := <-serverErr:
			if !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server error: %w", err)
			}
			return nil
		case <-ctx.Done():
			slog.InfoContext(ctx, "Shutting down")
			if metricsServer != nil {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := metricsServer.Shutdown(shutdownCtx); err != nil {
					return fmt.Errorf("shutdown error: %w", err)
				}
			}
			return nil
		}
	}
}

// Package main is the command line front end of folderdb.
//
// folderdb stores tables, journals and files as plain JSON under a data
// directory. "folderdb run" keeps the database open, backs it up on a schedule
// and on SIGHUP, and optionally serves Prometheus metrics. The other commands
// inspect or maintain a data directory in place. Configuration is read from
// folderdb.yaml in the data directory and CLI flags.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"

	"github.com/maruel/folderdb/internal/config"
	"github.com/maruel/folderdb/internal/folderdb"
)

func main() {
	if err := mainImpl(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "folderdb: %v\n", err)
		os.Exit(1)
	}
}

func mainImpl() error {
	version := flag.Bool("version", false, "Print version and exit")
	dataDir := flag.String("data-dir", "./data", "Data directory")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	metricsAddr := flag.String("metrics", "", "Address serving Prometheus metrics for run (e.g., localhost:9090)")
	inMemory := flag.Bool("in-memory", false, "Keep data in memory for run; nothing is persisted, requires backup.interval: 0")
	maxKeep := flag.Int("max-keep", folderdb.DefaultMaxKeep, "Number of backups to retain")
	flag.Usage = usage
	flag.Parse()

	if *version {
		fmt.Print(readBuildInfo())
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()
	ll := &slog.LevelVar{}
	ll.Set(slog.LevelInfo)
	slog.SetDefault(newLogger(ll))

	fileCfg, err := config.Load(*dataDir)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", config.FileName, err)
	}

	// Flags override folderdb.yaml only when explicitly set.
	cfg := fileCfg.Clone()
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "log-level":
			cfg.LogLevel = *logLevel
		case "metrics":
			cfg.MetricsAddr = *metricsAddr
		case "in-memory":
			cfg.InMemory = *inMemory
		case "max-keep":
			cfg.Backup.MaxKeep = *maxKeep
		}
	})
	if err := cfg.Validate(); err != nil {
		return err
	}
	level, err := cfg.Level()
	if err != nil {
		return err
	}
	ll.Set(level)

	args := flag.Args()
	if len(args) == 0 {
		usage()
		return errors.New("missing command")
	}
	if args[0] == "run" {
		if len(args) != 1 {
			return fmt.Errorf("unknown arguments: %v", args[1:])
		}
		return run(ctx, stop, *dataDir, &cfg)
	}
	return command(ctx, *dataDir, &cfg, args, os.Stdout)
}

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintf(out, "usage: folderdb [flags] <command> [args]\n\n")
	fmt.Fprintf(out, "commands:\n")
	fmt.Fprintf(out, "  run               keep the database open with automatic backups\n")
	fmt.Fprintf(out, "  backup [name]     write a backup archive now\n")
	fmt.Fprintf(out, "  archive [-journal] <name>\n")
	fmt.Fprintf(out, "                    move a table, journal or file into _archive_; an existing\n")
	fmt.Fprintf(out, "                    archived file is kept unless -journal appends to it\n")
	fmt.Fprintf(out, "  ls <subfolder>    list stored paths under subfolder\n")
	fmt.Fprintf(out, "  cat <name>        print a file's value\n")
	fmt.Fprintf(out, "  config-schema     print the JSON schema of %s\n\n", config.FileName)
	fmt.Fprintf(out, "flags:\n")
	flag.PrintDefaults()
}

func newLogger(ll *slog.LevelVar) *slog.Logger {
	// Skip timestamps when running under systemd (it adds its own).
	underSystemd := os.Getenv("JOURNAL_STREAM") != ""
	return slog.New(tint.NewHandler(colorable.NewColorable(os.Stderr), &tint.Options{
		Level:      ll,
		TimeFormat: "15:04:05.000", // Like time.TimeOnly plus milliseconds.
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if underSystemd && a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			if dropZero(a) {
				return slog.Attr{}
			}
			return a
		},
	}))
}

// dropZero reports whether a carries the zero value of a kind folderdb logs,
// which only clutters the line.
func dropZero(a slog.Attr) bool {
	switch v := a.Value.Any().(type) {
	case nil:
		return true
	case string:
		return v == ""
	case bool:
		return !v
	case time.Duration:
		return v == 0
	default:
		return false
	}
}

// buildInfo describes the running binary.
type buildInfo struct {
	Version   string
	GoVersion string
	Revision  string
	Modified  bool
}

func readBuildInfo() buildInfo {
	b := buildInfo{Version: "unknown", GoVersion: "unknown", Revision: "unknown"}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return b
	}
	b.Version = info.Main.Version
	if b.Version == "" || b.Version == "(devel)" {
		b.Version = "dev"
	}
	b.GoVersion = info.GoVersion
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			b.Revision = s.Value
		case "vcs.modified":
			b.Modified = s.Value == "true"
		}
	}
	return b
}

func (b buildInfo) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "folderdb %s\n  Go version: %s\n  Revision:   %s\n", b.Version, b.GoVersion, b.Revision)
	if b.Modified {
		sb.WriteString("  Modified:   true\n")
	}
	return sb.String()
}

// watchExecutable watches the current executable for modifications and calls
// stop to trigger graceful shutdown when detected.
func watchExecutable(ctx context.Context, stop context.CancelFunc) error {
	exe, err := os.Executable()
	if err != nil {
		return err
	}
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(exe); err != nil {
		_ = w.Close()
		return err
	}
	go func() {
		defer func() { _ = w.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Chmod) {
					slog.InfoContext(ctx, "Executable modified, initiating shutdown")
					stop()
					return
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.WarnContext(ctx, "Error watching executable", "err", err)
			}
		}
	}()
	return nil
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"

	"github.com/goccy/go-json"

	"github.com/maruel/folderdb/internal/config"
	"github.com/maruel/folderdb/internal/folderdb"
)

// command runs a one-shot command against the on-disk database. in_memory
// only applies to run.
func command(ctx context.Context, dataDir string, cfg *config.Config, args []string, w io.Writer) (err error) {
	if args[0] == "config-schema" {
		if len(args) != 1 {
			return fmt.Errorf("unknown arguments: %v", args[1:])
		}
		return printJSON(w, config.Schema())
	}

	db, err := folderdb.New(dataDir, nil)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, db.Close())
	}()

	switch args[0] {
	case "backup":
		if len(args) > 2 {
			return fmt.Errorf("unknown arguments: %v", args[2:])
		}
		name := ""
		if len(args) == 2 {
			name = args[1]
		}
		path, err := db.Backup(name, cfg.Backup.MaxKeep)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, path)
		return err
	case "archive":
		flags := flag.NewFlagSet("archive", flag.ContinueOnError)
		flags.SetOutput(io.Discard)
		journal := flags.Bool("journal", false, "append to an existing archived journal")
		if err := flags.Parse(args[1:]); err != nil {
			return fmt.Errorf("archive: %w", err)
		}
		name, err := oneArg(append([]string{"archive"}, flags.Args()...))
		if err != nil {
			return err
		}
		if *journal {
			// An open journal is appended to its archive instead of refusing
			// to overwrite it.
			if _, err := db.Journal(name); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
		}
		if err := db.Archive(name, nil); err != nil {
			return fmt.Errorf("failed to archive %s: %w", name, err)
		}
		slog.InfoContext(ctx, "Archived", "name", name)
		return nil
	case "ls":
		sub, err := oneArg(args)
		if err != nil {
			return err
		}
		paths, err := db.ListFiles(sub)
		if err != nil {
			return err
		}
		for _, p := range paths {
			if _, err := fmt.Fprintln(w, p); err != nil {
				return err
			}
		}
		return nil
	case "cat":
		name, err := oneArg(args)
		if err != nil {
			return err
		}
		f, err := db.File(name)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		v, err := f.Read()
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		return printJSON(w, v)
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func oneArg(args []string) (string, error) {
	if len(args) != 2 {
		return "", fmt.Errorf("%s takes exactly one argument", args[0])
	}
	return args[1], nil
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

package folderdb

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFile(t *testing.T) {
	for _, m := range modes {
		t.Run(m.name, func(t *testing.T) {
			db := newTestDb(t, &Options{InMemory: m.memory})
			f, err := db.File("settings/site")
			if err != nil {
				t.Fatal(err)
			}
			if _, err := f.Read(); !errors.Is(err, ErrNotFound) {
				t.Errorf("Read() before Write error = %v, want ErrNotFound", err)
			}
			values := []any{
				map[string]any{"title": "x", "tags": []any{"a"}},
				[]any{1, 2},
				"plain",
				42,
				nil,
			}
			wants := []any{
				map[string]any{"title": "x", "tags": []any{"a"}},
				[]any{1.0, 2.0},
				"plain",
				42.0,
				nil,
			}
			for i, v := range values {
				if err := f.Write(v); err != nil {
					t.Fatal(err)
				}
				got, err := f.Read()
				if err != nil {
					t.Fatal(err)
				}
				if diff := cmp.Diff(wants[i], got); diff != "" {
					t.Errorf("Read() #%d mismatch (-want +got):\n%s", i, diff)
				}
			}
			if err := f.Purge(); err != nil {
				t.Fatal(err)
			}
			if _, err := f.Read(); !errors.Is(err, ErrNotFound) {
				t.Errorf("Read() after Purge error = %v, want ErrNotFound", err)
			}
			if err := f.Purge(); err != nil {
				t.Errorf("second Purge(): %v", err)
			}
		})
	}

	t.Run("corrupt", func(t *testing.T) {
		db := newTestDb(t, nil)
		f, _ := db.File("blob")
		if err := os.WriteFile(filepath.Join(db.Folder(), "blob"), []byte("{oops"), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := f.Read(); !errors.Is(err, ErrCorrupt) {
			t.Errorf("Read() error = %v, want ErrCorrupt", err)
		}
	})

	t.Run("shadowed by table", func(t *testing.T) {
		db := newTestDb(t, nil)
		users, _ := db.Table("users")
		if _, err := users.Write(Record{"id": "a"}); err != nil {
			t.Fatal(err)
		}
		f, _ := db.File("users")
		if _, err := f.Read(); !errors.Is(err, ErrNotFound) {
			t.Errorf("Read() of a table directory error = %v, want ErrNotFound", err)
		}
	})

	t.Run("interrupted write", func(t *testing.T) {
		db := newTestDb(t, nil)
		f, _ := db.File("blob")
		if err := f.Write("old"); err != nil {
			t.Fatal(err)
		}
		renameFile = func(string, string) error { return errors.New("interrupted") }
		t.Cleanup(func() { renameFile = os.Rename })
		if err := f.Write("new"); err == nil {
			t.Fatal("Write() succeeded despite failed rename")
		}
		renameFile = os.Rename
		got, err := f.Read()
		if err != nil || got != "old" {
			t.Errorf("Read() = %v, %v, want old", got, err)
		}
		entries, err := os.ReadDir(db.Folder())
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != 1 {
			t.Errorf("folder holds %d entries, want 1", len(entries))
		}
	})
}

package folderdb

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNew(t *testing.T) {
	t.Run("creates folder", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "a", "b")
		db, err := New(dir, nil)
		if err != nil {
			t.Fatal(err)
		}
		if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
			t.Errorf("folder not created: %v", err)
		}
		if err := db.Close(); err != nil {
			t.Fatal(err)
		}
		if _, err := os.Stat(dir); err != nil {
			t.Errorf("Close() removed a caller-owned folder: %v", err)
		}
	})

	t.Run("temporary folder", func(t *testing.T) {
		db, err := New("", nil)
		if err != nil {
			t.Fatal(err)
		}
		dir := db.Folder()
		if dir == "" {
			t.Fatal("Folder() is empty")
		}
		users, _ := db.Table("users")
		if _, err := users.Write(Record{"id": "a"}); err != nil {
			t.Fatal(err)
		}
		if err := db.Close(); err != nil {
			t.Fatal(err)
		}
		if _, err := os.Stat(dir); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("Close() left temporary folder behind: %v", err)
		}
	})

	t.Run("folderless memory", func(t *testing.T) {
		db, err := New("", &Options{InMemory: true})
		if err != nil {
			t.Fatal(err)
		}
		if db.Folder() != "" || !db.InMemory() {
			t.Errorf("Folder() = %q, InMemory() = %v", db.Folder(), db.InMemory())
		}
		path, err := db.Backup("", 0)
		if err != nil || path != "" {
			t.Errorf("Backup() = %q, %v, want no-op", path, err)
		}
		if err := db.Close(); err != nil {
			t.Fatal(err)
		}
	})

	t.Run("memory with folder writes nothing", func(t *testing.T) {
		dir := t.TempDir()
		db, err := New(dir, &Options{InMemory: true})
		if err != nil {
			t.Fatal(err)
		}
		users, _ := db.Table("users")
		if _, err := users.Write(Record{"id": "a"}); err != nil {
			t.Fatal(err)
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != 0 {
			t.Errorf("in-memory Db wrote %d entries to its folder", len(entries))
		}
		if err := db.Close(); err != nil {
			t.Fatal(err)
		}
	})
}

func TestDbHandles(t *testing.T) {
	for _, m := range modes {
		t.Run(m.name, func(t *testing.T) {
			db := newTestDb(t, &Options{InMemory: m.memory})

			t.Run("memoized", func(t *testing.T) {
				t1, _ := db.Table("users")
				t2, _ := db.Table("users")
				if t1 != t2 {
					t.Error("Table() returned distinct handles for the same name")
				}
				j1, _ := db.Journal("events")
				j2, _ := db.Journal("events")
				if j1 != j2 {
					t.Error("Journal() returned distinct handles for the same name")
				}
				f1, _ := db.File("blob")
				f2, _ := db.File("blob")
				if f1 != f2 {
					t.Error("File() returned distinct handles for the same name")
				}
			})

			t.Run("concurrent first access", func(t *testing.T) {
				const n = 16
				got := make([]Table, n)
				var wg sync.WaitGroup
				for i := range n {
					wg.Go(func() {
						tbl, err := db.Table("race")
						if err != nil {
							t.Error(err)
						}
						got[i] = tbl
					})
				}
				wg.Wait()
				for i := 1; i < n; i++ {
					if got[i] != got[0] {
						t.Fatal("concurrent Table() calls returned distinct handles")
					}
				}
			})

			t.Run("invalid names", func(t *testing.T) {
				for _, name := range []string{"", "../x", "Users", "a//b", "/abs", "a/"} {
					if _, err := db.Table(name); !errors.Is(err, ErrInvalidName) {
						t.Errorf("Table(%q) error = %v, want ErrInvalidName", name, err)
					}
					if _, err := db.Journal(name); !errors.Is(err, ErrInvalidName) {
						t.Errorf("Journal(%q) error = %v, want ErrInvalidName", name, err)
					}
					if _, err := db.File(name); !errors.Is(err, ErrInvalidName) {
						t.Errorf("File(%q) error = %v, want ErrInvalidName", name, err)
					}
				}
			})
		})
	}
}

func TestListFiles(t *testing.T) {
	for _, m := range modes {
		t.Run(m.name, func(t *testing.T) {
			db := newTestDb(t, &Options{InMemory: m.memory})
			users, _ := db.Table("data/users")
			for _, id := range []string{"b", "a"} {
				if _, err := users.Write(Record{"id": id}); err != nil {
					t.Fatal(err)
				}
			}
			events, _ := db.Journal("data/events")
			if err := events.Append("x"); err != nil {
				t.Fatal(err)
			}
			notes, _ := db.File("data/notes/today")
			if err := notes.Write("hi"); err != nil {
				t.Fatal(err)
			}
			other, _ := db.File("other")
			if err := other.Write(1); err != nil {
				t.Fatal(err)
			}
			// A handle never written to is not listed.
			if _, err := db.File("data/never"); err != nil {
				t.Fatal(err)
			}

			got, err := db.ListFiles("data")
			if err != nil {
				t.Fatal(err)
			}
			want := []string{"data/events", "data/notes/today", "data/users/a", "data/users/b"}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("ListFiles() mismatch (-want +got):\n%s", diff)
			}
			got, err = db.ListFiles("data/users")
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff([]string{"data/users/a", "data/users/b"}, got); diff != "" {
				t.Errorf("ListFiles() mismatch (-want +got):\n%s", diff)
			}
			got, err = db.ListFiles("missing")
			if err != nil || len(got) != 0 {
				t.Errorf("ListFiles(missing) = %v, %v", got, err)
			}
		})
	}
}

func TestDbClose(t *testing.T) {
	db, err := New(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}
	var calls []string
	db.OnClose(func() { calls = append(calls, "first") })
	db.OnClose(func() { calls = append(calls, "second") })
	if err := db.Close(); err != nil {
		t.Fatal(err)
	}
	if err := db.Close(); err != nil {
		t.Fatal(err)
	}
	db.OnClose(func() { calls = append(calls, "late") })
	if diff := cmp.Diff([]string{"first", "second", "late"}, calls); diff != "" {
		t.Errorf("close hooks mismatch (-want +got):\n%s", diff)
	}
}

func TestDbPurge(t *testing.T) {
	for _, m := range modes {
		t.Run(m.name, func(t *testing.T) {
			db := newTestDb(t, &Options{InMemory: m.memory})
			users, _ := db.Table("users")
			if _, err := users.Write(Record{"id": "a"}); err != nil {
				t.Fatal(err)
			}
			events, _ := db.Journal("events")
			if err := events.Append("x"); err != nil {
				t.Fatal(err)
			}
			f, _ := db.File("blob")
			if err := f.Write("v"); err != nil {
				t.Fatal(err)
			}
			if err := db.Purge(); err != nil {
				t.Fatal(err)
			}
			if _, err := users.Read("a"); !errors.Is(err, ErrNotFound) {
				t.Errorf("table Read() after Purge error = %v", err)
			}
			if got := collect(t, events.ReadAll(nil)); len(got) != 0 {
				t.Errorf("journal after Purge = %v", got)
			}
			if _, err := f.Read(); !errors.Is(err, ErrNotFound) {
				t.Errorf("file Read() after Purge error = %v", err)
			}
			if !m.memory {
				if _, err := os.Stat(db.Folder()); !errors.Is(err, os.ErrNotExist) {
					t.Errorf("Purge() left the folder: %v", err)
				}
			}
			// Handles stay usable.
			if _, err := users.Write(Record{"id": "b"}); err != nil {
				t.Errorf("Write() after Purge: %v", err)
			}
		})
	}
}

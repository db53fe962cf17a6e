package folderdb

import (
	"iter"
	"sync"
	"testing"
	"time"
)

// modes lists the two backends; tests that do not depend on the storage
// medium run against both.
var modes = []struct {
	name   string
	memory bool
}{
	{"disk", false},
	{"memory", true},
}

func newTestDb(t *testing.T, opts *Options) *Db {
	t.Helper()
	db, err := New(t.TempDir(), opts)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Error(err)
		}
	})
	return db
}

func collect(t *testing.T, seq iter.Seq2[any, error]) []any {
	t.Helper()
	var out []any
	for v, err := range seq {
		if err != nil {
			t.Fatalf("ReadAll: %v", err)
		}
		out = append(out, v)
	}
	return out
}

// fakeClock is a manually advanced time source for Options.Now.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.Local)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

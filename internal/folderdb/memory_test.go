package folderdb

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMemoryIsolation(t *testing.T) {
	db := newTestDb(t, &Options{InMemory: true})

	t.Run("table", func(t *testing.T) {
		users, _ := db.Table("users")
		in := Record{"id": "a", "tags": []any{"x"}, "meta": map[string]any{"k": "v"}}
		if _, err := users.Write(in); err != nil {
			t.Fatal(err)
		}
		// Mutating the caller's value after the write changes nothing.
		in["tags"].([]any)[0] = "mutated"
		in["meta"].(map[string]any)["k"] = "mutated"

		got, err := users.Read("a")
		if err != nil {
			t.Fatal(err)
		}
		// Mutating a read value changes nothing either.
		got["tags"].([]any)[0] = "again"
		got["extra"] = true

		again, err := users.Read("a")
		if err != nil {
			t.Fatal(err)
		}
		want := Record{"id": "a", "tags": []any{"x"}, "meta": map[string]any{"k": "v"}}
		if diff := cmp.Diff(want, again); diff != "" {
			t.Errorf("Read() mismatch (-want +got):\n%s", diff)
		}
		all, _ := users.ReadAll(nil)
		all["a"]["meta"].(map[string]any)["k"] = "changed"
		again, _ = users.Read("a")
		if diff := cmp.Diff(want, again); diff != "" {
			t.Errorf("Read() after ReadAll mutation mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("journal", func(t *testing.T) {
		events, _ := db.Journal("events")
		in := map[string]any{"list": []any{1}}
		if err := events.Append(in); err != nil {
			t.Fatal(err)
		}
		in["list"] = "mutated"
		for v := range events.ReadAll(nil) {
			v.(map[string]any)["list"].([]any)[0] = "changed"
		}
		want := []any{map[string]any{"list": []any{1.0}}}
		if diff := cmp.Diff(want, collect(t, events.ReadAll(nil))); diff != "" {
			t.Errorf("ReadAll() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("file", func(t *testing.T) {
		f, _ := db.File("blob")
		in := []any{map[string]any{"a": "b"}}
		if err := f.Write(in); err != nil {
			t.Fatal(err)
		}
		in[0].(map[string]any)["a"] = "mutated"
		got, _ := f.Read()
		got.([]any)[0].(map[string]any)["a"] = "changed"
		got, err := f.Read()
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff([]any{map[string]any{"a": "b"}}, got); diff != "" {
			t.Errorf("Read() mismatch (-want +got):\n%s", diff)
		}
	})
}

// TestBackendEquivalence runs the same operations against both backends and
// expects identical observations.
func TestBackendEquivalence(t *testing.T) {
	type point struct {
		X int     `json:"x"`
		Y float64 `json:"y,omitempty"`
	}
	scenario := func(t *testing.T, db *Db) map[string]any {
		out := map[string]any{}
		users, _ := db.Table("users")
		if _, err := users.Write(Record{"id": "a", "n": 1, "p": point{X: 3}}); err != nil {
			t.Fatal(err)
		}
		if _, err := users.Write(Record{"id": "b", "list": []int{1, 2}}); err != nil {
			t.Fatal(err)
		}
		if _, err := users.Write(Record{"id": "c"}); err != nil {
			t.Fatal(err)
		}
		if err := users.Delete("c"); err != nil {
			t.Fatal(err)
		}
		a, err := users.Read("a")
		out["read"], out["readErr"] = a, err
		_, err = users.Read("c")
		out["deletedErr"] = err
		all, err := users.ReadAll(nil)
		if err != nil {
			t.Fatal(err)
		}
		out["all"] = all

		events, _ := db.Journal("logs/events")
		for _, e := range []any{point{X: 1}, "s", 2, nil} {
			if err := events.Append(e); err != nil {
				t.Fatal(err)
			}
		}
		out["journal"] = collect(t, events.ReadAll(nil))

		f, _ := db.File("logs/state")
		if err := f.Write(map[string]any{"ok": true, "n": int64(7)}); err != nil {
			t.Fatal(err)
		}
		out["file"], _ = f.Read()

		list, err := db.ListFiles("logs")
		if err != nil {
			t.Fatal(err)
		}
		out["list"] = list
		return out
	}

	disk := scenario(t, newTestDb(t, nil))
	mem := scenario(t, newTestDb(t, &Options{InMemory: true}))
	if diff := cmp.Diff(disk, mem, cmp.Comparer(func(a, b error) bool { return a == b })); diff != "" {
		t.Errorf("backends differ (-disk +memory):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"logs/events", "logs/state"}, mem["list"]); diff != "" {
		t.Errorf("ListFiles() mismatch (-want +got):\n%s", diff)
	}
}

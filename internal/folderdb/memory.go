// In-process variants of Table, Journal and File.
//
// Values are normalized through JSON on the way in and deep copied on the way
// out, so a caller holding a value can never observe or cause a mutation of
// the stored state, and reads return exactly what the disk variants would.

package folderdb

import (
	"iter"
	"slices"
	"sync"
)

type memTable struct {
	mu   sync.RWMutex
	rows map[string]Record
	obs  observers[Record]
}

func newMemTable() *memTable {
	return &memTable{rows: map[string]Record{}}
}

func (t *memTable) Read(id string) (Record, error) {
	if !ValidName(id, false) {
		return nil, ErrInvalidName
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, ok := t.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	return r.Clone(), nil
}

func (t *memTable) ReadAll(match func(Record) bool) (map[string]Record, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]Record, len(t.rows))
	for id, r := range t.rows {
		c := r.Clone()
		if match == nil || match(c) {
			out[id] = c
		}
	}
	return out, nil
}

func (t *memTable) Write(r Record) (string, error) {
	r, id, err := withID(r)
	if err != nil {
		return "", err
	}
	t.obs.notify(r)
	stored, err := normalizeRecord(r)
	if err != nil {
		return "", err
	}
	t.mu.Lock()
	t.rows[id] = stored
	t.mu.Unlock()
	writesTotal.WithLabelValues(kindTable).Inc()
	return id, nil
}

func (t *memTable) Delete(id string) error {
	if !ValidName(id, false) {
		return ErrInvalidName
	}
	t.mu.Lock()
	delete(t.rows, id)
	t.mu.Unlock()
	return nil
}

func (t *memTable) Purge() error {
	t.mu.Lock()
	clear(t.rows)
	t.mu.Unlock()
	return nil
}

func (t *memTable) AddObserver(fn func(Record)) {
	t.obs.add(fn)
}

// ids returns the sorted ids of all records.
func (t *memTable) ids() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ids := make([]string, 0, len(t.rows))
	for id := range t.rows {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

//

type memJournal struct {
	mu      sync.Mutex
	entries []any
	obs     observers[any]
}

func (j *memJournal) Append(entry any) error {
	j.obs.notify(entry)
	v, err := normalize(entry)
	if err != nil {
		return err
	}
	j.mu.Lock()
	j.entries = append(j.entries, v)
	j.mu.Unlock()
	writesTotal.WithLabelValues(kindJournal).Inc()
	return nil
}

func (j *memJournal) ReadAll(match func(any) bool) iter.Seq2[any, error] {
	return func(yield func(any, error) bool) {
		// Entries are never mutated in place, so the snapshot stays valid
		// after the lock is released.
		j.mu.Lock()
		snapshot := j.entries[:len(j.entries):len(j.entries)]
		j.mu.Unlock()
		for _, e := range snapshot {
			v := cloneValue(e)
			if match == nil || match(v) {
				if !yield(v, nil) {
					return
				}
			}
		}
	}
}

func (j *memJournal) partition(match func(any) bool, moved func([]any) error) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	var taken, kept []any
	for _, e := range j.entries {
		if match(cloneValue(e)) {
			taken = append(taken, cloneValue(e))
		} else {
			kept = append(kept, e)
		}
	}
	if len(taken) == 0 {
		return nil
	}
	if err := moved(taken); err != nil {
		return err
	}
	j.entries = kept
	return nil
}

func (j *memJournal) Purge() error {
	j.mu.Lock()
	j.entries = nil
	j.mu.Unlock()
	return nil
}

func (j *memJournal) AddObserver(fn func(any)) {
	j.obs.add(fn)
}

func (j *memJournal) empty() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.entries) == 0
}

//

type memFile struct {
	mu    sync.RWMutex
	value any
	set   bool
}

func (f *memFile) Read() (any, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if !f.set {
		return nil, ErrNotFound
	}
	return cloneValue(f.value), nil
}

func (f *memFile) Write(v any) error {
	stored, err := normalize(v)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.value, f.set = stored, true
	f.mu.Unlock()
	writesTotal.WithLabelValues(kindFile).Inc()
	return nil
}

func (f *memFile) Purge() error {
	f.mu.Lock()
	f.value, f.set = nil, false
	f.mu.Unlock()
	return nil
}

func (f *memFile) exists() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.set
}

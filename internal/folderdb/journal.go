package folderdb

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"
	"sync"
)

// Journal is an append-only sequence of JSON values. Physical append order is
// the only order; entries have no identity.
type Journal interface {
	// Append adds entry at the end of the journal.
	Append(entry any) error
	// ReadAll iterates the entries accepted by match in append order. A nil
	// match accepts all. Unparsable entries are skipped. An environment
	// failure is yielded once, as the last pair.
	ReadAll(match func(any) bool) iter.Seq2[any, error]
	// Purge deletes every entry.
	Purge() error
	// AddObserver registers fn to be called with each entry before it is
	// appended.
	AddObserver(fn func(any))
}

// partitioner is implemented by journals that can move entries out under a
// single lock, so concurrent appends are neither lost nor archived twice.
type partitioner interface {
	// partition calls moved with the entries accepted by match, then rewrites
	// the journal without them. Nothing is rewritten if moved fails.
	partition(match func(any) bool, moved func([]any) error) error
}

// diskJournal stores one compact JSON value per line.
type diskJournal struct {
	path string
	// mu serializes appends with partition. Other processes are not
	// coordinated.
	mu  sync.Mutex
	obs observers[any]
}

func newDiskJournal(path string) (*diskJournal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil { //nolint:gosec // G301: data directories are world readable
		return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	return &diskJournal{path: path}, nil
}

func (j *diskJournal) Append(entry any) error {
	j.obs.notify(entry)
	data, err := encodeValue(entry)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	j.mu.Lock()
	defer j.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(j.path), 0o755); err != nil { //nolint:gosec // G301: data directories are world readable
		return fmt.Errorf("failed to create directory for %s: %w", j.path, err)
	}
	f, err := os.OpenFile(j.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) //nolint:gosec // G302: journal files are world readable
	if err != nil {
		return fmt.Errorf("failed to open journal for append: %w", err)
	}
	// One write call per entry; the line is the unit of atomicity.
	if _, err := f.Write(data); err != nil {
		return errors.Join(fmt.Errorf("failed to append entry: %w", err), f.Close())
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close journal: %w", err)
	}
	writesTotal.WithLabelValues(kindJournal).Inc()
	return nil
}

func (j *diskJournal) ReadAll(match func(any) bool) iter.Seq2[any, error] {
	return func(yield func(any, error) bool) {
		for line, err := range j.lines() {
			if err != nil {
				yield(nil, err)
				return
			}
			v, err := decodeValue(line)
			if err != nil {
				continue
			}
			if match == nil || match(v) {
				if !yield(v, nil) {
					return
				}
			}
		}
	}
}

// lines iterates the non-blank lines of the journal file.
func (j *diskJournal) lines() iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		f, err := os.Open(j.path)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				yield(nil, fmt.Errorf("failed to open journal %s: %w", j.path, err))
			}
			return
		}
		defer func() {
			_ = f.Close()
		}()
		r := bufio.NewReader(f)
		for {
			line, err := r.ReadBytes('\n')
			if len(bytes.TrimSpace(line)) > 0 {
				if !yield(line, nil) {
					return
				}
			}
			if err != nil {
				if !errors.Is(err, io.EOF) {
					yield(nil, fmt.Errorf("failed to read journal %s: %w", j.path, err))
				}
				return
			}
		}
	}
}

func (j *diskJournal) partition(match func(any) bool, moved func([]any) error) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	var taken []any
	var kept bytes.Buffer
	for line, err := range j.lines() {
		if err != nil {
			return err
		}
		v, err := decodeValue(line)
		if err != nil {
			continue
		}
		if match(v) {
			taken = append(taken, v)
			continue
		}
		kept.Write(bytes.TrimRight(line, "\r\n"))
		kept.WriteByte('\n')
	}
	if len(taken) == 0 {
		return nil
	}
	if err := moved(taken); err != nil {
		return err
	}
	if kept.Len() == 0 {
		return removeFile(j.path)
	}
	return writeFileAtomic(j.path, kept.Bytes())
}

func (j *diskJournal) Purge() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return removeFile(j.path)
}

func (j *diskJournal) AddObserver(fn func(any)) {
	j.obs.add(fn)
}

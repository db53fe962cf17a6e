// Defines Record, id generation and the JSON codec shared by all backends.

package folderdb

import (
	"fmt"
	"maps"
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// idField is the record field that carries the record's key.
const idField = "id"

// idLen is the length of ids generated by [NewID].
const idLen = 16

// Record is a structured value stored in a [Table]. Its "id" field is the key
// and is injected from the filename on read.
type Record map[string]any

// ID returns the record's id, or "" when unset or not a string.
func (r Record) ID() string {
	s, _ := r[idField].(string)
	return s
}

// Clone returns a deep copy of the record's maps and slices. Other values are
// shared with the original.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = cloneValue(v)
	}
	return out
}

// NewID returns a 16 character random lowercase hexadecimal identifier.
//
// Collisions are not checked; 64 random bits make them negligible.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:idLen]
}

// withID returns r if it already carries an id, or a shallow copy of r holding
// a freshly generated one. r itself is never modified.
func withID(r Record) (Record, string, error) {
	v, ok := r[idField]
	if !ok || v == nil || v == "" {
		out := make(Record, len(r)+1)
		maps.Copy(out, r)
		id := NewID()
		out[idField] = id
		return out, id, nil
	}
	id, ok := v.(string)
	if !ok || !ValidName(id, false) {
		return nil, "", fmt.Errorf("record id %v: %w", v, ErrInvalidName)
	}
	return r, id, nil
}

func encodeValue(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal value: %w", err)
	}
	return data, nil
}

// decodeRecord parses a record file. Anything but a JSON object is corrupt.
func decodeRecord(data []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil || r == nil {
		return nil, ErrCorrupt
	}
	return r, nil
}

func decodeValue(data []byte) (any, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, ErrCorrupt
	}
	return v, nil
}

// normalize converts v into the shape it would have after a trip through
// disk: numbers become float64, structs become maps, and values that cannot
// be serialized fail the same way.
func normalize(v any) (any, error) {
	data, err := encodeValue(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal value: %w", err)
	}
	return out, nil
}

func normalizeRecord(r Record) (Record, error) {
	data, err := encodeValue(r)
	if err != nil {
		return nil, err
	}
	var out Record
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record: %w", err)
	}
	return out, nil
}

// cloneValue deep copies the JSON containers of v.
func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = cloneValue(e)
		}
		return out
	case Record:
		return t.Clone()
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

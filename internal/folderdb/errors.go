package folderdb

import "errors"

var (
	// ErrInvalidName is returned when a caller-supplied name fails [ValidName].
	ErrInvalidName = errors.New("invalid name")
	// ErrNotFound is returned when the requested value does not exist.
	ErrNotFound = errors.New("not found")
	// ErrCorrupt is returned when stored content cannot be parsed.
	ErrCorrupt = errors.New("corrupt content")
)

// IsAbsent reports whether err means "no value": an invalid name, missing
// data or unparsable data. Environment failures are not absent.
func IsAbsent(err error) bool {
	return errors.Is(err, ErrInvalidName) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrCorrupt)
}

package folderdb

import "regexp"

var (
	pathNameRe    = regexp.MustCompile(`^([0-9a-z_]+)(/[0-9a-z_]+)*$`)
	segmentNameRe = regexp.MustCompile(`^[0-9a-z_]+$`)
)

// ValidName reports whether name is an acceptable identifier.
//
// With paths set, name may contain '/'-separated segments (handle names).
// Without it, name must be a single segment (record ids). Neither form can
// start with '/', contain "..", or use characters outside [0-9a-z_].
func ValidName(name string, paths bool) bool {
	if paths {
		return pathNameRe.MatchString(name)
	}
	return segmentNameRe.MatchString(name)
}

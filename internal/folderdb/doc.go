// Package folderdb provides an embedded database stored as a plain directory tree.
//
// # Overview
//
// A [Db] owns a root folder and hands out named handles:
//
//   - [Table]: a directory with one JSON object file per [Record], keyed by id.
//   - [Journal]: a single file of newline-delimited JSON entries, append-only.
//   - [File]: a single JSON value at one path.
//
// Handles are created on first access and memoized for the lifetime of the Db.
// A Db created with [Options.InMemory] uses in-process variants of the same
// three contracts; values cross the handle boundary as deep copies.
//
// # On-disk layout
//
//	<root>/<table>/<id>          one JSON object per record
//	<root>/<journal>             one JSON value per line
//	<root>/<file>                one JSON value
//	<root>/_backup_/<ts>.zip     snapshots, see [Db.Backup]
//	<root>/_archive_/<name>      data moved out of live storage, see [Db.Archive]
//
// # Errors
//
// Invalid names, missing data and unparsable data are reported with the
// sentinels [ErrInvalidName], [ErrNotFound] and [ErrCorrupt]. Use [IsAbsent]
// to treat all three as "no value". Filesystem failures are returned wrapped
// and are never retried.
//
// # Concurrency
//
// Record writes are atomic per file (temp file + rename) with last-write-wins
// semantics across writers. Journal appends are a single append-mode write each.
// There is no cross-file consistency; a backup taken during writes may capture a
// mix of old and new files.
package folderdb

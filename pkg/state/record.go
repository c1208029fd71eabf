package state

import (
	"sort"
	"strings"
)

// SignatureUnknown marks a record whose remote contents are unconfirmed: a
// mutation was started but its outcome never committed. Records carrying it
// are always re-verified by content hash on the next run.
const SignatureUnknown = "unknown"

// FileRecord is one tracked relative path: the durable belief about what
// the remote side holds for it.
type FileRecord struct {
	// Path is the relative, forward-slash separated path of the file.
	Path string

	// Timestamp is the change-detection token of the local file at the
	// last confirmed upload.
	Timestamp Timestamp

	// Signature is the hex content hash confirmed present on the remote
	// side, or SignatureUnknown.
	Signature string
}

// SignatureKnown returns whether the record's remote contents were
// confirmed by a commit entry.
func (rec FileRecord) SignatureKnown() bool {
	return rec.Signature != SignatureUnknown
}

// RecordedState is the full mapping of tracked paths: remote truth as last
// known. It is owned by the Store; other components operate on snapshots.
type RecordedState map[string]FileRecord

// Set adds or replaces the record for rec.Path.
func (rs RecordedState) Set(rec FileRecord) {
	rs[rec.Path] = rec
}

// Remove drops the record for path.
func (rs RecordedState) Remove(path string) {
	delete(rs, path)
}

// Paths returns the tracked paths in ascending order.
func (rs RecordedState) Paths() []string {
	paths := make([]string, 0, len(rs))
	for path := range rs {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// Copy returns an independent copy of the state.
func (rs RecordedState) Copy() RecordedState {
	stateCopy := make(RecordedState, len(rs))
	for path, rec := range rs {
		stateCopy[path] = rec
	}
	return stateCopy
}

// DirInUse returns whether any tracked path lives under dir. Directories
// are never stored; their lifecycle is inferred from the tracked files.
func (rs RecordedState) DirInUse(dir string) bool {
	prefix := dir + "/"
	for path := range rs {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// ParentDir returns the directory containing path, or "" for a top-level
// path. Paths use forward slashes.
func ParentDir(path string) string {
	idx := strings.LastIndex(path, "/")
	if idx < 0 {
		return ""
	}
	return path[:idx]
}

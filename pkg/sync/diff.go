// Package sync computes and applies the plan that makes the remote side
// match the local tree: which files to delete or upload, and which
// directories to create or prune along the way.
package sync

import (
	log "github.com/sirupsen/logrus"

	"github.com/sidkik/ftpmirror/pkg/state"
)

// Upload is one planned transfer.
type Upload struct {
	Path      string
	Timestamp state.Timestamp
	Signature string

	// Size is the local byte size, used for progress reporting only.
	Size int64
}

// PlanDeletions returns every tracked path that no longer exists locally,
// in ascending order so nested paths come out deterministically.
func PlanDeletions(localPaths []string, recorded state.RecordedState) []string {
	local := make(map[string]struct{}, len(localPaths))
	for _, path := range localPaths {
		local[path] = struct{}{}
	}

	var deletions []string
	for _, path := range recorded.Paths() {
		if _, ok := local[path]; !ok {
			deletions = append(deletions, path)
		}
	}
	return deletions
}

// Differ decides which local files need uploading. The accessors are
// injected so tests can drive it without touching a filesystem.
type Differ struct {
	Timestamp func(rel string) (state.Timestamp, error)
	Signature func(rel string) (string, error)
	Size      func(rel string) int64
}

// PlanUploads compares each local path against its record. A matching
// timestamp on a confirmed record reuses the recorded signature, trading a
// cheap metadata check for a content hash. A file whose signature still
// matches but whose timestamp moved is not uploaded; its record is
// refreshed instead. Local read failures are logged, skipped, and counted,
// never fatal.
func (d Differ) PlanUploads(localPaths []string, recorded state.RecordedState) (
	uploads []Upload, refreshes []state.FileRecord, localErrs int) {

	for _, path := range localPaths {
		timestamp, err := d.Timestamp(path)
		if err != nil {
			log.WithError(err).WithField("path", path).Warn("Failed to stat local file")
			localErrs++
			continue
		}

		rec, tracked := recorded[path]

		var signature string
		if tracked && rec.SignatureKnown() && timestamp.Equal(rec.Timestamp) {
			signature = rec.Signature
		} else {
			signature, err = d.Signature(path)
			if err != nil {
				log.WithError(err).WithField("path", path).Warn("Failed to hash local file")
				localErrs++
				continue
			}
		}

		if tracked && rec.SignatureKnown() && signature == rec.Signature {
			if !timestamp.Equal(rec.Timestamp) {
				// Touched but unchanged. Informational only: refresh the
				// timestamp so the next run skips the re-hash.
				log.WithField("path", path).Info(
					"File was touched but its contents are unchanged")
				refreshes = append(refreshes, state.FileRecord{
					Path:      path,
					Timestamp: timestamp,
					Signature: signature,
				})
			}
			continue
		}

		uploads = append(uploads, Upload{
			Path:      path,
			Timestamp: timestamp,
			Signature: signature,
			Size:      d.Size(path),
		})
	}
	return uploads, refreshes, localErrs
}

// dirUser is the slice of the state store the directory inference needs.
type dirUser interface {
	DirInUse(dir string) bool
}

// MissingDir returns the directory that must be created remotely before
// path is uploaded. A directory only needs creating the first time a
// tracked path lands under it; recursive creation takes care of parents.
func MissingDir(recorded dirUser, path string) (string, bool) {
	dir := state.ParentDir(path)
	if dir == "" || recorded.DirInUse(dir) {
		return "", false
	}
	return dir, true
}

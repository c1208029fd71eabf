package sync

import (
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sidkik/ftpmirror/pkg/errors"
	"github.com/sidkik/ftpmirror/pkg/progress"
	"github.com/sidkik/ftpmirror/pkg/remote"
	"github.com/sidkik/ftpmirror/pkg/state"
)

// Mocked out for unit testing.
var fs = afero.NewOsFs()

// MaxUploadFailures is the fail-fast threshold: once this many uploads
// have failed, the run aborts instead of hammering a possibly-down server.
const MaxUploadFailures = 4

// Executor applies the plan against the remote session, bracketing every
// remote mutation with the store's intent/commit appends so a crash at any
// point is resumable.
type Executor struct {
	Remote   remote.Client
	Store    *state.Store
	Progress progress.Reporter

	// DryRun suppresses every remote mutation and every state append while
	// still reporting the plan.
	DryRun bool

	failures int
}

// Delete removes the given remote files and prunes directories they leave
// empty. Individual failures are reported and counted and the run continues
// with the remaining items — except a failure to establish the session,
// which aborts immediately since every remaining item would just redial.
func (e *Executor) Delete(paths []string) (failed int, err error) {
	for _, path := range paths {
		if e.DryRun {
			log.WithField("path", path).Info("Would delete remote file")
			continue
		}

		if err := e.Store.AppendIntent(path); err != nil {
			log.WithError(err).WithField("path", path).Error("Failed to record delete intent")
			failed++
			continue
		}

		deleteErr := e.Remote.Delete(path)
		if deleteErr != nil && !remote.IsNotFound(deleteErr) {
			if remote.IsDialError(deleteErr) {
				return failed + 1, deleteErr
			}
			log.WithError(deleteErr).WithField("path", path).Error("Failed to delete remote file")
			failed++
			continue
		}

		if err := e.Store.AppendRemove(path); err != nil {
			log.WithError(err).WithField("path", path).Error("Failed to record delete")
			failed++
			continue
		}
		log.WithField("path", path).Info("Deleted remote file")

		failed += e.pruneDirs(path)
	}
	return failed, nil
}

// pruneDirs walks the deleted path's ancestors innermost first, removing
// each directory no tracked path uses anymore. The walk stops at the first
// ancestor still in use, or at one that fails to remove, since its parent
// can't be empty while it lingers.
func (e *Executor) pruneDirs(path string) (failed int) {
	for dir := state.ParentDir(path); dir != ""; dir = state.ParentDir(dir) {
		if e.Store.DirInUse(dir) {
			break
		}
		if err := e.Remote.Rmdir(dir); err != nil {
			log.WithError(err).WithField("dir", dir).Error("Failed to remove remote directory")
			failed++
			break
		}
		log.WithField("dir", dir).Info("Removed remote directory")
	}
	return failed
}

// Upload transfers the planned files and applies the timestamp refreshes.
// Unlike deletions, repeated upload failures abort the whole run once
// MaxUploadFailures is reached, and a failure to establish the session
// aborts immediately; the returned error reports the abort.
func (e *Executor) Upload(root string, uploads []Upload, refreshes []state.FileRecord) (
	failed int, err error) {

	var totalBytes int64
	for _, up := range uploads {
		totalBytes += up.Size
	}
	if len(uploads) > 0 {
		e.Progress.Start(len(uploads), totalBytes)
	}

	remainingFiles := len(uploads)
	remainingBytes := totalBytes
	for _, up := range uploads {
		remainingFiles--
		remainingBytes -= up.Size

		if e.DryRun {
			log.WithFields(log.Fields{"path": up.Path, "bytes": up.Size}).Info(
				"Would upload file")
			continue
		}

		if err := e.uploadOne(root, up); err != nil {
			failed++
			if remote.IsDialError(err) {
				return failed, err
			}
			log.WithError(err).WithField("path", up.Path).Error("Failed to upload file")
			e.failures++
			if e.failures >= MaxUploadFailures {
				return failed, errors.New("aborting: too many upload failures")
			}
			continue
		}
		e.Progress.Done(up.Path, remainingFiles, remainingBytes)
	}

	for _, rec := range refreshes {
		if e.DryRun {
			continue
		}
		if err := e.Store.AppendCommit(rec); err != nil {
			log.WithError(err).WithField("path", rec.Path).Error(
				"Failed to refresh record timestamp")
			failed++
		}
	}
	return failed, nil
}

func (e *Executor) uploadOne(root string, up Upload) error {
	// The directory check runs against the state as it is before this
	// path's intent lands: the path's own record from a previous run means
	// the directory already exists remotely.
	if dir, ok := MissingDir(e.Store, up.Path); ok {
		if err := e.Remote.MkdirAll(dir); err != nil {
			return errors.WithContext(err, "create remote directory")
		}
		log.WithField("dir", dir).Info("Created remote directory")
	}

	// The intent append is the crash-safety pivot: if the process dies
	// mid-transfer, replay shows the path as unconfirmed and the next run
	// re-verifies it by content hash regardless of its timestamp.
	if err := e.Store.AppendIntent(up.Path); err != nil {
		return errors.WithContext(err, "record upload intent")
	}

	f, err := fs.Open(filepath.Join(root, filepath.FromSlash(up.Path)))
	if err != nil {
		return errors.WithContext(err, "open local file")
	}
	defer f.Close()

	if err := e.Remote.Put(up.Path, f); err != nil {
		return errors.WithContext(err, "transfer")
	}

	return e.Store.AppendCommit(state.FileRecord{
		Path:      up.Path,
		Timestamp: up.Timestamp,
		Signature: up.Signature,
	})
}

package state

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sidkik/ftpmirror/pkg/errors"
)

// Store owns the durable record of what the remote side should currently
// contain. Every mutation goes through an append to the underlying log
// before it touches the in-memory map, so a crash at any point leaves a
// replayable trace: at worst a path is marked unknown and gets re-verified
// on the next run, never silently dropped.
type Store struct {
	path    string
	records RecordedState
	dirty   bool
}

// rewriteTempPrefix names the temp files Rewrite stages before the rename.
const rewriteTempPrefix = ".state-rewrite-"

// Open loads the state log at path by replaying its entries. A missing
// file is an empty state. Malformed lines are skipped with a warning so
// that partial information never blocks a run.
func Open(path string) (*Store, error) {
	store := &Store{path: path, records: RecordedState{}}
	sweepRewriteTemps(filepath.Dir(path))

	f, err := fs.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return store, nil
		}
		return nil, errors.WithContext(err, "open state log")
	}
	defer f.Close()

	lineNumber := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lineNumber++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		entry, err := ParseEntry(line)
		if err != nil {
			log.WithError(err).WithField("line", lineNumber).Warn(
				"Skipping malformed state log line")
			continue
		}
		entry.Apply(store.records)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.WithContext(err, "read state log")
	}
	return store, nil
}

// Path returns the location of the state log.
func (store *Store) Path() string {
	return store.path
}

// Snapshot returns a copy of the recorded state.
func (store *Store) Snapshot() RecordedState {
	return store.records.Copy()
}

// Get returns the record for path, if it's tracked.
func (store *Store) Get(path string) (FileRecord, bool) {
	rec, ok := store.records[path]
	return rec, ok
}

// DirInUse returns whether any tracked path lives under dir.
func (store *Store) DirInUse(dir string) bool {
	return store.records.DirInUse(dir)
}

// Dirty returns whether any mutation happened since Open or the last
// Rewrite.
func (store *Store) Dirty() bool {
	return store.dirty
}

// AppendIntent durably marks that path's remote state is about to become
// unknown. If the process dies before the matching commit, replay shows
// the path as unconfirmed and the next run re-verifies it by content hash
// regardless of its timestamp.
func (store *Store) AppendIntent(path string) error {
	return store.append(Entry{Record: FileRecord{
		Path:      path,
		Timestamp: Zero,
		Signature: SignatureUnknown,
	}})
}

// AppendCommit durably records that rec's signature was confirmed present
// on the remote side.
func (store *Store) AppendCommit(rec FileRecord) error {
	return store.append(Entry{Record: rec})
}

// AppendRemove durably records that path was confirmed deleted remotely.
func (store *Store) AppendRemove(path string) error {
	return store.append(Entry{Remove: true, Record: FileRecord{Path: path}})
}

// append writes one line to the log, syncing and closing the file before
// the in-memory state is updated. This is the crash-safety primitive.
func (store *Store) append(entry Entry) error {
	f, err := fs.OpenFile(store.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return errors.WithContext(err, "open state log")
	}

	if _, err := fmt.Fprintln(f, entry.String()); err != nil {
		f.Close()
		return errors.WithContext(err, "append state log")
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return errors.WithContext(err, "sync state log")
	}
	if err := f.Close(); err != nil {
		return errors.WithContext(err, "close state log")
	}

	entry.Apply(store.records)
	store.dirty = true
	return nil
}

// Rewrite compacts the log: the consolidated state is written to a
// temporary file which is atomically renamed over the log. It's a no-op
// when nothing changed since Open, so an idle run leaves the log
// byte-identical.
func (store *Store) Rewrite() error {
	if !store.dirty {
		return nil
	}

	tmp, err := afero.TempFile(fs, filepath.Dir(store.path), rewriteTempPrefix)
	if err != nil {
		return errors.WithContext(err, "create temp state log")
	}
	tmpPath := tmp.Name()

	for _, path := range store.records.Paths() {
		entry := Entry{Record: store.records[path]}
		if _, err := fmt.Fprintln(tmp, entry.String()); err != nil {
			tmp.Close()
			fs.Remove(tmpPath)
			return errors.WithContext(err, "write temp state log")
		}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		fs.Remove(tmpPath)
		return errors.WithContext(err, "sync temp state log")
	}
	if err := tmp.Close(); err != nil {
		fs.Remove(tmpPath)
		return errors.WithContext(err, "close temp state log")
	}

	if err := fs.Rename(tmpPath, store.path); err != nil {
		fs.Remove(tmpPath)
		return errors.WithContext(err, "replace state log")
	}
	store.dirty = false
	return nil
}

// sweepRewriteTemps removes temp files left behind when a rewrite crashed
// between the write and the rename. Left alone they'd look like ordinary
// local files and end up uploaded to the server.
func sweepRewriteTemps(dir string) {
	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return
	}
	for _, fi := range entries {
		if fi.IsDir() || !strings.HasPrefix(fi.Name(), rewriteTempPrefix) {
			continue
		}
		stale := filepath.Join(dir, fi.Name())
		if err := fs.Remove(stale); err != nil {
			log.WithError(err).WithField("path", stale).Warn(
				"Failed to remove stale state log temp file")
			continue
		}
		log.WithField("path", stale).Info("Removed stale state log temp file")
	}
}

// Package scan enumerates the local directory tree and computes the
// change-detection tokens and content signatures the diff engine consumes.
package scan

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sidkik/ftpmirror/pkg/errors"
	"github.com/sidkik/ftpmirror/pkg/state"
)

// Mocked out for unit testing.
var fs = afero.NewOsFs()

// Scan recursively enumerates the regular files under root and returns
// their relative, forward-slash paths in ascending order. The state log
// itself, editor backups (trailing "~"), temporary marker files (leading
// "#" or ".#"), and entries whose absolute path matches one of the exclude
// globs are filtered out. Symlinks pointing at regular files are included.
//
// An unreadable root is an error. A single entry failing to stat logs a
// warning and the scan continues.
func Scan(root, statePath string, excludes []string) ([]string, error) {
	absState, err := filepath.Abs(statePath)
	if err != nil {
		return nil, errors.WithContext(err, "resolve state log path")
	}

	seen := map[string]struct{}{}
	walkErr := afero.Walk(fs, root, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			if path == root {
				return errors.WithContext(err, "read sync root")
			}
			log.WithError(err).WithField("path", path).Warn(
				"Skipping unreadable entry")
			return nil
		}

		if fi.IsDir() {
			return nil
		}

		// Symlinks count when they resolve to a regular file. Either the
		// link or its target changing invalidates the cached signature;
		// see Timestamp.
		if fi.Mode()&os.ModeSymlink != 0 {
			target, err := fs.Stat(path)
			if err != nil {
				log.WithError(err).WithField("path", path).Warn(
					"Skipping dangling symlink")
				return nil
			}
			if !target.Mode().IsRegular() {
				return nil
			}
		} else if !fi.Mode().IsRegular() {
			return nil
		}

		if excluded(path, absState, excludes) {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil || strings.HasPrefix(rel, "..") {
			log.WithField("path", path).Warn("Skipping entry outside sync root")
			return nil
		}
		seen[filepath.ToSlash(rel)] = struct{}{}
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}

	paths := make([]string, 0, len(seen))
	for path := range seen {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths, nil
}

// excluded applies the built-in filters plus the caller's globs. The globs
// match against the absolute local path; the audit-side patterns match
// relative remote paths instead, which is intentional.
func excluded(path, absState string, excludes []string) bool {
	name := filepath.Base(path)
	if strings.HasSuffix(name, "~") ||
		strings.HasPrefix(name, "#") ||
		strings.HasPrefix(name, ".#") {
		return true
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	if abs == absState {
		return true
	}

	for _, pattern := range excludes {
		matched, err := filepath.Match(pattern, abs)
		if err != nil {
			log.WithField("pattern", pattern).Warn("Ignoring malformed exclude pattern")
			continue
		}
		if matched {
			return true
		}
	}
	return false
}

// Timestamp returns the change-detection token for the file at rel under
// root: the modification time for regular files, and the pair of link and
// target modification times for symlinks.
func Timestamp(root, rel string) (state.Timestamp, error) {
	path := filepath.Join(root, filepath.FromSlash(rel))

	if lstater, ok := fs.(afero.Lstater); ok {
		fi, lstatCalled, err := lstater.LstatIfPossible(path)
		if err != nil {
			return state.Timestamp{}, errors.WithContext(err, "stat")
		}
		if lstatCalled && fi.Mode()&os.ModeSymlink != 0 {
			target, err := fs.Stat(path)
			if err != nil {
				return state.Timestamp{}, errors.WithContext(err, "stat symlink target")
			}
			return state.AtSymlink(fi.ModTime(), target.ModTime()), nil
		}
	}

	fi, err := fs.Stat(path)
	if err != nil {
		return state.Timestamp{}, errors.WithContext(err, "stat")
	}
	return state.At(fi.ModTime()), nil
}

// Size returns the byte size of the file at rel under root. It's only used
// for progress reporting, so a stat failure logs a warning and counts as
// zero.
func Size(root, rel string) int64 {
	fi, err := fs.Stat(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		log.WithError(err).WithField("path", rel).Warn(
			"Failed to size file, reporting it as empty")
		return 0
	}
	return fi.Size()
}

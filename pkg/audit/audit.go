// Package audit reconciles the recorded state against a live remote
// listing. It only ever reports: every remediation comes out as a
// suggestion for the operator, never as a mutation.
package audit

import (
	"fmt"
	"io"
	"path"
	"sort"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sidkik/ftpmirror/pkg/remote"
	"github.com/sidkik/ftpmirror/pkg/state"
)

// Mocked out for unit testing.
var fs = afero.NewOsFs()

// Auditor compares what the state log believes against what the server
// actually holds.
type Auditor struct {
	Recorded state.RecordedState

	// LocalRoot is where size mismatches are checked against, since the
	// state log doesn't record sizes.
	LocalRoot string

	// Excludes are globs matched against relative remote paths. Note the
	// asymmetry with the scanner, whose patterns match absolute local
	// paths; that's intentional.
	Excludes []string
}

// Mismatch is a remote file whose size disagrees with the local copy.
type Mismatch struct {
	Path       string
	RemoteSize int64
	LocalSize  int64
}

// Report is the audit outcome. Nothing in it has been acted on.
type Report struct {
	// UnexpectedFiles exist remotely but aren't tracked.
	UnexpectedFiles []string

	// SizeMismatches are tracked files whose remote size disagrees with
	// the local one. Matching sizes prove nothing and aren't reported.
	SizeMismatches []Mismatch

	// UnusedDirs exist remotely but no tracked path lives under them.
	UnusedDirs []string

	// MissingFiles are tracked but absent from the remote listing.
	MissingFiles []string
}

// Empty returns whether the audit found nothing to report.
func (r Report) Empty() bool {
	return len(r.UnexpectedFiles) == 0 && len(r.SizeMismatches) == 0 &&
		len(r.UnusedDirs) == 0 && len(r.MissingFiles) == 0
}

// Run builds the report from the parsed remote listing.
func (a Auditor) Run(listing remote.Listing) Report {
	var report Report

	for _, remotePath := range sortedFileKeys(listing.Files) {
		if a.excluded(remotePath) {
			continue
		}

		rec, tracked := a.Recorded[remotePath]
		if !tracked {
			report.UnexpectedFiles = append(report.UnexpectedFiles, remotePath)
			continue
		}

		// Unconfirmed records are already queued for re-verification by
		// the next sync; auditing them would only repeat that.
		if !rec.SignatureKnown() {
			continue
		}

		localSize, ok := a.localSize(remotePath)
		if ok && localSize != listing.Files[remotePath] {
			report.SizeMismatches = append(report.SizeMismatches, Mismatch{
				Path:       remotePath,
				RemoteSize: listing.Files[remotePath],
				LocalSize:  localSize,
			})
		}
	}

	for _, dir := range sortedDirKeys(listing.Dirs) {
		if a.excluded(dir) {
			continue
		}
		if !a.Recorded.DirInUse(dir) {
			report.UnusedDirs = append(report.UnusedDirs, dir)
		}
	}

	for _, recordedPath := range a.Recorded.Paths() {
		if _, ok := listing.Files[recordedPath]; !ok {
			report.MissingFiles = append(report.MissingFiles, recordedPath)
		}
	}
	return report
}

func (a Auditor) excluded(remotePath string) bool {
	for _, pattern := range a.Excludes {
		matched, err := path.Match(pattern, remotePath)
		if err != nil {
			log.WithField("pattern", pattern).Warn("Ignoring malformed audit pattern")
			continue
		}
		if matched {
			return true
		}
	}
	return false
}

// localSize stats the local copy of remotePath. A file that's gone locally
// skips the size check: the next sync deletes it anyway.
func (a Auditor) localSize(remotePath string) (int64, bool) {
	fi, err := fs.Stat(path.Join(a.LocalRoot, remotePath))
	if err != nil {
		return 0, false
	}
	return fi.Size(), true
}

// Render prints the report with the suggested remediations: the exact
// state-log line to append for stray or missing files, and the directories
// worth removing by hand.
func (r Report) Render(w io.Writer) {
	if r.Empty() {
		fmt.Fprintln(w, "Audit found no drift.")
		return
	}

	if len(r.UnexpectedFiles) > 0 {
		fmt.Fprintln(w, "Audit Found Unexpected remote files (append the line to track, or delete the file):")
		for _, p := range r.UnexpectedFiles {
			fmt.Fprintf(w, "  %s\n    to track: FILE 0 - %s\n", p, p)
		}
	}

	if len(r.SizeMismatches) > 0 {
		fmt.Fprintln(w, "Size mismatches (sizes only; matching sizes prove nothing):")
		for _, m := range r.SizeMismatches {
			fmt.Fprintf(w, "  %s: remote %d bytes, local %d bytes\n",
				m.Path, m.RemoteSize, m.LocalSize)
		}
	}

	if len(r.UnusedDirs) > 0 {
		fmt.Fprintln(w, "Remote directories no tracked file uses (candidates for manual removal):")
		for _, dir := range r.UnusedDirs {
			fmt.Fprintf(w, "  %s\n", dir)
		}
	}

	if len(r.MissingFiles) > 0 {
		fmt.Fprintln(w, "Tracked files missing remotely (append the line to forget):")
		for _, p := range r.MissingFiles {
			fmt.Fprintf(w, "  %s\n    to forget: RM %s\n", p, p)
		}
	}
}

func sortedFileKeys(files map[string]int64) []string {
	keys := make([]string, 0, len(files))
	for key := range files {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func sortedDirKeys(dirs map[string]struct{}) []string {
	keys := make([]string, 0, len(dirs))
	for key := range dirs {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Package progress reports upload progress to the user's terminal.
package progress

import (
	"fmt"
	"time"

	"github.com/buger/goterm"
	"github.com/jonboulle/clockwork"
)

// Reporter receives the executor's transfer milestones.
type Reporter interface {
	// Start reports the planned upload batch before the first transfer.
	Start(totalFiles int, totalBytes int64)

	// Done reports one completed upload together with what's left.
	Done(path string, remainingFiles int, remainingBytes int64)
}

// Terminal prints a status line per completed upload, with the
// remaining-byte percentage and the transfer rate so far.
type Terminal struct {
	clock clockwork.Clock

	start      time.Time
	totalBytes int64
}

// NewTerminal returns a Terminal reporter on the real clock.
func NewTerminal() *Terminal {
	return &Terminal{clock: clockwork.NewRealClock()}
}

func (t *Terminal) Start(totalFiles int, totalBytes int64) {
	t.start = t.clock.Now()
	t.totalBytes = totalBytes
	goterm.Printf("Uploading %d files (%s)\n", totalFiles, formatBytes(totalBytes))
	goterm.Flush()
}

func (t *Terminal) Done(path string, remainingFiles int, remainingBytes int64) {
	percent := 0.0
	if t.totalBytes > 0 {
		percent = float64(remainingBytes) * 100 / float64(t.totalBytes)
	}

	rate := ""
	if elapsed := t.clock.Now().Sub(t.start); elapsed > 0 {
		sent := t.totalBytes - remainingBytes
		bytesPerSec := int64(float64(sent) / elapsed.Seconds())
		rate = fmt.Sprintf(", %s/s", formatBytes(bytesPerSec))
	}

	goterm.Printf("%s (%d files left, %.0f%% remaining%s)\n",
		goterm.Color(path, goterm.GREEN), remainingFiles, percent, rate)
	goterm.Flush()
}

// Silent discards all progress. Used for dry runs and tests.
type Silent struct{}

func (Silent) Start(totalFiles int, totalBytes int64)                     {}
func (Silent) Done(path string, remainingFiles int, remainingBytes int64) {}

func formatBytes(n int64) string {
	switch {
	case n >= 1<<30:
		return fmt.Sprintf("%.1f GB", float64(n)/(1<<30))
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

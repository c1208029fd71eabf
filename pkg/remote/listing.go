package remote

import (
	"regexp"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Listing is the parsed form of a recursive directory listing: every
// remote directory, and every remote file with its byte size. Paths are
// relative to the remote root.
type Listing struct {
	Dirs  map[string]struct{}
	Files map[string]int64
}

// listLine matches one long-format listing line: type and permission bits,
// link count, owner, group, size, month, day, time or year, and the name.
var listLine = regexp.MustCompile(
	`^([-dl])[rwxsStT-]{9}\+?\s+\d+\s+\S+\s+\S+\s+(\d+)\s+[A-Za-z]{3}\s+\d{1,2}\s+(?:\d{4}|\d{1,2}:\d{2})\s+(.+)$`)

// dirHeader matches the "./subdir:" section headers between listing
// blocks. The remote root lists as ".:".
var dirHeader = regexp.MustCompile(`^\.(?:/(.*))?:$`)

// ParseListing parses raw recursive listing text. Blank lines separate
// sections and "total N" lines are part of the format; any other line that
// doesn't match the grammar is reported as a warning and skipped, never
// fatal.
func ParseListing(raw string) Listing {
	listing := Listing{
		Dirs:  map[string]struct{}{},
		Files: map[string]int64{},
	}

	current := ""
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		if match := dirHeader.FindStringSubmatch(line); match != nil {
			current = match[1]
			if current != "" {
				listing.Dirs[current] = struct{}{}
			}
			continue
		}

		if strings.HasPrefix(line, "total ") {
			continue
		}

		match := listLine.FindStringSubmatch(line)
		if match == nil {
			log.WithField("line", line).Warn("Skipping unparseable listing line")
			continue
		}

		kind, size, name := match[1], match[2], match[3]
		if kind == "l" {
			// Symlink entries carry their target after an arrow. Only the
			// name matters here.
			if idx := strings.Index(name, " -> "); idx >= 0 {
				name = name[:idx]
			}
		}
		if name == "." || name == ".." {
			continue
		}

		path := name
		if current != "" {
			path = current + "/" + name
		}

		if kind == "d" {
			listing.Dirs[path] = struct{}{}
			continue
		}

		bytes, err := strconv.ParseInt(size, 10, 64)
		if err != nil {
			log.WithField("line", line).Warn("Skipping listing line with bad size")
			continue
		}
		listing.Files[path] = bytes
	}
	return listing
}

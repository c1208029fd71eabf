package state

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Entry is one line of the state log: either "this path's remote state is
// now this" (a FILE entry, written with SignatureUnknown before a mutation
// and with the real signature after it commits), or "this path is confirmed
// deleted" (an RM entry). Replaying all entries in order against an empty
// map reconstructs the recorded state; the last entry mentioning a path
// wins.
type Entry struct {
	// Remove marks an RM entry. Only Record.Path is meaningful then.
	Remove bool
	Record FileRecord
}

// String formats the entry as its log line.
func (e Entry) String() string {
	if e.Remove {
		return fmt.Sprintf("RM %s", e.Record.Path)
	}
	return fmt.Sprintf("FILE %s %s %s",
		e.Record.Timestamp.Token(), e.Record.Signature, e.Record.Path)
}

// Apply folds the entry into rs per the replay rule.
func (e Entry) Apply(rs RecordedState) {
	if e.Remove {
		rs.Remove(e.Record.Path)
		return
	}
	rs.Set(e.Record)
}

// ParseEntry parses one log line. Paths may contain spaces, so the path is
// always the remainder of the line.
func ParseEntry(line string) (Entry, error) {
	switch {
	case strings.HasPrefix(line, "FILE "):
		fields := strings.SplitN(line, " ", 4)
		if len(fields) != 4 || fields[3] == "" {
			return Entry{}, fmt.Errorf("bad FILE entry %q", line)
		}

		timestamp, err := ParseTimestamp(fields[1])
		if err != nil {
			return Entry{}, err
		}

		signature, err := parseSignature(fields[2])
		if err != nil {
			return Entry{}, err
		}

		return Entry{Record: FileRecord{
			Path:      fields[3],
			Timestamp: timestamp,
			Signature: signature,
		}}, nil

	case strings.HasPrefix(line, "RM "):
		path := line[len("RM "):]
		if path == "" {
			return Entry{}, fmt.Errorf("bad RM entry %q", line)
		}
		return Entry{Remove: true, Record: FileRecord{Path: path}}, nil

	default:
		return Entry{}, fmt.Errorf("unrecognized entry %q", line)
	}
}

// parseSignature accepts a 32-hex content hash, or the unknown sentinel.
// "-" is the shorthand the audit report suggests; it canonicalizes to
// SignatureUnknown.
func parseSignature(token string) (string, error) {
	if token == SignatureUnknown || token == "-" {
		return SignatureUnknown, nil
	}
	if len(token) != 32 {
		return "", fmt.Errorf("bad signature %q", token)
	}
	if _, err := hex.DecodeString(token); err != nil {
		return "", fmt.Errorf("bad signature %q", token)
	}
	return token, nil
}

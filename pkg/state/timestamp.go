package state

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Timestamp is an opaque change-detection token for a local file. Regular
// files carry their modification time. Symlinks carry both the link's own
// modification time and the target's, so that a change to either one
// invalidates the cached signature.
//
// Timestamps are compared structurally: a plain timestamp never equals a
// symlink pair, even if the modification times coincide.
type Timestamp struct {
	mod     int64
	target  int64
	symlink bool
}

// Zero is the timestamp written by intent entries. It never equals the
// timestamp of a real local file, so a record carrying it is always
// re-verified.
var Zero = Timestamp{}

// At returns the timestamp for a regular file.
func At(mod time.Time) Timestamp {
	return Timestamp{mod: mod.Unix()}
}

// AtSymlink returns the timestamp for a symlink and its target.
func AtSymlink(link, target time.Time) Timestamp {
	return Timestamp{mod: link.Unix(), target: target.Unix(), symlink: true}
}

// Equal returns whether two timestamps are the same token.
func (t Timestamp) Equal(other Timestamp) bool {
	return t == other
}

// IsZero returns whether the timestamp is the zero token.
func (t Timestamp) IsZero() bool {
	return t == Zero
}

// Token returns the string form used in the state log: the modification
// time in Unix seconds, with the target's appended after an underscore for
// symlinks.
func (t Timestamp) Token() string {
	if t.symlink {
		return fmt.Sprintf("%d_%d", t.mod, t.target)
	}
	return strconv.FormatInt(t.mod, 10)
}

// ParseTimestamp parses the string form produced by Token.
func ParseTimestamp(token string) (Timestamp, error) {
	parts := strings.Split(token, "_")
	switch len(parts) {
	case 1:
		mod, err := strconv.ParseInt(parts[0], 10, 64)
		if err != nil {
			return Timestamp{}, fmt.Errorf("bad timestamp token %q", token)
		}
		return Timestamp{mod: mod}, nil
	case 2:
		mod, err := strconv.ParseInt(parts[0], 10, 64)
		if err != nil {
			return Timestamp{}, fmt.Errorf("bad timestamp token %q", token)
		}
		target, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return Timestamp{}, fmt.Errorf("bad timestamp token %q", token)
		}
		return Timestamp{mod: mod, target: target, symlink: true}, nil
	default:
		return Timestamp{}, fmt.Errorf("bad timestamp token %q", token)
	}
}

package state

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimestampTokens(t *testing.T) {
	plain := At(time.Unix(1570000000, 0))
	assert.Equal(t, "1570000000", plain.Token())

	pair := AtSymlink(time.Unix(1570000000, 0), time.Unix(1570000100, 0))
	assert.Equal(t, "1570000000_1570000100", pair.Token())

	// A plain timestamp never equals a symlink pair, even when the
	// modification times coincide.
	samePair := AtSymlink(time.Unix(1570000000, 0), time.Unix(1570000000, 0))
	assert.False(t, plain.Equal(samePair))

	assert.Equal(t, "0", Zero.Token())
	assert.True(t, Zero.IsZero())
	assert.False(t, plain.IsZero())

	for _, token := range []string{"1570000000", "1570000000_1570000100", "0"} {
		parsed, err := ParseTimestamp(token)
		assert.NoError(t, err)
		assert.Equal(t, token, parsed.Token())
	}

	for _, token := range []string{"", "abc", "12_ab", "1_2_3"} {
		_, err := ParseTimestamp(token)
		assert.Error(t, err, token)
	}
}

func TestParseEntry(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		exp     Entry
		wantErr bool
	}{
		{
			name: "Commit",
			line: "FILE 1570000000 0123456789abcdef0123456789abcdef a/b.txt",
			exp: Entry{Record: FileRecord{
				Path:      "a/b.txt",
				Timestamp: At(time.Unix(1570000000, 0)),
				Signature: "0123456789abcdef0123456789abcdef",
			}},
		},
		{
			name: "Intent",
			line: "FILE 0 unknown a/b.txt",
			exp: Entry{Record: FileRecord{
				Path:      "a/b.txt",
				Timestamp: Zero,
				Signature: SignatureUnknown,
			}},
		},
		{
			name: "DashSentinel",
			line: "FILE 0 - stray.txt",
			exp: Entry{Record: FileRecord{
				Path:      "stray.txt",
				Timestamp: Zero,
				Signature: SignatureUnknown,
			}},
		},
		{
			name: "SymlinkTimestamp",
			line: "FILE 100_200 0123456789abcdef0123456789abcdef link.txt",
			exp: Entry{Record: FileRecord{
				Path:      "link.txt",
				Timestamp: AtSymlink(time.Unix(100, 0), time.Unix(200, 0)),
				Signature: "0123456789abcdef0123456789abcdef",
			}},
		},
		{
			name: "PathWithSpaces",
			line: "RM some dir/a file.txt",
			exp:  Entry{Remove: true, Record: FileRecord{Path: "some dir/a file.txt"}},
		},
		{name: "Unrecognized", line: "FOO bar", wantErr: true},
		{name: "ShortFile", line: "FILE 0 unknown", wantErr: true},
		{name: "ShortSignature", line: "FILE 0 abcd f.txt", wantErr: true},
		{name: "NonHexSignature", line: "FILE 0 zz23456789abcdef0123456789abcdef f.txt", wantErr: true},
		{name: "EmptyRemove", line: "RM ", wantErr: true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			entry, err := ParseEntry(test.line)
			if test.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, test.exp, entry)

			// Formatting a parsed entry reproduces the canonical line. The
			// dash sentinel canonicalizes to "unknown".
			if test.name != "DashSentinel" {
				assert.Equal(t, test.line, entry.String())
			} else {
				assert.Equal(t, "FILE 0 unknown stray.txt", entry.String())
			}
		})
	}
}

// Replaying a full log into an empty map must equal applying the same
// entries one at a time to a live map.
func TestReplayMatchesIncremental(t *testing.T) {
	lines := []string{
		"FILE 100 0123456789abcdef0123456789abcdef a.txt",
		"FILE 0 unknown b/c.txt",
		"FILE 200 ffffffffffffffffffffffffffffffff b/c.txt",
		"RM a.txt",
		"FILE 300 0123456789abcdef0123456789abcdef a.txt",
	}

	replayed := RecordedState{}
	incremental := RecordedState{}
	for _, line := range lines {
		entry, err := ParseEntry(line)
		require.NoError(t, err)
		entry.Apply(incremental)
	}
	for _, line := range lines {
		entry, err := ParseEntry(line)
		require.NoError(t, err)
		entry.Apply(replayed)
	}

	assert.Equal(t, incremental, replayed)
	assert.Equal(t, []string{"a.txt", "b/c.txt"}, replayed.Paths())
	assert.Equal(t, "ffffffffffffffffffffffffffffffff", replayed["b/c.txt"].Signature)
}

func TestDirInUse(t *testing.T) {
	rs := RecordedState{}
	rs.Set(FileRecord{Path: "a/b/c.txt"})
	rs.Set(FileRecord{Path: "a/x.txt"})

	assert.True(t, rs.DirInUse("a"))
	assert.True(t, rs.DirInUse("a/b"))
	assert.False(t, rs.DirInUse("a/b/c"))
	assert.False(t, rs.DirInUse("other"))

	rs.Remove("a/b/c.txt")
	assert.False(t, rs.DirInUse("a/b"))
	assert.True(t, rs.DirInUse("a"))
}

func TestParentDir(t *testing.T) {
	assert.Equal(t, "a/b", ParentDir("a/b/c.txt"))
	assert.Equal(t, "a", ParentDir("a/b"))
	assert.Equal(t, "", ParentDir("c.txt"))
}

func TestStoreLoadAppendRewrite(t *testing.T) {
	fs = afero.NewMemMapFs()

	store, err := Open("/site/.state")
	require.NoError(t, err)
	assert.Empty(t, store.Snapshot())
	assert.False(t, store.Dirty())

	commit := FileRecord{
		Path:      "index.html",
		Timestamp: At(time.Unix(100, 0)),
		Signature: "0123456789abcdef0123456789abcdef",
	}
	require.NoError(t, store.AppendIntent("index.html"))
	require.NoError(t, store.AppendCommit(commit))
	require.NoError(t, store.AppendIntent("old.txt"))
	require.NoError(t, store.AppendRemove("old.txt"))
	assert.True(t, store.Dirty())

	// The log carries the full history until a rewrite.
	logBytes, err := afero.ReadFile(fs, "/site/.state")
	require.NoError(t, err)
	assert.Equal(t,
		"FILE 0 unknown index.html\n"+
			"FILE 100 0123456789abcdef0123456789abcdef index.html\n"+
			"FILE 0 unknown old.txt\n"+
			"RM old.txt\n",
		string(logBytes))

	// Reloading replays to the same state.
	reloaded, err := Open("/site/.state")
	require.NoError(t, err)
	assert.Equal(t, store.Snapshot(), reloaded.Snapshot())

	require.NoError(t, store.Rewrite())
	assert.False(t, store.Dirty())

	logBytes, err = afero.ReadFile(fs, "/site/.state")
	require.NoError(t, err)
	assert.Equal(t, "FILE 100 0123456789abcdef0123456789abcdef index.html\n",
		string(logBytes))

	// A clean store leaves the log byte-identical.
	require.NoError(t, store.Rewrite())
	unchanged, err := afero.ReadFile(fs, "/site/.state")
	require.NoError(t, err)
	assert.Equal(t, string(logBytes), string(unchanged))
}

// An intent line without its commit survives a reload as an unconfirmed
// record, so the next run re-verifies the path by content hash.
func TestCrashAfterIntent(t *testing.T) {
	fs = afero.NewMemMapFs()

	store, err := Open("/site/.state")
	require.NoError(t, err)
	require.NoError(t, store.AppendCommit(FileRecord{
		Path:      "page.html",
		Timestamp: At(time.Unix(100, 0)),
		Signature: "0123456789abcdef0123456789abcdef",
	}))
	require.NoError(t, store.AppendIntent("page.html"))

	// "Crash": reopen from disk.
	reloaded, err := Open("/site/.state")
	require.NoError(t, err)

	rec, ok := reloaded.Get("page.html")
	require.True(t, ok)
	assert.False(t, rec.SignatureKnown())
	assert.True(t, rec.Timestamp.IsZero())
}

// A temp file left behind by a rewrite that crashed before its rename is
// cleaned up on the next load, so the scanner never sees it as a local
// file to upload.
func TestOpenSweepsStaleRewriteTemps(t *testing.T) {
	fs = afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/site/.state",
		[]byte("FILE 100 0123456789abcdef0123456789abcdef a.txt\n"), 0644))
	require.NoError(t, afero.WriteFile(fs, "/site/.state-rewrite-123",
		[]byte("FILE 100 0123456789abcdef0123456789abcdef a.txt\n"), 0644))
	require.NoError(t, afero.WriteFile(fs, "/site/keep.html", []byte("x"), 0644))

	store, err := Open("/site/.state")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt"}, store.Snapshot().Paths())

	exists, err := afero.Exists(fs, "/site/.state-rewrite-123")
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = afero.Exists(fs, "/site/keep.html")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestMalformedLinesSkipped(t *testing.T) {
	fs = afero.NewMemMapFs()
	log := "FILE 100 0123456789abcdef0123456789abcdef good.txt\n" +
		"this is not an entry\n" +
		"FILE bogus 0123456789abcdef0123456789abcdef bad-timestamp.txt\n" +
		"\n" +
		"RM gone.txt\n"
	require.NoError(t, afero.WriteFile(fs, "/site/.state", []byte(log), 0644))

	store, err := Open("/site/.state")
	require.NoError(t, err)
	assert.Equal(t, []string{"good.txt"}, store.Snapshot().Paths())
}

package engine

import (
	"context"
	"os"
	"os/user"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/jamesainslie/ferry/pkg/ferry/checksum"
	"github.com/jamesainslie/ferry/pkg/ferry/journal"
	"github.com/jamesainslie/ferry/pkg/ferry/types"
)

func TestCreateRoundTrip(t *testing.T) {
	m := newTestManager(t)
	path := filepath.Join(t.TempDir(), "a.txt")

	manifest, err := m.Create(context.Background(), path, []byte("hello"))
	require.NoError(t, err)
	require.True(t, manifest.OK())
	assert.Equal(t, int64(5), manifest.Results[0].Size)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	records, err := m.JournalList(0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "create", records[0].Op)
	assert.Equal(t, journal.StatusCommitted, records[0].Status)
}

func TestCreateEmptyContent(t *testing.T) {
	m := newTestManager(t)
	path := filepath.Join(t.TempDir(), "empty.txt")

	manifest, err := m.Create(context.Background(), path, nil)
	require.NoError(t, err)
	require.True(t, manifest.OK())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Zero(t, info.Size())
}

func TestCreateVerifiesChecksum(t *testing.T) {
	m := newTestManager(t, func(c *Config) { c.VerifyChecksum = true })
	path := filepath.Join(t.TempDir(), "verified.txt")
	content := []byte("bytes that must land intact")

	manifest, err := m.Create(context.Background(), path, content)
	require.NoError(t, err)
	require.True(t, manifest.OK())
	res := manifest.Results[0]
	assert.True(t, res.ChecksumVerified)
	assert.Equal(t, checksum.DigestBytes(content), res.Checksum)
}

func TestCreateLockedDestination(t *testing.T) {
	m := newTestManager(t)
	path := filepath.Join(t.TempDir(), "locked.txt")
	writeFile(t, path, "held")

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, unix.Flock(int(f.Fd()), unix.LOCK_EX))
	defer func() { _ = unix.Flock(int(f.Fd()), unix.LOCK_UN) }()

	manifest, err := m.Create(context.Background(), path, []byte("replacement"))
	require.NoError(t, err)
	require.Len(t, manifest.Results, 1)
	assert.False(t, manifest.Results[0].Success)
	assert.Contains(t, manifest.Results[0].Error, "attempts")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "held", string(data))
}

func TestMkdirCreatesDirectories(t *testing.T) {
	m := newTestManager(t)
	dir := t.TempDir()
	a := filepath.Join(dir, "alpha")
	b := filepath.Join(dir, "beta")

	manifest, err := m.Mkdir(context.Background(), []string{a, b}, false)
	require.NoError(t, err)
	assert.Equal(t, 2, manifest.Completed())
	assert.DirExists(t, a)
	assert.DirExists(t, b)
}

func TestMkdirParents(t *testing.T) {
	m := newTestManager(t)
	dir := t.TempDir()
	deep := filepath.Join(dir, "one", "two", "three")

	manifest, err := m.Mkdir(context.Background(), []string{deep}, false)
	require.NoError(t, err)
	assert.Equal(t, 1, manifest.Failed(), "missing ancestors need parents")

	manifest, err = m.Mkdir(context.Background(), []string{deep}, true)
	require.NoError(t, err)
	require.True(t, manifest.OK())
	assert.DirExists(t, deep)
}

func TestTouchCreatesAndBumps(t *testing.T) {
	m := newTestManager(t)
	dir := t.TempDir()
	fresh := filepath.Join(dir, "fresh.txt")
	stale := filepath.Join(dir, "stale.txt")
	writeFile(t, stale, "content")
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(stale, past, past))

	manifest, err := m.Touch(context.Background(), []string{fresh, stale})
	require.NoError(t, err)
	require.True(t, manifest.OK())

	info, err := os.Stat(fresh)
	require.NoError(t, err)
	assert.Zero(t, info.Size())

	info, err = os.Stat(stale)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), info.ModTime(), time.Minute)

	// Touch never rewrites content.
	data, err := os.ReadFile(stale)
	require.NoError(t, err)
	assert.Equal(t, "content", string(data))
}

func TestChmodAppliesMode(t *testing.T) {
	m := newTestManager(t)
	path := filepath.Join(t.TempDir(), "script.sh")
	writeFile(t, path, "#!/bin/sh\n")

	manifest, err := m.Chmod(context.Background(), 0o755, []string{path})
	require.NoError(t, err)
	require.True(t, manifest.OK())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
}

func TestChmodNeedsStrongConfirmation(t *testing.T) {
	m := newTestManager(t, func(c *Config) {
		c.Confirmer = &StaticConfirmer{ApproveBasic: true}
	})
	path := filepath.Join(t.TempDir(), "guarded.txt")
	writeFile(t, path, "x")

	_, err := m.Chmod(context.Background(), 0o600, []string{path})
	require.ErrorIs(t, err, ErrRejected)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
}

func TestChownResolvesNumericIds(t *testing.T) {
	m := newTestManager(t)
	path := filepath.Join(t.TempDir(), "owned.txt")
	writeFile(t, path, "x")

	current, err := user.Current()
	require.NoError(t, err)

	// Re-asserting the current owner is permitted without privileges.
	manifest, err := m.Chown(context.Background(), current.Uid, "", []string{path})
	require.NoError(t, err)
	assert.True(t, manifest.OK())
}

func TestChownUnknownUserFails(t *testing.T) {
	m := newTestManager(t)
	path := filepath.Join(t.TempDir(), "owned.txt")
	writeFile(t, path, "x")

	_, err := m.Chown(context.Background(), "no-such-user-ferry", "", []string{path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lookup user")
}

func TestResolveOwner(t *testing.T) {
	tests := []struct {
		name    string
		owner   string
		group   string
		wantUID int
		wantGID int
		wantErr bool
	}{
		{name: "both empty leave ids unchanged", owner: "", group: "", wantUID: -1, wantGID: -1},
		{name: "numeric owner passes through", owner: "12345", group: "", wantUID: 12345, wantGID: -1},
		{name: "numeric group passes through", owner: "", group: "54321", wantUID: -1, wantGID: 54321},
		{name: "unknown owner name", owner: "no-such-user-ferry", group: "", wantErr: true},
		{name: "unknown group name", owner: "", group: "no-such-group-ferry", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uid, gid, err := resolveOwner(tt.owner, tt.group)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantUID, uid)
			assert.Equal(t, tt.wantGID, gid)
		})
	}
}

func TestLinkSymbolic(t *testing.T) {
	m := newTestManager(t)
	dir := t.TempDir()
	target := filepath.Join(dir, "target.txt")
	link := filepath.Join(dir, "alias")
	writeFile(t, target, "through the link")

	manifest, err := m.Link(context.Background(), target, link, true)
	require.NoError(t, err)
	require.True(t, manifest.OK())

	got, err := os.Readlink(link)
	require.NoError(t, err)
	assert.Equal(t, target, got)

	data, err := os.ReadFile(link)
	require.NoError(t, err)
	assert.Equal(t, "through the link", string(data))
}

func TestLinkSymbolicDanglingWarns(t *testing.T) {
	m := newTestManager(t)
	dir := t.TempDir()
	target := filepath.Join(dir, "missing.txt")
	link := filepath.Join(dir, "dangling")

	manifest, err := m.Link(context.Background(), target, link, true)
	require.NoError(t, err)
	require.True(t, manifest.OK())
	require.NotEmpty(t, manifest.Warnings)
	assert.Contains(t, manifest.Warnings[0], "link target does not exist")

	// The link exists even though reading through it fails.
	_, err = os.Lstat(link)
	require.NoError(t, err)
	_, err = os.Stat(link)
	require.Error(t, err)
}

func TestLinkHard(t *testing.T) {
	m := newTestManager(t)
	dir := t.TempDir()
	target := filepath.Join(dir, "target.txt")
	link := filepath.Join(dir, "hard.txt")
	writeFile(t, target, "shared inode")

	manifest, err := m.Link(context.Background(), target, link, false)
	require.NoError(t, err)
	require.True(t, manifest.OK())

	ti, err := os.Stat(target)
	require.NoError(t, err)
	li, err := os.Stat(link)
	require.NoError(t, err)
	assert.True(t, os.SameFile(ti, li))
}

func TestLinkRefusesExistingFile(t *testing.T) {
	m := newTestManager(t)
	dir := t.TempDir()
	target := filepath.Join(dir, "target.txt")
	link := filepath.Join(dir, "occupied.txt")
	writeFile(t, target, "target")
	writeFile(t, link, "do not clobber")

	manifest, err := m.Link(context.Background(), target, link, true)
	require.NoError(t, err)
	require.Len(t, manifest.Results, 1)
	assert.False(t, manifest.Results[0].Success)
	assert.Contains(t, manifest.Results[0].Error, "already exists")

	data, err := os.ReadFile(link)
	require.NoError(t, err)
	assert.Equal(t, "do not clobber", string(data))
}

func TestRmdirRemovesEmpty(t *testing.T) {
	m := newTestManager(t)
	dir := filepath.Join(t.TempDir(), "hollow")
	require.NoError(t, os.Mkdir(dir, 0o755))

	manifest, err := m.Rmdir(context.Background(), []string{dir})
	require.NoError(t, err)
	require.True(t, manifest.OK())
	assert.Equal(t, types.OpRmdir, manifest.Operation)
	assert.NoDirExists(t, dir)
}

func TestRmdirRefusesNonEmpty(t *testing.T) {
	m := newTestManager(t)
	dir := filepath.Join(t.TempDir(), "occupied")
	require.NoError(t, os.Mkdir(dir, 0o755))
	writeFile(t, filepath.Join(dir, "resident.txt"), "here")

	manifest, err := m.Rmdir(context.Background(), []string{dir})
	require.NoError(t, err)
	require.Len(t, manifest.Results, 1)
	assert.False(t, manifest.Results[0].Success)
	assert.DirExists(t, dir)
}

func TestRmdirOnFileFails(t *testing.T) {
	m := newTestManager(t)
	path := filepath.Join(t.TempDir(), "plain.txt")
	writeFile(t, path, "x")

	manifest, err := m.Rmdir(context.Background(), []string{path})
	require.NoError(t, err)
	require.Len(t, manifest.Results, 1)
	assert.False(t, manifest.Results[0].Success)
	assert.Contains(t, manifest.Results[0].Error, "not a directory")
	assert.FileExists(t, path)
}

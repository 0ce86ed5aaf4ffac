package trash

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	base := t.TempDir()
	s, err := New(filepath.Join(base, "trash"), filepath.Join(base, "ferry.lock"))
	require.NoError(t, err)
	require.NoError(t, s.EnsureDir())
	return s
}

func TestNewValidation(t *testing.T) {
	_, err := New("", "/tmp/l")
	assert.Error(t, err)
	_, err = New("/tmp/t", "")
	assert.Error(t, err)
}

func TestTrashFileWritesSidecar(t *testing.T) {
	s := newTestStore(t)
	dir := t.TempDir()
	victim := filepath.Join(dir, "note.txt")
	require.NoError(t, os.WriteFile(victim, []byte("important"), 0o644))

	entry, err := s.Trash(context.Background(), victim)
	require.NoError(t, err)

	// Original is gone, trash copy exists.
	_, err = os.Stat(victim)
	assert.True(t, os.IsNotExist(err))
	content, err := os.ReadFile(entry.TrashPath)
	require.NoError(t, err)
	assert.Equal(t, "important", string(content))

	// Trash name keeps the base plus a timestamp.
	assert.True(t, strings.HasPrefix(filepath.Base(entry.TrashPath), "note.txt."),
		"trash name %q should start with the base name", entry.TrashPath)

	// Sidecar records the original location.
	data, err := os.ReadFile(entry.TrashPath + metaSuffix)
	require.NoError(t, err)
	var onDisk Entry
	require.NoError(t, json.Unmarshal(data, &onDisk))
	assert.Equal(t, victim, onDisk.OriginalPath)
	assert.Equal(t, int64(9), onDisk.Size)
	assert.False(t, onDisk.IsDir)
}

func TestTrashDirectory(t *testing.T) {
	s := newTestStore(t)
	dir := t.TempDir()
	tree := filepath.Join(dir, "project")
	require.NoError(t, os.MkdirAll(filepath.Join(tree, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(tree, "sub", "a.txt"), []byte("12345"), 0o644))

	entry, err := s.Trash(context.Background(), tree)
	require.NoError(t, err)

	assert.True(t, entry.IsDir)
	assert.Equal(t, int64(5), entry.Size)
	_, err = os.Stat(filepath.Join(entry.TrashPath, "sub", "a.txt"))
	assert.NoError(t, err, "tree content should survive the move")
}

func TestTrashSameBaseNameNeverCollides(t *testing.T) {
	s := newTestStore(t)
	dirA := t.TempDir()
	dirB := t.TempDir()
	fileA := filepath.Join(dirA, "same.txt")
	fileB := filepath.Join(dirB, "same.txt")
	require.NoError(t, os.WriteFile(fileA, []byte("from A"), 0o644))
	require.NoError(t, os.WriteFile(fileB, []byte("from B"), 0o644))

	entryA, err := s.Trash(context.Background(), fileA)
	require.NoError(t, err)
	entryB, err := s.Trash(context.Background(), fileB)
	require.NoError(t, err)

	assert.NotEqual(t, entryA.TrashPath, entryB.TrashPath)

	gotA, err := os.ReadFile(entryA.TrashPath)
	require.NoError(t, err)
	gotB, err := os.ReadFile(entryB.TrashPath)
	require.NoError(t, err)
	assert.Equal(t, "from A", string(gotA))
	assert.Equal(t, "from B", string(gotB))

	// Both remain independently restorable.
	restoredA, err := s.Restore(context.Background(), entryA)
	require.NoError(t, err)
	assert.Equal(t, fileA, restoredA)
	restoredB, err := s.Restore(context.Background(), entryB)
	require.NoError(t, err)
	assert.Equal(t, fileB, restoredB)
}

func TestTrashMissingPath(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Trash(context.Background(), filepath.Join(t.TempDir(), "ghost.txt"))
	assert.Error(t, err)
}

func TestListNewestFirstAndPattern(t *testing.T) {
	s := newTestStore(t)
	dir := t.TempDir()

	names := []string{"alpha.log", "beta.txt", "gamma.log"}
	for _, name := range names {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(name), 0o644))
		_, err := s.Trash(context.Background(), path)
		require.NoError(t, err)
	}

	all, err := s.List("")
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i := 1; i < len(all); i++ {
		assert.False(t, all[i-1].TrashedAt.Before(all[i].TrashedAt),
			"entries must be sorted newest first")
	}

	logs, err := s.List("*.log")
	require.NoError(t, err)
	assert.Len(t, logs, 2)
	for _, e := range logs {
		assert.True(t, strings.HasSuffix(e.Name(), ".log"))
	}
}

func TestListEmptyRoot(t *testing.T) {
	base := t.TempDir()
	s, err := New(filepath.Join(base, "never-created"), filepath.Join(base, "l"))
	require.NoError(t, err)

	entries, err := s.List("")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFind(t *testing.T) {
	s := newTestStore(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "note.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	_, err := s.Trash(context.Background(), path)
	require.NoError(t, err)

	entry, err := s.Find("note*")
	require.NoError(t, err)
	assert.Equal(t, path, entry.OriginalPath)

	_, err = s.Find("missing*")
	assert.ErrorIs(t, err, ErrEntryNotFound)
}

func TestRestoreRefusesOverwrite(t *testing.T) {
	s := newTestStore(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "busy.txt")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))

	entry, err := s.Trash(context.Background(), path)
	require.NoError(t, err)

	// Someone recreated the file meanwhile.
	require.NoError(t, os.WriteFile(path, []byte("v2"), 0o644))

	_, err = s.Restore(context.Background(), entry)
	assert.ErrorIs(t, err, ErrRestoreConflict)

	// The recreated file and the trash entry are both intact.
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(content))
	_, err = os.Stat(entry.TrashPath)
	assert.NoError(t, err)
}

func TestRestoreFallsBackToCwd(t *testing.T) {
	s := newTestStore(t)
	parent := filepath.Join(t.TempDir(), "doomed")
	require.NoError(t, os.MkdirAll(parent, 0o755))
	path := filepath.Join(parent, "orphan.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	entry, err := s.Trash(context.Background(), path)
	require.NoError(t, err)

	// The original parent disappears before the restore.
	require.NoError(t, os.RemoveAll(parent))

	cwd := t.TempDir()
	t.Chdir(cwd)

	restored, err := s.Restore(context.Background(), entry)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cwd, "orphan.txt"), restored)
	_, err = os.Stat(restored)
	assert.NoError(t, err)
}

func TestRestoreRemovesSidecar(t *testing.T) {
	s := newTestStore(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "note.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	entry, err := s.Trash(context.Background(), path)
	require.NoError(t, err)

	_, err = s.Restore(context.Background(), entry)
	require.NoError(t, err)

	_, err = os.Stat(entry.TrashPath + metaSuffix)
	assert.True(t, os.IsNotExist(err), "sidecar must be gone after restore")

	entries, err := s.List("")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRestoreMissingEntry(t *testing.T) {
	s := newTestStore(t)
	ghost := &Entry{
		TrashPath:    filepath.Join(s.Root(), "ghost.txt.123"),
		OriginalPath: "/tmp/ghost.txt",
		TrashedAt:    time.Now(),
	}
	_, err := s.Restore(context.Background(), ghost)
	assert.ErrorIs(t, err, ErrEntryNotFound)
}

func TestPurge(t *testing.T) {
	s := newTestStore(t)
	dir := t.TempDir()

	oldPath := filepath.Join(dir, "old.txt")
	newPath := filepath.Join(dir, "new.txt")
	require.NoError(t, os.WriteFile(oldPath, []byte("old"), 0o644))
	require.NoError(t, os.WriteFile(newPath, []byte("new"), 0o644))

	oldEntry, err := s.Trash(context.Background(), oldPath)
	require.NoError(t, err)
	_, err = s.Trash(context.Background(), newPath)
	require.NoError(t, err)

	// Age the first entry by rewriting its sidecar.
	oldEntry.TrashedAt = time.Now().UTC().Add(-48 * time.Hour)
	require.NoError(t, s.writeSidecar(oldEntry))

	removed, err := s.Purge(context.Background(), 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	entries, err := s.List("")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "new.txt", entries[0].Name())

	_, err = os.Stat(oldEntry.TrashPath)
	assert.True(t, os.IsNotExist(err))
}

func TestRemove(t *testing.T) {
	s := newTestStore(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "gone.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	entry, err := s.Trash(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, s.Remove(context.Background(), entry))

	_, err = os.Stat(entry.TrashPath)
	assert.True(t, os.IsNotExist(err))
	_, err = s.Restore(context.Background(), entry)
	assert.True(t, errors.Is(err, ErrEntryNotFound))
}

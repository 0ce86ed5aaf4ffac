package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/ferry/pkg/ferry/checksum"
	"github.com/jamesainslie/ferry/pkg/ferry/journal"
	"github.com/jamesainslie/ferry/pkg/ferry/types"
)

func TestMoveFile(t *testing.T) {
	m := newTestManager(t)
	dir := t.TempDir()
	src := filepath.Join(dir, "a.txt")
	dst := filepath.Join(dir, "b.txt")
	writeFile(t, src, "payload")

	manifest, err := m.Move(context.Background(), []string{src}, dst)
	require.NoError(t, err)
	require.Len(t, manifest.Results, 1)
	assert.True(t, manifest.Results[0].Success)
	assert.Equal(t, src, manifest.Results[0].Source)
	assert.Equal(t, dst, manifest.Results[0].Destination)
	assert.Equal(t, int64(len("payload")), manifest.Results[0].Size)

	assert.NoFileExists(t, src)
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	records, err := m.JournalList(0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "move", records[0].Op)
	assert.Equal(t, journal.StatusCommitted, records[0].Status)

	entries, err := m.HistoryList(0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, types.OpMove, entries[0].Operation)
	assert.True(t, entries[0].Success)
	assert.Equal(t, dst, entries[0].Destination)
}

func TestMoveMultipleIntoDir(t *testing.T) {
	m := newTestManager(t)
	dir := t.TempDir()
	dest := filepath.Join(dir, "dest")
	require.NoError(t, os.Mkdir(dest, 0o755))

	sources := make([]string, 0, 3)
	for _, name := range []string{"one.txt", "two.txt", "three.txt"} {
		path := filepath.Join(dir, name)
		writeFile(t, path, name)
		sources = append(sources, path)
	}

	manifest, err := m.Move(context.Background(), sources, dest)
	require.NoError(t, err)
	assert.Equal(t, 3, manifest.Completed())
	assert.Equal(t, 0, manifest.Failed())

	for i, name := range []string{"one.txt", "two.txt", "three.txt"} {
		assert.Equal(t, filepath.Join(dest, name), manifest.Results[i].Destination)
		assert.NoFileExists(t, sources[i])
		assert.FileExists(t, filepath.Join(dest, name))
	}
}

func TestMoveMultipleRequiresDirDest(t *testing.T) {
	m := newTestManager(t)
	dir := t.TempDir()
	a := filepath.Join(dir, "a.txt")
	b := filepath.Join(dir, "b.txt")
	writeFile(t, a, "a")
	writeFile(t, b, "b")

	_, err := m.Move(context.Background(), []string{a, b}, filepath.Join(dir, "nowhere"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a directory")
	assert.FileExists(t, a)
	assert.FileExists(t, b)
}

func TestMoveAutoBackupPreservesDestination(t *testing.T) {
	m := newTestManager(t, func(c *Config) { c.AutoBackup = true })
	dir := t.TempDir()
	src := filepath.Join(dir, "new.txt")
	dst := filepath.Join(dir, "config.txt")
	writeFile(t, src, "new contents")
	writeFile(t, dst, "old contents")

	manifest, err := m.Move(context.Background(), []string{src}, dst)
	require.NoError(t, err)
	require.True(t, manifest.OK())

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "new contents", string(data))

	backup, err := os.ReadFile(dst + ".bak")
	require.NoError(t, err)
	assert.Equal(t, "old contents", string(backup))
}

func TestCopyFileVerifiesChecksum(t *testing.T) {
	m := newTestManager(t, func(c *Config) { c.VerifyChecksum = true })
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	dst := filepath.Join(dir, "dst.bin")
	content := "checksummed content"
	writeFile(t, src, content)

	manifest, err := m.Copy(context.Background(), []string{src}, dst)
	require.NoError(t, err)
	require.Len(t, manifest.Results, 1)
	res := manifest.Results[0]
	require.True(t, res.Success)
	assert.True(t, res.ChecksumVerified)
	assert.Equal(t, checksum.DigestBytes([]byte(content)), res.Checksum)

	// Copy leaves the source in place.
	assert.FileExists(t, src)
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, content, string(data))
}

func TestCopyDirectoryTree(t *testing.T) {
	m := newTestManager(t)
	dir := t.TempDir()
	src := filepath.Join(dir, "tree")
	require.NoError(t, os.MkdirAll(filepath.Join(src, "nested"), 0o755))
	writeFile(t, filepath.Join(src, "top.txt"), "top")
	writeFile(t, filepath.Join(src, "nested", "deep.txt"), "deep")

	dst := filepath.Join(dir, "tree-copy")
	manifest, err := m.Copy(context.Background(), []string{src}, dst)
	require.NoError(t, err)
	require.True(t, manifest.OK())

	for _, rel := range []string{"top.txt", filepath.Join("nested", "deep.txt")} {
		want, err := os.ReadFile(filepath.Join(src, rel))
		require.NoError(t, err)
		got, err := os.ReadFile(filepath.Join(dst, rel))
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestCopyPartialBatch(t *testing.T) {
	m := newTestManager(t, func(c *Config) { c.Concurrency = 4 })
	dir := t.TempDir()
	dest := filepath.Join(dir, "dest")
	require.NoError(t, os.Mkdir(dest, 0o755))

	names := []string{"f0.txt", "f1.txt", "f2.txt", "f3.txt", "f4.txt"}
	sources := make([]string, len(names))
	for i, name := range names {
		sources[i] = filepath.Join(dir, name)
		if i == 2 {
			continue // f2.txt never exists
		}
		writeFile(t, sources[i], name)
	}

	manifest, err := m.Copy(context.Background(), sources, dest)
	require.NoError(t, err)
	assert.Equal(t, 4, manifest.Completed())
	assert.Equal(t, 1, manifest.Failed())
	assert.False(t, manifest.OK())

	require.Len(t, manifest.Results, len(names))
	assert.False(t, manifest.Results[2].Success)
	assert.Contains(t, manifest.Results[2].Error, "no such file")
	for _, i := range []int{0, 1, 3, 4} {
		assert.True(t, manifest.Results[i].Success, "result %d", i)
		assert.FileExists(t, filepath.Join(dest, names[i]))
	}
	assert.NoFileExists(t, filepath.Join(dest, "f2.txt"))
}

func TestDeleteSoftGoesToTrash(t *testing.T) {
	m := newTestManager(t)
	dir := t.TempDir()
	victim := filepath.Join(dir, "notes.txt")
	writeFile(t, victim, "keep me around")

	manifest, err := m.Delete(context.Background(), []string{victim}, DeleteOpts{Soft: true})
	require.NoError(t, err)
	require.True(t, manifest.OK())
	assert.Equal(t, types.OpTrash, manifest.Operation)
	assert.NoFileExists(t, victim)

	entries, err := m.TrashList("")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, victim, entries[0].OriginalPath)
	assert.Equal(t, entries[0].TrashPath, manifest.Results[0].Destination)

	data, err := os.ReadFile(entries[0].TrashPath)
	require.NoError(t, err)
	assert.Equal(t, "keep me around", string(data))
}

func TestDeletePermanentFile(t *testing.T) {
	m := newTestManager(t)
	dir := t.TempDir()
	victim := filepath.Join(dir, "scratch.txt")
	writeFile(t, victim, "gone")

	manifest, err := m.Delete(context.Background(), []string{victim}, DeleteOpts{})
	require.NoError(t, err)
	require.True(t, manifest.OK())
	assert.Equal(t, types.OpDelete, manifest.Operation)
	assert.Equal(t, int64(len("gone")), manifest.Results[0].Size)
	assert.NoFileExists(t, victim)

	// Permanent deletes never touch the trash.
	entries, err := m.TrashList("")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDeleteNonRecursiveDirFails(t *testing.T) {
	m := newTestManager(t)
	dir := t.TempDir()
	full := filepath.Join(dir, "full")
	require.NoError(t, os.Mkdir(full, 0o755))
	writeFile(t, filepath.Join(full, "child.txt"), "child")

	manifest, err := m.Delete(context.Background(), []string{full}, DeleteOpts{})
	require.NoError(t, err)
	require.Len(t, manifest.Results, 1)
	assert.False(t, manifest.Results[0].Success)
	assert.NotEmpty(t, manifest.Results[0].Error)
	assert.DirExists(t, full)
	assert.FileExists(t, filepath.Join(full, "child.txt"))
}

func TestDeleteRecursiveRemovesTree(t *testing.T) {
	m := newTestManager(t)
	dir := t.TempDir()
	tree := filepath.Join(dir, "tree")
	require.NoError(t, os.MkdirAll(filepath.Join(tree, "sub"), 0o755))
	writeFile(t, filepath.Join(tree, "sub", "leaf.txt"), "leaf")

	manifest, err := m.Delete(context.Background(), []string{tree}, DeleteOpts{Recursive: true})
	require.NoError(t, err)
	require.True(t, manifest.OK())
	assert.NoDirExists(t, tree)
}

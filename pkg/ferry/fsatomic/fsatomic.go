// Package fsatomic performs crash-safe filesystem mutations. Every write
// stages content into a temp file in the same directory as the destination
// (same filesystem, so the final rename is atomic), fsyncs the data, renames
// into place, then fsyncs the containing directory. On any failure before
// the rename the temp file is removed and the destination is untouched: a
// reader observes the destination either fully old or fully new, never
// partial.
package fsatomic

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/jamesainslie/ferry/pkg/ferry/checksum"
)

// ErrFileExists indicates the destination already exists and overwriting
// was not requested.
var ErrFileExists = errors.New("destination already exists")

// defaultMode is the permission applied to written files when the caller
// does not specify one.
const defaultMode fs.FileMode = 0o644

// WriteOptions configures WriteFile.
type WriteOptions struct {
	// Mode is the permission for the written file. Zero selects 0644.
	Mode fs.FileMode

	// Backup copies an existing destination to BackupPath(path) before
	// the replace.
	Backup bool
}

// CopyOptions configures CopyFile, CopyDir and Move.
type CopyOptions struct {
	// Overwrite allows replacing an existing destination.
	Overwrite bool

	// VerifyChecksum cross-checks the staged copy's digest against the
	// source before the final rename.
	VerifyChecksum bool

	// ChunkSize is the streaming buffer size. Zero selects the checksum
	// package default.
	ChunkSize int

	// PreserveTimes carries the source modification time onto the
	// destination. File modes are always preserved on copies.
	PreserveTimes bool
}

// BackupPath returns the path an existing destination is copied to when
// a backup is requested.
func BackupPath(path string) string {
	return path + ".bak"
}

// WriteFile atomically replaces path with data. The destination is
// observed either in its old state or fully written, never partial.
func WriteFile(path string, data []byte, opts WriteOptions) error {
	mode := opts.Mode
	if mode == 0 {
		mode = defaultMode
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, tmpPattern(path))
	if err != nil {
		return fmt.Errorf("create temp in %q: %w", dir, err)
	}
	tmpPath := tmp.Name()

	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp for %q: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp for %q: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp for %q: %w", path, err)
	}
	if err := os.Chmod(tmpPath, mode); err != nil {
		return fmt.Errorf("chmod temp for %q: %w", path, err)
	}

	if opts.Backup {
		if _, err := os.Lstat(path); err == nil {
			if err := backupCopy(path); err != nil {
				return fmt.Errorf("backup %q: %w", path, err)
			}
		}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp to %q: %w", path, err)
	}
	committed = true

	if err := syncDir(dir); err != nil {
		return fmt.Errorf("sync dir %q: %w", dir, err)
	}
	return nil
}

// CopyFile atomically copies src to dst, streaming through a temp sibling
// of dst. With VerifyChecksum the staged copy is re-read from disk and its
// digest compared against the bytes read from src; a mismatch removes the
// staged copy and returns checksum.ErrChecksumMismatch. The returned digest
// is empty unless verification ran.
func CopyFile(src, dst string, opts CopyOptions) (string, error) {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return "", fmt.Errorf("stat %q: %w", src, err)
	}
	if srcInfo.IsDir() {
		return "", fmt.Errorf("copy %q: is a directory, use CopyDir", src)
	}
	if !opts.Overwrite {
		if _, err := os.Lstat(dst); err == nil {
			return "", fmt.Errorf("%w: %q", ErrFileExists, dst)
		}
	}

	dir := filepath.Dir(dst)
	tmp, err := os.CreateTemp(dir, tmpPattern(dst))
	if err != nil {
		return "", fmt.Errorf("create temp in %q: %w", dir, err)
	}
	tmpPath := tmp.Name()

	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpPath)
		}
	}()

	srcDigest, err := stageFile(src, tmp, opts)
	if err != nil {
		return "", err
	}
	if err := os.Chmod(tmpPath, srcInfo.Mode().Perm()); err != nil {
		return "", fmt.Errorf("chmod staged copy of %q: %w", src, err)
	}

	digest := ""
	if opts.VerifyChecksum {
		// Re-read what actually landed on disk, not the buffer we
		// wrote: this is the torn-write detection the staging exists
		// for.
		stagedDigest, err := checksum.DigestChunk(tmpPath, opts.ChunkSize)
		if err != nil {
			return "", fmt.Errorf("digest staged copy of %q: %w", src, err)
		}
		if stagedDigest != srcDigest {
			return "", fmt.Errorf("%w: staged copy of %q does not match source",
				checksum.ErrChecksumMismatch, src)
		}
		digest = stagedDigest
	}

	if opts.PreserveTimes {
		mt := srcInfo.ModTime()
		if err := os.Chtimes(tmpPath, mt, mt); err != nil {
			return "", fmt.Errorf("preserve times on staged copy of %q: %w", src, err)
		}
	}

	if err := os.Rename(tmpPath, dst); err != nil {
		return "", fmt.Errorf("rename staged copy to %q: %w", dst, err)
	}
	committed = true

	if err := syncDir(dir); err != nil {
		return "", fmt.Errorf("sync dir %q: %w", dir, err)
	}
	return digest, nil
}

// CopyDir recursively copies the directory src to dst. The whole tree is
// staged into a hidden temp sibling of dst, then swapped into place with a
// single rename, so dst appears fully copied or not at all. With Overwrite
// an existing dst is renamed aside first and removed after the swap.
func CopyDir(src, dst string, opts CopyOptions) error {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat %q: %w", src, err)
	}
	if !srcInfo.IsDir() {
		return fmt.Errorf("copy %q: not a directory, use CopyFile", src)
	}
	dstExists := false
	if _, err := os.Lstat(dst); err == nil {
		if !opts.Overwrite {
			return fmt.Errorf("%w: %q", ErrFileExists, dst)
		}
		dstExists = true
	}

	parent := filepath.Dir(dst)
	staging, err := os.MkdirTemp(parent, tmpPattern(dst))
	if err != nil {
		return fmt.Errorf("create staging dir in %q: %w", parent, err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = os.RemoveAll(staging)
		}
	}()

	if err := os.Chmod(staging, srcInfo.Mode().Perm()); err != nil {
		return fmt.Errorf("chmod staging dir: %w", err)
	}
	if err := stageTree(src, staging, opts); err != nil {
		return err
	}

	if dstExists {
		old, err := os.MkdirTemp(parent, tmpPattern(dst))
		if err != nil {
			return fmt.Errorf("create holding dir in %q: %w", parent, err)
		}
		// MkdirTemp gives a unique name; rename over it requires it
		// to be empty, which it is, but renaming a dir onto an empty
		// dir is not portable. Remove and reuse the unique name.
		if err := os.Remove(old); err != nil {
			return fmt.Errorf("prepare holding dir: %w", err)
		}
		if err := os.Rename(dst, old); err != nil {
			return fmt.Errorf("set aside %q: %w", dst, err)
		}
		if err := os.Rename(staging, dst); err != nil {
			// Put the original back; the copy failed but dst must
			// not be lost.
			_ = os.Rename(old, dst)
			return fmt.Errorf("swap staged tree to %q: %w", dst, err)
		}
		committed = true
		_ = os.RemoveAll(old)
	} else {
		if err := os.Rename(staging, dst); err != nil {
			return fmt.Errorf("rename staged tree to %q: %w", dst, err)
		}
		committed = true
	}

	if err := syncDir(parent); err != nil {
		return fmt.Errorf("sync dir %q: %w", parent, err)
	}
	return nil
}

// Move renames src to dst. When the rename crosses filesystems (EXDEV)
// it falls back to an atomic copy followed by removal of the source, so
// the destination keeps the fully-old-or-fully-new guarantee either way.
// The returned digest is non-empty only for a copy fallback with
// VerifyChecksum set.
func Move(src, dst string, opts CopyOptions) (string, error) {
	if !opts.Overwrite {
		if _, err := os.Lstat(dst); err == nil {
			return "", fmt.Errorf("%w: %q", ErrFileExists, dst)
		}
	}

	err := os.Rename(src, dst)
	if err == nil {
		if serr := syncDir(filepath.Dir(dst)); serr != nil {
			return "", fmt.Errorf("sync dir %q: %w", filepath.Dir(dst), serr)
		}
		return "", nil
	}
	if !errors.Is(err, unix.EXDEV) {
		return "", fmt.Errorf("rename %q to %q: %w", src, dst, err)
	}

	// Cross-device: stage a full copy at the destination, then drop the
	// source. A crash between the two leaves both copies intact, never
	// neither.
	srcInfo, err := os.Lstat(src)
	if err != nil {
		return "", fmt.Errorf("stat %q: %w", src, err)
	}
	if srcInfo.IsDir() {
		if err := CopyDir(src, dst, opts); err != nil {
			return "", err
		}
		if err := os.RemoveAll(src); err != nil {
			return "", fmt.Errorf("remove source tree %q after copy: %w", src, err)
		}
		return "", nil
	}

	digest, err := CopyFile(src, dst, opts)
	if err != nil {
		return "", err
	}
	if err := os.Remove(src); err != nil {
		return "", fmt.Errorf("remove source %q after copy: %w", src, err)
	}
	return digest, nil
}

// stageFile streams src into the open temp file, syncing and closing it.
// The returned digest is of the bytes read from src, computed only when
// verification is requested.
func stageFile(src string, tmp *os.File, opts CopyOptions) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("open %q: %w", src, err)
	}
	defer in.Close()

	chunk := opts.ChunkSize
	if chunk <= 0 {
		chunk = checksum.DefaultChunkSize
	}
	buf := make([]byte, chunk)

	var reader io.Reader = in
	h := sha256.New()
	if opts.VerifyChecksum {
		reader = io.TeeReader(in, h)
	}

	if _, err := io.CopyBuffer(tmp, reader, buf); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("copy %q: %w", src, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("sync staged copy of %q: %w", src, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close staged copy of %q: %w", src, err)
	}

	if opts.VerifyChecksum {
		return hex.EncodeToString(h.Sum(nil)), nil
	}
	return "", nil
}

// stageTree copies the contents of srcDir into dstDir, which must already
// exist. Symlinks are recreated, not followed.
func stageTree(srcDir, dstDir string, opts CopyOptions) error {
	entries, err := os.ReadDir(srcDir)
	if err != nil {
		return fmt.Errorf("read dir %q: %w", srcDir, err)
	}

	for _, entry := range entries {
		srcPath := filepath.Join(srcDir, entry.Name())
		dstPath := filepath.Join(dstDir, entry.Name())

		info, err := entry.Info()
		if err != nil {
			return fmt.Errorf("stat %q: %w", srcPath, err)
		}

		switch {
		case info.Mode()&os.ModeSymlink != 0:
			target, err := os.Readlink(srcPath)
			if err != nil {
				return fmt.Errorf("readlink %q: %w", srcPath, err)
			}
			if err := os.Symlink(target, dstPath); err != nil {
				return fmt.Errorf("recreate symlink %q: %w", dstPath, err)
			}
		case info.IsDir():
			if err := os.Mkdir(dstPath, info.Mode().Perm()); err != nil {
				return fmt.Errorf("mkdir %q: %w", dstPath, err)
			}
			if err := stageTree(srcPath, dstPath, opts); err != nil {
				return err
			}
			if opts.PreserveTimes {
				mt := info.ModTime()
				if err := os.Chtimes(dstPath, mt, mt); err != nil {
					return fmt.Errorf("preserve times on %q: %w", dstPath, err)
				}
			}
		default:
			if err := stagePlainFile(srcPath, dstPath, info, opts); err != nil {
				return err
			}
		}
	}
	return nil
}

// stagePlainFile copies one regular file into the staging tree with the
// same sync discipline as CopyFile.
func stagePlainFile(src, dst string, info fs.FileInfo, opts CopyOptions) error {
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("create %q: %w", dst, err)
	}
	if _, err := stageFile(src, out, CopyOptions{ChunkSize: opts.ChunkSize}); err != nil {
		_ = os.Remove(dst)
		return err
	}
	if opts.PreserveTimes {
		mt := info.ModTime()
		if err := os.Chtimes(dst, mt, mt); err != nil {
			return fmt.Errorf("preserve times on %q: %w", dst, err)
		}
	}
	return nil
}

// backupCopy copies path to BackupPath(path) with the same sync discipline
// as a regular write, so a crash cannot leave a torn backup either.
func backupCopy(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	bak := BackupPath(path)

	out, err := os.OpenFile(bak, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := stageFile(path, out, CopyOptions{}); err != nil {
		_ = os.Remove(bak)
		return err
	}
	return nil
}

// syncDir fsyncs a directory so a completed rename inside it survives a
// crash.
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}

// tmpPattern builds a hidden CreateTemp pattern colocated with path.
func tmpPattern(path string) string {
	return "." + filepath.Base(path) + ".tmp-*"
}

package engine

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/jamesainslie/ferry/pkg/ferry/checksum"
	"github.com/jamesainslie/ferry/pkg/ferry/types"
)

// Verify re-hashes paths and compares each file against the digest cache,
// reporting content drift without mutating anything. Directories are
// verified recursively; files not yet in the cache are recorded for next
// time and reported unverified.
func (m *Manager) Verify(ctx context.Context, paths []string) (*types.Manifest, error) {
	if len(paths) == 0 {
		return nil, errNoTargets
	}
	files, err := expandFiles(paths)
	if err != nil {
		return nil, err
	}

	items := make([]work, 0, len(files))
	for _, path := range files {
		path := path
		items = append(items, work{
			source: path,
			run: func(ctx context.Context) (*mutation, error) {
				return m.verifyOne(ctx, path)
			},
		})
	}
	return m.runBatch(ctx, types.OpVerify, nil, items, batchOpts{record: true}), nil
}

// expandFiles resolves the verify set: files pass through, directories
// contribute every regular file beneath them.
func expandFiles(paths []string) ([]string, error) {
	var files []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, path)
			continue
		}
		err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.Type().IsRegular() {
				files = append(files, p)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}

// verifyOne hashes one file. A cache hit whose stored digest no longer
// matches the content is drift: the size and mtime are unchanged but the
// bytes are not.
func (m *Manager) verifyOne(_ context.Context, path string) (*mutation, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", path)
	}

	fresh, err := m.verifier.Digest(path)
	if err != nil {
		return nil, err
	}

	cache := m.digestCache()
	if cache == nil {
		return &mutation{checksum: fresh, size: info.Size()}, nil
	}

	cached, err := cache.Get(path, info)
	if err != nil {
		// First sighting, or the file legitimately changed: prime the
		// cache for next time.
		if perr := cache.Put(path, info, fresh); perr != nil {
			m.log.Warn("digest cache put failed", "path", path, "error", perr)
		}
		return &mutation{checksum: fresh, size: info.Size()}, nil
	}
	if cached != fresh {
		return nil, fmt.Errorf("%w: %q", checksum.ErrChecksumMismatch, path)
	}
	return &mutation{checksum: fresh, verified: true, size: info.Size()}, nil
}

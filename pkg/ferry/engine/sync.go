package engine

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/charlievieth/fastwalk"

	"github.com/jamesainslie/ferry/pkg/ferry/filter"
	"github.com/jamesainslie/ferry/pkg/ferry/fsatomic"
	"github.com/jamesainslie/ferry/pkg/ferry/retry"
	"github.com/jamesainslie/ferry/pkg/ferry/safety"
	"github.com/jamesainslie/ferry/pkg/ferry/types"
)

// SyncOpts adjusts Sync.
type SyncOpts struct {
	// Delete removes destination entries with no source counterpart,
	// under an extra strong confirmation.
	Delete bool

	// Checksum diffs file content through the digest cache instead of
	// comparing sizes and modification times.
	Checksum bool

	// Exclude skips paths matching any glob, relative to the tree roots.
	// Excluded destination paths are never treated as orphans.
	Exclude []string
}

// Sync makes dst mirror src: new and changed files are copied atomically,
// unchanged files are left alone, and with Delete set, orphaned
// destination entries are removed after an extra confirmation.
func (m *Manager) Sync(ctx context.Context, src, dst string, opts SyncOpts) (*types.Manifest, error) {
	info, err := os.Stat(src)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("sync source %q is not a directory", src)
	}
	if err := filter.ValidatePatterns(opts.Exclude); err != nil {
		return nil, err
	}

	check, err := m.gate(ctx, types.OpSync, []string{src}, dst)
	if err != nil {
		return nil, err
	}

	pairs, orphans, err := m.syncDiff(ctx, src, dst, opts)
	if err != nil {
		return nil, err
	}

	items := make([]work, 0, len(pairs)+len(orphans))
	for _, p := range pairs {
		p := p
		items = append(items, work{
			source: p.src,
			dest:   p.dst,
			run: func(ctx context.Context) (*mutation, error) {
				return m.syncOne(ctx, p.src, p.dst)
			},
		})
	}

	if len(orphans) > 0 {
		if m.confirmOrphanDelete(ctx, check, dst, orphans) {
			for _, orphan := range orphans {
				orphan := orphan
				items = append(items, work{
					source: orphan,
					run: func(context.Context) (*mutation, error) {
						if err := os.RemoveAll(orphan); err != nil {
							return nil, err
						}
						return &mutation{}, nil
					},
				})
			}
		} else {
			check.Warnings = append(check.Warnings,
				fmt.Sprintf("kept %d orphaned destination entries (deletion not confirmed)", len(orphans)))
		}
	}

	return m.runBatch(ctx, types.OpSync, check, items, batchOpts{journal: true, record: true}), nil
}

// confirmOrphanDelete runs the extra strong gate for orphan removal. Dry
// runs plan the deletions without asking.
func (m *Manager) confirmOrphanDelete(ctx context.Context, check *safety.Check, dst string, orphans []string) bool {
	if m.cfg.DryRun {
		return true
	}
	if m.cfg.Confirmer == nil {
		return false
	}
	ok, err := m.cfg.Confirmer.Confirm(ctx, ConfirmRequest{
		Operation: types.OpSync,
		Targets:   orphans,
		Dest:      dst,
		Check:     check,
		Strength:  StrengthStrong,
	})
	if err != nil {
		m.log.Warn("orphan delete confirmation failed", "error", err)
		return false
	}
	return ok
}

// syncPair is one file the diff decided to copy.
type syncPair struct {
	rel string
	src string
	dst string
}

// syncDiff walks the source tree computing the copy set, then the
// destination tree computing the orphan set. An orphaned directory is
// reported once, at its top.
func (m *Manager) syncDiff(ctx context.Context, src, dst string, opts SyncOpts) ([]syncPair, []string, error) {
	var (
		mu    sync.Mutex
		pairs []syncPair
		seen  = make(map[string]bool)
	)

	conf := fastwalk.Config{Follow: false}
	done := ctx.Done()
	err := fastwalk.Walk(&conf, src, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-done:
			return ctx.Err()
		default:
		}
		if err != nil {
			return err
		}
		if path == src {
			return nil
		}
		rel, rerr := filepath.Rel(src, path)
		if rerr != nil {
			return rerr
		}
		if filter.MatchAny(rel, opts.Exclude) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		mu.Lock()
		seen[rel] = true
		mu.Unlock()

		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		info, ierr := d.Info()
		if ierr != nil {
			return ierr
		}
		target := filepath.Join(dst, rel)
		need, nerr := m.needsCopy(path, target, info, opts.Checksum)
		if nerr != nil {
			return nerr
		}
		if need {
			mu.Lock()
			pairs = append(pairs, syncPair{rel: rel, src: path, dst: target})
			mu.Unlock()
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("walk %q: %w", src, err)
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].rel < pairs[j].rel })

	if !opts.Delete {
		return pairs, nil, nil
	}
	if _, err := os.Stat(dst); err != nil {
		if os.IsNotExist(err) {
			return pairs, nil, nil
		}
		return nil, nil, err
	}

	var orphans []string
	err = filepath.WalkDir(dst, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == dst {
			return nil
		}
		rel, rerr := filepath.Rel(dst, path)
		if rerr != nil {
			return rerr
		}
		if filter.MatchAny(rel, opts.Exclude) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if seen[rel] {
			return nil
		}
		orphans = append(orphans, path)
		if d.IsDir() {
			return fs.SkipDir
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("walk %q: %w", dst, err)
	}
	return pairs, orphans, nil
}

// needsCopy reports whether src must be copied over dst. A missing,
// non-regular, or size-changed destination always copies. Otherwise
// checksum mode compares digests through the cache, and the default
// compares modification times with one second of tolerance.
func (m *Manager) needsCopy(src, dst string, srcInfo fs.FileInfo, byChecksum bool) (bool, error) {
	dstInfo, err := os.Lstat(dst)
	if err != nil {
		if os.IsNotExist(err) {
			return true, nil
		}
		return false, err
	}
	if !dstInfo.Mode().IsRegular() || dstInfo.Size() != srcInfo.Size() {
		return true, nil
	}

	if byChecksum {
		srcSum, err := m.fileDigest(src, srcInfo)
		if err != nil {
			return false, err
		}
		dstSum, err := m.fileDigest(dst, dstInfo)
		if err != nil {
			return false, err
		}
		return srcSum != dstSum, nil
	}

	diff := srcInfo.ModTime().Sub(dstInfo.ModTime())
	if diff < 0 {
		diff = -diff
	}
	return diff > time.Second, nil
}

// syncOne copies one changed file into place, creating parents as needed.
func (m *Manager) syncOne(ctx context.Context, src, dst string) (*mutation, error) {
	info, err := os.Stat(src)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return nil, err
	}

	var digest string
	err = retry.Do(ctx, m.cfg.MaxRetries, m.cfg.RetryDelay, func() error {
		if err := retry.CheckLocked(src); err != nil {
			return err
		}
		d, cerr := fsatomic.CopyFile(src, dst, m.copyOptions())
		digest = d
		return cerr
	})
	if err != nil {
		return nil, err
	}
	return &mutation{checksum: digest, verified: digest != "", size: info.Size()}, nil
}

package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jamesainslie/ferry/pkg/ferry/fsatomic"
	"github.com/jamesainslie/ferry/pkg/ferry/retry"
	"github.com/jamesainslie/ferry/pkg/ferry/types"
)

// Move relocates sources to dest. A single source may be renamed to a new
// name; multiple sources require an existing directory destination, each
// landing under its own base name.
func (m *Manager) Move(ctx context.Context, sources []string, dest string) (*types.Manifest, error) {
	items, err := m.transferWork(sources, dest, m.moveOne)
	if err != nil {
		return nil, err
	}
	check, err := m.gate(ctx, types.OpMove, sources, dest)
	if err != nil {
		return nil, err
	}
	return m.runBatch(ctx, types.OpMove, check, items, batchOpts{journal: true, record: true}), nil
}

// Copy duplicates sources at dest. Directories copy recursively. The same
// destination rules as Move apply.
func (m *Manager) Copy(ctx context.Context, sources []string, dest string) (*types.Manifest, error) {
	items, err := m.transferWork(sources, dest, m.copyOne)
	if err != nil {
		return nil, err
	}
	check, err := m.gate(ctx, types.OpCopy, sources, dest)
	if err != nil {
		return nil, err
	}
	return m.runBatch(ctx, types.OpCopy, check, items, batchOpts{journal: true, record: true}), nil
}

// transferWork plans one work item per source for move and copy, resolving
// the per-source destination.
func (m *Manager) transferWork(sources []string, dest string, run func(ctx context.Context, src, dst string) (*mutation, error)) ([]work, error) {
	if len(sources) == 0 {
		return nil, errNoTargets
	}
	info, err := os.Stat(dest)
	destIsDir := err == nil && info.IsDir()
	if len(sources) > 1 && !destIsDir {
		return nil, fmt.Errorf("destination %q is not a directory (required for multiple sources)", dest)
	}

	items := make([]work, 0, len(sources))
	for _, src := range sources {
		src := src
		target := dest
		if destIsDir {
			target = filepath.Join(dest, filepath.Base(src))
		}
		items = append(items, work{
			source: src,
			dest:   target,
			run: func(ctx context.Context) (*mutation, error) {
				return run(ctx, src, target)
			},
		})
	}
	return items, nil
}

// moveOne relocates one path, waiting out a locked source within the retry
// budget. Cross-device moves fall back to copy+remove inside fsatomic.
func (m *Manager) moveOne(ctx context.Context, src, dst string) (*mutation, error) {
	info, err := os.Lstat(src)
	if err != nil {
		return nil, err
	}
	if err := m.backup(dst); err != nil {
		return nil, err
	}

	var digest string
	err = retry.Do(ctx, m.cfg.MaxRetries, m.cfg.RetryDelay, func() error {
		if !info.IsDir() {
			if err := retry.CheckLocked(src); err != nil {
				return err
			}
		}
		d, merr := fsatomic.Move(src, dst, m.copyOptions())
		digest = d
		return merr
	})
	if err != nil {
		return nil, err
	}

	mut := &mutation{checksum: digest, verified: digest != ""}
	if !info.IsDir() {
		mut.size = info.Size()
	}
	return mut, nil
}

// copyOne duplicates one path, file or tree.
func (m *Manager) copyOne(ctx context.Context, src, dst string) (*mutation, error) {
	info, err := os.Stat(src)
	if err != nil {
		return nil, err
	}
	if err := m.backup(dst); err != nil {
		return nil, err
	}
	opts := m.copyOptions()

	if info.IsDir() {
		if err := fsatomic.CopyDir(src, dst, opts); err != nil {
			return nil, err
		}
		return &mutation{}, nil
	}

	var digest string
	err = retry.Do(ctx, m.cfg.MaxRetries, m.cfg.RetryDelay, func() error {
		if err := retry.CheckLocked(src); err != nil {
			return err
		}
		d, cerr := fsatomic.CopyFile(src, dst, opts)
		digest = d
		return cerr
	})
	if err != nil {
		return nil, err
	}
	return &mutation{checksum: digest, verified: digest != "", size: info.Size()}, nil
}

// backup copies an existing file destination aside before it is replaced,
// when auto-backup is on. Directory destinations are left alone: copies
// into them merge rather than replace.
func (m *Manager) backup(dst string) error {
	if !m.cfg.AutoBackup {
		return nil
	}
	info, err := os.Lstat(dst)
	if err != nil || info.IsDir() {
		return nil
	}
	if _, err := fsatomic.CopyFile(dst, fsatomic.BackupPath(dst), fsatomic.CopyOptions{Overwrite: true}); err != nil {
		return fmt.Errorf("backup %q: %w", dst, err)
	}
	return nil
}

// DeleteOpts adjusts Delete.
type DeleteOpts struct {
	// Soft moves targets to the trash instead of removing them.
	Soft bool

	// Recursive permits removing non-empty directories permanently.
	Recursive bool
}

// Delete removes paths. Soft deletes rename into the trash and stay
// restorable; permanent deletes refuse non-empty directories unless
// Recursive is set.
func (m *Manager) Delete(ctx context.Context, paths []string, opts DeleteOpts) (*types.Manifest, error) {
	if len(paths) == 0 {
		return nil, errNoTargets
	}
	op := types.OpDelete
	if opts.Soft {
		op = types.OpTrash
	}
	check, err := m.gate(ctx, op, paths, "")
	if err != nil {
		return nil, err
	}

	items := make([]work, 0, len(paths))
	for _, path := range paths {
		path := path
		items = append(items, work{
			source: path,
			run: func(ctx context.Context) (*mutation, error) {
				return m.deleteOne(ctx, path, opts)
			},
		})
	}
	return m.runBatch(ctx, op, check, items, batchOpts{journal: true, record: true}), nil
}

// deleteOne removes one path.
func (m *Manager) deleteOne(ctx context.Context, path string, opts DeleteOpts) (*mutation, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return nil, err
	}

	if opts.Soft {
		entry, err := m.trash.Trash(ctx, path)
		if err != nil {
			return nil, err
		}
		return &mutation{dest: entry.TrashPath, size: entry.Size}, nil
	}

	if info.IsDir() {
		if opts.Recursive {
			if err := os.RemoveAll(path); err != nil {
				return nil, err
			}
			return &mutation{}, nil
		}
		// os.Remove fails on a non-empty directory, which is the contract:
		// recursive removal must be asked for.
		if err := os.Remove(path); err != nil {
			return nil, err
		}
		return &mutation{}, nil
	}

	err = retry.Do(ctx, m.cfg.MaxRetries, m.cfg.RetryDelay, func() error {
		if err := retry.CheckLocked(path); err != nil {
			return err
		}
		return os.Remove(path)
	})
	if err != nil {
		return nil, err
	}
	return &mutation{size: info.Size()}, nil
}

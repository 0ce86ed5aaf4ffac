package engine

import (
	"context"
	"fmt"
	"os"
	"os/user"
	"strconv"
	"time"

	"github.com/jamesainslie/ferry/pkg/ferry/checksum"
	"github.com/jamesainslie/ferry/pkg/ferry/fsatomic"
	"github.com/jamesainslie/ferry/pkg/ferry/retry"
	"github.com/jamesainslie/ferry/pkg/ferry/types"
)

// Create atomically writes content to path, replacing any existing file.
// The destination is observed either in its old state or fully written,
// never partial.
func (m *Manager) Create(ctx context.Context, path string, content []byte) (*types.Manifest, error) {
	check, err := m.gate(ctx, types.OpCreate, []string{path}, "")
	if err != nil {
		return nil, err
	}
	items := []work{{
		source: path,
		run: func(ctx context.Context) (*mutation, error) {
			return m.createOne(ctx, path, content)
		},
	}}
	return m.runBatch(ctx, types.OpCreate, check, items, batchOpts{journal: true, record: true}), nil
}

// createOne writes the file, waiting out a lock on an existing destination
// within the retry budget, then verifies the landed bytes when checksum
// verification is on.
func (m *Manager) createOne(ctx context.Context, path string, content []byte) (*mutation, error) {
	err := retry.Do(ctx, m.cfg.MaxRetries, m.cfg.RetryDelay, func() error {
		if _, serr := os.Lstat(path); serr == nil {
			if lerr := retry.CheckLocked(path); lerr != nil {
				return lerr
			}
		}
		return fsatomic.WriteFile(path, content, fsatomic.WriteOptions{Backup: m.cfg.AutoBackup})
	})
	if err != nil {
		return nil, err
	}

	mut := &mutation{size: int64(len(content))}
	if m.cfg.VerifyChecksum {
		expected := checksum.DigestBytes(content)
		if err := m.verifier.VerifyRetry(ctx, path, expected); err != nil {
			return nil, err
		}
		mut.checksum = expected
		mut.verified = true
	}
	return mut, nil
}

// Mkdir creates directories. With parents set, missing ancestors are
// created and existing directories are not an error.
func (m *Manager) Mkdir(ctx context.Context, paths []string, parents bool) (*types.Manifest, error) {
	if len(paths) == 0 {
		return nil, errNoTargets
	}
	check, err := m.gate(ctx, types.OpMkdir, paths, "")
	if err != nil {
		return nil, err
	}
	items := make([]work, 0, len(paths))
	for _, path := range paths {
		path := path
		items = append(items, work{
			source: path,
			run: func(context.Context) (*mutation, error) {
				if parents {
					if err := os.MkdirAll(path, 0o755); err != nil {
						return nil, err
					}
					return &mutation{}, nil
				}
				if err := os.Mkdir(path, 0o755); err != nil {
					return nil, err
				}
				return &mutation{}, nil
			},
		})
	}
	return m.runBatch(ctx, types.OpMkdir, check, items, batchOpts{journal: true, record: true}), nil
}

// Touch updates the modification time of each path, creating missing files
// empty.
func (m *Manager) Touch(ctx context.Context, paths []string) (*types.Manifest, error) {
	if len(paths) == 0 {
		return nil, errNoTargets
	}
	check, err := m.gate(ctx, types.OpTouch, paths, "")
	if err != nil {
		return nil, err
	}
	items := make([]work, 0, len(paths))
	for _, path := range paths {
		path := path
		items = append(items, work{
			source: path,
			run: func(context.Context) (*mutation, error) {
				return touchOne(path)
			},
		})
	}
	return m.runBatch(ctx, types.OpTouch, check, items, batchOpts{journal: true, record: true}), nil
}

func touchOne(path string) (*mutation, error) {
	now := time.Now()
	if _, err := os.Lstat(path); err == nil {
		if err := os.Chtimes(path, now, now); err != nil {
			return nil, err
		}
		return &mutation{}, nil
	}
	if err := fsatomic.WriteFile(path, nil, fsatomic.WriteOptions{}); err != nil {
		return nil, err
	}
	return &mutation{}, nil
}

// Chmod sets the permission bits on each path. Permission changes carry a
// HIGH floor at the gate: they can lock the owner out.
func (m *Manager) Chmod(ctx context.Context, mode os.FileMode, paths []string) (*types.Manifest, error) {
	if len(paths) == 0 {
		return nil, errNoTargets
	}
	check, err := m.gate(ctx, types.OpChmod, paths, "")
	if err != nil {
		return nil, err
	}
	items := make([]work, 0, len(paths))
	for _, path := range paths {
		path := path
		items = append(items, work{
			source: path,
			run: func(context.Context) (*mutation, error) {
				if err := os.Chmod(path, mode); err != nil {
					return nil, err
				}
				return &mutation{}, nil
			},
		})
	}
	return m.runBatch(ctx, types.OpChmod, check, items, batchOpts{journal: true, record: true}), nil
}

// Chown changes ownership of each path. Owner and group accept names or
// numeric ids; an empty value leaves that side unchanged.
func (m *Manager) Chown(ctx context.Context, owner, group string, paths []string) (*types.Manifest, error) {
	if len(paths) == 0 {
		return nil, errNoTargets
	}
	uid, gid, err := resolveOwner(owner, group)
	if err != nil {
		return nil, err
	}
	check, err := m.gate(ctx, types.OpChown, paths, "")
	if err != nil {
		return nil, err
	}
	items := make([]work, 0, len(paths))
	for _, path := range paths {
		path := path
		items = append(items, work{
			source: path,
			run: func(context.Context) (*mutation, error) {
				if err := os.Chown(path, uid, gid); err != nil {
					return nil, err
				}
				return &mutation{}, nil
			},
		})
	}
	return m.runBatch(ctx, types.OpChown, check, items, batchOpts{journal: true, record: true}), nil
}

// resolveOwner maps owner and group to numeric ids. Names are looked up;
// numeric strings pass through; empty selects -1, which chown treats as
// unchanged.
func resolveOwner(owner, group string) (int, int, error) {
	uid := -1
	gid := -1
	if owner != "" {
		u, err := user.Lookup(owner)
		switch {
		case err == nil:
			n, perr := strconv.Atoi(u.Uid)
			if perr != nil {
				return 0, 0, fmt.Errorf("user %q: non-numeric uid %q", owner, u.Uid)
			}
			uid = n
		default:
			n, perr := strconv.Atoi(owner)
			if perr != nil {
				return 0, 0, fmt.Errorf("lookup user %q: %w", owner, err)
			}
			uid = n
		}
	}
	if group != "" {
		g, err := user.LookupGroup(group)
		switch {
		case err == nil:
			n, perr := strconv.Atoi(g.Gid)
			if perr != nil {
				return 0, 0, fmt.Errorf("group %q: non-numeric gid %q", group, g.Gid)
			}
			gid = n
		default:
			n, perr := strconv.Atoi(group)
			if perr != nil {
				return 0, 0, fmt.Errorf("lookup group %q: %w", group, err)
			}
			gid = n
		}
	}
	return uid, gid, nil
}

// Link creates a hard or symbolic link at linkName pointing to target. An
// existing symlink at linkName is replaced; any other existing file is
// refused. Symbolic links may dangle, which the manifest reports as a
// warning.
func (m *Manager) Link(ctx context.Context, target, linkName string, symbolic bool) (*types.Manifest, error) {
	check, err := m.gate(ctx, types.OpLink, []string{target}, linkName)
	if err != nil {
		return nil, err
	}

	// The link name must always sit inside the sandbox. The target is
	// validated only when it exists: dangling symlinks are legitimate.
	guards := []string{linkName}
	if _, serr := os.Lstat(target); serr == nil {
		guards = append(guards, target)
	} else if symbolic {
		check.Warnings = append(check.Warnings, fmt.Sprintf("link target does not exist: %s", target))
	}

	items := []work{{
		source: target,
		dest:   linkName,
		guards: guards,
		run: func(context.Context) (*mutation, error) {
			return linkOne(target, linkName, symbolic)
		},
	}}
	return m.runBatch(ctx, types.OpLink, check, items, batchOpts{journal: true, record: true}), nil
}

func linkOne(target, linkName string, symbolic bool) (*mutation, error) {
	if info, err := os.Lstat(linkName); err == nil {
		if info.Mode()&os.ModeSymlink == 0 {
			return nil, fmt.Errorf("%w: %q", fsatomic.ErrFileExists, linkName)
		}
		if err := os.Remove(linkName); err != nil {
			return nil, err
		}
	}
	if symbolic {
		if err := os.Symlink(target, linkName); err != nil {
			return nil, err
		}
		return &mutation{}, nil
	}
	if err := os.Link(target, linkName); err != nil {
		return nil, err
	}
	return &mutation{}, nil
}

// Rmdir removes empty directories. A non-empty directory fails its target;
// use Delete with Recursive for trees.
func (m *Manager) Rmdir(ctx context.Context, paths []string) (*types.Manifest, error) {
	if len(paths) == 0 {
		return nil, errNoTargets
	}
	check, err := m.gate(ctx, types.OpRmdir, paths, "")
	if err != nil {
		return nil, err
	}
	items := make([]work, 0, len(paths))
	for _, path := range paths {
		path := path
		items = append(items, work{
			source: path,
			run: func(context.Context) (*mutation, error) {
				info, err := os.Lstat(path)
				if err != nil {
					return nil, err
				}
				if !info.IsDir() {
					return nil, fmt.Errorf("not a directory: %s", path)
				}
				if err := os.Remove(path); err != nil {
					return nil, err
				}
				return &mutation{}, nil
			},
		})
	}
	return m.runBatch(ctx, types.OpRmdir, check, items, batchOpts{journal: true, record: true}), nil
}

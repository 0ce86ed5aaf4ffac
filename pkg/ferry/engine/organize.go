package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jamesainslie/ferry/pkg/ferry/filter"
	"github.com/jamesainslie/ferry/pkg/ferry/fsatomic"
	"github.com/jamesainslie/ferry/pkg/ferry/retry"
	"github.com/jamesainslie/ferry/pkg/ferry/types"
)

// OrganizeOpts adjusts Organize.
type OrganizeOpts struct {
	// Groups restricts classification to the named type groups. Empty
	// selects all groups.
	Groups []string
}

// Organize classifies the files directly under dir into type-group
// subdirectories (documents, images, ...), moving each through the
// standard pipeline. Hidden files, subdirectories, and files with no
// matching group stay where they are.
func (m *Manager) Organize(ctx context.Context, dir string, opts OrganizeOpts) (*types.Manifest, error) {
	allowed := make(map[string]bool, len(opts.Groups))
	for _, g := range opts.Groups {
		if !validGroup(g) {
			return nil, fmt.Errorf("unknown type group: %q", g)
		}
		allowed[g] = true
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var sources []string
	var items []work
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		group, ok := filter.GroupForPath(name)
		if !ok {
			continue
		}
		if len(allowed) > 0 && !allowed[group] {
			continue
		}
		src := filepath.Join(dir, name)
		dst := filepath.Join(dir, group, name)
		sources = append(sources, src)
		items = append(items, work{
			source: src,
			dest:   dst,
			run: func(ctx context.Context) (*mutation, error) {
				return m.organizeOne(ctx, src, dst)
			},
		})
	}

	if len(items) == 0 {
		return &types.Manifest{Operation: types.OpOrganize, Started: time.Now().UTC()}, nil
	}

	// Moves stay on one filesystem, so no destination is passed: space and
	// conflict probing are per target here, not a batch concern.
	check, err := m.gate(ctx, types.OpOrganize, sources, "")
	if err != nil {
		return nil, err
	}
	return m.runBatch(ctx, types.OpOrganize, check, items, batchOpts{journal: true, record: true}), nil
}

// organizeOne moves one file into its group directory, creating the group
// directory on first use. A file already present under the group name is a
// per-target failure, never an overwrite.
func (m *Manager) organizeOne(ctx context.Context, src, dst string) (*mutation, error) {
	info, err := os.Lstat(src)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return nil, err
	}

	opts := m.copyOptions()
	opts.Overwrite = false
	err = retry.Do(ctx, m.cfg.MaxRetries, m.cfg.RetryDelay, func() error {
		if err := retry.CheckLocked(src); err != nil {
			return err
		}
		_, merr := fsatomic.Move(src, dst, opts)
		return merr
	})
	if err != nil {
		return nil, err
	}
	return &mutation{size: info.Size()}, nil
}

// validGroup reports whether name is a known type group.
func validGroup(name string) bool {
	for _, g := range filter.Groups() {
		if g == name {
			return true
		}
	}
	return false
}

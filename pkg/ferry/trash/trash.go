// Package trash provides soft deletion: instead of unlinking, content is
// renamed into a dedicated trash root alongside a metadata sidecar, staying
// fully restorable until purged. Moving into the trash is itself an atomic
// rename, so a crash mid-delete leaves the item whole on one side or the
// other, never torn.
package trash

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jamesainslie/ferry/pkg/ferry/filter"
	"github.com/jamesainslie/ferry/pkg/ferry/fsatomic"
	"github.com/jamesainslie/ferry/pkg/ferry/lockfile"
)

// metaSuffix marks the sidecar carrying an entry's original location.
const metaSuffix = ".meta"

// ErrEntryNotFound indicates no trash entry matches the request.
var ErrEntryNotFound = errors.New("trash entry not found")

// ErrRestoreConflict indicates the restore target already exists.
var ErrRestoreConflict = errors.New("restore target already exists")

// Entry describes one trashed item. The same fields are persisted in the
// sidecar, so a listing can be rebuilt from the trash root alone.
type Entry struct {
	// TrashPath is the item's current location inside the trash root.
	// Unique within the root.
	TrashPath string `json:"trash_path"`

	// OriginalPath is where the item lived before it was trashed, and
	// where Restore tries to put it back.
	OriginalPath string `json:"original_path"`

	// TrashedAt is when the item was moved to the trash.
	TrashedAt time.Time `json:"trashed_at"`

	// Size is the item's size in bytes at trash time (recursive for
	// directories).
	Size int64 `json:"size,omitempty"`

	// IsDir reports whether the item is a directory.
	IsDir bool `json:"is_dir,omitempty"`
}

// Name returns the base name the item had at its original location.
func (e *Entry) Name() string {
	return filepath.Base(e.OriginalPath)
}

// Store manages a trash root. All mutations hold the cross-process lock so
// two ferry invocations cannot collide on naming or restore the same entry
// twice.
type Store struct {
	root     string
	lockPath string
	mu       sync.Mutex
}

// New creates a Store over the given trash root, serialized across
// processes by the lock file at lockPath. The root is not created until
// EnsureDir is called.
func New(root, lockPath string) (*Store, error) {
	if root == "" {
		return nil, errors.New("trash root cannot be empty")
	}
	if lockPath == "" {
		return nil, errors.New("trash lock path cannot be empty")
	}
	return &Store{root: root, lockPath: lockPath}, nil
}

// EnsureDir creates the trash root if it does not exist.
func (s *Store) EnsureDir() error {
	return os.MkdirAll(s.root, 0o700)
}

// Root returns the trash root directory.
func (s *Store) Root() string { return s.root }

// Trash moves path into the trash root and writes its sidecar. The trash
// name is `<base>.<unix-ts>`, with a short unique suffix appended when that
// name is already taken, so two different files with the same base name
// never overwrite each other.
func (s *Store) Trash(ctx context.Context, path string) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %q: %w", path, err)
	}
	info, err := os.Lstat(abs)
	if err != nil {
		return nil, fmt.Errorf("cannot trash %q: %w", path, err)
	}

	lock, err := lockfile.Acquire(ctx, s.lockPath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = lock.Release() }()

	entry := &Entry{
		OriginalPath: abs,
		TrashedAt:    time.Now().UTC(),
		IsDir:        info.IsDir(),
	}
	if info.IsDir() {
		entry.Size = treeSize(abs)
	} else {
		entry.Size = info.Size()
	}

	trashPath, err := s.claimName(filepath.Base(abs), entry.TrashedAt)
	if err != nil {
		return nil, err
	}
	entry.TrashPath = trashPath

	// Rename first, sidecar second: an entry without a sidecar is
	// restorable by hand, a sidecar without an entry is garbage.
	if _, err := fsatomic.Move(abs, trashPath, fsatomic.CopyOptions{}); err != nil {
		return nil, fmt.Errorf("move to trash: %w", err)
	}
	if err := s.writeSidecar(entry); err != nil {
		// Put the item back rather than leave it in the trash with no
		// record of where it came from.
		if _, undoErr := fsatomic.Move(trashPath, abs, fsatomic.CopyOptions{}); undoErr != nil {
			return nil, fmt.Errorf("write sidecar: %w (item left at %s)", err, trashPath)
		}
		return nil, fmt.Errorf("write sidecar: %w", err)
	}
	return entry, nil
}

// List returns trash entries newest-first. A non-empty pattern filters by
// the original base name using glob matching. Entries whose sidecar is
// missing or unreadable are skipped: List serves display.
func (s *Store) List(pattern string) ([]*Entry, error) {
	files, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return []*Entry{}, nil
		}
		return nil, fmt.Errorf("read trash root: %w", err)
	}

	entries := make([]*Entry, 0, len(files)/2)
	for _, f := range files {
		if !strings.HasSuffix(f.Name(), metaSuffix) {
			continue
		}
		entry, err := s.readSidecar(filepath.Join(s.root, f.Name()))
		if err != nil {
			continue
		}
		if pattern != "" {
			ok, err := filter.MatchBase(pattern, entry.Name())
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, k int) bool {
		return entries[i].TrashedAt.After(entries[k].TrashedAt)
	})
	return entries, nil
}

// Find returns the newest entry whose original base name matches the
// pattern, or ErrEntryNotFound.
func (s *Store) Find(pattern string) (*Entry, error) {
	entries, err := s.List(pattern)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrEntryNotFound, pattern)
	}
	return entries[0], nil
}

// Restore moves the entry back to its original path and removes the
// sidecar. When the original parent directory no longer exists the item is
// placed under the current working directory instead; the returned path
// reports where the item actually landed. An existing file at the target
// is never overwritten.
func (s *Store) Restore(ctx context.Context, entry *Entry) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, err := lockfile.Acquire(ctx, s.lockPath)
	if err != nil {
		return "", err
	}
	defer func() { _ = lock.Release() }()

	if _, err := os.Lstat(entry.TrashPath); err != nil {
		return "", fmt.Errorf("%w: %s", ErrEntryNotFound, entry.TrashPath)
	}

	target := entry.OriginalPath
	if _, err := os.Stat(filepath.Dir(target)); err != nil {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("original parent gone and cwd unavailable: %w", err)
		}
		target = filepath.Join(cwd, entry.Name())
	}

	if _, err := os.Lstat(target); err == nil {
		return "", fmt.Errorf("%w: %s", ErrRestoreConflict, target)
	}

	if _, err := fsatomic.Move(entry.TrashPath, target, fsatomic.CopyOptions{}); err != nil {
		return "", fmt.Errorf("restore %s: %w", entry.Name(), err)
	}
	if err := os.Remove(s.sidecarPath(entry)); err != nil && !os.IsNotExist(err) {
		return target, fmt.Errorf("restored to %s but sidecar removal failed: %w", target, err)
	}
	return target, nil
}

// Remove permanently deletes one entry and its sidecar.
func (s *Store) Remove(ctx context.Context, entry *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, err := lockfile.Acquire(ctx, s.lockPath)
	if err != nil {
		return err
	}
	defer func() { _ = lock.Release() }()

	if err := os.RemoveAll(entry.TrashPath); err != nil {
		return fmt.Errorf("remove trash entry %s: %w", entry.Name(), err)
	}
	if err := os.Remove(s.sidecarPath(entry)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove sidecar for %s: %w", entry.Name(), err)
	}
	return nil
}

// Purge permanently deletes entries trashed before the retention window
// and returns the number removed.
func (s *Store) Purge(ctx context.Context, olderThan time.Duration) (int, error) {
	entries, err := s.List("")
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().UTC().Add(-olderThan)
	removed := 0
	for _, entry := range entries {
		if entry.TrashedAt.After(cutoff) {
			continue
		}
		if err := s.Remove(ctx, entry); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// claimName picks a unique trash path for the base name. The caller holds
// the cross-process lock, so existence checks cannot race another ferry.
func (s *Store) claimName(base string, ts time.Time) (string, error) {
	candidate := filepath.Join(s.root, fmt.Sprintf("%s.%d", base, ts.Unix()))
	if !pathTaken(candidate) {
		return candidate, nil
	}
	// Same base trashed within the same second: disambiguate with a
	// short random token.
	for i := 0; i < 4; i++ {
		suffixed := fmt.Sprintf("%s.%s", candidate, uuid.NewString()[:8])
		if !pathTaken(suffixed) {
			return suffixed, nil
		}
	}
	return "", fmt.Errorf("cannot claim unique trash name for %q", base)
}

// pathTaken reports whether the path or its sidecar already exists.
func pathTaken(path string) bool {
	if _, err := os.Lstat(path); err == nil {
		return true
	}
	if _, err := os.Lstat(path + metaSuffix); err == nil {
		return true
	}
	return false
}

// sidecarPath returns the metadata file path for an entry.
func (s *Store) sidecarPath(entry *Entry) string {
	return entry.TrashPath + metaSuffix
}

// writeSidecar persists the entry metadata with the atomic write
// discipline.
func (s *Store) writeSidecar(entry *Entry) error {
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal sidecar: %w", err)
	}
	return fsatomic.WriteFile(s.sidecarPath(entry), data, fsatomic.WriteOptions{Mode: 0o600})
}

// readSidecar loads one sidecar file into an Entry.
func (s *Store) readSidecar(path string) (*Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("unmarshal sidecar %s: %w", filepath.Base(path), err)
	}
	if entry.TrashPath == "" || entry.OriginalPath == "" {
		return nil, fmt.Errorf("sidecar %s is incomplete", filepath.Base(path))
	}
	return &entry, nil
}

// treeSize sums the regular-file bytes under a directory. Best effort:
// unreadable children count as zero.
func treeSize(root string) int64 {
	var total int64
	_ = filepath.WalkDir(root, func(_ string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			total += info.Size()
		}
		return nil
	})
	return total
}

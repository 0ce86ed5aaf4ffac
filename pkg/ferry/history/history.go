// Package history keeps the append-only audit log of completed operations
// backing the `history` command. Entries live in a single JSON array file,
// rewritten atomically under the cross-process lock and capped at a
// configured count with the oldest entries pruned first.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jamesainslie/ferry/pkg/ferry/fsatomic"
	"github.com/jamesainslie/ferry/pkg/ferry/lockfile"
	"github.com/jamesainslie/ferry/pkg/ferry/types"
)

// DefaultMaxEntries caps the history file when the caller passes zero.
const DefaultMaxEntries = 1000

// Entry is one completed operation in the audit log.
type Entry struct {
	ID          string              `json:"id"`
	Timestamp   time.Time           `json:"timestamp"`
	Operation   types.OperationKind `json:"operation"`
	Source      string              `json:"source"`
	Destination string              `json:"destination,omitempty"`
	Success     bool                `json:"success"`
	Checksum    string              `json:"checksum,omitempty"`
	Size        int64               `json:"size,omitempty"`
	Duration    time.Duration       `json:"duration,omitempty"`
	Error       string              `json:"error,omitempty"`
}

// FromResult builds a history entry from an operation result.
func FromResult(res types.OperationResult) Entry {
	return Entry{
		ID:          uuid.NewString(),
		Timestamp:   time.Now().UTC(),
		Operation:   res.Operation,
		Source:      res.Source,
		Destination: res.Destination,
		Success:     res.Success,
		Checksum:    res.Checksum,
		Size:        res.Size,
		Duration:    res.Duration,
		Error:       res.Error,
	}
}

// History is the on-disk audit log. Concurrent invocations serialize
// through the same cross-process lock the journal uses.
type History struct {
	path       string
	lockPath   string
	maxEntries int
	mu         sync.Mutex
}

// New creates a History writing to path, capped at maxEntries (zero
// selects DefaultMaxEntries).
func New(path, lockPath string, maxEntries int) (*History, error) {
	if path == "" {
		return nil, errors.New("history path cannot be empty")
	}
	if lockPath == "" {
		return nil, errors.New("history lock path cannot be empty")
	}
	if maxEntries < 0 {
		return nil, fmt.Errorf("history cap cannot be negative: %d", maxEntries)
	}
	if maxEntries == 0 {
		maxEntries = DefaultMaxEntries
	}
	return &History{path: path, lockPath: lockPath, maxEntries: maxEntries}, nil
}

// Append records entries at the end of the log, pruning the oldest past
// the cap, and persists the file before returning.
func (h *History) Append(ctx context.Context, entries ...Entry) error {
	if len(entries) == 0 {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	lock, err := lockfile.Acquire(ctx, h.lockPath)
	if err != nil {
		return err
	}
	defer func() { _ = lock.Release() }()

	existing, err := h.read()
	if err != nil {
		return err
	}
	existing = append(existing, entries...)
	if len(existing) > h.maxEntries {
		existing = existing[len(existing)-h.maxEntries:]
	}
	return h.write(existing)
}

// List returns entries newest-first. If limit is 0 or negative, all
// entries are returned.
func (h *History) List(limit int) ([]Entry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	entries, err := h.read()
	if err != nil {
		return nil, err
	}

	// On-disk order is oldest-first; reverse for display.
	out := make([]Entry, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		out = append(out, entries[i])
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Clear truncates the log.
func (h *History) Clear(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	lock, err := lockfile.Acquire(ctx, h.lockPath)
	if err != nil {
		return err
	}
	defer func() { _ = lock.Release() }()

	return h.write([]Entry{})
}

// read loads the log file. A missing file is an empty log; a corrupt file
// is an error, because appending over it would silently discard audit
// state.
func (h *History) read() ([]Entry, error) {
	data, err := os.ReadFile(h.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Entry{}, nil
		}
		return nil, fmt.Errorf("read history: %w", err)
	}
	if len(data) == 0 {
		return []Entry{}, nil
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("history file %s is corrupt: %w", h.path, err)
	}
	return entries, nil
}

// write persists the full entry list with the atomic write discipline.
func (h *History) write(entries []Entry) error {
	if err := os.MkdirAll(filepath.Dir(h.path), 0o755); err != nil {
		return fmt.Errorf("create history dir: %w", err)
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}
	if err := fsatomic.WriteFile(h.path, data, fsatomic.WriteOptions{}); err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	return nil
}

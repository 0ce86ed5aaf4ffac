package engine

import (
	"context"
	"time"

	"github.com/jamesainslie/ferry/pkg/ferry/history"
	"github.com/jamesainslie/ferry/pkg/ferry/journal"
	"github.com/jamesainslie/ferry/pkg/ferry/trash"
	"github.com/jamesainslie/ferry/pkg/ferry/types"
)

// TrashList returns trash entries whose base names match pattern, newest
// first. An empty pattern lists everything.
func (m *Manager) TrashList(pattern string) ([]*trash.Entry, error) {
	return m.trash.List(pattern)
}

// TrashRestore puts the newest trash entry matching pattern back at its
// original location. Restore never overwrites: an existing file at the
// target fails the restore and leaves the entry in the trash.
func (m *Manager) TrashRestore(ctx context.Context, pattern string) (*types.Manifest, error) {
	entry, err := m.trash.Find(pattern)
	if err != nil {
		return nil, err
	}
	check, err := m.gate(ctx, types.OpRestore, []string{entry.TrashPath}, entry.OriginalPath)
	if err != nil {
		return nil, err
	}

	items := []work{{
		source: entry.TrashPath,
		dest:   entry.OriginalPath,
		// The trash root lives outside any sandbox; only the restore
		// destination needs validating.
		guards: []string{entry.OriginalPath},
		run: func(ctx context.Context) (*mutation, error) {
			restored, err := m.trash.Restore(ctx, entry)
			if err != nil {
				return nil, err
			}
			return &mutation{dest: restored, size: entry.Size}, nil
		},
	}}
	return m.runBatch(ctx, types.OpRestore, check, items, batchOpts{journal: true, record: true}), nil
}

// TrashPurge permanently removes trash entries older than the threshold.
// In dry-run mode it only counts what would go.
func (m *Manager) TrashPurge(ctx context.Context, olderThan time.Duration) (int, error) {
	if m.cfg.DryRun {
		entries, err := m.trash.List("")
		if err != nil {
			return 0, err
		}
		cutoff := time.Now().Add(-olderThan)
		n := 0
		for _, e := range entries {
			if e.TrashedAt.Before(cutoff) {
				n++
			}
		}
		return n, nil
	}
	return m.trash.Purge(ctx, olderThan)
}

// HistoryList returns the most recent limit audit entries, newest first.
func (m *Manager) HistoryList(limit int) ([]history.Entry, error) {
	return m.history.List(limit)
}

// HistoryClear empties the audit log.
func (m *Manager) HistoryClear(ctx context.Context) error {
	return m.history.Clear(ctx)
}

// JournalList returns the most recent limit transaction records.
func (m *Manager) JournalList(limit int) ([]*journal.TransactionRecord, error) {
	return m.journal.List(limit)
}

// JournalCleanup drops terminal journal records older than the threshold.
// Records still in started state are left for recovery.
func (m *Manager) JournalCleanup(olderThan time.Duration) (int, error) {
	return m.journal.Cleanup(olderThan)
}

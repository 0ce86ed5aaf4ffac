package journal

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

	"github.com/jamesainslie/ferry/pkg/ferry/fsatomic"
	"github.com/jamesainslie/ferry/pkg/ferry/lockfile"
	"github.com/jamesainslie/ferry/pkg/ferry/logging"
	"github.com/jamesainslie/ferry/pkg/ferry/types"
)

// ErrTxNotFound indicates no journal record exists for the given id.
var ErrTxNotFound = errors.New("transaction not found")

// recoveryNote is recorded on records reconciled at startup.
const recoveryNote = "recovered at startup: operation never reached a terminal state"

// Journal is the write-ahead transaction log. Every state change is
// persisted durably, under the cross-process lock, before the call
// returns: the started record must be on disk before any destructive
// action proceeds.
type Journal struct {
	dir      string
	lockPath string
	mu       sync.Mutex
}

// New creates a Journal storing one JSON file per transaction in dir,
// serialized across processes by the lock file at lockPath. The directory
// is not created until EnsureDir is called.
func New(dir, lockPath string) (*Journal, error) {
	if dir == "" {
		return nil, errors.New("journal directory cannot be empty")
	}
	if lockPath == "" {
		return nil, errors.New("journal lock path cannot be empty")
	}
	return &Journal{dir: dir, lockPath: lockPath}, nil
}

// EnsureDir creates the journal directory if it does not exist.
func (j *Journal) EnsureDir() error {
	return os.MkdirAll(j.dir, 0o755)
}

// Begin persists a started record for the operation and returns it.
// The caller must bring the record to a terminal state with Commit or
// Abort on every exit path.
func (j *Journal) Begin(ctx context.Context, op types.OperationKind, targets []string, meta map[string]string) (*TransactionRecord, error) {
	rec := &TransactionRecord{
		ID:      uuid.NewString(),
		Op:      op.String(),
		Targets: targets,
		Meta:    meta,
		StartTS: time.Now().UTC(),
		Status:  StatusStarted,
	}
	if err := j.write(ctx, rec); err != nil {
		return nil, fmt.Errorf("journal begin: %w", err)
	}
	return rec, nil
}

// Commit marks the record committed and persists it.
func (j *Journal) Commit(ctx context.Context, rec *TransactionRecord) error {
	now := time.Now().UTC()
	rec.Status = StatusCommitted
	rec.EndTS = &now
	if err := j.write(ctx, rec); err != nil {
		return fmt.Errorf("journal commit %s: %w", rec.ID, err)
	}
	return nil
}

// Abort marks the record aborted with the failure cause and persists it.
func (j *Journal) Abort(ctx context.Context, rec *TransactionRecord, cause error) error {
	now := time.Now().UTC()
	rec.Status = StatusAborted
	rec.EndTS = &now
	if cause != nil {
		rec.ErrorMsg = cause.Error()
	}
	if err := j.write(ctx, rec); err != nil {
		return fmt.Errorf("journal abort %s: %w", rec.ID, err)
	}
	return nil
}

// Get retrieves a record by id.
func (j *Journal) Get(id string) (*TransactionRecord, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty id", ErrTxNotFound)
	}
	rec, err := j.readRecord(id + ".json")
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrTxNotFound, id)
		}
		return nil, err
	}
	return rec, nil
}

// List returns records sorted by start time descending (newest first).
// If limit is 0 or negative, all records are returned. Files that fail to
// parse are skipped: List serves display, Recover enforces integrity.
func (j *Journal) List(limit int) ([]*TransactionRecord, error) {
	files, err := os.ReadDir(j.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []*TransactionRecord{}, nil
		}
		return nil, fmt.Errorf("read journal directory: %w", err)
	}

	records := make([]*TransactionRecord, 0, len(files))
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
			continue
		}
		rec, err := j.readRecord(f.Name())
		if err != nil {
			continue
		}
		records = append(records, rec)
	}

	sort.Slice(records, func(i, k int) bool {
		return records[i].StartTS.After(records[k].StartTS)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// Recover reconciles dangling transactions: every record still in started
// state is rewritten to aborted with a recovery note. It returns the number
// of records reconciled. An unreadable directory or an unparseable record
// is an error: recovery cannot proceed safely over a corrupt journal, and
// the engine treats that as fatal for the session.
func (j *Journal) Recover(ctx context.Context) (int, error) {
	files, err := os.ReadDir(j.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read journal directory: %w", err)
	}

	log := logging.Get("journal")
	recovered := 0
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
			continue
		}
		rec, err := j.readRecord(f.Name())
		if err != nil {
			return recovered, fmt.Errorf("journal corrupt: %s: %w", f.Name(), err)
		}
		if rec.Terminal() {
			continue
		}

		log.Warn("recovering dangling transaction", "id", rec.ID, "op", rec.Op)
		now := time.Now().UTC()
		rec.Status = StatusAborted
		rec.EndTS = &now
		rec.ErrorMsg = recoveryNote
		if err := j.write(ctx, rec); err != nil {
			return recovered, fmt.Errorf("recover %s: %w", rec.ID, err)
		}
		recovered++
	}
	return recovered, nil
}

// Cleanup removes terminal records older than the retention window and
// returns the number removed. Non-terminal records are never removed,
// whatever their age: they are evidence for recovery.
func (j *Journal) Cleanup(olderThan time.Duration) (int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	cutoff := time.Now().UTC().Add(-olderThan)
	files, err := os.ReadDir(j.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read journal directory: %w", err)
	}

	removed := 0
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
			continue
		}
		rec, err := j.readRecord(f.Name())
		if err != nil {
			continue
		}
		if !rec.Terminal() {
			continue
		}
		stamp := rec.StartTS
		if rec.EndTS != nil {
			stamp = *rec.EndTS
		}
		if stamp.Before(cutoff) {
			if err := os.Remove(filepath.Join(j.dir, f.Name())); err != nil {
				continue
			}
			removed++
		}
	}
	return removed, nil
}

// write persists the record under the cross-process lock using the atomic
// write discipline, so a crash mid-write can never corrupt the journal.
func (j *Journal) write(ctx context.Context, rec *TransactionRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	lock, err := lockfile.Acquire(ctx, j.lockPath)
	if err != nil {
		return err
	}
	defer func() { _ = lock.Release() }()

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	path := filepath.Join(j.dir, rec.ID+".json")
	if err := fsatomic.WriteFile(path, data, fsatomic.WriteOptions{}); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	return nil
}

// readRecord reads and parses one journal file by name.
func (j *Journal) readRecord(filename string) (*TransactionRecord, error) {
	data, err := os.ReadFile(filepath.Join(j.dir, filename))
	if err != nil {
		return nil, err
	}
	var rec TransactionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", filename, err)
	}
	if rec.ID == "" {
		return nil, fmt.Errorf("record %s has no id", filename)
	}
	return &rec, nil
}

// NewID returns a fresh transaction id. Exposed for tests that build
// records by hand.
func NewID() string {
	return uuid.NewString()
}

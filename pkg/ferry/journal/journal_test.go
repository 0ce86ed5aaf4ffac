package journal

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jamesainslie/ferry/pkg/ferry/types"
)

func newTestJournal(t *testing.T) *Journal {
	t.Helper()
	base := t.TempDir()
	j, err := New(filepath.Join(base, "journal"), filepath.Join(base, "ferry.lock"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := j.EnsureDir(); err != nil {
		t.Fatalf("EnsureDir: %v", err)
	}
	return j
}

func TestNewValidation(t *testing.T) {
	if _, err := New("", "/tmp/l"); err == nil {
		t.Error("New with empty dir should fail")
	}
	if _, err := New("/tmp/j", ""); err == nil {
		t.Error("New with empty lock path should fail")
	}
}

func TestBeginPersistsStartedRecord(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	rec, err := j.Begin(ctx, types.OpMove, []string{"/src/a", "/dst/a"}, map[string]string{"overwrite": "false"})
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if rec.ID == "" {
		t.Fatal("Begin returned record without id")
	}
	if rec.Status != StatusStarted {
		t.Errorf("Status = %q, want %q", rec.Status, StatusStarted)
	}

	// The record must already be durable on disk when Begin returns.
	data, err := os.ReadFile(filepath.Join(j.dir, rec.ID+".json"))
	if err != nil {
		t.Fatalf("record file missing after Begin: %v", err)
	}
	var onDisk TransactionRecord
	if err := json.Unmarshal(data, &onDisk); err != nil {
		t.Fatalf("record file is not valid JSON: %v", err)
	}
	if onDisk.Status != StatusStarted {
		t.Errorf("on-disk status = %q, want started", onDisk.Status)
	}
	if onDisk.Op != "move" {
		t.Errorf("on-disk op = %q, want move", onDisk.Op)
	}
	if len(onDisk.Targets) != 2 {
		t.Errorf("on-disk targets = %v", onDisk.Targets)
	}
	if onDisk.EndTS != nil {
		t.Error("started record should not carry an end timestamp")
	}
}

func TestCommitAndAbort(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	committed, err := j.Begin(ctx, types.OpCopy, []string{"/a"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := j.Commit(ctx, committed); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	aborted, err := j.Begin(ctx, types.OpDelete, []string{"/b"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := j.Abort(ctx, aborted, errors.New("disk full")); err != nil {
		t.Fatalf("Abort: %v", err)
	}

	got, err := j.Get(committed.ID)
	if err != nil {
		t.Fatalf("Get committed: %v", err)
	}
	if got.Status != StatusCommitted {
		t.Errorf("committed status = %q", got.Status)
	}
	if got.EndTS == nil {
		t.Error("committed record missing end timestamp")
	}
	if !got.Terminal() {
		t.Error("committed record should be terminal")
	}

	got, err = j.Get(aborted.ID)
	if err != nil {
		t.Fatalf("Get aborted: %v", err)
	}
	if got.Status != StatusAborted {
		t.Errorf("aborted status = %q", got.Status)
	}
	if got.ErrorMsg != "disk full" {
		t.Errorf("aborted error = %q, want cause preserved", got.ErrorMsg)
	}
}

func TestGetNotFound(t *testing.T) {
	j := newTestJournal(t)

	_, err := j.Get("no-such-id")
	if !errors.Is(err, ErrTxNotFound) {
		t.Errorf("Get missing id error = %v, want ErrTxNotFound", err)
	}
	_, err = j.Get("")
	if !errors.Is(err, ErrTxNotFound) {
		t.Errorf("Get empty id error = %v, want ErrTxNotFound", err)
	}
}

func TestListNewestFirst(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		rec, err := j.Begin(ctx, types.OpTouch, []string{"/t"}, nil)
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, rec.ID)
		time.Sleep(10 * time.Millisecond)
	}

	records, err := j.List(0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("List returned %d records, want 3", len(records))
	}
	// Newest first: the last Begin comes out first.
	if records[0].ID != ids[2] || records[2].ID != ids[0] {
		t.Errorf("List order = [%s %s %s], want newest first", records[0].ID, records[1].ID, records[2].ID)
	}

	limited, err := j.List(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 2 {
		t.Errorf("List(2) returned %d records", len(limited))
	}
}

func TestListSkipsUnparseable(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	if _, err := j.Begin(ctx, types.OpMkdir, []string{"/d"}, nil); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(j.dir, "garbage.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	records, err := j.List(0)
	if err != nil {
		t.Fatalf("List should tolerate unparseable files: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("List returned %d records, want the 1 valid one", len(records))
	}
}

func TestListMissingDir(t *testing.T) {
	base := t.TempDir()
	j, err := New(filepath.Join(base, "never-created"), filepath.Join(base, "ferry.lock"))
	if err != nil {
		t.Fatal(err)
	}
	records, err := j.List(0)
	if err != nil {
		t.Fatalf("List on missing dir: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("List on missing dir returned %d records", len(records))
	}
}

func TestRecoverReconcilesDanglingRecords(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	dangling1, err := j.Begin(ctx, types.OpMove, []string{"/a"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	dangling2, err := j.Begin(ctx, types.OpDelete, []string{"/b"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	done, err := j.Begin(ctx, types.OpCopy, []string{"/c"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := j.Commit(ctx, done); err != nil {
		t.Fatal(err)
	}

	n, err := j.Recover(ctx)
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if n != 2 {
		t.Errorf("Recover reconciled %d records, want 2", n)
	}

	for _, id := range []string{dangling1.ID, dangling2.ID} {
		rec, err := j.Get(id)
		if err != nil {
			t.Fatal(err)
		}
		if rec.Status != StatusAborted {
			t.Errorf("recovered record %s status = %q, want aborted", id, rec.Status)
		}
		if rec.EndTS == nil {
			t.Errorf("recovered record %s missing end timestamp", id)
		}
		if !strings.Contains(rec.ErrorMsg, "recovered") {
			t.Errorf("recovered record %s error = %q, want recovery note", id, rec.ErrorMsg)
		}
	}

	// Committed record untouched.
	rec, err := j.Get(done.ID)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Status != StatusCommitted {
		t.Errorf("committed record rewritten to %q by recovery", rec.Status)
	}

	// Second pass finds nothing to do.
	n, err = j.Recover(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("second Recover reconciled %d records, want 0", n)
	}
}

func TestRecoverFailsOnCorruptRecord(t *testing.T) {
	j := newTestJournal(t)

	if err := os.WriteFile(filepath.Join(j.dir, "broken.json"), []byte("{{{"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := j.Recover(context.Background())
	if err == nil {
		t.Fatal("Recover over a corrupt journal must fail")
	}
	if !strings.Contains(err.Error(), "corrupt") {
		t.Errorf("error = %v, want corruption named", err)
	}
}

func TestRecoverMissingDir(t *testing.T) {
	base := t.TempDir()
	j, err := New(filepath.Join(base, "never-created"), filepath.Join(base, "ferry.lock"))
	if err != nil {
		t.Fatal(err)
	}
	n, err := j.Recover(context.Background())
	if err != nil || n != 0 {
		t.Errorf("Recover on missing dir = (%d, %v), want (0, nil)", n, err)
	}
}

func TestCleanupRetention(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	old, err := j.Begin(ctx, types.OpCopy, []string{"/old"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := j.Commit(ctx, old); err != nil {
		t.Fatal(err)
	}
	dangling, err := j.Begin(ctx, types.OpMove, []string{"/hung"}, nil)
	if err != nil {
		t.Fatal(err)
	}

	time.Sleep(10 * time.Millisecond)

	// Zero retention: every terminal record is already past the cutoff.
	removed, err := j.Cleanup(0)
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if removed != 1 {
		t.Errorf("Cleanup removed %d records, want 1", removed)
	}

	if _, err := j.Get(old.ID); !errors.Is(err, ErrTxNotFound) {
		t.Error("old terminal record should be gone")
	}
	// Non-terminal records are never removed, whatever their age.
	if _, err := j.Get(dangling.ID); err != nil {
		t.Errorf("dangling record must survive cleanup: %v", err)
	}
}

func TestCleanupKeepsRecentTerminal(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	rec, err := j.Begin(ctx, types.OpTouch, []string{"/x"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := j.Commit(ctx, rec); err != nil {
		t.Fatal(err)
	}

	removed, err := j.Cleanup(time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 0 {
		t.Errorf("Cleanup removed %d fresh records, want 0", removed)
	}
	if _, err := j.Get(rec.ID); err != nil {
		t.Errorf("fresh terminal record should survive: %v", err)
	}
}

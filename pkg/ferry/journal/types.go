// Package journal provides the write-ahead transaction log for ferry
// operations. Every mutating operation records a started transaction before
// touching the filesystem and a terminal commit or abort afterwards, so a
// crash at any point leaves evidence that startup recovery can reconcile.
package journal

import "time"

// TxStatus is the lifecycle state of a transaction record.
type TxStatus string

const (
	// StatusStarted is the durable pre-mutation state. A record still in
	// this state at startup means the process died mid-operation.
	StatusStarted TxStatus = "started"

	// StatusCommitted marks a completed mutation.
	StatusCommitted TxStatus = "committed"

	// StatusAborted marks a failed or recovered mutation.
	StatusAborted TxStatus = "aborted"
)

// TransactionRecord is one journal entry, persisted as a single JSON file
// named by its ID. It is mutated at most twice after creation: once to a
// terminal status, and never again.
type TransactionRecord struct {
	ID       string            `json:"id"`
	Op       string            `json:"op"`
	Targets  []string          `json:"targets"`
	Meta     map[string]string `json:"meta,omitempty"`
	StartTS  time.Time         `json:"start_ts"`
	EndTS    *time.Time        `json:"end_ts,omitempty"`
	Status   TxStatus          `json:"status"`
	ErrorMsg string            `json:"error,omitempty"`
}

// Terminal reports whether the record reached a final status.
func (r *TransactionRecord) Terminal() bool {
	return r.Status == StatusCommitted || r.Status == StatusAborted
}

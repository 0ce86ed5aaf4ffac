// Package config provides configuration management for the ferry
// file-operation engine and CLI.
package config

import "time"

// Default configuration values for ferry.
const (
	// DefaultMaxRetries is the bounded attempt count for locked files.
	DefaultMaxRetries = 3

	// DefaultRetryDelay seeds the exponential backoff between attempts.
	DefaultRetryDelay = 100 * time.Millisecond

	// DefaultTimeout bounds one target's mutation. Zero disables the
	// per-target timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultConcurrency is the worker pool size for bulk operations.
	// Zero means pick from the CPU count at engine construction.
	DefaultConcurrency = 0

	// DefaultChunkSize is the streaming buffer for checksums and copies.
	DefaultChunkSize = 64 * 1024

	// DefaultHistoryMax caps the history file's entry count.
	DefaultHistoryMax = 1000

	// DefaultJournalRetentionDays is how long terminal journal records
	// are kept before cleanup removes them.
	DefaultJournalRetentionDays = 30

	// DefaultTrashRetentionDays is how long trashed items are kept
	// before purge removes them.
	DefaultTrashRetentionDays = 30
)

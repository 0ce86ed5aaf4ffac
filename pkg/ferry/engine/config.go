package engine

import (
	"fmt"
	"path/filepath"
	"runtime"
	"time"

	"github.com/jamesainslie/ferry/pkg/ferry/safety"
)

// maxDefaultWorkers caps the worker count chosen when the configuration
// leaves concurrency at zero.
const maxDefaultWorkers = 8

// Config carries every knob the Manager consumes. The CLI translates the
// loaded configuration and flags into one of these; the engine itself
// never reads viper or the environment.
type Config struct {
	// MaxRetries bounds attempts against locked files. Zero selects the
	// retry package default.
	MaxRetries int

	// RetryDelay is the base backoff delay between attempts. Zero selects
	// the retry package default.
	RetryDelay time.Duration

	// OperationTimeout bounds a single target. Zero disables the bound.
	OperationTimeout time.Duration

	// VerifyChecksum enables digest verification on file copies.
	VerifyChecksum bool

	// PreserveAttrs carries source modification times onto copies.
	PreserveAttrs bool

	// SandboxRoots restricts mutations to the given trees. Empty means
	// unrestricted.
	SandboxRoots []string

	// AllowSymlinks permits targets whose resolved path escapes the
	// sandbox through a symlink.
	AllowSymlinks bool

	// AutoBackup copies an existing destination aside before replacing it.
	AutoBackup bool

	// Concurrency is the worker count for multi-target batches. Zero
	// selects min(NumCPU, 8).
	Concurrency int

	// ChunkSize is the streaming buffer size for copies and digests.
	// Zero selects the checksum package default.
	ChunkSize int

	// TrashDir is the soft-delete root.
	TrashDir string

	// JournalDir holds one record file per transaction.
	JournalDir string

	// HistoryPath is the audit log file.
	HistoryPath string

	// HistoryMax caps retained history entries. Zero selects the history
	// package default.
	HistoryMax int

	// LockPath is the cross-process lock shared by the journal, trash,
	// and history. Empty derives a sibling of JournalDir.
	LockPath string

	// DigestCacheDir backs checksum-mode sync and verify. Empty disables
	// the cache; digests are then computed fresh every time.
	DigestCacheDir string

	// Confirmer resolves confirmation gates. Nil rejects every operation
	// that demands confirmation.
	Confirmer Confirmer

	// GitStatus provides the advisory repository check. Nil disables it.
	GitStatus safety.GitStatusProvider

	// DryRun plans every operation without mutating anything.
	DryRun bool
}

// validate normalizes the config in place, applying derived defaults, and
// rejects values no Manager can run with.
func (c *Config) validate() error {
	if c.JournalDir == "" {
		return fmt.Errorf("engine config: journal dir required")
	}
	if c.TrashDir == "" {
		return fmt.Errorf("engine config: trash dir required")
	}
	if c.HistoryPath == "" {
		return fmt.Errorf("engine config: history path required")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("engine config: max retries cannot be negative: %d", c.MaxRetries)
	}
	if c.Concurrency < 0 {
		return fmt.Errorf("engine config: concurrency cannot be negative: %d", c.Concurrency)
	}
	if c.ChunkSize < 0 {
		return fmt.Errorf("engine config: chunk size cannot be negative: %d", c.ChunkSize)
	}
	if c.LockPath == "" {
		c.LockPath = filepath.Join(filepath.Dir(c.JournalDir), "ferry.lock")
	}
	return nil
}

// workers resolves the pool size for a batch of n targets.
func (c *Config) workers(n int) int {
	w := c.Concurrency
	if w <= 0 {
		w = runtime.NumCPU()
		if w > maxDefaultWorkers {
			w = maxDefaultWorkers
		}
	}
	if w > n {
		w = n
	}
	if w < 1 {
		w = 1
	}
	return w
}

// Package engine orchestrates file operations end to end: pre-flight
// analysis, confirmation gating, write-ahead journaling, the mutation
// itself, and the audit trail. Each logical command fans its targets out
// to a bounded worker pool; one target's failure never aborts siblings.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"time"

	"github.com/jamesainslie/ferry/pkg/ferry/checksum"
	"github.com/jamesainslie/ferry/pkg/ferry/digestcache"
	"github.com/jamesainslie/ferry/pkg/ferry/fsatomic"
	"github.com/jamesainslie/ferry/pkg/ferry/history"
	"github.com/jamesainslie/ferry/pkg/ferry/journal"
	"github.com/jamesainslie/ferry/pkg/ferry/logging"
	"github.com/jamesainslie/ferry/pkg/ferry/pathguard"
	"github.com/jamesainslie/ferry/pkg/ferry/safety"
	"github.com/jamesainslie/ferry/pkg/ferry/trash"
	"github.com/jamesainslie/ferry/pkg/ferry/types"
)

// Manager executes file operations through the full pipeline. One Manager
// serves one invocation; it is safe for concurrent use.
type Manager struct {
	cfg      Config
	guard    *pathguard.Guard
	journal  *journal.Journal
	trash    *trash.Store
	history  *history.History
	verifier *checksum.Verifier
	analyzer *safety.Analyzer
	log      *logging.Logger

	mu      sync.Mutex
	digests *digestcache.Cache
}

// New validates cfg, prepares the state directories, replays journal
// recovery, and wires the pipeline. A journal that cannot be recovered is
// fatal: continuing could double-apply an interrupted operation.
func New(cfg Config) (*Manager, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	guard, err := pathguard.New(cfg.SandboxRoots, cfg.AllowSymlinks)
	if err != nil {
		return nil, fmt.Errorf("sandbox roots: %w", err)
	}

	jnl, err := journal.New(cfg.JournalDir, cfg.LockPath)
	if err != nil {
		return nil, err
	}
	if err := jnl.EnsureDir(); err != nil {
		return nil, err
	}

	log := logging.Get("engine")

	recovered, err := jnl.Recover(context.Background())
	if err != nil {
		return nil, fmt.Errorf("journal recovery: %w", err)
	}
	if recovered > 0 {
		log.Warn("recovered interrupted transactions", "count", recovered)
	}

	store, err := trash.New(cfg.TrashDir, cfg.LockPath)
	if err != nil {
		return nil, err
	}
	if err := store.EnsureDir(); err != nil {
		return nil, err
	}

	hist, err := history.New(cfg.HistoryPath, cfg.LockPath, cfg.HistoryMax)
	if err != nil {
		return nil, err
	}

	verifier, err := checksum.NewVerifier(checksum.Options{ChunkSize: cfg.ChunkSize})
	if err != nil {
		return nil, err
	}

	return &Manager{
		cfg:      cfg,
		guard:    guard,
		journal:  jnl,
		trash:    store,
		history:  hist,
		verifier: verifier,
		analyzer: safety.NewAnalyzer(cfg.GitStatus),
		log:      log,
	}, nil
}

// Close releases resources the Manager acquired lazily.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.digests == nil {
		return nil
	}
	err := m.digests.Close()
	m.digests = nil
	return err
}

// digestCache opens the digest cache on first use. A cache that cannot be
// opened returns nil: callers fall back to hashing from scratch.
func (m *Manager) digestCache() *digestcache.Cache {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.digests != nil {
		return m.digests
	}
	if m.cfg.DigestCacheDir == "" {
		return nil
	}
	cache, err := digestcache.Open(m.cfg.DigestCacheDir)
	if err != nil {
		m.log.Warn("digest cache unavailable", "dir", m.cfg.DigestCacheDir, "error", err)
		return nil
	}
	m.digests = cache
	return cache
}

// fileDigest hashes one file, consulting the digest cache when one is
// configured. Cache trouble degrades to hashing from scratch.
func (m *Manager) fileDigest(path string, info fs.FileInfo) (string, error) {
	cache := m.digestCache()
	if cache != nil {
		if d, err := cache.Get(path, info); err == nil {
			return d, nil
		}
	}
	d, err := m.verifier.Digest(path)
	if err != nil {
		return "", err
	}
	if cache != nil {
		if err := cache.Put(path, info, d); err != nil {
			m.log.Warn("digest cache put failed", "path", path, "error", err)
		}
	}
	return d, nil
}

// gate runs the pre-flight analysis and resolves the confirmation its
// result demands. A nil error means the operation may proceed; the check
// is returned either way so callers can attach it to the manifest.
func (m *Manager) gate(ctx context.Context, op types.OperationKind, sources []string, dest string) (*safety.Check, error) {
	check, err := m.analyzer.Analyze(ctx, op, sources, dest)
	if err != nil {
		return nil, fmt.Errorf("pre-flight analysis: %w", err)
	}

	strength := strengthFor(check.Risk)
	if strength == StrengthNone || m.cfg.DryRun {
		return check, nil
	}

	if m.cfg.Confirmer == nil {
		return check, rejection(check)
	}
	ok, err := m.cfg.Confirmer.Confirm(ctx, ConfirmRequest{
		Operation: op,
		Targets:   sources,
		Dest:      dest,
		Check:     check,
		Strength:  strength,
	})
	if err != nil {
		return check, fmt.Errorf("confirmation: %w", err)
	}
	if !ok {
		return check, rejection(check)
	}
	return check, nil
}

// rejection builds the gate error, naming the strongest blocker.
func rejection(check *safety.Check) error {
	if !check.SpaceOK() {
		return fmt.Errorf("%w: %w (need %s, have %s)", ErrRejected, safety.ErrInsufficientSpace,
			types.FormatSize(check.RequiredSpace), types.FormatSize(check.AvailableSpace))
	}
	return fmt.Errorf("%w: %s risk requires confirmation", ErrRejected, check.Risk)
}

// work is one unit in a batch: the paths it names, and the mutation to run
// once the journal record is durable.
type work struct {
	// source and dest name the target in results and the journal.
	source string
	dest   string

	// guards are the paths validated against the sandbox before the
	// journal entry is written. Nil validates source and dest.
	guards []string

	// run performs the mutation. It only executes after a started journal
	// record is on disk.
	run func(ctx context.Context) (*mutation, error)
}

// mutation is what a successful work unit reports back.
type mutation struct {
	// dest overrides the planned destination when the mutation landed
	// somewhere else (a restore falling back to the working directory).
	dest string

	// checksum is the verified digest, when verification ran.
	checksum string

	// verified reports that checksum was compared against the source.
	verified bool

	// size is the number of bytes acted on, when known.
	size int64
}

// batchOpts adjusts pipeline behavior per operation kind.
type batchOpts struct {
	// journal writes a transaction record around each mutation. Off for
	// read-only operations.
	journal bool

	// record appends the batch outcome to the audit log.
	record bool
}

// runBatch drives the per-target pipeline for one confirmed operation and
// assembles the manifest. Results land at their submission index.
func (m *Manager) runBatch(ctx context.Context, op types.OperationKind, check *safety.Check, items []work, opts batchOpts) *types.Manifest {
	manifest := &types.Manifest{
		Operation: op,
		Results:   make([]types.OperationResult, len(items)),
		Started:   time.Now().UTC(),
		DryRun:    m.cfg.DryRun,
	}
	if check != nil {
		manifest.Risk = check.Risk
		manifest.Warnings = check.Warnings
	}

	workers := m.cfg.workers(len(items))
	m.log.Debug("batch start", "op", op.String(), "targets", len(items), "workers", workers, "dry_run", m.cfg.DryRun)

	if workers == 1 {
		for i := range items {
			if err := ctx.Err(); err != nil {
				manifest.Results[i] = failedResult(op, items[i], err)
				continue
			}
			manifest.Results[i] = m.execute(ctx, op, items[i], opts)
		}
	} else {
		m.executeParallel(ctx, op, items, opts, manifest.Results, workers)
	}

	manifest.Elapsed = time.Since(manifest.Started)

	if opts.record && !m.cfg.DryRun {
		m.record(ctx, manifest)
	}
	return manifest
}

// executeParallel fans items out to a bounded worker pool. Cancellation
// stops submitting further targets; in-flight targets finish on their own
// so an atomic rename is never interrupted.
func (m *Manager) executeParallel(ctx context.Context, op types.OperationKind, items []work, opts batchOpts, results []types.OperationResult, workers int) {
	queue := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range queue {
				results[i] = m.execute(ctx, op, items[i], opts)
			}
		}()
	}

submit:
	for i := range items {
		select {
		case <-ctx.Done():
			for j := i; j < len(items); j++ {
				results[j] = failedResult(op, items[j], ctx.Err())
			}
			break submit
		case queue <- i:
		}
	}
	close(queue)
	wg.Wait()
}

// execute runs one target through guard validation, journaling, the
// mutation, and the terminal journal status.
func (m *Manager) execute(ctx context.Context, op types.OperationKind, item work, opts batchOpts) types.OperationResult {
	start := time.Now()
	res := types.OperationResult{
		Operation:   op,
		Source:      item.source,
		Destination: item.dest,
	}
	fail := func(err error) types.OperationResult {
		res.Error = err.Error()
		res.Duration = time.Since(start)
		return res
	}

	guards := item.guards
	if guards == nil {
		guards = []string{item.source}
		if item.dest != "" {
			guards = append(guards, item.dest)
		}
	}
	for _, p := range guards {
		if _, err := m.guard.Validate(p); err != nil {
			return fail(err)
		}
	}

	if m.cfg.DryRun {
		res.Success = true
		res.Duration = time.Since(start)
		return res
	}

	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	opCtx := ctx
	if m.cfg.OperationTimeout > 0 {
		var cancel context.CancelFunc
		opCtx, cancel = context.WithTimeout(ctx, m.cfg.OperationTimeout)
		defer cancel()
	}

	var rec *journal.TransactionRecord
	if opts.journal {
		targets := []string{item.source}
		if item.dest != "" {
			targets = append(targets, item.dest)
		}
		var err error
		rec, err = m.journal.Begin(opCtx, op, targets, nil)
		if err != nil {
			return fail(err)
		}
	}

	mut, err := item.run(opCtx)
	if err != nil {
		if rec != nil {
			// Terminal journal writes run even when the target's context
			// has expired: a dangling started record would read as a crash.
			if aerr := m.journal.Abort(context.Background(), rec, err); aerr != nil {
				m.log.Error("journal abort failed", "tx", rec.ID, "error", aerr)
			}
		}
		return fail(err)
	}
	if rec != nil {
		if cerr := m.journal.Commit(context.Background(), rec); cerr != nil {
			// The mutation already landed; report success and leave the
			// record for startup recovery.
			m.log.Error("journal commit failed", "tx", rec.ID, "error", cerr)
		}
	}

	res.Success = true
	if mut != nil {
		if mut.dest != "" {
			res.Destination = mut.dest
		}
		res.Checksum = mut.checksum
		res.ChecksumVerified = mut.verified
		res.Size = mut.size
	}
	res.Duration = time.Since(start)
	return res
}

// record appends the batch outcome to the audit log. History failures
// degrade to a warning: the operations themselves already landed.
func (m *Manager) record(ctx context.Context, manifest *types.Manifest) {
	if len(manifest.Results) == 0 {
		return
	}
	entries := make([]history.Entry, 0, len(manifest.Results))
	for _, res := range manifest.Results {
		entries = append(entries, history.FromResult(res))
	}
	if err := m.history.Append(ctx, entries...); err != nil {
		m.log.Warn("history append failed", "error", err)
	}
}

// failedResult builds the result for a target that never started.
func failedResult(op types.OperationKind, item work, err error) types.OperationResult {
	return types.OperationResult{
		Operation:   op,
		Source:      item.source,
		Destination: item.dest,
		Error:       err.Error(),
	}
}

// copyOptions translates the config into fsatomic options. Overwrite is
// always on: an existing destination was already surfaced as a conflict
// and confirmed at the gate.
func (m *Manager) copyOptions() fsatomic.CopyOptions {
	return fsatomic.CopyOptions{
		Overwrite:      true,
		VerifyChecksum: m.cfg.VerifyChecksum,
		ChunkSize:      m.cfg.ChunkSize,
		PreserveTimes:  m.cfg.PreserveAttrs,
	}
}

// errNoTargets rejects empty batches before any analysis runs.
var errNoTargets = errors.New("no targets given")

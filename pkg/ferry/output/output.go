// Package output provides formatters for displaying ferry operation
// reports in various output formats (pretty, plain, json, yaml, etc.).
//
// The package uses a registry pattern to allow registration of multiple
// formatter implementations that can be selected at runtime.
//
// Basic usage:
//
//	formatter, err := output.Get("pretty")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	var buf bytes.Buffer
//	if err := formatter.Format(&buf, report); err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Print(buf.String())
package output

import (
	"bytes"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jamesainslie/ferry/pkg/ferry/types"
)

// Row contains the display-oriented view of one target's outcome.
// It extends the raw result with computed fields like the human-readable
// size for easier formatting.
type Row struct {
	// Status is "ok", "failed", or "planned" for dry runs.
	Status string `json:"status" yaml:"status"`

	// Source is the path the operation acted on.
	Source string `json:"source" yaml:"source"`

	// Destination is the resulting path, when the operation produces one.
	Destination string `json:"destination,omitempty" yaml:"destination,omitempty"`

	// Size is the number of bytes acted on.
	Size int64 `json:"size" yaml:"size"`

	// SizeHuman is the human-readable size (e.g., "1.5 MiB").
	SizeHuman string `json:"size_human" yaml:"size_human"`

	// Duration is the wall-clock time the target took.
	Duration time.Duration `json:"duration" yaml:"duration"`

	// Checksum is the hex digest of the written content, when verified.
	Checksum string `json:"checksum,omitempty" yaml:"checksum,omitempty"`

	// Verified indicates the destination digest matched the source.
	Verified bool `json:"verified,omitempty" yaml:"verified,omitempty"`

	// Error holds the failure message for failed targets.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Summary contains aggregate statistics for a batch.
type Summary struct {
	// Total is the number of targets in the batch.
	Total int `json:"total" yaml:"total"`

	// Completed is the number of targets that succeeded.
	Completed int `json:"completed" yaml:"completed"`

	// Failed is the number of targets that failed.
	Failed int `json:"failed" yaml:"failed"`

	// Bytes is the total size of all successful targets.
	Bytes int64 `json:"bytes" yaml:"bytes"`

	// Elapsed is the total wall-clock time for the batch.
	Elapsed time.Duration `json:"elapsed" yaml:"elapsed"`
}

// Report contains the complete output data for formatting: one row per
// target, aggregate statistics, and metadata about the batch.
type Report struct {
	// Operation is the logical command that produced this report.
	Operation types.OperationKind `json:"operation" yaml:"operation"`

	// Rows contains one entry per target, in batch order.
	Rows []Row `json:"rows" yaml:"rows"`

	// Summary contains aggregate statistics.
	Summary Summary `json:"summary" yaml:"summary"`

	// Risk is the highest risk level the pre-flight analysis assigned.
	Risk types.RiskLevel `json:"risk" yaml:"risk"`

	// Warnings contains advisory messages from the pre-flight analysis.
	Warnings []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`

	// DryRun indicates the batch was planned but not executed.
	DryRun bool `json:"dry_run" yaml:"dry_run"`

	// Started is when the batch began.
	Started time.Time `json:"started" yaml:"started"`
}

// FromManifest converts an engine manifest into a display report.
func FromManifest(m *types.Manifest) *Report {
	rows := make([]Row, len(m.Results))
	for i, res := range m.Results {
		rows[i] = Row{
			Status:      rowStatus(res.Success, m.DryRun),
			Source:      res.Source,
			Destination: res.Destination,
			Size:        res.Size,
			SizeHuman:   types.FormatSize(res.Size),
			Duration:    res.Duration,
			Checksum:    res.Checksum,
			Verified:    res.ChecksumVerified,
			Error:       res.Error,
		}
	}

	return &Report{
		Operation: m.Operation,
		Rows:      rows,
		Summary: Summary{
			Total:     m.Total(),
			Completed: m.Completed(),
			Failed:    m.Failed(),
			Bytes:     m.Bytes(),
			Elapsed:   m.Elapsed,
		},
		Risk:     m.Risk,
		Warnings: m.Warnings,
		DryRun:   m.DryRun,
		Started:  m.Started,
	}
}

// rowStatus maps an outcome onto its display status.
func rowStatus(success, dryRun bool) string {
	switch {
	case dryRun:
		return "planned"
	case success:
		return "ok"
	default:
		return "failed"
	}
}

// Formatter is the interface that all output formatters must implement.
type Formatter interface {
	// Format writes the formatted output to the buffer.
	// It returns an error if formatting fails.
	Format(w *bytes.Buffer, r *Report) error
}

// FormatterFactory is a function that creates a new Formatter instance.
type FormatterFactory func() Formatter

// Registry manages formatter registration and lookup.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]FormatterFactory
}

// NewRegistry creates a new formatter registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]FormatterFactory),
	}
}

// Register adds a formatter factory to the registry.
// It will replace any existing formatter with the same name.
func (r *Registry) Register(name string, factory FormatterFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Get returns a new formatter instance by name.
// It returns an error if the formatter is not found.
func (r *Registry) Get(name string) (Formatter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown formatter: %s", name)
	}
	return factory(), nil
}

// Available returns a sorted list of all registered formatter names.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry is the global formatter registry.
var DefaultRegistry = NewRegistry()

// Register adds a formatter factory to the default registry.
func Register(name string, factory FormatterFactory) {
	DefaultRegistry.Register(name, factory)
}

// Get returns a new formatter instance from the default registry.
func Get(name string) (Formatter, error) {
	return DefaultRegistry.Get(name)
}

// Available returns all formatter names from the default registry.
func Available() []string {
	return DefaultRegistry.Available()
}

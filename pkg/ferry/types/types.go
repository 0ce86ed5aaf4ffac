// Package types provides core data types for the ferry file-operation engine.
// It includes the operation and risk-level enumerations, per-target operation
// results, batch manifests, and utility functions for parsing and formatting
// file sizes.
package types

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Size constants for binary (IEC) units.
const (
	KiB int64 = 1024
	MiB int64 = 1024 * KiB
	GiB int64 = 1024 * MiB
	TiB int64 = 1024 * GiB
)

// OperationKind identifies a logical file operation.
type OperationKind int

// Operation kinds, in the order they were added.
const (
	OpMove OperationKind = iota
	OpCopy
	OpDelete
	OpCreate
	OpMkdir
	OpTouch
	OpChmod
	OpChown
	OpLink
	OpRmdir
	OpOrganize
	OpSync
	OpTrash
	OpRestore
	OpVerify
)

// opNames maps operation kinds to their canonical string form, which is
// also the form persisted in journal and history records.
var opNames = map[OperationKind]string{
	OpMove:     "move",
	OpCopy:     "copy",
	OpDelete:   "delete",
	OpCreate:   "create",
	OpMkdir:    "mkdir",
	OpTouch:    "touch",
	OpChmod:    "chmod",
	OpChown:    "chown",
	OpLink:     "link",
	OpRmdir:    "rmdir",
	OpOrganize: "organize",
	OpSync:     "sync",
	OpTrash:    "trash",
	OpRestore:  "restore",
	OpVerify:   "verify",
}

// ErrInvalidOperation indicates that an operation name could not be parsed.
var ErrInvalidOperation = errors.New("invalid operation")

// String returns the canonical lowercase name of the operation.
func (k OperationKind) String() string {
	if name, ok := opNames[k]; ok {
		return name
	}
	return fmt.Sprintf("operation(%d)", int(k))
}

// ParseOperation converts an operation name to an OperationKind.
// Matching is case-insensitive. Returns ErrInvalidOperation for
// unrecognized names.
func ParseOperation(s string) (OperationKind, error) {
	needle := strings.ToLower(strings.TrimSpace(s))
	for kind, name := range opNames {
		if name == needle {
			return kind, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidOperation, s)
}

// MarshalText implements encoding.TextMarshaler so operation kinds persist
// as readable names in JSON records.
func (k OperationKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *OperationKind) UnmarshalText(text []byte) error {
	kind, err := ParseOperation(string(text))
	if err != nil {
		return err
	}
	*k = kind
	return nil
}

// RiskLevel scores how dangerous an operation is, driving the strength of
// confirmation required before it proceeds.
type RiskLevel int

// Risk levels in ascending order of severity. The ordering is load-bearing:
// confirmation gates compare with >=.
const (
	RiskSafe RiskLevel = iota
	RiskLow
	RiskMedium
	RiskHigh
	RiskCritical
)

// riskNames maps risk levels to their display form.
var riskNames = map[RiskLevel]string{
	RiskSafe:     "SAFE",
	RiskLow:      "LOW",
	RiskMedium:   "MEDIUM",
	RiskHigh:     "HIGH",
	RiskCritical: "CRITICAL",
}

// ErrInvalidRiskLevel indicates that a risk-level name could not be parsed.
var ErrInvalidRiskLevel = errors.New("invalid risk level")

// String returns the uppercase name of the risk level.
func (r RiskLevel) String() string {
	if name, ok := riskNames[r]; ok {
		return name
	}
	return fmt.Sprintf("risk(%d)", int(r))
}

// ParseRiskLevel converts a risk-level name to a RiskLevel.
// Matching is case-insensitive.
func ParseRiskLevel(s string) (RiskLevel, error) {
	needle := strings.ToUpper(strings.TrimSpace(s))
	for level, name := range riskNames {
		if name == needle {
			return level, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidRiskLevel, s)
}

// MarshalText implements encoding.TextMarshaler.
func (r RiskLevel) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *RiskLevel) UnmarshalText(text []byte) error {
	level, err := ParseRiskLevel(string(text))
	if err != nil {
		return err
	}
	*r = level
	return nil
}

// OperationResult records the outcome of one logical file acted upon.
// It is immutable after creation and aggregated into a Manifest for
// batch reporting.
type OperationResult struct {
	// Success indicates whether the operation completed.
	Success bool `json:"success"`

	// Operation is the kind of operation performed.
	Operation OperationKind `json:"operation"`

	// Source is the path the operation acted on.
	Source string `json:"source"`

	// Destination is the resulting path for operations that produce one.
	Destination string `json:"destination,omitempty"`

	// Checksum is the hex SHA-256 digest of the written content, when
	// checksum verification was enabled.
	Checksum string `json:"checksum,omitempty"`

	// ChecksumVerified indicates the destination digest was compared
	// against the source and matched.
	ChecksumVerified bool `json:"checksum_verified,omitempty"`

	// Size is the number of bytes acted on, when known.
	Size int64 `json:"size,omitempty"`

	// Duration is the wall-clock time the target took.
	Duration time.Duration `json:"duration,omitempty"`

	// Error holds the failure message when Success is false.
	Error string `json:"error,omitempty"`
}

// Manifest aggregates the results of one bulk invocation.
// Summary counters are derived from the result set, never maintained
// independently.
type Manifest struct {
	// Operation is the logical command that produced this manifest.
	Operation OperationKind `json:"operation"`

	// Results contains one entry per target, in completion order for
	// sequential runs and in submission order for concurrent runs.
	Results []OperationResult `json:"results"`

	// Started is when the batch began.
	Started time.Time `json:"started"`

	// Elapsed is the total wall-clock time for the batch.
	Elapsed time.Duration `json:"elapsed"`

	// DryRun indicates the batch was planned but not executed.
	DryRun bool `json:"dry_run,omitempty"`

	// Risk is the highest risk level the pre-flight analysis assigned to
	// the batch. Zero (SAFE) when no analysis ran.
	Risk RiskLevel `json:"risk"`

	// Warnings carries advisory findings from the pre-flight analysis.
	Warnings []string `json:"warnings,omitempty"`
}

// Total returns the number of targets in the manifest.
func (m *Manifest) Total() int { return len(m.Results) }

// Completed returns the number of successful targets.
func (m *Manifest) Completed() int {
	n := 0
	for i := range m.Results {
		if m.Results[i].Success {
			n++
		}
	}
	return n
}

// Failed returns the number of failed targets.
func (m *Manifest) Failed() int { return m.Total() - m.Completed() }

// Bytes returns the total size of all successful targets.
func (m *Manifest) Bytes() int64 {
	var total int64
	for i := range m.Results {
		if m.Results[i].Success {
			total += m.Results[i].Size
		}
	}
	return total
}

// OK reports whether every target in the batch succeeded.
func (m *Manifest) OK() bool { return m.Failed() == 0 }

// sizePattern matches size strings like "100M", "2G", "500K", "1.5GB", etc.
var sizePattern = regexp.MustCompile(`(?i)^\s*([0-9]+(?:\.[0-9]+)?)\s*([KMGT]?(?:i?B)?)\s*$`)

// ErrInvalidSize indicates that the size string could not be parsed.
var ErrInvalidSize = errors.New("invalid size format")

// ErrNegativeSize indicates that a negative size value was provided.
var ErrNegativeSize = errors.New("size cannot be negative")

// ParseSize parses a human-readable size string and returns the size in bytes.
// It supports the following formats:
//   - Plain bytes: "1024", "0"
//   - With byte suffix: "512B", "512b"
//   - Kilobytes: "100K", "100k", "100KB", "100KiB"
//   - Megabytes: "50M", "50m", "50MB", "50MiB"
//   - Gigabytes: "2G", "2g", "2GB", "2GiB"
//   - Terabytes: "1T", "1t", "1TB", "1TiB"
//
// Decimal values are supported and truncated to the nearest byte.
// Leading and trailing whitespace is ignored.
//
// Returns ErrInvalidSize if the format is not recognized.
// Returns ErrNegativeSize if the value is negative.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty string", ErrInvalidSize)
	}

	// Check for negative values
	if strings.HasPrefix(s, "-") {
		return 0, ErrNegativeSize
	}

	matches := sizePattern.FindStringSubmatch(s)
	if matches == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}

	// Parse the numeric value
	value, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}

	// Determine the multiplier based on the suffix
	suffix := strings.ToUpper(matches[2])
	// Remove 'B' or 'IB' suffix to get just the unit letter
	suffix = strings.TrimSuffix(suffix, "IB")
	suffix = strings.TrimSuffix(suffix, "B")

	var multiplier int64
	switch suffix {
	case "":
		multiplier = 1
	case "K":
		multiplier = KiB
	case "M":
		multiplier = MiB
	case "G":
		multiplier = GiB
	case "T":
		multiplier = TiB
	default:
		return 0, fmt.Errorf("%w: unknown suffix %q", ErrInvalidSize, suffix)
	}

	return int64(value * float64(multiplier)), nil
}

// FormatSize converts a size in bytes to a human-readable string.
// It uses binary (IEC) units (KiB, MiB, GiB, TiB) for consistency
// with common filesystem tools.
//
// Examples:
//   - FormatSize(0) returns "0 B"
//   - FormatSize(1024) returns "1.0 KiB"
//   - FormatSize(1536*1024) returns "1.5 MiB"
func FormatSize(bytes int64) string {
	return humanize.IBytes(uint64(bytes))
}

// Package safety performs pre-flight risk assessment for ferry operations.
// Before any mutation runs, the analyzer sizes the affected trees, probes
// permissions and free space, looks for destination conflicts and sensitive
// file names, and consults advisory git state. The result is a Check whose
// risk level drives how strong a confirmation the engine demands.
package safety

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/jamesainslie/ferry/pkg/ferry/types"
)

// ErrInsufficientSpace indicates the destination filesystem lacks room for
// the operation. Surfaced when the operator declines to proceed anyway.
var ErrInsufficientSpace = errors.New("insufficient disk space")

// SensitivePatterns are base-name globs whose presence anywhere under a
// source tree raises the risk of the operation. They cover VCS metadata,
// environment files, and private key material.
var SensitivePatterns = []string{
	".git",
	".env",
	".env.*",
	"*.pem",
	"*.key",
	"id_rsa*",
	"id_ed25519*",
	"*.p12",
	"*.pfx",
	"*.keystore",
}

// Check is the result of one pre-flight analysis. It is computed fresh per
// operation request and never persisted: filesystem state changes between
// calls.
type Check struct {
	// Risk is the highest risk level any finding produced.
	Risk types.RiskLevel `json:"risk_level"`

	// Warnings describe findings that raise risk without blocking.
	Warnings []string `json:"warnings,omitempty"`

	// Conflicts name destination paths that already exist.
	Conflicts []string `json:"conflicts,omitempty"`

	// RequiredSpace is the total size of all sources in bytes.
	RequiredSpace int64 `json:"required_space"`

	// AvailableSpace is the free space at the destination, when one was
	// given. Negative means the probe was skipped or failed.
	AvailableSpace int64 `json:"available_space"`

	// PermissionsOK reports whether every source was readable and every
	// mutated location writable.
	PermissionsOK bool `json:"permissions_ok"`

	// Git carries the advisory repository state of the sources, when a
	// provider was configured and the sources sit inside a working tree.
	Git *GitStatus `json:"git_status,omitempty"`
}

// Safe reports whether the operation needs no confirmation: permissions
// check out, nothing conflicts, and no finding rose above LOW.
func (c *Check) Safe() bool {
	return c.PermissionsOK && len(c.Conflicts) == 0 && c.Risk <= types.RiskLow
}

// SpaceOK reports whether the destination has room for the sources.
// Unknown availability counts as OK: the probe is advisory.
func (c *Check) SpaceOK() bool {
	return c.AvailableSpace < 0 || c.AvailableSpace >= c.RequiredSpace
}

// raise lifts the risk to level unless it is already higher. Risk only
// ever goes up during analysis.
func (c *Check) raise(level types.RiskLevel) {
	if level > c.Risk {
		c.Risk = level
	}
}

// warnf records a warning.
func (c *Check) warnf(format string, args ...any) {
	c.Warnings = append(c.Warnings, fmt.Sprintf(format, args...))
}

// Analyzer computes pre-flight checks. A nil git provider disables the
// advisory repository check; everything else runs unconditionally.
type Analyzer struct {
	git GitStatusProvider
}

// NewAnalyzer creates an Analyzer with the given git provider. Pass nil
// to skip git checks entirely.
func NewAnalyzer(git GitStatusProvider) *Analyzer {
	return &Analyzer{git: git}
}

// Analyze performs the pre-flight assessment for one logical operation.
// Sources are the paths acted on; dest is the destination for operations
// that have one, empty otherwise. Analysis itself never mutates anything
// and never fails on findings: a finding raises risk, only an inability
// to analyze returns an error.
func (a *Analyzer) Analyze(ctx context.Context, op types.OperationKind, sources []string, dest string) (*Check, error) {
	check := &Check{
		Risk:           types.RiskSafe,
		PermissionsOK:  true,
		AvailableSpace: -1,
	}

	stats := measureSources(ctx, sources)
	check.RequiredSpace = stats.bytes.Load()

	for _, path := range stats.sensitivePaths() {
		check.warnf("sensitive path under source: %s", path)
	}
	for _, path := range stats.unreadablePaths() {
		check.PermissionsOK = false
		check.warnf("cannot read: %s", path)
	}
	if stats.sensitiveCount() > 0 {
		check.raise(sensitiveRisk(op))
	}

	a.checkPermissions(op, sources, dest, check)
	a.checkSpace(op, dest, check)
	a.checkConflicts(op, sources, dest, check)
	a.checkGit(ctx, sources, check)
	applyFloors(op, stats, check)

	return check, ctx.Err()
}

// checkPermissions probes read access on each source and write access on
// every directory the operation will mutate.
func (a *Analyzer) checkPermissions(op types.OperationKind, sources []string, dest string, check *Check) {
	for _, src := range sources {
		if _, err := os.Lstat(src); err != nil {
			if os.IsNotExist(err) && createsSource(op) {
				continue
			}
			check.PermissionsOK = false
			check.warnf("cannot stat source: %s", src)
			continue
		}
		if unix.Access(src, unix.R_OK) != nil {
			check.PermissionsOK = false
			check.warnf("source not readable: %s", src)
		}
		if removesSource(op) {
			if unix.Access(filepath.Dir(src), unix.W_OK) != nil {
				check.PermissionsOK = false
				check.warnf("parent directory not writable: %s", filepath.Dir(src))
			}
		}
		if mutatesInPlace(op) {
			if unix.Access(src, unix.W_OK) != nil {
				check.PermissionsOK = false
				check.warnf("target not writable: %s", src)
			}
		}
	}

	if dest != "" || createsSource(op) {
		base := dest
		if base == "" && len(sources) > 0 {
			base = sources[0]
		}
		anchor := deepestExisting(base)
		if anchor != "" && unix.Access(anchor, unix.W_OK) != nil {
			check.PermissionsOK = false
			check.warnf("destination not writable: %s", anchor)
		}
	}

	if !check.PermissionsOK {
		check.raise(types.RiskHigh)
	}
}

// checkSpace compares the required size against the free space at the
// destination filesystem for operations that add data there.
func (a *Analyzer) checkSpace(op types.OperationKind, dest string, check *Check) {
	if dest == "" || !addsData(op) {
		return
	}
	anchor := deepestExisting(dest)
	if anchor == "" {
		return
	}

	var stat unix.Statfs_t
	if err := unix.Statfs(anchor, &stat); err != nil {
		check.warnf("cannot determine free space at %s: %v", anchor, err)
		return
	}
	check.AvailableSpace = int64(stat.Bavail) * int64(stat.Bsize)

	if check.AvailableSpace < check.RequiredSpace {
		check.raise(types.RiskHigh)
		check.warnf("insufficient space at %s: need %s, have %s",
			anchor, types.FormatSize(check.RequiredSpace), types.FormatSize(check.AvailableSpace))
	}
}

// checkConflicts flags destinations that already exist. A conflict is
// MEDIUM risk: proceeding overwrites or merges, which the operator must
// acknowledge.
func (a *Analyzer) checkConflicts(op types.OperationKind, sources []string, dest string, check *Check) {
	if dest == "" {
		return
	}

	for _, src := range sources {
		if src == "" {
			continue
		}
		if isWithin(src, dest) {
			check.Conflicts = append(check.Conflicts, dest)
			check.warnf("destination %s lies inside source %s", dest, src)
			check.raise(types.RiskHigh)
		}
	}

	info, err := os.Lstat(dest)
	if err != nil {
		return
	}

	if !info.IsDir() || !transfersInto(op) {
		check.Conflicts = append(check.Conflicts, dest)
		check.warnf("destination already exists: %s", dest)
		check.raise(types.RiskMedium)
		return
	}

	// Destination is a directory the sources land inside: conflict per
	// colliding base name.
	for _, src := range sources {
		target := filepath.Join(dest, filepath.Base(src))
		if _, err := os.Lstat(target); err == nil {
			check.Conflicts = append(check.Conflicts, target)
			check.warnf("destination already exists: %s", target)
			check.raise(types.RiskMedium)
		}
	}
}

// checkGit records advisory repository state. Uncommitted changes under a
// source raise MEDIUM: the operation may destroy work git has not saved.
// Provider failures soften to a warning; git trouble never blocks analysis.
func (a *Analyzer) checkGit(ctx context.Context, sources []string, check *Check) {
	if a.git == nil {
		return
	}
	for _, src := range sources {
		status, err := a.git.Status(ctx, src)
		if err != nil {
			check.warnf("git status unavailable for %s: %v", src, err)
			continue
		}
		if !status.IsRepo {
			continue
		}
		check.Git = status
		if status.Dirty() {
			check.raise(types.RiskMedium)
			check.warnf("uncommitted changes near %s: %d modified, %d untracked",
				src, status.Modified, status.Untracked)
		}
		return
	}
}

// applyFloors enforces the minimum risk certain operations carry no matter
// what analysis found.
func applyFloors(op types.OperationKind, stats *treeStats, check *Check) {
	switch op {
	case types.OpChmod, types.OpChown:
		// Permission and ownership changes can lock the owner out.
		check.raise(types.RiskHigh)
	case types.OpDelete, types.OpTrash:
		if stats.hasChildren.Load() {
			check.raise(types.RiskHigh)
		} else {
			check.raise(types.RiskLow)
		}
	case types.OpRmdir:
		// Removing an empty directory destroys nothing.
	}
}

// sensitiveRisk maps a sensitive-name finding to the risk it carries for
// the given operation. Permanent deletion of key material or VCS state is
// the worst case this tool can produce; everything else rates HIGH.
func sensitiveRisk(op types.OperationKind) types.RiskLevel {
	if op == types.OpDelete {
		return types.RiskCritical
	}
	return types.RiskHigh
}

// removesSource reports whether the operation takes the source out of its
// parent directory.
func removesSource(op types.OperationKind) bool {
	switch op {
	case types.OpMove, types.OpDelete, types.OpTrash, types.OpRmdir, types.OpOrganize:
		return true
	default:
		return false
	}
}

// mutatesInPlace reports whether the operation rewrites the source's own
// metadata or content.
func mutatesInPlace(op types.OperationKind) bool {
	switch op {
	case types.OpChmod, types.OpChown, types.OpTouch:
		return true
	default:
		return false
	}
}

// createsSource reports whether the operation brings the source paths into
// existence, so a missing source is expected rather than a finding.
func createsSource(op types.OperationKind) bool {
	switch op {
	case types.OpCreate, types.OpMkdir, types.OpTouch, types.OpLink:
		return true
	default:
		return false
	}
}

// addsData reports whether the operation writes source-sized content at
// the destination.
func addsData(op types.OperationKind) bool {
	switch op {
	case types.OpCopy, types.OpMove, types.OpSync, types.OpCreate, types.OpRestore:
		return true
	default:
		return false
	}
}

// transfersInto reports whether a directory destination means "place the
// sources inside" rather than "replace this path".
func transfersInto(op types.OperationKind) bool {
	switch op {
	case types.OpMove, types.OpCopy, types.OpSync:
		return true
	default:
		return false
	}
}

// deepestExisting walks up from path to the nearest ancestor that exists.
// Returns "" when nothing on the chain exists (unrooted relative paths).
func deepestExisting(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return ""
	}
	current := abs
	for {
		if _, err := os.Stat(current); err == nil {
			return current
		}
		parent := filepath.Dir(current)
		if parent == current {
			return ""
		}
		current = parent
	}
}

// isWithin reports whether candidate equals base or sits beneath it.
func isWithin(base, candidate string) bool {
	baseAbs, err := filepath.Abs(base)
	if err != nil {
		return false
	}
	candAbs, err := filepath.Abs(candidate)
	if err != nil {
		return false
	}
	if baseAbs == candAbs {
		return true
	}
	return strings.HasPrefix(candAbs, baseAbs+string(filepath.Separator))
}

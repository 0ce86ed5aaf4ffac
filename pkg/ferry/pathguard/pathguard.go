// Package pathguard validates that paths stay inside configured sandbox
// roots before any mutation touches them. It resolves symlinks so a link
// pointing out of the sandbox cannot smuggle an operation past the check.
package pathguard

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// ErrPathEscapesSandbox indicates the resolved path lies outside every
// configured sandbox root. Raised before any mutation; fatal, never retried.
var ErrPathEscapesSandbox = errors.New("path escapes sandbox")

// ErrSymlinkDenied indicates the path is a symlink and the symlink policy
// disallows operating on links.
var ErrSymlinkDenied = errors.New("symlink not allowed")

// ErrInvalidPath indicates the path is empty or contains control characters.
var ErrInvalidPath = errors.New("invalid path")

// Guard validates paths against a set of sandbox roots.
// A Guard with no roots performs only symlink and well-formedness checks.
// Validation never caches: filesystem state can change between calls.
type Guard struct {
	roots         []string
	allowSymlinks bool
}

// New creates a Guard for the given sandbox roots. Each root is resolved
// to an absolute, symlink-free path at construction so later prefix checks
// compare like with like. Roots that do not exist yet are kept as cleaned
// absolute paths.
func New(roots []string, allowSymlinks bool) (*Guard, error) {
	resolved := make([]string, 0, len(roots))
	for _, root := range roots {
		if strings.TrimSpace(root) == "" {
			return nil, fmt.Errorf("%w: empty sandbox root", ErrInvalidPath)
		}
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("resolve sandbox root %q: %w", root, err)
		}
		if real, err := filepath.EvalSymlinks(abs); err == nil {
			abs = real
		}
		resolved = append(resolved, abs)
	}
	return &Guard{roots: resolved, allowSymlinks: allowSymlinks}, nil
}

// Roots returns the resolved sandbox roots.
func (g *Guard) Roots() []string {
	out := make([]string, len(g.roots))
	copy(out, g.roots)
	return out
}

// Validate checks a single path and returns its resolved absolute form.
// It fails with ErrSymlinkDenied when the path itself is a symlink and
// symlinks are disallowed, and with ErrPathEscapesSandbox when the resolved
// path has no configured root as a prefix. The path does not need to exist:
// the deepest existing ancestor is resolved and the remainder rejoined, so
// a not-yet-created destination is still checked against the real parent.
func (g *Guard) Validate(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	if strings.ContainsRune(path, '\x00') || hasControlCharacters(path) {
		return "", fmt.Errorf("%w: %q contains control characters", ErrInvalidPath, path)
	}

	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", path, err)
	}

	if !g.allowSymlinks {
		if fi, err := os.Lstat(abs); err == nil && fi.Mode()&os.ModeSymlink != 0 {
			return "", fmt.Errorf("%w: %q", ErrSymlinkDenied, path)
		}
	}

	resolved, err := resolveExisting(abs)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", path, err)
	}

	if len(g.roots) == 0 {
		return resolved, nil
	}
	for _, root := range g.roots {
		if isWithinRoot(root, resolved) {
			return resolved, nil
		}
	}
	return "", fmt.Errorf("%w: %q resolves to %q", ErrPathEscapesSandbox, path, resolved)
}

// ValidateAll validates every path and returns the resolved forms in order.
// The first failure aborts: callers must not treat a partially validated
// batch as safe.
func (g *Guard) ValidateAll(paths []string) ([]string, error) {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		resolved, err := g.Validate(p)
		if err != nil {
			return nil, err
		}
		out = append(out, resolved)
	}
	return out, nil
}

// resolveExisting resolves symlinks in the deepest existing ancestor of
// path and rejoins the non-existing remainder. A path that exists resolves
// fully; a path whose parent chain does not exist resolves as far as the
// filesystem allows.
func resolveExisting(abs string) (string, error) {
	remainder := make([]string, 0, 4)
	current := abs
	for {
		resolved, err := filepath.EvalSymlinks(current)
		if err == nil {
			return filepath.Join(append([]string{resolved}, remainder...)...), nil
		}
		if !os.IsNotExist(err) {
			return "", err
		}
		parent := filepath.Dir(current)
		if parent == current {
			// Walked up to the filesystem root without finding
			// an existing ancestor.
			return abs, nil
		}
		remainder = append([]string{filepath.Base(current)}, remainder...)
		current = parent
	}
}

// hasControlCharacters reports whether the string contains any control rune.
func hasControlCharacters(value string) bool {
	for _, char := range value {
		if unicode.IsControl(char) {
			return true
		}
	}
	return false
}

// isWithinRoot reports whether candidate equals root or sits beneath it.
// The check is component-wise: /project does not admit /project2.
func isWithinRoot(root, candidate string) bool {
	if candidate == root {
		return true
	}
	return strings.HasPrefix(candidate, root+string(filepath.Separator))
}

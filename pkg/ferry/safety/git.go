package safety

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// DefaultGitTimeout bounds one git invocation during analysis.
const DefaultGitTimeout = 3 * time.Second

// GitStatus summarizes the version-control state of one path. The engine
// only ever reads it: git state raises risk, it is never modified.
type GitStatus struct {
	// IsRepo reports whether the path sits inside a git working tree.
	IsRepo bool `json:"is_repo"`

	// Modified counts tracked entries with staged or unstaged changes.
	Modified int `json:"modified"`

	// Untracked counts entries git does not track.
	Untracked int `json:"untracked"`
}

// Dirty reports whether the working tree has uncommitted state.
func (s *GitStatus) Dirty() bool {
	return s.IsRepo && (s.Modified > 0 || s.Untracked > 0)
}

// GitStatusProvider supplies advisory git state for a path. A nil provider
// disables the check entirely.
type GitStatusProvider interface {
	Status(ctx context.Context, path string) (*GitStatus, error)
}

// GitCLI consults git by shelling out to the git binary.
type GitCLI struct {
	// Timeout bounds one invocation. Zero means DefaultGitTimeout.
	Timeout time.Duration
}

// Status runs `git status --porcelain` for the directory containing path.
// A path outside any working tree yields IsRepo false with no error.
func (g *GitCLI) Status(ctx context.Context, path string) (*GitStatus, error) {
	dir := path
	if info, err := os.Stat(path); err != nil || !info.IsDir() {
		dir = filepath.Dir(path)
	}

	timeout := g.Timeout
	if timeout <= 0 {
		timeout = DefaultGitTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "-C", dir, "status", "--porcelain")
	out, err := cmd.Output()
	if err != nil {
		// Exit status 128 means not a repository. Anything else (binary
		// missing, timeout) is a real failure for the caller to soften.
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &GitStatus{}, nil
		}
		return nil, fmt.Errorf("git status %s: %w", dir, err)
	}

	return parsePorcelain(string(out)), nil
}

// parsePorcelain counts entries per porcelain v1 status line. "??" marks
// untracked; every other status code counts as modified.
func parsePorcelain(out string) *GitStatus {
	status := &GitStatus{IsRepo: true}
	for _, line := range strings.Split(out, "\n") {
		if len(line) < 3 {
			continue
		}
		if strings.HasPrefix(line, "??") {
			status.Untracked++
		} else {
			status.Modified++
		}
	}
	return status
}

// Package lockfile provides the cross-process advisory lock that serializes
// journal and trash mutations between concurrent ferry invocations. The lock
// is a flock(2) on a dedicated file; the kernel releases it when the holder
// exits, so a crashed process can never wedge the lock. The holder's pid is
// written into the file purely for diagnostics.
package lockfile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// pollInterval is how often a blocked Acquire re-probes the lock.
const pollInterval = 10 * time.Millisecond

// ErrLockHeld indicates another process holds the lock.
var ErrLockHeld = errors.New("lock held by another process")

// Lock is an acquired cross-process lock. Release it exactly once.
type Lock struct {
	path string
	f    *os.File
}

// Acquire takes the exclusive lock at path, polling until it succeeds or
// ctx is done. The lock file and its parent directory are created as
// needed. On timeout the error names the current holder's pid when it can
// be read.
func Acquire(ctx context.Context, path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file %q: %w", path, err)
	}

	for {
		err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			lock := &Lock{path: path, f: f}
			lock.writeHolder()
			return lock, nil
		}
		if !errors.Is(err, unix.EWOULDBLOCK) {
			_ = f.Close()
			return nil, fmt.Errorf("flock %q: %w", path, err)
		}

		select {
		case <-ctx.Done():
			_ = f.Close()
			if pid, ok := HolderPID(path); ok {
				return nil, fmt.Errorf("%w: %q (pid %d): %v", ErrLockHeld, path, pid, ctx.Err())
			}
			return nil, fmt.Errorf("%w: %q: %v", ErrLockHeld, path, ctx.Err())
		case <-time.After(pollInterval):
		}
	}
}

// TryAcquire takes the lock without blocking, returning ErrLockHeld when
// another process has it.
func TryAcquire(path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file %q: %w", path, err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			if pid, ok := HolderPID(path); ok {
				return nil, fmt.Errorf("%w: %q (pid %d)", ErrLockHeld, path, pid)
			}
			return nil, fmt.Errorf("%w: %q", ErrLockHeld, path)
		}
		return nil, fmt.Errorf("flock %q: %w", path, err)
	}

	lock := &Lock{path: path, f: f}
	lock.writeHolder()
	return lock, nil
}

// Release drops the lock and closes the file. The lock file itself stays
// on disk: removing it would race against a waiter that already opened it.
func (l *Lock) Release() error {
	if l.f == nil {
		return nil
	}
	unlockErr := unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
	closeErr := l.f.Close()
	l.f = nil
	if unlockErr != nil {
		return fmt.Errorf("unlock %q: %w", l.path, unlockErr)
	}
	if closeErr != nil {
		return fmt.Errorf("close lock file %q: %w", l.path, closeErr)
	}
	return nil
}

// Path returns the lock file path.
func (l *Lock) Path() string { return l.path }

// writeHolder records our pid in the lock file for diagnostics. Failures
// are ignored: the flock, not the content, is the lock.
func (l *Lock) writeHolder() {
	if err := l.f.Truncate(0); err != nil {
		return
	}
	if _, err := l.f.Seek(0, 0); err != nil {
		return
	}
	_, _ = fmt.Fprintf(l.f, "%d\n", os.Getpid())
	_ = l.f.Sync()
}

// HolderPID reads the pid recorded in the lock file. The second return is
// false when the file is missing, empty, or unparseable.
func HolderPID(path string) (int, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}

// IsProcessRunning checks whether a process with the given pid exists,
// using signal 0 which probes without delivering anything.
func IsProcessRunning(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}

// Package retry wraps mutating filesystem calls with bounded, exponential
// backoff for locked or busy files. Only errors classified as locked/busy
// are retried; everything else propagates immediately so a permission or
// integrity failure never burns through the retry budget.
package retry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// Defaults for callers that pass zero values.
const (
	// DefaultMaxRetries is the bounded attempt count.
	DefaultMaxRetries = 3

	// DefaultBaseDelay seeds the exponential backoff.
	DefaultBaseDelay = 100 * time.Millisecond

	// maxBackoff caps a single backoff sleep regardless of attempt count.
	maxBackoff = 5 * time.Second
)

// ErrFileLocked indicates an advisory lock probe found the file held by
// another process.
var ErrFileLocked = errors.New("file is locked")

// ErrLockTimeout indicates the retry budget was exhausted while the file
// stayed locked or busy.
var ErrLockTimeout = errors.New("file still locked after retries")

// IsLocked probes path with a non-blocking exclusive flock and reports
// whether another process holds it. A missing or unopenable file is
// reported as unlocked: the subsequent mutation will surface the real
// error.
func IsLocked(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		return errors.Is(err, unix.EWOULDBLOCK)
	}
	_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
	return false
}

// CheckLocked returns ErrFileLocked when the advisory probe finds the path
// held by another process, nil otherwise.
func CheckLocked(path string) error {
	if IsLocked(path) {
		return fmt.Errorf("%w: %q", ErrFileLocked, path)
	}
	return nil
}

// IsBusy reports whether an error is a locked/busy condition worth
// retrying: our own probe sentinel or the EAGAIN/EWOULDBLOCK/EBUSY/ETXTBSY
// family from the kernel.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrFileLocked) {
		return true
	}
	return errors.Is(err, unix.EAGAIN) ||
		errors.Is(err, unix.EWOULDBLOCK) ||
		errors.Is(err, unix.EBUSY) ||
		errors.Is(err, unix.ETXTBSY)
}

// Do runs op up to maxRetries times, sleeping baseDelay * 2^attempt between
// attempts while op keeps failing with a locked/busy error. When the budget
// is exhausted it returns ErrLockTimeout wrapping the last error and naming
// the attempt count. Non-busy errors return immediately. Cancellation is
// honored between attempts, never mid-operation.
func Do(ctx context.Context, maxRetries int, baseDelay time.Duration, op func() error) error {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	if baseDelay <= 0 {
		baseDelay = DefaultBaseDelay
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff(baseDelay, attempt-1)):
			}
		}

		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !IsBusy(lastErr) {
			return lastErr
		}
	}
	return fmt.Errorf("%w (%d attempts): %w", ErrLockTimeout, maxRetries, lastErr)
}

// backoff computes baseDelay * 2^attempt, capped at maxBackoff.
func backoff(baseDelay time.Duration, attempt int) time.Duration {
	if attempt > 30 {
		return maxBackoff
	}
	d := baseDelay * time.Duration(1<<uint(attempt))
	if d > maxBackoff || d <= 0 {
		return maxBackoff
	}
	return d
}

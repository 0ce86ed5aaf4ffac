// Package checksum computes and verifies SHA-256 content digests.
// Files are streamed in fixed-size chunks so large files never load
// into memory. Verification retries a bounded number of times with a
// short delay to tolerate slow-flushing filesystems before declaring
// a mismatch.
package checksum

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

// Defaults applied by Options.Validate.
const (
	// DefaultChunkSize is the read size used when streaming file content.
	DefaultChunkSize = 64 * 1024

	// DefaultAttempts is the bounded number of verification attempts.
	DefaultAttempts = 3

	// DefaultDelay is the pause between verification attempts.
	DefaultDelay = 100 * time.Millisecond
)

// ErrChecksumMismatch indicates a file's digest did not match the expected
// value after all verification attempts were exhausted.
var ErrChecksumMismatch = errors.New("checksum mismatch")

// Options configures a Verifier.
type Options struct {
	// ChunkSize is the read size in bytes for streaming. Zero selects
	// DefaultChunkSize.
	ChunkSize int

	// Attempts is the number of verification attempts before a mismatch
	// is declared. Zero selects DefaultAttempts.
	Attempts int

	// Delay is the pause between verification attempts. Zero selects
	// DefaultDelay.
	Delay time.Duration
}

// Validate normalizes the options, applying defaults for zero values.
func (o *Options) Validate() error {
	if o.ChunkSize < 0 {
		return fmt.Errorf("chunk size cannot be negative: %d", o.ChunkSize)
	}
	if o.ChunkSize == 0 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.Attempts < 0 {
		return fmt.Errorf("attempts cannot be negative: %d", o.Attempts)
	}
	if o.Attempts == 0 {
		o.Attempts = DefaultAttempts
	}
	if o.Delay < 0 {
		return fmt.Errorf("delay cannot be negative: %v", o.Delay)
	}
	if o.Delay == 0 {
		o.Delay = DefaultDelay
	}
	return nil
}

// Verifier computes and verifies file digests with one bounded retry
// policy. Paranoid verification elsewhere in the engine only decides
// whether verification runs at all; it never changes this policy.
type Verifier struct {
	opts Options
}

// NewVerifier creates a Verifier with the given options.
func NewVerifier(opts Options) (*Verifier, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Verifier{opts: opts}, nil
}

// Digest returns the hex SHA-256 digest of the file's content.
func (v *Verifier) Digest(path string) (string, error) {
	return DigestChunk(path, v.opts.ChunkSize)
}

// Verify reports whether the file's digest equals expected.
func (v *Verifier) Verify(path, expected string) (bool, error) {
	actual, err := v.Digest(path)
	if err != nil {
		return false, err
	}
	return actual == expected, nil
}

// VerifyRetry verifies the file against expected, re-reading up to the
// configured attempt count with the configured delay between reads.
// It returns ErrChecksumMismatch wrapped with the path and attempt count
// once the attempts are exhausted, a read error immediately, and honors
// context cancellation between attempts.
func (v *Verifier) VerifyRetry(ctx context.Context, path, expected string) error {
	var actual string
	for attempt := 0; attempt < v.opts.Attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(v.opts.Delay):
			}
		}

		var err error
		actual, err = v.Digest(path)
		if err != nil {
			return err
		}
		if actual == expected {
			return nil
		}
	}
	return fmt.Errorf("%w: %q after %d attempts (got %s, want %s)",
		ErrChecksumMismatch, path, v.opts.Attempts, shortDigest(actual), shortDigest(expected))
}

// Digest returns the hex SHA-256 digest of the file using the default
// chunk size.
func Digest(path string) (string, error) {
	return DigestChunk(path, DefaultChunkSize)
}

// DigestChunk returns the hex SHA-256 digest of the file, streaming in
// chunkSize reads.
func DigestChunk(path string, chunkSize int) (string, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %q for digest: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, chunkSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", fmt.Errorf("read %q for digest: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// DigestBytes returns the hex SHA-256 digest of an in-memory buffer.
func DigestBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// shortDigest truncates a digest for error messages. Full digests are
// 64 hex characters and drown the rest of the message.
func shortDigest(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	if d == "" {
		return "?"
	}
	return d
}

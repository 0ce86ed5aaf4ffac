package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

// ConfigDir returns the configuration directory path.
func ConfigDir() (string, error) {
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return filepath.Join(xdgConfigHome, "ferry"), nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "ferry"), nil
}

// DataDir returns $XDG_DATA_HOME/ferry/ for the trash root.
func DataDir() string {
	return filepath.Join(xdg.DataHome, "ferry")
}

// StateDir returns $XDG_STATE_HOME/ferry/ for journal, history, lock,
// and log files.
func StateDir() string {
	return filepath.Join(xdg.StateHome, "ferry")
}

// CacheDir returns $XDG_CACHE_HOME/ferry/ for the digest cache.
func CacheDir() string {
	return filepath.Join(xdg.CacheHome, "ferry")
}

// DefaultJournalDir returns the write-ahead journal directory.
func DefaultJournalDir() string {
	return filepath.Join(StateDir(), "journal")
}

// DefaultTrashDir returns the trash root.
func DefaultTrashDir() string {
	return filepath.Join(DataDir(), "trash")
}

// DefaultHistoryPath returns the operation history file path.
func DefaultHistoryPath() string {
	return filepath.Join(StateDir(), "history.json")
}

// DefaultLockPath returns the cross-process lock file path shared by the
// journal, trash, and history stores.
func DefaultLockPath() string {
	return filepath.Join(StateDir(), "ferry.lock")
}

// DefaultDigestCacheDir returns the badger directory for the digest cache.
func DefaultDigestCacheDir() string {
	return filepath.Join(CacheDir(), "digests")
}

// DefaultLogPath returns the default log file path.
func DefaultLogPath() string {
	return filepath.Join(StateDir(), "ferry.log")
}

// EnsureConfigDir creates the config directory if it doesn't exist.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return nil
}

// EnsureDataDir creates the data directory if it doesn't exist.
func EnsureDataDir() error {
	if err := os.MkdirAll(DataDir(), 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	return nil
}

// EnsureStateDir creates the state directory if it doesn't exist.
func EnsureStateDir() error {
	if err := os.MkdirAll(StateDir(), 0o755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}
	return nil
}

// EnsureCacheDir creates the cache directory if it doesn't exist.
func EnsureCacheDir() error {
	if err := os.MkdirAll(CacheDir(), 0o755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}
	return nil
}

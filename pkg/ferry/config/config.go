package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSize    string `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Daily      bool   `mapstructure:"daily"`
}

// LoggingConfig configures application logging.
type LoggingConfig struct {
	Level      string            `mapstructure:"level"`
	Path       string            `mapstructure:"path"`
	Rotation   RotationConfig    `mapstructure:"rotation"`
	Components map[string]string `mapstructure:"components"`
}

// SafetyConfig configures the pre-flight analyzer and confirmation gate.
type SafetyConfig struct {
	// GitCheck enables the advisory git dirty-state probe.
	GitCheck bool `mapstructure:"git_check"`

	// SandboxRoots restricts mutations to these directory prefixes.
	// Empty means unrestricted.
	SandboxRoots []string `mapstructure:"sandbox_roots"`

	// AllowSymlinks permits operating on symlinks directly.
	AllowSymlinks bool `mapstructure:"allow_symlinks"`
}

// RetryConfig configures locked-file retry behavior.
type RetryConfig struct {
	MaxRetries int           `mapstructure:"max_retries"`
	Delay      time.Duration `mapstructure:"delay"`
}

// Config represents the application configuration as loaded from file,
// environment, and flags. The CLI translates it into the engine's explicit
// construction-time config; the engine itself never reads viper or the
// environment.
type Config struct {
	Retry             RetryConfig   `mapstructure:"retry"`
	Timeout           time.Duration `mapstructure:"timeout"`
	VerifyChecksum    bool          `mapstructure:"verify_checksum"`
	PreserveAttrs     bool          `mapstructure:"preserve_attrs"`
	AutoBackup        bool          `mapstructure:"auto_backup"`
	Concurrency       int           `mapstructure:"concurrency"`
	ChunkSize         int           `mapstructure:"chunk_size"`
	Safety            SafetyConfig  `mapstructure:"safety"`
	HistoryMax        int           `mapstructure:"history_max"`
	JournalRetainDays int           `mapstructure:"journal_retention_days"`
	TrashRetainDays   int           `mapstructure:"trash_retention_days"`
	Logging           LoggingConfig `mapstructure:"logging"`
}

// Load loads configuration from file and environment variables.
// Config file locations (in order of precedence):
//   - $XDG_CONFIG_HOME/ferry/config.yaml
//   - $HOME/.config/ferry/config.yaml
//
// Environment variables are prefixed with FERRY_ (e.g., FERRY_CONCURRENCY).
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		v.AddConfigPath(filepath.Join(xdgConfigHome, "ferry"))
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user home directory: %w", err)
	}
	v.AddConfigPath(filepath.Join(homeDir, ".config", "ferry"))

	v.SetEnvPrefix("FERRY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No config file is fine; defaults apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	for i, root := range cfg.Safety.SandboxRoots {
		expanded, err := ExpandPath(root)
		if err != nil {
			return nil, err
		}
		cfg.Safety.SandboxRoots[i] = expanded
	}

	return &cfg, nil
}

// SetDefaults registers every recognized key with its default on the given
// viper instance. The CLI calls this on the global viper so flag lookups
// fall back consistently.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("retry.max_retries", DefaultMaxRetries)
	v.SetDefault("retry.delay", DefaultRetryDelay)
	v.SetDefault("timeout", DefaultTimeout)
	v.SetDefault("verify_checksum", false)
	v.SetDefault("preserve_attrs", true)
	v.SetDefault("auto_backup", false)
	v.SetDefault("concurrency", DefaultConcurrency)
	v.SetDefault("chunk_size", DefaultChunkSize)
	v.SetDefault("safety.git_check", true)
	v.SetDefault("safety.sandbox_roots", []string{})
	v.SetDefault("safety.allow_symlinks", false)
	v.SetDefault("history_max", DefaultHistoryMax)
	v.SetDefault("journal_retention_days", DefaultJournalRetentionDays)
	v.SetDefault("trash_retention_days", DefaultTrashRetentionDays)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.path", "") // empty means DefaultLogPath
	v.SetDefault("logging.rotation.max_size", "10MB")
	v.SetDefault("logging.rotation.max_age", 30)
	v.SetDefault("logging.rotation.max_backups", 5)
	v.SetDefault("logging.rotation.daily", true)
	v.SetDefault("logging.components", map[string]string{
		"engine":  "info",
		"journal": "info",
		"safety":  "info",
		"trash":   "info",
	})
}

// WriteDefault writes a commented default config file if none exists.
// Returns nil if a config file already exists.
func WriteDefault() error {
	if err := EnsureConfigDir(); err != nil {
		return err
	}
	configDir, err := ConfigDir()
	if err != nil {
		return err
	}
	configPath := filepath.Join(configDir, "config.yaml")

	if _, err := os.Stat(configPath); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to check config file: %w", err)
	}

	defaultConfig := fmt.Sprintf(`# Ferry File Operations Configuration

# Locked-file retry behavior
retry:
  max_retries: %d
  delay: %s

# Per-target operation timeout (0 disables)
timeout: %s

# Verify content digests after copies and writes
verify_checksum: false

# Carry modification times onto copied files
preserve_attrs: true

# Copy an existing destination aside before overwriting it
auto_backup: false

# Worker pool size for bulk operations (0 = auto from CPU count)
concurrency: %d

# Streaming buffer size in bytes for checksums and copies
chunk_size: %d

# Pre-flight safety analysis
safety:
  # Consult git for uncommitted changes under sources
  git_check: true
  # Refuse to operate outside these directory prefixes (empty = anywhere)
  sandbox_roots: []
  # Operate on symlinks directly
  allow_symlinks: false

# Maximum entries kept in the operation history
history_max: %d

# Days to keep terminal journal records before cleanup
journal_retention_days: %d

# Days to keep trashed items before purge
trash_retention_days: %d

# Logging configuration
logging:
  # Log level: debug, info, warn, error
  level: info
  # Log file path (empty means default: $XDG_STATE_HOME/ferry/ferry.log)
  path: ""
  # Log rotation settings
  rotation:
    max_size: 10MB
    max_age: 30       # days
    max_backups: 5
    daily: true
  # Per-component log levels
  components:
    engine: info
    journal: info
    safety: info
    trash: info
`, DefaultMaxRetries, DefaultRetryDelay, DefaultTimeout, DefaultConcurrency,
		DefaultChunkSize, DefaultHistoryMax, DefaultJournalRetentionDays,
		DefaultTrashRetentionDays)

	if err := os.WriteFile(configPath, []byte(defaultConfig), 0o644); err != nil {
		return fmt.Errorf("failed to write default config: %w", err)
	}
	return nil
}

// ExpandPath expands ~ in a path to the user's home directory.
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, path[1:]), nil
}

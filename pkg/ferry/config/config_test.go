package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	// Use a temp directory that doesn't have a config file
	tempDir := t.TempDir()
	t.Setenv("HOME", tempDir)
	t.Setenv("XDG_CONFIG_HOME", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Retry.MaxRetries != DefaultMaxRetries {
		t.Errorf("Retry.MaxRetries = %d, want %d", cfg.Retry.MaxRetries, DefaultMaxRetries)
	}

	if cfg.Retry.Delay != DefaultRetryDelay {
		t.Errorf("Retry.Delay = %v, want %v", cfg.Retry.Delay, DefaultRetryDelay)
	}

	if cfg.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", cfg.Timeout, DefaultTimeout)
	}

	if cfg.VerifyChecksum {
		t.Error("VerifyChecksum = true, want false")
	}

	if !cfg.PreserveAttrs {
		t.Error("PreserveAttrs = false, want true")
	}

	if cfg.Concurrency != DefaultConcurrency {
		t.Errorf("Concurrency = %d, want %d", cfg.Concurrency, DefaultConcurrency)
	}

	if cfg.ChunkSize != DefaultChunkSize {
		t.Errorf("ChunkSize = %d, want %d", cfg.ChunkSize, DefaultChunkSize)
	}

	if !cfg.Safety.GitCheck {
		t.Error("Safety.GitCheck = false, want true")
	}

	if len(cfg.Safety.SandboxRoots) != 0 {
		t.Errorf("len(Safety.SandboxRoots) = %d, want 0", len(cfg.Safety.SandboxRoots))
	}

	if cfg.Safety.AllowSymlinks {
		t.Error("Safety.AllowSymlinks = true, want false")
	}

	if cfg.HistoryMax != DefaultHistoryMax {
		t.Errorf("HistoryMax = %d, want %d", cfg.HistoryMax, DefaultHistoryMax)
	}

	if cfg.JournalRetainDays != DefaultJournalRetentionDays {
		t.Errorf("JournalRetainDays = %d, want %d", cfg.JournalRetainDays, DefaultJournalRetentionDays)
	}

	if cfg.TrashRetainDays != DefaultTrashRetentionDays {
		t.Errorf("TrashRetainDays = %d, want %d", cfg.TrashRetainDays, DefaultTrashRetentionDays)
	}
}

func TestLoad_FromFile(t *testing.T) {
	tempDir := t.TempDir()
	configDir := filepath.Join(tempDir, ".config", "ferry")
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}

	configContent := `
retry:
  max_retries: 7
  delay: 250ms
timeout: 2m
verify_checksum: true
preserve_attrs: false
concurrency: 4
chunk_size: 1024
safety:
  git_check: false
  allow_symlinks: true
history_max: 50
journal_retention_days: 7
trash_retention_days: 14
`
	configPath := filepath.Join(configDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(configContent), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	t.Setenv("HOME", tempDir)
	t.Setenv("XDG_CONFIG_HOME", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Retry.MaxRetries != 7 {
		t.Errorf("Retry.MaxRetries = %d, want %d", cfg.Retry.MaxRetries, 7)
	}

	if cfg.Retry.Delay != 250*time.Millisecond {
		t.Errorf("Retry.Delay = %v, want %v", cfg.Retry.Delay, 250*time.Millisecond)
	}

	if cfg.Timeout != 2*time.Minute {
		t.Errorf("Timeout = %v, want %v", cfg.Timeout, 2*time.Minute)
	}

	if !cfg.VerifyChecksum {
		t.Error("VerifyChecksum = false, want true")
	}

	if cfg.PreserveAttrs {
		t.Error("PreserveAttrs = true, want false")
	}

	if cfg.Concurrency != 4 {
		t.Errorf("Concurrency = %d, want %d", cfg.Concurrency, 4)
	}

	if cfg.ChunkSize != 1024 {
		t.Errorf("ChunkSize = %d, want %d", cfg.ChunkSize, 1024)
	}

	if cfg.Safety.GitCheck {
		t.Error("Safety.GitCheck = true, want false")
	}

	if !cfg.Safety.AllowSymlinks {
		t.Error("Safety.AllowSymlinks = false, want true")
	}

	if cfg.HistoryMax != 50 {
		t.Errorf("HistoryMax = %d, want %d", cfg.HistoryMax, 50)
	}

	if cfg.JournalRetainDays != 7 {
		t.Errorf("JournalRetainDays = %d, want %d", cfg.JournalRetainDays, 7)
	}

	if cfg.TrashRetainDays != 14 {
		t.Errorf("TrashRetainDays = %d, want %d", cfg.TrashRetainDays, 14)
	}
}

func TestLoad_XDGConfigHome(t *testing.T) {
	tempDir := t.TempDir()
	xdgConfigDir := filepath.Join(tempDir, "xdg-config", "ferry")
	if err := os.MkdirAll(xdgConfigDir, 0o755); err != nil {
		t.Fatalf("failed to create XDG config dir: %v", err)
	}

	configContent := `concurrency: 16`
	configPath := filepath.Join(xdgConfigDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(configContent), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	t.Setenv("HOME", tempDir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tempDir, "xdg-config"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Concurrency != 16 {
		t.Errorf("Concurrency = %d, want %d", cfg.Concurrency, 16)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv("HOME", tempDir)
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("FERRY_CONCURRENCY", "12")
	t.Setenv("FERRY_VERIFY_CHECKSUM", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Concurrency != 12 {
		t.Errorf("Concurrency = %d, want %d", cfg.Concurrency, 12)
	}

	if !cfg.VerifyChecksum {
		t.Error("VerifyChecksum = false, want true")
	}
}

func TestLoad_SandboxRootExpansion(t *testing.T) {
	tempDir := t.TempDir()
	configDir := filepath.Join(tempDir, ".config", "ferry")
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}

	configContent := `
safety:
  sandbox_roots:
    - ~/projects
    - /srv/data
`
	configPath := filepath.Join(configDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(configContent), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	t.Setenv("HOME", tempDir)
	t.Setenv("XDG_CONFIG_HOME", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want := []string{filepath.Join(tempDir, "projects"), "/srv/data"}
	if len(cfg.Safety.SandboxRoots) != len(want) {
		t.Fatalf("len(Safety.SandboxRoots) = %d, want %d", len(cfg.Safety.SandboxRoots), len(want))
	}
	for i, root := range want {
		if cfg.Safety.SandboxRoots[i] != root {
			t.Errorf("Safety.SandboxRoots[%d] = %q, want %q", i, cfg.Safety.SandboxRoots[i], root)
		}
	}
}

func TestLoad_LoggingDefaults(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv("HOME", tempDir)
	t.Setenv("XDG_CONFIG_HOME", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "info")
	}

	if cfg.Logging.Path != "" {
		t.Errorf("Logging.Path = %q, want empty string", cfg.Logging.Path)
	}

	if cfg.Logging.Rotation.MaxSize != "10MB" {
		t.Errorf("Logging.Rotation.MaxSize = %q, want %q", cfg.Logging.Rotation.MaxSize, "10MB")
	}

	if cfg.Logging.Rotation.MaxAge != 30 {
		t.Errorf("Logging.Rotation.MaxAge = %d, want %d", cfg.Logging.Rotation.MaxAge, 30)
	}

	if cfg.Logging.Rotation.MaxBackups != 5 {
		t.Errorf("Logging.Rotation.MaxBackups = %d, want %d", cfg.Logging.Rotation.MaxBackups, 5)
	}

	if !cfg.Logging.Rotation.Daily {
		t.Error("Logging.Rotation.Daily = false, want true")
	}

	expectedComponents := map[string]string{
		"engine":  "info",
		"journal": "info",
		"safety":  "info",
		"trash":   "info",
	}
	for component, level := range expectedComponents {
		if cfg.Logging.Components[component] != level {
			t.Errorf("Logging.Components[%q] = %q, want %q", component, cfg.Logging.Components[component], level)
		}
	}
}

func TestConfigDir(t *testing.T) {
	t.Run("uses XDG_CONFIG_HOME when set", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "/custom/config")

		dir, err := ConfigDir()
		if err != nil {
			t.Fatalf("ConfigDir() error = %v", err)
		}

		expected := "/custom/config/ferry"
		if dir != expected {
			t.Errorf("ConfigDir() = %q, want %q", dir, expected)
		}
	})

	t.Run("uses HOME/.config when XDG_CONFIG_HOME not set", func(t *testing.T) {
		tempDir := t.TempDir()
		t.Setenv("HOME", tempDir)
		t.Setenv("XDG_CONFIG_HOME", "")

		dir, err := ConfigDir()
		if err != nil {
			t.Fatalf("ConfigDir() error = %v", err)
		}

		expected := filepath.Join(tempDir, ".config", "ferry")
		if dir != expected {
			t.Errorf("ConfigDir() = %q, want %q", dir, expected)
		}
	})
}

func TestEnsureConfigDir(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv("HOME", tempDir)
	t.Setenv("XDG_CONFIG_HOME", "")

	if err := EnsureConfigDir(); err != nil {
		t.Fatalf("EnsureConfigDir() error = %v", err)
	}

	expectedDir := filepath.Join(tempDir, ".config", "ferry")
	info, err := os.Stat(expectedDir)
	if err != nil {
		t.Fatalf("os.Stat(%q) error = %v", expectedDir, err)
	}

	if !info.IsDir() {
		t.Errorf("%q is not a directory", expectedDir)
	}
}

func TestWriteDefault(t *testing.T) {
	t.Run("creates default config file", func(t *testing.T) {
		tempDir := t.TempDir()
		t.Setenv("HOME", tempDir)
		t.Setenv("XDG_CONFIG_HOME", "")

		if err := WriteDefault(); err != nil {
			t.Fatalf("WriteDefault() error = %v", err)
		}

		configPath := filepath.Join(tempDir, ".config", "ferry", "config.yaml")
		if _, err := os.Stat(configPath); err != nil {
			t.Fatalf("config file not created: %v", err)
		}

		// The generated file must itself be loadable.
		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() after WriteDefault() error = %v", err)
		}
		if cfg.Retry.MaxRetries != DefaultMaxRetries {
			t.Errorf("Retry.MaxRetries = %d, want %d", cfg.Retry.MaxRetries, DefaultMaxRetries)
		}
	})

	t.Run("does not overwrite existing config", func(t *testing.T) {
		tempDir := t.TempDir()
		t.Setenv("HOME", tempDir)
		t.Setenv("XDG_CONFIG_HOME", "")

		configDir := filepath.Join(tempDir, ".config", "ferry")
		if err := os.MkdirAll(configDir, 0o755); err != nil {
			t.Fatalf("failed to create config dir: %v", err)
		}

		configPath := filepath.Join(configDir, "config.yaml")
		existingContent := "# existing config\nconcurrency: 3"
		if err := os.WriteFile(configPath, []byte(existingContent), 0o644); err != nil {
			t.Fatalf("failed to write existing config: %v", err)
		}

		if err := WriteDefault(); err != nil {
			t.Fatalf("WriteDefault() error = %v", err)
		}

		content, err := os.ReadFile(configPath)
		if err != nil {
			t.Fatalf("failed to read config file: %v", err)
		}

		if string(content) != existingContent {
			t.Errorf("config file was overwritten: got %q, want %q", string(content), existingContent)
		}
	})
}

func TestExpandPath(t *testing.T) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		t.Fatalf("failed to get home dir: %v", err)
	}

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{
			name:  "expands tilde",
			input: "~/work/ferry",
			want:  filepath.Join(homeDir, "work/ferry"),
		},
		{
			name:  "leaves absolute path unchanged",
			input: "/etc/ferry",
			want:  "/etc/ferry",
		},
		{
			name:  "leaves relative path unchanged",
			input: "work/ferry",
			want:  "work/ferry",
		},
		{
			name:  "handles tilde only",
			input: "~",
			want:  homeDir,
		},
		{
			name:  "handles tilde with slash",
			input: "~/",
			want:  homeDir,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExpandPath(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ExpandPath(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("ExpandPath(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestDefaultConstants(t *testing.T) {
	tests := []struct {
		name     string
		got      interface{}
		expected interface{}
	}{
		{"DefaultMaxRetries", DefaultMaxRetries, 3},
		{"DefaultRetryDelay", DefaultRetryDelay, 100 * time.Millisecond},
		{"DefaultTimeout", DefaultTimeout, 30 * time.Second},
		{"DefaultConcurrency", DefaultConcurrency, 0},
		{"DefaultChunkSize", DefaultChunkSize, 64 * 1024},
		{"DefaultHistoryMax", DefaultHistoryMax, 1000},
		{"DefaultJournalRetentionDays", DefaultJournalRetentionDays, 30},
		{"DefaultTrashRetentionDays", DefaultTrashRetentionDays, 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.expected)
			}
		})
	}
}

func TestDataDir(t *testing.T) {
	// adrg/xdg caches values at init time, so test the structure only
	dir := DataDir()
	if !filepath.IsAbs(dir) {
		t.Errorf("DataDir() = %q, want absolute path", dir)
	}
	if filepath.Base(dir) != "ferry" {
		t.Errorf("DataDir() = %q, want path ending in 'ferry'", dir)
	}
}

func TestStateDir(t *testing.T) {
	dir := StateDir()
	if !filepath.IsAbs(dir) {
		t.Errorf("StateDir() = %q, want absolute path", dir)
	}
	if filepath.Base(dir) != "ferry" {
		t.Errorf("StateDir() = %q, want path ending in 'ferry'", dir)
	}
}

func TestCacheDir(t *testing.T) {
	dir := CacheDir()
	if !filepath.IsAbs(dir) {
		t.Errorf("CacheDir() = %q, want absolute path", dir)
	}
	if filepath.Base(dir) != "ferry" {
		t.Errorf("CacheDir() = %q, want path ending in 'ferry'", dir)
	}
}

func TestDefaultStatePaths(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		base    string
		wantDir string
	}{
		{"journal", DefaultJournalDir(), "journal", StateDir()},
		{"history", DefaultHistoryPath(), "history.json", StateDir()},
		{"lock", DefaultLockPath(), "ferry.lock", StateDir()},
		{"log", DefaultLogPath(), "ferry.log", StateDir()},
		{"trash", DefaultTrashDir(), "trash", DataDir()},
		{"digest cache", DefaultDigestCacheDir(), "digests", CacheDir()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !filepath.IsAbs(tt.path) {
				t.Errorf("path = %q, want absolute", tt.path)
			}
			if filepath.Base(tt.path) != tt.base {
				t.Errorf("path = %q, want base %q", tt.path, tt.base)
			}
			if filepath.Dir(tt.path) != tt.wantDir {
				t.Errorf("path dir = %q, want %q", filepath.Dir(tt.path), tt.wantDir)
			}
		})
	}
}

func TestEnsureStateDir(t *testing.T) {
	if err := EnsureStateDir(); err != nil {
		t.Fatalf("EnsureStateDir() error = %v", err)
	}

	info, err := os.Stat(StateDir())
	if err != nil {
		t.Fatalf("os.Stat(%q) error = %v", StateDir(), err)
	}

	if !info.IsDir() {
		t.Errorf("%q is not a directory", StateDir())
	}
}

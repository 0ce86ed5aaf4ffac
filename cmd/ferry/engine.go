package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/viper"

	"github.com/jamesainslie/ferry/pkg/ferry/config"
	"github.com/jamesainslie/ferry/pkg/ferry/engine"
	"github.com/jamesainslie/ferry/pkg/ferry/output"
	"github.com/jamesainslie/ferry/pkg/ferry/safety"
	"github.com/jamesainslie/ferry/pkg/ferry/types"
)

// buildManager constructs the engine from the resolved configuration.
// Construction replays any dangling journal records from a previous crash
// before the new operation is allowed to start.
func buildManager() (*engine.Manager, error) {
	if err := config.EnsureDataDir(); err != nil {
		return nil, err
	}
	if err := config.EnsureStateDir(); err != nil {
		return nil, err
	}
	if err := config.EnsureCacheDir(); err != nil {
		return nil, err
	}

	roots := viper.GetStringSlice("safety.sandbox_roots")
	for i, root := range roots {
		expanded, err := config.ExpandPath(root)
		if err != nil {
			return nil, err
		}
		roots[i] = expanded
	}

	cfg := engine.Config{
		MaxRetries:       viper.GetInt("retry.max_retries"),
		RetryDelay:       viper.GetDuration("retry.delay"),
		OperationTimeout: viper.GetDuration("timeout"),
		VerifyChecksum:   viper.GetBool("verify_checksum"),
		PreserveAttrs:    viper.GetBool("preserve_attrs"),
		SandboxRoots:     roots,
		AllowSymlinks:    viper.GetBool("safety.allow_symlinks"),
		AutoBackup:       viper.GetBool("auto_backup"),
		Concurrency:      viper.GetInt("concurrency"),
		ChunkSize:        viper.GetInt("chunk_size"),
		TrashDir:         config.DefaultTrashDir(),
		JournalDir:       config.DefaultJournalDir(),
		HistoryPath:      config.DefaultHistoryPath(),
		HistoryMax:       viper.GetInt("history_max"),
		LockPath:         config.DefaultLockPath(),
		DigestCacheDir:   config.DefaultDigestCacheDir(),
		Confirmer:        buildConfirmer(),
		DryRun:           viper.GetBool("dry_run"),
	}
	if viper.GetBool("safety.git_check") {
		cfg.GitStatus = &safety.GitCLI{}
	}

	return engine.New(cfg)
}

// buildConfirmer picks the confirmation strategy: acknowledgement flags
// answer without asking, an interactive terminal prompts, and anything
// else refuses risky work.
func buildConfirmer() engine.Confirmer {
	yes := viper.GetBool("assume_yes")
	force := viper.GetBool("force")
	phrase := viper.GetString("confirm")

	if yes || force || phrase != "" {
		return &engine.StaticConfirmer{
			ApproveBasic:  yes || force,
			ApproveStrong: force,
			Phrase:        phrase,
		}
	}
	if stdinIsTerminal() {
		return &promptConfirmer{}
	}
	return &engine.StaticConfirmer{}
}

// stdinIsTerminal reports whether stdin is attached to a terminal.
func stdinIsTerminal() bool {
	info, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// operationContext returns a context cancelled by SIGINT or SIGTERM.
// Cancellation mid-batch fails the targets not yet started; in-flight
// targets finish so no rename is ever interrupted.
func operationContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// renderManifest formats the batch report to stdout and converts partial
// failure into a command error.
func renderManifest(m *types.Manifest) error {
	if !getQuiet() || !m.OK() {
		name := viper.GetString("output")
		if viper.GetBool("json") {
			name = "json"
		}
		if name == "" {
			name = "pretty"
		}

		formatter, err := output.Get(name)
		if err != nil {
			return fmt.Errorf("unknown output format %q (available: %v)", name, output.Available())
		}

		var buf bytes.Buffer
		if err := formatter.Format(&buf, output.FromManifest(m)); err != nil {
			return fmt.Errorf("format output: %w", err)
		}
		fmt.Print(buf.String())
	}

	if failed := m.Failed(); failed > 0 {
		return fmt.Errorf("%d of %d targets failed", failed, m.Total())
	}
	return nil
}

// expandArgs expands ~ in every path argument.
func expandArgs(args []string) ([]string, error) {
	out := make([]string, len(args))
	for i, arg := range args {
		expanded, err := config.ExpandPath(arg)
		if err != nil {
			return nil, err
		}
		out[i] = expanded
	}
	return out, nil
}

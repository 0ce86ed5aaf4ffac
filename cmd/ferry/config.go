package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jamesainslie/ferry/pkg/ferry/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `Manage ferry configuration settings.

Configuration is loaded from:
  1. $XDG_CONFIG_HOME/ferry/config.yaml (if set)
  2. ~/.config/ferry/config.yaml

Environment variables can override config file settings using the FERRY_ prefix:
  FERRY_CONCURRENCY=8
  FERRY_VERIFY_CHECKSUM=true
  FERRY_SAFETY_SANDBOX_ROOTS=/home/me,/tmp`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the current configuration settings from all sources.`,
	RunE:  runConfigShow,
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit configuration file",
	Long: `Open the configuration file in your default editor.

The editor is determined by:
  1. $VISUAL environment variable
  2. $EDITOR environment variable
  3. Falls back to 'vi'

If the config file doesn't exist, a default one will be created first.`,
	RunE: runConfigEdit,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create default configuration file",
	Long:  `Create a default configuration file if one doesn't exist.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show configuration file path",
	Long:  `Display the path to the configuration file.`,
	RunE:  runConfigPath,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEditCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

// runConfigShow displays the current configuration.
func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if configFile := viper.ConfigFileUsed(); configFile != "" {
		fmt.Printf("Config file: %s\n\n", configFile)
	} else {
		fmt.Println("Config file: (using defaults, no file found)")
		fmt.Println()
	}

	fmt.Println("Current Configuration:")
	fmt.Println("----------------------")
	fmt.Printf("retry.max_retries:       %d\n", cfg.Retry.MaxRetries)
	fmt.Printf("retry.delay:             %s\n", cfg.Retry.Delay)
	fmt.Printf("timeout:                 %s\n", cfg.Timeout)
	fmt.Printf("verify_checksum:         %t\n", cfg.VerifyChecksum)
	fmt.Printf("preserve_attrs:          %t\n", cfg.PreserveAttrs)
	fmt.Printf("auto_backup:             %t\n", cfg.AutoBackup)
	fmt.Printf("concurrency:             %d\n", cfg.Concurrency)
	fmt.Printf("chunk_size:              %d\n", cfg.ChunkSize)
	fmt.Printf("safety.git_check:        %t\n", cfg.Safety.GitCheck)
	fmt.Printf("safety.sandbox_roots:    %v\n", cfg.Safety.SandboxRoots)
	fmt.Printf("safety.allow_symlinks:   %t\n", cfg.Safety.AllowSymlinks)
	fmt.Printf("history_max:             %d\n", cfg.HistoryMax)
	fmt.Printf("journal_retention_days:  %d\n", cfg.JournalRetainDays)
	fmt.Printf("trash_retention_days:    %d\n", cfg.TrashRetainDays)
	fmt.Printf("logging.level:           %s\n", cfg.Logging.Level)

	fmt.Println("\nEnvironment Overrides:")
	fmt.Println("----------------------")
	envVars := []string{
		"FERRY_RETRY_MAX_RETRIES",
		"FERRY_TIMEOUT",
		"FERRY_VERIFY_CHECKSUM",
		"FERRY_PRESERVE_ATTRS",
		"FERRY_AUTO_BACKUP",
		"FERRY_CONCURRENCY",
		"FERRY_SAFETY_GIT_CHECK",
		"FERRY_SAFETY_SANDBOX_ROOTS",
		"FERRY_HISTORY_MAX",
		"FERRY_LOGGING_LEVEL",
	}

	anyOverrides := false
	for _, name := range envVars {
		if val := os.Getenv(name); val != "" {
			fmt.Printf("%s=%s\n", name, val)
			anyOverrides = true
		}
	}
	if !anyOverrides {
		fmt.Println("(none)")
	}

	return nil
}

// runConfigEdit opens the config file in an editor.
func runConfigEdit(cmd *cobra.Command, args []string) error {
	if err := config.WriteDefault(); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	configDir, err := config.ConfigDir()
	if err != nil {
		return fmt.Errorf("failed to get config directory: %w", err)
	}
	configPath := filepath.Join(configDir, "config.yaml")

	editor := os.Getenv("VISUAL")
	if editor == "" {
		editor = os.Getenv("EDITOR")
	}
	if editor == "" {
		editor = "vi"
	}

	printVerbose("Opening %s with %s", configPath, editor)

	editorCmd := exec.Command(editor, configPath)
	editorCmd.Stdin = os.Stdin
	editorCmd.Stdout = os.Stdout
	editorCmd.Stderr = os.Stderr

	if err := editorCmd.Run(); err != nil {
		return fmt.Errorf("editor command failed: %w", err)
	}

	return nil
}

// runConfigInit creates a default config file.
func runConfigInit(cmd *cobra.Command, args []string) error {
	configDir, err := config.ConfigDir()
	if err != nil {
		return fmt.Errorf("failed to get config directory: %w", err)
	}
	configPath := filepath.Join(configDir, "config.yaml")

	if _, err := os.Stat(configPath); err == nil {
		printInfo("Config file already exists: %s", configPath)
		printInfo("Use 'ferry config edit' to modify it.")
		return nil
	}

	if err := config.WriteDefault(); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	printInfo("Created default config file: %s", configPath)
	return nil
}

// runConfigPath shows the config file path.
func runConfigPath(cmd *cobra.Command, args []string) error {
	configDir, err := config.ConfigDir()
	if err != nil {
		return fmt.Errorf("failed to get config directory: %w", err)
	}
	configPath := filepath.Join(configDir, "config.yaml")

	fmt.Println(configPath)

	if _, err := os.Stat(configPath); err == nil {
		printVerbose("File exists")
	} else if os.IsNotExist(err) {
		printVerbose("File does not exist (will use defaults)")
	}

	return nil
}

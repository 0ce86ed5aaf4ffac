package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jamesainslie/ferry/pkg/ferry/config"
	"github.com/jamesainslie/ferry/pkg/ferry/logging"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "ferry",
		Short: "Transactional file operations with crash recovery",
		Long: `Ferry moves, copies, and deletes files the way a database would:
every mutation is journaled before it runs, writes land atomically, and
anything risky is scored and confirmed before a single byte changes.

Examples:
  ferry cp src.txt dst.txt           # Atomic copy
  ferry mv *.log archive/ --verify   # Move with checksum verification
  ferry rm old/ -r --force           # Recursive delete (HIGH risk)
  ferry rm notes.txt --soft          # Move to trash instead
  ferry trash restore 'notes*'       # Bring it back
  ferry sync ~/docs /backup/docs     # Mirror a tree
  ferry organize ~/Downloads         # Sort files by type
  ferry history                      # Audit past operations`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return bootstrapLogging()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logging.Close()
		},
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: ~/.config/ferry/config.yaml)")
	pf.BoolP("dry-run", "d", false, "plan the operation without touching anything")
	pf.BoolP("yes", "y", false, "acknowledge MEDIUM-risk operations")
	pf.BoolP("force", "f", false, "acknowledge HIGH-risk operations")
	pf.String("confirm", "", "acknowledgement phrase for CRITICAL-risk operations")
	pf.StringP("output", "o", "pretty", "output format (pretty, plain, json, jsonl, yaml, paths, null)")
	pf.BoolP("json", "j", false, "shorthand for --output json")
	pf.BoolP("quiet", "q", false, "suppress the report for successful operations")
	pf.BoolP("verbose", "v", false, "debug logging to stderr")
	pf.IntP("workers", "w", 0, "worker pool size for bulk operations (0=auto)")
	pf.Bool("verify", false, "verify content digests after every copy or write")
	pf.Bool("backup", false, "copy an existing destination aside before overwriting")
	pf.Int("retries", config.DefaultMaxRetries, "attempts for locked files before giving up")
	pf.Duration("timeout", config.DefaultTimeout, "per-target operation timeout (0 disables)")
	pf.StringSlice("sandbox", nil, "restrict mutations to these directory prefixes")

	_ = viper.BindPFlag("dry_run", pf.Lookup("dry-run"))
	_ = viper.BindPFlag("assume_yes", pf.Lookup("yes"))
	_ = viper.BindPFlag("force", pf.Lookup("force"))
	_ = viper.BindPFlag("confirm", pf.Lookup("confirm"))
	_ = viper.BindPFlag("output", pf.Lookup("output"))
	_ = viper.BindPFlag("json", pf.Lookup("json"))
	_ = viper.BindPFlag("quiet", pf.Lookup("quiet"))
	_ = viper.BindPFlag("verbose", pf.Lookup("verbose"))
	_ = viper.BindPFlag("concurrency", pf.Lookup("workers"))
	_ = viper.BindPFlag("verify_checksum", pf.Lookup("verify"))
	_ = viper.BindPFlag("auto_backup", pf.Lookup("backup"))
	_ = viper.BindPFlag("retry.max_retries", pf.Lookup("retries"))
	_ = viper.BindPFlag("timeout", pf.Lookup("timeout"))
	_ = viper.BindPFlag("safety.sandbox_roots", pf.Lookup("sandbox"))
}

// initConfig reads in config file and environment variables.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")

		if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
			viper.AddConfigPath(filepath.Join(xdgConfigHome, "ferry"))
		}
		homeDir, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(homeDir, ".config", "ferry"))
		}
	}

	viper.SetEnvPrefix("FERRY")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	config.SetDefaults(viper.GetViper())

	// Read config file (ignore if not found)
	_ = viper.ReadInConfig()
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// getVerbose returns true if verbose mode is enabled.
func getVerbose() bool {
	return viper.GetBool("verbose")
}

// getQuiet returns true if quiet mode is enabled.
func getQuiet() bool {
	return viper.GetBool("quiet")
}

// printInfo prints a message if quiet mode is not enabled.
func printInfo(format string, args ...interface{}) {
	if !getQuiet() {
		fmt.Printf(format+"\n", args...)
	}
}

// printVerbose prints a message only in verbose mode.
func printVerbose(format string, args ...interface{}) {
	if getVerbose() {
		fmt.Printf(format+"\n", args...)
	}
}

// printError prints an error message to stderr.
func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}

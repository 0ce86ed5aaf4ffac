package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

var chmodCmd = &cobra.Command{
	Use:   "chmod <mode> <path>...",
	Short: "Change permission bits",
	Long: `Set the permission bits on each path. The mode is octal, e.g. 644
or 0755.

Permission changes can lock you out of your own files, so they always
rate HIGH risk: pass --force or confirm interactively.

Examples:
  ferry chmod 600 id_rsa --force
  ferry chmod 755 deploy.sh --force`,
	Args: cobra.MinimumNArgs(2),
	RunE: runChmod,
}

func init() {
	rootCmd.AddCommand(chmodCmd)
}

func runChmod(cmd *cobra.Command, args []string) error {
	mode, err := strconv.ParseUint(args[0], 8, 32)
	if err != nil {
		return fmt.Errorf("invalid mode %q: must be octal like 644", args[0])
	}

	paths, err := expandArgs(args[1:])
	if err != nil {
		return err
	}
	m, err := buildManager()
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()

	ctx, stop := operationContext()
	defer stop()

	manifest, err := m.Chmod(ctx, os.FileMode(mode), paths)
	if err != nil {
		return err
	}
	return renderManifest(manifest)
}

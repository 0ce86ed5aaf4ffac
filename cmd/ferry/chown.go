package main

import (
	"strings"

	"github.com/spf13/cobra"
)

var chownCmd = &cobra.Command{
	Use:   "chown <owner>[:<group>] <path>...",
	Short: "Change ownership",
	Long: `Change the owner and optionally the group of each path. Names and
numeric ids both work; a leading colon changes only the group.

Ownership changes rate HIGH risk: pass --force or confirm interactively.

Examples:
  ferry chown deploy app/ --force
  ferry chown www-data:www-data public/ --force
  ferry chown :staff shared.db --force`,
	Args: cobra.MinimumNArgs(2),
	RunE: runChown,
}

func init() {
	rootCmd.AddCommand(chownCmd)
}

func runChown(cmd *cobra.Command, args []string) error {
	owner, group := splitOwner(args[0])

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

	manifest, err := m.Chown(ctx, owner, group, paths)
	if err != nil {
		return err
	}
	return renderManifest(manifest)
}

// splitOwner parses chown's owner[:group] spec.
func splitOwner(spec string) (owner, group string) {
	if i := strings.IndexByte(spec, ':'); i >= 0 {
		return spec[:i], spec[i+1:]
	}
	return spec, ""
}

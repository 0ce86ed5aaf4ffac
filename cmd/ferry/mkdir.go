package main

import (
	"github.com/spf13/cobra"
)

var mkdirParents bool

var mkdirCmd = &cobra.Command{
	Use:   "mkdir <dir>...",
	Short: "Create directories",
	Long: `Create directories. With --parents, missing ancestors are created
and an existing directory is not an error.

Examples:
  ferry mkdir build
  ferry mkdir -p src/internal/app`,
	Args: cobra.MinimumNArgs(1),
	RunE: runMkdir,
}

func init() {
	mkdirCmd.Flags().BoolVarP(&mkdirParents, "parents", "p", false, "create missing ancestors; existing directories are fine")
	rootCmd.AddCommand(mkdirCmd)
}

func runMkdir(cmd *cobra.Command, args []string) error {
	paths, err := expandArgs(args)
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

	manifest, err := m.Mkdir(ctx, paths, mkdirParents)
	if err != nil {
		return err
	}
	return renderManifest(manifest)
}

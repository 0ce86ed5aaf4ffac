package main

import (
	"github.com/spf13/cobra"
)

var rmdirCmd = &cobra.Command{
	Use:   "rmdir <dir>...",
	Short: "Remove empty directories",
	Long: `Remove directories that are already empty. A directory with
contents fails its target; use 'ferry rm -r' for trees.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRmdir,
}

func init() {
	rootCmd.AddCommand(rmdirCmd)
}

func runRmdir(cmd *cobra.Command, args []string) error {
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

	manifest, err := m.Rmdir(ctx, paths)
	if err != nil {
		return err
	}
	return renderManifest(manifest)
}

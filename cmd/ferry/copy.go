package main

import (
	"github.com/spf13/cobra"
)

var cpCmd = &cobra.Command{
	Use:     "cp <source>... <dest>",
	Aliases: []string{"copy"},
	Short:   "Copy files and directories",
	Long: `Copy sources to a destination. Directories copy recursively.

Each file is staged next to its destination, fsynced, and renamed into
place, so a crash mid-copy never leaves a half-written destination
visible. With --verify the landed bytes are re-hashed against the source
before the copy counts as done.

Examples:
  ferry cp report.pdf ~/backup/
  ferry cp -w 8 dataset/ /mnt/fast/dataset/
  ferry cp secrets.env vault/ --verify --backup`,
	Args: cobra.MinimumNArgs(2),
	RunE: runCopy,
}

func init() {
	rootCmd.AddCommand(cpCmd)
}

func runCopy(cmd *cobra.Command, args []string) error {
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

	manifest, err := m.Copy(ctx, paths[:len(paths)-1], paths[len(paths)-1])
	if err != nil {
		return err
	}
	return renderManifest(manifest)
}

package main

import (
	"github.com/spf13/cobra"
)

var mvCmd = &cobra.Command{
	Use:     "mv <source>... <dest>",
	Aliases: []string{"move"},
	Short:   "Move files and directories",
	Long: `Move sources to a destination.

A single source may be renamed; multiple sources require an existing
directory destination and land under their own base names. Moves on one
filesystem are a single atomic rename; cross-device moves copy to a
temporary file, fsync, rename, and only then remove the source.

Examples:
  ferry mv draft.txt final.txt
  ferry mv *.log /var/archive/
  ferry mv big.iso /mnt/usb/ --verify`,
	Args: cobra.MinimumNArgs(2),
	RunE: runMove,
}

func init() {
	rootCmd.AddCommand(mvCmd)
}

func runMove(cmd *cobra.Command, args []string) error {
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

	manifest, err := m.Move(ctx, paths[:len(paths)-1], paths[len(paths)-1])
	if err != nil {
		return err
	}
	return renderManifest(manifest)
}

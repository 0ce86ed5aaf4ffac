package main

import (
	"github.com/spf13/cobra"
)

var touchCmd = &cobra.Command{
	Use:   "touch <path>...",
	Short: "Update modification times, creating missing files",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runTouch,
}

func init() {
	rootCmd.AddCommand(touchCmd)
}

func runTouch(cmd *cobra.Command, args []string) error {
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

	manifest, err := m.Touch(ctx, paths)
	if err != nil {
		return err
	}
	return renderManifest(manifest)
}

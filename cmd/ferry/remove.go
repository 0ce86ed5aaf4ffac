package main

import (
	"github.com/spf13/cobra"

	"github.com/jamesainslie/ferry/pkg/ferry/engine"
)

var (
	rmSoft      bool
	rmRecursive bool
)

var rmCmd = &cobra.Command{
	Use:     "rm <path>...",
	Aliases: []string{"remove", "delete"},
	Short:   "Delete files and directories",
	Long: `Delete paths permanently, or move them to the trash with --soft.

Permanent deletion of a non-empty directory requires --recursive.
Deleting directories with contents rates HIGH risk and needs --force (or
an interactive confirmation); permanently deleting sensitive files such
as keys or .env files rates CRITICAL and needs --confirm yes-i-am-sure.

Examples:
  ferry rm scratch.txt
  ferry rm old-builds/ -r --force
  ferry rm notes.txt --soft          # restorable via 'ferry trash restore'`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRemove,
}

func init() {
	rmCmd.Flags().BoolVar(&rmSoft, "soft", false, "move to trash instead of deleting")
	rmCmd.Flags().BoolVarP(&rmRecursive, "recursive", "r", false, "permit removing non-empty directories")
	rootCmd.AddCommand(rmCmd)
}

func runRemove(cmd *cobra.Command, args []string) error {
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

	manifest, err := m.Delete(ctx, paths, engine.DeleteOpts{
		Soft:      rmSoft,
		Recursive: rmRecursive,
	})
	if err != nil {
		return err
	}
	return renderManifest(manifest)
}

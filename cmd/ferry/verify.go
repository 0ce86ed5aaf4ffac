package main

import (
	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <path>...",
	Short: "Check files against recorded checksums",
	Long: `Hash each file and compare it against the checksum recorded on a
previous run. Files seen for the first time are recorded rather than
verified; a later run flags any content drift.

Directories are walked recursively. Verification is read-only: it never
prompts and never touches the journal.

Examples:
  ferry verify ~/docs/report.pdf
  ferry verify ~/archive/`,
	Args: cobra.MinimumNArgs(1),
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
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

	manifest, err := m.Verify(ctx, paths)
	if err != nil {
		return err
	}
	return renderManifest(manifest)
}

package main

import (
	"github.com/spf13/cobra"
)

var linkSymbolic bool

var lnCmd = &cobra.Command{
	Use:     "ln <target> <link>",
	Aliases: []string{"link"},
	Short:   "Create hard or symbolic links",
	Long: `Create a link at <link> pointing to <target>.

An existing symlink at the link name is replaced; any other existing
file refuses. Symbolic links may point at targets that do not exist yet,
which the report flags as a warning.

Examples:
  ferry ln -s /data/current releases/v42
  ferry ln shared.db backup.db`,
	Args: cobra.ExactArgs(2),
	RunE: runLink,
}

func init() {
	lnCmd.Flags().BoolVarP(&linkSymbolic, "symbolic", "s", false, "create a symbolic link instead of a hard link")
	rootCmd.AddCommand(lnCmd)
}

func runLink(cmd *cobra.Command, args []string) error {
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

	manifest, err := m.Link(ctx, paths[0], paths[1], linkSymbolic)
	if err != nil {
		return err
	}
	return renderManifest(manifest)
}

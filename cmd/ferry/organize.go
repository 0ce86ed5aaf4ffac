package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/ferry/pkg/ferry/engine"
	"github.com/jamesainslie/ferry/pkg/ferry/filter"
)

var organizeGroups []string

var organizeCmd = &cobra.Command{
	Use:   "organize <dir>",
	Short: "Sort files into type-group directories",
	Long: fmt.Sprintf(`Classify the files directly under a directory by extension and move
each into a subdirectory named for its type group.

Hidden files, subdirectories, and files with no matching group stay
where they are. A file already present under the group name fails that
target rather than overwriting.

Known groups: %s

Examples:
  ferry organize ~/Downloads
  ferry organize ~/Downloads --groups image,video`, strings.Join(filter.Groups(), ", ")),
	Args: cobra.ExactArgs(1),
	RunE: runOrganize,
}

func init() {
	organizeCmd.Flags().StringSliceVar(&organizeGroups, "groups", nil, "restrict to these type groups")
	rootCmd.AddCommand(organizeCmd)
}

func runOrganize(cmd *cobra.Command, args []string) error {
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

	manifest, err := m.Organize(ctx, paths[0], engine.OrganizeOpts{Groups: organizeGroups})
	if err != nil {
		return err
	}
	if len(manifest.Results) == 0 {
		printInfo("Nothing to organize in %s.", paths[0])
		return nil
	}
	return renderManifest(manifest)
}

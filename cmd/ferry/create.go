package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var createContent string

var createCmd = &cobra.Command{
	Use:   "create <path>",
	Short: "Create a file atomically",
	Long: `Write a file so it is observed either complete or not at all.

Content comes from --content, or from stdin when it is piped in. The
write goes to a temporary file in the destination directory, is fsynced,
and renamed over the target.

Examples:
  ferry create todo.txt --content "ship it"
  generate-report | ferry create report.json
  ferry create config.yaml --content "$CONFIG" --backup`,
	Args: cobra.ExactArgs(1),
	RunE: runCreate,
}

func init() {
	createCmd.Flags().StringVar(&createContent, "content", "", "file content (default: read from stdin when piped)")
	rootCmd.AddCommand(createCmd)
}

func runCreate(cmd *cobra.Command, args []string) error {
	paths, err := expandArgs(args)
	if err != nil {
		return err
	}

	content := []byte(createContent)
	if createContent == "" && !stdinIsTerminal() {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		content = data
	}

	m, err := buildManager()
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()

	ctx, stop := operationContext()
	defer stop()

	manifest, err := m.Create(ctx, paths[0], content)
	if err != nil {
		return err
	}
	return renderManifest(manifest)
}

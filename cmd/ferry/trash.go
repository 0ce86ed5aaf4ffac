package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jamesainslie/ferry/pkg/ferry/types"
)

var trashCmd = &cobra.Command{
	Use:   "trash",
	Short: "Manage soft-deleted files",
	Long: `Inspect and manage files moved to the trash by 'ferry rm --soft'.

Trashed items keep their original path so they can be restored exactly
where they came from. Purge removes items past the retention window for
good.`,
	RunE: runTrashList,
}

var trashListCmd = &cobra.Command{
	Use:   "list [pattern]",
	Short: "List trashed items",
	Long: `List trash entries, newest first. An optional glob pattern filters
by the item's original base name.

Examples:
  ferry trash list
  ferry trash list '*.log'`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTrashList,
}

var trashRestoreCmd = &cobra.Command{
	Use:   "restore <pattern>",
	Short: "Restore a trashed item to its original location",
	Long: `Restore the most recently trashed item whose base name matches the
pattern. Restore never overwrites: if something already exists at the
original path, the restore fails and the item stays in the trash.

Examples:
  ferry trash restore notes.txt
  ferry trash restore '*.pdf'`,
	Args: cobra.ExactArgs(1),
	RunE: runTrashRestore,
}

var trashPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Permanently delete old trash entries",
	Long: `Permanently remove trash entries older than the retention window.
Purged items cannot be restored.

Examples:
  ferry trash purge
  ferry trash purge --older-than 7`,
	RunE: runTrashPurge,
}

var trashPurgeDays int

func init() {
	trashPurgeCmd.Flags().IntVar(&trashPurgeDays, "older-than", 0, "purge entries older than this many days (default: trash_retention_days)")

	trashCmd.AddCommand(trashListCmd)
	trashCmd.AddCommand(trashRestoreCmd)
	trashCmd.AddCommand(trashPurgeCmd)
	rootCmd.AddCommand(trashCmd)
}

// runTrashList prints matching trash entries, newest first.
func runTrashList(cmd *cobra.Command, args []string) error {
	pattern := ""
	if len(args) > 0 {
		pattern = args[0]
	}

	m, err := buildManager()
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()

	entries, err := m.TrashList(pattern)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		printInfo("Trash is empty.")
		return nil
	}

	fmt.Printf("\n%-20s  %-10s  %s\n", "TRASHED", "SIZE", "ORIGINAL PATH")
	fmt.Println(strings.Repeat("-", 80))
	for _, e := range entries {
		fmt.Printf("%-20s  %-10s  %s\n",
			e.TrashedAt.Local().Format("2006-01-02 15:04:05"),
			types.FormatSize(e.Size),
			e.OriginalPath,
		)
	}
	fmt.Println(strings.Repeat("-", 80))
	fmt.Printf("\n%d item(s) in trash. Use 'ferry trash restore <pattern>' to recover one.\n", len(entries))

	return nil
}

// runTrashRestore puts the newest matching entry back where it came from.
func runTrashRestore(cmd *cobra.Command, args []string) error {
	m, err := buildManager()
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()

	ctx, stop := operationContext()
	defer stop()

	manifest, err := m.TrashRestore(ctx, args[0])
	if err != nil {
		return err
	}
	return renderManifest(manifest)
}

// runTrashPurge permanently deletes entries past the retention window.
func runTrashPurge(cmd *cobra.Command, args []string) error {
	days := trashPurgeDays
	if days <= 0 {
		days = viper.GetInt("trash_retention_days")
	}

	m, err := buildManager()
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()

	ctx, stop := operationContext()
	defer stop()

	n, err := m.TrashPurge(ctx, time.Duration(days)*24*time.Hour)
	if err != nil {
		return err
	}
	if viper.GetBool("dry_run") {
		printInfo("Would purge %d item(s) older than %d days.", n, days)
		return nil
	}
	printInfo("Purged %d item(s) older than %d days.", n, days)
	return nil
}

package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Inspect the transaction journal",
	Long: `Inspect the write-ahead journal that makes operations crash-safe.

Each mutation is journaled before it runs and marked committed or
aborted when it finishes. Records still in the started state after a
crash are rolled back on the next run. Cleanup drops old finished
records; in-flight ones are always kept for recovery.`,
	RunE: runJournalList,
}

var journalListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent journal records",
	Args:  cobra.NoArgs,
	RunE:  runJournalList,
}

var journalCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Drop old finished journal records",
	Long: `Remove committed and aborted journal records older than the retention
window. Records still in the started state are kept for crash recovery
regardless of age.

Examples:
  ferry journal cleanup
  ferry journal cleanup --older-than 7`,
	RunE: runJournalCleanup,
}

var (
	journalLimit       int
	journalCleanupDays int
)

func init() {
	journalListCmd.Flags().IntVarP(&journalLimit, "limit", "l", 20, "maximum number of records to show (0 = all)")
	journalCleanupCmd.Flags().IntVar(&journalCleanupDays, "older-than", 0, "drop records older than this many days (default: journal_retention_days)")

	journalCmd.AddCommand(journalListCmd)
	journalCmd.AddCommand(journalCleanupCmd)
	rootCmd.AddCommand(journalCmd)
}

// runJournalList prints recent transaction records, newest first.
func runJournalList(cmd *cobra.Command, args []string) error {
	m, err := buildManager()
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()

	records, err := m.JournalList(journalLimit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		printInfo("Journal is empty.")
		return nil
	}

	fmt.Printf("\n%-36s  %-20s  %-9s  %-9s  %s\n", "ID", "STARTED", "OP", "STATUS", "TARGETS")
	fmt.Println(strings.Repeat("-", 110))
	for _, r := range records {
		targets := strings.Join(r.Targets, ", ")
		fmt.Printf("%-36s  %-20s  %-9s  %-9s  %s\n",
			r.ID,
			r.StartTS.Local().Format("2006-01-02 15:04:05"),
			r.Op,
			r.Status,
			truncateString(targets, 40),
		)
	}
	fmt.Println(strings.Repeat("-", 110))
	fmt.Printf("\nShowing %d records. Use --limit to see more.\n", len(records))

	return nil
}

// runJournalCleanup drops terminal records past the retention window.
func runJournalCleanup(cmd *cobra.Command, args []string) error {
	days := journalCleanupDays
	if days <= 0 {
		days = viper.GetInt("journal_retention_days")
	}

	m, err := buildManager()
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()

	n, err := m.JournalCleanup(time.Duration(days) * 24 * time.Hour)
	if err != nil {
		return err
	}
	printInfo("Removed %d finished record(s) older than %d days.", n, days)
	return nil
}

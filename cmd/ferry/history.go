package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/ferry/pkg/ferry/types"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View operation history",
	Long: `View the audit log of completed operations.

Every mutation ferry performs is recorded with its source, destination,
outcome, and checksum. The log is append-only; 'history clear' empties
it.`,
	RunE: runHistory,
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Erase the operation history",
	Long:  `Remove every entry from the audit log. This cannot be undone.`,
	RunE:  runHistoryClear,
}

var historyLimit int

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 20, "maximum number of entries to show (0 = all)")

	historyCmd.AddCommand(historyClearCmd)
	rootCmd.AddCommand(historyCmd)
}

// runHistory lists recent audit entries, newest first.
func runHistory(cmd *cobra.Command, args []string) error {
	m, err := buildManager()
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()

	entries, err := m.HistoryList(historyLimit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		printInfo("No history entries found.")
		return nil
	}

	fmt.Printf("\n%-20s  %-9s  %-4s  %-10s  %s\n", "WHEN", "OP", "OK", "SIZE", "SOURCE")
	fmt.Println(strings.Repeat("-", 100))
	for _, e := range entries {
		ok := "yes"
		if !e.Success {
			ok = "NO"
		}
		line := e.Source
		if e.Destination != "" {
			line += " -> " + e.Destination
		}
		fmt.Printf("%-20s  %-9s  %-4s  %-10s  %s\n",
			e.Timestamp.Local().Format("2006-01-02 15:04:05"),
			e.Operation,
			ok,
			types.FormatSize(e.Size),
			truncateString(line, 60),
		)
	}
	fmt.Println(strings.Repeat("-", 100))
	fmt.Printf("\nShowing %d entries. Use --limit to see more.\n", len(entries))

	return nil
}

// runHistoryClear empties the audit log.
func runHistoryClear(cmd *cobra.Command, args []string) error {
	m, err := buildManager()
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()

	ctx, stop := operationContext()
	defer stop()

	if err := m.HistoryClear(ctx); err != nil {
		return err
	}
	printInfo("History cleared.")
	return nil
}

// truncateString shortens s to maxLen, marking the cut with "...".
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

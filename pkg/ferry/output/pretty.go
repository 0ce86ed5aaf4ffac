package output

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// PrettyFormatter formats output with colors and styling using lipgloss.
// It produces a visually appealing output suitable for terminal display.
type PrettyFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PrettyFormatter) Format(w *bytes.Buffer, r *Report) error {
	header := f.formatHeader(r)
	w.WriteString(header)
	w.WriteString("\n")

	table := f.formatTable(r)
	w.WriteString(table)

	footer := f.formatFooter(r)
	w.WriteString(footer)

	if len(r.Warnings) > 0 {
		warnings := f.formatWarnings(r.Warnings)
		w.WriteString("\n")
		w.WriteString(warnings)
	}

	return nil
}

// formatHeader builds the header box with batch metadata.
func (f *PrettyFormatter) formatHeader(r *Report) string {
	var lines []string

	// Operation line
	opLabel := LabelStyle.Render("Operation:")
	opValue := TitleStyle.Render(r.Operation.String())
	opLine := fmt.Sprintf("%s %s", opLabel, opValue)
	if r.DryRun {
		opLine += "  " + WarningStyle.Bold(true).Render("DRY RUN")
	}
	lines = append(lines, opLine)

	// Risk and target count line
	var infoParts []string

	riskLabel := LabelStyle.Render("Risk:")
	infoParts = append(infoParts, fmt.Sprintf("%s %s", riskLabel, RiskBadge(r.Risk)))

	targetsLabel := LabelStyle.Render("Targets:")
	targetsValue := ValueStyle.Render(fmt.Sprintf("%d", r.Summary.Total))
	infoParts = append(infoParts, fmt.Sprintf("%s %s", targetsLabel, targetsValue))

	lines = append(lines, strings.Join(infoParts, "  "))

	content := strings.Join(lines, "\n")
	return HeaderBox.Render(content)
}

// formatTable builds the per-target table with STATUS, SIZE, and PATH columns.
func (f *PrettyFormatter) formatTable(r *Report) string {
	if len(r.Rows) == 0 {
		return MutedStyle.Render("  No targets\n")
	}

	var sb strings.Builder

	statusHeader := TableHeaderStyle.Render("STATUS")
	sizeHeader := TableHeaderStyle.Render("SIZE")
	pathHeader := TableHeaderStyle.Render("PATH")
	sb.WriteString(fmt.Sprintf("  %s  %s  %s\n", statusHeader, sizeHeader, pathHeader))

	// Calculate max size width for alignment
	maxSizeWidth := 0
	for _, row := range r.Rows {
		if len(row.SizeHuman) > maxSizeWidth {
			maxSizeWidth = len(row.SizeHuman)
		}
	}
	if maxSizeWidth < 8 {
		maxSizeWidth = 8 // Minimum width
	}

	for _, row := range r.Rows {
		statusStr := f.formatStatus(row.Status)
		sizeStr := SizeStyle.Render(padLeft(row.SizeHuman, maxSizeWidth))
		pathStr := PathStyle.Render(f.formatPath(row))
		sb.WriteString(fmt.Sprintf("  %s  %s  %s\n", statusStr, sizeStr, pathStr))
		if row.Error != "" {
			sb.WriteString(ErrorStyle.Render("           " + row.Error))
			sb.WriteString("\n")
		}
	}

	return sb.String()
}

// formatStatus returns a fixed-width styled status cell.
func (f *PrettyFormatter) formatStatus(status string) string {
	padded := padRight(status, 7)
	switch status {
	case "ok":
		return SuccessStyle.Render(padded)
	case "failed":
		return ErrorStyle.Render(padded)
	default:
		return MutedStyle.Render(padded)
	}
}

// formatPath renders "source -> destination" or just the source when the
// operation has no destination.
func (f *PrettyFormatter) formatPath(row Row) string {
	if row.Destination == "" || row.Destination == row.Source {
		return row.Source
	}
	return row.Source + MutedStyle.Render(" -> ") + row.Destination
}

// formatFooter builds the footer box with summary information.
func (f *PrettyFormatter) formatFooter(r *Report) string {
	var parts []string

	completedLabel := LabelStyle.Render("Completed:")
	completedValue := SuccessStyle.Render(fmt.Sprintf("%d", r.Summary.Completed))
	parts = append(parts, fmt.Sprintf("%s %s", completedLabel, completedValue))

	if r.Summary.Failed > 0 {
		failedLabel := LabelStyle.Render("Failed:")
		failedValue := ErrorStyle.Render(fmt.Sprintf("%d", r.Summary.Failed))
		parts = append(parts, fmt.Sprintf("%s %s", failedLabel, failedValue))
	}

	totalSizeLabel := LabelStyle.Render("Total:")
	totalSizeValue := SizeStyle.Render(humanize.IBytes(uint64(r.Summary.Bytes)))
	parts = append(parts, fmt.Sprintf("%s %s", totalSizeLabel, totalSizeValue))

	elapsedLabel := LabelStyle.Render("Elapsed:")
	elapsedValue := ValueStyle.Render(formatDuration(r.Summary.Elapsed))
	parts = append(parts, fmt.Sprintf("%s %s", elapsedLabel, elapsedValue))

	content := strings.Join(parts, "  ")
	return FooterBox.Render(content)
}

// formatWarnings builds a warning block.
func (f *PrettyFormatter) formatWarnings(warnings []string) string {
	var sb strings.Builder

	titleStyle := WarningStyle.Bold(true)
	sb.WriteString(titleStyle.Render("Warnings:"))
	sb.WriteString("\n")

	for _, warning := range warnings {
		sb.WriteString(WarningStyle.Render("  " + warning))
		sb.WriteString("\n")
	}

	return sb.String()
}

// padLeft pads a string with spaces on the left to achieve the desired width.
func padLeft(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat(" ", width-len(s)) + s
}

// padRight pads a string with spaces on the right to achieve the desired width.
func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

// formatDuration formats a duration in a human-friendly way.
func formatDuration(d time.Duration) string {
	sec := d.Seconds()
	if sec < 1 {
		return fmt.Sprintf("%.0fms", sec*1000)
	}
	if sec < 60 {
		return fmt.Sprintf("%.1fs", sec)
	}
	minutes := int(sec) / 60
	seconds := int(sec) % 60
	if minutes < 60 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	hours := minutes / 60
	minutes = minutes % 60
	return fmt.Sprintf("%dh %dm", hours, minutes)
}

func init() {
	Register("pretty", func() Formatter {
		return &PrettyFormatter{}
	})
}

// Ensure PrettyFormatter implements Formatter.
var _ Formatter = (*PrettyFormatter)(nil)

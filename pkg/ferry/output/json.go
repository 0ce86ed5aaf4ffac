package output

import (
	"bytes"
	"encoding/json"
	"time"
)

// jsonOutput represents the full JSON output structure.
type jsonOutput struct {
	Operation string      `json:"operation"`
	DryRun    bool        `json:"dry_run"`
	Risk      string      `json:"risk"`
	Rows      []jsonRow   `json:"rows"`
	Summary   jsonSummary `json:"summary"`
	Warnings  []string    `json:"warnings,omitempty"`
	Started   time.Time   `json:"started"`
}

// jsonRow represents one target in JSON output.
type jsonRow struct {
	Status      string `json:"status"`
	Source      string `json:"source"`
	Destination string `json:"destination,omitempty"`
	Size        int64  `json:"size"`
	SizeHuman   string `json:"size_human"`
	Duration    string `json:"duration,omitempty"`
	Checksum    string `json:"checksum,omitempty"`
	Verified    bool   `json:"verified,omitempty"`
	Error       string `json:"error,omitempty"`
}

// jsonSummary represents aggregate statistics in JSON output.
type jsonSummary struct {
	Total     int    `json:"total"`
	Completed int    `json:"completed"`
	Failed    int    `json:"failed"`
	Bytes     int64  `json:"bytes"`
	Elapsed   string `json:"elapsed"`
}

// JSONFormatter formats output as a single indented JSON object.
// It produces a complete JSON document with rows, summary, and metadata.
type JSONFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *JSONFormatter) Format(w *bytes.Buffer, r *Report) error {
	output := f.buildOutput(r)

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}

// buildOutput converts Report to the JSON output structure.
func (f *JSONFormatter) buildOutput(r *Report) jsonOutput {
	rows := make([]jsonRow, len(r.Rows))
	for i, row := range r.Rows {
		rows[i] = buildJSONRow(row)
	}

	summary := jsonSummary{
		Total:     r.Summary.Total,
		Completed: r.Summary.Completed,
		Failed:    r.Summary.Failed,
		Bytes:     r.Summary.Bytes,
		Elapsed:   formatDurationString(r.Summary.Elapsed),
	}

	return jsonOutput{
		Operation: r.Operation.String(),
		DryRun:    r.DryRun,
		Risk:      r.Risk.String(),
		Rows:      rows,
		Summary:   summary,
		Warnings:  r.Warnings,
		Started:   r.Started,
	}
}

// buildJSONRow converts a display row to its JSON form.
func buildJSONRow(row Row) jsonRow {
	return jsonRow{
		Status:      row.Status,
		Source:      row.Source,
		Destination: row.Destination,
		Size:        row.Size,
		SizeHuman:   row.SizeHuman,
		Duration:    formatDurationString(row.Duration),
		Checksum:    row.Checksum,
		Verified:    row.Verified,
		Error:       row.Error,
	}
}

// formatDurationString formats a duration as a string for JSON output.
func formatDurationString(d time.Duration) string {
	if d == 0 {
		return ""
	}
	return d.String()
}

func init() {
	Register("json", func() Formatter {
		return &JSONFormatter{}
	})
}

// Ensure JSONFormatter implements Formatter.
var _ Formatter = (*JSONFormatter)(nil)

// JSONLFormatter formats output as newline-delimited JSON (one object per line).
// Each target is written as a compact JSON object on its own line.
// This format is suitable for streaming processing with tools like jq.
type JSONLFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *JSONLFormatter) Format(w *bytes.Buffer, r *Report) error {
	for _, row := range r.Rows {
		data, err := json.Marshal(buildJSONRow(row))
		if err != nil {
			return err
		}
		w.Write(data)
		w.WriteByte('\n')
	}
	return nil
}

func init() {
	Register("jsonl", func() Formatter {
		return &JSONLFormatter{}
	})
}

// Ensure JSONLFormatter implements Formatter.
var _ Formatter = (*JSONLFormatter)(nil)

package output

import (
	"bytes"
	"time"

	"gopkg.in/yaml.v3"
)

// yamlOutput represents the full YAML output structure.
type yamlOutput struct {
	Operation string      `yaml:"operation"`
	DryRun    bool        `yaml:"dry_run"`
	Risk      string      `yaml:"risk"`
	Rows      []yamlRow   `yaml:"rows"`
	Summary   yamlSummary `yaml:"summary"`
	Warnings  []string    `yaml:"warnings,omitempty"`
	Started   time.Time   `yaml:"started"`
}

// yamlRow represents one target in YAML output.
type yamlRow struct {
	Status      string `yaml:"status"`
	Source      string `yaml:"source"`
	Destination string `yaml:"destination,omitempty"`
	Size        int64  `yaml:"size"`
	SizeHuman   string `yaml:"size_human"`
	Duration    string `yaml:"duration,omitempty"`
	Checksum    string `yaml:"checksum,omitempty"`
	Verified    bool   `yaml:"verified,omitempty"`
	Error       string `yaml:"error,omitempty"`
}

// yamlSummary represents aggregate statistics in YAML output.
type yamlSummary struct {
	Total     int    `yaml:"total"`
	Completed int    `yaml:"completed"`
	Failed    int    `yaml:"failed"`
	Bytes     int64  `yaml:"bytes"`
	Elapsed   string `yaml:"elapsed"`
}

// YAMLFormatter formats output as YAML.
// It produces the same structure as JSONFormatter but in YAML format.
type YAMLFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *YAMLFormatter) Format(w *bytes.Buffer, r *Report) error {
	output := f.buildOutput(r)

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(output); err != nil {
		return err
	}
	return encoder.Close()
}

// buildOutput converts Report to the YAML output structure.
func (f *YAMLFormatter) buildOutput(r *Report) yamlOutput {
	rows := make([]yamlRow, len(r.Rows))
	for i, row := range r.Rows {
		rows[i] = yamlRow{
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

	summary := yamlSummary{
		Total:     r.Summary.Total,
		Completed: r.Summary.Completed,
		Failed:    r.Summary.Failed,
		Bytes:     r.Summary.Bytes,
		Elapsed:   formatDurationString(r.Summary.Elapsed),
	}

	return yamlOutput{
		Operation: r.Operation.String(),
		DryRun:    r.DryRun,
		Risk:      r.Risk.String(),
		Rows:      rows,
		Summary:   summary,
		Warnings:  r.Warnings,
		Started:   r.Started,
	}
}

func init() {
	Register("yaml", func() Formatter {
		return &YAMLFormatter{}
	})
}

// Ensure YAMLFormatter implements Formatter.
var _ Formatter = (*YAMLFormatter)(nil)

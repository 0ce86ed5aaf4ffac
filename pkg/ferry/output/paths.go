package output

import (
	"bytes"
)

// PathsFormatter formats output as one affected path per line.
// For operations that produce a destination, the destination is printed;
// otherwise the source. Only successful (or planned) targets are listed,
// so the output can be piped straight into other tools.
type PathsFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PathsFormatter) Format(w *bytes.Buffer, r *Report) error {
	for _, row := range r.Rows {
		if row.Status == "failed" {
			continue
		}
		w.WriteString(affectedPath(row))
		w.WriteByte('\n')
	}
	return nil
}

// affectedPath returns the path an operation left behind.
func affectedPath(row Row) string {
	if row.Destination != "" {
		return row.Destination
	}
	return row.Source
}

func init() {
	Register("paths", func() Formatter {
		return &PathsFormatter{}
	})
}

// Ensure PathsFormatter implements Formatter.
var _ Formatter = (*PathsFormatter)(nil)

// NullFormatter formats output as null-delimited paths.
// It produces paths separated by null bytes (0x00), suitable for use with
// xargs -0 or other tools that support null-delimited input.
// This format safely handles paths containing spaces, newlines, or other
// special characters.
type NullFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *NullFormatter) Format(w *bytes.Buffer, r *Report) error {
	for _, row := range r.Rows {
		if row.Status == "failed" {
			continue
		}
		w.WriteString(affectedPath(row))
		w.WriteByte(0) // Null byte delimiter
	}
	return nil
}

func init() {
	Register("null", func() Formatter {
		return &NullFormatter{}
	})
}

// Ensure NullFormatter implements Formatter.
var _ Formatter = (*NullFormatter)(nil)

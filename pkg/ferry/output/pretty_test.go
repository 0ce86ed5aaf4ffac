package output

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/ferry/pkg/ferry/types"
)

func TestPrettyFormatter_Format(t *testing.T) {
	formatter := &PrettyFormatter{}
	var buf bytes.Buffer

	err := formatter.Format(&buf, FromManifest(riskManifest(types.RiskMedium)))
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "copy")
	assert.Contains(t, output, "MEDIUM")
	assert.Contains(t, output, "/src/a.txt")
	assert.Contains(t, output, "/dst/a.txt")
	assert.Contains(t, output, "permission denied")
	assert.Contains(t, output, "Completed:")
	assert.Contains(t, output, "Failed:")
}

func TestPrettyFormatter_Format_DryRun(t *testing.T) {
	formatter := &PrettyFormatter{}
	var buf bytes.Buffer

	m := sampleManifest()
	m.DryRun = true

	err := formatter.Format(&buf, FromManifest(m))
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "DRY RUN")
	assert.Contains(t, buf.String(), "planned")
}

func TestPrettyFormatter_Format_Warnings(t *testing.T) {
	formatter := &PrettyFormatter{}
	var buf bytes.Buffer

	warnings := []string{"destination exists: /dst/a.txt", "repository has uncommitted changes"}
	err := formatter.Format(&buf, FromManifest(riskManifest(types.RiskMedium, warnings...)))
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "Warnings:")
	assert.Contains(t, output, "destination exists: /dst/a.txt")
	assert.Contains(t, output, "repository has uncommitted changes")
}

func TestPrettyFormatter_Format_Empty(t *testing.T) {
	formatter := &PrettyFormatter{}
	var buf bytes.Buffer

	err := formatter.Format(&buf, FromManifest(&types.Manifest{Operation: types.OpSync}))
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "No targets")
}

func TestPrettyFormatter_Registration(t *testing.T) {
	formatter, err := Get("pretty")
	require.NoError(t, err)
	assert.IsType(t, &PrettyFormatter{}, formatter)
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		expected string
	}{
		{"milliseconds", 500 * time.Millisecond, "500ms"},
		{"seconds", 5*time.Second + 500*time.Millisecond, "5.5s"},
		{"minutes", 2*time.Minute + 30*time.Second, "2m 30s"},
		{"hours", time.Hour + 5*time.Minute, "1h 5m"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatDuration(tt.duration))
		})
	}
}

func TestPadLeft(t *testing.T) {
	assert.Equal(t, "   abc", padLeft("abc", 6))
	assert.Equal(t, "abc", padLeft("abc", 3))
	assert.Equal(t, "abcdef", padLeft("abcdef", 3))
}

func TestPadRight(t *testing.T) {
	assert.Equal(t, "abc   ", padRight("abc", 6))
	assert.Equal(t, "abc", padRight("abc", 2))
}

func TestRiskStyle_Distinct(t *testing.T) {
	// Every level renders without panicking and yields the level name.
	levels := []types.RiskLevel{
		types.RiskSafe, types.RiskLow, types.RiskMedium, types.RiskHigh, types.RiskCritical,
	}
	for _, level := range levels {
		badge := RiskBadge(level)
		assert.Contains(t, badge, level.String())
	}
}

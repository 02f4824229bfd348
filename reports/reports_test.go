package reports_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openedu-urfu/reportctl/reports"
)

func TestParseFilenameGradeReport(t *testing.T) {
	d, ok := reports.ParseFilename("UrFU_PYTHON_2025_fall_grade_report_2025-10-14-2015.csv")
	require.True(t, ok)
	assert.Equal(t, "UrFU_PYTHON_2025_fall", d.CourseID)
	assert.Equal(t, reports.KindGradeReport, d.Kind)
	assert.Equal(t, time.Date(2025, 10, 14, 20, 15, 0, 0, time.UTC), d.Timestamp)
}

func TestParseFilenameEveryKind(t *testing.T) {
	for _, kind := range reports.Kinds {
		d, ok := reports.ParseFilename("UrFU_PYTHON_2025_fall_" + string(kind) + "_2025-01-02-0930.csv")
		require.True(t, ok, "kind %s", kind)
		assert.Equal(t, kind, d.Kind)
		assert.Equal(t, "UrFU_PYTHON_2025_fall", d.CourseID)
	}
}

func TestParseFilenameNoMatch(t *testing.T) {
	tests := []string{
		"invalid_filename.csv",
		"UrFU_PYTHON_2025_fall_grade_report_2025-10-14-2015.txt",
		"UrFU_PYTHON_2025_fall_weekly_report_2025-10-14-2015.csv",
		"",
	}
	for _, name := range tests {
		_, ok := reports.ParseFilename(name)
		assert.False(t, ok, "expected no match for %q", name)
	}
}

func TestParseFilenameBadDateIsRetained(t *testing.T) {
	// Structurally valid but the 13th month cannot parse: the descriptor
	// survives with a zero timestamp.
	d, ok := reports.ParseFilename("UrFU_PYTHON_2025_fall_grade_report_2025-13-40-9999.csv")
	require.True(t, ok)
	assert.Equal(t, "UrFU_PYTHON_2025_fall", d.CourseID)
	assert.True(t, d.Timestamp.IsZero())
}

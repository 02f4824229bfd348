package cmd

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openedu-urfu/reportctl/reports"
)

func TestRenderSummary(t *testing.T) {
	rows := []reports.SummaryRow{
		{
			CourseName: "Python",
			ShortID:    "UrFU_PYTHON_2025_fall",
			Run:        "2025_fall",
			Kind:       reports.KindGradeReport,
			LastReport: time.Date(2025, 10, 14, 20, 15, 0, 0, time.UTC),
			AgeDays:    3,
			Path:       "/grades/UrFU_PYTHON_2025_fall_grade_report_2025-10-14-2015.csv",
		},
		{
			CourseName: "Python",
			ShortID:    "UrFU_PYTHON_2025_fall",
			Run:        "2025_fall",
			Kind:       reports.KindORAData,
			AgeDays:    -1,
		},
		{
			CourseName: "Python",
			ShortID:    "UrFU_PYTHON_2025_fall",
			Run:        "2025_fall",
			Kind:       reports.KindStudentProfile,
			LastReport: time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC),
			AgeDays:    12,
			Path:       "/grades/old.csv",
		},
	}

	var sb strings.Builder
	renderSummary(&sb, rows, 5)
	out := sb.String()

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 4, "header plus one line per row")
	assert.Contains(t, lines[0], "LAST REPORT")

	assert.Contains(t, lines[1], "2025-10-14 20:15")
	assert.Contains(t, lines[1], "3d")
	assert.Contains(t, lines[1], "fresh")

	// Never-generated pairs keep their row with explicit placeholders.
	assert.Contains(t, lines[2], "none")
	assert.Contains(t, lines[2], "missing")

	assert.Contains(t, lines[3], "12d")
	assert.Contains(t, lines[3], "stale")
}

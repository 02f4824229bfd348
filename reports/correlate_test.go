package reports_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openedu-urfu/reportctl/edx"
	"github.com/openedu-urfu/reportctl/reports"
)

var pythonCourse = edx.Course{
	ID:      "course-v1:UrFU+PYTHON+2025_fall",
	Name:    "Python",
	ShortID: "UrFU_PYTHON_2025_fall",
	Run:     "2025_fall",
}

func findRow(t *testing.T, rows []reports.SummaryRow, shortID string, kind reports.Kind) reports.SummaryRow {
	t.Helper()
	for _, row := range rows {
		if row.ShortID == shortID && row.Kind == kind {
			return row
		}
	}
	t.Fatalf("no row for %s/%s", shortID, kind)
	return reports.SummaryRow{}
}

func TestCorrelatePicksNewestReport(t *testing.T) {
	now := time.Date(2025, 10, 20, 12, 0, 0, 0, time.UTC)
	descriptors := []reports.Descriptor{
		{
			CourseID:  "UrFU_PYTHON_2025_fall",
			Kind:      reports.KindGradeReport,
			Timestamp: now.AddDate(0, 0, -10),
			Path:      "/grades/old.csv",
		},
		{
			CourseID:  "UrFU_PYTHON_2025_fall",
			Kind:      reports.KindGradeReport,
			Timestamp: now.AddDate(0, 0, -3),
			Path:      "/grades/new.csv",
		},
	}

	rows := reports.Correlate([]edx.Course{pythonCourse}, descriptors, now)
	require.Len(t, rows, len(reports.Kinds))

	row := findRow(t, rows, "UrFU_PYTHON_2025_fall", reports.KindGradeReport)
	assert.Equal(t, now.AddDate(0, 0, -3), row.LastReport)
	assert.Equal(t, 3, row.AgeDays)
	assert.Equal(t, "/grades/new.csv", row.Path)
	assert.True(t, row.HasReport())
}

func TestCorrelateEmitsPlaceholderRows(t *testing.T) {
	now := time.Now().UTC()
	rows := reports.Correlate([]edx.Course{pythonCourse}, nil, now)
	require.Len(t, rows, len(reports.Kinds))
	for _, row := range rows {
		assert.False(t, row.HasReport())
		assert.Equal(t, -1, row.AgeDays)
		assert.Empty(t, row.Path)
		assert.Equal(t, "Python", row.CourseName)
		assert.Equal(t, "2025_fall", row.Run)
	}
}

func TestCorrelateZeroTimestampSortsLast(t *testing.T) {
	now := time.Date(2025, 10, 20, 12, 0, 0, 0, time.UTC)
	descriptors := []reports.Descriptor{
		{CourseID: "UrFU_PYTHON_2025_fall", Kind: reports.KindGradeReport, Path: "/grades/undated.csv"},
		{CourseID: "UrFU_PYTHON_2025_fall", Kind: reports.KindGradeReport, Timestamp: now.AddDate(0, 0, -5), Path: "/grades/dated.csv"},
	}

	rows := reports.Correlate([]edx.Course{pythonCourse}, descriptors, now)
	row := findRow(t, rows, "UrFU_PYTHON_2025_fall", reports.KindGradeReport)
	assert.Equal(t, "/grades/dated.csv", row.Path)
	assert.Equal(t, 5, row.AgeDays)
}

func TestCorrelateKeepsUndatedDescriptorWhenAlone(t *testing.T) {
	now := time.Now().UTC()
	descriptors := []reports.Descriptor{
		{CourseID: "UrFU_PYTHON_2025_fall", Kind: reports.KindGradeReport, Path: "/grades/undated.csv"},
	}

	rows := reports.Correlate([]edx.Course{pythonCourse}, descriptors, now)
	row := findRow(t, rows, "UrFU_PYTHON_2025_fall", reports.KindGradeReport)
	assert.Equal(t, "/grades/undated.csv", row.Path)
	assert.False(t, row.HasReport())
	assert.Equal(t, -1, row.AgeDays)
}

func TestCorrelateOrdersByCourseNameThenKind(t *testing.T) {
	courses := []edx.Course{
		{ID: "course-v1:UrFU+B+1", Name: "Философия", ShortID: "UrFU_B_1", Run: "1"},
		{ID: "course-v1:UrFU+A+1", Name: "Алгебра", ShortID: "UrFU_A_1", Run: "1"},
	}
	rows := reports.Correlate(courses, nil, time.Now().UTC())
	require.Len(t, rows, 2*len(reports.Kinds))
	assert.Equal(t, "Алгебра", rows[0].CourseName)
	assert.Equal(t, reports.KindGradeReport, rows[0].Kind)
	assert.Equal(t, "Философия", rows[len(reports.Kinds)].CourseName)
}

func TestCorrelateIsIdempotent(t *testing.T) {
	now := time.Date(2025, 10, 20, 12, 0, 0, 0, time.UTC)
	courses := []edx.Course{
		pythonCourse,
		{ID: "course-v1:UrFU+MATH+2025_fall", Name: "Math", ShortID: "UrFU_MATH_2025_fall", Run: "2025_fall"},
	}
	descriptors := []reports.Descriptor{
		{CourseID: "UrFU_PYTHON_2025_fall", Kind: reports.KindGradeReport, Timestamp: now.AddDate(0, 0, -1), Path: "/grades/a.csv"},
		{CourseID: "UrFU_MATH_2025_fall", Kind: reports.KindORAData, Timestamp: now.AddDate(0, 0, -2), Path: "/grades/b.csv"},
	}

	first := reports.Correlate(courses, descriptors, now)
	second := reports.Correlate(courses, descriptors, now)
	assert.Equal(t, first, second)
}

// Package reports parses on-disk report files produced by the platform and
// correlates them with the course catalog for freshness reporting.
//
// Filenames follow one fixed convention:
//
//	<shortCourseID>_<kind>_<YYYY>-<MM>-<DD>-<HHMM>.csv
//
// The date/time suffix is interpreted as UTC. The platform's actual
// report-generation timezone is unverified; treat a mismatch here as an
// integration risk, not a parsing bug.
package reports

import (
	"regexp"
	"time"
)

// Kind is one of the report categories the platform can generate. The
// values are the exact tokens that appear in filenames.
type Kind string

const (
	KindGradeReport    Kind = "grade_report"
	KindStudentProfile Kind = "student_profile_info"
	KindMayEnroll      Kind = "may_enroll_info"
	KindAnonymizedIDs  Kind = "anonymized_ids"
	KindORAData        Kind = "ORA_data"
)

// Kinds is the fixed enumeration, in presentation order.
var Kinds = []Kind{
	KindGradeReport,
	KindStudentProfile,
	KindMayEnroll,
	KindAnonymizedIDs,
	KindORAData,
}

// Descriptor describes one physical report file.
type Descriptor struct {
	// CourseID is the short course ID embedded in the filename.
	CourseID string
	Kind     Kind
	// Timestamp is zero when the filename matched the structural pattern
	// but its date/time substring failed to parse. Such descriptors are
	// retained (path and kind are still useful) but always sort last.
	Timestamp time.Time
	Path      string
}

const timestampLayout = "2006-01-02-1504"

var filenamePattern = regexp.MustCompile(
	`^(.*?)_(grade_report|student_profile_info|may_enroll_info|anonymized_ids|ORA_data)_(\d{4}-\d{2}-\d{2}-\d{4})\.csv$`)

// ParseFilename parses a report filename into a Descriptor. The second
// return value is false when the name does not match the grammar at all;
// such files are simply unrelated to reporting. Path is left empty.
func ParseFilename(name string) (Descriptor, bool) {
	m := filenamePattern.FindStringSubmatch(name)
	if m == nil {
		return Descriptor{}, false
	}
	d := Descriptor{
		CourseID: m[1],
		Kind:     Kind(m[2]),
	}
	if ts, err := time.Parse(timestampLayout, m[3]); err == nil {
		d.Timestamp = ts.UTC()
	}
	return d, true
}

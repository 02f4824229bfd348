package reports

import (
	"sort"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/openedu-urfu/reportctl/edx"
)

// SummaryRow is one (course, report kind) pair in the presentation table.
// Pairs with no matching report file are emitted with explicit placeholders
// so "never generated" shows up instead of silently dropping the row.
type SummaryRow struct {
	CourseName string
	ShortID    string
	Run        string
	Kind       Kind
	// LastReport is the newest matching report's timestamp; zero when no
	// timestamped report exists.
	LastReport time.Time
	// AgeDays is the whole days between LastReport and "now"; -1 when no
	// timestamped report exists.
	AgeDays int
	// Path of the newest matching report file, "" when none.
	Path string
}

// HasReport reports whether a timestamped report file backs this row.
func (r SummaryRow) HasReport() bool {
	return !r.LastReport.IsZero()
}

// Correlate joins the course list against the scanned descriptors: for
// every (course, kind) pair over the full kind enumeration it selects the
// most recent descriptor sharing the course's short ID and that kind.
// Descriptors without a timestamp are chosen only when nothing timestamped
// exists; ties between equal timestamps keep the first one scanned.
//
// Rows come out ordered by Russian-collated course name, then short ID,
// then kind enumeration order, so repeated runs over unchanged inputs
// produce identical tables.
func Correlate(courses []edx.Course, descriptors []Descriptor, now time.Time) []SummaryRow {
	type pairKey struct {
		courseID string
		kind     Kind
	}
	newest := make(map[pairKey]Descriptor)
	for _, d := range descriptors {
		key := pairKey{d.CourseID, d.Kind}
		best, ok := newest[key]
		if !ok || d.Timestamp.After(best.Timestamp) {
			newest[key] = d
		}
	}

	ordered := make([]edx.Course, len(courses))
	copy(ordered, courses)
	coll := collate.New(language.Russian)
	sort.SliceStable(ordered, func(i, j int) bool {
		if c := coll.CompareString(ordered[i].Name, ordered[j].Name); c != 0 {
			return c < 0
		}
		return ordered[i].ShortID < ordered[j].ShortID
	})

	rows := make([]SummaryRow, 0, len(ordered)*len(Kinds))
	for _, course := range ordered {
		for _, kind := range Kinds {
			row := SummaryRow{
				CourseName: course.Name,
				ShortID:    course.ShortID,
				Run:        course.Run,
				Kind:       kind,
				AgeDays:    -1,
			}
			if d, ok := newest[pairKey{course.ShortID, kind}]; ok {
				row.Path = d.Path
				if !d.Timestamp.IsZero() {
					row.LastReport = d.Timestamp
					row.AgeDays = int(now.UTC().Sub(d.Timestamp) / (24 * time.Hour))
				}
			}
			rows = append(rows, row)
		}
	}
	return rows
}

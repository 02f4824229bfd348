package edx

import (
	"regexp"
	"strings"
)

var courseIDPattern = regexp.MustCompile(`^course-v1:(.*?)\+(.*?)\+(.*)$`)

// ShortCourseID converts a platform-qualified course ID into the short form
// used in report filenames: course-v1:UrFU+PYTHON+2025_fall becomes
// UrFU_PYTHON_2025_fall. Non-matching input is returned unchanged.
func ShortCourseID(id string) string {
	m := courseIDPattern.FindStringSubmatch(id)
	if m == nil {
		return id
	}
	return m[1] + "_" + m[2] + "_" + m[3]
}

// CourseRun extracts the run (offering) tag: the substring after the last
// '+'. IDs without a '+' are returned unchanged.
func CourseRun(id string) string {
	idx := strings.LastIndex(id, "+")
	if idx < 0 {
		return id
	}
	return id[idx+1:]
}

// SanitizeCourseID cleans a course ID before it is embedded in a request
// path: whitespace is stripped, two known copy-paste typos are repaired and
// reserved characters are percent-encoded, keeping ':', '/' and '+' which
// the instructor API expects literally.
func SanitizeCourseID(id string) string {
	cleaned := strings.Join(strings.Fields(id), "")
	cleaned = strings.ReplaceAll(cleaned, "::", ":")
	cleaned = strings.ReplaceAll(cleaned, "coursev1", "course-v1")
	return escapeCourseID(cleaned)
}

func escapeCourseID(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if courseIDSafe(c) {
			b.WriteByte(c)
			continue
		}
		const hex = "0123456789ABCDEF"
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0xf])
	}
	return b.String()
}

func courseIDSafe(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	switch c {
	case '-', '_', '.', '~', ':', '/', '+':
		return true
	}
	return false
}

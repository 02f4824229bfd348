package edx

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

const (
	coursePageSize = 100
	// maxCoursePages guards against pagination loops and broken "next"
	// pointers. Hitting the cap truncates silently (logged, not an error).
	maxCoursePages = 10

	defaultCatalogTimeout = 30 * time.Second
)

// Course is one offering known to the platform. Immutable after creation.
type Course struct {
	// ID is the platform-qualified identifier, e.g.
	// course-v1:UrFU+PYTHON+2025_fall.
	ID string
	// Name is the display name.
	Name string
	// ShortID is the filesystem-compatible form, e.g. UrFU_PYTHON_2025_fall.
	ShortID string
	// Run is the offering tag, e.g. 2025_fall.
	Run string
}

// courseListPage is the typed shape of one catalog page. Next is a pointer
// so "no next page" is an explicit state rather than a missing key.
type courseListPage struct {
	Results []coursePayload `json:"results"`
	Next    *string         `json:"next"`
}

type coursePayload struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CatalogClient enumerates all courses through the paginated listing
// endpoint.
type CatalogClient struct {
	timeout time.Duration
	logger  *slog.Logger
}

// CatalogOption configures a CatalogClient.
type CatalogOption func(*CatalogClient)

// WithCatalogLogger sets the structured logger. Defaults to slog.Default().
func WithCatalogLogger(logger *slog.Logger) CatalogOption {
	return func(c *CatalogClient) { c.logger = logger }
}

// WithCatalogTimeout sets the per-page request timeout.
func WithCatalogTimeout(d time.Duration) CatalogOption {
	return func(c *CatalogClient) { c.timeout = d }
}

// NewCatalogClient creates a CatalogClient.
func NewCatalogClient(opts ...CatalogOption) *CatalogClient {
	c := &CatalogClient{timeout: defaultCatalogTimeout}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.logger = c.logger.With("component", "catalog")
	return c
}

// ListCourses pages through the course listing, 100 items at a time, in
// page order. Enumeration stops at the first failed page and returns what
// was collected so far: downstream code treats a partial or empty course
// list as an actionable state, not a crash, so failures are logged rather
// than returned.
func (c *CatalogClient) ListCourses(ctx context.Context, sess Session) []Course {
	var courses []Course
	for page := 1; page <= maxCoursePages; page++ {
		result, err := c.fetchPage(ctx, sess, page)
		if err != nil {
			c.logger.Warn("course enumeration stopped early", "page", page, "reason", err.Error(),
				"collected", len(courses))
			return courses
		}
		if len(result.Results) == 0 {
			break
		}
		for _, raw := range result.Results {
			courses = append(courses, Course{
				ID:      raw.ID,
				Name:    raw.Name,
				ShortID: ShortCourseID(raw.ID),
				Run:     CourseRun(raw.ID),
			})
		}
		c.logger.Debug("course page fetched", "page", page, "added", len(result.Results), "total", len(courses))
		if result.Next == nil {
			break
		}
		if page == maxCoursePages {
			c.logger.Warn("course enumeration truncated at the page cap", "pages", maxCoursePages, "collected", len(courses))
		}
	}
	if len(courses) == 0 {
		c.logger.Warn("course enumeration yielded no courses")
	} else {
		c.logger.Info("course enumeration finished", "courses", len(courses))
	}
	return courses
}

func (c *CatalogClient) fetchPage(ctx context.Context, sess Session, page int) (courseListPage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u := fmt.Sprintf("%s/api/courses/v1/courses/?page=%d&page_size=%d", sess.BaseURL, page, coursePageSize)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return courseListPage{}, err
	}
	sess.applyAPIHeaders(req.Header)

	resp, err := sess.Client().Do(req)
	if err != nil {
		return courseListPage{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return courseListPage{}, &RequestError{Status: resp.StatusCode}
	}
	var result courseListPage
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return courseListPage{}, fmt.Errorf("decoding course page: %w", err)
	}
	return result, nil
}

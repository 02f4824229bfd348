package runner_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/awnumar/memguard"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openedu-urfu/reportctl/edx"
	"github.com/openedu-urfu/reportctl/retry"
	"github.com/openedu-urfu/reportctl/runner"
	"github.com/openedu-urfu/reportctl/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakePlatform is a minimal Open edX stand-in: login, identity, catalog and
// report-trigger endpoints, with per-course trigger accounting.
type fakePlatform struct {
	srv *httptest.Server

	mu           sync.Mutex
	triggerCalls map[string]int
	failCourses  map[string]bool
	courses      []string // platform-qualified IDs, one page
}

func newFakePlatform(t *testing.T, courseIDs ...string) *fakePlatform {
	t.Helper()
	p := &fakePlatform{
		triggerCalls: map[string]int{},
		failCourses:  map[string]bool{},
		courses:      courseIDs,
	}

	r := chi.NewRouter()
	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "csrftoken", Value: "boot-token", Path: "/"})
	})
	r.Post("/login_ajax", func(w http.ResponseWriter, _ *http.Request) {
		for _, c := range []string{"sessionid", "csrftoken", "edx-jwt-cookie-header-payload", "edx-jwt-cookie-signature"} {
			http.SetCookie(w, &http.Cookie{Name: c, Value: "v-" + c, Path: "/"})
		}
		w.Write([]byte(`{"success": true}`))
	})
	r.Get("/api/user/v1/me", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"username": "teacher", "is_staff": true, "is_superuser": false}`))
	})
	r.Get("/api/courses/v1/courses/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"results": [`)
		for i, id := range p.courses {
			if i > 0 {
				fmt.Fprint(w, ",")
			}
			fmt.Fprintf(w, `{"id": %q, "name": "Course %d"}`, id, i+1)
		}
		fmt.Fprint(w, `], "next": null}`)
	})
	r.Post("/courses/{courseID}/instructor/api/calculate_grades_csv", func(w http.ResponseWriter, req *http.Request) {
		courseID := chi.URLParam(req, "courseID")
		p.mu.Lock()
		p.triggerCalls[courseID]++
		fail := p.failCourses[courseID]
		p.mu.Unlock()
		if fail {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("worker unavailable"))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"task_status": "QUEUING", "task_id": "task-1"}`))
	})

	p.srv = httptest.NewServer(r)
	t.Cleanup(p.srv.Close)
	return p
}

func (p *fakePlatform) calls(courseID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.triggerCalls[courseID]
}

func newRunner(p *fakePlatform, opts ...runner.Option) *runner.Runner {
	auth := edx.NewAuthenticator(p.srv.URL, "urfu.online", edx.WithLogger(testLogger()))
	catalog := edx.NewCatalogClient(edx.WithCatalogLogger(testLogger()))
	trigger := edx.NewTriggerClient(auth, edx.WithTriggerLogger(testLogger()))
	base := []runner.Option{
		runner.WithRunnerLogger(testLogger()),
		runner.WithPace(0),
		runner.WithPolicy(retry.Policy{MaxAttempts: 2, InitialDelay: time.Millisecond, Multiplier: 2}),
	}
	return runner.New(auth, catalog, trigger, append(base, opts...)...)
}

func testPassword() *memguard.Enclave {
	return memguard.NewEnclave([]byte("secret"))
}

func TestRunTriggersEveryCourse(t *testing.T) {
	p := newFakePlatform(t, "course-v1:UrFU+PYTHON+2025_fall", "course-v1:UrFU+MATH+2025_fall")

	outcome, err := newRunner(p).Run(context.Background(), "teacher", testPassword())
	require.NoError(t, err)

	assert.Equal(t, 2, outcome.Total)
	assert.Equal(t, 2, outcome.Succeeded)
	assert.Equal(t, 0, outcome.Failed)
	assert.NotEmpty(t, outcome.RunID)
	assert.Equal(t, 1, p.calls("course-v1:UrFU+PYTHON+2025_fall"))
	assert.Equal(t, 1, p.calls("course-v1:UrFU+MATH+2025_fall"))
}

func TestRunCountsPartialFailures(t *testing.T) {
	p := newFakePlatform(t, "course-v1:UrFU+PYTHON+2025_fall", "course-v1:UrFU+MATH+2025_fall")
	p.failCourses["course-v1:UrFU+MATH+2025_fall"] = true

	outcome, err := newRunner(p).Run(context.Background(), "teacher", testPassword())
	require.NoError(t, err, "partial failure is not fatal")

	assert.Equal(t, 1, outcome.Succeeded)
	assert.Equal(t, 1, outcome.Failed)
	// The failing course is retried to exhaustion.
	assert.Equal(t, 2, p.calls("course-v1:UrFU+MATH+2025_fall"))
}

func TestRunFailsWhenEveryCourseFails(t *testing.T) {
	p := newFakePlatform(t, "course-v1:UrFU+PYTHON+2025_fall")
	p.failCourses["course-v1:UrFU+PYTHON+2025_fall"] = true

	outcome, err := newRunner(p).Run(context.Background(), "teacher", testPassword())
	require.ErrorIs(t, err, runner.ErrAllFailed)
	assert.Equal(t, 1, outcome.Failed)
}

func TestRunSkipsCoursesWithoutID(t *testing.T) {
	p := newFakePlatform(t, "course-v1:UrFU+PYTHON+2025_fall", "")

	outcome, err := newRunner(p).Run(context.Background(), "teacher", testPassword())
	require.NoError(t, err)

	assert.Equal(t, 2, outcome.Total)
	assert.Equal(t, 1, outcome.Succeeded)
	assert.Equal(t, 0, outcome.Failed)
	assert.Equal(t, 1, outcome.Skipped)
	assert.Equal(t, 1, p.calls("course-v1:UrFU+PYTHON+2025_fall"))
}

func TestRunWithOnlyUnusableCourses(t *testing.T) {
	p := newFakePlatform(t, "", "")

	outcome, err := newRunner(p).Run(context.Background(), "teacher", testPassword())
	require.ErrorIs(t, err, runner.ErrNoCourses, "skipped-only runs attempted nothing")
	assert.Equal(t, 2, outcome.Skipped)
	assert.Equal(t, 0, outcome.Failed)
}

func TestRunFailsWithoutCourses(t *testing.T) {
	p := newFakePlatform(t)

	_, err := newRunner(p).Run(context.Background(), "teacher", testPassword())
	require.ErrorIs(t, err, runner.ErrNoCourses)
}

func TestRunAbortsOnAuthFailure(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "csrftoken", Value: "boot-token", Path: "/"})
	})
	r.Post("/login_ajax", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"value": "Unknown user email or username"}`))
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	auth := edx.NewAuthenticator(srv.URL, "urfu.online", edx.WithLogger(testLogger()))
	catalog := edx.NewCatalogClient(edx.WithCatalogLogger(testLogger()))
	trigger := edx.NewTriggerClient(auth, edx.WithTriggerLogger(testLogger()))
	run := runner.New(auth, catalog, trigger, runner.WithRunnerLogger(testLogger()), runner.WithPace(0))

	_, err := run.Run(context.Background(), "teacher", testPassword())
	var authErr *edx.AuthError
	require.ErrorAs(t, err, &authErr)
}

func TestRunSavesCatalogSnapshot(t *testing.T) {
	p := newFakePlatform(t, "course-v1:UrFU+PYTHON+2025_fall")
	snap, err := store.Open(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	defer snap.Close()

	_, err = newRunner(p, runner.WithSnapshot(snap)).Run(context.Background(), "teacher", testPassword())
	require.NoError(t, err)

	courses, _, err := snap.Courses()
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, "UrFU_PYTHON_2025_fall", courses[0].ShortID)
}

func TestRunLogsCatalogDrift(t *testing.T) {
	p := newFakePlatform(t, "course-v1:UrFU+PYTHON+2025_fall")
	snap, err := store.Open(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	defer snap.Close()
	require.NoError(t, snap.SaveCourses([]edx.Course{
		{ID: "course-v1:UrFU+OLD+2024_fall", Name: "Retired course"},
	}, time.Now()))

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	_, err = newRunner(p, runner.WithSnapshot(snap), runner.WithRunnerLogger(logger)).
		Run(context.Background(), "teacher", testPassword())
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "catalog changed since last snapshot")
	assert.Contains(t, buf.String(), "course-v1:UrFU+OLD+2024_fall")
	assert.Contains(t, buf.String(), "course-v1:UrFU+PYTHON+2025_fall")

	// The snapshot itself is replaced by the fresh catalog.
	courses, _, err := snap.Courses()
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, "course-v1:UrFU+PYTHON+2025_fall", courses[0].ID)
}

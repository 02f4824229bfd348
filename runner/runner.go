// Package runner drives one batch run: authenticate, enumerate courses and
// trigger a grade report per course with retry and pacing.
package runner

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/awnumar/memguard"
	"github.com/google/uuid"

	"github.com/openedu-urfu/reportctl/edx"
	"github.com/openedu-urfu/reportctl/retry"
	"github.com/openedu-urfu/reportctl/store"
)

var (
	// ErrNoCourses indicates enumeration found nothing to process: either an
	// empty catalog or only entries without a usable ID.
	ErrNoCourses = errors.New("no courses discovered")
	// ErrAllFailed indicates every discovered course failed to trigger.
	// Partial failure is reported but is not an error.
	ErrAllFailed = errors.New("report generation failed for every course")
)

// Outcome tallies one batch run. Skipped counts catalog entries that were
// never attempted (no usable ID); they do not count as failures.
type Outcome struct {
	RunID     string
	Total     int
	Succeeded int
	Failed    int
	Skipped   int
}

// Runner composes the platform clients into a sequential batch. Courses are
// processed one at a time on purpose: parallel requests trip the platform's
// anti-automation defenses and would complicate CSRF-token freshness, since
// a single session value threads through the whole run.
type Runner struct {
	auth    *edx.Authenticator
	catalog *edx.CatalogClient
	trigger *edx.TriggerClient
	snap    *store.Snapshot
	policy  retry.Policy
	pace    time.Duration
	logger  *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithSnapshot saves the fetched catalog to the given store after a
// successful enumeration.
func WithSnapshot(snap *store.Snapshot) Option {
	return func(r *Runner) { r.snap = snap }
}

// WithPolicy sets the per-course retry policy.
func WithPolicy(p retry.Policy) Option {
	return func(r *Runner) { r.policy = p }
}

// WithPace sets the fixed delay between courses.
func WithPace(d time.Duration) Option {
	return func(r *Runner) { r.pace = d }
}

// WithRunnerLogger sets the structured logger. Defaults to slog.Default().
func WithRunnerLogger(logger *slog.Logger) Option {
	return func(r *Runner) { r.logger = logger }
}

// New creates a Runner.
func New(auth *edx.Authenticator, catalog *edx.CatalogClient, trigger *edx.TriggerClient, opts ...Option) *Runner {
	r := &Runner{
		auth:    auth,
		catalog: catalog,
		trigger: trigger,
		policy:  retry.DefaultPolicy(),
		pace:    2 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Run executes one batch. Authentication failure aborts the run; per-course
// failures are counted and do not stop subsequent courses. The returned
// error is non-nil only for the fatal outcomes: failed authentication, zero
// courses, or every course failing.
func (r *Runner) Run(ctx context.Context, username string, password *memguard.Enclave) (Outcome, error) {
	outcome := Outcome{RunID: uuid.NewString()}
	logger := r.logger.With("run_id", outcome.RunID)
	logger.Info("starting grade-report batch")

	sess, err := r.auth.Authenticate(ctx, username, password)
	if err != nil {
		return outcome, err
	}

	info := edx.Identify(ctx, sess, username, logger)
	if !info.IsStaff && !info.IsSuperuser {
		logger.Warn("user has no staff/superuser rights; instructor calls may be rejected",
			"username", info.Username)
	}

	courses := r.catalog.ListCourses(ctx, sess)
	if r.snap != nil && len(courses) > 0 {
		r.reportDrift(logger, courses)
		if err := r.snap.SaveCourses(courses, time.Now()); err != nil {
			logger.Warn("could not save catalog snapshot", "reason", err.Error())
		}
	}
	if len(courses) == 0 {
		return outcome, ErrNoCourses
	}
	outcome.Total = len(courses)

	for i, course := range courses {
		if course.ID == "" {
			logger.Warn("skipping course without an ID", "course", course.Name)
			outcome.Skipped++
			continue
		}
		logger.Info("processing course", "index", i+1, "total", len(courses),
			"course", course.Name, "course_id", course.ID)

		_, err := retry.Do(ctx, r.policy, logger, func() (edx.TriggerResult, error) {
			result, fresh, err := r.trigger.TriggerGradeReport(ctx, sess, course)
			sess = fresh
			return result, err
		})
		if err != nil {
			if ctx.Err() != nil {
				return outcome, ctx.Err()
			}
			outcome.Failed++
			logger.Error("course failed", "course", course.Name, "course_id", course.ID,
				"reason", err.Error())
			continue
		}
		outcome.Succeeded++

		if r.pace > 0 && i < len(courses)-1 {
			if err := wait(ctx, r.pace); err != nil {
				return outcome, err
			}
		}
	}

	logger.Info("batch finished", "total", outcome.Total,
		"succeeded", outcome.Succeeded, "failed", outcome.Failed, "skipped", outcome.Skipped)
	if outcome.Succeeded == 0 {
		if outcome.Failed == 0 {
			// Every entry was skipped; nothing was actually attempted.
			return outcome, ErrNoCourses
		}
		return outcome, ErrAllFailed
	}
	return outcome, nil
}

// reportDrift logs how the freshly fetched catalog differs from the
// previous snapshot. A changed catalog is normal between terms but worth
// surfacing, since it changes which report files the summary expects.
func (r *Runner) reportDrift(logger *slog.Logger, courses []edx.Course) {
	prev, fetchedAt, err := r.snap.Courses()
	if err != nil {
		return
	}
	added, removed := catalogDrift(prev, courses)
	if len(added) == 0 && len(removed) == 0 {
		return
	}
	logger.Info("catalog changed since last snapshot",
		"snapshot_from", fetchedAt.Format(time.RFC3339),
		"added", added, "removed", removed)
}

// catalogDrift returns the course IDs present only in cur (added) and only
// in prev (removed), in first-seen order.
func catalogDrift(prev, cur []edx.Course) (added, removed []string) {
	prevIDs := make(map[string]bool, len(prev))
	for _, c := range prev {
		prevIDs[c.ID] = true
	}
	curIDs := make(map[string]bool, len(cur))
	for _, c := range cur {
		curIDs[c.ID] = true
		if !prevIDs[c.ID] {
			added = append(added, c.ID)
		}
	}
	for _, c := range prev {
		if !curIDs[c.ID] {
			removed = append(removed, c.ID)
		}
	}
	return added, removed
}

func wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

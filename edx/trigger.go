package edx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Report generation is acknowledged synchronously but can take a while to
// accept, hence the long timeout. The CSV itself is produced asynchronously
// on the platform side; the acknowledgment is not a completion signal.
const defaultTriggerTimeout = 5 * time.Minute

// TriggerResult is the platform's acknowledgment of one report-generation
// request. Task status and ID are informational only.
type TriggerResult struct {
	TaskID     string
	TaskStatus string
	// Note is set when the platform acknowledged without parseable JSON:
	// the request is assumed queued but nothing more is known.
	Note string
}

// TriggerClient issues per-course report-generation requests against the
// instructor API.
type TriggerClient struct {
	auth    *Authenticator
	timeout time.Duration
	logger  *slog.Logger
}

// TriggerOption configures a TriggerClient.
type TriggerOption func(*TriggerClient)

// WithTriggerLogger sets the structured logger. Defaults to slog.Default().
func WithTriggerLogger(logger *slog.Logger) TriggerOption {
	return func(t *TriggerClient) { t.logger = logger }
}

// WithTriggerTimeout sets the acknowledgment timeout.
func WithTriggerTimeout(d time.Duration) TriggerOption {
	return func(t *TriggerClient) { t.timeout = d }
}

// NewTriggerClient creates a TriggerClient. The Authenticator is used to
// recover a lost anti-forgery token mid-run.
func NewTriggerClient(auth *Authenticator, opts ...TriggerOption) *TriggerClient {
	t := &TriggerClient{
		auth:    auth,
		timeout: defaultTriggerTimeout,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.logger == nil {
		t.logger = slog.Default()
	}
	t.logger = t.logger.With("component", "trigger")
	return t
}

// TriggerGradeReport asks the platform to generate the grade-report CSV for
// one course. It threads the Session value: callers must continue with the
// returned Session, which may carry a re-acquired anti-forgery token.
func (t *TriggerClient) TriggerGradeReport(ctx context.Context, sess Session, course Course) (TriggerResult, Session, error) {
	courseID := SanitizeCourseID(course.ID)
	t.logger.Info("triggering grade report", "course", course.Name, "course_id", courseID)

	sess, err := t.ensureToken(ctx, sess)
	if err != nil {
		return TriggerResult{}, sess, err
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	u := fmt.Sprintf("%s/courses/%s/instructor/api/calculate_grades_csv", sess.BaseURL, courseID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, strings.NewReader(""))
	if err != nil {
		return TriggerResult{}, sess, err
	}
	sess.applyAPIHeaders(req.Header)
	req.Header.Set("Content-Type", formContentType)
	req.Header.Set("Referer", fmt.Sprintf("%s/courses/%s/instructor", sess.BaseURL, courseID))

	resp, err := sess.Client().Do(req)
	if err != nil {
		return TriggerResult{}, sess, fmt.Errorf("report trigger request: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		reqErr := &RequestError{Status: resp.StatusCode, Body: string(raw)}
		if reqErr.Forbidden() {
			// Dump everything useful before the retry wrapper can mask the
			// cause: permission failures should be self-diagnosing.
			t.logPermissionDiagnostics(ctx, sess, courseID)
		}
		return TriggerResult{}, sess, reqErr
	}

	var payload struct {
		TaskStatus string `json:"task_status"`
		TaskID     string `json:"task_id"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		// The platform does not always echo JSON; a 200 still means the
		// report was queued.
		t.logger.Warn("report queued but response format unknown", "course_id", courseID)
		return TriggerResult{Note: "queued, response format unknown"}, sess, nil
	}
	t.logger.Info("report generation acknowledged", "course_id", courseID,
		"task_status", payload.TaskStatus, "task_id", payload.TaskID)
	return TriggerResult{TaskID: payload.TaskID, TaskStatus: payload.TaskStatus}, sess, nil
}

// ensureToken confirms a fresh anti-forgery token is present, recovering it
// once via the bootstrap GET before giving up.
func (t *TriggerClient) ensureToken(ctx context.Context, sess Session) (Session, error) {
	if sess.CSRFToken != "" {
		return sess, nil
	}
	t.logger.Warn("csrf token missing from session, attempting recovery")
	fresh, err := t.auth.Refresh(ctx, sess)
	if err != nil {
		return sess, err
	}
	return fresh, nil
}

func (t *TriggerClient) logPermissionDiagnostics(ctx context.Context, sess Session, courseID string) {
	missing := sess.missingRequiredCookies()
	t.logger.Error("report trigger was forbidden", "course_id", courseID,
		"missing_cookies", strings.Join(missing, ","),
		"degraded_session", sess.Degraded)
	info := Identify(ctx, sess, sess.Email, t.logger)
	t.logger.Error("permission context", "username", info.Username,
		"staff", info.IsStaff, "superuser", info.IsSuperuser)
	if !info.IsStaff && !info.IsSuperuser {
		t.logger.Error("instructor or course-admin rights are required for the instructor API")
	}
}

package edx

import (
	"fmt"
	"net/http"
)

// AuthError indicates the login handshake could not complete or the platform
// rejected the supplied credentials. It aborts the whole run: nothing can be
// done against the instructor API without a session.
type AuthError struct {
	// Reason is a human-readable explanation suitable for the run summary.
	Reason string
	// TriedEmail is the login identifier that was actually sent, when the
	// handshake got far enough to derive one. The platform requires an
	// email-shaped login even for bare usernames, so surfacing the exact
	// variant tried is the fastest way to diagnose "unknown user" failures.
	TriedEmail string
}

func (e *AuthError) Error() string {
	if e.TriedEmail != "" {
		return fmt.Sprintf("authentication failed for %s: %s", e.TriedEmail, e.Reason)
	}
	return "authentication failed: " + e.Reason
}

// RequestError is a non-2xx response from the platform, with as much of the
// body as was read. Report-trigger calls retry these; catalog pages do not.
type RequestError struct {
	Status int
	Body   string
}

func (e *RequestError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("request failed with status %d", e.Status)
	}
	return fmt.Sprintf("request failed with status %d: %s", e.Status, snippet(e.Body))
}

// Forbidden reports whether the failure was a permission error.
func (e *RequestError) Forbidden() bool {
	return e.Status == http.StatusForbidden
}

// snippet trims response bodies before they end up in errors and logs.
func snippet(s string) string {
	const max = 500
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}

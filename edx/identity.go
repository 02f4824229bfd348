package edx

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// UserInfo describes the authenticated user's identity and privileges, as
// far as the best-effort probes could determine them.
type UserInfo struct {
	Username    string
	IsStaff     bool
	IsSuperuser bool
}

const identityTimeout = 30 * time.Second

// Identify probes the platform for the current user's identity and
// staff/superuser flags. It is diagnostics only and never fails: each probe
// is best-effort, parse errors are swallowed, and when nothing answers the
// result assumes base privileges. The username is the operator-supplied one
// used as a fallback identity and for the profile-page probe.
func Identify(ctx context.Context, sess Session, username string, logger *slog.Logger) UserInfo {
	logger = logger.With("component", "identity")

	if info, ok := identityFromAPI(ctx, sess, logger); ok {
		return info
	}

	// The profile page and the admin site only load for privileged users,
	// so a 200 is a usable signal even without a parseable body.
	if probeOK(ctx, sess, sess.BaseURL+"/u/"+username) {
		logger.Info("profile page accessible, assuming staff rights", "username", username)
		return UserInfo{Username: username, IsStaff: true}
	}
	if probeOK(ctx, sess, sess.BaseURL+"/admin/") {
		logger.Info("admin site accessible, assuming superuser rights", "username", username)
		return UserInfo{Username: username, IsStaff: true, IsSuperuser: true}
	}

	logger.Warn("could not determine user privileges, assuming base rights", "username", username)
	return UserInfo{Username: username}
}

func identityFromAPI(ctx context.Context, sess Session, logger *slog.Logger) (UserInfo, bool) {
	ctx, cancel := context.WithTimeout(ctx, identityTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sess.BaseURL+"/api/user/v1/me", nil)
	if err != nil {
		return UserInfo{}, false
	}
	sess.applyAPIHeaders(req.Header)

	resp, err := sess.Client().Do(req)
	if err != nil {
		return UserInfo{}, false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return UserInfo{}, false
	}

	var payload struct {
		Username    string `json:"username"`
		IsStaff     bool   `json:"is_staff"`
		IsSuperuser bool   `json:"is_superuser"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		logger.Warn("identity endpoint returned unparseable JSON")
		return UserInfo{}, false
	}
	logger.Info("identity confirmed", "username", payload.Username,
		"staff", payload.IsStaff, "superuser", payload.IsSuperuser)
	return UserInfo{
		Username:    payload.Username,
		IsStaff:     payload.IsStaff,
		IsSuperuser: payload.IsSuperuser,
	}, true
}

func probeOK(ctx context.Context, sess Session, rawURL string) bool {
	ctx, cancel := context.WithTimeout(ctx, identityTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return false
	}
	resp, err := sess.Client().Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

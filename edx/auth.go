package edx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/awnumar/memguard"
)

// browser-flavoured User-Agent for the bootstrap GET; the login endpoint is
// the same one the web frontend uses and is fussier than a documented API.
const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

const defaultAuthTimeout = 30 * time.Second

// Authenticator performs the platform's browser-style login handshake:
// CSRF bootstrap, credentialed POST to /login_ajax, cookie verification.
type Authenticator struct {
	baseURL     string
	emailDomain string
	timeout     time.Duration
	logger      *slog.Logger
	client      *http.Client
}

// AuthOption configures an Authenticator.
type AuthOption func(*Authenticator)

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) AuthOption {
	return func(a *Authenticator) { a.logger = logger }
}

// WithHTTPClient overrides the HTTP client, primarily for tests. A cookie
// jar is installed if the client lacks one.
func WithHTTPClient(client *http.Client) AuthOption {
	return func(a *Authenticator) { a.client = client }
}

// WithTimeout sets the per-request timeout for handshake steps.
func WithTimeout(d time.Duration) AuthOption {
	return func(a *Authenticator) { a.timeout = d }
}

// NewAuthenticator creates an Authenticator for the given platform base URL.
// emailDomain is appended to bare usernames to satisfy the identity
// provider's email-shaped login requirement.
func NewAuthenticator(baseURL, emailDomain string, opts ...AuthOption) *Authenticator {
	a := &Authenticator{
		baseURL:     trimBase(baseURL),
		emailDomain: emailDomain,
		timeout:     defaultAuthTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	a.logger = a.logger.With("component", "auth")
	if a.client == nil {
		a.client = newCookieClient()
	}
	if a.client.Jar == nil {
		jar, _ := cookiejar.New(nil)
		a.client.Jar = jar
	}
	return a
}

// Authenticate runs the full login handshake and returns an authenticated
// Session. The password enclave is opened only for the duration of the login
// POST. Handshake and credential failures are *AuthError; network failures
// are returned wrapped.
func (a *Authenticator) Authenticate(ctx context.Context, username string, password *memguard.Enclave) (Session, error) {
	token, err := a.bootstrapCSRF(ctx)
	if err != nil {
		return Session{}, err
	}
	a.logger.Debug("csrf token acquired", "prefix", tokenPrefix(token))

	email := a.loginIdentifier(username)
	if email != username {
		a.logger.Info("using derived email for authentication", "email", email)
	}

	if err := a.postLogin(ctx, email, password, token); err != nil {
		return Session{}, err
	}
	a.logger.Info("login accepted", "email", email)

	sess := Session{
		BaseURL: a.baseURL,
		Email:   email,
		client:  a.client,
	}
	sess.MissingCookies = sess.missingRequiredCookies()
	if len(sess.MissingCookies) > 0 {
		sess.Degraded = true
		a.logger.Warn("session is missing required cookies; instructor calls may be rejected",
			"missing", strings.Join(sess.MissingCookies, ","))
	}

	// Login rotates the CSRF cookie; pick up the fresh value.
	if t := sess.cookieValue(cookieCSRF); t != "" {
		token = t
	}
	sess.CSRFToken = token
	return sess, nil
}

// Refresh re-issues the bootstrap GET to recover a lost anti-forgery token
// and returns a Session carrying the fresh value. The credential cookies are
// untouched.
func (a *Authenticator) Refresh(ctx context.Context, sess Session) (Session, error) {
	if err := a.getWith(ctx, sess.Client(), sess.BaseURL); err != nil {
		return sess, fmt.Errorf("csrf refresh: %w", err)
	}
	token := sess.cookieValue(cookieCSRF)
	if token == "" {
		return sess, &AuthError{Reason: "csrf token unavailable after refresh"}
	}
	fresh := sess
	fresh.CSRFToken = token
	return fresh, nil
}

// bootstrapCSRF fetches the base URL so the platform sets its initial
// cookies, then falls back to the dedicated token endpoint when no CSRF
// cookie appeared.
func (a *Authenticator) bootstrapCSRF(ctx context.Context) (string, error) {
	if err := a.getWith(ctx, a.client, a.baseURL); err != nil {
		return "", fmt.Errorf("csrf bootstrap: %w", err)
	}
	if token := a.jarCookie(cookieCSRF); token != "" {
		return token, nil
	}

	a.logger.Warn("no csrf cookie after loading the base page, falling back to the token endpoint")
	token, err := a.fetchCSRFToken(ctx)
	if err != nil {
		return "", err
	}
	a.installCSRFCookie(token)
	return token, nil
}

func (a *Authenticator) fetchCSRFToken(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/csrf/api/v1/token", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set(headerRequestedWith, ajaxMarker)
	req.Header.Set("Referer", a.baseURL+"/")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("csrf token endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &AuthError{Reason: fmt.Sprintf("csrf token unavailable (token endpoint returned %d)", resp.StatusCode)}
	}

	var payload struct {
		CSRFToken  string `json:"csrf_token"`
		CSRFTokenB string `json:"csrfToken"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", &AuthError{Reason: "csrf token unavailable (unparseable token response)"}
	}
	token := payload.CSRFToken
	if token == "" {
		token = payload.CSRFTokenB
	}
	if token == "" {
		return "", &AuthError{Reason: "csrf token unavailable (token absent from response)"}
	}
	return token, nil
}

// installCSRFCookie places a manually issued token into the jar so later
// requests carry it like a platform-set cookie.
func (a *Authenticator) installCSRFCookie(token string) {
	u, err := url.Parse(a.baseURL)
	if err != nil {
		return
	}
	a.client.Jar.SetCookies(u, []*http.Cookie{{
		Name:  cookieCSRF,
		Value: token,
		Path:  "/",
	}})
}

// loginIdentifier derives the email-shaped login the identity provider
// expects. Bare usernames get the institutional domain appended.
func (a *Authenticator) loginIdentifier(username string) string {
	if strings.Contains(username, "@") {
		return username
	}
	return username + "@" + a.emailDomain
}

// loginResult is the typed shape of the /login_ajax JSON response. Success
// is a pointer so "flag absent" is distinguishable from "flag false".
type loginResult struct {
	Success *bool  `json:"success"`
	Value   string `json:"value"`
}

func (a *Authenticator) postLogin(ctx context.Context, email string, password *memguard.Enclave, token string) error {
	buf, err := password.Open()
	if err != nil {
		return fmt.Errorf("opening password enclave: %w", err)
	}
	form := url.Values{}
	form.Set("email", email)
	form.Set("password", buf.String())
	form.Set("remember", "false")
	body := form.Encode()
	buf.Destroy()

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/login_ajax", strings.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", formContentType)
	req.Header.Set("Referer", a.baseURL+"/login")
	req.Header.Set("Origin", a.baseURL)
	req.Header.Set(headerRequestedWith, ajaxMarker)
	req.Header.Set(headerCSRF, token)

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("login request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading login response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		reason := extractErrorReason(raw)
		// Best-effort classification only: the platform's error vocabulary
		// is undocumented. When it looks like the known "unknown user"
		// message, point the operator at the exact email that was tried.
		if strings.Contains(reason, "Unknown user email or username") {
			reason += " (the identity provider requires an email-shaped login)"
		}
		return &AuthError{Reason: fmt.Sprintf("login returned status %d: %s", resp.StatusCode, reason), TriedEmail: email}
	}

	var result loginResult
	if err := json.Unmarshal(raw, &result); err != nil {
		a.logger.Warn("login response was not JSON despite a success status; continuing")
		return nil
	}
	if result.Success != nil && !*result.Success {
		reason := result.Value
		if reason == "" {
			reason = "authentication rejected without a stated reason"
		}
		return &AuthError{Reason: reason, TriedEmail: email}
	}
	return nil
}

// getWith issues a browser-style GET used for cookie bootstrap.
func (a *Authenticator) getWith(ctx context.Context, client *http.Client, rawURL string) error {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	// Only the Set-Cookie side effects matter.
	io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}

func (a *Authenticator) jarCookie(name string) string {
	u, err := url.Parse(a.baseURL)
	if err != nil {
		return ""
	}
	for _, c := range a.client.Jar.Cookies(u) {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

// extractErrorReason pulls a textual reason out of an error body, preferring
// the platform's JSON "value"/"error" fields over raw text.
func extractErrorReason(raw []byte) string {
	var payload struct {
		Value   string `json:"value"`
		ErrText string `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil {
		if payload.Value != "" {
			return payload.Value
		}
		if payload.ErrText != "" {
			return payload.ErrText
		}
	}
	return snippet(string(raw))
}

func tokenPrefix(token string) string {
	if len(token) > 10 {
		return token[:10]
	}
	return token
}

func trimBase(baseURL string) string {
	return strings.TrimRight(baseURL, "/")
}

func newCookieClient() *http.Client {
	jar, _ := cookiejar.New(nil)
	return &http.Client{Jar: jar}
}

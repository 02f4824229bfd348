package edx

import (
	"net/http"
	"net/url"
)

// Cookie names the platform sets during a successful browser-style login.
// The JWT pair (header-payload + signature) carries the signed identity; the
// session and CSRF cookies complete the cookie-auth mode.
const (
	cookieSessionID  = "sessionid"
	cookieCSRF       = "csrftoken"
	cookieJWTPayload = "edx-jwt-cookie-header-payload"
	cookieJWTSig     = "edx-jwt-cookie-signature"
)

// requiredCookies must all be present for a fully authenticated session.
// Some deployments authorize on a subset, so absence degrades rather than
// fails the session.
var requiredCookies = []string{
	cookieJWTPayload,
	cookieJWTSig,
	cookieSessionID,
	cookieCSRF,
}

const (
	headerCSRF          = "X-CSRFToken"
	headerRequestedWith = "X-Requested-With"
	headerUseJWTCookie  = "USE-JWT-COOKIE"

	ajaxMarker      = "XMLHttpRequest"
	formContentType = "application/x-www-form-urlencoded; charset=UTF-8"
	jsonAccept      = "application/json, text/javascript, */*; q=0.01"
)

// Session is the authenticated transport handle for one run. It is treated
// as an immutable value: refreshing the anti-forgery token yields a new
// Session rather than mutating this one. The underlying cookie jar is shared
// between values derived from the same login; a Session must not be used
// from concurrent goroutines.
type Session struct {
	// BaseURL of the platform, without trailing slash.
	BaseURL string
	// CSRFToken is the current anti-forgery token, sent on every
	// state-changing request. Empty on a session whose token was lost;
	// TriggerClient recovers it once before giving up.
	CSRFToken string
	// Email is the login identifier that authenticated this session.
	Email string
	// Degraded is set when one or more required cookies were absent after
	// login. Operations may still be attempted but are expected to fail
	// with a permission error.
	Degraded bool
	// MissingCookies lists the absent required cookies for diagnostics.
	MissingCookies []string

	client *http.Client
}

// AnonymousSession returns an unauthenticated Session for endpoints that do
// not require credentials, such as the public course catalog.
func AnonymousSession(baseURL string) Session {
	return Session{
		BaseURL: trimBase(baseURL),
		client:  newCookieClient(),
	}
}

// Client exposes the underlying HTTP client, whose jar holds the credential
// cookies.
func (s Session) Client() *http.Client {
	if s.client == nil {
		return http.DefaultClient
	}
	return s.client
}

// applyAPIHeaders sets the headers the platform expects on JSON/API calls:
// a JSON accept, the AJAX marker, the JSON-cookie-auth switch and the
// anti-forgery token. Cookie auth and bearer auth are mutually exclusive on
// this platform, so no Authorization header is ever emitted.
func (s Session) applyAPIHeaders(h http.Header) {
	h.Set("Accept", jsonAccept)
	h.Set(headerRequestedWith, ajaxMarker)
	h.Set(headerUseJWTCookie, "true")
	h.Set("Origin", s.BaseURL)
	if s.CSRFToken != "" {
		h.Set(headerCSRF, s.CSRFToken)
	}
}

// cookieValue returns the named cookie currently held for the platform, or
// "" when absent.
func (s Session) cookieValue(name string) string {
	if s.client == nil || s.client.Jar == nil {
		return ""
	}
	u, err := url.Parse(s.BaseURL)
	if err != nil {
		return ""
	}
	for _, c := range s.client.Jar.Cookies(u) {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

// missingRequiredCookies lists which of the required credential cookies the
// jar is lacking.
func (s Session) missingRequiredCookies() []string {
	var missing []string
	for _, name := range requiredCookies {
		if s.cookieValue(name) == "" {
			missing = append(missing, name)
		}
	}
	return missing
}

package session

import (
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

// CSRFCookieName is the double-submit cookie the API mirrors the anti-forgery
// token into. The client only ever reads it; the server sets it at login.
const CSRFCookieName = "csrf_token"

// CSRFHeaderName carries the anti-forgery token on state-changing requests.
const CSRFHeaderName = "X-CSRF-Token"

// stateChanging lists the verbs that require the anti-forgery header.
var stateChanging = map[string]bool{
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

// refreshExempt reports whether the URL targets an endpoint that must never
// enter the refresh flow, even on a 401. The auth endpoints themselves are
// terminal: a recursive refresh against them could never converge.
func refreshExempt(u *url.URL) bool {
	p := u.Path
	return strings.Contains(p, "/auth/login") ||
		strings.Contains(p, "/auth/register") ||
		strings.Contains(p, "/auth/refresh")
}

// Transport decorates every outbound request with the session's bearer token
// and, for state-changing verbs, the anti-forgery token read fresh from the
// cookie jar. On an authentication expiry it drives one refresh cycle
// through the Coordinator and replays the request once with the new token.
//
// Decoration is purely local: it reads the store and the jar, performs no
// network calls of its own, and never mutates the caller's request.
type Transport struct {
	// Base performs the actual round trip. nil means http.DefaultTransport.
	Base http.RoundTripper

	// Store supplies the bearer token for decoration.
	Store Store

	// Jar is the cookie jar holding the anti-forgery cookie. Usually the
	// owning http.Client's jar. nil disables the CSRF header.
	Jar http.CookieJar

	// Coordinator drives refresh-and-retry. nil disables the refresh flow;
	// a 401 is then returned to the caller unchanged.
	Coordinator *Coordinator

	// TokenSource switches the transport into machine-account mode: the
	// bearer comes from the source instead of the store and the refresh
	// protocol is bypassed entirely.
	TokenSource oauth2.TokenSource

	// UserAgent is attached when non-empty.
	UserAgent string

	// Logger defaults to the standard logrus logger.
	Logger *log.Logger
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func (t *Transport) logger() *log.Logger {
	if t.Logger != nil {
		return t.Logger
	}
	return log.StandardLogger()
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	token, err := t.bearerToken()
	if err != nil {
		return nil, err
	}

	attempt := req.Clone(req.Context())
	t.decorate(attempt, token)

	resp, err := t.base().RoundTrip(attempt)
	if err != nil {
		return nil, err
	}
	if !t.refreshEligible(req, resp.StatusCode) {
		return resp, nil
	}
	// Requests whose body cannot be replayed fail terminally with the
	// original 401 rather than entering a refresh they cannot use.
	if req.Body != nil && req.GetBody == nil {
		return resp, nil
	}
	drain(resp)

	newToken, err := t.Coordinator.Refresh(req.Context())
	if err != nil {
		// Callers see the refresh failure, not the original 401, so the
		// surface is a consistent session-expired error.
		return nil, err
	}

	retry, err := t.cloneForRetry(req, newToken)
	if err != nil {
		return nil, err
	}
	t.logger().Debugf("session: retrying %s %s with refreshed token", req.Method, req.URL.Path)
	// One retry only. A second 401 here is returned to the caller as-is;
	// it never starts another refresh cycle.
	return t.base().RoundTrip(retry)
}

// bearerToken resolves the token to attach: the machine-account source when
// configured, otherwise the stored access token (possibly empty).
func (t *Transport) bearerToken() (string, error) {
	if t.TokenSource != nil {
		tok, err := t.TokenSource.Token()
		if err != nil {
			return "", err
		}
		return tok.AccessToken, nil
	}
	if t.Store == nil {
		return "", nil
	}
	return t.Store.Read().AccessToken, nil
}

// refreshEligible is the failure classifier: only a 401 on a non-exempt
// endpoint of a session-authenticated (not machine-account) client enters
// the refresh flow.
func (t *Transport) refreshEligible(req *http.Request, status int) bool {
	if status != http.StatusUnauthorized {
		return false
	}
	if t.Coordinator == nil || t.TokenSource != nil {
		return false
	}
	return !refreshExempt(req.URL)
}

// decorate applies the pre-send headers to a cloned request.
func (t *Transport) decorate(req *http.Request, token string) {
	if req.Body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if t.UserAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", t.UserAgent)
	}
	if req.Header.Get("X-Request-ID") == "" {
		req.Header.Set("X-Request-ID", uuid.NewString())
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if stateChanging[req.Method] {
		if csrf := t.csrfToken(req.URL); csrf != "" {
			req.Header.Set(CSRFHeaderName, csrf)
		}
	}
}

// csrfToken reads the anti-forgery cookie from the jar, fresh on every call.
// A missing cookie yields an empty string; the server decides whether that
// is acceptable.
func (t *Transport) csrfToken(u *url.URL) string {
	if t.Jar == nil {
		return ""
	}
	for _, cookie := range t.Jar.Cookies(u) {
		if cookie.Name != CSRFCookieName {
			continue
		}
		if decoded, err := url.QueryUnescape(cookie.Value); err == nil {
			return decoded
		}
		return cookie.Value
	}
	return ""
}

// cloneForRetry rebuilds the request with a fresh body and the new token.
func (t *Transport) cloneForRetry(req *http.Request, token string) (*http.Request, error) {
	retry := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		retry.Body = body
	}
	t.decorate(retry, token)
	return retry, nil
}

// drain discards and closes a response body so the connection can be reused.
func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}

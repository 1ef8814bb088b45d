// Package crewdesk is the Go client for the CrewDesk workforce management
// API. A Client owns an authenticated session (bearer attachment, CSRF
// double-submit, transparent refresh-and-retry on expiry) and exposes thin
// typed services over the REST resources.
package crewdesk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"path"
	"time"

	"github.com/crewdesk/crewdesk-go/internal/util"
	"github.com/crewdesk/crewdesk-go/sdk/session"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

// apiPrefix is the fixed base path every resource lives under.
const apiPrefix = "/api/v1"

const defaultRequestTimeout = 30 * time.Second

// Client is a CrewDesk API client. Construct it with New; the zero value is
// not usable.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	session    *session.Session
	store      session.Store
	logger     *log.Logger

	// Auth manages login, registration, logout, and the current identity.
	Auth *AuthService
	// Tasks operates on the task board.
	Tasks *TaskService
	// Skills manages the organization skill catalog.
	Skills *SkillService
	// Predictions exposes the workload forecasting endpoints.
	Predictions *PredictionService
	// Organizations manages organization settings and membership.
	Organizations *OrganizationService
	// Reports serves the analytics dashboard data.
	Reports *ReportService
}

type options struct {
	store          session.Store
	httpClient     *http.Client
	proxyURL       string
	logger         *log.Logger
	tokenSource    oauth2.TokenSource
	userAgent      string
	refreshTimeout time.Duration
}

// Option customizes a Client.
type Option func(*options)

// WithStore selects the credential store. Defaults to an in-memory store;
// pass a session.BoltStore to survive restarts.
func WithStore(store session.Store) Option {
	return func(o *options) { o.store = store }
}

// WithHTTPClient supplies the underlying HTTP client. Its Transport becomes
// the base the session transport decorates; its Jar is replaced.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

// WithProxy routes requests through a socks5, http, or https proxy URL.
func WithProxy(proxyURL string) Option {
	return func(o *options) { o.proxyURL = proxyURL }
}

// WithLogger sets the logger used by the client and its session layer.
func WithLogger(logger *log.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithTokenSource switches the client to machine-account authentication.
// The bearer token comes from the source and the session refresh protocol
// is disabled; there is nothing to tear down when the source fails.
func WithTokenSource(ts oauth2.TokenSource) Option {
	return func(o *options) { o.tokenSource = ts }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(o *options) { o.userAgent = ua }
}

// WithRefreshTimeout bounds the refresh network call.
func WithRefreshTimeout(d time.Duration) Option {
	return func(o *options) { o.refreshTimeout = d }
}

// New builds a client for the API at baseURL (scheme and host, no path
// beyond an optional mount point).
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("crewdesk: invalid base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("crewdesk: base URL %q must include scheme and host", baseURL)
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.StandardLogger()
	}
	if o.store == nil {
		o.store = session.NewMemoryStore()
	}

	httpClient := o.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRequestTimeout}
	}
	if o.proxyURL != "" {
		httpClient = util.SetProxy(o.proxyURL, httpClient)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("crewdesk: failed to create cookie jar: %w", err)
	}
	httpClient.Jar = jar

	sess := session.NewSession(o.store, o.logger)

	refreshURL := *u
	refreshURL.Path = path.Join(refreshURL.Path, apiPrefix, "/auth/refresh")
	// The refresh call goes out on the undecorated transport so the expired
	// bearer token is never attached to it.
	bare := &http.Client{Timeout: httpClient.Timeout, Transport: httpClient.Transport, Jar: jar}
	coordinator := session.NewCoordinator(refreshURL.String(), bare, o.store, sess, o.logger)
	if o.refreshTimeout > 0 {
		coordinator.SetTimeout(o.refreshTimeout)
	}

	transport := &session.Transport{
		Base:        httpClient.Transport,
		Store:       o.store,
		Jar:         jar,
		Coordinator: coordinator,
		TokenSource: o.tokenSource,
		UserAgent:   o.userAgent,
		Logger:      o.logger,
	}
	if o.tokenSource != nil {
		transport.Coordinator = nil
	}
	httpClient.Transport = transport

	c := &Client{
		baseURL:    u,
		httpClient: httpClient,
		session:    sess,
		store:      o.store,
		logger:     o.logger,
	}
	c.Auth = &AuthService{client: c}
	c.Tasks = &TaskService{client: c}
	c.Skills = &SkillService{client: c}
	c.Predictions = &PredictionService{client: c}
	c.Organizations = &OrganizationService{client: c}
	c.Reports = &ReportService{client: c}
	return c, nil
}

// Session exposes the client's session state (authenticated flag, cached
// identity, teardown hook).
func (c *Client) Session() *session.Session {
	return c.session
}

// do issues one API call and decodes the response into out when non-nil.
// Non-2xx responses come back as *APIError; transport failures and terminal
// session failures are returned wrapped, unchanged in kind.
func (c *Client) do(ctx context.Context, method, p string, query url.Values, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("crewdesk: failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	u := *c.baseURL
	u.Path = path.Join(u.Path, apiPrefix, p)
	if query != nil {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("crewdesk: failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("crewdesk: %s %s: %w", method, p, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("crewdesk: %s %s: failed to read response: %w", method, p, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Body: data, Method: method, Path: p}
	}
	if out != nil && len(data) > 0 {
		if err = json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("crewdesk: %s %s: failed to decode response: %w", method, p, err)
		}
	}
	return nil
}

package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// defaultRefreshTimeout bounds the refresh network call. Waiters carry no
// timeout of their own; they are released when this call resolves.
const defaultRefreshTimeout = 30 * time.Second

type refreshOutcome struct {
	accessToken string
	err         error
}

// Coordinator serializes credential refresh. However many in-flight requests
// observe an expired access token, at most one network call to the refresh
// endpoint is outstanding; every other caller is parked on a waiter channel
// and receives the same outcome. The waiter list is drained and reset in the
// same critical section that clears the in-progress flag, so a caller
// arriving after one cycle resolves always starts a fresh cycle instead of
// leaking into the previous one.
type Coordinator struct {
	refreshURL string
	httpClient *http.Client
	store      Store
	session    *Session
	logger     *log.Logger
	timeout    time.Duration

	mu         sync.Mutex
	refreshing bool
	waiters    []chan refreshOutcome
}

// NewCoordinator builds a coordinator for the given refresh endpoint.
//
// httpClient must be a bare client: the refresh call is a fresh
// unauthenticated request, never decorated with the expired bearer token,
// so that the refresh endpoint cannot 401 the coordinator into recursion.
func NewCoordinator(refreshURL string, httpClient *http.Client, store Store, sess *Session, logger *log.Logger) *Coordinator {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Coordinator{
		refreshURL: refreshURL,
		httpClient: httpClient,
		store:      store,
		session:    sess,
		logger:     logger,
		timeout:    defaultRefreshTimeout,
	}
}

// SetTimeout overrides the refresh call timeout. Zero restores the default.
func (c *Coordinator) SetTimeout(d time.Duration) {
	if d <= 0 {
		d = defaultRefreshTimeout
	}
	c.timeout = d
}

// Refresh returns a fresh access token, performing or joining a refresh
// cycle as needed. The first caller of a cycle issues the network call;
// concurrent callers block until that call resolves and share its outcome.
// On failure the session is torn down and every caller receives an error
// wrapping ErrSessionExpired.
func (c *Coordinator) Refresh(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.refreshing {
		waiter := make(chan refreshOutcome, 1)
		c.waiters = append(c.waiters, waiter)
		c.mu.Unlock()
		outcome := <-waiter
		return outcome.accessToken, outcome.err
	}
	c.refreshing = true
	c.mu.Unlock()

	outcome := c.runRefresh()

	c.mu.Lock()
	waiters := c.waiters
	c.waiters = nil
	c.refreshing = false
	c.mu.Unlock()

	for _, waiter := range waiters {
		waiter <- outcome
	}
	return outcome.accessToken, outcome.err
}

// runRefresh performs one refresh cycle: exchange the stored refresh token
// for a new pair, persist it, and report the new access token. Any failure
// tears the session down first.
func (c *Coordinator) runRefresh() refreshOutcome {
	refreshToken := c.store.Read().RefreshToken
	if refreshToken == "" {
		c.logger.Debug("session: token expired with no refresh token, tearing down")
		c.session.Teardown()
		return refreshOutcome{err: ErrNoRefreshToken}
	}

	pair, err := c.exchange(refreshToken)
	if err != nil {
		c.logger.Warnf("session: refresh failed: %v", err)
		c.session.Teardown()
		return refreshOutcome{err: fmt.Errorf("%w: %v", ErrSessionExpired, err)}
	}

	if err = c.store.Write(pair.AccessToken, pair.RefreshToken); err != nil {
		c.session.Teardown()
		return refreshOutcome{err: fmt.Errorf("%w: %v", ErrSessionExpired, err)}
	}
	c.logger.Debug("session: access token refreshed")
	return refreshOutcome{accessToken: pair.AccessToken}
}

// exchange calls the refresh endpoint. It runs on a background context with
// its own timeout: the triggering request's context may already be canceled,
// and an abandoned cycle would strand every parked waiter.
func (c *Coordinator) exchange(refreshToken string) (CredentialPair, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	payload, err := json.Marshal(map[string]string{"refresh_token": refreshToken})
	if err != nil {
		return CredentialPair{}, fmt.Errorf("failed to encode refresh request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.refreshURL, bytes.NewReader(payload))
	if err != nil {
		return CredentialPair{}, fmt.Errorf("failed to create refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return CredentialPair{}, fmt.Errorf("refresh request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return CredentialPair{}, fmt.Errorf("failed to read refresh response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return CredentialPair{}, fmt.Errorf("refresh endpoint returned status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	var tokens struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err = json.Unmarshal(body, &tokens); err != nil {
		return CredentialPair{}, fmt.Errorf("failed to parse refresh response: %w", err)
	}
	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		return CredentialPair{}, fmt.Errorf("refresh endpoint returned an incomplete token pair")
	}
	return CredentialPair{AccessToken: tokens.AccessToken, RefreshToken: tokens.RefreshToken}, nil
}

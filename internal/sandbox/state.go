package sandbox

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	csrfCookieName = "csrf_token"
	csrfHeaderName = "X-CSRF-Token"
	ctxSessionKey  = "sandbox.session"
)

type user struct {
	ID           string
	Email        string
	Name         string
	PasswordHash []byte
}

type authSession struct {
	UserID       string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

type task struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status"`
	Priority    string    `json:"priority,omitempty"`
	AssigneeID  string    `json:"assignee_id,omitempty"`
	DueDate     string    `json:"due_date,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type skill struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
}

// state is the sandbox's in-memory data set. Access tokens index sessions;
// refresh tokens are single-use and rotate on every refresh.
type state struct {
	mu sync.Mutex

	tokenTTL time.Duration

	usersByEmail  map[string]*user
	usersByID     map[string]*user
	sessions      map[string]*authSession // by access token
	refreshIndex  map[string]string       // refresh token -> access token
	tasks         map[string]*task
	taskOrder     []string
	skills        map[string]*skill
	skillOrder    []string
	orgName       string
	refreshCalls  int
}

func newState(tokenTTL time.Duration) *state {
	if tokenTTL <= 0 {
		tokenTTL = 15 * time.Minute
	}
	return &state{
		tokenTTL:     tokenTTL,
		usersByEmail: make(map[string]*user),
		usersByID:    make(map[string]*user),
		sessions:     make(map[string]*authSession),
		refreshIndex: make(map[string]string),
		tasks:        make(map[string]*task),
		skills:       make(map[string]*skill),
		orgName:      "Sandbox Org",
	}
}

func (st *state) addUser(email, password, name string) (*user, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	u := &user{
		ID:           uuid.NewString(),
		Email:        strings.ToLower(strings.TrimSpace(email)),
		Name:         name,
		PasswordHash: hash,
	}
	st.mu.Lock()
	st.usersByEmail[u.Email] = u
	st.usersByID[u.ID] = u
	st.mu.Unlock()
	return u, nil
}

// seedSampleData populates a handful of tasks and skills so fresh sandboxes
// are not empty.
func (st *state) seedSampleData() {
	st.mu.Lock()
	defer st.mu.Unlock()
	samples := []*task{
		{ID: uuid.NewString(), Title: "Prepare onboarding checklist", Status: "open", Priority: "high"},
		{ID: uuid.NewString(), Title: "Review shift schedule", Status: "in_progress", Priority: "medium"},
		{ID: uuid.NewString(), Title: "Archive Q2 reports", Status: "done", Priority: "low"},
	}
	now := time.Now().UTC()
	for _, t := range samples {
		t.CreatedAt = now
		t.UpdatedAt = now
		st.tasks[t.ID] = t
		st.taskOrder = append(st.taskOrder, t.ID)
	}
	for _, name := range []string{"Scheduling", "Payroll", "Customer support"} {
		sk := &skill{ID: uuid.NewString(), Name: name}
		st.skills[sk.ID] = sk
		st.skillOrder = append(st.skillOrder, sk.ID)
	}
}

func (st *state) userExists(email string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	_, ok := st.usersByEmail[strings.ToLower(strings.TrimSpace(email))]
	return ok
}

func (st *state) authenticate(email, password string) (*user, bool) {
	st.mu.Lock()
	u, ok := st.usersByEmail[strings.ToLower(strings.TrimSpace(email))]
	st.mu.Unlock()
	if !ok {
		return nil, false
	}
	if bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)) != nil {
		return nil, false
	}
	return u, true
}

// issueSession creates a fresh token pair for the user.
func (st *state) issueSession(userID string) *authSession {
	sess := &authSession{
		UserID:       userID,
		AccessToken:  "cd_at_" + uuid.NewString(),
		RefreshToken: "cd_rt_" + uuid.NewString(),
		ExpiresAt:    time.Now().Add(st.tokenTTL),
	}
	st.mu.Lock()
	st.sessions[sess.AccessToken] = sess
	st.refreshIndex[sess.RefreshToken] = sess.AccessToken
	st.mu.Unlock()
	return sess
}

func (st *state) sessionByAccessToken(token string) (*authSession, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	sess, ok := st.sessions[token]
	if !ok || time.Now().After(sess.ExpiresAt) {
		return nil, false
	}
	return sess, true
}

// rotateRefreshToken consumes a refresh token and issues a new session.
// Refresh tokens are single-use: a replay returns false.
func (st *state) rotateRefreshToken(refreshToken string) (*authSession, bool) {
	st.mu.Lock()
	st.refreshCalls++
	accessToken, ok := st.refreshIndex[refreshToken]
	if !ok {
		st.mu.Unlock()
		return nil, false
	}
	old := st.sessions[accessToken]
	delete(st.refreshIndex, refreshToken)
	delete(st.sessions, accessToken)
	st.mu.Unlock()
	if old == nil {
		return nil, false
	}
	return st.issueSession(old.UserID), true
}

func (st *state) dropSession(accessToken string) {
	st.mu.Lock()
	if sess, ok := st.sessions[accessToken]; ok {
		delete(st.refreshIndex, sess.RefreshToken)
		delete(st.sessions, accessToken)
	}
	st.mu.Unlock()
}

func (st *state) userByID(id string) (*user, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	u, ok := st.usersByID[id]
	return u, ok
}

// ExpireAccessTokens force-expires every live access token while keeping
// refresh tokens valid. Tests use it to trigger the client's refresh flow.
func (s *Server) ExpireAccessTokens() {
	s.state.mu.Lock()
	for _, sess := range s.state.sessions {
		sess.ExpiresAt = time.Now().Add(-time.Second)
	}
	s.state.mu.Unlock()
}

// RefreshCalls reports how many times the refresh endpoint was hit.
func (s *Server) RefreshCalls() int {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	return s.state.refreshCalls
}

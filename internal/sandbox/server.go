// Package sandbox implements a self-contained CrewDesk API server for local
// development and integration testing. It honors the production wire
// contract the Go client depends on: bearer authentication, single-use
// refresh tokens rotated at POST /api/v1/auth/refresh, and CSRF
// double-submit on state-changing requests.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/crewdesk/crewdesk-go/internal/config"
	"github.com/crewdesk/crewdesk-go/internal/logging"
)

// Server is the sandbox API server.
type Server struct {
	cfg    config.SandboxConfig
	engine *gin.Engine
	server *http.Server
	state  *state
}

// NewServer builds a sandbox server with the configured seed users. Seeding
// fails only when a password cannot be hashed.
func NewServer(cfg config.SandboxConfig) (*Server, error) {
	gin.SetMode(gin.ReleaseMode)

	st := newState(time.Duration(cfg.AccessTokenTTL) * time.Second)
	for _, u := range cfg.Users {
		if _, err := st.addUser(u.Email, u.Password, u.Name); err != nil {
			return nil, fmt.Errorf("sandbox: failed to seed user %s: %w", u.Email, err)
		}
	}
	st.seedSampleData()

	engine := gin.New()
	engine.Use(logging.GinLogrusLogger())
	engine.Use(logging.GinLogrusRecovery())

	s := &Server{cfg: cfg, engine: engine, state: st}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	api := s.engine.Group("/api/v1")

	auth := api.Group("/auth")
	auth.POST("/login", s.handleLogin)
	auth.POST("/register", s.handleRegister)
	auth.POST("/refresh", s.handleRefresh)

	authed := api.Group("")
	authed.Use(s.requireBearer(), s.requireCSRF())
	authed.GET("/auth/me", s.handleMe)
	authed.POST("/auth/logout", s.handleLogout)

	authed.GET("/tasks", s.handleListTasks)
	authed.POST("/tasks", s.handleCreateTask)
	authed.GET("/tasks/:id", s.handleGetTask)
	authed.PATCH("/tasks/:id", s.handleUpdateTask)
	authed.DELETE("/tasks/:id", s.handleDeleteTask)

	authed.GET("/skills", s.handleListSkills)
	authed.POST("/skills", s.handleCreateSkill)
	authed.DELETE("/skills/:id", s.handleDeleteSkill)

	authed.POST("/predictions/forecast", s.handleForecast)

	authed.GET("/organizations/current", s.handleGetOrganization)
	authed.PATCH("/organizations/current", s.handleUpdateOrganization)
	authed.GET("/organizations/current/members", s.handleListMembers)

	authed.GET("/reports/dashboard", s.handleDashboard)
}

// Handler exposes the routing engine, mainly for httptest servers.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until the context is canceled.
func (s *Server) Run(ctx context.Context) error {
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.cfg.Port),
		Handler: s.engine,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.ListenAndServe()
	}()
	log.Infof("sandbox API listening on port %d", s.cfg.Port)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// requireBearer authenticates the request from the Authorization header.
func (s *Server) requireBearer() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			abortMessage(c, http.StatusUnauthorized, "Missing bearer token")
			return
		}
		sess, ok := s.state.sessionByAccessToken(token)
		if !ok {
			abortMessage(c, http.StatusUnauthorized, "Invalid or expired token")
			return
		}
		c.Set(ctxSessionKey, sess)
		c.Next()
	}
}

// requireCSRF enforces the double-submit check on state-changing verbs: the
// X-CSRF-Token header must match the csrf_token cookie issued at login.
func (s *Server) requireCSRF() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		default:
			c.Next()
			return
		}
		cookie, err := c.Cookie(csrfCookieName)
		if err != nil || cookie == "" {
			abortMessage(c, http.StatusForbidden, "Missing CSRF token")
			return
		}
		if c.GetHeader(csrfHeaderName) != cookie {
			abortMessage(c, http.StatusForbidden, "CSRF token mismatch")
			return
		}
		c.Next()
	}
}

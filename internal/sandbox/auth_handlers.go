package sandbox

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

func bearerToken(header string) string {
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func abortMessage(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"message": message})
}

// abortValidation renders a FastAPI-style validation error list, the shape
// the dashboard's error mapper expects for 422 responses.
func abortValidation(c *gin.Context, field, message string) {
	c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{
		"detail": []gin.H{
			{"loc": []string{"body", field}, "msg": message, "type": "value_error"},
		},
	})
}

type identityPayload struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

func (s *Server) grantPayload(sess *authSession) gin.H {
	u, _ := s.state.userByID(sess.UserID)
	payload := gin.H{
		"access_token":  sess.AccessToken,
		"refresh_token": sess.RefreshToken,
	}
	if u != nil {
		payload["user"] = identityPayload{ID: u.ID, Email: u.Email, Name: u.Name}
	}
	return payload
}

// setCSRFCookie mirrors the anti-forgery token into a cookie the browser
// (and the Go client's jar) can read back. It is deliberately not HttpOnly:
// the double-submit scheme requires the client to echo it in a header.
func setCSRFCookie(c *gin.Context, value string) {
	c.SetCookie(csrfCookieName, value, 0, "/", "", false, false)
}

func (s *Server) handleLogin(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortValidation(c, "body", "Invalid request body")
		return
	}
	if req.Email == "" {
		abortValidation(c, "email", "Email is required")
		return
	}
	u, ok := s.state.authenticate(req.Email, req.Password)
	if !ok {
		abortMessage(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	sess := s.state.issueSession(u.ID)
	setCSRFCookie(c, "csrf-"+sess.AccessToken[len(sess.AccessToken)-12:])
	c.JSON(http.StatusOK, s.grantPayload(sess))
}

func (s *Server) handleRegister(c *gin.Context) {
	var req struct {
		Email            string `json:"email"`
		Password         string `json:"password"`
		Name             string `json:"name"`
		OrganizationName string `json:"organization_name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortValidation(c, "body", "Invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		abortValidation(c, "email", "Email and password are required")
		return
	}
	if s.state.userExists(req.Email) {
		abortMessage(c, http.StatusConflict, "An account with this email already exists")
		return
	}
	u, err := s.state.addUser(req.Email, req.Password, req.Name)
	if err != nil {
		abortMessage(c, http.StatusInternalServerError, "Failed to create account")
		return
	}
	if req.OrganizationName != "" {
		s.state.mu.Lock()
		s.state.orgName = req.OrganizationName
		s.state.mu.Unlock()
	}
	sess := s.state.issueSession(u.ID)
	setCSRFCookie(c, "csrf-"+sess.AccessToken[len(sess.AccessToken)-12:])
	c.JSON(http.StatusCreated, s.grantPayload(sess))
}

func (s *Server) handleRefresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		abortValidation(c, "refresh_token", "Refresh token is required")
		return
	}
	sess, ok := s.state.rotateRefreshToken(req.RefreshToken)
	if !ok {
		abortMessage(c, http.StatusUnauthorized, "Invalid refresh token")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token":  sess.AccessToken,
		"refresh_token": sess.RefreshToken,
	})
}

func (s *Server) handleMe(c *gin.Context) {
	sess := c.MustGet(ctxSessionKey).(*authSession)
	u, ok := s.state.userByID(sess.UserID)
	if !ok {
		abortMessage(c, http.StatusNotFound, "Not found")
		return
	}
	c.JSON(http.StatusOK, identityPayload{ID: u.ID, Email: u.Email, Name: u.Name})
}

func (s *Server) handleLogout(c *gin.Context) {
	sess := c.MustGet(ctxSessionKey).(*authSession)
	s.state.dropSession(sess.AccessToken)
	c.Status(http.StatusNoContent)
}

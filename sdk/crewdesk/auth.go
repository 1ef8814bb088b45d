package crewdesk

import (
	"context"
	"net/http"

	"github.com/crewdesk/crewdesk-go/sdk/session"
)

// AuthService manages the authentication lifecycle: login, registration,
// logout, and the signed-in identity.
type AuthService struct {
	client *Client
}

// tokenGrant is the body returned by the login, register, and refresh
// endpoints.
type tokenGrant struct {
	AccessToken  string           `json:"access_token"`
	RefreshToken string           `json:"refresh_token"`
	User         session.Identity `json:"user"`
}

// RegisterRequest creates a new account and organization.
type RegisterRequest struct {
	Email            string `json:"email"`
	Password         string `json:"password"`
	Name             string `json:"name"`
	OrganizationName string `json:"organization_name,omitempty"`
}

// Login exchanges credentials for a session. On success the token pair is
// persisted through the credential store and the server's anti-forgery
// cookie lands in the client's jar.
func (s *AuthService) Login(ctx context.Context, email, password string) (*session.Identity, error) {
	body := map[string]string{"email": email, "password": password}
	var grant tokenGrant
	if err := s.client.do(ctx, http.MethodPost, "/auth/login", nil, body, &grant); err != nil {
		return nil, err
	}
	return s.establish(grant)
}

// Register creates an account and signs it in.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*session.Identity, error) {
	var grant tokenGrant
	if err := s.client.do(ctx, http.MethodPost, "/auth/register", nil, req, &grant); err != nil {
		return nil, err
	}
	return s.establish(grant)
}

func (s *AuthService) establish(grant tokenGrant) (*session.Identity, error) {
	if err := s.client.session.Establish(grant.AccessToken, grant.RefreshToken); err != nil {
		return nil, err
	}
	s.client.session.SetIdentity(grant.User)
	identity := grant.User
	return &identity, nil
}

// Me fetches the current user and refreshes the cached identity.
func (s *AuthService) Me(ctx context.Context) (*session.Identity, error) {
	var identity session.Identity
	if err := s.client.do(ctx, http.MethodGet, "/auth/me", nil, nil, &identity); err != nil {
		return nil, err
	}
	s.client.session.SetIdentity(identity)
	return &identity, nil
}

// Logout revokes the session server-side and tears the local session down.
// Local teardown happens even when the revoke call fails; the returned
// error reports the server-side outcome.
func (s *AuthService) Logout(ctx context.Context) error {
	err := s.client.do(ctx, http.MethodPost, "/auth/logout", nil, nil, nil)
	s.client.session.Teardown()
	return err
}

package crewdesk

import (
	"context"
	"net/http"
)

// OrganizationService manages organization settings and membership.
type OrganizationService struct {
	client *Client
}

// Organization is the tenant the signed-in user belongs to.
type Organization struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Plan string `json:"plan,omitempty"`
}

// Member is a user's membership in the organization.
type Member struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name,omitempty"`
	Role   string `json:"role"`
}

// Get returns the current organization.
func (s *OrganizationService) Get(ctx context.Context) (*Organization, error) {
	var org Organization
	if err := s.client.do(ctx, http.MethodGet, "/organizations/current", nil, nil, &org); err != nil {
		return nil, err
	}
	return &org, nil
}

// Update renames the organization.
func (s *OrganizationService) Update(ctx context.Context, name string) (*Organization, error) {
	var org Organization
	body := map[string]string{"name": name}
	if err := s.client.do(ctx, http.MethodPatch, "/organizations/current", nil, body, &org); err != nil {
		return nil, err
	}
	return &org, nil
}

// ListMembers returns the organization roster.
func (s *OrganizationService) ListMembers(ctx context.Context) ([]Member, error) {
	var members []Member
	if err := s.client.do(ctx, http.MethodGet, "/organizations/current/members", nil, nil, &members); err != nil {
		return nil, err
	}
	return members, nil
}

package crewdesk

import (
	"context"
	"net/http"
)

// SkillService manages the organization skill catalog.
type SkillService struct {
	client *Client
}

// Skill is a capability that can be attached to team members and tasks.
type Skill struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
}

// List returns all skills.
func (s *SkillService) List(ctx context.Context) ([]Skill, error) {
	var skills []Skill
	if err := s.client.do(ctx, http.MethodGet, "/skills", nil, nil, &skills); err != nil {
		return nil, err
	}
	return skills, nil
}

// Create adds a skill to the catalog.
func (s *SkillService) Create(ctx context.Context, name, category string) (*Skill, error) {
	body := map[string]string{"name": name}
	if category != "" {
		body["category"] = category
	}
	var skill Skill
	if err := s.client.do(ctx, http.MethodPost, "/skills", nil, body, &skill); err != nil {
		return nil, err
	}
	return &skill, nil
}

// Delete removes a skill.
func (s *SkillService) Delete(ctx context.Context, id string) error {
	return s.client.do(ctx, http.MethodDelete, "/skills/"+id, nil, nil, nil)
}

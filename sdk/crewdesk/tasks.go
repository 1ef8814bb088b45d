package crewdesk

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// TaskService operates on the task board.
type TaskService struct {
	client *Client
}

// Task is a unit of work on the board.
type Task struct {
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

// TaskCreate is the payload for creating a task.
type TaskCreate struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Priority    string `json:"priority,omitempty"`
	AssigneeID  string `json:"assignee_id,omitempty"`
	DueDate     string `json:"due_date,omitempty"`
}

// TaskUpdate is the payload for a partial task update. Nil fields are left
// unchanged.
type TaskUpdate struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty"`
	Priority    *string `json:"priority,omitempty"`
	AssigneeID  *string `json:"assignee_id,omitempty"`
	DueDate     *string `json:"due_date,omitempty"`
}

// TaskListOptions filters List.
type TaskListOptions struct {
	Status     string
	AssigneeID string
	Page       int
	PageSize   int
}

func (o *TaskListOptions) values() url.Values {
	if o == nil {
		return nil
	}
	q := url.Values{}
	if o.Status != "" {
		q.Set("status", o.Status)
	}
	if o.AssigneeID != "" {
		q.Set("assignee_id", o.AssigneeID)
	}
	if o.Page > 0 {
		q.Set("page", strconv.Itoa(o.Page))
	}
	if o.PageSize > 0 {
		q.Set("page_size", strconv.Itoa(o.PageSize))
	}
	return q
}

// List returns tasks matching opts.
func (s *TaskService) List(ctx context.Context, opts *TaskListOptions) ([]Task, error) {
	var tasks []Task
	if err := s.client.do(ctx, http.MethodGet, "/tasks", opts.values(), nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// Get returns one task by ID.
func (s *TaskService) Get(ctx context.Context, id string) (*Task, error) {
	var task Task
	if err := s.client.do(ctx, http.MethodGet, "/tasks/"+id, nil, nil, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// Create adds a task to the board.
func (s *TaskService) Create(ctx context.Context, req TaskCreate) (*Task, error) {
	var task Task
	if err := s.client.do(ctx, http.MethodPost, "/tasks", nil, req, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// Update applies a partial update.
func (s *TaskService) Update(ctx context.Context, id string, req TaskUpdate) (*Task, error) {
	var task Task
	if err := s.client.do(ctx, http.MethodPatch, "/tasks/"+id, nil, req, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// Delete removes a task.
func (s *TaskService) Delete(ctx context.Context, id string) error {
	return s.client.do(ctx, http.MethodDelete, "/tasks/"+id, nil, nil, nil)
}

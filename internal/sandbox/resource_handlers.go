package sandbox

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func (s *Server) handleListTasks(c *gin.Context) {
	status := c.Query("status")
	assignee := c.Query("assignee_id")

	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	out := make([]*task, 0, len(s.state.taskOrder))
	for _, id := range s.state.taskOrder {
		t := s.state.tasks[id]
		if t == nil {
			continue
		}
		if status != "" && t.Status != status {
			continue
		}
		if assignee != "" && t.AssigneeID != assignee {
			continue
		}
		out = append(out, t)
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleGetTask(c *gin.Context) {
	s.state.mu.Lock()
	t, ok := s.state.tasks[c.Param("id")]
	s.state.mu.Unlock()
	if !ok {
		abortMessage(c, http.StatusNotFound, "Task not found")
		return
	}
	c.JSON(http.StatusOK, t)
}

func (s *Server) handleCreateTask(c *gin.Context) {
	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Priority    string `json:"priority"`
		AssigneeID  string `json:"assignee_id"`
		DueDate     string `json:"due_date"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortValidation(c, "body", "Invalid request body")
		return
	}
	if req.Title == "" {
		abortValidation(c, "title", "Title is required")
		return
	}
	now := time.Now().UTC()
	t := &task{
		ID:          uuid.NewString(),
		Title:       req.Title,
		Description: req.Description,
		Status:      "open",
		Priority:    req.Priority,
		AssigneeID:  req.AssigneeID,
		DueDate:     req.DueDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.state.mu.Lock()
	s.state.tasks[t.ID] = t
	s.state.taskOrder = append(s.state.taskOrder, t.ID)
	s.state.mu.Unlock()
	c.JSON(http.StatusCreated, t)
}

func (s *Server) handleUpdateTask(c *gin.Context) {
	var req struct {
		Title       *string `json:"title"`
		Description *string `json:"description"`
		Status      *string `json:"status"`
		Priority    *string `json:"priority"`
		AssigneeID  *string `json:"assignee_id"`
		DueDate     *string `json:"due_date"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortValidation(c, "body", "Invalid request body")
		return
	}
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	t, ok := s.state.tasks[c.Param("id")]
	if !ok {
		abortMessage(c, http.StatusNotFound, "Task not found")
		return
	}
	if req.Title != nil {
		t.Title = *req.Title
	}
	if req.Description != nil {
		t.Description = *req.Description
	}
	if req.Status != nil {
		t.Status = *req.Status
	}
	if req.Priority != nil {
		t.Priority = *req.Priority
	}
	if req.AssigneeID != nil {
		t.AssigneeID = *req.AssigneeID
	}
	if req.DueDate != nil {
		t.DueDate = *req.DueDate
	}
	t.UpdatedAt = time.Now().UTC()
	c.JSON(http.StatusOK, t)
}

func (s *Server) handleDeleteTask(c *gin.Context) {
	id := c.Param("id")
	s.state.mu.Lock()
	_, ok := s.state.tasks[id]
	if ok {
		delete(s.state.tasks, id)
		for i, existing := range s.state.taskOrder {
			if existing == id {
				s.state.taskOrder = append(s.state.taskOrder[:i], s.state.taskOrder[i+1:]...)
				break
			}
		}
	}
	s.state.mu.Unlock()
	if !ok {
		abortMessage(c, http.StatusNotFound, "Task not found")
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleListSkills(c *gin.Context) {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	out := make([]*skill, 0, len(s.state.skillOrder))
	for _, id := range s.state.skillOrder {
		if sk := s.state.skills[id]; sk != nil {
			out = append(out, sk)
		}
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleCreateSkill(c *gin.Context) {
	var req struct {
		Name     string `json:"name"`
		Category string `json:"category"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" {
		abortValidation(c, "name", "Name is required")
		return
	}
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	for _, id := range s.state.skillOrder {
		if sk := s.state.skills[id]; sk != nil && sk.Name == req.Name {
			abortMessage(c, http.StatusConflict, "Skill already exists")
			return
		}
	}
	sk := &skill{ID: uuid.NewString(), Name: req.Name, Category: req.Category}
	s.state.skills[sk.ID] = sk
	s.state.skillOrder = append(s.state.skillOrder, sk.ID)
	c.JSON(http.StatusCreated, sk)
}

func (s *Server) handleDeleteSkill(c *gin.Context) {
	id := c.Param("id")
	s.state.mu.Lock()
	_, ok := s.state.skills[id]
	if ok {
		delete(s.state.skills, id)
		for i, existing := range s.state.skillOrder {
			if existing == id {
				s.state.skillOrder = append(s.state.skillOrder[:i], s.state.skillOrder[i+1:]...)
				break
			}
		}
	}
	s.state.mu.Unlock()
	if !ok {
		abortMessage(c, http.StatusNotFound, "Skill not found")
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleForecast(c *gin.Context) {
	var req struct {
		TaskID     string `json:"task_id"`
		AssigneeID string `json:"assignee_id"`
		HorizonDay int    `json:"horizon_days"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortValidation(c, "body", "Invalid request body")
		return
	}
	horizon := req.HorizonDay
	if horizon <= 0 {
		horizon = 7
	}
	// The sandbox has no model; it projects a flat estimate from the open
	// task count so clients get stable, plausible numbers.
	s.state.mu.Lock()
	open := 0
	for _, t := range s.state.tasks {
		if t.Status != "done" {
			open++
		}
	}
	s.state.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{
		"task_id":              req.TaskID,
		"estimated_completion": time.Now().UTC().AddDate(0, 0, horizon).Format("2006-01-02"),
		"confidence":           0.5,
		"at_risk":              open > 5,
	})
}

func (s *Server) handleGetOrganization(c *gin.Context) {
	s.state.mu.Lock()
	name := s.state.orgName
	s.state.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"id": "org-sandbox", "name": name, "plan": "sandbox"})
}

func (s *Server) handleUpdateOrganization(c *gin.Context) {
	var req struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" {
		abortValidation(c, "name", "Name is required")
		return
	}
	s.state.mu.Lock()
	s.state.orgName = req.Name
	s.state.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"id": "org-sandbox", "name": req.Name, "plan": "sandbox"})
}

func (s *Server) handleListMembers(c *gin.Context) {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	out := make([]gin.H, 0, len(s.state.usersByID))
	for _, u := range s.state.usersByID {
		out = append(out, gin.H{"user_id": u.ID, "email": u.Email, "name": u.Name, "role": "member"})
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleDashboard(c *gin.Context) {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	byStatus := map[string]int{}
	for _, t := range s.state.tasks {
		byStatus[t.Status]++
	}
	c.JSON(http.StatusOK, gin.H{
		"open_tasks":      byStatus["open"],
		"in_progress":     byStatus["in_progress"],
		"completed_tasks": byStatus["done"],
		"overdue_tasks":   0,
		"tasks_by_status": byStatus,
	})
}

package crewdesk

import (
	"context"
	"net/http"
)

// ReportService serves the analytics dashboard data.
type ReportService struct {
	client *Client
}

// DashboardReport is the aggregate view behind the dashboard page.
type DashboardReport struct {
	OpenTasks      int            `json:"open_tasks"`
	InProgress     int            `json:"in_progress"`
	CompletedTasks int            `json:"completed_tasks"`
	OverdueTasks   int            `json:"overdue_tasks"`
	TasksByStatus  map[string]int `json:"tasks_by_status,omitempty"`
}

// Dashboard returns the aggregate dashboard report.
func (s *ReportService) Dashboard(ctx context.Context) (*DashboardReport, error) {
	var report DashboardReport
	if err := s.client.do(ctx, http.MethodGet, "/reports/dashboard", nil, nil, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

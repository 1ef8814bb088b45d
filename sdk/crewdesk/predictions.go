package crewdesk

import (
	"context"
	"net/http"
)

// PredictionService exposes the workload forecasting endpoints.
type PredictionService struct {
	client *Client
}

// ForecastRequest scopes a forecast to a task or an assignee.
type ForecastRequest struct {
	TaskID     string `json:"task_id,omitempty"`
	AssigneeID string `json:"assignee_id,omitempty"`
	HorizonDay int    `json:"horizon_days,omitempty"`
}

// Forecast is the predicted completion outlook.
type Forecast struct {
	TaskID              string  `json:"task_id,omitempty"`
	EstimatedCompletion string  `json:"estimated_completion"`
	Confidence          float64 `json:"confidence"`
	AtRisk              bool    `json:"at_risk"`
}

// Forecast requests a completion forecast.
func (s *PredictionService) Forecast(ctx context.Context, req ForecastRequest) (*Forecast, error) {
	var forecast Forecast
	if err := s.client.do(ctx, http.MethodPost, "/predictions/forecast", nil, req, &forecast); err != nil {
		return nil, err
	}
	return &forecast, nil
}

package handler

import (
	"github.com/damon-houk/exchange-rate-chart/internal/application/series"
	"github.com/damon-houk/exchange-rate-chart/internal/domain/entity"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error       string `json:"error"`
	Status      int    `json:"status"`
	Description string `json:"description,omitempty"`
	RequestID   string `json:"request_id,omitempty"`
}

// HealthResponse represents the response for the health endpoint
type HealthResponse struct {
	Status string `json:"status"`
}

// CurrenciesResponse represents the response for the currency listing endpoint
type CurrenciesResponse struct {
	Currencies []string `json:"currencies"`
}

// PointResponse is one plotted point with its X axis tick label
type PointResponse struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	XLabel string  `json:"x_label"`
}

// AxisResponse is the displayed range of one axis
type AxisResponse struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// SeriesResponse represents a chart series. Axes are null when there is no data.
type SeriesResponse struct {
	Currency    string          `json:"currency"`
	Label       string          `json:"label"`
	StartMillis int64           `json:"start_millis"`
	EndMillis   int64           `json:"end_millis"`
	Points      []PointResponse `json:"points"`
	XAxis       *AxisResponse   `json:"x_axis"`
	YAxis       *AxisResponse   `json:"y_axis"`
}

// SessionRequest is a parameter change sent by a WebSocket client. Dates are YYYY-MM-DD.
type SessionRequest struct {
	Currency string `json:"currency"`
	Start    string `json:"start"`
	End      string `json:"end"`
}

// SessionUpdate is pushed to a WebSocket client when its latest request completes
type SessionUpdate struct {
	Seq    uint64          `json:"seq"`
	Series *SeriesResponse `json:"series,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// NewSeriesResponse converts a series for the wire
func NewSeriesResponse(s *entity.Series) *SeriesResponse {
	if s == nil {
		return nil
	}

	points := make([]PointResponse, 0, len(s.Points))
	for _, p := range s.Points {
		points = append(points, PointResponse{X: p.X, Y: p.Y, XLabel: series.HourLabel(p.X)})
	}

	return &SeriesResponse{
		Currency:    s.Params.Currency,
		Label:       s.Label,
		StartMillis: s.Params.StartMillis,
		EndMillis:   s.Params.EndMillis,
		Points:      points,
		XAxis:       newAxisResponse(s.XAxis),
		YAxis:       newAxisResponse(s.YAxis),
	}
}

func newAxisResponse(r *entity.AxisRange) *AxisResponse {
	if r == nil {
		return nil
	}
	return &AxisResponse{Min: r.Min, Max: r.Max}
}

package gateway

import (
	"time"

	"bandrebalance/internal/backtest"
	"bandrebalance/internal/model"
	"bandrebalance/internal/portfolio"
	"bandrebalance/internal/report"
)

// BacktestResponse is the REST response type for /api/backtest.
type BacktestResponse struct {
	RunID     string              `json:"run_id"`
	Symbol    string              `json:"symbol"`
	Params    backtest.Params     `json:"params"`
	Summary   portfolio.Summary   `json:"summary"`
	Points    []model.ResultPoint `json:"points"`
	Events    []model.Event       `json:"events"`
	Markers   []report.Marker     `json:"markers"`
	Published bool                `json:"published"`
}

// Stream message types sent over /ws/backtest.
const (
	MsgPoint   = "point"
	MsgSummary = "summary"
	MsgError   = "error"
)

// StreamMessage is one WebSocket frame of a streamed backtest.
type StreamMessage struct {
	Type    string             `json:"type"`
	Seq     int                `json:"seq"`
	RunID   string             `json:"run_id,omitempty"`
	Date    *time.Time         `json:"date,omitempty"`
	Point   *model.ResultPoint `json:"point,omitempty"`
	Event   model.Side         `json:"event,omitempty"`
	Summary *portfolio.Summary `json:"summary,omitempty"`
	Error   string             `json:"error,omitempty"`
}

type errorBody struct {
	Error string `json:"error"`
}

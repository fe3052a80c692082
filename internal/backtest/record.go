package backtest

import (
	"time"

	"bandrebalance/internal/model"
)

// Record is a finished run tagged for storage and publishing.
type Record struct {
	RunID     string    `json:"run_id"`
	Symbol    string    `json:"symbol"`
	CreatedAt time.Time `json:"created_at"`
	Result    *Result   `json:"result"`
}

// NewRecord tags res with a run id and symbol.
func NewRecord(runID, symbol string, res *Result, createdAt time.Time) *Record {
	return &Record{RunID: runID, Symbol: symbol, CreatedAt: createdAt.UTC(), Result: res}
}

// SplitEvents separates an event series into buy and sell dates.
func SplitEvents(events []model.Event) (buys, sells []time.Time) {
	buys, sells = []time.Time{}, []time.Time{}
	for _, e := range events {
		switch e.Side {
		case model.SideBuy:
			buys = append(buys, e.Date)
		case model.SideSell:
			sells = append(sells, e.Date)
		}
	}
	return buys, sells
}

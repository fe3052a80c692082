package model

import "time"

// Side is the direction of a rebalancing trade.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Event marks the date on which a rebalancing trade executed.
type Event struct {
	Date time.Time `json:"date"`
	Side Side      `json:"side"`
}

// ResultPoint is one simulated day of portfolio state after any trade.
type ResultPoint struct {
	Date         time.Time `json:"date"`
	TotalValue   float64   `json:"total_value"`
	EquityWeight float64   `json:"equity_weight"` // shares value / total value
}

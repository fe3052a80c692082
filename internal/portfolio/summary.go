package portfolio

import (
	"time"

	"bandrebalance/internal/model"
)

// Summary rolls up a finished result series.
type Summary struct {
	StartDate         time.Time `json:"start_date"`
	EndDate           time.Time `json:"end_date"`
	Days              int       `json:"days"`
	InitialValue      float64   `json:"initial_value"`
	FinalValue        float64   `json:"final_value"`
	TotalReturn       float64   `json:"total_return"`    // fraction, 0.1 = +10%
	BuyHoldReturn     float64   `json:"buy_hold_return"` // close-to-close over the same window
	MaxDrawdown       float64   `json:"max_drawdown"`    // fraction of peak, >= 0
	FinalEquityWeight float64   `json:"final_equity_weight"`
	Buys              int       `json:"buys"`
	Sells             int       `json:"sells"`
}

// Summarize computes return, drawdown and trade counts from the core output.
// initialValue is the seeded portfolio value; firstClose and lastClose bound
// the buy-and-hold comparison.
func Summarize(points []model.ResultPoint, events []model.Event, initialValue, firstClose, lastClose float64) Summary {
	s := Summary{
		Days:         len(points),
		InitialValue: initialValue,
		FinalValue:   initialValue,
	}
	for _, e := range events {
		switch e.Side {
		case model.SideBuy:
			s.Buys++
		case model.SideSell:
			s.Sells++
		}
	}
	if firstClose > 0 {
		s.BuyHoldReturn = lastClose/firstClose - 1
	}
	if len(points) == 0 {
		return s
	}

	s.StartDate = points[0].Date
	s.EndDate = points[len(points)-1].Date
	last := points[len(points)-1]
	s.FinalValue = last.TotalValue
	s.FinalEquityWeight = last.EquityWeight
	if initialValue > 0 {
		s.TotalReturn = s.FinalValue/initialValue - 1
	}

	peak := initialValue
	for _, p := range points {
		if p.TotalValue > peak {
			peak = p.TotalValue
		}
		if peak > 0 {
			if dd := (peak - p.TotalValue) / peak; dd > s.MaxDrawdown {
				s.MaxDrawdown = dd
			}
		}
	}
	return s
}

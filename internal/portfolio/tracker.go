package portfolio

import (
	"time"

	"bandrebalance/internal/model"
)

// Tracker records the daily value series and the trade event log.
type Tracker struct {
	points []model.ResultPoint
	events []model.Event
	buys   []time.Time
	sells  []time.Time
}

// NewTracker creates a tracker sized for the expected number of days.
func NewTracker(days int) *Tracker {
	if days < 0 {
		days = 0
	}
	return &Tracker{
		points: make([]model.ResultPoint, 0, days),
	}
}

// Record appends the portfolio state at the day's close.
func (t *Tracker) Record(date time.Time, pf *Portfolio, price float64) model.ResultPoint {
	pt := model.ResultPoint{
		Date:         date,
		TotalValue:   pf.Value(price),
		EquityWeight: pf.EquityWeight(price),
	}
	t.points = append(t.points, pt)
	return pt
}

// RecordEvent appends a trade to the event log.
func (t *Tracker) RecordEvent(date time.Time, side model.Side) {
	t.events = append(t.events, model.Event{Date: date, Side: side})
	switch side {
	case model.SideBuy:
		t.buys = append(t.buys, date)
	case model.SideSell:
		t.sells = append(t.sells, date)
	}
}

// Points returns a copy of the recorded value series.
func (t *Tracker) Points() []model.ResultPoint {
	cp := make([]model.ResultPoint, len(t.points))
	copy(cp, t.points)
	return cp
}

// Events returns a copy of the event log in execution order.
func (t *Tracker) Events() []model.Event {
	cp := make([]model.Event, len(t.events))
	copy(cp, t.events)
	return cp
}

// Buys returns the BUY event dates in order.
func (t *Tracker) Buys() []time.Time {
	cp := make([]time.Time, len(t.buys))
	copy(cp, t.buys)
	return cp
}

// Sells returns the SELL event dates in order.
func (t *Tracker) Sells() []time.Time {
	cp := make([]time.Time, len(t.sells))
	copy(cp, t.sells)
	return cp
}

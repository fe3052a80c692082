package backtest

import (
	"time"

	"bandrebalance/internal/indicator"
	"bandrebalance/internal/model"
	"bandrebalance/internal/portfolio"
	"bandrebalance/internal/strategy"
)

// Result is the full output of one run.
type Result struct {
	Params  Params              `json:"params"`
	Bands   []model.BandedBar   `json:"-"`
	Points  []model.ResultPoint `json:"points"`
	Events  []model.Event       `json:"events"`
	Buys    []time.Time         `json:"buys"`
	Sells   []time.Time         `json:"sells"`
	Summary portfolio.Summary   `json:"summary"`
}

// Run validates bars and simulates the strategy over them.
//
// Fewer than WindowSize bars (or a single valid day) is not an error: the
// result simply has no points and no events.
func Run(bars []model.DailyBar, p Params) (*Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := ValidateBars(bars); err != nil {
		return nil, err
	}

	days := indicator.ComputeBands(bars, p.WindowSize, p.BandMultiplier)
	res := &Result{
		Params: p,
		Bands:  days,
		Points: []model.ResultPoint{},
		Events: []model.Event{},
		Buys:   []time.Time{},
		Sells:  []time.Time{},
	}
	if len(days) < 2 {
		res.Summary = portfolio.Summarize(nil, nil, p.InitialCash, 0, 0)
		return res, nil
	}

	// Day 0 only seeds the book; the state machine needs a "yesterday".
	pf := portfolio.New(p.InitialCash, p.InitialAllocation, days[0].Close)
	sm := strategy.NewSignalMachine()
	rb := portfolio.NewRebalancer(p.RebalanceTarget)
	tr := portfolio.NewTracker(len(days) - 1)

	for i := 1; i < len(days); i++ {
		prev, today := &days[i-1], &days[i]

		sm.Observe(prev.Close, prev.Bands)
		if side, ok := rb.Step(pf, sm, *today); ok {
			tr.RecordEvent(today.Date, side)
		}
		tr.Record(today.Date, pf, today.Close)
	}

	res.Points = tr.Points()
	res.Events = tr.Events()
	res.Buys = tr.Buys()
	res.Sells = tr.Sells()
	res.Summary = portfolio.Summarize(res.Points, res.Events, p.InitialCash, days[0].Close, days[len(days)-1].Close)
	return res, nil
}

package portfolio

import (
	"bandrebalance/internal/model"
	"bandrebalance/internal/strategy"
)

// Rebalancer executes a pending signal once price re-enters the envelope.
type Rebalancer struct {
	target float64 // equity fraction after a trade
}

// NewRebalancer creates a rebalancer that resets the book to target equity weight.
func NewRebalancer(target float64) *Rebalancer {
	return &Rebalancer{target: target}
}

// Step evaluates today's bar against the machine's pending state and trades
// at most once. A fired signal is consumed; an unfired one is left for the
// next Observe to overwrite.
//
//   - SELL: pending sell and close below today's upper band.
//   - BUY:  pending buy, non-zero volume and close above today's lower band.
func (r *Rebalancer) Step(pf *Portfolio, sm *strategy.SignalMachine, today model.BandedBar) (model.Side, bool) {
	price := today.Close

	switch sm.State() {
	case strategy.SignalPendingSell:
		if price < today.Bands.Upper {
			pf.RebalanceTo(r.target, price)
			sm.Consume()
			return model.SideSell, true
		}
	case strategy.SignalPendingBuy:
		if today.Volume > 0 && price > today.Bands.Lower {
			pf.RebalanceTo(r.target, price)
			sm.Consume()
			return model.SideBuy, true
		}
	}
	return "", false
}

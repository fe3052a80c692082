// Package strategy derives the pending rebalance signal from band breaches.
//
// A close at or beyond a band on one day arms a pending action; the
// rebalancer decides on the following day whether the price has reverted
// far enough to execute it.
package strategy

import "bandrebalance/internal/model"

// SignalState is the single pending action held between days.
// Mutual exclusion of BUY and SELL is a property of the type.
type SignalState int

const (
	SignalNone SignalState = iota
	SignalPendingBuy
	SignalPendingSell
)

func (s SignalState) String() string {
	switch s {
	case SignalNone:
		return "NONE"
	case SignalPendingBuy:
		return "PENDING_BUY"
	case SignalPendingSell:
		return "PENDING_SELL"
	default:
		return "unknown"
	}
}

// Side returns the trade side a pending state is waiting to execute.
func (s SignalState) Side() (model.Side, bool) {
	switch s {
	case SignalPendingBuy:
		return model.SideBuy, true
	case SignalPendingSell:
		return model.SideSell, true
	}
	return "", false
}

// Classify maps a close and the bands of the same day to a signal.
// The upper band is checked first, so a degenerate envelope (Upper == Lower)
// touched by the close arms a SELL.
func Classify(close float64, bands model.BandSnapshot) SignalState {
	switch {
	case close >= bands.Upper:
		return SignalPendingSell
	case close <= bands.Lower:
		return SignalPendingBuy
	default:
		return SignalNone
	}
}

// SignalMachine holds the pending state across simulated days.
// Not safe for concurrent use; each backtest owns its own machine.
type SignalMachine struct {
	state SignalState
}

// NewSignalMachine returns a machine in SignalNone.
func NewSignalMachine() *SignalMachine {
	return &SignalMachine{state: SignalNone}
}

// Observe overwrites the state from yesterday's close and yesterday's bands.
// A day back inside the envelope cancels whatever was pending.
func (m *SignalMachine) Observe(prevClose float64, prevBands model.BandSnapshot) SignalState {
	m.state = Classify(prevClose, prevBands)
	return m.state
}

// State returns the currently held signal.
func (m *SignalMachine) State() SignalState { return m.state }

// Consume clears the pending state after it triggered a trade.
func (m *SignalMachine) Consume() { m.state = SignalNone }

// Package backtest runs the Bollinger-band rebalancing simulation over a
// daily bar series.
//
// Each day is processed strictly after the previous one:
//
//	bands(i-1) ──► SignalMachine.Observe ──► Rebalancer.Step(bands(i)) ──► Tracker.Record
//
// A single Run owns its portfolio and signal state; independent runs may be
// executed in parallel with RunMany.
package backtest

import "fmt"

// Params configures one backtest run.
type Params struct {
	WindowSize        int     `json:"window_size" yaml:"window_size"`               // rolling window in bars
	BandMultiplier    float64 `json:"band_multiplier" yaml:"band_multiplier"`       // k in MA ± k·σ
	InitialCash       float64 `json:"initial_cash" yaml:"initial_cash"`             // starting portfolio value
	InitialAllocation float64 `json:"initial_allocation" yaml:"initial_allocation"` // equity fraction on day 0
	RebalanceTarget   float64 `json:"rebalance_target" yaml:"rebalance_target"`     // equity fraction after a trade
}

// DefaultParams returns the classic 20-bar, 2σ, 50:50 configuration.
func DefaultParams() Params {
	return Params{
		WindowSize:        20,
		BandMultiplier:    2,
		InitialCash:       1_000_000,
		InitialAllocation: 0.5,
		RebalanceTarget:   0.5,
	}
}

// Validate checks that the parameters describe a runnable strategy.
func (p Params) Validate() error {
	switch {
	case p.WindowSize < 2:
		return fmt.Errorf("%w: window size must be >= 2, got %d", ErrInvalidConfig, p.WindowSize)
	case p.BandMultiplier < 0:
		return fmt.Errorf("%w: band multiplier must be >= 0, got %g", ErrInvalidConfig, p.BandMultiplier)
	case !(p.InitialCash > 0):
		return fmt.Errorf("%w: initial cash must be > 0, got %g", ErrInvalidConfig, p.InitialCash)
	case !inUnit(p.InitialAllocation):
		return fmt.Errorf("%w: initial allocation must be in [0,1], got %g", ErrInvalidConfig, p.InitialAllocation)
	case !inUnit(p.RebalanceTarget):
		return fmt.Errorf("%w: rebalance target must be in [0,1], got %g", ErrInvalidConfig, p.RebalanceTarget)
	}
	return nil
}

func (p Params) String() string {
	return fmt.Sprintf("BB(window=%d, k=%.2f) cash=%.2f alloc=%.2f target=%.2f",
		p.WindowSize, p.BandMultiplier, p.InitialCash, p.InitialAllocation, p.RebalanceTarget)
}

func inUnit(v float64) bool { return v >= 0 && v <= 1 }

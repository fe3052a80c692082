// Package indicator provides rolling statistics over daily close prices.
//
// Indicators are fed one bar at a time and keep a preallocated window, so a
// full series can be processed in a single forward pass.
package indicator

import "bandrebalance/internal/model"

// Indicator is a rolling band indicator fed one bar at a time.
type Indicator interface {
	// Update feeds the next bar and recalculates.
	Update(bar model.DailyBar)

	// Ready returns true once a full window has been accumulated.
	Ready() bool

	// Bands returns the snapshot over the window ending on the last bar.
	Bands() model.BandSnapshot
}

var _ Indicator = (*Bollinger)(nil)

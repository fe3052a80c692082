package indicator

import "bandrebalance/internal/model"

// ComputeBands runs a Bollinger indicator over bars and returns one BandedBar
// for every index i >= window-1. Leading bars without a full window are
// dropped, not zero-filled. Returns nil if fewer than window bars are given.
func ComputeBands(bars []model.DailyBar, window int, multiplier float64) []model.BandedBar {
	if window < 1 || len(bars) < window {
		return nil
	}
	return Apply(NewBollinger(window, multiplier), bars, len(bars)-window+1)
}

// Apply feeds bars through ind and keeps every bar on which it is ready.
// sizeHint preallocates the output.
func Apply(ind Indicator, bars []model.DailyBar, sizeHint int) []model.BandedBar {
	if sizeHint < 0 {
		sizeHint = 0
	}
	out := make([]model.BandedBar, 0, sizeHint)
	for _, bar := range bars {
		ind.Update(bar)
		if !ind.Ready() {
			continue
		}
		out = append(out, model.BandedBar{DailyBar: bar, Bands: ind.Bands()})
	}
	return out
}

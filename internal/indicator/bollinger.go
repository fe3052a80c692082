package indicator

import (
	"math"

	"bandrebalance/internal/model"
)

// Bollinger computes a moving average and a ±k standard deviation envelope
// over a rolling window of closes.
//
// StdDev is the sample standard deviation (n-1 denominator), so period must
// be at least 2 for a non-degenerate envelope.
type Bollinger struct {
	sma        *SMA
	multiplier float64
	current    model.BandSnapshot
}

// NewBollinger creates a Bollinger indicator with the given window and band multiplier.
func NewBollinger(period int, multiplier float64) *Bollinger {
	return &Bollinger{
		sma:        NewSMA(period),
		multiplier: multiplier,
	}
}

func (b *Bollinger) Update(bar model.DailyBar) {
	b.sma.Update(bar)
	if !b.sma.Ready() {
		return
	}
	mean := b.sma.Value()
	sd := sampleStdDev(b.sma.Window(), mean)
	b.current = model.BandSnapshot{
		MovingAverage: mean,
		StdDev:        sd,
		Upper:         mean + b.multiplier*sd,
		Lower:         mean - b.multiplier*sd,
	}
}

func (b *Bollinger) Ready() bool { return b.sma.Ready() }

// Bands returns the latest snapshot. Zero until Ready.
func (b *Bollinger) Bands() model.BandSnapshot { return b.current }

func sampleStdDev(window []float64, mean float64) float64 {
	n := len(window)
	if n < 2 {
		return 0
	}
	var ss float64
	for _, v := range window {
		d := v - mean
		ss += d * d
	}
	variance := ss / float64(n-1)
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance)
}

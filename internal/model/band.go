package model

// BandSnapshot holds the rolling statistics of one day's Bollinger window.
// Lower <= MovingAverage <= Upper whenever StdDev >= 0.
type BandSnapshot struct {
	MovingAverage float64 `json:"ma"`
	StdDev        float64 `json:"std"`
	Upper         float64 `json:"upper"`
	Lower         float64 `json:"lower"`
}

// BandedBar pairs a bar with the bands computed over the window ending on it.
// Slices of BandedBar are indexed by simulated day number.
type BandedBar struct {
	DailyBar
	Bands BandSnapshot `json:"bands"`
}

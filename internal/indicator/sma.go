package indicator

import "bandrebalance/internal/model"

// SMA calculates Simple Moving Average over a rolling window.
// Uses a preallocated circular buffer so Update never allocates.
type SMA struct {
	period  int
	buf     []float64 // preallocated circular buffer
	idx     int       // current write position
	count   int       // total values received
	sum     float64
	current float64
}

// NewSMA creates a new SMA indicator with the given period.
func NewSMA(period int) *SMA {
	return &SMA{
		period: period,
		buf:    make([]float64, period),
	}
}

func (s *SMA) Update(bar model.DailyBar) {
	price := bar.Close

	if s.count >= s.period {
		// Subtract the oldest value being overwritten
		s.sum -= s.buf[s.idx]
	}

	s.buf[s.idx] = price
	s.sum += price
	s.idx = (s.idx + 1) % s.period
	s.count++

	if s.count >= s.period {
		s.current = s.sum / float64(s.period)
	}
}

func (s *SMA) Value() float64 { return s.current }
func (s *SMA) Ready() bool    { return s.count >= s.period }

// Window returns the closes currently in the window, oldest first.
// Returns nil until the indicator is ready.
func (s *SMA) Window() []float64 {
	if !s.Ready() {
		return nil
	}
	out := make([]float64, 0, s.period)
	out = append(out, s.buf[s.idx:]...)
	out = append(out, s.buf[:s.idx]...)
	return out
}

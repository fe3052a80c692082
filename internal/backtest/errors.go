package backtest

import (
	"errors"
	"fmt"
	"math"
	"time"

	"bandrebalance/internal/model"
)

var (
	// ErrInvalidBar is returned for a bar with a non-positive or non-finite
	// close, or a negative volume.
	ErrInvalidBar = errors.New("invalid bar")

	// ErrNonMonotonicDates is returned when bar dates are not strictly increasing.
	ErrNonMonotonicDates = errors.New("non-monotonic dates")

	// ErrInvalidConfig is returned by Params.Validate.
	ErrInvalidConfig = errors.New("invalid backtest config")
)

// BarError locates a rejected bar in the input series.
type BarError struct {
	Index  int
	Date   time.Time
	Reason string
	Err    error // ErrInvalidBar or ErrNonMonotonicDates
}

func (e *BarError) Error() string {
	return fmt.Sprintf("%v at index %d (%s): %s", e.Err, e.Index, e.Date.Format(model.DateLayout), e.Reason)
}

func (e *BarError) Unwrap() error { return e.Err }

// ValidateBars rejects the whole series on the first bad bar.
// It checks every bar, including those that only feed the warm-up window.
func ValidateBars(bars []model.DailyBar) error {
	for i := range bars {
		b := &bars[i]
		switch {
		case math.IsNaN(b.Close) || math.IsInf(b.Close, 0):
			return &BarError{Index: i, Date: b.Date, Reason: "close is not finite", Err: ErrInvalidBar}
		case b.Close <= 0:
			return &BarError{Index: i, Date: b.Date, Reason: fmt.Sprintf("close must be positive, got %g", b.Close), Err: ErrInvalidBar}
		case b.Volume < 0 || math.IsNaN(b.Volume):
			return &BarError{Index: i, Date: b.Date, Reason: fmt.Sprintf("volume must be >= 0, got %g", b.Volume), Err: ErrInvalidBar}
		}
		if i > 0 && !b.Date.After(bars[i-1].Date) {
			return &BarError{
				Index:  i,
				Date:   b.Date,
				Reason: "date not after " + bars[i-1].Date.Format(model.DateLayout),
				Err:    ErrNonMonotonicDates,
			}
		}
	}
	return nil
}

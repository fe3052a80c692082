// Package replay loads stored daily bars into a series ready for a backtest.
package replay

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"bandrebalance/internal/model"
)

// Loader reads historical bars from a store and cleans them for replay.
type Loader struct {
	reader model.BarReader
}

// New creates a Loader backed by reader.
func New(reader model.BarReader) *Loader {
	return &Loader{reader: reader}
}

// Load returns the bars of symbol within [from, to], oldest first, with one
// bar per calendar day. A zero from or to leaves that side unbounded. When a
// date appears more than once the later row wins.
func (l *Loader) Load(ctx context.Context, symbol string, from, to time.Time) ([]model.DailyBar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	bars, err := l.reader.ReadBars(symbol, from, to)
	if err != nil {
		return nil, fmt.Errorf("replay load %s: %w", symbol, err)
	}
	if len(bars) == 0 {
		log.Printf("[replay] no bars found for %s", symbol)
		return nil, nil
	}

	cleaned := Prepare(symbol, bars)
	log.Printf("[replay] loaded %d bars for %s (%s → %s)",
		len(cleaned), symbol, cleaned[0].Day(), cleaned[len(cleaned)-1].Day())
	return cleaned, nil
}

// Prepare cleans bars read from any source and logs what was repaired:
// rows out of date order and duplicate days dropped.
func Prepare(symbol string, bars []model.DailyBar) []model.DailyBar {
	for i := 1; i < len(bars); i++ {
		if bars[i].Date.Before(bars[i-1].Date) {
			log.Printf("[replay] %s: rows not in date order (first at row %d), sorted", symbol, i)
			break
		}
	}
	cleaned := Clean(bars)
	if dropped := len(bars) - len(cleaned); dropped > 0 {
		log.Printf("[replay] %s: dropped %d duplicate dates", symbol, dropped)
	}
	return cleaned
}

// Clean returns a copy of bars sorted by date with duplicate days removed,
// keeping the last occurrence of each day.
func Clean(bars []model.DailyBar) []model.DailyBar {
	out := make([]model.DailyBar, len(bars))
	for i, b := range bars {
		b.Date = model.NormalizeDate(b.Date)
		out[i] = b
	}
	// stable sort keeps input order among equal dates
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })

	n := 0
	for i := range out {
		if n > 0 && out[n-1].Date.Equal(out[i].Date) {
			out[n-1] = out[i]
			continue
		}
		out[n] = out[i]
		n++
	}
	return out[:n]
}

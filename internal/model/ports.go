package model

import "time"

// ── Storage Port Interfaces ──
// These interfaces decouple collaborators (loaders, gateway, binaries) from
// the concrete SQLite implementation.

// BarReader reads stored daily bars.
type BarReader interface {
	// ReadBars returns bars for symbol with from <= date <= to, ordered by date.
	// A zero from or to leaves that side unbounded.
	ReadBars(symbol string, from, to time.Time) ([]DailyBar, error)
}

// BarWriter stores daily bars.
type BarWriter interface {
	// UpsertBars inserts or replaces bars for symbol in a single transaction.
	UpsertBars(symbol string, bars []DailyBar) error

	// LastDate returns the most recent stored date for symbol (zero if none).
	LastDate(symbol string) (time.Time, error)
}

package model

import "time"

// DateLayout is the calendar-date layout used across files, the database and the API.
const DateLayout = "2006-01-02"

// DailyBar represents one trading day for a single instrument.
// Prices are in the instrument's quote currency; Volume is traded shares.
type DailyBar struct {
	Date   time.Time `json:"date"` // calendar date, midnight UTC
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Day returns the bar date formatted as YYYY-MM-DD.
func (b *DailyBar) Day() string {
	return b.Date.Format(DateLayout)
}

// NormalizeDate truncates t to its calendar date at midnight UTC.
func NormalizeDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD string into a normalized date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	return NormalizeDate(t), nil
}

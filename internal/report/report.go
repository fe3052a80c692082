// Package report turns a backtest result into chart markers, a CSV export
// and the lines of the CLI summary box.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"bandrebalance/internal/model"
	"bandrebalance/internal/portfolio"

	"github.com/shopspring/decimal"
)

// Fixed output precision.
const (
	moneyPlaces  = 2
	weightPlaces = 4
	pctPlaces    = 2
)

// CSVHeader is the header row of WriteCSV.
var CSVHeader = []string{"date", "total_value", "equity_weight", "event"}

// Marker places a rebalancing event on the total-value curve.
type Marker struct {
	Date       time.Time  `json:"date"`
	Side       model.Side `json:"side"`
	TotalValue float64    `json:"total_value"`
}

// EventMarkers looks up the total value on each event date. Events without a
// matching point are skipped.
func EventMarkers(points []model.ResultPoint, events []model.Event) []Marker {
	byDay := make(map[time.Time]float64, len(points))
	for _, p := range points {
		byDay[model.NormalizeDate(p.Date)] = p.TotalValue
	}
	markers := make([]Marker, 0, len(events))
	for _, e := range events {
		v, ok := byDay[model.NormalizeDate(e.Date)]
		if !ok {
			continue
		}
		markers = append(markers, Marker{Date: e.Date, Side: e.Side, TotalValue: v})
	}
	return markers
}

// WriteCSV exports the result series, one row per point, with the side of
// the trade executed that day (if any) in the event column.
func WriteCSV(w io.Writer, points []model.ResultPoint, events []model.Event) error {
	sides := make(map[time.Time]model.Side, len(events))
	for _, e := range events {
		sides[model.NormalizeDate(e.Date)] = e.Side
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("report csv: %w", err)
	}
	for _, p := range points {
		rec := []string{
			p.Date.Format(model.DateLayout),
			Money(p.TotalValue),
			decimal.NewFromFloat(p.EquityWeight).StringFixed(weightPlaces),
			string(sides[model.NormalizeDate(p.Date)]),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("report csv: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("report csv: %w", err)
	}
	return nil
}

// Money formats a currency amount with two decimals.
func Money(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(moneyPlaces)
}

// Percent formats a fraction as a signed percentage, e.g. 0.1234 → "+12.34%".
func Percent(v float64) string {
	d := decimal.NewFromFloat(v).Shift(2).Round(pctPlaces)
	s := d.StringFixed(pctPlaces)
	if !d.IsNegative() {
		s = "+" + s
	}
	return s + "%"
}

// FormatSummary renders the summary as aligned "label: value" lines.
func FormatSummary(s portfolio.Summary) []string {
	period := "-"
	if s.Days > 0 {
		period = fmt.Sprintf("%s → %s", s.StartDate.Format(model.DateLayout), s.EndDate.Format(model.DateLayout))
	}
	return []string{
		fmt.Sprintf("Period:         %s", period),
		fmt.Sprintf("Trading days:   %d", s.Days),
		fmt.Sprintf("Initial value:  %s", Money(s.InitialValue)),
		fmt.Sprintf("Final value:    %s", Money(s.FinalValue)),
		fmt.Sprintf("Total return:   %s", Percent(s.TotalReturn)),
		fmt.Sprintf("Buy & hold:     %s", Percent(s.BuyHoldReturn)),
		fmt.Sprintf("Max drawdown:   %s", decimal.NewFromFloat(s.MaxDrawdown).Shift(2).StringFixed(pctPlaces)+"%"),
		fmt.Sprintf("Equity weight:  %s", decimal.NewFromFloat(s.FinalEquityWeight).StringFixed(weightPlaces)),
		fmt.Sprintf("Trades:         %d buys, %d sells", s.Buys, s.Sells),
	}
}

// Package csvfeed reads and writes daily bars in the
// Date,Open,High,Low,Close,Volume CSV layout.
//
// Files are append-only: AppendFile writes the header only when it creates
// the file, so a fetcher can resume from LastDate without rewriting history.
package csvfeed

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"bandrebalance/internal/model"
)

// Header is the column layout written and expected by this package.
var Header = []string{"Date", "Open", "High", "Low", "Close", "Volume"}

// ReadBars parses bars from r. The first row must be a header naming at
// least Date and Close; columns are matched by name, case-insensitively.
// Missing Open/High/Low/Volume columns are left zero.
func ReadBars(r io.Reader) ([]model.DailyBar, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	head, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("csv header: %w", err)
	}
	cols := make(map[string]int, len(head))
	for i, h := range head {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	dateCol, ok := cols["date"]
	if !ok {
		return nil, errors.New("csv header: missing Date column")
	}
	closeCol, ok := cols["close"]
	if !ok {
		return nil, errors.New("csv header: missing Close column")
	}

	var bars []model.DailyBar
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}
		if len(rec) == 0 || (len(rec) == 1 && strings.TrimSpace(rec[0]) == "") {
			continue
		}

		var b model.DailyBar
		if b.Date, err = model.ParseDate(field(rec, dateCol)); err != nil {
			return nil, fmt.Errorf("csv line %d: date: %w", line, err)
		}
		if b.Close, err = ParseNumber(field(rec, closeCol)); err != nil {
			return nil, fmt.Errorf("csv line %d: close: %w", line, err)
		}
		for name, dst := range map[string]*float64{"open": &b.Open, "high": &b.High, "low": &b.Low, "volume": &b.Volume} {
			idx, ok := cols[name]
			if !ok || field(rec, idx) == "" {
				continue
			}
			if *dst, err = ParseNumber(field(rec, idx)); err != nil {
				return nil, fmt.Errorf("csv line %d: %s: %w", line, name, err)
			}
		}
		bars = append(bars, b)
	}
	return bars, nil
}

// ReadFile reads all bars from a CSV file.
func ReadFile(path string) ([]model.DailyBar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadBars(f)
}

// WriteBars writes bars to w, optionally preceded by the header row.
func WriteBars(w io.Writer, bars []model.DailyBar, header bool) error {
	cw := csv.NewWriter(w)
	if header {
		if err := cw.Write(Header); err != nil {
			return err
		}
	}
	for i := range bars {
		b := &bars[i]
		rec := []string{
			b.Day(),
			formatNumber(b.Open),
			formatNumber(b.High),
			formatNumber(b.Low),
			formatNumber(b.Close),
			formatNumber(b.Volume),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// AppendFile appends bars to path, creating it (with header) if needed.
func AppendFile(path string, bars []model.DailyBar) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	_, statErr := os.Stat(path)
	create := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	if err := WriteBars(f, bars, create); err != nil {
		f.Close()
		return err
	}
	if create {
		log.Printf("[csvfeed] created %s with %d bars", path, len(bars))
	}
	return f.Close()
}

// LastDate returns the date of the last bar in path.
// A missing or empty file yields the zero time and no error.
func LastDate(path string) (time.Time, error) {
	bars, err := ReadFile(path)
	if os.IsNotExist(err) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	if len(bars) == 0 {
		return time.Time{}, nil
	}
	return bars[len(bars)-1].Date, nil
}

// ParseNumber parses a decimal that may carry thousands separators ("1,234.5").
func ParseNumber(s string) (float64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	return strconv.ParseFloat(s, 64)
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func field(rec []string, i int) string {
	if i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

// cmd/fetch downloads daily bars of a TWSE-listed stock month by month into
// the SQLite bar store and, optionally, a CSV file. Re-running resumes from
// the month of the last stored bar.
//
// Usage:
//
//	go run ./cmd/fetch -stock=00631L -from=2014-01-01 -csv=stock_00631L_data.csv
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bandrebalance/config"
	"bandrebalance/internal/logger"
	"bandrebalance/internal/marketdata/csvfeed"
	"bandrebalance/internal/marketdata/twse"
	"bandrebalance/internal/model"
	sqlitestore "bandrebalance/internal/store/sqlite"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	cfg := config.Load()

	stock := flag.String("stock", "", "TWSE stock number, e.g. 00631L (required)")
	fromStr := flag.String("from", "2014-01-01", "First month to fetch when nothing is stored (YYYY-MM-DD)")
	dbPath := flag.String("db", cfg.SQLitePath, "SQLite database (empty = skip)")
	csvPath := flag.String("csv", "", "Also append bars to this CSV file")
	interval := flag.Duration("interval", time.Second, "Pause between monthly requests")
	baseURL := flag.String("base-url", twse.DefaultBaseURL, "TWSE base URL")
	flag.Parse()

	logger.Init("fetch", logger.ParseLevel(cfg.LogLevel))

	if *stock == "" {
		log.Fatal("[fetch] -stock is required")
	}
	if *dbPath == "" && *csvPath == "" {
		log.Fatal("[fetch] nothing to write: set -db or -csv")
	}
	from, err := model.ParseDate(*fromStr)
	if err != nil {
		log.Fatalf("[fetch] invalid -from: %v", err)
	}

	out := &sinks{csvPath: *csvPath}
	if *dbPath != "" {
		writer, err := sqlitestore.New(sqlitestore.WriterConfig{DBPath: *dbPath})
		if err != nil {
			log.Fatalf("[fetch] sqlite open failed: %v", err)
		}
		defer writer.Close()
		out.db = writer
	}

	last, err := out.resume(*stock)
	if err != nil {
		log.Fatalf("[fetch] %v", err)
	}
	if !last.IsZero() {
		// the last month may be partial; both sinks skip bars they already hold
		from = time.Date(last.Year(), last.Month(), 1, 0, 0, 0, 0, time.UTC)
		log.Printf("[fetch] %s: last stored bar %s, resuming from %s", *stock, last.Format(model.DateLayout), from.Format("2006-01"))
	} else {
		log.Printf("[fetch] %s: nothing stored, starting from %s", *stock, from.Format("2006-01"))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	client := twse.NewClient(*baseURL)
	client.Interval = *interval

	total := 0
	err = client.FetchRange(ctx, *stock, from, time.Now().UTC(), func(month time.Time, bars []model.DailyBar) error {
		if err := out.write(*stock, bars); err != nil {
			return err
		}
		total += len(bars)
		return nil
	})
	if err != nil {
		log.Fatalf("[fetch] stopped: %v", err)
	}
	log.Printf("[fetch] %s: done, %d bars fetched", *stock, total)
}

// sinks are the destinations of fetched bars. db is nil when the bar store
// is disabled; an empty csvPath disables the CSV file.
type sinks struct {
	db      model.BarWriter
	csvPath string
	csvLast time.Time
}

// resume returns the date fetching should resume after, reading the last
// stored date of every enabled sink.
func (s *sinks) resume(stock string) (time.Time, error) {
	var dbLast time.Time
	if s.db != nil {
		last, err := s.db.LastDate(stock)
		if err != nil {
			return time.Time{}, err
		}
		dbLast = last
	}
	if s.csvPath != "" {
		last, err := csvfeed.LastDate(s.csvPath)
		if err != nil {
			return time.Time{}, err
		}
		s.csvLast = last
	}
	return resumePoint(s.db != nil, dbLast, s.csvPath != "", s.csvLast), nil
}

// write upserts bars into the store and appends the ones newer than the
// CSV's last date to the file.
func (s *sinks) write(stock string, bars []model.DailyBar) error {
	if s.db != nil {
		if err := s.db.UpsertBars(stock, bars); err != nil {
			return err
		}
	}
	if s.csvPath == "" {
		return nil
	}
	fresh := after(bars, s.csvLast)
	if len(fresh) == 0 {
		return nil
	}
	if err := csvfeed.AppendFile(s.csvPath, fresh); err != nil {
		return fmt.Errorf("append csv: %w", err)
	}
	s.csvLast = fresh[len(fresh)-1].Date
	return nil
}

// resumePoint is the earliest last-stored date across the enabled sinks, or
// zero if any enabled sink is empty.
func resumePoint(useDB bool, dbLast time.Time, useCSV bool, csvLast time.Time) time.Time {
	var last time.Time
	for _, s := range []struct {
		on   bool
		last time.Time
	}{{useDB, dbLast}, {useCSV, csvLast}} {
		if !s.on {
			continue
		}
		if s.last.IsZero() {
			return time.Time{}
		}
		if last.IsZero() || s.last.Before(last) {
			last = s.last
		}
	}
	return last
}

func after(bars []model.DailyBar, t time.Time) []model.DailyBar {
	if t.IsZero() {
		return bars
	}
	out := make([]model.DailyBar, 0, len(bars))
	for _, b := range bars {
		if b.Date.After(t) {
			out = append(out, b)
		}
	}
	return out
}

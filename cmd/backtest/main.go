// cmd/backtest runs the Bollinger-band rebalancing strategy over daily bars
// from a CSV file or the SQLite bar store and prints a summary per symbol.
//
// Usage:
//
//	go run ./cmd/backtest -csv=stock_00631L_data.csv -out=result.csv
//	go run ./cmd/backtest -symbol=00631L,2330 -from=2016-01-01 -save
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"bandrebalance/config"
	"bandrebalance/internal/backtest"
	"bandrebalance/internal/logger"
	"bandrebalance/internal/marketdata/csvfeed"
	"bandrebalance/internal/marketdata/replay"
	"bandrebalance/internal/model"
	"bandrebalance/internal/notification"
	"bandrebalance/internal/report"
	"bandrebalance/internal/store/redis"
	sqlitestore "bandrebalance/internal/store/sqlite"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	cfg := config.Load()

	csvPath := flag.String("csv", "", "Read bars from this CSV file instead of SQLite")
	dbPath := flag.String("db", cfg.SQLitePath, "Path to SQLite database")
	symbols := flag.String("symbol", "", "Comma-separated symbols to load from SQLite")
	fromStr := flag.String("from", "", "First date (YYYY-MM-DD, empty = all)")
	toStr := flag.String("to", "", "Last date (YYYY-MM-DD, empty = all)")
	strategyPath := flag.String("strategy", cfg.StrategyFile, "YAML strategy file")
	window := flag.Int("window", 0, "Rolling window size (overrides strategy)")
	k := flag.Float64("k", 0, "Band multiplier (overrides strategy)")
	cash := flag.Float64("cash", 0, "Initial cash (overrides strategy)")
	alloc := flag.Float64("alloc", 0, "Initial equity allocation (overrides strategy)")
	target := flag.Float64("target", 0, "Rebalance target weight (overrides strategy)")
	outPath := flag.String("out", "", "Write the result series to this CSV file")
	save := flag.Bool("save", false, "Journal runs to SQLite")
	publish := flag.Bool("publish", cfg.RedisEnabled(), "Publish runs to Redis")
	workers := flag.Int("workers", 4, "Parallel runs when several symbols are given")
	flag.Parse()

	slogger := logger.Init("backtest", logger.ParseLevel(cfg.LogLevel))

	// Parameters: defaults < strategy file < flags
	params := backtest.DefaultParams()
	var fileSymbols []string
	if *strategyPath != "" {
		sf, err := config.LoadStrategy(*strategyPath)
		if err != nil {
			log.Fatalf("[backtest] %v", err)
		}
		if params, err = sf.Params(); err != nil {
			log.Fatalf("[backtest] strategy %s: %v", *strategyPath, err)
		}
		fileSymbols = sf.Symbols
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "window":
			params.WindowSize = *window
		case "k":
			params.BandMultiplier = *k
		case "cash":
			params.InitialCash = *cash
		case "alloc":
			params.InitialAllocation = *alloc
		case "target":
			params.RebalanceTarget = *target
		}
	})
	if err := params.Validate(); err != nil {
		log.Fatalf("[backtest] %v", err)
	}
	from, to := parseDateFlag("from", *fromStr), parseDateFlag("to", *toStr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	// Load bars
	var jobs []backtest.Job
	if *csvPath != "" {
		bars, err := csvfeed.ReadFile(*csvPath)
		if err != nil {
			log.Fatalf("[backtest] read %s: %v", *csvPath, err)
		}
		name := *symbols
		if name == "" {
			name = strings.TrimSuffix(filepath.Base(*csvPath), filepath.Ext(*csvPath))
		}
		bars = clip(replay.Prepare(name, bars), from, to)
		jobs = append(jobs, backtest.Job{Name: name, Bars: bars, Params: params})
	} else {
		list := splitSymbols(*symbols)
		if len(list) == 0 {
			list = fileSymbols
		}
		if len(list) == 0 {
			log.Fatal("[backtest] no input: pass -csv or -symbol (or list symbols in the strategy file)")
		}
		reader, err := sqlitestore.NewReader(*dbPath)
		if err != nil {
			log.Fatalf("[backtest] sqlite open failed: %v", err)
		}
		defer reader.Close()
		loader := replay.New(reader)
		for _, sym := range list {
			bars, err := loader.Load(ctx, sym, from, to)
			if err != nil {
				log.Fatalf("[backtest] %v", err)
			}
			jobs = append(jobs, backtest.Job{Name: sym, Bars: bars, Params: params})
		}
	}

	// Optional sinks
	var writer *sqlitestore.Writer
	if *save {
		w, err := sqlitestore.New(sqlitestore.WriterConfig{DBPath: *dbPath})
		if err != nil {
			log.Fatalf("[backtest] sqlite writer: %v", err)
		}
		defer w.Close()
		writer = w
	}
	var pub *redis.Publisher
	if *publish && cfg.RedisEnabled() {
		p, err := redis.New(redis.PublisherConfig{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		if err != nil {
			log.Printf("[backtest] WARNING: redis unavailable, not publishing: %v", err)
		} else {
			defer p.Close()
			pub = p
		}
	}
	notifier := notification.Build(cfg.WebhookURL, cfg.TelegramBotToken, cfg.TelegramChatID)

	slogger.Info("starting backtest", "jobs", len(jobs), "params", params.String())
	start := time.Now()
	results := backtest.RunMany(ctx, jobs, *workers)

	failed := 0
	for i, jr := range results {
		if jr.Err != nil {
			failed++
			log.Printf("[backtest] %s: %v", jr.Name, jr.Err)
			notifier.Send(ctx, notification.FailureAlert(jr.Name, jr.Err))
			continue
		}
		rec := backtest.NewRecord(logger.NewRunID(jr.Name, start), jr.Name, jr.Result, start)
		runCtx := logger.WithRunID(ctx, rec.RunID)
		slog.Info("run finished", append(logger.LogWithRun(runCtx),
			"symbol", jr.Name, "bars", len(jobs[i].Bars), "points", len(jr.Result.Points),
			"buys", len(jr.Result.Buys), "sells", len(jr.Result.Sells))...)

		if *outPath != "" {
			path := outputPath(*outPath, jr.Name, len(results) > 1)
			if err := writeResultCSV(path, jr.Result); err != nil {
				log.Printf("[backtest] export %s: %v", path, err)
			} else {
				log.Printf("[backtest] wrote %s", path)
			}
		}
		if writer != nil {
			if err := writer.SaveRun(rec); err != nil {
				log.Printf("[backtest] save %s: %v", rec.RunID, err)
			}
		}
		if pub != nil {
			if err := pub.PublishRun(runCtx, rec); err != nil {
				log.Printf("[backtest] publish %s: %v", rec.RunID, err)
			}
		}
		if err := notifier.Send(runCtx, notification.RunAlert(jr.Name, rec.RunID, jr.Result.Summary)); err != nil {
			log.Printf("[backtest] notify: %v", err)
		}

		printSummary(jr.Name, rec.RunID, jr.Result)
	}

	if failed > 0 {
		os.Exit(1)
	}
}

func parseDateFlag(name, v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	t, err := model.ParseDate(v)
	if err != nil {
		log.Fatalf("[backtest] invalid -%s: %v", name, err)
	}
	return t
}

func splitSymbols(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// clip keeps bars within [from, to]; zero bounds are open.
func clip(bars []model.DailyBar, from, to time.Time) []model.DailyBar {
	out := bars[:0]
	for _, b := range bars {
		if (!from.IsZero() && b.Date.Before(from)) || (!to.IsZero() && b.Date.After(to)) {
			continue
		}
		out = append(out, b)
	}
	return out
}

func outputPath(path, symbol string, multi bool) string {
	if !multi {
		return path
	}
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "_" + symbol + ext
}

func writeResultCSV(path string, res *backtest.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := report.WriteCSV(f, res.Points, res.Events); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func printSummary(symbol, runID string, res *backtest.Result) {
	fmt.Println()
	fmt.Println("╔════════════════════════════════════════════════════════════════╗")
	fmt.Printf("║  BACKTEST %-52s ║\n", symbol)
	fmt.Println("╠════════════════════════════════════════════════════════════════╣")
	fmt.Printf("║  %-61s ║\n", "Run: "+runID)
	fmt.Printf("║  %-61s ║\n", res.Params.String())
	for _, line := range report.FormatSummary(res.Summary) {
		fmt.Printf("║  %-61s ║\n", line)
	}
	fmt.Println("╚════════════════════════════════════════════════════════════════╝")
}

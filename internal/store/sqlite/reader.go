package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"bandrebalance/internal/backtest"
	"bandrebalance/internal/model"
	"bandrebalance/internal/portfolio"

	_ "github.com/mattn/go-sqlite3"
)

// ErrRunNotFound is returned by ReadRun for an unknown run id.
var ErrRunNotFound = errors.New("sqlite: run not found")

// Reader provides read-only access to stored bars and journaled runs.
type Reader struct {
	db *sql.DB
}

// RunInfo is a row of the run journal without its series.
type RunInfo struct {
	RunID     string            `json:"run_id"`
	Symbol    string            `json:"symbol"`
	Params    backtest.Params   `json:"params"`
	Summary   portfolio.Summary `json:"summary"`
	CreatedAt time.Time         `json:"created_at"`
}

// NewReader opens a SQLite connection for reading.
func NewReader(dbPath string) (*Reader, error) {
	db, err := sql.Open("sqlite3", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("sqlite open reader: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)

	log.Printf("[sqlite-reader] opened %s", dbPath)
	return &Reader{db: db}, nil
}

// DB returns the underlying sql.DB for health checks.
func (r *Reader) DB() *sql.DB { return r.db }

// ReadBars returns the bars of symbol within [from, to] ordered by date.
// A zero from or to leaves that side unbounded.
func (r *Reader) ReadBars(symbol string, from, to time.Time) ([]model.DailyBar, error) {
	lo, hi := "0000-00-00", "9999-99-99"
	if !from.IsZero() {
		lo = from.Format(model.DateLayout)
	}
	if !to.IsZero() {
		hi = to.Format(model.DateLayout)
	}
	rows, err := r.db.Query(`
		SELECT date, open, high, low, close, volume
		FROM daily_bars
		WHERE symbol = ? AND date >= ? AND date <= ?
		ORDER BY date ASC
	`, symbol, lo, hi)
	if err != nil {
		return nil, fmt.Errorf("sqlite query bars: %w", err)
	}
	defer rows.Close()

	var bars []model.DailyBar
	for rows.Next() {
		var b model.DailyBar
		var day string
		if err := rows.Scan(&day, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("sqlite scan bars: %w", err)
		}
		if b.Date, err = model.ParseDate(day); err != nil {
			return nil, fmt.Errorf("sqlite scan bars: %w", err)
		}
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// ReadRun loads a journaled run with its full series.
func (r *Reader) ReadRun(runID string) (*backtest.Record, error) {
	var (
		rec             backtest.Record
		params, summary string
		createdAt       int64
	)
	err := r.db.QueryRow(
		`SELECT run_id, symbol, params, summary, created_at FROM backtest_runs WHERE run_id = ?`, runID,
	).Scan(&rec.RunID, &rec.Symbol, &params, &summary, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite read run: %w", err)
	}
	rec.CreatedAt = time.Unix(createdAt, 0).UTC()

	res := &backtest.Result{}
	if err := json.Unmarshal([]byte(params), &res.Params); err != nil {
		return nil, fmt.Errorf("unmarshal params: %w", err)
	}
	if err := json.Unmarshal([]byte(summary), &res.Summary); err != nil {
		return nil, fmt.Errorf("unmarshal summary: %w", err)
	}
	if res.Points, err = r.readPoints(runID); err != nil {
		return nil, err
	}
	if res.Events, err = r.readEvents(runID); err != nil {
		return nil, err
	}
	res.Buys, res.Sells = backtest.SplitEvents(res.Events)
	rec.Result = res
	return &rec, nil
}

func (r *Reader) readPoints(runID string) ([]model.ResultPoint, error) {
	rows, err := r.db.Query(
		`SELECT date, total_value, equity_weight FROM backtest_points WHERE run_id = ? ORDER BY date ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("sqlite query points: %w", err)
	}
	defer rows.Close()

	points := []model.ResultPoint{}
	for rows.Next() {
		var p model.ResultPoint
		var day string
		if err := rows.Scan(&day, &p.TotalValue, &p.EquityWeight); err != nil {
			return nil, fmt.Errorf("sqlite scan points: %w", err)
		}
		if p.Date, err = model.ParseDate(day); err != nil {
			return nil, fmt.Errorf("sqlite scan points: %w", err)
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

func (r *Reader) readEvents(runID string) ([]model.Event, error) {
	rows, err := r.db.Query(
		`SELECT date, side FROM backtest_events WHERE run_id = ? ORDER BY date ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("sqlite query events: %w", err)
	}
	defer rows.Close()

	events := []model.Event{}
	for rows.Next() {
		var e model.Event
		var day, side string
		if err := rows.Scan(&day, &side); err != nil {
			return nil, fmt.Errorf("sqlite scan events: %w", err)
		}
		if e.Date, err = model.ParseDate(day); err != nil {
			return nil, fmt.Errorf("sqlite scan events: %w", err)
		}
		e.Side = model.Side(side)
		events = append(events, e)
	}
	return events, rows.Err()
}

// ListRuns returns the most recent runs, newest first. An empty symbol lists
// all symbols; limit <= 0 means 50.
func (r *Reader) ListRuns(symbol string, limit int) ([]RunInfo, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(`
		SELECT run_id, symbol, params, summary, created_at
		FROM backtest_runs
		WHERE ? = '' OR symbol = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, symbol, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite query runs: %w", err)
	}
	defer rows.Close()

	runs := []RunInfo{}
	for rows.Next() {
		var ri RunInfo
		var params, summary string
		var createdAt int64
		if err := rows.Scan(&ri.RunID, &ri.Symbol, &params, &summary, &createdAt); err != nil {
			return nil, fmt.Errorf("sqlite scan runs: %w", err)
		}
		if err := json.Unmarshal([]byte(params), &ri.Params); err != nil {
			return nil, fmt.Errorf("unmarshal params: %w", err)
		}
		if err := json.Unmarshal([]byte(summary), &ri.Summary); err != nil {
			return nil, fmt.Errorf("unmarshal summary: %w", err)
		}
		ri.CreatedAt = time.Unix(createdAt, 0).UTC()
		runs = append(runs, ri)
	}
	return runs, rows.Err()
}

// Close closes the reader.
func (r *Reader) Close() error {
	return r.db.Close()
}

package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"bandrebalance/internal/backtest"
	"bandrebalance/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// WriterConfig configures the SQLite writer.
type WriterConfig struct {
	DBPath string // path to SQLite database file, e.g. "data/bars.db"
}

// Writer owns the single write connection to the bar store and run journal.
type Writer struct {
	db *sql.DB
}

// DB returns the underlying sql.DB for health checks.
func (w *Writer) DB() *sql.DB { return w.db }

// New creates a new SQLite Writer, initializes the database with WAL mode and schema.
func New(cfg WriterConfig) (*Writer, error) {
	if dir := filepath.Dir(cfg.DBPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite mkdir: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dsn(cfg.DBPath))
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Set connection pool for single-writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened database at %s", cfg.DBPath)
	return &Writer{db: db}, nil
}

func dsn(path string) string {
	return path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on"
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS daily_bars (
			symbol TEXT    NOT NULL,
			date   TEXT    NOT NULL,
			open   REAL    NOT NULL,
			high   REAL    NOT NULL,
			low    REAL    NOT NULL,
			close  REAL    NOT NULL,
			volume REAL    NOT NULL,
			PRIMARY KEY (symbol, date)
		);

		CREATE TABLE IF NOT EXISTS backtest_runs (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id     TEXT    NOT NULL UNIQUE,
			symbol     TEXT    NOT NULL,
			params     TEXT    NOT NULL,
			summary    TEXT    NOT NULL,
			created_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_backtest_runs_symbol ON backtest_runs (symbol, created_at);

		CREATE TABLE IF NOT EXISTS backtest_points (
			run_id        TEXT NOT NULL REFERENCES backtest_runs (run_id) ON DELETE CASCADE,
			date          TEXT NOT NULL,
			total_value   REAL NOT NULL,
			equity_weight REAL NOT NULL,
			PRIMARY KEY (run_id, date)
		);

		CREATE TABLE IF NOT EXISTS backtest_events (
			run_id TEXT NOT NULL REFERENCES backtest_runs (run_id) ON DELETE CASCADE,
			date   TEXT NOT NULL,
			side   TEXT NOT NULL,
			PRIMARY KEY (run_id, date)
		);
	`)
	return err
}

// UpsertBars inserts or replaces bars for symbol in a single transaction.
func (w *Writer) UpsertBars(symbol string, bars []model.DailyBar) error {
	if len(bars) == 0 {
		return nil
	}
	start := time.Now()
	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("sqlite begin: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO daily_bars (symbol, date, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("sqlite prepare bars: %w", err)
	}
	defer stmt.Close()

	for _, b := range bars {
		if _, err := stmt.Exec(symbol, b.Day(), b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
			tx.Rollback()
			return fmt.Errorf("sqlite insert bar %s: %w", b.Day(), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite commit bars: %w", err)
	}
	log.Printf("[sqlite] committed %d bars for %s in %v", len(bars), symbol, time.Since(start))
	return nil
}

// LastDate returns the last stored bar date for symbol.
// Returns the zero time if no bars exist.
func (w *Writer) LastDate(symbol string) (time.Time, error) {
	var day sql.NullString
	err := w.db.QueryRow(`SELECT MAX(date) FROM daily_bars WHERE symbol = ?`, symbol).Scan(&day)
	if err != nil {
		return time.Time{}, fmt.Errorf("sqlite query last date: %w", err)
	}
	if !day.Valid {
		return time.Time{}, nil
	}
	return model.ParseDate(day.String)
}

// SaveRun journals a finished backtest: params, summary, every point and
// every event, in one transaction.
func (w *Writer) SaveRun(rec *backtest.Record) error {
	if rec == nil || rec.Result == nil {
		return fmt.Errorf("sqlite save run: empty record")
	}
	params, err := json.Marshal(rec.Result.Params)
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}
	summary, err := json.Marshal(rec.Result.Summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}

	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("sqlite begin: %w", err)
	}
	rollback := func(err error) error {
		tx.Rollback()
		return err
	}

	if _, err := tx.Exec(
		`INSERT INTO backtest_runs (run_id, symbol, params, summary, created_at) VALUES (?, ?, ?, ?, ?)`,
		rec.RunID, rec.Symbol, string(params), string(summary), rec.CreatedAt.Unix(),
	); err != nil {
		return rollback(fmt.Errorf("sqlite insert run: %w", err))
	}

	pstmt, err := tx.Prepare(`INSERT INTO backtest_points (run_id, date, total_value, equity_weight) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return rollback(fmt.Errorf("sqlite prepare points: %w", err))
	}
	defer pstmt.Close()
	for _, p := range rec.Result.Points {
		if _, err := pstmt.Exec(rec.RunID, p.Date.Format(model.DateLayout), p.TotalValue, p.EquityWeight); err != nil {
			return rollback(fmt.Errorf("sqlite insert point: %w", err))
		}
	}

	estmt, err := tx.Prepare(`INSERT INTO backtest_events (run_id, date, side) VALUES (?, ?, ?)`)
	if err != nil {
		return rollback(fmt.Errorf("sqlite prepare events: %w", err))
	}
	defer estmt.Close()
	for _, e := range rec.Result.Events {
		if _, err := estmt.Exec(rec.RunID, e.Date.Format(model.DateLayout), string(e.Side)); err != nil {
			return rollback(fmt.Errorf("sqlite insert event: %w", err))
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite commit run: %w", err)
	}
	log.Printf("[sqlite] saved run %s (%d points, %d events)", rec.RunID, len(rec.Result.Points), len(rec.Result.Events))
	return nil
}

// Close closes the database.
func (w *Writer) Close() error {
	return w.db.Close()
}

package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"bandrebalance/internal/backtest"

	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveRun(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	res := &backtest.Result{
		Buys:  make([]time.Time, 2),
		Sells: make([]time.Time, 3),
	}
	res.Summary.TotalReturn = 0.25

	m.ObserveRun("00631L", 100, res, 5*time.Millisecond, nil)
	m.ObserveRun("00631L", 0, nil, time.Millisecond, errors.New("bad bar"))

	if got := testutil.ToFloat64(m.RunsTotal.WithLabelValues("ok")); got != 1 {
		t.Errorf("ok runs: %v", got)
	}
	if got := testutil.ToFloat64(m.RunsTotal.WithLabelValues("error")); got != 1 {
		t.Errorf("error runs: %v", got)
	}
	if got := testutil.ToFloat64(m.BarsProcessed); got != 100 {
		t.Errorf("bars: %v", got)
	}
	if got := testutil.ToFloat64(m.TradesTotal.WithLabelValues("BUY")); got != 2 {
		t.Errorf("buys: %v", got)
	}
	if got := testutil.ToFloat64(m.TradesTotal.WithLabelValues("SELL")); got != 3 {
		t.Errorf("sells: %v", got)
	}
	if got := testutil.ToFloat64(m.LastReturn.WithLabelValues("00631L")); got != 0.25 {
		t.Errorf("last return: %v", got)
	}
	if n := testutil.CollectAndCount(m.RunDuration); n != 1 {
		t.Errorf("expected one histogram series, got %d", n)
	}
}

func getHealth(t *testing.T, h *HealthStatus) (int, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	return rec.Code, body
}

func TestHealthStatus(t *testing.T) {
	tests := []struct {
		name         string
		redisEnabled bool
		redisUp      bool
		sqliteOK     bool
		wantCode     int
		wantStatus   string
	}{
		{"sqlite only, up", false, false, true, http.StatusOK, "healthy"},
		{"sqlite only, down", false, false, false, http.StatusServiceUnavailable, "unhealthy"},
		{"both up", true, true, true, http.StatusOK, "healthy"},
		{"redis down", true, false, true, http.StatusServiceUnavailable, "degraded"},
		{"sqlite down", true, true, false, http.StatusServiceUnavailable, "degraded"},
		{"both down", true, false, false, http.StatusServiceUnavailable, "unhealthy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthStatus(tt.redisEnabled)
			h.RedisConnected = tt.redisUp
			h.SQLiteOK = tt.sqliteOK
			code, body := getHealth(t, h)
			if code != tt.wantCode || body["status"] != tt.wantStatus {
				t.Errorf("got %d %v, want %d %s", code, body["status"], tt.wantCode, tt.wantStatus)
			}
		})
	}
}

func TestCheckSQLite(t *testing.T) {
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "h.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	h := NewHealthStatus(false)
	h.CheckSQLite(context.Background(), db)
	if code, _ := getHealth(t, h); code != http.StatusOK {
		t.Errorf("expected healthy after check, got %d", code)
	}

	db.Close()
	h.CheckSQLite(context.Background(), db)
	if code, _ := getHealth(t, h); code != http.StatusServiceUnavailable {
		t.Errorf("expected unhealthy after close, got %d", code)
	}
}

func TestHandler_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.GatewayRequests.WithLabelValues("backtest").Inc()

	srv := httptest.NewServer(Handler(reg, NewHealthStatus(false)))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `backtest_gateway_requests_total{endpoint="backtest"} 1`) {
		t.Errorf("metric not exposed:\n%s", body)
	}
}

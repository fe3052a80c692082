package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"bandrebalance/internal/backtest"
	"bandrebalance/internal/model"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus metrics of the backtester.
type Metrics struct {
	RunsTotal     *prometheus.CounterVec // labels: status=ok|error
	BarsProcessed prometheus.Counter
	TradesTotal   *prometheus.CounterVec // labels: side
	RunDuration   prometheus.Histogram
	LastReturn    *prometheus.GaugeVec // labels: symbol

	// Redis publishing
	RedisCircuitBreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	RedisPublishFailures     prometheus.Counter

	// Gateway
	GatewayRequests *prometheus.CounterVec // labels: endpoint
	WSClients       prometheus.Gauge
}

// NewMetrics creates the metrics and registers them with reg.
// A nil reg uses the default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "backtest_runs_total",
			Help: "Backtest runs by outcome",
		}, []string{"status"}),
		BarsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "backtest_bars_processed_total",
			Help: "Bars fed into the simulation loop",
		}),
		TradesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "backtest_trades_total",
			Help: "Rebalancing trades by side",
		}, []string{"side"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "backtest_run_duration_seconds",
			Help:    "Wall time of a single backtest run",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
		LastReturn: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "backtest_last_total_return",
			Help: "Total return of the latest run per symbol (fraction)",
		}, []string{"symbol"}),

		RedisCircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "backtest_redis_circuit_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		RedisPublishFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "backtest_redis_publish_failures_total",
			Help: "Run publications that failed or were rejected by the breaker",
		}),

		GatewayRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "backtest_gateway_requests_total",
			Help: "Gateway requests by endpoint",
		}, []string{"endpoint"}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "backtest_gateway_ws_clients",
			Help: "Connected WebSocket streaming clients",
		}),
	}

	reg.MustRegister(
		m.RunsTotal,
		m.BarsProcessed,
		m.TradesTotal,
		m.RunDuration,
		m.LastReturn,
		m.RedisCircuitBreakerState,
		m.RedisPublishFailures,
		m.GatewayRequests,
		m.WSClients,
	)
	return m
}

// ObserveRun records one finished run. res may be nil when err is set.
func (m *Metrics) ObserveRun(symbol string, bars int, res *backtest.Result, dur time.Duration, err error) {
	m.RunDuration.Observe(dur.Seconds())
	if err != nil {
		m.RunsTotal.WithLabelValues("error").Inc()
		return
	}
	m.RunsTotal.WithLabelValues("ok").Inc()
	m.BarsProcessed.Add(float64(bars))
	m.TradesTotal.WithLabelValues(string(model.SideBuy)).Add(float64(len(res.Buys)))
	m.TradesTotal.WithLabelValues(string(model.SideSell)).Add(float64(len(res.Sells)))
	if symbol != "" {
		m.LastReturn.WithLabelValues(symbol).Set(res.Summary.TotalReturn)
	}
}

// HealthStatus tracks the reachability of the stores.
type HealthStatus struct {
	mu sync.RWMutex

	RedisEnabled    bool
	RedisConnected  bool
	SQLiteOK        bool
	RedisLatencyMs  float64
	SQLiteLatencyMs float64
	LastCheckAt     time.Time
	StartedAt       time.Time
}

// NewHealthStatus returns a health status; redisEnabled false means Redis is
// not part of the deployment and does not degrade health.
func NewHealthStatus(redisEnabled bool) *HealthStatus {
	return &HealthStatus{
		RedisEnabled: redisEnabled,
		StartedAt:    time.Now(),
	}
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite pings the database and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker probes the stores immediately and then every interval.
// A nil rdb or sqlDB is skipped.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	probe := func() {
		probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if rdb != nil {
			h.CheckRedis(probeCtx, rdb)
		}
		if sqlDB != nil {
			h.CheckSQLite(probeCtx, sqlDB)
		}
	}
	go func() {
		probe()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probe()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK
	redisDown := h.RedisEnabled && !h.RedisConnected

	if redisDown || !h.SQLiteOK {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}
	if !h.SQLiteOK && (redisDown || !h.RedisEnabled) {
		overallStatus = "unhealthy"
	}

	status := struct {
		Status          string  `json:"status"`
		Uptime          string  `json:"uptime"`
		RedisEnabled    bool    `json:"redis_enabled"`
		RedisConnected  bool    `json:"redis_connected"`
		RedisLatencyMs  float64 `json:"redis_latency_ms"`
		SQLiteOK        bool    `json:"sqlite_ok"`
		SQLiteLatencyMs float64 `json:"sqlite_latency_ms"`
		LastCheckAt     string  `json:"last_check_at"`
	}{
		Status:          overallStatus,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		RedisEnabled:    h.RedisEnabled,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		LastCheckAt:     h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	addr string
	srv  *http.Server
}

// NewServer creates a metrics and health server. gatherer nil uses the
// default gatherer.
func NewServer(addr string, gatherer prometheus.Gatherer, health *HealthStatus) *Server {
	return &Server{
		addr: addr,
		srv: &http.Server{
			Addr:    addr,
			Handler: Handler(gatherer, health),
		},
	}
}

// Handler returns the mux serving /metrics and /healthz.
func Handler(gatherer prometheus.Gatherer, health *HealthStatus) http.Handler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.Handle("/healthz", health)
	return mux
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}

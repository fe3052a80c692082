// Package gateway exposes backtests over HTTP: on-demand runs against stored
// bars, the run journal, published summaries, and a WebSocket stream of a
// run's daily points.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"bandrebalance/internal/backtest"
	"bandrebalance/internal/logger"
	"bandrebalance/internal/marketdata/replay"
	"bandrebalance/internal/metrics"
	"bandrebalance/internal/model"
	"bandrebalance/internal/report"
	"bandrebalance/internal/store/redis"
	"bandrebalance/internal/store/sqlite"
)

// RunStore is the run journal read by /api/runs and /api/run.
type RunStore interface {
	ListRuns(symbol string, limit int) ([]sqlite.RunInfo, error)
	ReadRun(runID string) (*backtest.Record, error)
}

// LiveSource serves the summaries and events published to Redis.
type LiveSource interface {
	LatestRun(ctx context.Context, symbol string) (*redis.RunMessage, error)
	RecentEvents(ctx context.Context, symbol string, count int64) ([]model.Event, error)
}

// RunPublisher announces on-demand runs requested with publish=true.
type RunPublisher interface {
	PublishRun(ctx context.Context, rec *backtest.Record) error
}

// Deps wires the gateway to its collaborators. Runs, Live, Publisher and
// Metrics are optional.
type Deps struct {
	Bars      model.BarReader
	Runs      RunStore
	Live      LiveSource
	Publisher RunPublisher
	Metrics   *metrics.Metrics
	Defaults  backtest.Params
}

// Server handles the gateway routes.
type Server struct {
	loader    *replay.Loader
	runs      RunStore
	live      LiveSource
	publisher RunPublisher
	metrics   *metrics.Metrics
	defaults  backtest.Params
	now       func() time.Time
}

// New creates a gateway server. A zero Defaults uses backtest.DefaultParams.
func New(d Deps) *Server {
	defaults := d.Defaults
	if defaults == (backtest.Params{}) {
		defaults = backtest.DefaultParams()
	}
	return &Server{
		loader:    replay.New(d.Bars),
		runs:      d.Runs,
		live:      d.Live,
		publisher: d.Publisher,
		metrics:   d.Metrics,
		defaults:  defaults,
		now:       time.Now,
	}
}

// SetCORS sets CORS headers for REST endpoints.
func SetCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

// RegisterRoutes registers all HTTP routes on the provided mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/backtest", s.rest("backtest", s.handleBacktest))
	mux.HandleFunc("/api/runs", s.rest("runs", s.handleRuns))
	mux.HandleFunc("/api/run", s.rest("run", s.handleRun))
	mux.HandleFunc("/api/latest", s.rest("latest", s.handleLatest))
	mux.HandleFunc("/api/events", s.rest("events", s.handleEvents))
	mux.HandleFunc("/ws/backtest", s.handleStream)
}

// Handler returns a mux with all routes registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return mux
}

type restHandler func(r *http.Request) (interface{}, int, error)

// rest wraps a handler with CORS, method filtering, metrics and JSON encoding.
func (s *Server) rest(endpoint string, h restHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			json.NewEncoder(w).Encode(errorBody{Error: "method not allowed"})
			return
		}
		if s.metrics != nil {
			s.metrics.GatewayRequests.WithLabelValues(endpoint).Inc()
		}

		body, code, err := h(r)
		if err != nil {
			if code >= 500 {
				log.Printf("[api_gateway] %s: %v", endpoint, err)
			}
			w.WriteHeader(code)
			json.NewEncoder(w).Encode(errorBody{Error: err.Error()})
			return
		}
		json.NewEncoder(w).Encode(body)
	}
}

// backtestRequest is the parsed query of /api/backtest and /ws/backtest.
type backtestRequest struct {
	Symbol   string
	From, To time.Time
	Params   backtest.Params
	Publish  bool
}

func (s *Server) parseBacktestRequest(q url.Values) (backtestRequest, error) {
	req := backtestRequest{Symbol: q.Get("symbol"), Params: s.defaults}
	if req.Symbol == "" {
		return req, errors.New("symbol is required")
	}
	var err error
	if v := q.Get("from"); v != "" {
		if req.From, err = model.ParseDate(v); err != nil {
			return req, fmt.Errorf("invalid from: %w", err)
		}
	}
	if v := q.Get("to"); v != "" {
		if req.To, err = model.ParseDate(v); err != nil {
			return req, fmt.Errorf("invalid to: %w", err)
		}
	}
	if v := q.Get("publish"); v != "" {
		if req.Publish, err = strconv.ParseBool(v); err != nil {
			return req, fmt.Errorf("invalid publish: %w", err)
		}
	}
	if v := q.Get("window"); v != "" {
		if req.Params.WindowSize, err = strconv.Atoi(v); err != nil {
			return req, fmt.Errorf("invalid window: %w", err)
		}
	}
	floats := []struct {
		key string
		dst *float64
	}{
		{"k", &req.Params.BandMultiplier},
		{"cash", &req.Params.InitialCash},
		{"alloc", &req.Params.InitialAllocation},
		{"target", &req.Params.RebalanceTarget},
	}
	for _, f := range floats {
		v := q.Get(f.key)
		if v == "" {
			continue
		}
		if *f.dst, err = strconv.ParseFloat(v, 64); err != nil {
			return req, fmt.Errorf("invalid %s: %w", f.key, err)
		}
	}
	if err := req.Params.Validate(); err != nil {
		return req, err
	}
	return req, nil
}

// run loads bars and simulates one request.
func (s *Server) run(ctx context.Context, req backtestRequest) (*backtest.Record, int, error) {
	bars, err := s.loader.Load(ctx, req.Symbol, req.From, req.To)
	if err != nil {
		return nil, http.StatusInternalServerError, err
	}
	if len(bars) == 0 {
		return nil, http.StatusNotFound, fmt.Errorf("no bars stored for %s", req.Symbol)
	}

	start := s.now()
	res, err := backtest.Run(bars, req.Params)
	if s.metrics != nil {
		s.metrics.ObserveRun(req.Symbol, len(bars), res, time.Since(start), err)
	}
	if err != nil {
		return nil, http.StatusUnprocessableEntity, err
	}

	rec := backtest.NewRecord(logger.NewRunID(req.Symbol, start), req.Symbol, res, start)
	ctx = logger.WithRunID(ctx, rec.RunID)
	log.Printf("[api_gateway] run %s: %s %s, %d points, %d buys, %d sells",
		logger.RunID(ctx), req.Symbol, req.Params, len(res.Points), len(res.Buys), len(res.Sells))
	return rec, http.StatusOK, nil
}

func (s *Server) handleBacktest(r *http.Request) (interface{}, int, error) {
	req, err := s.parseBacktestRequest(r.URL.Query())
	if err != nil {
		return nil, http.StatusBadRequest, err
	}
	rec, code, err := s.run(r.Context(), req)
	if err != nil {
		return nil, code, err
	}
	res := rec.Result
	return BacktestResponse{
		RunID:     rec.RunID,
		Symbol:    rec.Symbol,
		Params:    res.Params,
		Summary:   res.Summary,
		Points:    res.Points,
		Events:    res.Events,
		Markers:   report.EventMarkers(res.Points, res.Events),
		Published: req.Publish && s.publish(r.Context(), rec),
	}, http.StatusOK, nil
}

// publish hands rec to the publisher. A failure is logged and counted but
// does not fail the request.
func (s *Server) publish(ctx context.Context, rec *backtest.Record) bool {
	if s.publisher == nil {
		return false
	}
	if err := s.publisher.PublishRun(logger.WithRunID(ctx, rec.RunID), rec); err != nil {
		log.Printf("[api_gateway] publish %s: %v", rec.RunID, err)
		if s.metrics != nil {
			s.metrics.RedisPublishFailures.Inc()
		}
		return false
	}
	return true
}

func (s *Server) handleRuns(r *http.Request) (interface{}, int, error) {
	if s.runs == nil {
		return nil, http.StatusServiceUnavailable, errors.New("run journal not configured")
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if l, err := strconv.Atoi(v); err == nil && l > 0 && l <= 500 {
			limit = l
		}
	}
	runs, err := s.runs.ListRuns(r.URL.Query().Get("symbol"), limit)
	if err != nil {
		return nil, http.StatusInternalServerError, err
	}
	return runs, http.StatusOK, nil
}

func (s *Server) handleRun(r *http.Request) (interface{}, int, error) {
	if s.runs == nil {
		return nil, http.StatusServiceUnavailable, errors.New("run journal not configured")
	}
	id := r.URL.Query().Get("id")
	if id == "" {
		return nil, http.StatusBadRequest, errors.New("id is required")
	}
	rec, err := s.runs.ReadRun(id)
	if errors.Is(err, sqlite.ErrRunNotFound) {
		return nil, http.StatusNotFound, err
	}
	if err != nil {
		return nil, http.StatusInternalServerError, err
	}
	return rec, http.StatusOK, nil
}

func (s *Server) handleLatest(r *http.Request) (interface{}, int, error) {
	if s.live == nil {
		return nil, http.StatusServiceUnavailable, errors.New("redis not configured")
	}
	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		return nil, http.StatusBadRequest, errors.New("symbol is required")
	}
	msg, err := s.live.LatestRun(r.Context(), symbol)
	if errors.Is(err, redis.ErrNoSummary) {
		return nil, http.StatusNotFound, err
	}
	if err != nil {
		return nil, http.StatusBadGateway, err
	}
	return msg, http.StatusOK, nil
}

func (s *Server) handleEvents(r *http.Request) (interface{}, int, error) {
	if s.live == nil {
		return nil, http.StatusServiceUnavailable, errors.New("redis not configured")
	}
	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		return nil, http.StatusBadRequest, errors.New("symbol is required")
	}
	var count int64 = 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if l, err := strconv.ParseInt(v, 10, 64); err == nil && l > 0 && l <= 1000 {
			count = l
		}
	}
	events, err := s.live.RecentEvents(r.Context(), symbol, count)
	if err != nil {
		return nil, http.StatusBadGateway, err
	}
	return events, http.StatusOK, nil
}

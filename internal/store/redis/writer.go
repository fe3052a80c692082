package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"bandrebalance/internal/backtest"
	"bandrebalance/internal/model"
	"bandrebalance/internal/portfolio"

	goredis "github.com/go-redis/redis/v8"
)

const (
	defaultSummaryTTL   = 24 * time.Hour
	defaultEventsMaxLen = 5000
	defaultMaxFailures  = 3
	defaultCoolDown     = 10 * time.Second
)

// PublisherConfig configures the Redis publisher.
type PublisherConfig struct {
	Addr         string // Redis address, e.g. "localhost:6379"
	Password     string
	DB           int
	SummaryTTL   time.Duration // lifetime of bt:summary:* keys
	EventsMaxLen int64         // approximate cap of bt:events:* streams

	// OnStateChange, if set, is notified of circuit breaker transitions.
	OnStateChange func(from, to State)
}

// Publisher pushes finished backtests to Redis for dashboards and other
// subscribers.
type Publisher struct {
	client  *goredis.Client
	breaker *CircuitBreaker
	ttl     time.Duration
	maxLen  int64
}

// RunMessage is the JSON document stored under the summary key and published
// on the run channel.
type RunMessage struct {
	RunID     string            `json:"run_id"`
	Symbol    string            `json:"symbol"`
	CreatedAt time.Time         `json:"created_at"`
	Params    backtest.Params   `json:"params"`
	Summary   portfolio.Summary `json:"summary"`
}

// SummaryKey holds the latest run summary of a symbol.
func SummaryKey(symbol string) string { return "bt:summary:" + symbol }

// EventStreamKey is the stream of rebalancing events of a symbol.
func EventStreamKey(symbol string) string { return "bt:events:" + symbol }

// RunChannel is the pub/sub channel announcing finished runs of a symbol.
func RunChannel(symbol string) string { return "pub:bt:" + symbol }

// New creates a Publisher and pings the server.
func New(cfg PublisherConfig) (*Publisher, error) {
	p := Dial(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return p, nil
}

// Dial creates a Publisher without contacting the server. The client
// connects lazily, so a server that is down at startup can still be probed
// and used once it comes back.
func Dial(cfg PublisherConfig) *Publisher {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewPublisher(client, cfg)
}

// NewPublisher wraps an existing client.
func NewPublisher(client *goredis.Client, cfg PublisherConfig) *Publisher {
	ttl := cfg.SummaryTTL
	if ttl <= 0 {
		ttl = defaultSummaryTTL
	}
	maxLen := cfg.EventsMaxLen
	if maxLen <= 0 {
		maxLen = defaultEventsMaxLen
	}
	cb := NewCircuitBreaker(defaultMaxFailures, defaultCoolDown)
	cb.OnStateChange = func(from, to State) {
		log.Printf("[redis] circuit breaker %s → %s", from, to)
		if cfg.OnStateChange != nil {
			cfg.OnStateChange(from, to)
		}
	}
	return &Publisher{client: client, breaker: cb, ttl: ttl, maxLen: maxLen}
}

// Client returns the underlying Redis client for health checks.
func (p *Publisher) Client() *goredis.Client { return p.client }

// Breaker exposes the circuit breaker state.
func (p *Publisher) Breaker() *CircuitBreaker { return p.breaker }

// PublishRun writes the run summary (SET with TTL), appends every event to
// the symbol's stream (XADD, approximate MAXLEN) and announces the run
// (PUBLISH), all in one pipeline.
func (p *Publisher) PublishRun(ctx context.Context, rec *backtest.Record) error {
	if rec == nil || rec.Result == nil {
		return fmt.Errorf("redis publish: empty record")
	}
	msg, err := json.Marshal(NewRunMessage(rec))
	if err != nil {
		return fmt.Errorf("marshal run: %w", err)
	}
	payload := string(msg)

	err = p.breaker.Execute(func() error {
		pipe := p.client.Pipeline()
		pipe.Set(ctx, SummaryKey(rec.Symbol), payload, p.ttl)
		for _, e := range rec.Result.Events {
			pipe.XAdd(ctx, &goredis.XAddArgs{
				Stream: EventStreamKey(rec.Symbol),
				MaxLen: p.maxLen,
				Approx: true,
				Values: eventValues(rec.RunID, e),
			})
		}
		pipe.Publish(ctx, RunChannel(rec.Symbol), payload)
		_, err := pipe.Exec(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("redis publish run %s: %w", rec.RunID, err)
	}
	log.Printf("[redis] published run %s (%d events)", rec.RunID, len(rec.Result.Events))
	return nil
}

// NewRunMessage extracts the published fields of a record.
func NewRunMessage(rec *backtest.Record) RunMessage {
	return RunMessage{
		RunID:     rec.RunID,
		Symbol:    rec.Symbol,
		CreatedAt: rec.CreatedAt,
		Params:    rec.Result.Params,
		Summary:   rec.Result.Summary,
	}
}

func eventValues(runID string, e model.Event) map[string]interface{} {
	return map[string]interface{}{
		"run_id": runID,
		"date":   e.Date.Format(model.DateLayout),
		"side":   string(e.Side),
	}
}

// Ping checks connectivity.
func (p *Publisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (p *Publisher) Close() error {
	return p.client.Close()
}

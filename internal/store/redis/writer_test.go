package redis

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"bandrebalance/internal/backtest"
	"bandrebalance/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

func testRecord() *backtest.Record {
	d := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	res := &backtest.Result{
		Params: backtest.DefaultParams(),
		Events: []model.Event{{Date: d, Side: model.SideSell}},
	}
	res.Summary.Sells = 1
	return backtest.NewRecord("00631L-1", "00631L", res, d)
}

func TestKeys(t *testing.T) {
	if SummaryKey("2330") != "bt:summary:2330" {
		t.Error(SummaryKey("2330"))
	}
	if EventStreamKey("2330") != "bt:events:2330" {
		t.Error(EventStreamKey("2330"))
	}
	if RunChannel("2330") != "pub:bt:2330" {
		t.Error(RunChannel("2330"))
	}
}

func TestRunMessage_JSON(t *testing.T) {
	data, err := json.Marshal(NewRunMessage(testRecord()))
	if err != nil {
		t.Fatal(err)
	}
	var back RunMessage
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if back.RunID != "00631L-1" || back.Summary.Sells != 1 || back.Params.WindowSize != 20 {
		t.Errorf("round trip: %+v", back)
	}
}

func TestParseEvent(t *testing.T) {
	e, err := parseEvent(eventValues("r", model.Event{
		Date: time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC), Side: model.SideBuy,
	}))
	if err != nil {
		t.Fatalf("parseEvent: %v", err)
	}
	if e.Side != model.SideBuy || e.Date.Format(model.DateLayout) != "2024-05-06" {
		t.Errorf("got %+v", e)
	}
	if _, err := parseEvent(map[string]interface{}{"date": "2024-05-06", "side": "HOLD"}); err == nil {
		t.Error("expected error for unknown side")
	}
}

// An unreachable server trips the breaker after repeated failures.
func TestPublishRun_BreakerTrips(t *testing.T) {
	client := goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	p := NewPublisher(client, PublisherConfig{})
	defer p.Close()

	ctx := context.Background()
	for i := 0; i < defaultMaxFailures; i++ {
		if err := p.PublishRun(ctx, testRecord()); err == nil {
			t.Fatalf("call %d: expected error", i)
		}
	}
	if p.Breaker().CurrentState() != StateOpen {
		t.Fatalf("expected open breaker, got %v", p.Breaker().CurrentState())
	}
	if err := p.PublishRun(ctx, testRecord()); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestPublishRun_EmptyRecord(t *testing.T) {
	p := NewPublisher(goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:1"}), PublisherConfig{})
	defer p.Close()
	if err := p.PublishRun(context.Background(), nil); err == nil {
		t.Error("expected error")
	}
}

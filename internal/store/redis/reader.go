package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"bandrebalance/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

// ErrNoSummary is returned when no run has been published for a symbol or
// its summary expired.
var ErrNoSummary = errors.New("redis: no published summary")

// LatestRun returns the most recently published run summary of symbol.
func (p *Publisher) LatestRun(ctx context.Context, symbol string) (*RunMessage, error) {
	data, err := p.client.Get(ctx, SummaryKey(symbol)).Bytes()
	if err != nil {
		if err == goredis.Nil {
			return nil, ErrNoSummary
		}
		return nil, fmt.Errorf("redis GET %s: %w", SummaryKey(symbol), err)
	}
	var msg RunMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal summary: %w", err)
	}
	return &msg, nil
}

// RecentEvents reads up to count of the newest events of symbol, newest first.
func (p *Publisher) RecentEvents(ctx context.Context, symbol string, count int64) ([]model.Event, error) {
	msgs, err := p.client.XRevRangeN(ctx, EventStreamKey(symbol), "+", "-", count).Result()
	if err != nil {
		return nil, fmt.Errorf("redis XREVRANGE %s: %w", EventStreamKey(symbol), err)
	}
	events := make([]model.Event, 0, len(msgs))
	for _, m := range msgs {
		e, err := parseEvent(m.Values)
		if err != nil {
			return nil, fmt.Errorf("redis event %s: %w", m.ID, err)
		}
		events = append(events, e)
	}
	return events, nil
}

func parseEvent(values map[string]interface{}) (model.Event, error) {
	day, _ := values["date"].(string)
	side, _ := values["side"].(string)
	d, err := model.ParseDate(day)
	if err != nil {
		return model.Event{}, err
	}
	switch model.Side(side) {
	case model.SideBuy, model.SideSell:
	default:
		return model.Event{}, fmt.Errorf("unknown side %q", side)
	}
	return model.Event{Date: d, Side: model.Side(side)}, nil
}

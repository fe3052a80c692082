package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"bandrebalance/internal/backtest"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"SQLITE_PATH", "REDIS_ADDR", "METRICS_ADDR", "GATEWAY_ADDR", "LOG_LEVEL", "STRATEGY_FILE", "TELEGRAM_BOT_TOKEN"} {
		t.Setenv(k, "")
	}
	cfg := Load()
	if cfg.SQLitePath != "data/bars.db" || cfg.MetricsAddr != ":9090" || cfg.GatewayAddr != ":8080" || cfg.LogLevel != "info" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.RedisEnabled() || cfg.TelegramEnabled() {
		t.Error("redis and telegram should be disabled by default")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("SQLITE_PATH", "/tmp/x.db")
	t.Setenv("TELEGRAM_BOT_TOKEN", "tok")
	t.Setenv("TELEGRAM_CHAT_ID", "1")
	cfg := Load()
	if !cfg.RedisEnabled() || cfg.SQLitePath != "/tmp/x.db" || !cfg.TelegramEnabled() {
		t.Errorf("overrides not applied: %+v", cfg)
	}
}

func TestLoadStrategy(t *testing.T) {
	sf, err := LoadStrategy(filepath.Join("testdata", "strategy.yaml"))
	if err != nil {
		t.Fatalf("LoadStrategy: %v", err)
	}
	if len(sf.Symbols) != 2 || sf.Symbols[1] != "2330" {
		t.Errorf("symbols: %q", sf.Symbols)
	}
	p, err := sf.Params()
	if err != nil {
		t.Fatalf("Params: %v", err)
	}
	want := backtest.DefaultParams()
	want.WindowSize = 10
	want.BandMultiplier = 1.5
	want.RebalanceTarget = 0.6
	if p != want {
		t.Errorf("got %+v, want %+v", p, want)
	}
}

func TestLoadStrategy_Errors(t *testing.T) {
	if _, err := LoadStrategy(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(bad, []byte("window_size: [1, 2\n"), 0o644)
	if _, err := LoadStrategy(bad); err == nil {
		t.Error("expected parse error")
	}
}

func TestStrategyParams_Invalid(t *testing.T) {
	_, err := StrategyFile{WindowSize: 1}.Params()
	if !errors.Is(err, backtest.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestStrategyParams_Empty(t *testing.T) {
	p, err := StrategyFile{}.Params()
	if err != nil || p != backtest.DefaultParams() {
		t.Errorf("expected defaults, got %+v %v", p, err)
	}
}

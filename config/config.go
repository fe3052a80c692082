// Package config loads process settings from the environment and strategy
// parameters from YAML files.
package config

import (
	"fmt"
	"log"
	"os"
	"strings"

	"bandrebalance/internal/backtest"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Storage
	SQLitePath    string
	RedisAddr     string // empty disables publishing
	RedisPassword string

	// Servers
	MetricsAddr string
	GatewayAddr string

	// Notifications
	WebhookURL       string
	TelegramBotToken string
	TelegramChatID   string

	LogLevel     string
	StrategyFile string // empty uses default parameters
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		SQLitePath:    getEnv("SQLITE_PATH", "data/bars.db"),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		MetricsAddr: getEnv("METRICS_ADDR", ":9090"),
		GatewayAddr: getEnv("GATEWAY_ADDR", ":8080"),

		WebhookURL:       getEnv("WEBHOOK_URL", ""),
		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),

		LogLevel:     getEnv("LOG_LEVEL", "info"),
		StrategyFile: getEnv("STRATEGY_FILE", ""),
	}
}

// RedisEnabled reports whether a Redis address is configured.
func (c *Config) RedisEnabled() bool { return c.RedisAddr != "" }

// TelegramEnabled reports whether both Telegram settings are present.
func (c *Config) TelegramEnabled() bool {
	return c.TelegramBotToken != "" && c.TelegramChatID != ""
}

// StrategyFile is the YAML layout of a strategy definition.
type StrategyFile struct {
	Symbols           []string `yaml:"symbols"`
	WindowSize        int      `yaml:"window_size"`
	BandMultiplier    float64  `yaml:"band_multiplier"`
	InitialCash       float64  `yaml:"initial_cash"`
	InitialAllocation float64  `yaml:"initial_allocation"`
	RebalanceTarget   float64  `yaml:"rebalance_target"`
}

// LoadStrategy reads and parses a strategy file.
func LoadStrategy(path string) (StrategyFile, error) {
	var sf StrategyFile
	data, err := os.ReadFile(path)
	if err != nil {
		return sf, fmt.Errorf("read strategy: %w", err)
	}
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return sf, fmt.Errorf("parse strategy %s: %w", path, err)
	}
	for i, s := range sf.Symbols {
		sf.Symbols[i] = strings.TrimSpace(s)
	}
	return sf, nil
}

// Params overlays the non-zero fields of the file onto the default
// parameters and validates the outcome.
func (sf StrategyFile) Params() (backtest.Params, error) {
	p := backtest.DefaultParams()
	if sf.WindowSize != 0 {
		p.WindowSize = sf.WindowSize
	}
	if sf.BandMultiplier != 0 {
		p.BandMultiplier = sf.BandMultiplier
	}
	if sf.InitialCash != 0 {
		p.InitialCash = sf.InitialCash
	}
	if sf.InitialAllocation != 0 {
		p.InitialAllocation = sf.InitialAllocation
	}
	if sf.RebalanceTarget != 0 {
		p.RebalanceTarget = sf.RebalanceTarget
	}
	if err := p.Validate(); err != nil {
		return p, err
	}
	return p, nil
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

// LogSummary prints the effective configuration without secrets.
func (c *Config) LogSummary() {
	log.Printf("[config] sqlite=%s redis=%q metrics=%s gateway=%s webhook=%t telegram=%t strategy=%q",
		c.SQLitePath, c.RedisAddr, c.MetricsAddr, c.GatewayAddr, c.WebhookURL != "", c.TelegramEnabled(), c.StrategyFile)
}

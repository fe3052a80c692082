// Package notification delivers backtest completion and failure alerts to
// external channels.
package notification

import (
	"context"
	"errors"
	"fmt"
	"log"

	"bandrebalance/internal/portfolio"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// DrawdownWarning is the max drawdown from which a run alert is raised to
// AlertWarning.
const DrawdownWarning = 0.2

// Alert represents a notification to be sent.
type Alert struct {
	Level   AlertLevel         `json:"level"`
	Title   string             `json:"title"`
	Message string             `json:"message"`
	Symbol  string             `json:"symbol,omitempty"`
	RunID   string             `json:"run_id,omitempty"`
	Summary *portfolio.Summary `json:"summary,omitempty"`
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier writes alerts to the standard logger.
type LogNotifier struct{}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	log.Printf("[notify] [%s] %s: %s", alert.Level, alert.Title, alert.Message)
	return nil
}

// Multi sends every alert to all of its notifiers and joins their errors.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, alert Alert) error {
	var errs []error
	for _, n := range m {
		if err := n.Send(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RunAlert builds the completion alert of a backtest run.
func RunAlert(symbol, runID string, s portfolio.Summary) Alert {
	level := AlertInfo
	if s.MaxDrawdown >= DrawdownWarning {
		level = AlertWarning
	}
	period := "no simulated days"
	if s.Days > 0 {
		period = fmt.Sprintf("%s → %s (%d days)", s.StartDate.Format("2006-01-02"), s.EndDate.Format("2006-01-02"), s.Days)
	}
	return Alert{
		Level:   level,
		Title:   fmt.Sprintf("Backtest %s finished", symbol),
		Symbol:  symbol,
		RunID:   runID,
		Summary: &s,
		Message: fmt.Sprintf("%s | final %.2f | return %+.2f%% (buy&hold %+.2f%%) | max DD %.2f%% | %d buys, %d sells",
			period, s.FinalValue, s.TotalReturn*100, s.BuyHoldReturn*100, s.MaxDrawdown*100, s.Buys, s.Sells),
	}
}

// FailureAlert builds the alert for a run that could not complete.
func FailureAlert(symbol string, err error) Alert {
	return Alert{
		Level:   AlertCritical,
		Title:   fmt.Sprintf("Backtest %s failed", symbol),
		Message: err.Error(),
		Symbol:  symbol,
	}
}

// Build returns the notifier set for the given settings: always a
// LogNotifier, plus a webhook and Telegram when configured.
func Build(webhookURL, telegramToken, telegramChat string) Notifier {
	m := Multi{NewLogNotifier()}
	if webhookURL != "" {
		m = append(m, NewWebhookNotifier(webhookURL))
	}
	if telegramToken != "" && telegramChat != "" {
		m = append(m, NewTelegramNotifier(telegramToken, telegramChat))
	}
	return m
}

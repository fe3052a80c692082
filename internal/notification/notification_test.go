package notification

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"bandrebalance/internal/portfolio"
)

func TestRunAlert(t *testing.T) {
	s := portfolio.Summary{
		StartDate:     time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		EndDate:       time.Date(2024, 6, 28, 0, 0, 0, 0, time.UTC),
		Days:          120,
		FinalValue:    1_100_000,
		TotalReturn:   0.1,
		BuyHoldReturn: 0.15,
		MaxDrawdown:   0.05,
		Buys:          3,
		Sells:         2,
	}
	a := RunAlert("00631L", "00631L-1", s)
	if a.Level != AlertInfo {
		t.Errorf("expected INFO, got %s", a.Level)
	}
	if a.RunID != "00631L-1" || a.Summary == nil || a.Summary.Buys != 3 {
		t.Errorf("run fields: %+v", a)
	}
	for _, want := range []string{"2024-01-02 → 2024-06-28", "+10.00%", "+15.00%", "3 buys, 2 sells"} {
		if !strings.Contains(a.Message, want) {
			t.Errorf("message %q missing %q", a.Message, want)
		}
	}

	s.MaxDrawdown = 0.35
	if RunAlert("00631L", "r", s).Level != AlertWarning {
		t.Error("expected WARNING for deep drawdown")
	}
	if !strings.Contains(RunAlert("X", "", portfolio.Summary{}).Message, "no simulated days") {
		t.Error("expected empty-run message")
	}
}

func TestFailureAlert(t *testing.T) {
	a := FailureAlert("2330", errors.New("bar 3: close must be positive"))
	if a.Level != AlertCritical || a.Message != "bar 3: close must be positive" {
		t.Errorf("unexpected alert %+v", a)
	}
}

func TestWebhookNotifier(t *testing.T) {
	var got webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "application/json" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL)
	n.now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	alert := RunAlert("00631L", "00631L-7", portfolio.Summary{Days: 10, FinalValue: 1234.5, Sells: 2})
	if err := n.Send(context.Background(), alert); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got.Symbol != "00631L" || got.RunID != "00631L-7" || got.SentAt != "2024-01-01T00:00:00Z" {
		t.Errorf("payload: %+v", got)
	}
	if got.Summary == nil || got.Summary.FinalValue != 1234.5 || got.Summary.Sells != 2 {
		t.Errorf("summary: %+v", got.Summary)
	}
}

func TestWebhookNotifier_FailureHasNoSummary(t *testing.T) {
	var raw map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&raw)
	}))
	defer srv.Close()

	if err := NewWebhookNotifier(srv.URL).Send(context.Background(), FailureAlert("2330", errors.New("boom"))); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if _, ok := raw["summary"]; ok {
		t.Errorf("failure payload carries a summary: %v", raw)
	}
	if raw["level"] != "CRITICAL" || raw["message"] != "boom" {
		t.Errorf("payload: %v", raw)
	}
}

func TestWebhookNotifier_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewWebhookNotifier(srv.URL).Send(context.Background(), Alert{Title: "t"})
	if err == nil || !strings.Contains(err.Error(), "502") {
		t.Errorf("expected status error, got %v", err)
	}
}

func TestTelegramNotifier(t *testing.T) {
	var path string
	var body telegramMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		json.NewDecoder(r.Body).Decode(&body)
	}))
	defer srv.Close()

	n := NewTelegramNotifier("TOKEN", "42")
	n.apiURL = srv.URL
	if err := n.Send(context.Background(), Alert{Level: AlertCritical, Title: "run-1", Message: "a.b"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if path != "/botTOKEN/sendMessage" {
		t.Errorf("path: %s", path)
	}
	if body.ChatID != "42" || body.ParseMode != "MarkdownV2" || !strings.Contains(body.Text, `run\-1`) || !strings.Contains(body.Text, `a\.b`) {
		t.Errorf("body: %+v", body)
	}
}

func TestTelegramText_RunAlert(t *testing.T) {
	s := portfolio.Summary{Days: 120, FinalValue: 1_100_000, TotalReturn: 0.1, BuyHoldReturn: -0.05, MaxDrawdown: 0.125, Buys: 3, Sells: 2}
	text := telegramText(RunAlert("00631L", "00631L-9", s))
	for _, want := range []string{
		"ℹ️ *Backtest 00631L finished*",
		"run `00631L-9`",
		`final 1100000\.00`,
		`return \+10\.00% \(buy&hold \-5\.00%\)`,
		`max drawdown 12\.50%`,
		"3 buys, 2 sells over 120 days",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("text %q missing %q", text, want)
		}
	}
}

func TestTelegramNotifier_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	n := NewTelegramNotifier("bad", "1")
	n.apiURL = srv.URL
	if err := n.Send(context.Background(), Alert{Title: "t"}); err == nil || !strings.Contains(err.Error(), "telegram: unexpected status 401") {
		t.Errorf("expected status error, got %v", err)
	}
}

type failing struct{ err error }

func (f failing) Send(context.Context, Alert) error { return f.err }

func TestMulti(t *testing.T) {
	boom := errors.New("boom")
	m := Multi{NewLogNotifier(), failing{boom}, NewLogNotifier()}
	if err := m.Send(context.Background(), Alert{Title: "x"}); !errors.Is(err, boom) {
		t.Errorf("expected joined error, got %v", err)
	}
	if err := (Multi{NewLogNotifier()}).Send(context.Background(), Alert{}); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

func TestEscapeMarkdown(t *testing.T) {
	if got := escapeMarkdown("a_b*c (1.5%)"); got != `a\_b\*c \(1\.5%\)` {
		t.Errorf("got %s", got)
	}
	if got := escapeCode("a`b\\c"); got != "a\\`b\\\\c" {
		t.Errorf("escapeCode: got %s", got)
	}
}

func TestBuild(t *testing.T) {
	tests := []struct {
		webhook, token, chat string
		want                 int
	}{
		{"", "", "", 1},
		{"http://hook", "", "", 2},
		{"", "tok", "", 1},
		{"http://hook", "tok", "1", 3},
	}
	for _, tt := range tests {
		m, ok := Build(tt.webhook, tt.token, tt.chat).(Multi)
		if !ok || len(m) != tt.want {
			t.Errorf("Build(%q,%q,%q): got %d notifiers, want %d", tt.webhook, tt.token, tt.chat, len(m), tt.want)
		}
	}
}

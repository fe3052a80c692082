package notification

import (
	"context"
	"log"
	"net/http"
	"time"

	"bandrebalance/internal/portfolio"
)

// WebhookNotifier POSTs alerts as JSON documents to an HTTP endpoint.
// Run alerts carry the run id and the full summary so receivers need not
// parse the message text.
type WebhookNotifier struct {
	url    string
	client *http.Client
	now    func() time.Time
}

// NewWebhookNotifier creates a webhook notifier for url.
func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{url: url, client: newHTTPClient(), now: time.Now}
}

type webhookPayload struct {
	Level   AlertLevel         `json:"level"`
	Title   string             `json:"title"`
	Message string             `json:"message"`
	Symbol  string             `json:"symbol,omitempty"`
	RunID   string             `json:"run_id,omitempty"`
	Summary *portfolio.Summary `json:"summary,omitempty"`
	SentAt  string             `json:"sent_at"`
}

func (w *WebhookNotifier) Send(ctx context.Context, alert Alert) error {
	payload := webhookPayload{
		Level:   alert.Level,
		Title:   alert.Title,
		Message: alert.Message,
		Symbol:  alert.Symbol,
		RunID:   alert.RunID,
		Summary: alert.Summary,
		SentAt:  w.now().UTC().Format(time.RFC3339),
	}
	if err := postJSON(ctx, w.client, "webhook", w.url, payload); err != nil {
		return err
	}
	log.Printf("[webhook] %s alert for %s delivered", alert.Level, alert.Symbol)
	return nil
}

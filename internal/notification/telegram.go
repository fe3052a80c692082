package notification

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"

	"bandrebalance/internal/report"
)

const telegramAPI = "https://api.telegram.org"

// TelegramNotifier sends alerts to a chat through the Bot API, rendered as
// MarkdownV2. Run alerts are laid out one metric per line.
type TelegramNotifier struct {
	apiURL   string
	botToken string
	chatID   string
	client   *http.Client
}

// NewTelegramNotifier creates a Telegram notifier for the bot token and
// target chat id.
func NewTelegramNotifier(botToken, chatID string) *TelegramNotifier {
	return &TelegramNotifier{
		apiURL:   telegramAPI,
		botToken: botToken,
		chatID:   chatID,
		client:   newHTTPClient(),
	}
}

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

func (t *TelegramNotifier) Send(ctx context.Context, alert Alert) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.apiURL, t.botToken)
	msg := telegramMessage{ChatID: t.chatID, Text: telegramText(alert), ParseMode: "MarkdownV2"}
	if err := postJSON(ctx, t.client, "telegram", url, msg); err != nil {
		return err
	}
	log.Printf("[telegram] %s alert for %s delivered", alert.Level, alert.Symbol)
	return nil
}

var levelMarks = map[AlertLevel]string{
	AlertInfo:     "ℹ️",
	AlertWarning:  "⚠️",
	AlertCritical: "🚨",
}

// telegramText renders an alert as a MarkdownV2 message.
func telegramText(alert Alert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s *%s*\n", levelMarks[alert.Level], escapeMarkdown(alert.Title))
	if alert.RunID != "" {
		fmt.Fprintf(&b, "run `%s`\n", escapeCode(alert.RunID))
	}
	s := alert.Summary
	if s == nil {
		b.WriteString("\n" + escapeMarkdown(alert.Message))
		return b.String()
	}
	lines := []string{
		"final " + report.Money(s.FinalValue),
		"return " + report.Percent(s.TotalReturn) + " (buy&hold " + report.Percent(s.BuyHoldReturn) + ")",
		fmt.Sprintf("max drawdown %.2f%%", s.MaxDrawdown*100),
		fmt.Sprintf("%d buys, %d sells over %d days", s.Buys, s.Sells, s.Days),
	}
	for _, l := range lines {
		b.WriteString("\n• " + escapeMarkdown(l))
	}
	return b.String()
}

// escapeMarkdown escapes the MarkdownV2 reserved characters.
func escapeMarkdown(s string) string {
	const specials = "_*[]()~`>#+-=|{}.!"
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(specials, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// escapeCode escapes text placed inside a MarkdownV2 code span.
func escapeCode(s string) string {
	return strings.NewReplacer(`\`, `\\`, "`", "\\`").Replace(s)
}

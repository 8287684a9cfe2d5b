package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const telegramAPIBase = "https://api.telegram.org"

// TelegramSender delivers run events via the Telegram Bot API.
type TelegramSender struct {
	token   string
	chatID  string
	apiBase string
	client  *http.Client
}

var _ Sender = (*TelegramSender)(nil)

// NewTelegramSender creates a TelegramSender for the given bot token and chat
// ID. It uses a default HTTP client with a 10-second timeout.
func NewTelegramSender(token, chatID string) *TelegramSender {
	return &TelegramSender{
		token:   token,
		chatID:  chatID,
		apiBase: telegramAPIBase,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// SetBaseURL overrides the Telegram API base URL. Used by tests.
func (t *TelegramSender) SetBaseURL(u string) { t.apiBase = strings.TrimRight(u, "/") }

// Send renders the event as a Markdown message and posts it to the configured
// chat via the sendMessage API.
func (t *TelegramSender) Send(ctx context.Context, ev Event) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.token)

	payload := map[string]string{
		"chat_id":    t.chatID,
		"text":       renderTelegram(ev),
		"parse_mode": "Markdown",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("telegram: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("telegram: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	return nil
}

// renderTelegram formats the event as a bold headline plus one detail line
// per field.
func renderTelegram(ev Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*%s*\n", ev.Headline())
	fmt.Fprintf(&b, "rule: `%s`\n", ev.Rule.RuleID)
	fmt.Fprintf(&b, "pair: %s (%s / %s)\n", ev.Pair(), ev.Rule.OneSiteName, ev.Rule.OtherSiteName)

	switch ev.Kind {
	case EventRunSuccess:
		fmt.Fprintf(&b, "profit: %.0f %s", ev.Result.AdditionalProfit, ev.Rule.CurrencyUnit)
	case EventError:
		fmt.Fprintf(&b, "error: %v", ev.Err)
	default:
		fmt.Fprintf(&b, "total: %d runs, %d failed",
			ev.Rule.Counts.ExecutionCount, ev.Rule.Counts.FailureCount)
	}
	return b.String()
}

// Name returns the sender identifier.
func (t *TelegramSender) Name() string {
	return "telegram"
}

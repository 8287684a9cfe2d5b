package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Embed colors per event kind.
const (
	colorGreen  = 0x2ECC71
	colorOrange = 0xE67E22
	colorRed    = 0xE74C3C
)

// DiscordSender delivers run events via a Discord webhook, rendered as embeds
// with one field per rule attribute.
type DiscordSender struct {
	webhookURL string
	client     *http.Client
}

var _ Sender = (*DiscordSender)(nil)

// NewDiscordSender creates a DiscordSender for the given webhook URL. It uses
// a default HTTP client with a 10-second timeout.
func NewDiscordSender(webhookURL string) *DiscordSender {
	return &DiscordSender{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type discordEmbed struct {
	Title     string         `json:"title"`
	Color     int            `json:"color"`
	Fields    []discordField `json:"fields,omitempty"`
	Timestamp string         `json:"timestamp,omitempty"`
}

type discordPayload struct {
	Embeds []discordEmbed `json:"embeds"`
}

// Send posts the event to the Discord webhook as a single embed.
func (d *DiscordSender) Send(ctx context.Context, ev Event) error {
	body, err := json.Marshal(discordPayload{Embeds: []discordEmbed{buildEmbed(ev)}})
	if err != nil {
		return fmt.Errorf("discord: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("discord: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("discord: send request: %w", err)
	}
	defer resp.Body.Close()

	// Discord returns 204 No Content on success.
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("discord: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	return nil
}

// buildEmbed renders the event fields, colored by outcome.
func buildEmbed(ev Event) discordEmbed {
	embed := discordEmbed{
		Title: ev.Headline(),
		Color: embedColor(ev.Kind),
		Fields: []discordField{
			{Name: "Rule", Value: ev.Rule.RuleID, Inline: true},
			{Name: "Pair", Value: ev.Pair(), Inline: true},
			{Name: "Venues", Value: ev.Rule.OneSiteName + " / " + ev.Rule.OtherSiteName, Inline: true},
		},
	}
	if !ev.At.IsZero() {
		embed.Timestamp = ev.At.UTC().Format(time.RFC3339)
	}

	switch ev.Kind {
	case EventRunSuccess:
		embed.Fields = append(embed.Fields, discordField{
			Name:  "Profit",
			Value: fmt.Sprintf("%.0f %s", ev.Result.AdditionalProfit, ev.Rule.CurrencyUnit),
		})
	case EventError:
		embed.Fields = append(embed.Fields, discordField{
			Name:  "Error",
			Value: fmt.Sprintf("%v", ev.Err),
		})
	}
	return embed
}

func embedColor(kind string) int {
	switch kind {
	case EventRunSuccess:
		return colorGreen
	case EventRunCancellation:
		return colorOrange
	default:
		return colorRed
	}
}

// Name returns the sender identifier.
func (d *DiscordSender) Name() string {
	return "discord"
}

package notify

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keidrun/coinietrade/internal/domain"
)

func successEvent() Event {
	return Event{
		Kind:   EventRunSuccess,
		Rule:   testNotifyRule(),
		Result: domain.SuccessResult(1234),
	}
}

func TestTelegramSendRendersEvent(t *testing.T) {
	var got struct {
		ChatID    string `json:"chat_id"`
		Text      string `json:"text"`
		ParseMode string `json:"parse_mode"`
	}
	var path string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewTelegramSender("tok", "chat42")
	s.SetBaseURL(srv.URL)

	require.NoError(t, s.Send(t.Context(), successEvent()))

	assert.Equal(t, "/bottok/sendMessage", path)
	assert.Equal(t, "chat42", got.ChatID)
	assert.Equal(t, "Markdown", got.ParseMode)
	assert.Contains(t, got.Text, "*Arbitrage executed*")
	assert.Contains(t, got.Text, "r1")
	assert.Contains(t, got.Text, "btc/jpy")
	assert.Contains(t, got.Text, "1234 jpy")
}

func TestTelegramSendErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad token", http.StatusUnauthorized)
	}))
	defer srv.Close()

	s := NewTelegramSender("tok", "chat42")
	s.SetBaseURL(srv.URL)

	err := s.Send(t.Context(), successEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}

func TestDiscordSendBuildsEmbed(t *testing.T) {
	var got discordPayload

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s := NewDiscordSender(srv.URL)
	require.NoError(t, s.Send(t.Context(), successEvent()))

	require.Len(t, got.Embeds, 1)
	embed := got.Embeds[0]
	assert.Equal(t, "Arbitrage executed", embed.Title)
	assert.Equal(t, colorGreen, embed.Color)

	fields := make(map[string]string, len(embed.Fields))
	for _, f := range embed.Fields {
		fields[f.Name] = f.Value
	}
	assert.Equal(t, "r1", fields["Rule"])
	assert.Equal(t, "btc/jpy", fields["Pair"])
	assert.Equal(t, "bitflyer / zaif", fields["Venues"])
	assert.Equal(t, "1234 jpy", fields["Profit"])
}

func TestDiscordEmbedColorsByKind(t *testing.T) {
	assert.Equal(t, colorGreen, embedColor(EventRunSuccess))
	assert.Equal(t, colorOrange, embedColor(EventRunCancellation))
	assert.Equal(t, colorRed, embedColor(EventRunFailure))
	assert.Equal(t, colorRed, embedColor(EventError))
}

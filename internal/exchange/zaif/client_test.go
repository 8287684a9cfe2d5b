package zaif

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keidrun/coinietrade/internal/crypto"
	"github.com/keidrun/coinietrade/internal/domain"
	"github.com/keidrun/coinietrade/internal/exchange"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := New(
		exchange.Credentials{APIKey: "key", APISecret: "secret"},
		exchange.Pair{CoinUnit: "btc", CurrencyUnit: "jpy"},
	)
	c.SetBaseURL(srv.URL)
	c.now = func() time.Time { return time.Unix(1700000000, 0) }
	return c
}

func TestPrivateRequestSigning(t *testing.T) {
	var gotKey, gotSign, gotBody, gotContentType string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tapi", r.URL.Path)
		buf, _ := io.ReadAll(r.Body)
		gotBody = string(buf)
		gotKey = r.Header.Get("key")
		gotSign = r.Header.Get("sign")
		gotContentType = r.Header.Get("Content-Type")
		w.Write([]byte(`{"success":1,"return":{"funds":{"btc":1.5,"jpy":90000}}}`))
	}))

	bal, err := c.Balances(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1.5, bal.Coin)
	assert.Equal(t, 90000.0, bal.Currency)

	assert.Equal(t, "key", gotKey)
	assert.Equal(t, "application/x-www-form-urlencoded", gotContentType)

	// The signature is HMAC-SHA512 hex over the exact encoded body.
	assert.Equal(t, crypto.HMACSHA512Hex([]byte("secret"), gotBody), gotSign)

	form, err := url.ParseQuery(gotBody)
	require.NoError(t, err)
	assert.Equal(t, "get_info", form.Get("method"))
	assert.NotEmpty(t, form.Get("nonce"))
}

func TestNonceStrictlyIncreases(t *testing.T) {
	var nonces []int64
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf, _ := io.ReadAll(r.Body)
		form, _ := url.ParseQuery(string(buf))
		n, _ := strconv.ParseInt(form.Get("nonce"), 10, 64)
		nonces = append(nonces, n)
		w.Write([]byte(`{"success":1,"return":{"funds":{}}}`))
	}))

	// The fixed clock means every nonce after the first must come from the
	// last-nonce+1 branch.
	for range 3 {
		_, err := c.Balances(t.Context())
		require.NoError(t, err)
	}

	require.Len(t, nonces, 3)
	assert.Less(t, nonces[0], nonces[1])
	assert.Less(t, nonces[1], nonces[2])
}

func TestPlaceOrderSides(t *testing.T) {
	var actions []string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf, _ := io.ReadAll(r.Body)
		form, _ := url.ParseQuery(string(buf))
		actions = append(actions, form.Get("action"))
		w.Write([]byte(`{"success":1,"return":{"order_id":12345}}`))
	}))

	id, err := c.PlaceOrder(t.Context(), domain.OrderProcessBuy, domain.OrderTypeLimit, 5000000, 0.01)
	require.NoError(t, err)
	assert.Equal(t, "12345", id)

	_, err = c.PlaceOrder(t.Context(), domain.OrderProcessSell, domain.OrderTypeLimit, 5000000, 0.01)
	require.NoError(t, err)

	assert.Equal(t, []string{"bid", "ask"}, actions)
}

func TestPlaceOrderInstantFill(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// order_id 0: nothing left on the book.
		w.Write([]byte(`{"success":1,"return":{"order_id":0}}`))
	}))

	id, err := c.PlaceOrder(t.Context(), domain.OrderProcessBuy, domain.OrderTypeLimit, 5000000, 0.01)
	require.NoError(t, err)

	// The synthesized marker short-circuits both fill checks and cancels.
	filled, err := c.IsFilled(t.Context(), id)
	require.NoError(t, err)
	assert.True(t, filled)

	canceled, err := c.Cancel(t.Context(), id)
	require.NoError(t, err)
	assert.Equal(t, id, canceled)
}

func TestIsFilled(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":1,"return":{"184":{"action":"ask","amount":0.1}}}`))
	}))

	filled, err := c.IsFilled(t.Context(), "184")
	require.NoError(t, err)
	assert.False(t, filled)

	filled, err = c.IsFilled(t.Context(), "999")
	require.NoError(t, err)
	assert.True(t, filled)
}

func TestBoardParsesDepth(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/1/depth/btc_jpy", r.URL.Path)
		w.Write([]byte(`{
			"bids": [[99, 1], [100, 2]],
			"asks": [[102, 1], [101, 2]]
		}`))
	}))

	book, err := c.Board(t.Context())
	require.NoError(t, err)
	assert.Equal(t, domain.PriceLevel{Price: 100, Amount: 2}, book.BestBid())
	assert.Equal(t, domain.PriceLevel{Price: 101, Amount: 2}, book.BestAsk())
}

func TestEnvelopeErrorClassification(t *testing.T) {
	tests := []struct {
		name string
		msg  string
		kind exchange.ErrorKind
	}{
		{"signature mismatch", "signature mismatch", exchange.KindUnauthorized},
		{"bad api key", "api key dont have info permission", exchange.KindUnauthorized},
		{"maintenance", "temporarily unavailable: maintenance", exchange.KindUnavailable},
		{"try later", "please try later", exchange.KindUnavailable},
		{"business error", "insufficient funds", exchange.KindAPIFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"success":0,"error":"` + tt.msg + `"}`))
			}))

			_, err := c.Balances(t.Context())
			require.Error(t, err)
			assert.True(t, exchange.IsKind(err, tt.kind), "want %s, got %v", tt.kind, err)
		})
	}
}

func TestNetworkErrorKind(t *testing.T) {
	c := New(
		exchange.Credentials{APIKey: "key", APISecret: "secret"},
		exchange.Pair{CoinUnit: "btc", CurrencyUnit: "jpy"},
	)
	c.SetBaseURL("http://127.0.0.1:1")

	_, err := c.Board(t.Context())
	require.Error(t, err)
	assert.True(t, exchange.IsKind(err, exchange.KindNetwork))
}

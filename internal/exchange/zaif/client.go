// Package zaif implements the exchange capability set against the Zaif REST
// API. Private endpoints take a form-encoded body with a strictly increasing
// nonce, signed with HMAC-SHA512.
package zaif

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/keidrun/coinietrade/internal/crypto"
	"github.com/keidrun/coinietrade/internal/domain"
	"github.com/keidrun/coinietrade/internal/exchange"
)

const (
	venueName = "zaif"

	defaultBaseURL = "https://api.zaif.jp"

	// minTradable is the venue's minimum BTC order size.
	minTradable = 0.0001

	// feeRate is Zaif's flat BTC/JPY trade fee. The venue exposes no fee
	// endpoint for this pair.
	feeRate = 0.0
)

// Client is the Zaif adapter. It implements exchange.Exchange.
type Client struct {
	baseURL      string
	creds        exchange.Credentials
	currencyPair string
	httpClient   *http.Client
	now          func() time.Time

	nonceMu   sync.Mutex
	lastNonce int64
}

// New creates a Zaif adapter for the given credentials and pair.
func New(creds exchange.Credentials, pair exchange.Pair) *Client {
	return &Client{
		baseURL:      defaultBaseURL,
		creds:        creds,
		currencyPair: currencyPair(pair),
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		now:          time.Now,
	}
}

// SetBaseURL overrides the API root, for tests.
func (c *Client) SetBaseURL(u string) { c.baseURL = strings.TrimRight(u, "/") }

func currencyPair(pair exchange.Pair) string {
	return strings.ToLower(pair.CoinUnit) + "_" + strings.ToLower(pair.CurrencyUnit)
}

// Name returns the venue identifier.
func (c *Client) Name() string { return venueName }

// MinTradableAmount returns the venue's minimum order size in coin units.
func (c *Client) MinTradableAmount() float64 { return minTradable }

// FeeRate returns the venue's flat trade fee rate.
func (c *Client) FeeRate(_ context.Context) (float64, error) { return feeRate, nil }

// Balances returns the account funds for the configured pair.
func (c *Client) Balances(ctx context.Context) (domain.Balance, error) {
	raw, err := c.doPrivate(ctx, "get_info", nil, "balances")
	if err != nil {
		return domain.Balance{}, err
	}
	var info getInfoReturn
	if err := json.Unmarshal(raw, &info); err != nil {
		return domain.Balance{}, exchange.NewError(venueName, exchange.KindAPIFailure, "balances", fmt.Errorf("decode: %w", err))
	}

	coin, currency, _ := strings.Cut(c.currencyPair, "_")
	return domain.Balance{
		Coin:     info.Funds[coin],
		Currency: info.Funds[currency],
	}, nil
}

// PlaceOrder submits a limit order. Zaif expresses sides as bid (buy) and
// ask (sell). Market orders are not offered on the trade endpoint, so the
// adapter submits them as aggressive limit orders at the given price.
func (c *Client) PlaceOrder(ctx context.Context, process domain.OrderProcess, _ domain.OrderType, price, amount float64) (string, error) {
	action := "bid"
	if process == domain.OrderProcessSell {
		action = "ask"
	}
	params := url.Values{}
	params.Set("currency_pair", c.currencyPair)
	params.Set("action", action)
	params.Set("price", strconv.FormatFloat(price, 'f', -1, 64))
	params.Set("amount", strconv.FormatFloat(amount, 'f', -1, 64))

	raw, err := c.doPrivate(ctx, "trade", params, "place_order")
	if err != nil {
		return "", err
	}
	var resp tradeReturn
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", exchange.NewError(venueName, exchange.KindAPIFailure, "place_order", fmt.Errorf("decode: %w", err))
	}
	if resp.OrderID.String() == "" || resp.OrderID.String() == "0" {
		// order_id 0 means the order filled instantly; there is nothing left
		// on the book to address, so synthesize a filled marker.
		return filledOrderID, nil
	}
	return resp.OrderID.String(), nil
}

// filledOrderID marks an order that filled at placement time and never
// reached the book.
const filledOrderID = "filled"

// IsFilled reports whether the order no longer appears among active orders.
func (c *Client) IsFilled(ctx context.Context, orderID string) (bool, error) {
	if orderID == filledOrderID {
		return true, nil
	}
	params := url.Values{}
	params.Set("currency_pair", c.currencyPair)

	raw, err := c.doPrivate(ctx, "active_orders", params, "is_filled")
	if err != nil {
		return false, err
	}
	var open activeOrdersReturn
	if err := json.Unmarshal(raw, &open); err != nil {
		return false, exchange.NewError(venueName, exchange.KindAPIFailure, "is_filled", fmt.Errorf("decode: %w", err))
	}
	_, active := open[orderID]
	return !active, nil
}

// Cancel cancels an active order by ID.
func (c *Client) Cancel(ctx context.Context, orderID string) (string, error) {
	if orderID == filledOrderID {
		return orderID, nil
	}
	params := url.Values{}
	params.Set("order_id", orderID)

	raw, err := c.doPrivate(ctx, "cancel_order", params, "cancel")
	if err != nil {
		return "", err
	}
	var resp cancelReturn
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", exchange.NewError(venueName, exchange.KindAPIFailure, "cancel", fmt.Errorf("decode: %w", err))
	}
	return resp.OrderID.String(), nil
}

// Board returns the current order book, bids descending and asks ascending.
func (c *Client) Board(ctx context.Context) (domain.OrderBook, error) {
	u := c.baseURL + "/api/1/depth/" + url.PathEscape(c.currencyPair)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return domain.OrderBook{}, exchange.NewError(venueName, exchange.KindAPIFailure, "board", err)
	}
	body, err := c.send(req, "board")
	if err != nil {
		return domain.OrderBook{}, err
	}
	var resp depthResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.OrderBook{}, exchange.NewError(venueName, exchange.KindAPIFailure, "board", fmt.Errorf("decode: %w", err))
	}

	book := domain.OrderBook{
		Bids:      make([]domain.PriceLevel, 0, len(resp.Bids)),
		Asks:      make([]domain.PriceLevel, 0, len(resp.Asks)),
		Timestamp: c.now().UTC(),
	}
	for _, l := range resp.Bids {
		book.Bids = append(book.Bids, domain.PriceLevel{Price: l[0], Amount: l[1]})
	}
	for _, l := range resp.Asks {
		book.Asks = append(book.Asks, domain.PriceLevel{Price: l[0], Amount: l[1]})
	}
	sort.Slice(book.Bids, func(i, j int) bool { return book.Bids[i].Price > book.Bids[j].Price })
	sort.Slice(book.Asks, func(i, j int) bool { return book.Asks[i].Price < book.Asks[j].Price })
	return book, nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// nextNonce returns a strictly increasing nonce. Zaif rejects any request
// whose nonce is not greater than the previous one for the key.
func (c *Client) nextNonce() string {
	c.nonceMu.Lock()
	defer c.nonceMu.Unlock()

	n := c.now().Unix()
	if n <= c.lastNonce {
		n = c.lastNonce + 1
	}
	c.lastNonce = n
	return strconv.FormatInt(n, 10)
}

// doPrivate posts a signed form-encoded request to the trade API and
// unwraps the success/error envelope.
func (c *Client) doPrivate(ctx context.Context, method string, params url.Values, op string) (json.RawMessage, error) {
	if params == nil {
		params = url.Values{}
	}
	params.Set("method", method)
	params.Set("nonce", c.nextNonce())
	encoded := params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/tapi", strings.NewReader(encoded))
	if err != nil {
		return nil, exchange.NewError(venueName, exchange.KindAPIFailure, op, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("key", c.creds.APIKey)
	req.Header.Set("sign", crypto.HMACSHA512Hex([]byte(c.creds.APISecret), encoded))

	body, err := c.send(req, op)
	if err != nil {
		return nil, err
	}

	var env tapiEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, exchange.NewError(venueName, exchange.KindAPIFailure, op, fmt.Errorf("decode envelope: %w", err))
	}
	if env.Success != 1 {
		kind := exchange.KindAPIFailure
		msg := strings.ToLower(env.Error)
		switch {
		case strings.Contains(msg, "signature mismatch"), strings.Contains(msg, "api key"), strings.Contains(msg, "permission"):
			kind = exchange.KindUnauthorized
		case strings.Contains(msg, "maintenance"), strings.Contains(msg, "temporarily unavailable"), strings.Contains(msg, "try later"):
			kind = exchange.KindUnavailable
		}
		return nil, exchange.NewError(venueName, kind, op, fmt.Errorf("venue error: %s", env.Error))
	}
	return env.Return, nil
}

// send executes the request and classifies every failure into the uniform
// error taxonomy.
func (c *Client) send(req *http.Request, op string) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, exchange.NewError(venueName, exchange.KindNetwork, op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, exchange.NewError(venueName, exchange.KindNetwork, op, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return body, nil
	}
	return nil, exchange.NewError(venueName, exchange.ClassifyStatus(resp.StatusCode), op,
		fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
}

// Compile-time interface check.
var _ exchange.Exchange = (*Client)(nil)

// Package bitflyer implements the exchange capability set against the
// bitFlyer Lightning REST API. Private endpoints are signed with
// HMAC-SHA256 over timestamp+method+path+body.
package bitflyer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/keidrun/coinietrade/internal/crypto"
	"github.com/keidrun/coinietrade/internal/domain"
	"github.com/keidrun/coinietrade/internal/exchange"
)

const (
	venueName = "bitflyer"

	// defaultBaseURL is the production API root.
	defaultBaseURL = "https://api.bitflyer.com"

	// minTradable is the venue's minimum BTC order size.
	minTradable = 0.001
)

// Client is the bitFlyer adapter. It implements exchange.Exchange.
type Client struct {
	baseURL     string
	creds       exchange.Credentials
	productCode string
	httpClient  *http.Client
	now         func() time.Time
}

// New creates a bitFlyer adapter for the given credentials and pair.
func New(creds exchange.Credentials, pair exchange.Pair) *Client {
	return &Client{
		baseURL:     defaultBaseURL,
		creds:       creds,
		productCode: productCode(pair),
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		now:         time.Now,
	}
}

// SetBaseURL overrides the API root, for tests and mirror endpoints.
func (c *Client) SetBaseURL(u string) { c.baseURL = strings.TrimRight(u, "/") }

func productCode(pair exchange.Pair) string {
	return strings.ToUpper(pair.CoinUnit) + "_" + strings.ToUpper(pair.CurrencyUnit)
}

// Name returns the venue identifier.
func (c *Client) Name() string { return venueName }

// MinTradableAmount returns the venue's minimum order size in coin units.
func (c *Client) MinTradableAmount() float64 { return minTradable }

// FeeRate returns the account's trading commission rate for the pair.
func (c *Client) FeeRate(ctx context.Context) (float64, error) {
	path := "/v1/me/gettradingcommission?product_code=" + url.QueryEscape(c.productCode)
	body, err := c.doPrivate(ctx, http.MethodGet, path, nil, "fee_rate")
	if err != nil {
		return 0, err
	}
	var resp commissionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, exchange.NewError(venueName, exchange.KindAPIFailure, "fee_rate", fmt.Errorf("decode: %w", err))
	}
	return resp.CommissionRate, nil
}

// Balances returns the available coin and currency holdings.
func (c *Client) Balances(ctx context.Context) (domain.Balance, error) {
	body, err := c.doPrivate(ctx, http.MethodGet, "/v1/me/getbalance", nil, "balances")
	if err != nil {
		return domain.Balance{}, err
	}
	var entries []balanceEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return domain.Balance{}, exchange.NewError(venueName, exchange.KindAPIFailure, "balances", fmt.Errorf("decode: %w", err))
	}

	coin, currency := splitProductCode(c.productCode)
	var bal domain.Balance
	for _, e := range entries {
		switch e.CurrencyCode {
		case coin:
			bal.Coin = e.Available
		case currency:
			bal.Currency = e.Available
		}
	}
	return bal, nil
}

// PlaceOrder submits a child order and returns its acceptance ID.
func (c *Client) PlaceOrder(ctx context.Context, process domain.OrderProcess, orderType domain.OrderType, price, amount float64) (string, error) {
	req := sendChildOrderRequest{
		ProductCode:    c.productCode,
		ChildOrderType: strings.ToUpper(string(orderType)),
		Side:           strings.ToUpper(string(process)),
		Size:           amount,
	}
	if orderType == domain.OrderTypeLimit {
		req.Price = price
	}

	body, err := c.doPrivate(ctx, http.MethodPost, "/v1/me/sendchildorder", req, "place_order")
	if err != nil {
		return "", err
	}
	var resp sendChildOrderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", exchange.NewError(venueName, exchange.KindAPIFailure, "place_order", fmt.Errorf("decode: %w", err))
	}
	if resp.ChildOrderAcceptanceID == "" {
		return "", exchange.NewError(venueName, exchange.KindAPIFailure, "place_order", fmt.Errorf("empty acceptance id"))
	}
	return resp.ChildOrderAcceptanceID, nil
}

// IsFilled reports whether the order no longer appears among active orders.
func (c *Client) IsFilled(ctx context.Context, orderID string) (bool, error) {
	path := "/v1/me/getchildorders?product_code=" + url.QueryEscape(c.productCode) + "&child_order_state=ACTIVE"
	body, err := c.doPrivate(ctx, http.MethodGet, path, nil, "is_filled")
	if err != nil {
		return false, err
	}
	var orders []childOrder
	if err := json.Unmarshal(body, &orders); err != nil {
		return false, exchange.NewError(venueName, exchange.KindAPIFailure, "is_filled", fmt.Errorf("decode: %w", err))
	}
	for _, o := range orders {
		if o.ChildOrderAcceptanceID == orderID {
			return false, nil
		}
	}
	return true, nil
}

// Cancel cancels an active order by its acceptance ID.
func (c *Client) Cancel(ctx context.Context, orderID string) (string, error) {
	req := cancelChildOrderRequest{
		ProductCode:            c.productCode,
		ChildOrderAcceptanceID: orderID,
	}
	if _, err := c.doPrivate(ctx, http.MethodPost, "/v1/me/cancelchildorder", req, "cancel"); err != nil {
		return "", err
	}
	return orderID, nil
}

// Board returns the current order book, bids descending and asks ascending.
func (c *Client) Board(ctx context.Context) (domain.OrderBook, error) {
	path := "/v1/board?product_code=" + url.QueryEscape(c.productCode)
	body, err := c.doPublic(ctx, path, "board")
	if err != nil {
		return domain.OrderBook{}, err
	}
	var resp boardResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.OrderBook{}, exchange.NewError(venueName, exchange.KindAPIFailure, "board", fmt.Errorf("decode: %w", err))
	}

	book := domain.OrderBook{
		Bids:      make([]domain.PriceLevel, 0, len(resp.Bids)),
		Asks:      make([]domain.PriceLevel, 0, len(resp.Asks)),
		Timestamp: c.now().UTC(),
	}
	for _, l := range resp.Bids {
		book.Bids = append(book.Bids, domain.PriceLevel{Price: l.Price, Amount: l.Size})
	}
	for _, l := range resp.Asks {
		book.Asks = append(book.Asks, domain.PriceLevel{Price: l.Price, Amount: l.Size})
	}
	sort.Slice(book.Bids, func(i, j int) bool { return book.Bids[i].Price > book.Bids[j].Price })
	sort.Slice(book.Asks, func(i, j int) bool { return book.Asks[i].Price < book.Asks[j].Price })
	return book, nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// doPublic issues an unauthenticated GET against the market-data API.
func (c *Client) doPublic(ctx context.Context, path, op string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, exchange.NewError(venueName, exchange.KindAPIFailure, op, err)
	}
	req.Header.Set("Accept", "application/json")
	return c.send(req, op)
}

// doPrivate builds, signs, and sends an authenticated request. The signature
// is HMAC-SHA256 hex over timestamp+method+path+body using the API secret.
func (c *Client) doPrivate(ctx context.Context, method, path string, reqBody any, op string) ([]byte, error) {
	var bodyStr string
	var bodyReader io.Reader
	if reqBody != nil {
		payload, err := json.Marshal(reqBody)
		if err != nil {
			return nil, exchange.NewError(venueName, exchange.KindAPIFailure, op, fmt.Errorf("marshal body: %w", err))
		}
		bodyStr = string(payload)
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, exchange.NewError(venueName, exchange.KindAPIFailure, op, err)
	}

	ts := strconv.FormatInt(c.now().Unix(), 10)
	sig := crypto.HMACSHA256Hex([]byte(c.creds.APISecret), ts+method+path+bodyStr)

	req.Header.Set("ACCESS-KEY", c.creds.APIKey)
	req.Header.Set("ACCESS-TIMESTAMP", ts)
	req.Header.Set("ACCESS-SIGN", sig)
	req.Header.Set("Content-Type", "application/json")

	return c.send(req, op)
}

// send executes the request and classifies every failure into the uniform
// error taxonomy.
func (c *Client) send(req *http.Request, op string) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		// No response received at all.
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

	var apiErr apiError
	_ = json.Unmarshal(body, &apiErr)
	kind := exchange.ClassifyStatus(resp.StatusCode)
	if strings.Contains(strings.ToLower(apiErr.ErrorMessage), "maintenance") {
		kind = exchange.KindUnavailable
	}
	return nil, exchange.NewError(venueName, kind, op,
		fmt.Errorf("HTTP %d: %s (status=%d)", resp.StatusCode, apiErr.ErrorMessage, apiErr.Status))
}

func splitProductCode(code string) (coin, currency string) {
	parts := strings.SplitN(code, "_", 2)
	if len(parts) != 2 {
		return code, ""
	}
	return parts[0], parts[1]
}

// Compile-time interface check.
var _ exchange.Exchange = (*Client)(nil)

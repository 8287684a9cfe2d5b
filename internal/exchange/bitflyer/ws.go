package bitflyer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/keidrun/coinietrade/internal/domain"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// pingPeriod sends pings to the peer at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// reconnectDelay is the base delay before attempting to reconnect.
	reconnectDelay = 2 * time.Second

	// maxReconnectDelay caps the exponential backoff for reconnection.
	maxReconnectDelay = 60 * time.Second
)

// BoardHandler is called for every board snapshot received on a subscribed
// product channel.
type BoardHandler func(productCode string, book domain.OrderBook)

// wsRequest is the JSON-RPC 2.0 frame bitFlyer Lightstream expects.
type wsRequest struct {
	Version string    `json:"jsonrpc"`
	Method  string    `json:"method"`
	Params  wsChannel `json:"params"`
}

type wsChannel struct {
	Channel string `json:"channel"`
}

// wsBoardMessage is the payload of a lightning_board_snapshot channel message.
type wsBoardMessage struct {
	MidPrice float64 `json:"mid_price"`
	Bids     []struct {
		Price float64 `json:"price"`
		Size  float64 `json:"size"`
	} `json:"bids"`
	Asks []struct {
		Price float64 `json:"price"`
		Size  float64 `json:"size"`
	} `json:"asks"`
}

// WSClient streams board snapshots from bitFlyer Lightstream over its
// JSON-RPC 2.0 websocket endpoint. It manages the connection lifecycle,
// channel subscriptions, and reconnects with exponential backoff.
type WSClient struct {
	wsURL string
	conn  *websocket.Conn

	mu     sync.RWMutex
	closed bool

	// Channels to restore on reconnect.
	subscriptions []string

	handlerMu     sync.RWMutex
	boardHandlers []BoardHandler

	// done is closed when the client is shut down.
	done chan struct{}
}

// NewWSClient creates a websocket client for the given Lightstream URL,
// e.g. "wss://ws.lightstream.bitflyer.com/json-rpc".
func NewWSClient(wsURL string) *WSClient {
	return &WSClient{
		wsURL: wsURL,
		done:  make(chan struct{}),
	}
}

// Connect establishes the websocket connection and restores any previously
// subscribed channels.
func (w *WSClient) Connect(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("bitflyer/ws: client closed")
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 15 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, w.wsURL, nil)
	if err != nil {
		return fmt.Errorf("bitflyer/ws: connect: %w", err)
	}

	w.conn = conn

	w.conn.SetReadDeadline(time.Now().Add(pongWait))
	w.conn.SetPongHandler(func(string) error {
		w.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go w.readLoop()
	go w.pingLoop()

	for _, ch := range w.subscriptions {
		if err := w.sendSubscribe(ch); err != nil {
			return fmt.Errorf("bitflyer/ws: restore subscription: %w", err)
		}
	}

	return nil
}

// SubscribeBoard subscribes to board snapshots for the given product code,
// e.g. "BTC_JPY".
func (w *WSClient) SubscribeBoard(ctx context.Context, productCode string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn == nil {
		return fmt.Errorf("bitflyer/ws: not connected")
	}

	ch := "lightning_board_snapshot_" + productCode
	if err := w.sendSubscribe(ch); err != nil {
		return fmt.Errorf("bitflyer/ws: subscribe to %s: %w", ch, err)
	}

	w.subscriptions = append(w.subscriptions, ch)
	return nil
}

// OnBoard registers a handler called for every board snapshot.
func (w *WSClient) OnBoard(handler BoardHandler) {
	w.handlerMu.Lock()
	defer w.handlerMu.Unlock()
	w.boardHandlers = append(w.boardHandlers, handler)
}

// Close shuts down the websocket connection and stops the read loop.
func (w *WSClient) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}

	w.closed = true
	close(w.done)

	if w.conn != nil {
		_ = w.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		return w.conn.Close()
	}

	return nil
}

// sendSubscribe sends a subscribe frame. Caller must hold w.mu.
func (w *WSClient) sendSubscribe(channel string) error {
	w.conn.SetWriteDeadline(time.Now().Add(writeWait))

	req := wsRequest{
		Version: "2.0",
		Method:  "subscribe",
		Params:  wsChannel{Channel: channel},
	}
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal subscribe: %w", err)
	}

	return w.conn.WriteMessage(websocket.TextMessage, data)
}

// readLoop continuously reads frames and dispatches board snapshots to
// registered handlers. On disconnect it reconnects with exponential backoff.
func (w *WSClient) readLoop() {
	defer func() {
		w.mu.RLock()
		conn := w.conn
		w.mu.RUnlock()
		if conn != nil {
			conn.Close()
		}
	}()

	for {
		select {
		case <-w.done:
			return
		default:
		}

		w.mu.RLock()
		conn := w.conn
		w.mu.RUnlock()

		if conn == nil {
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-w.done:
				return
			default:
			}

			w.reconnect()
			return // readLoop is restarted by reconnect -> Connect
		}

		w.handleMessage(message)
	}
}

// pingLoop sends periodic ping messages to keep the websocket alive.
func (w *WSClient) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.mu.RLock()
			conn := w.conn
			w.mu.RUnlock()

			if conn == nil {
				return
			}

			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage parses a JSON-RPC channelMessage frame and dispatches board
// snapshots. Other frames (subscribe acks, unknown channels) are dropped.
func (w *WSClient) handleMessage(raw []byte) {
	var envelope struct {
		Method string `json:"method"`
		Params struct {
			Channel string          `json:"channel"`
			Message json.RawMessage `json:"message"`
		} `json:"params"`
	}

	if err := json.Unmarshal(raw, &envelope); err != nil {
		return // Silently drop unparseable frames.
	}
	if envelope.Method != "channelMessage" {
		return
	}

	const prefix = "lightning_board_snapshot_"
	ch := envelope.Params.Channel
	if len(ch) <= len(prefix) || ch[:len(prefix)] != prefix {
		return
	}
	productCode := ch[len(prefix):]

	var msg wsBoardMessage
	if err := json.Unmarshal(envelope.Params.Message, &msg); err != nil {
		return
	}

	book := domain.OrderBook{Timestamp: time.Now()}
	for _, b := range msg.Bids {
		book.Bids = append(book.Bids, domain.PriceLevel{Price: b.Price, Amount: b.Size})
	}
	for _, a := range msg.Asks {
		book.Asks = append(book.Asks, domain.PriceLevel{Price: a.Price, Amount: a.Size})
	}

	w.handlerMu.RLock()
	handlers := w.boardHandlers
	w.handlerMu.RUnlock()

	for _, h := range handlers {
		h(productCode, book)
	}
}

// reconnect re-establishes the connection with exponential backoff. It blocks
// until successful or the client is closed.
func (w *WSClient) reconnect() {
	delay := reconnectDelay

	for {
		select {
		case <-w.done:
			return
		default:
		}

		time.Sleep(delay)

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		err := w.Connect(ctx)
		cancel()

		if err == nil {
			return
		}

		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

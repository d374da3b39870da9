package exchange

import (
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	BitgetWSURL = "wss://ws.bitget.com/v2/ws/public"

	wsPingInterval   = 30 * time.Second
	wsReconnectDelay = 5 * time.Second
)

// TickerFeed streams last-price updates for one symbol from the Bitget
// public websocket. It is an optional freshness layer on top of the REST
// cache: a dropped connection only means prices age back to the REST TTL.
type TickerFeed struct {
	wsURL       string
	symbol      string
	productType string
	logger      *zap.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	callbacks []func(price float64)
	stopped   chan struct{}
}

func NewTickerFeed(wsURL, symbol, productType string, logger *zap.Logger) *TickerFeed {
	if wsURL == "" {
		wsURL = BitgetWSURL
	}
	return &TickerFeed{
		wsURL:       wsURL,
		symbol:      symbol,
		productType: productType,
		logger:      logger,
		stopped:     make(chan struct{}),
	}
}

// OnPriceUpdate registers a callback invoked on every ticker push.
func (f *TickerFeed) OnPriceUpdate(cb func(price float64)) {
	f.mu.Lock()
	f.callbacks = append(f.callbacks, cb)
	f.mu.Unlock()
}

// Start connects and keeps reconnecting until Stop is called.
func (f *TickerFeed) Start() {
	go func() {
		for {
			select {
			case <-f.stopped:
				return
			default:
			}

			if err := f.connect(); err != nil {
				f.logger.Warn("Ticker feed connect failed", zap.Error(err))
			}

			select {
			case <-f.stopped:
				return
			case <-time.After(wsReconnectDelay):
			}
		}
	}()
}

// Stop tears the feed down; Start's loop exits.
func (f *TickerFeed) Stop() {
	close(f.stopped)
	f.mu.Lock()
	if f.conn != nil {
		f.conn.Close()
	}
	f.mu.Unlock()
}

func (f *TickerFeed) connect() error {
	conn, _, err := websocket.DefaultDialer.Dial(f.wsURL, nil)
	if err != nil {
		return err
	}

	f.mu.Lock()
	f.conn = conn
	f.mu.Unlock()

	sub := map[string]any{
		"op": "subscribe",
		"args": []map[string]string{{
			"instType": f.productType,
			"channel":  "ticker",
			"instId":   f.symbol,
		}},
	}
	if err := conn.WriteJSON(sub); err != nil {
		conn.Close()
		return err
	}

	done := make(chan struct{})
	go f.pingLoop(conn, done)
	f.readLoop(conn)
	close(done)

	f.mu.Lock()
	f.conn = nil
	f.mu.Unlock()
	return nil
}

// pingLoop keeps the connection alive; Bitget expects a literal "ping".
func (f *TickerFeed) pingLoop(conn *websocket.Conn, done chan struct{}) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.TextMessage, []byte("ping")); err != nil {
				return
			}
		case <-done:
			return
		case <-f.stopped:
			return
		}
	}
}

func (f *TickerFeed) readLoop(conn *websocket.Conn) {
	defer conn.Close()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-f.stopped:
			default:
				f.logger.Warn("Ticker feed read error", zap.Error(err))
			}
			return
		}

		if string(message) == "pong" {
			continue
		}

		var event struct {
			Action string `json:"action"`
			Arg    struct {
				Channel string `json:"channel"`
				InstID  string `json:"instId"`
			} `json:"arg"`
			Data []struct {
				LastPr string `json:"lastPr"`
			} `json:"data"`
		}
		if err := json.Unmarshal(message, &event); err != nil {
			continue
		}
		if event.Arg.Channel != "ticker" || len(event.Data) == 0 {
			continue
		}

		price, err := strconv.ParseFloat(event.Data[0].LastPr, 64)
		if err != nil || price <= 0 {
			continue
		}

		f.mu.Lock()
		callbacks := make([]func(float64), len(f.callbacks))
		copy(callbacks, f.callbacks)
		f.mu.Unlock()

		for _, cb := range callbacks {
			cb(price)
		}
	}
}

package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"trading-engine-go/market"
)

// FeedConfig configures the websocket market data feed.
type FeedConfig struct {
	URL               string
	Symbols           []string
	ReconnectAttempts int
	ReconnectDelay    time.Duration
	HandshakeTimeout  time.Duration
}

// WSFeed streams candles from a websocket endpoint into a market.Buffer.
// Dropped connections are re-dialed with exponential backoff; the feed
// gives up after ReconnectAttempts consecutive failures.
type WSFeed struct {
	cfg FeedConfig
	buf *market.Buffer
}

func NewWSFeed(cfg FeedConfig, buf *market.Buffer) *WSFeed {
	if cfg.ReconnectAttempts <= 0 {
		cfg.ReconnectAttempts = 5
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = time.Second
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	return &WSFeed{cfg: cfg, buf: buf}
}

// candleMsg is the wire format for one closed candle.
type candleMsg struct {
	Symbol string  `json:"symbol"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
	TsMs   int64   `json:"ts"`
}

type subscribeMsg struct {
	Op      string   `json:"op"`
	Symbols []string `json:"symbols"`
}

// Run blocks until the context is cancelled or reconnects are exhausted.
// The buffer is closed with the terminal error so consumers see via
// Stream.Err why the feed stopped.
func (f *WSFeed) Run(ctx context.Context) (err error) {
	defer func() {
		if err != nil {
			f.buf.Close(err)
			return
		}
		f.buf.Close(ctx.Err())
	}()

	delay := f.cfg.ReconnectDelay
	failures := 0
	for {
		if ctx.Err() != nil {
			return nil
		}
		connErr := f.runConn(ctx)
		if connErr == nil {
			return nil // clean shutdown
		}
		failures++
		if failures >= f.cfg.ReconnectAttempts {
			return fmt.Errorf("feed reconnects exhausted: %w", connErr)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
		delay *= 2
	}
}

func (f *WSFeed) runConn(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: f.cfg.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, f.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", f.cfg.URL, err)
	}
	defer conn.Close()

	if len(f.cfg.Symbols) > 0 {
		if err := conn.WriteJSON(subscribeMsg{Op: "subscribe", Symbols: f.cfg.Symbols}); err != nil {
			return fmt.Errorf("subscribe: %w", err)
		}
	}

	// 独立goroutine在ctx取消时关闭连接打断阻塞读
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		var msg candleMsg
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue // 非K线消息忽略
		}
		if msg.Symbol == "" {
			continue
		}
		ev := market.CandleEvent(market.Candle{
			Symbol: msg.Symbol,
			Open:   msg.Open,
			High:   msg.High,
			Low:    msg.Low,
			Close:  msg.Close,
			Volume: msg.Volume,
			Ts:     time.UnixMilli(msg.TsMs).UTC(),
		})
		if err := f.buf.Publish(ctx, ev); err != nil {
			return nil
		}
	}
}

package aster

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const streamReadTimeout = 90 * time.Second

// StreamClient manages streaming from the public market websocket.
type StreamClient struct {
	StreamURL string
	dialer    *websocket.Dialer
}

// NewStreamClient builds a websocket client.
func NewStreamClient(baseURL string) *StreamClient {
	if baseURL == "" {
		baseURL = (&url.URL{Scheme: "wss", Host: "fstream.asterdex.com", Path: "/ws"}).String()
	}
	return &StreamClient{
		StreamURL: baseURL,
		dialer:    websocket.DefaultDialer,
	}
}

// SubscribeTrades listens to the trade stream and pushes parsed trades into a
// channel. It returns the channel and a stop function. The channel closes on
// read error; reconnecting is the caller's job.
func (c *StreamClient) SubscribeTrades(ctx context.Context, symbol string) (<-chan Trade, func(), error) {
	stream := fmt.Sprintf("%s@trade", strings.ToLower(symbol))
	u := fmt.Sprintf("%s/%s", c.StreamURL, stream)

	conn, _, err := c.dialer.DialContext(ctx, u, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("dial trade stream: %w", err)
	}

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamReadTimeout))
	})

	out := make(chan Trade, 100)
	var once sync.Once
	stop := func() {
		once.Do(func() {
			// Ignore errors; connection may already be closed.
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			_ = conn.Close()
			close(out)
		})
	}

	go func() {
		defer stop()
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			_ = conn.SetReadDeadline(time.Now().Add(streamReadTimeout))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) ||
					strings.Contains(err.Error(), "use of closed network connection") {
					return
				}
				log.Printf("trade stream read error: %v", err)
				return
			}

			parsed, err := parseTradeMessage(msg)
			if err != nil {
				log.Printf("trade stream parse error: %v", err)
				continue
			}
			out <- parsed
		}
	}()

	return out, stop, nil
}

type tradeMessage struct {
	EventType    string `json:"e"`
	EventTime    int64  `json:"E"`
	Symbol       string `json:"s"`
	Price        string `json:"p"`
	Qty          string `json:"q"`
	TradeTime    int64  `json:"T"`
	IsBuyerMaker bool   `json:"m"`
}

func parseTradeMessage(raw []byte) (Trade, error) {
	var msg tradeMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return Trade{}, err
	}
	if msg.EventType != "trade" {
		return Trade{}, fmt.Errorf("unexpected event type %q", msg.EventType)
	}
	price, err := strconv.ParseFloat(msg.Price, 64)
	if err != nil {
		return Trade{}, fmt.Errorf("parse price %q: %w", msg.Price, err)
	}
	qty, err := strconv.ParseFloat(msg.Qty, 64)
	if err != nil {
		return Trade{}, fmt.Errorf("parse qty %q: %w", msg.Qty, err)
	}
	return Trade{
		Symbol:       msg.Symbol,
		Price:        price,
		Qty:          qty,
		Time:         msg.TradeTime,
		IsBuyerMaker: msg.IsBuyerMaker,
	}, nil
}

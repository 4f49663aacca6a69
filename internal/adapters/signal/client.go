// Package signal is the websocket client side of the chat server's event
// bus. Every frame is an Envelope; handlers are dispatched by event name.
package signal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Call/internal/core"
)

var (
	ErrBackpressure = errors.New("send buffer full")
	ErrClosed       = errors.New("connection closed")
)

const defaultPingPeriod = 54 * time.Second

// WSConn is an indirection over *websocket.Conn to ease testing.
type WSConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadLimit(limit int64)
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Envelope frames every event on the wire.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type Client struct {
	conn       WSConn
	send       chan []byte
	pingPeriod time.Duration

	mu       sync.RWMutex
	handlers map[string]core.EventHandler
	closed   bool
}

func NewClient(conn WSConn, readLimit int64, pingPeriod time.Duration) *Client {
	if readLimit > 0 {
		conn.SetReadLimit(readLimit)
	}
	if pingPeriod <= 0 {
		pingPeriod = defaultPingPeriod
	}
	return &Client{
		conn:       conn,
		send:       make(chan []byte, 32),
		pingPeriod: pingPeriod,
		handlers:   make(map[string]core.EventHandler),
	}
}

// Dial connects to the bus and identifies this client by its public id,
// then starts the read and write pumps.
func Dial(ctx context.Context, serverURL, publicID string, readLimit int64, pingPeriod time.Duration) (*Client, error) {
	header := http.Header{}
	header.Set("X-Public-ID", publicID)
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, serverURL, header)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", serverURL, err)
	}
	c := NewClient(ws, readLimit, pingPeriod)
	c.Start(ctx)
	log.Info().Str("module", "signal").Str("url", serverURL).Msg("connected to signal bus")
	return c, nil
}

func (c *Client) Start(ctx context.Context) {
	go c.writePump(ctx)
	go c.readPump(ctx)
}

// On registers the handler for an event name, replacing any previous one.
func (c *Client) On(event string, h core.EventHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[event] = h
}

// Send enqueues one event without blocking. A full buffer returns
// ErrBackpressure and drops the event.
func (c *Client) Send(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", event, err)
	}
	frame, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", event, err)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.send <- frame:
		return nil
	default:
		return ErrBackpressure
	}
}

// Close is idempotent and safe to call from any goroutine.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
	if err := c.conn.Close(); err != nil {
		log.Debug().Err(err).Str("module", "signal").Msg("close websocket")
	}
}

func (c *Client) dispatch(frame []byte) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad envelope")
		return
	}

	c.mu.RLock()
	h, ok := c.handlers[env.Event]
	c.mu.RUnlock()
	if !ok {
		log.Warn().Str("module", "signal").Str("event", env.Event).Msg("unhandled event")
		return
	}
	h(env.Data)
}

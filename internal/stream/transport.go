package stream

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cbl315/opinion-builder-tools/internal/subs"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// handshakeTimeout bounds the WebSocket dial.
	handshakeTimeout = 15 * time.Second
)

// controlFrame is an outbound control message: SUBSCRIBE, UNSUBSCRIBE, or
// HEARTBEAT. Grouped categorical markets subscribe by rootMarketId.
type controlFrame struct {
	Action       string `json:"action"`
	Channel      string `json:"channel,omitempty"`
	MarketID     int64  `json:"marketId,omitempty"`
	RootMarketID int64  `json:"rootMarketId,omitempty"`
}

func subscribeFrame(t subs.Target) controlFrame {
	f := controlFrame{Action: "SUBSCRIBE", Channel: t.Channel}
	if t.Root {
		f.RootMarketID = t.MarketID
	} else {
		f.MarketID = t.MarketID
	}
	return f
}

func unsubscribeFrame(t subs.Target) controlFrame {
	f := subscribeFrame(t)
	f.Action = "UNSUBSCRIBE"
	return f
}

var heartbeatFrame = controlFrame{Action: "HEARTBEAT"}

// Transport is one established duplex message channel. Conn owns exactly one
// at a time and replaces it on reconnect.
type Transport interface {
	// ReadMessage blocks until the next inbound frame arrives or the
	// transport fails. Close unblocks it with an error.
	ReadMessage() ([]byte, error)

	// WriteJSON sends one outbound frame. Safe for concurrent use.
	WriteJSON(v any) error

	// Close tears down the transport. Idempotent.
	Close() error
}

// Dialer produces Transports. The production implementation is WSDialer;
// tests inject fakes so the connection state machine runs without network
// I/O.
type Dialer interface {
	Dial(ctx context.Context) (Transport, error)
}

// WSDialer dials the upstream opinion.trade WebSocket endpoint,
// authenticating via the apikey query parameter.
type WSDialer struct {
	URL    string
	APIKey string
}

// Dial establishes a WebSocket connection.
func (d *WSDialer) Dial(ctx context.Context) (Transport, error) {
	u, err := url.Parse(d.URL)
	if err != nil {
		return nil, fmt.Errorf("stream: parse url: %w", err)
	}
	if d.APIKey != "" {
		q := u.Query()
		q.Set("apikey", d.APIKey)
		u.RawQuery = q.Encode()
	}

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("stream: dial: %w", err)
	}

	return &wsTransport{conn: conn}, nil
}

// wsTransport wraps a gorilla connection with serialized writes.
type wsTransport struct {
	conn *websocket.Conn

	writeMu sync.Mutex

	closeMu sync.Mutex
	closed  bool
}

func (t *wsTransport) ReadMessage() ([]byte, error) {
	_, data, err := t.conn.ReadMessage()
	return data, err
}

func (t *wsTransport) WriteJSON(v any) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	t.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return t.conn.WriteJSON(v)
}

func (t *wsTransport) Close() error {
	t.closeMu.Lock()
	defer t.closeMu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true

	t.writeMu.Lock()
	t.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	t.writeMu.Unlock()

	return t.conn.Close()
}

package session

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Default transport constants.
const (
	DefaultWriteWait      = 10 * time.Second
	DefaultMaxMessageSize = 16 * 1024 * 1024 // 16MB clips

	// CloseGracePeriod is the deadline for writing the close frame.
	CloseGracePeriod = 5 * time.Second
)

// EventServerID is emitted once right after connect so the client learns its
// session identifier.
const EventServerID = "server-id"

// WSChannel is the gorilla/websocket implementation of Channel.
// Writes are serialized through a mutex (gorilla/websocket requirement).
type WSChannel struct {
	id      string
	baseURL string

	conn      *websocket.Conn
	writeWait time.Duration

	mu     sync.Mutex
	closed bool
}

// NewWSChannel wraps an upgraded connection into a Channel. baseURL is the
// externally reachable server root recorded for this session.
func NewWSChannel(conn *websocket.Conn, baseURL string) *WSChannel {
	conn.SetReadLimit(DefaultMaxMessageSize)
	return &WSChannel{
		id:        uuid.NewString(),
		baseURL:   baseURL,
		conn:      conn,
		writeWait: DefaultWriteWait,
	}
}

// ID implements Channel.
func (c *WSChannel) ID() string { return c.id }

// BaseURL implements Channel.
func (c *WSChannel) BaseURL() string { return c.baseURL }

// Emit implements Channel. Payloads marshal via encoding/json, so []byte
// fields cross the wire base64-encoded.
func (c *WSChannel) Emit(event string, payload any) error {
	data, err := json.Marshal(Envelope{Event: event, Payload: payload})
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrSessionClosed
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeWait)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write %s event: %w", event, err)
	}
	return nil
}

// IsOpen implements Channel.
func (c *WSChannel) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

// Close implements Channel. The close frame is best effort.
func (c *WSChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.SetWriteDeadline(time.Now().Add(CloseGracePeriod))
	_ = c.conn.WriteMessage(websocket.CloseMessage, closeMsg)

	return c.conn.Close()
}

// Receive reads one inbound message, blocking until the client sends or the
// connection drops.
func (c *WSChannel) Receive() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Package session manages connected client sessions and the event channel
// each one speaks over. A session is one bidirectional connection: the client
// sends query events carrying media payloads, the server emits result events
// back. Transport details live in the Channel implementations; the
// orchestrator only sees the Channel interface.
package session

import (
	"errors"
	"sync"
)

// ErrSessionClosed is returned by Emit after the channel has been closed.
// Late pipeline results hitting a departed client are expected; callers log
// and drop rather than fail the whole query.
var ErrSessionClosed = errors.New("session: channel closed")

// Envelope is the wire form of every server-to-client event.
type Envelope struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

// Channel is one client's event connection.
type Channel interface {
	// ID returns the stable session identifier.
	ID() string

	// BaseURL returns the externally reachable server base URL for this
	// session, used to build resource links sent to the client.
	BaseURL() string

	// Emit sends a named event with a JSON payload. It returns
	// ErrSessionClosed once the channel is no longer open.
	Emit(event string, payload any) error

	// IsOpen reports whether the channel can still accept events.
	IsOpen() bool

	// Close shuts the channel down. Close is idempotent.
	Close() error
}

// Registry tracks live sessions by ID.
type Registry struct {
	mu       sync.RWMutex
	channels map[string]Channel
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{channels: make(map[string]Channel)}
}

// Add registers a channel under its ID, replacing any previous entry.
func (r *Registry) Add(ch Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channels[ch.ID()] = ch
}

// Remove drops the channel with the given ID. Missing IDs are a no-op.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.channels, id)
}

// Get returns the channel for id, or false when absent.
func (r *Registry) Get(id string) (Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.channels[id]
	return ch, ok
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels)
}

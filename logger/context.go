package logger

import (
	"context"
	"log/slog"
)

// contextKey is a private type for context keys to avoid collisions.
type contextKey string

// Context keys for common logging fields. Values stored under these keys are
// automatically extracted and added to log entries by ContextHandler.
const (
	// ContextKeySessionID identifies the client session a log entry belongs to.
	ContextKeySessionID contextKey = "session_id"

	// ContextKeyOperation identifies the pipeline operation
	// (e.g., "recognize", "detect", "query").
	ContextKeyOperation contextKey = "operation"
)

// WithSessionID returns a context carrying the given session id for logging.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, ContextKeySessionID, sessionID)
}

// WithOperation returns a context carrying the given operation name for logging.
func WithOperation(ctx context.Context, operation string) context.Context {
	return context.WithValue(ctx, ContextKeyOperation, operation)
}

// ContextHandler is a slog.Handler that automatically extracts logging fields
// from context and adds them to log records. It wraps an inner handler and
// delegates all actual logging to it after enriching records with context data.
type ContextHandler struct {
	inner slog.Handler
}

// NewContextHandler creates a new ContextHandler wrapping the given handler.
func NewContextHandler(inner slog.Handler) *ContextHandler {
	return &ContextHandler{inner: inner}
}

// Enabled reports whether the inner handler handles records at the given level.
func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle enriches the record with context fields and delegates to the inner handler.
func (h *ContextHandler) Handle(ctx context.Context, record slog.Record) error {
	for _, key := range []contextKey{ContextKeySessionID, ContextKeyOperation} {
		if value, ok := ctx.Value(key).(string); ok && value != "" {
			record.AddAttrs(slog.String(string(key), value))
		}
	}
	return h.inner.Handle(ctx, record)
}

// WithAttrs returns a new ContextHandler whose inner handler has the given attributes.
func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{inner: h.inner.WithAttrs(attrs)}
}

// WithGroup returns a new ContextHandler whose inner handler has the given group.
func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{inner: h.inner.WithGroup(name)}
}

// Package framecache keeps each session's last selected frame, already PNG
// encoded, so a query arriving with an empty clip can reuse the previous
// frame instead of failing. Entries are ephemeral and expire on their own;
// nothing here is durable state.
package framecache

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the session has no cached frame.
var ErrNotFound = errors.New("framecache: no frame for session")

// DefaultTTL bounds how long a cached frame stays usable. A stale frame is
// worse than a decode error for an assistive answer.
const DefaultTTL = 5 * time.Minute

// Cache stores one encoded frame per session.
type Cache interface {
	// Put replaces the session's cached frame.
	Put(ctx context.Context, sessionID string, png []byte) error

	// Get returns the session's cached frame or ErrNotFound.
	Get(ctx context.Context, sessionID string) ([]byte, error)
}

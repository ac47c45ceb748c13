// Package storage persists synthesized audio so it can be handed to the
// client as a link instead of inline bytes. Implementations must be safe for
// concurrent use by multiple sessions.
package storage

import "context"

// Uploader stores a media payload and returns the URL the client fetches it
// from.
type Uploader interface {
	// Store writes data under a collision-safe name derived from filename
	// and returns the externally reachable URL rooted at baseURL.
	Store(ctx context.Context, data []byte, filename, baseURL string) (string, error)
}

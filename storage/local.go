package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// idPrefixLen is the number of hex characters taken from the UUID to make
// stored names collision-safe while keeping URLs short.
const idPrefixLen = 8

// ResourcePath is the URL path prefix stored files are served under.
const ResourcePath = "/resource/"

// LocalStore is an Uploader backed by a local directory. The HTTP layer
// serves the directory under ResourcePath.
type LocalStore struct {
	dir string
}

// NewLocalStore creates the backing directory if needed.
func NewLocalStore(dir string) (*LocalStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("storage: directory is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("storage: create %s: %w", dir, err)
	}
	return &LocalStore{dir: dir}, nil
}

// Store implements Uploader. The stored name is "{8-hex-id}_{filename}" so
// repeated uploads of the same filename never collide.
func (s *LocalStore) Store(ctx context.Context, data []byte, filename, baseURL string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	name := uuid.NewString()[:idPrefixLen] + "_" + sanitizeFilename(filename)
	path := filepath.Join(s.dir, name)

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("storage: write %s: %w", name, err)
	}

	return strings.TrimSuffix(baseURL, "/") + ResourcePath + name, nil
}

// sanitizeFilename strips any path components so a hostile filename cannot
// escape the storage directory.
func sanitizeFilename(filename string) string {
	base := filepath.Base(filepath.Clean(filename))
	if base == "." || base == string(filepath.Separator) || base == "" {
		return "upload"
	}
	return base
}

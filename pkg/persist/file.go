package persist

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// fileExt is appended to every key to form its filename.
const fileExt = ".json"

// FileGateway stores one JSON file per key under a single root directory.
//
// Writes go through a temp file followed by os.Rename, so a reader never
// observes a half-written snapshot. Keys never contain path separators
// (validateKey enforces this, and SessionKey sanitizes ids), so every file
// lands directly in the root.
type FileGateway struct {
	root string

	mu     sync.Mutex
	closed bool
}

// NewFile creates a file-backed gateway rooted at dir, creating the
// directory if needed.
func NewFile(dir string) (*FileGateway, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating storage root: %w", err)
	}
	return &FileGateway{root: dir}, nil
}

func (g *FileGateway) path(key string) string {
	return filepath.Join(g.root, key+fileExt)
}

func (g *FileGateway) isClosed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closed
}

// Get reads the value for key, or (nil, nil) when the file is missing.
func (g *FileGateway) Get(_ context.Context, key string) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	if g.isClosed() {
		return nil, ErrClosed
	}

	data, err := os.ReadFile(g.path(key))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", key, err)
	}
	return data, nil
}

// Set writes value under key atomically: temp file in the same directory,
// then rename over the target.
func (g *FileGateway) Set(_ context.Context, key string, value []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if g.isClosed() {
		return ErrClosed
	}

	tmp, err := os.CreateTemp(g.root, key+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", key, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file for %s: %w", key, err)
	}
	if err := os.Rename(tmpName, g.path(key)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing %s: %w", key, err)
	}
	return nil
}

// Delete removes the file for key. A missing file is not an error.
func (g *FileGateway) Delete(_ context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if g.isClosed() {
		return ErrClosed
	}

	err := os.Remove(g.path(key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting %s: %w", key, err)
	}
	return nil
}

// List returns the keys of all stored files matching the prefix.
func (g *FileGateway) List(_ context.Context, prefix string) ([]string, error) {
	if g.isClosed() {
		return nil, ErrClosed
	}

	entries, err := os.ReadDir(g.root)
	if err != nil {
		return nil, fmt.Errorf("listing storage root: %w", err)
	}

	var keys []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, fileExt) {
			continue
		}
		key := strings.TrimSuffix(name, fileExt)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// Clear deletes every stored file matching the prefix.
func (g *FileGateway) Clear(ctx context.Context, prefix string) error {
	keys, err := g.List(ctx, prefix)
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := g.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

// Close marks the gateway closed. Close is idempotent.
func (g *FileGateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	return nil
}

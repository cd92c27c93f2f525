package persist

import (
	"context"
	"strings"
	"sync"
)

// MemoryGateway is an in-process Gateway for tests and ephemeral sessions.
// Values are copied on the way in and out, so callers cannot alias the
// stored buffers.
type MemoryGateway struct {
	mu     sync.RWMutex
	data   map[string][]byte
	closed bool
}

// NewMemory creates an empty in-memory gateway.
func NewMemory() *MemoryGateway {
	return &MemoryGateway{data: make(map[string][]byte)}
}

// Get returns the value for key, or (nil, nil) when missing.
func (g *MemoryGateway) Get(_ context.Context, key string) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.closed {
		return nil, ErrClosed
	}

	value, ok := g.data[key]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

// Set stores a copy of value under key.
func (g *MemoryGateway) Set(_ context.Context, key string, value []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return ErrClosed
	}

	stored := make([]byte, len(value))
	copy(stored, value)
	g.data[key] = stored
	return nil
}

// Delete removes a key. Deleting a missing key is not an error.
func (g *MemoryGateway) Delete(_ context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return ErrClosed
	}
	delete(g.data, key)
	return nil
}

// List returns all keys with the given prefix. An empty prefix lists
// everything.
func (g *MemoryGateway) List(_ context.Context, prefix string) ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.closed {
		return nil, ErrClosed
	}

	var keys []string
	for key := range g.data {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// Clear removes all keys with the given prefix.
func (g *MemoryGateway) Clear(_ context.Context, prefix string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return ErrClosed
	}

	for key := range g.data {
		if strings.HasPrefix(key, prefix) {
			delete(g.data, key)
		}
	}
	return nil
}

// Close marks the gateway closed. Close is idempotent.
func (g *MemoryGateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	return nil
}

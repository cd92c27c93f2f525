// Package persist defines the key-value persistence contract that graph
// snapshots travel through, plus four pluggable backends: an in-memory map
// (tests, ephemeral sessions), flat JSON files with atomic replace,
// BadgerDB, and SQLite.
//
// The core of SynapseDB only ever sees this contract. Snapshots are opaque
// byte payloads to the gateway; the graph package owns the wire format.
//
// Keys are namespaced "graph:<chatId>". The chat id portion is sanitized
// before it becomes part of a physical key or filename so that
// path-traversal sequences can never escape the configured storage root;
// the logical, unsanitized id lives inside the snapshot's metadata.
package persist

import (
	"context"
	"errors"
	"strings"
)

// Common gateway errors.
var (
	// ErrClosed is returned by every operation on a closed gateway,
	// distinct from "key missing" so callers never mistake a dead
	// backend for an empty one.
	ErrClosed = errors.New("persistence gateway closed")

	// ErrInvalidKey is returned for keys that could escape the storage
	// root or are empty.
	ErrInvalidKey = errors.New("invalid key")
)

// KeyPrefix namespaces all graph snapshot keys. Listing with this prefix
// enumerates every persisted session.
const KeyPrefix = "graph:"

// Gateway is the minimal key-value contract persistence backends implement.
//
// Get returns (nil, nil) for a missing key. Writes must have atomic
// replace semantics: a concurrent reader sees either the previous value or
// the new one, never a torn write.
type Gateway interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]string, error)
	Clear(ctx context.Context, prefix string) error
	Close() error
}

// SanitizeID normalizes a chat/session identifier for use inside a
// physical key or filename: every rune that is not a letter, digit, '_'
// or '-' is replaced with '_'. The logical identifier is not affected —
// it is stored verbatim in the snapshot metadata.
func SanitizeID(id string) string {
	var b strings.Builder
	b.Grow(len(id))
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

// SessionKey builds the namespaced storage key for a chat session.
func SessionKey(chatID string) string {
	return KeyPrefix + SanitizeID(chatID)
}

// validateKey rejects keys that are empty or carry path separators. Keys
// built through SessionKey always pass.
func validateKey(key string) error {
	if key == "" || strings.ContainsAny(key, "/\\") || strings.Contains(key, "..") {
		return ErrInvalidKey
	}
	return nil
}

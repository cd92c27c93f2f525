package session

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/orneryd/synapsedb/pkg/graph"
	"github.com/orneryd/synapsedb/pkg/persist"
)

// Manager creates, loads and saves sessions through a persistence gateway.
//
// One manager serves many sessions; each session's lifetime is one chat.
// The gateway only ever sees encoded snapshots under "graph:<chatId>"
// keys, so any backend satisfying persist.Gateway plugs in.
type Manager struct {
	gateway persist.Gateway
	config  *Config
	log     *log.Logger
}

// NewManager creates a Manager over the given gateway. A nil config uses
// defaults for every subsystem.
func NewManager(gateway persist.Gateway, config *Config) *Manager {
	if config == nil {
		config = &Config{}
	}
	logger := config.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Manager{gateway: gateway, config: config, log: logger}
}

// Open loads the session for chatID from the gateway, or starts an empty
// one if nothing is persisted yet. A corrupt persisted snapshot is an
// explicit error, never a silently empty session.
func (m *Manager) Open(ctx context.Context, chatID string) (*Session, error) {
	data, err := m.gateway.Get(ctx, persist.SessionKey(chatID))
	if err != nil {
		return nil, fmt.Errorf("loading session %q: %w", chatID, err)
	}

	var store *graph.Store
	if data == nil {
		store = graph.NewStore(chatID)
		m.log.Debug("new session", "chat", chatID)
	} else {
		snap, err := graph.DecodeSnapshot(data)
		if err != nil {
			return nil, fmt.Errorf("loading session %q: %w", chatID, err)
		}
		store, err = graph.Restore(snap)
		if err != nil {
			return nil, fmt.Errorf("loading session %q: %w", chatID, err)
		}
		m.log.Debug("resumed session", "chat", chatID,
			"nodes", store.NodeCount(), "edges", store.EdgeCount())
	}

	return newSession(store, m.config), nil
}

// Save encodes the session's snapshot and writes it through the gateway.
func (m *Manager) Save(ctx context.Context, s *Session) error {
	data, err := graph.EncodeSnapshot(s.store.Snapshot())
	if err != nil {
		return fmt.Errorf("saving session %q: %w", s.chatID, err)
	}
	if err := m.gateway.Set(ctx, persist.SessionKey(s.chatID), data); err != nil {
		return fmt.Errorf("saving session %q: %w", s.chatID, err)
	}
	return nil
}

// List returns the storage keys of every persisted session.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.gateway.List(ctx, persist.KeyPrefix)
}

// Delete removes a persisted session. The in-memory session, if any, is
// unaffected.
func (m *Manager) Delete(ctx context.Context, chatID string) error {
	return m.gateway.Delete(ctx, persist.SessionKey(chatID))
}

// Close closes the underlying gateway.
func (m *Manager) Close() error {
	return m.gateway.Close()
}

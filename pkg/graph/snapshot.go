package graph

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrMalformedSnapshot is returned when a persisted snapshot cannot be
// decoded into a consistent graph. Restore never builds a
// partially-populated store: either the whole snapshot is valid or the
// error is surfaced.
var ErrMalformedSnapshot = errors.New("malformed snapshot")

// SnapshotMetadata carries the session-level fields of a snapshot.
//
// ChatID is the logical, unsanitized session identifier. Timestamps
// serialize as ISO-8601 (RFC 3339) strings via encoding/json.
type SnapshotMetadata struct {
	ChatID               string    `json:"chatId"`
	Version              int       `json:"version"`
	CreatedAt            time.Time `json:"createdAt"`
	UpdatedAt            time.Time `json:"updatedAt"`
	CompressionThreshold float64   `json:"compressionThreshold"`
}

// Snapshot is an immutable export of a store's complete state.
//
// Nodes and edges are id-keyed maps, not arrays, matching the wire format
// consumed by persistence backends. Round-tripping a snapshot through
// Encode and Decode reproduces identical node/edge counts, frequencies and
// weights.
type Snapshot struct {
	Nodes    map[NodeID]*Node `json:"nodes"`
	Edges    map[EdgeID]*Edge `json:"edges"`
	Metadata SnapshotMetadata `json:"metadata"`
}

// Snapshot exports the store's current state. The returned snapshot shares
// nothing with the store; later mutations do not affect it.
func (s *Store) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &Snapshot{
		Nodes: make(map[NodeID]*Node, len(s.nodes)),
		Edges: make(map[EdgeID]*Edge, len(s.edges)),
		Metadata: SnapshotMetadata{
			ChatID:               s.chatID,
			Version:              s.version,
			CreatedAt:            s.createdAt,
			UpdatedAt:            s.updatedAt,
			CompressionThreshold: s.compressionThreshold,
		},
	}
	for id, node := range s.nodes {
		snap.Nodes[id] = node.Clone()
	}
	for id, edge := range s.edges {
		snap.Edges[id] = edge.Clone()
	}
	return snap
}

// Restore reconstructs a store from a snapshot, rebuilding all indices.
//
// The snapshot is validated first; a malformed snapshot returns an error
// wrapping ErrMalformedSnapshot and no store.
func Restore(snap *Snapshot) (*Store, error) {
	if err := snap.Validate(); err != nil {
		return nil, err
	}

	store := NewStore(snap.Metadata.ChatID)
	store.version = snap.Metadata.Version
	store.compressionThreshold = snap.Metadata.CompressionThreshold
	store.createdAt = snap.Metadata.CreatedAt
	store.updatedAt = snap.Metadata.UpdatedAt

	for id, node := range snap.Nodes {
		store.nodes[id] = node.Clone()
		store.indexNode(store.nodes[id])
	}
	for id, edge := range snap.Edges {
		store.edges[id] = edge.Clone()
		store.indexEdge(store.edges[id])
	}
	return store, nil
}

// Validate checks the structural invariants of a snapshot: map keys must
// match record ids, types must be known, edge endpoints must be named.
// Edge endpoints are not required to reference live nodes — archived peers
// are legitimate.
func (snap *Snapshot) Validate() error {
	if snap == nil {
		return fmt.Errorf("%w: nil snapshot", ErrMalformedSnapshot)
	}
	if snap.Metadata.ChatID == "" {
		return fmt.Errorf("%w: missing chatId", ErrMalformedSnapshot)
	}
	if t := snap.Metadata.CompressionThreshold; t <= 0 || t > 1 {
		return fmt.Errorf("%w: compressionThreshold %v outside (0,1]", ErrMalformedSnapshot, t)
	}
	for id, node := range snap.Nodes {
		if node == nil {
			return fmt.Errorf("%w: nil node %q", ErrMalformedSnapshot, id)
		}
		if node.ID != id {
			return fmt.Errorf("%w: node key %q names record %q", ErrMalformedSnapshot, id, node.ID)
		}
		if !node.Type.Valid() {
			return fmt.Errorf("%w: node %q has unknown type %q", ErrMalformedSnapshot, id, node.Type)
		}
	}
	for id, edge := range snap.Edges {
		if edge == nil {
			return fmt.Errorf("%w: nil edge %q", ErrMalformedSnapshot, id)
		}
		if edge.ID != id {
			return fmt.Errorf("%w: edge key %q names record %q", ErrMalformedSnapshot, id, edge.ID)
		}
		if edge.SourceID == "" || edge.TargetID == "" {
			return fmt.Errorf("%w: edge %q missing endpoint", ErrMalformedSnapshot, id)
		}
		if !edge.Type.Valid() {
			return fmt.Errorf("%w: edge %q has unknown type %q", ErrMalformedSnapshot, id, edge.Type)
		}
	}
	return nil
}

// EncodeSnapshot serializes a snapshot to its JSON wire format.
func EncodeSnapshot(snap *Snapshot) ([]byte, error) {
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshot parses and validates the JSON wire format. Corrupt input
// fails explicitly rather than yielding a partially-populated snapshot.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
	}
	if snap.Nodes == nil {
		snap.Nodes = make(map[NodeID]*Node)
	}
	if snap.Edges == nil {
		snap.Edges = make(map[EdgeID]*Edge)
	}
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Package correction implements the error-suppression policy for the
// memory graph: ERROR nodes can be marked suppressed, and CORRECTION nodes
// with CORRECTS edges materialize the fix that supersedes them.
//
// Suppression is a policy operation, not a lookup: applying it to a node
// that is not an ERROR fails loudly instead of silently no-op-ing.
package correction

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/orneryd/synapsedb/pkg/graph"
)

// ErrNotErrorNode is returned when suppression is attempted on a node
// whose type is not ERROR.
var ErrNotErrorNode = errors.New("node is not an ERROR node")

// Store is the narrow graph-store contract the suppressor consumes.
type Store interface {
	Node(id graph.NodeID) (*graph.Node, bool)
	UpdateNode(id graph.NodeID, patch graph.NodePatch) (*graph.Node, bool)
	AddNode(*graph.Node) error
	AddEdge(*graph.Edge) error
	QueryByType(t graph.NodeType) []*graph.Node
	EdgesTo(id graph.NodeID) []*graph.Edge
}

// SuppressNode returns a clone of the node with metadata.suppressed set to
// true and a suppression timestamp. The input is not modified and no store
// is involved; this is the pure policy half of suppression.
//
// Returns ErrNotErrorNode (wrapped) unless node.Type is ERROR.
func SuppressNode(node *graph.Node) (*graph.Node, error) {
	if node == nil {
		return nil, graph.ErrInvalidData
	}
	if node.Type != graph.NodeError {
		return nil, fmt.Errorf("suppressing %q: %w (type %s)", node.ID, ErrNotErrorNode, node.Type)
	}

	clone := node.Clone()
	if clone.Metadata == nil {
		clone.Metadata = make(map[string]any, 2)
	}
	clone.Metadata["suppressed"] = true
	clone.Metadata["suppressedAt"] = time.Now().Format(time.RFC3339)
	return clone, nil
}

// Suppressor applies the suppression policy against a graph store.
type Suppressor struct {
	store Store
}

// New creates a Suppressor over the given store.
func New(store Store) *Suppressor {
	return &Suppressor{store: store}
}

// Suppress marks the ERROR node with the given id as suppressed in the
// store. Unknown ids and non-ERROR nodes fail with a descriptive error.
func (s *Suppressor) Suppress(id graph.NodeID) (*graph.Node, error) {
	node, ok := s.store.Node(id)
	if !ok {
		return nil, fmt.Errorf("suppressing %q: %w", id, graph.ErrNotFound)
	}

	suppressed, err := SuppressNode(node)
	if err != nil {
		return nil, err
	}

	updated, ok := s.store.UpdateNode(id, graph.NodePatch{Metadata: suppressed.Metadata})
	if !ok {
		return nil, fmt.Errorf("suppressing %q: %w", id, graph.ErrNotFound)
	}
	return updated, nil
}

// CreateCorrection builds a CORRECTION node for the given ERROR node and a
// CORRECTS edge pointing from the correction to the error.
func (s *Suppressor) CreateCorrection(errorID graph.NodeID, label, description string) (*graph.Node, *graph.Edge, error) {
	target, ok := s.store.Node(errorID)
	if !ok {
		return nil, nil, fmt.Errorf("correcting %q: %w", errorID, graph.ErrNotFound)
	}
	if target.Type != graph.NodeError {
		return nil, nil, fmt.Errorf("correcting %q: %w (type %s)", errorID, ErrNotErrorNode, target.Type)
	}

	node := &graph.Node{
		ID:          graph.NodeID("corr-" + uuid.NewString()),
		Type:        graph.NodeCorrection,
		Label:       label,
		Description: description,
		Metadata:    map[string]any{"corrects": string(errorID)},
	}
	if err := s.store.AddNode(node); err != nil {
		return nil, nil, fmt.Errorf("creating correction for %q: %w", errorID, err)
	}

	edge := &graph.Edge{
		ID:       graph.EdgeID("corr-edge-" + uuid.NewString()),
		SourceID: node.ID,
		TargetID: errorID,
		Type:     graph.EdgeCorrects,
	}
	if err := s.store.AddEdge(edge); err != nil {
		return nil, nil, fmt.Errorf("creating CORRECTS edge for %q: %w", errorID, err)
	}
	return node, edge, nil
}

// FindCorrectedErrors returns the ERROR nodes that have at least one
// incoming CORRECTS edge.
func (s *Suppressor) FindCorrectedErrors() []*graph.Node {
	return s.partitionErrors(true)
}

// FindUncorrectedErrors returns the ERROR nodes with no incoming CORRECTS
// edge.
func (s *Suppressor) FindUncorrectedErrors() []*graph.Node {
	return s.partitionErrors(false)
}

func (s *Suppressor) partitionErrors(corrected bool) []*graph.Node {
	var out []*graph.Node
	for _, node := range s.store.QueryByType(graph.NodeError) {
		hasCorrection := false
		for _, edge := range s.store.EdgesTo(node.ID) {
			if edge.Type == graph.EdgeCorrects {
				hasCorrection = true
				break
			}
		}
		if hasCorrection == corrected {
			out = append(out, node)
		}
	}
	return out
}

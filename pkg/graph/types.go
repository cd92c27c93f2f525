// Package graph provides the session-scoped knowledge graph that SynapseDB
// uses as long-term memory for LLM agents.
//
// The graph is a labeled property graph specialised for agent memory: nodes
// are typed facts (concepts, decisions, milestones, errors, corrections, code
// entities) and edges are typed, weighted relationships between them. A Store
// owns all nodes and edges for one chat/session and maintains derived indices
// for label, source and target lookups.
//
// Example Usage:
//
//	store := graph.NewStore("chat-42")
//
//	node := &graph.Node{
//		ID:    graph.NodeID("concept-generics"),
//		Type:  graph.NodeConcept,
//		Label: "TypeScript generics",
//	}
//	if err := store.AddNode(node); err != nil {
//		log.Fatal(err)
//	}
//
//	edge := &graph.Edge{
//		ID:       graph.EdgeID("rel-1"),
//		SourceID: graph.NodeID("concept-generics"),
//		TargetID: graph.NodeID("concept-types"),
//		Type:     graph.EdgeRelates,
//		Weight:   0.8,
//	}
//	if err := store.AddEdge(edge); err != nil {
//		log.Fatal(err)
//	}
//
//	// Query by label substring, ordered by descending frequency.
//	hits := store.QueryByLabel("generic")
//	fmt.Printf("found %d nodes\n", len(hits))
package graph

import (
	"errors"
	"time"
)

// Common errors returned by the graph store.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidID     = errors.New("invalid id")
	ErrInvalidData   = errors.New("invalid data")
	ErrInvalidType   = errors.New("invalid type")
)

// NodeID is a strongly-typed unique identifier for graph nodes.
//
// Using a distinct type keeps NodeID and EdgeID from being mixed up at call
// sites and leaves room for methods later.
type NodeID string

// EdgeID is a strongly-typed unique identifier for graph edges.
type EdgeID string

// NodeType classifies what kind of memory a node represents.
type NodeType string

const (
	// NodeConcept is a general concept or fact ("TypeScript generics").
	NodeConcept NodeType = "CONCEPT"
	// NodeDecision records a decision the agent or user made.
	NodeDecision NodeType = "DECISION"
	// NodeMilestone marks a completed goal or checkpoint.
	NodeMilestone NodeType = "MILESTONE"
	// NodeError records a mistake, failure or bad assumption.
	NodeError NodeType = "ERROR"
	// NodeCorrection records the fix for an earlier ERROR node.
	NodeCorrection NodeType = "CORRECTION"
	// NodeCodeEntity references a function, type, file or other code object.
	NodeCodeEntity NodeType = "CODE_ENTITY"
)

// Valid reports whether t is one of the known node types.
func (t NodeType) Valid() bool {
	switch t {
	case NodeConcept, NodeDecision, NodeMilestone, NodeError, NodeCorrection, NodeCodeEntity:
		return true
	}
	return false
}

// EdgeType classifies the relationship an edge encodes.
type EdgeType string

const (
	// EdgeRelates is a generic semantic association. The synaptic linker
	// only ever creates edges of this type.
	EdgeRelates EdgeType = "RELATES"
	// EdgeCauses encodes a causal relationship.
	EdgeCauses EdgeType = "CAUSES"
	// EdgeCorrects points from a CORRECTION node to the ERROR it fixes.
	EdgeCorrects EdgeType = "CORRECTS"
	// EdgeImplements links a code entity to the concept it realises.
	EdgeImplements EdgeType = "IMPLEMENTS"
	// EdgeDependsOn encodes a dependency.
	EdgeDependsOn EdgeType = "DEPENDS_ON"
	// EdgeBlocks marks one item as blocking another.
	EdgeBlocks EdgeType = "BLOCKS"
)

// Valid reports whether t is one of the known edge types.
func (t EdgeType) Valid() bool {
	switch t {
	case EdgeRelates, EdgeCauses, EdgeCorrects, EdgeImplements, EdgeDependsOn, EdgeBlocks:
		return true
	}
	return false
}

// Node represents a typed vertex in the memory graph.
//
// Fields:
//   - ID: unique within one graph instance
//   - Type: one of the NodeType constants
//   - Label: short human-readable text, indexed for substring queries
//   - Description: optional longer text, included in similarity scoring
//   - Metadata: open string-keyed map for subsystem annotations
//     (the linker writes synapse/similarity/mode, suppression writes
//     suppressed/suppressedAt)
//   - Frequency: access-count hint, defaults to 1, only ever increases
//     via Store.TouchNode
//
// Nodes are value records: the Store hands out deep copies, so mutating a
// returned Node never changes stored state.
type Node struct {
	ID          NodeID         `json:"id"`
	Type        NodeType       `json:"type"`
	Label       string         `json:"label"`
	Description string         `json:"description,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Frequency   int64          `json:"frequency"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// Clone returns a deep copy of the node. Metadata is copied one level deep,
// which matches how the engines write it (flat scalar values).
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := *n
	if n.Metadata != nil {
		c.Metadata = make(map[string]any, len(n.Metadata))
		for k, v := range n.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

// Edge represents a directed, weighted relationship between two nodes.
//
// SourceID and TargetID reference nodes by id only. The endpoints may refer
// to formerly-existing nodes: archival moves a node out of the working set
// while edges naming it can still round-trip through snapshots and the
// archive. Deleting a node through the Store cascades to every edge that
// references it on either side.
//
// Weight is a confidence/strength value, default 1.0. The Hebbian engine
// caps it at its configured maximum on strengthen and multiplies it toward
// zero on decay; nothing below the store enforces a floor.
type Edge struct {
	ID        EdgeID         `json:"id"`
	SourceID  NodeID         `json:"sourceId"`
	TargetID  NodeID         `json:"targetId"`
	Type      EdgeType       `json:"type"`
	Weight    float64        `json:"weight"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// Clone returns a deep copy of the edge.
func (e *Edge) Clone() *Edge {
	if e == nil {
		return nil
	}
	c := *e
	if e.Metadata != nil {
		c.Metadata = make(map[string]any, len(e.Metadata))
		for k, v := range e.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

// NodePatch is a partial update applied by Store.UpdateNode.
//
// Nil fields are left untouched. Metadata, when non-nil, replaces the node's
// metadata map wholesale (clone-with-overrides semantics). Frequency is
// deliberately absent: it only increases, via Store.TouchNode.
type NodePatch struct {
	Type        *NodeType
	Label       *string
	Description *string
	Metadata    map[string]any
}

// EdgePatch is a partial update applied by Store.UpdateEdge.
//
// Weight may take any real value here; only the Hebbian engine enforces
// bounds during its own updates.
type EdgePatch struct {
	Type     *EdgeType
	Weight   *float64
	Metadata map[string]any
}

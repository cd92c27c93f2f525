package graph

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Reinforcer is the narrow contract through which a Store reports
// co-activated query results to an attached Hebbian weight engine.
//
// The Store never depends on the engine's concrete type; any label/type
// query that returns two or more nodes hands the result ids to the
// reinforcer so that edges inside the result set can be strengthened
// ("neurons that fire together wire together"). With no reinforcer
// attached, queries never mutate edge weights.
type Reinforcer interface {
	StrengthenCoActivated(ids []NodeID) int
}

// Store is a thread-safe in-memory graph store for one chat session.
//
// The Store exclusively owns all Node and Edge records for its session. A
// single map per record kind is the source of truth; the label, type,
// source and target indices hold only ids and are rebuilt incrementally on
// every mutation. Returned nodes and edges are deep copies, so callers can
// never mutate stored state behind the Store's back.
//
// Performance characteristics:
//   - Node/edge lookup by id: O(1)
//   - Edges from/to a node: O(degree)
//   - Query by type: O(matching set)
//   - Query by label substring: O(label buckets) + O(matching set)
//
// Every mutating call bumps the store's UpdatedAt timestamp.
//
// ELI12:
//
// Think of the Store as a box of index cards (nodes) tied together with
// strings (edges). There is exactly one card per fact, and a few sorted
// card catalogs on the side that tell you where to look — but the catalogs
// are just pointers. If a catalog burned down you could rebuild it from the
// cards, never the other way around.
type Store struct {
	mu     sync.RWMutex
	chatID string

	nodes map[NodeID]*Node
	edges map[EdgeID]*Edge

	// Derived indices: ids only, never records.
	nodesByLabel map[string]map[NodeID]struct{} // lowercased label -> node ids
	nodesByType  map[NodeType]map[NodeID]struct{}
	edgesByType  map[EdgeType]map[EdgeID]struct{}
	edgesFrom    map[NodeID]map[EdgeID]struct{}
	edgesTo      map[NodeID]map[EdgeID]struct{}

	version              int
	compressionThreshold float64
	createdAt            time.Time
	updatedAt            time.Time

	reinforcer Reinforcer
}

// DefaultCompressionThreshold is the context-usage fraction above which a
// session should start archiving low-importance nodes.
const DefaultCompressionThreshold = 0.8

// NewStore creates an empty graph store for the given chat/session id.
//
// The chat id is a logical identifier and is stored verbatim; sanitization
// for physical storage keys happens at the persistence boundary.
func NewStore(chatID string) *Store {
	now := time.Now()
	return &Store{
		chatID:               chatID,
		nodes:                make(map[NodeID]*Node),
		edges:                make(map[EdgeID]*Edge),
		nodesByLabel:         make(map[string]map[NodeID]struct{}),
		nodesByType:          make(map[NodeType]map[NodeID]struct{}),
		edgesByType:          make(map[EdgeType]map[EdgeID]struct{}),
		edgesFrom:            make(map[NodeID]map[EdgeID]struct{}),
		edgesTo:              make(map[NodeID]map[EdgeID]struct{}),
		version:              1,
		compressionThreshold: DefaultCompressionThreshold,
		createdAt:            now,
		updatedAt:            now,
	}
}

// ChatID returns the logical session identifier this store belongs to.
func (s *Store) ChatID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.chatID
}

// UpdatedAt returns the time of the last mutating call.
func (s *Store) UpdatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updatedAt
}

// CompressionThreshold returns the configured context-usage threshold.
func (s *Store) CompressionThreshold() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.compressionThreshold
}

// SetCompressionThreshold overrides the context-usage threshold. Values
// outside (0, 1] are ignored.
func (s *Store) SetCompressionThreshold(t float64) {
	if t <= 0 || t > 1 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.compressionThreshold = t
}

// AttachReinforcer wires a Hebbian weight engine into the query path.
// Passing nil detaches it.
func (s *Store) AttachReinforcer(r Reinforcer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reinforcer = r
}

// AddNode inserts a node into the store.
//
// Defaults are applied on insert: Frequency < 1 becomes 1, zero timestamps
// become now. The id must be unique within the store.
//
// Returns:
//   - ErrInvalidData if node is nil
//   - ErrInvalidID if the id is empty
//   - ErrInvalidType if the node type is unknown
//   - ErrAlreadyExists if a node with this id exists
func (s *Store) AddNode(node *Node) error {
	if node == nil {
		return ErrInvalidData
	}
	if node.ID == "" {
		return ErrInvalidID
	}
	if !node.Type.Valid() {
		return ErrInvalidType
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.nodes[node.ID]; exists {
		return ErrAlreadyExists
	}

	now := time.Now()
	stored := node.Clone()
	if stored.Frequency < 1 {
		stored.Frequency = 1
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = stored.CreatedAt
	}

	s.nodes[stored.ID] = stored
	s.indexNode(stored)
	s.updatedAt = now
	return nil
}

// Node returns a copy of the node with the given id.
func (s *Store) Node(id NodeID) (*Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	node, ok := s.nodes[id]
	if !ok {
		return nil, false
	}
	return node.Clone(), true
}

// UpdateNode applies a partial update to a node (clone-with-overrides) and
// bumps its UpdatedAt. Returns the updated copy, or false if the id is
// unknown.
func (s *Store) UpdateNode(id NodeID, patch NodePatch) (*Node, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.nodes[id]
	if !ok {
		return nil, false
	}

	updated := existing.Clone()
	if patch.Type != nil && patch.Type.Valid() {
		updated.Type = *patch.Type
	}
	if patch.Label != nil {
		updated.Label = *patch.Label
	}
	if patch.Description != nil {
		updated.Description = *patch.Description
	}
	if patch.Metadata != nil {
		updated.Metadata = make(map[string]any, len(patch.Metadata))
		for k, v := range patch.Metadata {
			updated.Metadata[k] = v
		}
	}
	now := time.Now()
	updated.UpdatedAt = now

	s.unindexNode(existing)
	s.nodes[id] = updated
	s.indexNode(updated)
	s.updatedAt = now
	return updated.Clone(), true
}

// TouchNode increments a node's access frequency. Frequency only ever
// increases, and only through this call. Returns the new frequency.
func (s *Store) TouchNode(id NodeID) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := s.nodes[id]
	if !ok {
		return 0, false
	}
	node.Frequency++
	now := time.Now()
	node.UpdatedAt = now
	s.updatedAt = now
	return node.Frequency, true
}

// DeleteNode removes a node and cascades to every edge that references it
// on either side. Returns false if the id is unknown.
func (s *Store) DeleteNode(id NodeID) bool {
	_, _, ok := s.RemoveNodeCascade(id)
	return ok
}

// RemoveNodeCascade removes a node and all touching edges, returning the
// removed records. The compression engine uses this to relocate a node and
// its edges into the archive without losing anything.
func (s *Store) RemoveNodeCascade(id NodeID) (*Node, []*Edge, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := s.nodes[id]
	if !ok {
		return nil, nil, false
	}

	// Collect touching edge ids first; removeEdgeLocked mutates the sets.
	touching := make(map[EdgeID]struct{})
	for eid := range s.edgesFrom[id] {
		touching[eid] = struct{}{}
	}
	for eid := range s.edgesTo[id] {
		touching[eid] = struct{}{}
	}

	removed := make([]*Edge, 0, len(touching))
	for eid := range touching {
		if e, ok := s.edges[eid]; ok {
			removed = append(removed, e)
			s.removeEdgeLocked(e)
		}
	}

	s.unindexNode(node)
	delete(s.nodes, id)
	s.updatedAt = time.Now()
	return node, removed, true
}

// AddEdge inserts an edge into the store.
//
// Endpoint ids must be non-empty but are not required to name live nodes:
// snapshots and the archive can legitimately carry edges whose peer node is
// currently archived. Weight defaults to 1.0 when left at zero.
func (s *Store) AddEdge(edge *Edge) error {
	if edge == nil {
		return ErrInvalidData
	}
	if edge.ID == "" || edge.SourceID == "" || edge.TargetID == "" {
		return ErrInvalidID
	}
	if !edge.Type.Valid() {
		return ErrInvalidType
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.edges[edge.ID]; exists {
		return ErrAlreadyExists
	}

	now := time.Now()
	stored := edge.Clone()
	if stored.Weight == 0 {
		stored.Weight = 1.0
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = stored.CreatedAt
	}

	s.edges[stored.ID] = stored
	s.indexEdge(stored)
	s.updatedAt = now
	return nil
}

// Edge returns a copy of the edge with the given id.
func (s *Store) Edge(id EdgeID) (*Edge, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	edge, ok := s.edges[id]
	if !ok {
		return nil, false
	}
	return edge.Clone(), true
}

// UpdateEdge applies a partial update to an edge and bumps its UpdatedAt.
func (s *Store) UpdateEdge(id EdgeID, patch EdgePatch) (*Edge, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.edges[id]
	if !ok {
		return nil, false
	}

	updated := existing.Clone()
	if patch.Type != nil && patch.Type.Valid() {
		updated.Type = *patch.Type
	}
	if patch.Weight != nil {
		updated.Weight = *patch.Weight
	}
	if patch.Metadata != nil {
		updated.Metadata = make(map[string]any, len(patch.Metadata))
		for k, v := range patch.Metadata {
			updated.Metadata[k] = v
		}
	}
	now := time.Now()
	updated.UpdatedAt = now

	s.removeEdgeFromTypeIndex(existing)
	s.edges[id] = updated
	if s.edgesByType[updated.Type] == nil {
		s.edgesByType[updated.Type] = make(map[EdgeID]struct{})
	}
	s.edgesByType[updated.Type][id] = struct{}{}
	s.updatedAt = now
	return updated.Clone(), true
}

// SetEdgeWeight overwrites an edge's weight directly. This is the narrow
// mutation the Hebbian engine performs on strengthen and decay.
func (s *Store) SetEdgeWeight(id EdgeID, weight float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	edge, ok := s.edges[id]
	if !ok {
		return false
	}
	now := time.Now()
	edge.Weight = weight
	edge.UpdatedAt = now
	s.updatedAt = now
	return true
}

// DeleteEdge removes an edge. Returns false if the id is unknown.
func (s *Store) DeleteEdge(id EdgeID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	edge, ok := s.edges[id]
	if !ok {
		return false
	}
	s.removeEdgeLocked(edge)
	s.updatedAt = time.Now()
	return true
}

// EdgesFrom returns copies of all edges whose source is the given node.
func (s *Store) EdgesFrom(id NodeID) []*Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collectEdges(s.edgesFrom[id])
}

// EdgesTo returns copies of all edges whose target is the given node.
func (s *Store) EdgesTo(id NodeID) []*Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collectEdges(s.edgesTo[id])
}

// QueryByLabel finds nodes whose label contains the given substring,
// case-insensitively, ordered by descending frequency.
//
// Matching is bucket-driven: the label index maps each lowercased label to
// its node ids, and the substring is tested against bucket keys, not
// against individual nodes. Two differently-cased labels that collide after
// lowercasing therefore share one bucket. This mirrors the index-driven
// behaviour the rest of the system was tuned against.
//
// A result of two or more nodes counts as a co-activation: the attached
// reinforcer (if any) strengthens every edge internal to the result set.
func (s *Store) QueryByLabel(substring string) []*Node {
	needle := strings.ToLower(substring)

	s.mu.RLock()
	var hits []*Node
	for label, ids := range s.nodesByLabel {
		if !strings.Contains(label, needle) {
			continue
		}
		for id := range ids {
			if node, ok := s.nodes[id]; ok {
				hits = append(hits, node.Clone())
			}
		}
	}
	s.mu.RUnlock()

	sortNodesByFrequency(hits)
	s.reinforce(hits)
	return hits
}

// QueryByType returns all nodes of the given type, ordered by descending
// frequency. Like QueryByLabel, a result set of two or more nodes is
// reported to the attached reinforcer.
func (s *Store) QueryByType(t NodeType) []*Node {
	s.mu.RLock()
	ids := s.nodesByType[t]
	hits := make([]*Node, 0, len(ids))
	for id := range ids {
		if node, ok := s.nodes[id]; ok {
			hits = append(hits, node.Clone())
		}
	}
	s.mu.RUnlock()

	sortNodesByFrequency(hits)
	s.reinforce(hits)
	return hits
}

// QueryEdgesByType returns all edges of the given type.
func (s *Store) QueryEdgesByType(t EdgeType) []*Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collectEdges(s.edgesByType[t])
}

// Nodes returns copies of all nodes. Order is unspecified.
func (s *Store) Nodes() []*Node {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Node, 0, len(s.nodes))
	for _, node := range s.nodes {
		out = append(out, node.Clone())
	}
	return out
}

// Edges returns copies of all edges. Order is unspecified.
func (s *Store) Edges() []*Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Edge, 0, len(s.edges))
	for _, edge := range s.edges {
		out = append(out, edge.Clone())
	}
	return out
}

// NodeCount returns the number of live nodes.
func (s *Store) NodeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes)
}

// EdgeCount returns the number of live edges.
func (s *Store) EdgeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.edges)
}

// Clear drops all nodes, edges and indices, keeping the session identity.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nodes = make(map[NodeID]*Node)
	s.edges = make(map[EdgeID]*Edge)
	s.nodesByLabel = make(map[string]map[NodeID]struct{})
	s.nodesByType = make(map[NodeType]map[NodeID]struct{})
	s.edgesByType = make(map[EdgeType]map[EdgeID]struct{})
	s.edgesFrom = make(map[NodeID]map[EdgeID]struct{})
	s.edgesTo = make(map[NodeID]map[EdgeID]struct{})
	s.updatedAt = time.Now()
}

// reinforce reports a query result to the attached reinforcer. Called
// outside the store's lock: the engine re-enters the store through its
// public write methods.
func (s *Store) reinforce(hits []*Node) {
	s.mu.RLock()
	r := s.reinforcer
	s.mu.RUnlock()

	if r == nil || len(hits) < 2 {
		return
	}
	ids := make([]NodeID, len(hits))
	for i, n := range hits {
		ids[i] = n.ID
	}
	r.StrengthenCoActivated(ids)
}

func (s *Store) collectEdges(ids map[EdgeID]struct{}) []*Edge {
	out := make([]*Edge, 0, len(ids))
	for id := range ids {
		if edge, ok := s.edges[id]; ok {
			out = append(out, edge.Clone())
		}
	}
	return out
}

func (s *Store) indexNode(node *Node) {
	label := strings.ToLower(node.Label)
	if s.nodesByLabel[label] == nil {
		s.nodesByLabel[label] = make(map[NodeID]struct{})
	}
	s.nodesByLabel[label][node.ID] = struct{}{}

	if s.nodesByType[node.Type] == nil {
		s.nodesByType[node.Type] = make(map[NodeID]struct{})
	}
	s.nodesByType[node.Type][node.ID] = struct{}{}
}

func (s *Store) unindexNode(node *Node) {
	label := strings.ToLower(node.Label)
	if bucket := s.nodesByLabel[label]; bucket != nil {
		delete(bucket, node.ID)
		if len(bucket) == 0 {
			delete(s.nodesByLabel, label)
		}
	}
	if bucket := s.nodesByType[node.Type]; bucket != nil {
		delete(bucket, node.ID)
		if len(bucket) == 0 {
			delete(s.nodesByType, node.Type)
		}
	}
}

func (s *Store) indexEdge(edge *Edge) {
	if s.edgesFrom[edge.SourceID] == nil {
		s.edgesFrom[edge.SourceID] = make(map[EdgeID]struct{})
	}
	s.edgesFrom[edge.SourceID][edge.ID] = struct{}{}

	if s.edgesTo[edge.TargetID] == nil {
		s.edgesTo[edge.TargetID] = make(map[EdgeID]struct{})
	}
	s.edgesTo[edge.TargetID][edge.ID] = struct{}{}

	if s.edgesByType[edge.Type] == nil {
		s.edgesByType[edge.Type] = make(map[EdgeID]struct{})
	}
	s.edgesByType[edge.Type][edge.ID] = struct{}{}
}

func (s *Store) removeEdgeFromTypeIndex(edge *Edge) {
	if bucket := s.edgesByType[edge.Type]; bucket != nil {
		delete(bucket, edge.ID)
		if len(bucket) == 0 {
			delete(s.edgesByType, edge.Type)
		}
	}
}

// removeEdgeLocked removes an edge and its index entries. Caller holds the
// write lock.
func (s *Store) removeEdgeLocked(edge *Edge) {
	if bucket := s.edgesFrom[edge.SourceID]; bucket != nil {
		delete(bucket, edge.ID)
		if len(bucket) == 0 {
			delete(s.edgesFrom, edge.SourceID)
		}
	}
	if bucket := s.edgesTo[edge.TargetID]; bucket != nil {
		delete(bucket, edge.ID)
		if len(bucket) == 0 {
			delete(s.edgesTo, edge.TargetID)
		}
	}
	s.removeEdgeFromTypeIndex(edge)
	delete(s.edges, edge.ID)
}

// sortNodesByFrequency orders nodes by descending frequency with a
// tie-break on id so query results are deterministic.
func sortNodesByFrequency(nodes []*Node) {
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].Frequency != nodes[j].Frequency {
			return nodes[i].Frequency > nodes[j].Frequency
		}
		return nodes[i].ID < nodes[j].ID
	})
}

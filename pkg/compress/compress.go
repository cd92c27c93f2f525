// Package compress implements importance-scored archival for the memory
// graph. Under context-size pressure, nodes are ranked by a composite
// importance score (frequency, connectivity, type, recency) and the least
// important ones are relocated — reversibly — into an archive alongside
// every edge that touches them.
//
// Archival never deletes data. The archive is a holding area outside the
// active working set; RestoreNodes moves records straight back.
//
// Size estimation here is a relative cost signal only: it is deterministic
// and roughly proportional to serialized size, but it is not required to
// match actual storage bytes.
package compress

import (
	"encoding/json"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/orneryd/synapsedb/pkg/graph"
)

// Fixed per-record overheads for size estimation: id/type/timestamp fields
// and map bookkeeping, approximated once instead of serialized per call.
const (
	nodeOverheadBytes = 96
	edgeOverheadBytes = 80
)

// DefaultMaxContextBytes approximates a 128k-token context window at four
// bytes per token.
const DefaultMaxContextBytes = 512_000

// staleAge is how old a node must be before low frequency halves its
// importance score.
const staleAge = 24 * time.Hour

// Store is the narrow graph-store contract the engine consumes for moving
// records in and out of the archive.
type Store interface {
	RemoveNodeCascade(id graph.NodeID) (*graph.Node, []*graph.Edge, bool)
	AddNode(*graph.Node) error
	AddEdge(*graph.Edge) error
}

// Config holds compression settings.
type Config struct {
	// MaxContextBytes is the size against which context usage is
	// measured. Default DefaultMaxContextBytes.
	MaxContextBytes int64
}

// DefaultConfig returns the default compression settings.
func DefaultConfig() *Config {
	return &Config{MaxContextBytes: DefaultMaxContextBytes}
}

// Stats reports archive contents.
type Stats struct {
	Nodes int `json:"nodes"`
	Edges int `json:"edges"`
}

// Engine scores node importance and owns the archive for one session.
type Engine struct {
	store  Store
	config *Config

	mu            sync.Mutex
	archivedNodes map[graph.NodeID]*graph.Node
	archivedEdges map[graph.EdgeID]*graph.Edge
}

// New creates an Engine over the given store. A nil config uses defaults.
func New(store Store, config *Config) *Engine {
	if config == nil {
		config = DefaultConfig()
	}
	return &Engine{
		store:         store,
		config:        config,
		archivedNodes: make(map[graph.NodeID]*graph.Node),
		archivedEdges: make(map[graph.EdgeID]*graph.Edge),
	}
}

// EstimateNodeSize approximates a node's serialized size in bytes from its
// label, description and metadata. Deterministic for identical input.
func EstimateNodeSize(node *graph.Node) int {
	if node == nil {
		return 0
	}
	size := nodeOverheadBytes + len(node.ID) + len(node.Label) + len(node.Description)
	if node.Metadata != nil {
		if data, err := json.Marshal(node.Metadata); err == nil {
			size += len(data)
		}
	}
	return size
}

// EstimateEdgeSize approximates an edge's serialized size in bytes.
func EstimateEdgeSize(edge *graph.Edge) int {
	if edge == nil {
		return 0
	}
	size := edgeOverheadBytes + len(edge.ID) + len(edge.SourceID) + len(edge.TargetID)
	if edge.Metadata != nil {
		if data, err := json.Marshal(edge.Metadata); err == nil {
			size += len(data)
		}
	}
	return size
}

// EstimateGraphSize sums the size estimates of all given records.
func EstimateGraphSize(nodes []*graph.Node, edges []*graph.Edge) int64 {
	var total int64
	for _, n := range nodes {
		total += int64(EstimateNodeSize(n))
	}
	for _, e := range edges {
		total += int64(EstimateEdgeSize(e))
	}
	return total
}

// ContextUsage returns sizeBytes as a fraction of the configured context
// budget, clamped to [0, 1].
func (e *Engine) ContextUsage(sizeBytes int64) float64 {
	if e.config.MaxContextBytes <= 0 {
		return 1
	}
	return math.Min(float64(sizeBytes)/float64(e.config.MaxContextBytes), 1)
}

// IdentifyArchiveCandidates ranks nodes by composite importance and returns
// the ids of the lowest-scoring ceil(len(nodes) × targetReduction),
// worst-first — the cheapest nodes to evict.
//
// The score per node:
//   - baseline: frequency
//   - +2 per connected edge (in + out)
//   - ERROR nodes: −5, floor-clamped to 0.1 (cheap to archive once corrected)
//   - nodes older than 24h with frequency < 3: ×0.5
//
// The result is an LFU/LRU hybrid weighted by graph connectivity: isolated,
// stale, rarely-touched nodes go first; well-connected hubs go last.
func IdentifyArchiveCandidates(nodes []*graph.Node, edges []*graph.Edge, targetReduction float64) []graph.NodeID {
	if len(nodes) == 0 || targetReduction <= 0 {
		return nil
	}

	degree := make(map[graph.NodeID]int, len(nodes))
	for _, edge := range edges {
		degree[edge.SourceID]++
		degree[edge.TargetID]++
	}

	type scored struct {
		id    graph.NodeID
		score float64
	}
	now := time.Now()
	ranked := make([]scored, 0, len(nodes))
	for _, node := range nodes {
		score := float64(node.Frequency) + 2*float64(degree[node.ID])
		if node.Type == graph.NodeError {
			score -= 5
			if score < 0.1 {
				score = 0.1
			}
		}
		if now.Sub(node.CreatedAt) > staleAge && node.Frequency < 3 {
			score *= 0.5
		}
		ranked = append(ranked, scored{id: node.ID, score: score})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score < ranked[j].score
		}
		return ranked[i].id < ranked[j].id
	})

	want := int(math.Ceil(float64(len(nodes)) * targetReduction))
	if want > len(ranked) {
		want = len(ranked)
	}

	ids := make([]graph.NodeID, want)
	for i := 0; i < want; i++ {
		ids[i] = ranked[i].id
	}
	return ids
}

// ArchiveNodes relocates the named nodes and every edge touching them from
// the store into the archive. Unknown ids are skipped. Returns the number
// of nodes and edges archived.
func (e *Engine) ArchiveNodes(ids []graph.NodeID) (int, int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	nodesMoved, edgesMoved := 0, 0
	for _, id := range ids {
		node, edges, ok := e.store.RemoveNodeCascade(id)
		if !ok {
			continue
		}
		e.archivedNodes[id] = node
		nodesMoved++
		for _, edge := range edges {
			e.archivedEdges[edge.ID] = edge
			edgesMoved++
		}
	}
	return nodesMoved, edgesMoved
}

// RestoreNodes moves the named nodes back into the store's working set,
// along with every archived edge touching them. Ids not present in the
// archive are skipped. Returns the number of nodes and edges restored.
//
// Restored edges may reference a peer that is still archived; the store
// accepts such edges, and restoring the peer later does not duplicate them.
func (e *Engine) RestoreNodes(ids []graph.NodeID) (int, int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	nodesMoved, edgesMoved := 0, 0
	for _, id := range ids {
		node, ok := e.archivedNodes[id]
		if !ok {
			continue
		}
		if err := e.store.AddNode(node); err != nil {
			return nodesMoved, edgesMoved, err
		}
		delete(e.archivedNodes, id)
		nodesMoved++

		for edgeID, edge := range e.archivedEdges {
			if edge.SourceID != id && edge.TargetID != id {
				continue
			}
			if err := e.store.AddEdge(edge); err != nil {
				return nodesMoved, edgesMoved, err
			}
			delete(e.archivedEdges, edgeID)
			edgesMoved++
		}
	}
	return nodesMoved, edgesMoved, nil
}

// ArchiveStats returns the current archive contents.
func (e *Engine) ArchiveStats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Stats{Nodes: len(e.archivedNodes), Edges: len(e.archivedEdges)}
}

// Package hebbian implements usage-driven edge weight dynamics for the
// memory graph: edges between co-retrieved nodes are strengthened, every
// edge decays a little each maintenance cycle, and edges whose weight falls
// below a threshold are pruned.
//
// The rule is the classic Hebbian one — neurons that fire together wire
// together — applied to RELATES-style graph edges. Strengthening is capped
// at a maximum weight, decay is multiplicative, and pruning is the eviction
// half of the mechanism.
//
// The engine depends only on a narrow edge-level view of the graph store,
// so it can be unit-tested against a minimal fake.
//
// ELI12:
//
// Imagine trails in a forest. Every time two places are visited on the same
// walk, the path between them gets stomped a bit flatter (strengthen). Rain
// slowly washes every path out (decay). A path nobody has used in ages
// disappears back into the undergrowth (prune).
package hebbian

import (
	"math"

	"github.com/orneryd/synapsedb/pkg/graph"
)

// Store is the narrow graph-store contract the engine consumes.
type Store interface {
	Edge(id graph.EdgeID) (*graph.Edge, bool)
	Edges() []*graph.Edge
	EdgesFrom(id graph.NodeID) []*graph.Edge
	SetEdgeWeight(id graph.EdgeID, weight float64) bool
	DeleteEdge(id graph.EdgeID) bool
}

// Config holds the weight dynamics parameters.
type Config struct {
	// Strength is added to an edge's weight on each strengthen. Default 0.1.
	Strength float64

	// DecayRate multiplies every edge weight once per Decay call.
	// Default 0.99.
	DecayRate float64

	// PruneThreshold is the weight below which Prune deletes an edge
	// (strictly less-than). Default 0.05.
	PruneThreshold float64

	// MaxWeight caps strengthening. Default 5.0.
	MaxWeight float64
}

// DefaultConfig returns the default weight dynamics parameters.
func DefaultConfig() *Config {
	return &Config{
		Strength:       0.1,
		DecayRate:      0.99,
		PruneThreshold: 0.05,
		MaxWeight:      5.0,
	}
}

// Engine applies Hebbian strengthening, decay and pruning to a store's
// edges. It satisfies graph.Reinforcer, so attaching it to a Store makes
// every multi-node query result reinforce its internal connectivity.
type Engine struct {
	store  Store
	config *Config
}

// New creates an Engine over the given store. A nil config uses defaults.
func New(store Store, config *Config) *Engine {
	if config == nil {
		config = DefaultConfig()
	}
	return &Engine{store: store, config: config}
}

// Strengthen bumps a single edge's weight by the configured strength,
// capped at MaxWeight. A weight of zero is treated as the 1.0 default
// baseline before the bump. Unknown edge ids are a silent no-op.
//
// Strengthening is monotonically non-decreasing and idempotent at the
// ceiling: once an edge sits at MaxWeight, further calls leave it there.
func (e *Engine) Strengthen(id graph.EdgeID) (float64, bool) {
	edge, ok := e.store.Edge(id)
	if !ok {
		return 0, false
	}

	weight := edge.Weight
	if weight == 0 {
		weight = 1.0
	}
	weight = math.Min(weight+e.config.Strength, e.config.MaxWeight)
	e.store.SetEdgeWeight(id, weight)
	return weight, true
}

// StrengthenCoActivated strengthens, once each, every edge whose source
// AND target both belong to the given node ids. This is how a query's
// result set reinforces its own internal connectivity. Fewer than two ids
// is a no-op. Returns the number of edges strengthened.
func (e *Engine) StrengthenCoActivated(ids []graph.NodeID) int {
	if len(ids) < 2 {
		return 0
	}

	members := make(map[graph.NodeID]struct{}, len(ids))
	for _, id := range ids {
		members[id] = struct{}{}
	}

	seen := make(map[graph.EdgeID]struct{})
	count := 0
	for id := range members {
		for _, edge := range e.store.EdgesFrom(id) {
			if _, done := seen[edge.ID]; done {
				continue
			}
			if _, ok := members[edge.TargetID]; !ok {
				continue
			}
			seen[edge.ID] = struct{}{}
			if _, ok := e.Strengthen(edge.ID); ok {
				count++
			}
		}
	}
	return count
}

// Decay multiplies every edge's weight by the decay rate, treating a zero
// weight as the 1.0 baseline first. Returns the number of edges touched.
// An empty graph is a normal zero result, never an error.
func (e *Engine) Decay() int {
	count := 0
	for _, edge := range e.store.Edges() {
		weight := edge.Weight
		if weight == 0 {
			weight = 1.0
		}
		e.store.SetEdgeWeight(edge.ID, weight*e.config.DecayRate)
		count++
	}
	return count
}

// Prune deletes every edge whose weight is strictly below the threshold.
// An edge sitting exactly at the threshold survives. The optional argument
// overrides the configured PruneThreshold. Returns the number deleted.
func (e *Engine) Prune(minWeight ...float64) int {
	threshold := e.config.PruneThreshold
	if len(minWeight) > 0 {
		threshold = minWeight[0]
	}

	count := 0
	for _, edge := range e.store.Edges() {
		if edge.Weight < threshold {
			if e.store.DeleteEdge(edge.ID) {
				count++
			}
		}
	}
	return count
}

// Package synapse implements retroactive linking: when a new node enters
// the graph, it is scored against the entire historical node population and
// wired to its semantic neighbours with RELATES edges.
//
// Two scoring modes are supported. The keyword mode tokenizes each node's
// label and description and compares token sets with Jaccard similarity.
// The embedding mode asks an external provider for one vector per node and
// compares with cosine similarity, falling back to the keyword mode when no
// provider is configured.
//
// The linker depends only on a two-method view of the graph store, so it
// can be unit-tested against a minimal fake.
package synapse

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/orneryd/synapsedb/pkg/embed"
	"github.com/orneryd/synapsedb/pkg/graph"
	"github.com/orneryd/synapsedb/pkg/text"
)

// Store is the narrow graph-store contract the linker consumes.
type Store interface {
	Nodes() []*graph.Node
	AddEdge(*graph.Edge) error
}

// Config holds linker settings.
type Config struct {
	// Threshold is the minimum similarity score a historical node must
	// reach to be linked. Default 0.72.
	Threshold float64

	// MaxConnections caps how many edges a single new node may fan out
	// to. Default 20.
	MaxConnections int

	// Embedder is the optional external embedding provider. Nil means
	// the embedding path falls back to keyword similarity.
	Embedder embed.Embedder
}

// DefaultConfig returns the default linker settings.
func DefaultConfig() *Config {
	return &Config{
		Threshold:      0.72,
		MaxConnections: 20,
	}
}

// Linker creates similarity edges between new and historical nodes.
type Linker struct {
	store  Store
	config *Config
}

// New creates a Linker over the given store. A nil config uses defaults.
func New(store Store, config *Config) *Linker {
	if config == nil {
		config = DefaultConfig()
	}
	return &Linker{store: store, config: config}
}

// candidate pairs a historical node with its similarity score.
type candidate struct {
	id    graph.NodeID
	score float64
}

// LinkRetroactively scans every other node in the store, scores it against
// the new node with Jaccard similarity over tokenized label+description,
// and creates a RELATES edge (new node → historical node) for each of the
// top matches at or above the threshold.
//
// Created edges carry weight = score and metadata
// {synapse: true, similarity: score, mode: "keyword"}.
//
// An empty token set on the new node short-circuits to no edges, and zero
// eligible candidates is a normal empty result — never an error.
func (l *Linker) LinkRetroactively(node *graph.Node) ([]*graph.Edge, error) {
	if node == nil {
		return nil, nil
	}

	newTokens := text.Tokenize(node.Label + " " + node.Description)
	if len(newTokens) == 0 {
		return nil, nil
	}

	var candidates []candidate
	for _, other := range l.store.Nodes() {
		if other.ID == node.ID {
			continue
		}
		score := text.Jaccard(newTokens, text.Tokenize(other.Label+" "+other.Description))
		if score >= l.config.Threshold {
			candidates = append(candidates, candidate{id: other.ID, score: score})
		}
	}

	return l.wire(node, candidates, "keyword")
}

// LinkRetroactivelyEmbedding runs the same candidate selection as
// LinkRetroactively but scores with cosine similarity between provider
// embeddings. One embedding request is issued per node, all concurrently,
// and awaited as a batch before scoring; a provider failure is returned to
// the caller, never swallowed.
//
// With no embedding provider configured this falls back verbatim to the
// keyword path.
func (l *Linker) LinkRetroactivelyEmbedding(ctx context.Context, node *graph.Node) ([]*graph.Edge, error) {
	if l.config.Embedder == nil {
		return l.LinkRetroactively(node)
	}
	if node == nil {
		return nil, nil
	}

	others := make([]*graph.Node, 0)
	for _, other := range l.store.Nodes() {
		if other.ID != node.ID {
			others = append(others, other)
		}
	}

	// One request per node, issued concurrently, awaited as a batch.
	vectors := make([][]float32, len(others)+1)
	errs := make([]error, len(others)+1)
	var wg sync.WaitGroup
	embedAt := func(i int, n *graph.Node) {
		defer wg.Done()
		vectors[i], errs[i] = l.config.Embedder.Embed(ctx, n.Label+" "+n.Description)
	}

	wg.Add(len(others) + 1)
	go embedAt(0, node)
	for i, other := range others {
		go embedAt(i+1, other)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("embedding candidates: %w", err)
		}
	}

	newVec := vectors[0]
	var candidates []candidate
	for i, other := range others {
		score := text.Cosine(newVec, vectors[i+1])
		if score >= l.config.Threshold {
			candidates = append(candidates, candidate{id: other.ID, score: score})
		}
	}

	return l.wire(node, candidates, "embedding")
}

// wire sorts candidates best-first, truncates to MaxConnections and
// materializes one RELATES edge per survivor. Edge direction is always
// new node → historical node.
func (l *Linker) wire(node *graph.Node, candidates []candidate, mode string) ([]*graph.Edge, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].id < candidates[j].id
	})
	if len(candidates) > l.config.MaxConnections {
		candidates = candidates[:l.config.MaxConnections]
	}

	edges := make([]*graph.Edge, 0, len(candidates))
	for _, cand := range candidates {
		edge := &graph.Edge{
			ID:       graph.EdgeID("syn-" + uuid.NewString()),
			SourceID: node.ID,
			TargetID: cand.id,
			Type:     graph.EdgeRelates,
			Weight:   cand.score,
			Metadata: map[string]any{
				"synapse":    true,
				"similarity": cand.score,
				"mode":       mode,
			},
		}
		if err := l.store.AddEdge(edge); err != nil {
			return edges, fmt.Errorf("linking %s to %s: %w", node.ID, cand.id, err)
		}
		edges = append(edges, edge)
	}
	return edges, nil
}

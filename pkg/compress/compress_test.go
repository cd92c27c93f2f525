package compress

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/synapsedb/pkg/graph"
)

func node(id graph.NodeID, t graph.NodeType, freq int64) *graph.Node {
	return &graph.Node{ID: id, Type: t, Label: string(id), Frequency: freq, CreatedAt: time.Now()}
}

func edge(id graph.EdgeID, source, target graph.NodeID) *graph.Edge {
	return &graph.Edge{ID: id, SourceID: source, TargetID: target, Type: graph.EdgeRelates, Weight: 1.0}
}

func TestEstimateSizes(t *testing.T) {
	t.Run("deterministic for identical input", func(t *testing.T) {
		n := &graph.Node{ID: "n1", Type: graph.NodeConcept, Label: "label",
			Description: "desc", Metadata: map[string]any{"k": "v"}}
		assert.Equal(t, EstimateNodeSize(n), EstimateNodeSize(n))
	})

	t.Run("grows with content", func(t *testing.T) {
		small := &graph.Node{ID: "n1", Type: graph.NodeConcept, Label: "x"}
		big := &graph.Node{ID: "n1", Type: graph.NodeConcept, Label: "x",
			Description: "a considerably longer description field"}
		assert.Greater(t, EstimateNodeSize(big), EstimateNodeSize(small))
	})

	t.Run("nil records cost nothing", func(t *testing.T) {
		assert.Zero(t, EstimateNodeSize(nil))
		assert.Zero(t, EstimateEdgeSize(nil))
	})

	t.Run("graph size sums nodes and edges", func(t *testing.T) {
		nodes := []*graph.Node{node("a", graph.NodeConcept, 1)}
		edges := []*graph.Edge{edge("e1", "a", "b")}
		total := EstimateGraphSize(nodes, edges)
		assert.Equal(t, int64(EstimateNodeSize(nodes[0])+EstimateEdgeSize(edges[0])), total)
	})
}

func TestContextUsage(t *testing.T) {
	engine := New(graph.NewStore("chat"), &Config{MaxContextBytes: 1000})

	assert.Equal(t, 0.5, engine.ContextUsage(500))
	assert.Equal(t, 1.0, engine.ContextUsage(2000), "clamped at 1")
	assert.Equal(t, 0.0, engine.ContextUsage(0))

	t.Run("non-positive budget reads as full", func(t *testing.T) {
		broken := New(graph.NewStore("chat"), &Config{MaxContextBytes: 0})
		assert.Equal(t, 1.0, broken.ContextUsage(1))
	})
}

func TestIdentifyArchiveCandidates(t *testing.T) {
	t.Run("selects ceil(n*target) lowest scoring", func(t *testing.T) {
		nodes := []*graph.Node{
			node("a", graph.NodeConcept, 1),
			node("b", graph.NodeConcept, 5),
			node("c", graph.NodeConcept, 10),
		}
		ids := IdentifyArchiveCandidates(nodes, nil, 0.33)
		require.Len(t, ids, 1, "ceil(3*0.33) = 1")
		assert.Equal(t, graph.NodeID("a"), ids[0])
	})

	t.Run("connectivity outweighs equal frequency", func(t *testing.T) {
		nodes := []*graph.Node{
			node("connected", graph.NodeConcept, 2),
			node("isolated", graph.NodeConcept, 2),
			node("peer", graph.NodeConcept, 9),
		}
		edges := []*graph.Edge{edge("e1", "connected", "peer")}

		ids := IdentifyArchiveCandidates(nodes, edges, 0.33)
		require.Len(t, ids, 1)
		assert.Equal(t, graph.NodeID("isolated"), ids[0],
			"a connected node is never archived before an isolated node of equal frequency")
	})

	t.Run("error nodes are heavily penalized", func(t *testing.T) {
		nodes := []*graph.Node{
			node("err", graph.NodeError, 4),
			node("concept", graph.NodeConcept, 1),
		}
		ids := IdentifyArchiveCandidates(nodes, nil, 0.5)
		require.Len(t, ids, 1)
		assert.Equal(t, graph.NodeID("err"), ids[0], "ERROR scores 4-5 clamped to 0.1, below the concept's 1")
	})

	t.Run("stale low-frequency nodes score half", func(t *testing.T) {
		stale := node("stale", graph.NodeConcept, 2)
		stale.CreatedAt = time.Now().Add(-48 * time.Hour)
		fresh := node("fresh", graph.NodeConcept, 2)

		ids := IdentifyArchiveCandidates([]*graph.Node{stale, fresh}, nil, 0.5)
		require.Len(t, ids, 1)
		assert.Equal(t, graph.NodeID("stale"), ids[0])
	})

	t.Run("empty input and zero target", func(t *testing.T) {
		assert.Empty(t, IdentifyArchiveCandidates(nil, nil, 0.5))
		assert.Empty(t, IdentifyArchiveCandidates([]*graph.Node{node("a", graph.NodeConcept, 1)}, nil, 0))
	})

	t.Run("target of 1.0 selects everything", func(t *testing.T) {
		nodes := []*graph.Node{
			node("a", graph.NodeConcept, 1),
			node("b", graph.NodeConcept, 2),
		}
		assert.Len(t, IdentifyArchiveCandidates(nodes, nil, 1.0), 2)
	})
}

func buildArchiveFixture(t *testing.T) (*graph.Store, *Engine) {
	t.Helper()
	store := graph.NewStore("chat-archive")
	for _, id := range []graph.NodeID{"a", "b", "c"} {
		require.NoError(t, store.AddNode(node(id, graph.NodeConcept, 1)))
	}
	require.NoError(t, store.AddEdge(edge("ab", "a", "b")))
	require.NoError(t, store.AddEdge(edge("bc", "b", "c")))
	return store, New(store, nil)
}

func TestArchiveAndRestore(t *testing.T) {
	t.Run("archive relocates nodes and touching edges", func(t *testing.T) {
		store, engine := buildArchiveFixture(t)

		nodes, edges := engine.ArchiveNodes([]graph.NodeID{"a"})
		assert.Equal(t, 1, nodes)
		assert.Equal(t, 1, edges)

		_, ok := store.Node("a")
		assert.False(t, ok)
		_, ok = store.Edge("ab")
		assert.False(t, ok)
		_, ok = store.Edge("bc")
		assert.True(t, ok)

		stats := engine.ArchiveStats()
		assert.Equal(t, 1, stats.Nodes)
		assert.Equal(t, 1, stats.Edges)
	})

	t.Run("restore is the exact inverse", func(t *testing.T) {
		store, engine := buildArchiveFixture(t)

		engine.ArchiveNodes([]graph.NodeID{"a"})
		nodes, edges, err := engine.RestoreNodes([]graph.NodeID{"a"})
		require.NoError(t, err)
		assert.Equal(t, 1, nodes)
		assert.Equal(t, 1, edges)

		_, ok := store.Node("a")
		assert.True(t, ok)
		_, ok = store.Edge("ab")
		assert.True(t, ok)

		stats := engine.ArchiveStats()
		assert.Zero(t, stats.Nodes)
		assert.Zero(t, stats.Edges)
	})

	t.Run("restoring both endpoints does not duplicate the shared edge", func(t *testing.T) {
		store, engine := buildArchiveFixture(t)

		engine.ArchiveNodes([]graph.NodeID{"a", "b"})
		nodes, edges, err := engine.RestoreNodes([]graph.NodeID{"a", "b"})
		require.NoError(t, err)
		assert.Equal(t, 2, nodes)
		assert.Equal(t, 2, edges, "ab and bc, each restored once")
		assert.Equal(t, 2, store.EdgeCount())
	})

	t.Run("unknown ids are skipped", func(t *testing.T) {
		_, engine := buildArchiveFixture(t)

		nodes, edges := engine.ArchiveNodes([]graph.NodeID{"ghost"})
		assert.Zero(t, nodes)
		assert.Zero(t, edges)

		nodes, edges, err := engine.RestoreNodes([]graph.NodeID{"ghost"})
		require.NoError(t, err)
		assert.Zero(t, nodes)
		assert.Zero(t, edges)
	})
}

func TestArchiveUnderPressure(t *testing.T) {
	// End to end: a store over budget sheds its least important third.
	store := graph.NewStore("chat-pressure")
	for i := 0; i < 30; i++ {
		n := node(graph.NodeID(fmt.Sprintf("n%02d", i)), graph.NodeConcept, int64(i+1))
		require.NoError(t, store.AddNode(n))
	}

	engine := New(store, &Config{MaxContextBytes: 100})
	size := EstimateGraphSize(store.Nodes(), store.Edges())
	require.Equal(t, 1.0, engine.ContextUsage(size), "fixture is over budget")

	candidates := IdentifyArchiveCandidates(store.Nodes(), store.Edges(), 0.3)
	require.Len(t, candidates, 9)

	archived, _ := engine.ArchiveNodes(candidates)
	assert.Equal(t, 9, archived)
	assert.Equal(t, 21, store.NodeCount())

	// The lowest-frequency nodes went first.
	_, ok := store.Node("n00")
	assert.False(t, ok)
	_, ok = store.Node("n29")
	assert.True(t, ok)
}

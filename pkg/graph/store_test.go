package graph

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestNode(id NodeID, t NodeType, label string) *Node {
	return &Node{ID: id, Type: t, Label: label}
}

func TestAddNode(t *testing.T) {
	t.Run("stores node with defaults applied", func(t *testing.T) {
		store := NewStore("chat-1")

		err := store.AddNode(newTestNode("n1", NodeConcept, "binary search"))
		require.NoError(t, err)

		node, ok := store.Node("n1")
		require.True(t, ok)
		assert.Equal(t, int64(1), node.Frequency, "new nodes start at frequency 1")
		assert.False(t, node.CreatedAt.IsZero())
		assert.False(t, node.UpdatedAt.IsZero())
	})

	t.Run("rejects nil node", func(t *testing.T) {
		store := NewStore("chat-1")
		assert.ErrorIs(t, store.AddNode(nil), ErrInvalidData)
	})

	t.Run("rejects empty id", func(t *testing.T) {
		store := NewStore("chat-1")
		assert.ErrorIs(t, store.AddNode(newTestNode("", NodeConcept, "x")), ErrInvalidID)
	})

	t.Run("rejects unknown type", func(t *testing.T) {
		store := NewStore("chat-1")
		assert.ErrorIs(t, store.AddNode(newTestNode("n1", NodeType("GADGET"), "x")), ErrInvalidType)
	})

	t.Run("rejects duplicate id", func(t *testing.T) {
		store := NewStore("chat-1")
		require.NoError(t, store.AddNode(newTestNode("n1", NodeConcept, "x")))
		assert.ErrorIs(t, store.AddNode(newTestNode("n1", NodeConcept, "y")), ErrAlreadyExists)
	})

	t.Run("returned nodes are copies", func(t *testing.T) {
		store := NewStore("chat-1")
		require.NoError(t, store.AddNode(newTestNode("n1", NodeConcept, "original")))

		node, _ := store.Node("n1")
		node.Label = "mutated"

		again, _ := store.Node("n1")
		assert.Equal(t, "original", again.Label)
	})
}

func TestUpdateNode(t *testing.T) {
	store := NewStore("chat-1")
	require.NoError(t, store.AddNode(newTestNode("n1", NodeConcept, "old label")))

	t.Run("patches only set fields", func(t *testing.T) {
		label := "new label"
		node, ok := store.UpdateNode("n1", NodePatch{Label: &label})
		require.True(t, ok)
		assert.Equal(t, "new label", node.Label)
		assert.Equal(t, NodeConcept, node.Type)
	})

	t.Run("missing node reports false", func(t *testing.T) {
		_, ok := store.UpdateNode("nope", NodePatch{})
		assert.False(t, ok)
	})
}

func TestTouchNode(t *testing.T) {
	store := NewStore("chat-1")
	require.NoError(t, store.AddNode(newTestNode("n1", NodeConcept, "x")))

	freq, ok := store.TouchNode("n1")
	require.True(t, ok)
	assert.Equal(t, int64(2), freq)

	freq, ok = store.TouchNode("n1")
	require.True(t, ok)
	assert.Equal(t, int64(3), freq)

	_, ok = store.TouchNode("missing")
	assert.False(t, ok)
}

func TestAddEdge(t *testing.T) {
	store := NewStore("chat-1")
	require.NoError(t, store.AddNode(newTestNode("a", NodeConcept, "a")))
	require.NoError(t, store.AddNode(newTestNode("b", NodeConcept, "b")))

	t.Run("stores edge and defaults weight to 1.0", func(t *testing.T) {
		err := store.AddEdge(&Edge{ID: "e1", SourceID: "a", TargetID: "b", Type: EdgeRelates})
		require.NoError(t, err)

		edge, ok := store.Edge("e1")
		require.True(t, ok)
		assert.Equal(t, 1.0, edge.Weight)
	})

	t.Run("rejects empty endpoints", func(t *testing.T) {
		err := store.AddEdge(&Edge{ID: "e2", SourceID: "", TargetID: "b", Type: EdgeRelates})
		assert.ErrorIs(t, err, ErrInvalidID)
	})

	t.Run("rejects unknown edge type", func(t *testing.T) {
		err := store.AddEdge(&Edge{ID: "e3", SourceID: "a", TargetID: "b", Type: EdgeType("LIKES")})
		assert.ErrorIs(t, err, ErrInvalidType)
	})

	t.Run("rejects duplicate id", func(t *testing.T) {
		err := store.AddEdge(&Edge{ID: "e1", SourceID: "a", TargetID: "b", Type: EdgeCauses})
		assert.ErrorIs(t, err, ErrAlreadyExists)
	})
}

func TestRemoveNodeCascade(t *testing.T) {
	store := NewStore("chat-1")
	require.NoError(t, store.AddNode(newTestNode("a", NodeConcept, "a")))
	require.NoError(t, store.AddNode(newTestNode("b", NodeConcept, "b")))
	require.NoError(t, store.AddNode(newTestNode("c", NodeConcept, "c")))
	require.NoError(t, store.AddEdge(&Edge{ID: "ab", SourceID: "a", TargetID: "b", Type: EdgeRelates}))
	require.NoError(t, store.AddEdge(&Edge{ID: "ca", SourceID: "c", TargetID: "a", Type: EdgeCauses}))
	require.NoError(t, store.AddEdge(&Edge{ID: "bc", SourceID: "b", TargetID: "c", Type: EdgeRelates}))

	node, edges, ok := store.RemoveNodeCascade("a")
	require.True(t, ok)
	assert.Equal(t, NodeID("a"), node.ID)
	assert.Len(t, edges, 2, "both incoming and outgoing edges cascade")

	_, exists := store.Node("a")
	assert.False(t, exists)
	_, exists = store.Edge("ab")
	assert.False(t, exists)
	_, exists = store.Edge("ca")
	assert.False(t, exists)
	_, exists = store.Edge("bc")
	assert.True(t, exists, "unrelated edges survive")

	t.Run("missing node reports false", func(t *testing.T) {
		_, _, ok := store.RemoveNodeCascade("ghost")
		assert.False(t, ok)
	})
}

func TestQueryByLabel(t *testing.T) {
	store := NewStore("chat-1")
	require.NoError(t, store.AddNode(newTestNode("n1", NodeConcept, "TypeScript generics")))
	require.NoError(t, store.AddNode(newTestNode("n2", NodeConcept, "TypeScript decorators")))
	require.NoError(t, store.AddNode(newTestNode("n3", NodeConcept, "Go interfaces")))

	t.Run("matches case-insensitive substrings", func(t *testing.T) {
		hits := store.QueryByLabel("typescript")
		assert.Len(t, hits, 2)

		hits = store.QueryByLabel("GENERICS")
		require.Len(t, hits, 1)
		assert.Equal(t, NodeID("n1"), hits[0].ID)
	})

	t.Run("no match returns empty", func(t *testing.T) {
		assert.Empty(t, store.QueryByLabel("rust"))
	})

	t.Run("orders by frequency, ties by id", func(t *testing.T) {
		store.TouchNode("n2")
		hits := store.QueryByLabel("typescript")
		require.Len(t, hits, 2)
		assert.Equal(t, NodeID("n2"), hits[0].ID, "higher frequency first")
	})
}

func TestQueryByType(t *testing.T) {
	store := NewStore("chat-1")
	require.NoError(t, store.AddNode(newTestNode("e1", NodeError, "nil deref")))
	require.NoError(t, store.AddNode(newTestNode("c1", NodeConcept, "pointers")))
	require.NoError(t, store.AddNode(newTestNode("e2", NodeError, "index out of range")))

	errors := store.QueryByType(NodeError)
	assert.Len(t, errors, 2)

	assert.Empty(t, store.QueryByType(NodeMilestone))
}

type recordingReinforcer struct {
	calls [][]NodeID
}

func (r *recordingReinforcer) StrengthenCoActivated(ids []NodeID) int {
	r.calls = append(r.calls, ids)
	return len(ids)
}

func TestQueryReinforcement(t *testing.T) {
	t.Run("multi-node results trigger co-activation", func(t *testing.T) {
		store := NewStore("chat-1")
		rec := &recordingReinforcer{}
		store.AttachReinforcer(rec)

		require.NoError(t, store.AddNode(newTestNode("n1", NodeConcept, "go channels")))
		require.NoError(t, store.AddNode(newTestNode("n2", NodeConcept, "go routines")))

		store.QueryByLabel("go")
		require.Len(t, rec.calls, 1)
		assert.Len(t, rec.calls[0], 2)
	})

	t.Run("single-node results do not", func(t *testing.T) {
		store := NewStore("chat-1")
		rec := &recordingReinforcer{}
		store.AttachReinforcer(rec)

		require.NoError(t, store.AddNode(newTestNode("n1", NodeConcept, "go channels")))

		store.QueryByLabel("channels")
		assert.Empty(t, rec.calls)
	})
}

func TestClear(t *testing.T) {
	store := NewStore("chat-1")
	require.NoError(t, store.AddNode(newTestNode("n1", NodeConcept, "x")))
	require.NoError(t, store.AddNode(newTestNode("n2", NodeConcept, "y")))
	require.NoError(t, store.AddEdge(&Edge{ID: "e1", SourceID: "n1", TargetID: "n2", Type: EdgeRelates}))

	store.Clear()
	assert.Zero(t, store.NodeCount())
	assert.Zero(t, store.EdgeCount())
	assert.Empty(t, store.QueryByLabel("x"))
}

func TestSetCompressionThreshold(t *testing.T) {
	store := NewStore("chat-1")
	assert.Equal(t, DefaultCompressionThreshold, store.CompressionThreshold())

	store.SetCompressionThreshold(0.5)
	assert.Equal(t, 0.5, store.CompressionThreshold())

	store.SetCompressionThreshold(1.5)
	assert.Equal(t, 0.5, store.CompressionThreshold(), "out-of-range values are ignored")

	store.SetCompressionThreshold(0)
	assert.Equal(t, 0.5, store.CompressionThreshold())
}

func TestUpdatedAtAdvances(t *testing.T) {
	store := NewStore("chat-1")
	before := store.UpdatedAt()

	time.Sleep(time.Millisecond)
	require.NoError(t, store.AddNode(newTestNode("n1", NodeConcept, "x")))

	assert.True(t, store.UpdatedAt().After(before))
}

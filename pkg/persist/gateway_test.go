package persist

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeID(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain id passes through", "chat-42", "chat-42"},
		{"underscores survive", "a_b_c", "a_b_c"},
		{"path traversal is neutralized", "../../etc/passwd", "______etc_passwd"},
		{"spaces and punctuation", "my chat: #1!", "my_chat___1_"},
		{"unicode collapses", "чат-1", "___-1"},
		{"empty stays empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeID(tt.in))
		})
	}
}

func TestSessionKey(t *testing.T) {
	assert.Equal(t, "graph:chat-42", SessionKey("chat-42"))
	assert.Equal(t, "graph:a_b", SessionKey("a/b"))
}

// gatewayContract exercises the behaviors every backend must share.
func gatewayContract(t *testing.T, open func(t *testing.T) Gateway) {
	ctx := context.Background()

	t.Run("missing key reads as nil, nil", func(t *testing.T) {
		g := open(t)
		defer g.Close()

		value, err := g.Get(ctx, "graph:ghost")
		require.NoError(t, err)
		assert.Nil(t, value)
	})

	t.Run("set then get round-trips", func(t *testing.T) {
		g := open(t)
		defer g.Close()

		require.NoError(t, g.Set(ctx, "graph:c1", []byte(`{"a":1}`)))
		value, err := g.Get(ctx, "graph:c1")
		require.NoError(t, err)
		assert.Equal(t, []byte(`{"a":1}`), value)
	})

	t.Run("set replaces atomically", func(t *testing.T) {
		g := open(t)
		defer g.Close()

		require.NoError(t, g.Set(ctx, "graph:c1", []byte("old")))
		require.NoError(t, g.Set(ctx, "graph:c1", []byte("new")))

		value, err := g.Get(ctx, "graph:c1")
		require.NoError(t, err)
		assert.Equal(t, []byte("new"), value)
	})

	t.Run("delete removes, deleting missing is fine", func(t *testing.T) {
		g := open(t)
		defer g.Close()

		require.NoError(t, g.Set(ctx, "graph:c1", []byte("x")))
		require.NoError(t, g.Delete(ctx, "graph:c1"))

		value, err := g.Get(ctx, "graph:c1")
		require.NoError(t, err)
		assert.Nil(t, value)

		assert.NoError(t, g.Delete(ctx, "graph:c1"))
	})

	t.Run("list filters by prefix", func(t *testing.T) {
		g := open(t)
		defer g.Close()

		require.NoError(t, g.Set(ctx, "graph:a", []byte("1")))
		require.NoError(t, g.Set(ctx, "graph:b", []byte("2")))
		require.NoError(t, g.Set(ctx, "other:c", []byte("3")))

		keys, err := g.List(ctx, KeyPrefix)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"graph:a", "graph:b"}, keys)
	})

	t.Run("clear removes only the prefix", func(t *testing.T) {
		g := open(t)
		defer g.Close()

		require.NoError(t, g.Set(ctx, "graph:a", []byte("1")))
		require.NoError(t, g.Set(ctx, "other:c", []byte("3")))

		require.NoError(t, g.Clear(ctx, KeyPrefix))

		keys, err := g.List(ctx, KeyPrefix)
		require.NoError(t, err)
		assert.Empty(t, keys)

		value, err := g.Get(ctx, "other:c")
		require.NoError(t, err)
		assert.Equal(t, []byte("3"), value)
	})

	t.Run("operations on a closed gateway fail with ErrClosed", func(t *testing.T) {
		g := open(t)
		require.NoError(t, g.Close())

		_, err := g.Get(ctx, "graph:c1")
		assert.ErrorIs(t, err, ErrClosed)
		assert.ErrorIs(t, g.Set(ctx, "graph:c1", []byte("x")), ErrClosed)
		assert.ErrorIs(t, g.Delete(ctx, "graph:c1"), ErrClosed)
		_, err = g.List(ctx, KeyPrefix)
		assert.ErrorIs(t, err, ErrClosed)
	})

	t.Run("close is idempotent", func(t *testing.T) {
		g := open(t)
		require.NoError(t, g.Close())
		assert.NoError(t, g.Close())
	})

	t.Run("rejects traversal keys", func(t *testing.T) {
		g := open(t)
		defer g.Close()

		assert.ErrorIs(t, g.Set(ctx, "../escape", []byte("x")), ErrInvalidKey)
		assert.ErrorIs(t, g.Set(ctx, "", []byte("x")), ErrInvalidKey)
		_, err := g.Get(ctx, "a/b")
		assert.ErrorIs(t, err, ErrInvalidKey)
	})
}

func TestMemoryGateway(t *testing.T) {
	gatewayContract(t, func(t *testing.T) Gateway {
		return NewMemory()
	})

	t.Run("values are copied in and out", func(t *testing.T) {
		g := NewMemory()
		defer g.Close()
		ctx := context.Background()

		payload := []byte("original")
		require.NoError(t, g.Set(ctx, "graph:c1", payload))
		payload[0] = 'X'

		value, err := g.Get(ctx, "graph:c1")
		require.NoError(t, err)
		assert.Equal(t, []byte("original"), value)

		value[0] = 'Y'
		again, err := g.Get(ctx, "graph:c1")
		require.NoError(t, err)
		assert.Equal(t, []byte("original"), again)
	})
}

func TestFileGateway(t *testing.T) {
	gatewayContract(t, func(t *testing.T) Gateway {
		g, err := NewFile(t.TempDir())
		require.NoError(t, err)
		return g
	})

	t.Run("values survive reopening the directory", func(t *testing.T) {
		dir := t.TempDir()
		ctx := context.Background()

		g, err := NewFile(dir)
		require.NoError(t, err)
		require.NoError(t, g.Set(ctx, "graph:c1", []byte("persisted")))
		require.NoError(t, g.Close())

		g2, err := NewFile(dir)
		require.NoError(t, err)
		defer g2.Close()

		value, err := g2.Get(ctx, "graph:c1")
		require.NoError(t, err)
		assert.Equal(t, []byte("persisted"), value)
	})

	t.Run("creates the root directory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "data")
		g, err := NewFile(dir)
		require.NoError(t, err)
		defer g.Close()

		assert.NoError(t, g.Set(context.Background(), "graph:c1", []byte("x")))
	})
}

func TestBadgerGateway(t *testing.T) {
	gatewayContract(t, func(t *testing.T) Gateway {
		g, err := NewBadgerWithOptions(BadgerOptions{InMemory: true})
		require.NoError(t, err)
		return g
	})
}

func TestSQLiteGateway(t *testing.T) {
	gatewayContract(t, func(t *testing.T) Gateway {
		g, err := NewSQLite(filepath.Join(t.TempDir(), "kv.db"))
		require.NoError(t, err)
		return g
	})

	t.Run("values survive reopening the database", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "kv.db")
		ctx := context.Background()

		g, err := NewSQLite(path)
		require.NoError(t, err)
		require.NoError(t, g.Set(ctx, "graph:c1", []byte("persisted")))
		require.NoError(t, g.Close())

		g2, err := NewSQLite(path)
		require.NoError(t, err)
		defer g2.Close()

		value, err := g2.Get(ctx, "graph:c1")
		require.NoError(t, err)
		assert.Equal(t, []byte("persisted"), value)
	})

	t.Run("like wildcards in keys do not widen prefix matches", func(t *testing.T) {
		g, err := NewSQLite(filepath.Join(t.TempDir(), "kv.db"))
		require.NoError(t, err)
		defer g.Close()
		ctx := context.Background()

		require.NoError(t, g.Set(ctx, "graph:abc", []byte("1")))
		keys, err := g.List(ctx, "graph:a_c")
		require.NoError(t, err)
		assert.Empty(t, keys, "underscore in the prefix is literal, not a wildcard")
	})
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "file", cfg.Storage.Backend)
	assert.Equal(t, 0.72, cfg.Linker.Threshold)
	assert.Equal(t, 20, cfg.Linker.MaxConnections)
	assert.Equal(t, "none", cfg.Linker.Embedding.Provider)
	assert.Equal(t, 0.1, cfg.Hebbian.Strength)
	assert.Equal(t, 0.99, cfg.Hebbian.DecayRate)
	assert.Equal(t, 0.05, cfg.Hebbian.PruneThreshold)
	assert.Equal(t, 5.0, cfg.Hebbian.MaxWeight)
	assert.Equal(t, int64(512_000), cfg.Compression.MaxContextBytes)
	assert.Equal(t, 0.8, cfg.Compression.Threshold)
}

func TestLoad(t *testing.T) {
	t.Run("missing file falls back to defaults", func(t *testing.T) {
		cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		require.NoError(t, err)
		assert.Equal(t, Default(), cfg)
	})

	t.Run("yaml overrides defaults, unset fields keep them", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "synapsedb.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
storage:
  backend: sqlite
  path: /tmp/test.db
linker:
  threshold: 0.5
`), 0644))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "sqlite", cfg.Storage.Backend)
		assert.Equal(t, "/tmp/test.db", cfg.Storage.Path)
		assert.Equal(t, 0.5, cfg.Linker.Threshold)
		assert.Equal(t, 20, cfg.Linker.MaxConnections, "untouched fields keep defaults")
		assert.Equal(t, 0.99, cfg.Hebbian.DecayRate)
	})

	t.Run("malformed yaml fails", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "synapsedb.yaml")
		require.NoError(t, os.WriteFile(path, []byte("storage: [not a map"), 0644))

		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("environment overrides the file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "synapsedb.yaml")
		require.NoError(t, os.WriteFile(path, []byte("storage:\n  backend: file\n"), 0644))

		t.Setenv("SYNAPSEDB_STORAGE_BACKEND", "badger")
		t.Setenv("SYNAPSEDB_LINKER_THRESHOLD", "0.9")
		t.Setenv("SYNAPSEDB_EMBEDDING_PROVIDER", "ollama")

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "badger", cfg.Storage.Backend)
		assert.Equal(t, 0.9, cfg.Linker.Threshold)
		assert.Equal(t, "ollama", cfg.Linker.Embedding.Provider)
	})

	t.Run("unparsable numeric env values are ignored", func(t *testing.T) {
		t.Setenv("SYNAPSEDB_LINKER_THRESHOLD", "very high")

		cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		require.NoError(t, err)
		assert.Equal(t, 0.72, cfg.Linker.Threshold)
	})
}

func TestValidate(t *testing.T) {
	valid := func(mutate func(*Config)) error {
		cfg := Default()
		mutate(cfg)
		return cfg.Validate()
	}

	assert.Error(t, valid(func(c *Config) { c.Storage.Backend = "cloud" }))
	assert.Error(t, valid(func(c *Config) { c.Linker.Embedding.Provider = "cohere" }))
	assert.Error(t, valid(func(c *Config) { c.Linker.Embedding.Provider = "openai" }), "openai needs a key")
	assert.NoError(t, valid(func(c *Config) {
		c.Linker.Embedding.Provider = "openai"
		c.Linker.Embedding.APIKey = "sk-test"
	}))
	assert.Error(t, valid(func(c *Config) { c.Linker.Threshold = 1.5 }))
	assert.Error(t, valid(func(c *Config) { c.Linker.MaxConnections = 0 }))
	assert.Error(t, valid(func(c *Config) { c.Hebbian.DecayRate = 0 }))
	assert.Error(t, valid(func(c *Config) { c.Hebbian.DecayRate = 1.1 }))
	assert.Error(t, valid(func(c *Config) { c.Compression.Threshold = 0 }))
}

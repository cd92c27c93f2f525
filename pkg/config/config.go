// Package config loads SynapseDB configuration from a YAML file with
// environment-variable overrides.
//
// Precedence, lowest to highest: built-in defaults, the YAML file, then
// SYNAPSEDB_* environment variables. Defaults are applied at construction
// through Default(); there are no module-level mutable globals.
//
// Example:
//
//	cfg, err := config.Load("synapsedb.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := cfg.Validate(); err != nil {
//		log.Fatal(err)
//	}
//
// Environment Variables:
//   - SYNAPSEDB_STORAGE_BACKEND=memory|file|badger|sqlite
//   - SYNAPSEDB_STORAGE_DIR=./data
//   - SYNAPSEDB_EMBEDDING_PROVIDER=none|ollama|openai
//   - SYNAPSEDB_EMBEDDING_URL=http://localhost:11434
//   - SYNAPSEDB_EMBEDDING_MODEL=mxbai-embed-large
//   - SYNAPSEDB_EMBEDDING_API_KEY=sk-...
//   - SYNAPSEDB_LOG_LEVEL=debug|info|warn|error
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all SynapseDB settings.
type Config struct {
	Storage     StorageConfig     `yaml:"storage"`
	Linker      LinkerConfig      `yaml:"linker"`
	Hebbian     HebbianConfig     `yaml:"hebbian"`
	Compression CompressionConfig `yaml:"compression"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// StorageConfig selects and configures the persistence backend.
type StorageConfig struct {
	// Backend is one of memory, file, badger, sqlite.
	Backend string `yaml:"backend"`
	// Dir is the storage root for the file and badger backends.
	Dir string `yaml:"dir"`
	// Path is the database file for the sqlite backend.
	Path string `yaml:"path"`
}

// LinkerConfig configures retroactive linking.
type LinkerConfig struct {
	Threshold      float64         `yaml:"threshold"`
	MaxConnections int             `yaml:"maxConnections"`
	Embedding      EmbeddingConfig `yaml:"embedding"`
}

// EmbeddingConfig configures the optional embedding provider.
type EmbeddingConfig struct {
	// Provider is one of none, ollama, openai. "none" selects the
	// keyword fallback.
	Provider   string `yaml:"provider"`
	APIURL     string `yaml:"apiUrl"`
	APIKey     string `yaml:"apiKey"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
}

// HebbianConfig configures edge weight dynamics.
type HebbianConfig struct {
	Strength       float64 `yaml:"strength"`
	DecayRate      float64 `yaml:"decayRate"`
	PruneThreshold float64 `yaml:"pruneThreshold"`
	MaxWeight      float64 `yaml:"maxWeight"`
}

// CompressionConfig configures size estimation and archival.
type CompressionConfig struct {
	MaxContextBytes int64   `yaml:"maxContextBytes"`
	Threshold       float64 `yaml:"threshold"`
}

// LoggingConfig configures the CLI/session logger.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			Backend: "file",
			Dir:     "./data",
			Path:    "./data/synapsedb.db",
		},
		Linker: LinkerConfig{
			Threshold:      0.72,
			MaxConnections: 20,
			Embedding: EmbeddingConfig{
				Provider:   "none",
				APIURL:     "http://localhost:11434",
				Model:      "mxbai-embed-large",
				Dimensions: 1024,
			},
		},
		Hebbian: HebbianConfig{
			Strength:       0.1,
			DecayRate:      0.99,
			PruneThreshold: 0.05,
			MaxWeight:      5.0,
		},
		Compression: CompressionConfig{
			MaxContextBytes: 512_000,
			Threshold:       0.8,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads a YAML config file over the defaults and applies environment
// overrides. A missing file is not an error: defaults plus environment
// apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setFloat := func(key string, dst *float64) {
		if v := os.Getenv(key); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				*dst = f
			}
		}
	}

	setString("SYNAPSEDB_STORAGE_BACKEND", &c.Storage.Backend)
	setString("SYNAPSEDB_STORAGE_DIR", &c.Storage.Dir)
	setString("SYNAPSEDB_STORAGE_PATH", &c.Storage.Path)
	setString("SYNAPSEDB_EMBEDDING_PROVIDER", &c.Linker.Embedding.Provider)
	setString("SYNAPSEDB_EMBEDDING_URL", &c.Linker.Embedding.APIURL)
	setString("SYNAPSEDB_EMBEDDING_MODEL", &c.Linker.Embedding.Model)
	setString("SYNAPSEDB_EMBEDDING_API_KEY", &c.Linker.Embedding.APIKey)
	setString("SYNAPSEDB_LOG_LEVEL", &c.Logging.Level)
	setFloat("SYNAPSEDB_LINKER_THRESHOLD", &c.Linker.Threshold)
	setFloat("SYNAPSEDB_COMPRESSION_THRESHOLD", &c.Compression.Threshold)
}

// Validate checks cross-field consistency.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "memory", "file", "badger", "sqlite":
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}

	switch c.Linker.Embedding.Provider {
	case "none", "ollama", "openai":
	default:
		return fmt.Errorf("unknown embedding provider %q", c.Linker.Embedding.Provider)
	}
	if c.Linker.Embedding.Provider == "openai" && c.Linker.Embedding.APIKey == "" {
		return fmt.Errorf("embedding provider openai requires an API key")
	}

	if c.Linker.Threshold < 0 || c.Linker.Threshold > 1 {
		return fmt.Errorf("linker threshold %v outside [0,1]", c.Linker.Threshold)
	}
	if c.Linker.MaxConnections < 1 {
		return fmt.Errorf("linker maxConnections must be positive")
	}
	if c.Hebbian.DecayRate <= 0 || c.Hebbian.DecayRate > 1 {
		return fmt.Errorf("hebbian decayRate %v outside (0,1]", c.Hebbian.DecayRate)
	}
	if c.Compression.Threshold <= 0 || c.Compression.Threshold > 1 {
		return fmt.Errorf("compression threshold %v outside (0,1]", c.Compression.Threshold)
	}
	return nil
}

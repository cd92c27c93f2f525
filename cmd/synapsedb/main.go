// Package main provides the SynapseDB CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/orneryd/synapsedb/pkg/compress"
	"github.com/orneryd/synapsedb/pkg/config"
	"github.com/orneryd/synapsedb/pkg/embed"
	"github.com/orneryd/synapsedb/pkg/graph"
	"github.com/orneryd/synapsedb/pkg/hebbian"
	"github.com/orneryd/synapsedb/pkg/persist"
	"github.com/orneryd/synapsedb/pkg/session"
	"github.com/orneryd/synapsedb/pkg/synapse"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:   "synapsedb",
		Short: "SynapseDB - Session-Scoped Knowledge Graph Memory for LLM Agents",
		Long: `SynapseDB keeps one knowledge graph per chat session and applies
brain-inspired dynamics to it over time.

Features:
  • Retroactive similarity linking (keyword or embedding based)
  • Hebbian edge weights: co-recalled memories wire together
  • Decay and pruning of unused associations
  • Context-budget compression with reversible archival
  • Error suppression with explicit CORRECTION nodes
  • Pluggable persistence: memory, flat file, BadgerDB, SQLite`,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "synapsedb.yaml", "Config file path")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("SynapseDB v%s (%s)\n", version, commit)
		},
	})

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file and create the data directory",
		RunE:  runInit,
	}
	rootCmd.AddCommand(initCmd)

	sessionsCmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage persisted sessions",
	}
	sessionsCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List persisted sessions",
		RunE:  runSessionsList,
	})
	sessionsCmd.AddCommand(&cobra.Command{
		Use:   "stats [chat-id]",
		Short: "Show graph statistics for a session",
		Args:  cobra.ExactArgs(1),
		RunE:  runSessionsStats,
	})
	sessionsCmd.AddCommand(&cobra.Command{
		Use:   "delete [chat-id]",
		Short: "Delete a persisted session",
		Args:  cobra.ExactArgs(1),
		RunE:  runSessionsDelete,
	})
	rootCmd.AddCommand(sessionsCmd)

	rememberCmd := &cobra.Command{
		Use:   "remember [chat-id] [label]",
		Short: "Store a memory node and link it against the session's history",
		Args:  cobra.ExactArgs(2),
		RunE:  runRemember,
	}
	rememberCmd.Flags().String("type", "CONCEPT", "Node type (CONCEPT, DECISION, MILESTONE, ERROR, CORRECTION, CODE_ENTITY)")
	rememberCmd.Flags().String("description", "", "Node description")
	rootCmd.AddCommand(rememberCmd)

	recallCmd := &cobra.Command{
		Use:   "recall [chat-id] [query]",
		Short: "Query a session by label substring",
		Args:  cobra.ExactArgs(2),
		RunE:  runRecall,
	}
	recallCmd.Flags().Bool("json", false, "Print results as JSON")
	rootCmd.AddCommand(recallCmd)

	maintainCmd := &cobra.Command{
		Use:   "maintain [chat-id]",
		Short: "Run one decay/prune/compress cycle on a session",
		Long: `Run offline maintenance on a persisted session: decay every edge
weight, prune associations that fell below the threshold, and archive
the least important nodes when the graph has outgrown its context
budget. Saves the session back when done.`,
		RunE: runMaintain,
	}
	maintainCmd.Flags().Float64("target-reduction", 0.3, "Fraction of nodes to archive when over budget")
	rootCmd.AddCommand(maintainCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads config and builds the manager stack. Callers own Close.
func setup() (*config.Config, *session.Manager, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})
	if level, err := log.ParseLevel(cfg.Logging.Level); err == nil {
		logger.SetLevel(level)
	}

	gateway, err := newGateway(cfg)
	if err != nil {
		return nil, nil, err
	}

	manager := session.NewManager(gateway, &session.Config{
		Linker: &synapse.Config{
			Threshold:      cfg.Linker.Threshold,
			MaxConnections: cfg.Linker.MaxConnections,
			Embedder:       newEmbedder(cfg),
		},
		Hebbian: &hebbian.Config{
			Strength:       cfg.Hebbian.Strength,
			DecayRate:      cfg.Hebbian.DecayRate,
			PruneThreshold: cfg.Hebbian.PruneThreshold,
			MaxWeight:      cfg.Hebbian.MaxWeight,
		},
		Compression: &compress.Config{
			MaxContextBytes: cfg.Compression.MaxContextBytes,
		},
		CompressionThreshold: cfg.Compression.Threshold,
		Logger:               logger,
	})
	return cfg, manager, nil
}

func newGateway(cfg *config.Config) (persist.Gateway, error) {
	switch cfg.Storage.Backend {
	case "memory":
		return persist.NewMemory(), nil
	case "file":
		return persist.NewFile(cfg.Storage.Dir)
	case "badger":
		return persist.NewBadger(cfg.Storage.Dir)
	case "sqlite":
		return persist.NewSQLite(cfg.Storage.Path)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

func newEmbedder(cfg *config.Config) embed.Embedder {
	e := cfg.Linker.Embedding
	switch e.Provider {
	case "ollama":
		c := embed.DefaultOllamaConfig()
		c.APIURL = e.APIURL
		c.Model = e.Model
		if e.Dimensions > 0 {
			c.Dimensions = e.Dimensions
		}
		return embed.NewOllama(c)
	case "openai":
		c := embed.DefaultOpenAIConfig(e.APIKey)
		if e.Model != "" {
			c.Model = e.Model
		}
		if e.Dimensions > 0 {
			c.Dimensions = e.Dimensions
		}
		return embed.NewOpenAI(c)
	default:
		return nil // keyword fallback
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	cfg := config.Default()

	if err := os.MkdirAll(cfg.Storage.Dir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config already exists: %s", configPath)
	}

	configContent := `# SynapseDB Configuration
storage:
  backend: file   # memory | file | badger | sqlite
  dir: ./data
  path: ./data/synapsedb.db

linker:
  threshold: 0.72
  maxConnections: 20
  embedding:
    provider: none   # none | ollama | openai
    apiUrl: http://localhost:11434
    model: mxbai-embed-large
    dimensions: 1024

hebbian:
  strength: 0.1
  decayRate: 0.99
  pruneThreshold: 0.05
  maxWeight: 5.0

compression:
  maxContextBytes: 512000
  threshold: 0.8

logging:
  level: info
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	fmt.Println("✅ SynapseDB initialized")
	fmt.Printf("   Config: %s\n", configPath)
	fmt.Printf("   Data:   %s\n", cfg.Storage.Dir)
	return nil
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	_, manager, err := setup()
	if err != nil {
		return err
	}
	defer manager.Close()

	keys, err := manager.List(context.Background())
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		fmt.Println("No persisted sessions.")
		return nil
	}
	for _, key := range keys {
		fmt.Println(strings.TrimPrefix(key, persist.KeyPrefix))
	}
	return nil
}

func runSessionsStats(cmd *cobra.Command, args []string) error {
	_, manager, err := setup()
	if err != nil {
		return err
	}
	defer manager.Close()

	sess, err := manager.Open(context.Background(), args[0])
	if err != nil {
		return err
	}

	stats := sess.Stats()
	fmt.Printf("Session %s\n", sess.ChatID())
	fmt.Printf("  Nodes:          %d\n", stats.Nodes)
	fmt.Printf("  Edges:          %d\n", stats.Edges)
	fmt.Printf("  Archived nodes: %d\n", stats.ArchivedNodes)
	fmt.Printf("  Archived edges: %d\n", stats.ArchivedEdges)
	fmt.Printf("  Context usage:  %.1f%%\n", stats.ContextUsage*100)
	return nil
}

func runSessionsDelete(cmd *cobra.Command, args []string) error {
	_, manager, err := setup()
	if err != nil {
		return err
	}
	defer manager.Close()

	if err := manager.Delete(context.Background(), args[0]); err != nil {
		return err
	}
	fmt.Printf("🗑  Deleted session %s\n", args[0])
	return nil
}

func runRemember(cmd *cobra.Command, args []string) error {
	chatID, label := args[0], args[1]
	nodeType, _ := cmd.Flags().GetString("type")
	description, _ := cmd.Flags().GetString("description")

	t := graph.NodeType(strings.ToUpper(nodeType))
	if !t.Valid() {
		return fmt.Errorf("invalid node type %q", nodeType)
	}

	_, manager, err := setup()
	if err != nil {
		return err
	}
	defer manager.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	sess, err := manager.Open(ctx, chatID)
	if err != nil {
		return err
	}

	node, links, err := sess.Remember(ctx, t, label, description, nil)
	if err != nil {
		return err
	}
	if err := manager.Save(ctx, sess); err != nil {
		return err
	}

	fmt.Printf("✅ Remembered %s (%s)\n", node.ID, node.Type)
	for _, edge := range links {
		fmt.Printf("   ↳ linked to %s (similarity %.2f)\n", edge.TargetID, edge.Weight)
	}
	return nil
}

func runRecall(cmd *cobra.Command, args []string) error {
	chatID, query := args[0], args[1]
	asJSON, _ := cmd.Flags().GetBool("json")

	_, manager, err := setup()
	if err != nil {
		return err
	}
	defer manager.Close()

	ctx := context.Background()
	sess, err := manager.Open(ctx, chatID)
	if err != nil {
		return err
	}

	hits := sess.Recall(query)

	// Recall bumps frequencies and may strengthen edges; persist that.
	if err := manager.Save(ctx, sess); err != nil {
		return err
	}

	if asJSON {
		return json.NewEncoder(os.Stdout).Encode(hits)
	}
	if len(hits) == 0 {
		fmt.Println("No matches.")
		return nil
	}
	for _, node := range hits {
		fmt.Printf("%s  [%s] %s (freq %d)\n", node.ID, node.Type, node.Label, node.Frequency)
	}
	return nil
}

func runMaintain(cmd *cobra.Command, args []string) error {
	targetReduction, _ := cmd.Flags().GetFloat64("target-reduction")

	_, manager, err := setup()
	if err != nil {
		return err
	}
	defer manager.Close()

	ctx := context.Background()

	var chatIDs []string
	if len(args) > 0 {
		chatIDs = args
	} else {
		keys, err := manager.List(ctx)
		if err != nil {
			return err
		}
		for _, key := range keys {
			chatIDs = append(chatIDs, strings.TrimPrefix(key, persist.KeyPrefix))
		}
	}
	if len(chatIDs) == 0 {
		fmt.Println("No sessions to maintain.")
		return nil
	}

	for _, chatID := range chatIDs {
		sess, err := manager.Open(ctx, chatID)
		if err != nil {
			return err
		}

		decayed, pruned := sess.Maintain()
		archivedNodes, archivedEdges := sess.CompressIfNeeded(targetReduction)

		if err := manager.Save(ctx, sess); err != nil {
			return err
		}
		fmt.Printf("🔄 %s: decayed %d, pruned %d, archived %d nodes / %d edges\n",
			chatID, decayed, pruned, archivedNodes, archivedEdges)
	}
	return nil
}

// Package session wires the graph store, synaptic linker, Hebbian weight
// engine, compression engine and error suppression into one per-chat
// Session, and provides a Manager that moves sessions through the
// persistence gateway.
//
// A Session is the high-level API an agent host talks to:
//
//	manager := session.NewManager(gateway, nil)
//	sess, err := manager.Open(ctx, "chat-42")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	node, links, err := sess.Remember(ctx, graph.NodeConcept,
//		"TypeScript generics", "parameterized types", nil)
//	_ = links // RELATES edges to similar historical nodes
//
//	hits := sess.Recall("generics")
//
//	if err := manager.Save(ctx, sess); err != nil {
//		log.Fatal(err)
//	}
package session

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/orneryd/synapsedb/pkg/compress"
	"github.com/orneryd/synapsedb/pkg/correction"
	"github.com/orneryd/synapsedb/pkg/graph"
	"github.com/orneryd/synapsedb/pkg/hebbian"
	"github.com/orneryd/synapsedb/pkg/synapse"
)

// Config bundles per-subsystem settings for sessions created by a Manager.
// Nil sub-configs fall back to each package's defaults.
type Config struct {
	Linker      *synapse.Config
	Hebbian     *hebbian.Config
	Compression *compress.Config

	// CompressionThreshold is the context-usage fraction above which
	// CompressIfNeeded starts archiving. Zero means the store default.
	CompressionThreshold float64

	// Logger for session lifecycle events. Nil means log.Default().
	Logger *log.Logger
}

// Session is one chat's memory graph plus its attached engines.
type Session struct {
	chatID     string
	store      *graph.Store
	linker     *synapse.Linker
	weights    *hebbian.Engine
	compressor *compress.Engine
	suppressor *correction.Suppressor
	log        *log.Logger
}

// Stats summarizes a session's working set and archive.
type Stats struct {
	Nodes         int     `json:"nodes"`
	Edges         int     `json:"edges"`
	ArchivedNodes int     `json:"archivedNodes"`
	ArchivedEdges int     `json:"archivedEdges"`
	ContextUsage  float64 `json:"contextUsage"`
}

func newSession(store *graph.Store, config *Config) *Session {
	if config == nil {
		config = &Config{}
	}
	logger := config.Logger
	if logger == nil {
		logger = log.Default()
	}
	if config.CompressionThreshold > 0 {
		store.SetCompressionThreshold(config.CompressionThreshold)
	}

	s := &Session{
		chatID:     store.ChatID(),
		store:      store,
		linker:     synapse.New(store, config.Linker),
		weights:    hebbian.New(store, config.Hebbian),
		compressor: compress.New(store, config.Compression),
		suppressor: correction.New(store),
		log:        logger.With("chat", store.ChatID()),
	}
	store.AttachReinforcer(s.weights)
	return s
}

// ChatID returns the session's logical identifier.
func (s *Session) ChatID() string { return s.chatID }

// Store exposes the underlying graph store for direct CRUD.
func (s *Session) Store() *graph.Store { return s.store }

// Weights exposes the Hebbian engine for manual strengthen/decay/prune.
func (s *Session) Weights() *hebbian.Engine { return s.weights }

// Suppressor exposes the error-suppression policy module.
func (s *Session) Suppressor() *correction.Suppressor { return s.suppressor }

// Remember inserts a new memory node and links it retroactively against
// the whole historical population. The embedding path is used when the
// linker has a provider configured, the keyword path otherwise.
//
// Returns the stored node and the RELATES edges that were created.
func (s *Session) Remember(ctx context.Context, t graph.NodeType, label, description string, metadata map[string]any) (*graph.Node, []*graph.Edge, error) {
	node := &graph.Node{
		ID:          graph.NodeID("node-" + uuid.NewString()),
		Type:        t,
		Label:       label,
		Description: description,
		Metadata:    metadata,
	}
	if err := s.store.AddNode(node); err != nil {
		return nil, nil, fmt.Errorf("remembering %q: %w", label, err)
	}

	links, err := s.linker.LinkRetroactivelyEmbedding(ctx, node)
	if err != nil {
		return node, links, fmt.Errorf("linking %q: %w", label, err)
	}

	s.log.Debug("remembered", "node", node.ID, "type", t, "links", len(links))
	return node, links, nil
}

// Recall queries by label substring and touches every hit, so recalled
// memories gain frequency. With the Hebbian engine attached, a multi-node
// result also strengthens its internal edges.
func (s *Session) Recall(query string) []*graph.Node {
	hits := s.store.QueryByLabel(query)
	for _, node := range hits {
		s.store.TouchNode(node.ID)
	}
	return hits
}

// SuppressError marks the ERROR node as suppressed and materializes a
// CORRECTION node plus CORRECTS edge in one step.
func (s *Session) SuppressError(id graph.NodeID, label, description string) (*graph.Node, *graph.Edge, error) {
	if _, err := s.suppressor.Suppress(id); err != nil {
		return nil, nil, err
	}
	node, edge, err := s.suppressor.CreateCorrection(id, label, description)
	if err != nil {
		return nil, nil, err
	}
	s.log.Debug("suppressed error", "error", id, "correction", node.ID)
	return node, edge, nil
}

// Maintain runs one weight-dynamics cycle: decay every edge, then prune
// the ones that fell below the threshold. Returns both counts.
func (s *Session) Maintain() (decayed, pruned int) {
	decayed = s.weights.Decay()
	pruned = s.weights.Prune()
	if pruned > 0 {
		s.log.Debug("maintenance cycle", "decayed", decayed, "pruned", pruned)
	}
	return decayed, pruned
}

// ContextUsage reports the working set's estimated size as a fraction of
// the configured context budget, in [0, 1].
func (s *Session) ContextUsage() float64 {
	size := compress.EstimateGraphSize(s.store.Nodes(), s.store.Edges())
	return s.compressor.ContextUsage(size)
}

// CompressIfNeeded archives the least important targetReduction fraction
// of nodes when context usage has crossed the session's compression
// threshold. Below the threshold it does nothing. Returns the number of
// nodes and edges archived.
func (s *Session) CompressIfNeeded(targetReduction float64) (int, int) {
	usage := s.ContextUsage()
	if usage < s.store.CompressionThreshold() {
		return 0, 0
	}

	candidates := compress.IdentifyArchiveCandidates(s.store.Nodes(), s.store.Edges(), targetReduction)
	nodes, edges := s.compressor.ArchiveNodes(candidates)
	s.log.Info("compressed session", "usage", usage, "archivedNodes", nodes, "archivedEdges", edges)
	return nodes, edges
}

// RestoreArchived moves previously archived nodes (and their edges) back
// into the working set.
func (s *Session) RestoreArchived(ids []graph.NodeID) (int, int, error) {
	return s.compressor.RestoreNodes(ids)
}

// Stats summarizes the session.
func (s *Session) Stats() Stats {
	archive := s.compressor.ArchiveStats()
	return Stats{
		Nodes:         s.store.NodeCount(),
		Edges:         s.store.EdgeCount(),
		ArchivedNodes: archive.Nodes,
		ArchivedEdges: archive.Edges,
		ContextUsage:  s.ContextUsage(),
	}
}

package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/HendryAvila/hoofprint/internal/capture"
	"github.com/HendryAvila/hoofprint/internal/config"
	"github.com/HendryAvila/hoofprint/internal/embed"
	"github.com/HendryAvila/hoofprint/internal/graph"
	"github.com/HendryAvila/hoofprint/internal/graphstore"
	"github.com/HendryAvila/hoofprint/internal/sink"
	"github.com/HendryAvila/hoofprint/internal/vectorindex"
)

// backendOpenTimeout bounds opening the sink backends.
const backendOpenTimeout = 10 * time.Second

// openSinks builds one processor per known sink. A backend that cannot be
// opened yields a disabled processor carrying the reason, so a dead
// Weaviate or Neo4j never blocks capture.
func openSinks(ctx context.Context, cfg *config.Config, logger *slog.Logger) *sink.Registry {
	ctx, cancel := context.WithTimeout(ctx, backendOpenTimeout)
	defer cancel()

	sim, err := openSimilarity(ctx, cfg, logger)
	if err != nil {
		sim = sink.Disabled(capture.SinkSimilarity, err.Error())
	}
	gr, err := openGraph(ctx, cfg, logger)
	if err != nil {
		gr = sink.Disabled(capture.SinkGraph, err.Error())
	}
	return sink.NewRegistry(sim, gr)
}

func openSimilarity(ctx context.Context, cfg *config.Config, logger *slog.Logger) (sink.Processor, error) {
	sc := cfg.Similarity
	if !sc.Enabled {
		return nil, fmt.Errorf("disabled in config")
	}

	var embedder embed.Embedder
	switch sc.Embedder.Provider {
	case config.EmbedderOpenAI:
		e, err := embed.NewOpenAI(sc.Embedder.OpenAI, logger)
		if err != nil {
			return nil, fmt.Errorf("openai embedder: %w", err)
		}
		embedder = e
	default:
		embedder = embed.NewHash(sc.Embedder.HashDimensions)
	}

	var index vectorindex.Index
	switch sc.Backend {
	case config.BackendWeaviate:
		w, err := vectorindex.OpenWeaviate(ctx, sc.Weaviate, logger)
		if err != nil {
			return nil, fmt.Errorf("weaviate: %w", err)
		}
		index = w
	default:
		s, err := vectorindex.OpenSQLite(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("sqlite vector index: %w", err)
		}
		index = s
	}

	proc := sink.NewSimilarity(embedder, index)
	if sc.ExcerptLength > 0 {
		proc.ExcerptLength = sc.ExcerptLength
	}
	logger.Info("similarity sink ready", "backend", sc.Backend, "embedder", embedder.Name(), "dimensions", embedder.Dimensions())
	return proc, nil
}

func openGraph(ctx context.Context, cfg *config.Config, logger *slog.Logger) (sink.Processor, error) {
	gc := cfg.Graph
	if !gc.Enabled {
		return nil, fmt.Errorf("disabled in config")
	}

	var backend graphstore.Backend
	switch gc.Backend {
	case config.BackendNeo4j:
		n, err := graphstore.OpenNeo4j(ctx, gc.Neo4j, logger)
		if err != nil {
			return nil, fmt.Errorf("neo4j: %w", err)
		}
		backend = n
	default:
		s, err := graphstore.OpenSQLite(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("sqlite graph store: %w", err)
		}
		backend = s
	}

	logger.Info("graph sink ready", "backend", gc.Backend)
	return sink.NewGraph(graph.NewExpander(graph.DefaultRules()), backend), nil
}

// -- cmd/backend.go --
package cmd

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/nesthivep/kgml/internal/config"
	"github.com/nesthivep/kgml/internal/knowledgegraph"
	"github.com/nesthivep/kgml/internal/persistence"
)

// openGraph builds a graph store wired to the configured persistence
// backend and loads any previously saved state. The returned closer
// releases backend resources; callers must invoke it even on error paths
// after a successful open.
func openGraph(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*knowledgegraph.Graph, func(), error) {
	closer := func() {}

	var graph *knowledgegraph.Graph
	switch cfg.Graph.Backend {
	case config.BackendMemory:
		graph = knowledgegraph.New(logger)
	case config.BackendFile:
		backend := persistence.NewFileBackend(cfg.Graph.FilePath, logger)
		graph = knowledgegraph.New(logger, knowledgegraph.WithBackend(backend))
	case config.BackendPostgres:
		pool, err := pgxpool.New(ctx, cfg.Graph.Postgres.URL)
		if err != nil {
			return nil, closer, fmt.Errorf("connect to postgres: %w", err)
		}
		backend, err := persistence.NewPostgresBackend(ctx, pool, logger)
		if err != nil {
			pool.Close()
			return nil, closer, err
		}
		closer = pool.Close
		graph = knowledgegraph.New(logger, knowledgegraph.WithBackend(backend))
	default:
		return nil, closer, fmt.Errorf("unknown graph backend %q", cfg.Graph.Backend)
	}

	if cfg.Graph.Backend != config.BackendMemory {
		if err := graph.Load(ctx); err != nil {
			closer()
			return nil, func() {}, fmt.Errorf("load graph: %w", err)
		}
	}
	return graph, closer, nil
}

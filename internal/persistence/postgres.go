package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/nesthivep/kgml/api/schemas"
)

var jsonCodec = jsoniter.ConfigCompatibleWithStandardLibrary

// DBPool abstracts the pgxpool.Pool so tests can substitute a mock.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresBackend persists graph data in two tables, kg_nodes and
// kg_edges, with an explicit position column preserving insertion order.
type PostgresBackend struct {
	pool DBPool
	log  *zap.Logger
}

// NewPostgresBackend verifies the connection and returns the backend.
func NewPostgresBackend(ctx context.Context, pool DBPool, logger *zap.Logger) (*PostgresBackend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &PostgresBackend{pool: pool, log: logger.Named("persistence.postgres")}, nil
}

// Save replaces the stored graph with the given one in a single
// transaction: clear both tables, then insert every node and edge with
// its position.
func (b *PostgresBackend) Save(ctx context.Context, data schemas.GraphData) error {
	tx, err := b.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			b.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	if _, err := tx.Exec(ctx, `DELETE FROM kg_edges;`); err != nil {
		return fmt.Errorf("failed to clear edges: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM kg_nodes;`); err != nil {
		return fmt.Errorf("failed to clear nodes: %w", err)
	}

	const sqlNode = `
        INSERT INTO kg_nodes (uid, type, meta_props, created_at, updated_at, position)
        VALUES ($1, $2, $3, $4, $5, $6);
    `
	for i, n := range data.Nodes {
		props, err := jsonCodec.Marshal(n.MetaProps)
		if err != nil {
			return fmt.Errorf("failed to marshal props for node %s: %w", n.UID, err)
		}
		if _, err := tx.Exec(ctx, sqlNode, n.UID, n.Type, props, n.CreatedAt.UTC(), n.UpdatedAt.UTC(), i); err != nil {
			return fmt.Errorf("failed to insert node %s: %w", n.UID, err)
		}
	}

	const sqlEdge = `
        INSERT INTO kg_edges (source_uid, target_uid, type, meta_props, created_at, updated_at, position)
        VALUES ($1, $2, $3, $4, $5, $6, $7);
    `
	for i, e := range data.Edges {
		props, err := jsonCodec.Marshal(e.MetaProps)
		if err != nil {
			return fmt.Errorf("failed to marshal props for edge %s->%s: %w", e.SourceUID, e.TargetUID, err)
		}
		if _, err := tx.Exec(ctx, sqlEdge, e.SourceUID, e.TargetUID, e.Type, props, e.CreatedAt.UTC(), e.UpdatedAt.UTC(), i); err != nil {
			return fmt.Errorf("failed to insert edge %s->%s: %w", e.SourceUID, e.TargetUID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Load reads the stored graph back in insertion order.
func (b *PostgresBackend) Load(ctx context.Context) (schemas.GraphData, error) {
	var data schemas.GraphData

	nodeRows, err := b.pool.Query(ctx, `
        SELECT uid, type, meta_props, created_at, updated_at
        FROM kg_nodes
        ORDER BY position ASC;
    `)
	if err != nil {
		return schemas.GraphData{}, fmt.Errorf("failed to query nodes: %w", err)
	}
	defer nodeRows.Close()
	for nodeRows.Next() {
		var n schemas.Node
		var props []byte
		if err := nodeRows.Scan(&n.UID, &n.Type, &props, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return schemas.GraphData{}, fmt.Errorf("failed to scan node row: %w", err)
		}
		if len(props) > 0 {
			if err := jsonCodec.Unmarshal(props, &n.MetaProps); err != nil {
				return schemas.GraphData{}, fmt.Errorf("failed to unmarshal props for node %s: %w", n.UID, err)
			}
		}
		if n.MetaProps == nil {
			n.MetaProps = map[string]any{}
		}
		data.Nodes = append(data.Nodes, n)
	}
	if err := nodeRows.Err(); err != nil {
		return schemas.GraphData{}, fmt.Errorf("error during node row iteration: %w", err)
	}

	edgeRows, err := b.pool.Query(ctx, `
        SELECT source_uid, target_uid, type, meta_props, created_at, updated_at
        FROM kg_edges
        ORDER BY position ASC;
    `)
	if err != nil {
		return schemas.GraphData{}, fmt.Errorf("failed to query edges: %w", err)
	}
	defer edgeRows.Close()
	for edgeRows.Next() {
		var e schemas.Edge
		var props []byte
		if err := edgeRows.Scan(&e.SourceUID, &e.TargetUID, &e.Type, &props, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return schemas.GraphData{}, fmt.Errorf("failed to scan edge row: %w", err)
		}
		if len(props) > 0 {
			if err := jsonCodec.Unmarshal(props, &e.MetaProps); err != nil {
				return schemas.GraphData{}, fmt.Errorf("failed to unmarshal props for edge %s->%s: %w", e.SourceUID, e.TargetUID, err)
			}
		}
		if e.MetaProps == nil {
			e.MetaProps = map[string]any{}
		}
		data.Edges = append(data.Edges, e)
	}
	if err := edgeRows.Err(); err != nil {
		return schemas.GraphData{}, fmt.Errorf("error during edge row iteration: %w", err)
	}

	return data, nil
}

// File: internal/persistence/postgres_test.go
package persistence

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nesthivep/kgml/api/schemas"
)

// flexibleSQLMatcher creates a regex that is insensitive to whitespace for more robust SQL mock testing.
func flexibleSQLMatcher(sql string) string {
	trimmed := strings.TrimSpace(sql)
	return regexp.MustCompile(`\s+`).ReplaceAllString(regexp.QuoteMeta(trimmed), `\s+`)
}

const (
	sqlInsertNode = `
        INSERT INTO kg_nodes (uid, type, meta_props, created_at, updated_at, position)
        VALUES ($1, $2, $3, $4, $5, $6);
    `
	sqlInsertEdge = `
        INSERT INTO kg_edges (source_uid, target_uid, type, meta_props, created_at, updated_at, position)
        VALUES ($1, $2, $3, $4, $5, $6, $7);
    `
)

func TestNewPostgresBackend(t *testing.T) {
	t.Run("should return error if ping fails", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		pingErr := errors.New("database unavailable")
		mockPool.ExpectPing().WillReturnError(pingErr)

		_, err = NewPostgresBackend(context.Background(), mockPool, zap.NewNop())
		require.Error(t, err)
		assert.ErrorIs(t, err, pingErr, "Error from ping should be propagated")
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestPostgresBackendSave(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	data := schemas.GraphData{
		Nodes: []schemas.Node{
			{UID: "A", Type: "Task", MetaProps: map[string]any{"status": "open"}, CreatedAt: now, UpdatedAt: now},
			{UID: "B", Type: "Task", MetaProps: map[string]any{}, CreatedAt: now, UpdatedAt: now},
		},
		Edges: []schemas.Edge{
			{SourceUID: "A", TargetUID: "B", Type: "blocks", MetaProps: map[string]any{}, CreatedAt: now, UpdatedAt: now},
		},
	}

	t.Run("should replace the stored graph in one transaction", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		mockPool.ExpectPing()
		backend, err := NewPostgresBackend(ctx, mockPool, zap.NewNop())
		require.NoError(t, err)

		mockPool.ExpectBegin()
		mockPool.ExpectExec(flexibleSQLMatcher(`DELETE FROM kg_edges;`)).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))
		mockPool.ExpectExec(flexibleSQLMatcher(`DELETE FROM kg_nodes;`)).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))

		mockPool.ExpectExec(flexibleSQLMatcher(sqlInsertNode)).
			WithArgs("A", "Task", pgxmock.AnyArg(), now, now, 0).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectExec(flexibleSQLMatcher(sqlInsertNode)).
			WithArgs("B", "Task", pgxmock.AnyArg(), now, now, 1).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectExec(flexibleSQLMatcher(sqlInsertEdge)).
			WithArgs("A", "B", "blocks", pgxmock.AnyArg(), now, now, 0).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectCommit()

		require.NoError(t, backend.Save(ctx, data))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should roll back when an insert fails", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		mockPool.ExpectPing()
		backend, err := NewPostgresBackend(ctx, mockPool, zap.NewNop())
		require.NoError(t, err)

		insertErr := errors.New("constraint violation")
		mockPool.ExpectBegin()
		mockPool.ExpectExec(flexibleSQLMatcher(`DELETE FROM kg_edges;`)).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))
		mockPool.ExpectExec(flexibleSQLMatcher(`DELETE FROM kg_nodes;`)).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))
		mockPool.ExpectExec(flexibleSQLMatcher(sqlInsertNode)).
			WithArgs("A", "Task", pgxmock.AnyArg(), now, now, 0).
			WillReturnError(insertErr)
		mockPool.ExpectRollback()

		err = backend.Save(ctx, data)
		require.Error(t, err)
		assert.ErrorIs(t, err, insertErr)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestPostgresBackendLoad(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("should read nodes and edges in position order", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		mockPool.ExpectPing()
		backend, err := NewPostgresBackend(ctx, mockPool, zap.NewNop())
		require.NoError(t, err)

		nodeRows := pgxmock.NewRows([]string{"uid", "type", "meta_props", "created_at", "updated_at"}).
			AddRow("A", "Task", []byte(`{"status":"open"}`), now, now).
			AddRow("B", "Task", []byte(`{}`), now, now)
		mockPool.ExpectQuery(flexibleSQLMatcher(`SELECT uid, type, meta_props, created_at, updated_at FROM kg_nodes ORDER BY position ASC;`)).
			WillReturnRows(nodeRows)

		edgeRows := pgxmock.NewRows([]string{"source_uid", "target_uid", "type", "meta_props", "created_at", "updated_at"}).
			AddRow("A", "B", "blocks", []byte(`{}`), now, now)
		mockPool.ExpectQuery(flexibleSQLMatcher(`SELECT source_uid, target_uid, type, meta_props, created_at, updated_at FROM kg_edges ORDER BY position ASC;`)).
			WillReturnRows(edgeRows)

		data, err := backend.Load(ctx)
		require.NoError(t, err)
		require.Len(t, data.Nodes, 2)
		require.Len(t, data.Edges, 1)

		assert.Equal(t, "A", data.Nodes[0].UID)
		assert.Equal(t, "open", data.Nodes[0].MetaProps["status"])
		assert.NotNil(t, data.Nodes[1].MetaProps, "empty props decode to an empty map")
		assert.Equal(t, "blocks", data.Edges[0].Type)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should propagate query errors", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		mockPool.ExpectPing()
		backend, err := NewPostgresBackend(ctx, mockPool, zap.NewNop())
		require.NoError(t, err)

		queryErr := errors.New("connection reset")
		mockPool.ExpectQuery("SELECT").WillReturnError(queryErr)

		_, err = backend.Load(ctx)
		require.Error(t, err)
		assert.ErrorIs(t, err, queryErr)
	})
}

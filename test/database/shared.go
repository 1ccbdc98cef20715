package database

import (
	"context"
	stdsql "database/sql"
	"fmt"
	"testing"

	"github.com/navigo-fleet/pipeline/pkg/store"
	"github.com/navigo-fleet/pipeline/test/util"
	"github.com/stretchr/testify/require"
)

// SharedTestDB creates a single PostgreSQL schema that can be shared by
// multiple test replicas. Each replica gets its own *store.Store (and
// connection pool) via NewStore, but all pools point at the same schema —
// enabling cross-replica tests that exercise PostgreSQL NOTIFY/LISTEN
// delivery (pkg/bus.Subscriber).
type SharedTestDB struct {
	connStrWithSchema string
	baseConnStr       string
	schemaName        string
}

// NewSharedTestDB creates a shared test schema, runs migrations once, and
// registers t.Cleanup to drop the schema. Call NewStore to create
// independent stores for each replica.
func NewSharedTestDB(t *testing.T) *SharedTestDB {
	t.Helper()
	ctx := context.Background()

	baseConnStr := util.GetBaseConnectionString(t)
	schemaName := util.GenerateSchemaName(t)

	db, err := stdsql.Open("pgx", baseConnStr)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, fmt.Sprintf("CREATE SCHEMA %s", schemaName))
	require.NoError(t, err)
	t.Logf("SharedTestDB: created schema %s", schemaName)
	_ = db.Close()

	connStrWithSchema := util.AddSearchPathToConnString(baseConnStr, schemaName)

	// Run migrations once via a throwaway store; each replica opens its
	// own pool afterward.
	migrator, err := store.Open(ctx, connStrWithSchema, store.Config{MaxOpenConns: 5, MaxIdleConns: 2})
	require.NoError(t, err)
	_ = migrator.Close()

	s := &SharedTestDB{
		connStrWithSchema: connStrWithSchema,
		baseConnStr:       baseConnStr,
		schemaName:        schemaName,
	}

	// Drop the schema after all replicas have shut down (LIFO order
	// guarantees replica cleanups run before this one).
	t.Cleanup(func() {
		cleanDB, err := stdsql.Open("pgx", baseConnStr)
		if err != nil {
			t.Logf("SharedTestDB: warning: could not connect to drop schema %s: %v", schemaName, err)
			return
		}
		defer func() { _ = cleanDB.Close() }()
		_, err = cleanDB.ExecContext(context.Background(), fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", schemaName))
		if err != nil {
			t.Logf("SharedTestDB: warning: failed to drop schema %s: %v", schemaName, err)
		}
	})

	return s
}

// NewStore creates an independent *store.Store backed by a fresh
// connection pool to the shared schema. Each replica has its own pool so
// they can be shut down independently without races. Closed via
// t.Cleanup.
func (s *SharedTestDB) NewStore(t *testing.T) *store.Store {
	t.Helper()

	st, err := store.Open(context.Background(), s.connStrWithSchema, store.Config{MaxOpenConns: 10, MaxIdleConns: 5})
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = st.Close()
	})

	return st
}

// ConnString exposes the shared schema's connection string for callers
// that need a raw *sql.DB or pgx.Conn outside store.Store (e.g. a
// dedicated LISTEN connection in pkg/bus tests).
func (s *SharedTestDB) ConnString() string {
	return s.connStrWithSchema
}

// Package database provides test helpers that stand up an isolated
// Postgres-backed store.Store for integration tests.
package database

import (
	"context"
	"testing"

	"github.com/navigo-fleet/pipeline/pkg/store"
	"github.com/navigo-fleet/pipeline/test/util"
	"github.com/stretchr/testify/require"
)

// NewTestStore creates a *store.Store against a fresh, isolated schema.
// In CI (CI_DATABASE_URL set) it connects to an external PostgreSQL
// service; locally it uses a shared testcontainer. The schema is dropped
// and the pool closed automatically when the test ends.
func NewTestStore(t *testing.T) *store.Store {
	t.Helper()
	ctx := context.Background()

	connStr := util.SetupTestSchema(t)

	s, err := store.Open(ctx, connStr, store.Config{
		MaxOpenConns: 10,
		MaxIdleConns: 5,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = s.Close()
	})

	return s
}

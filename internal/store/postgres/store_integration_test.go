//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/wolfeidau/orgmgr/internal/store"
	"github.com/wolfeidau/orgmgr/internal/store/storetest"
)

func setupPostgresContainer(t *testing.T, ctx context.Context) string {
	req := testcontainers.ContainerRequest{
		Image:        "postgres:18-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	return fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())
}

func newTestPool(t *testing.T, ctx context.Context, connString string) *pgxpool.Pool {
	pool, err := NewPool(ctx, &PoolConfig{ConnString: connString, MaxConns: 4, MinConns: 1})
	require.NoError(t, err)
	return pool
}

func TestStore_integration(t *testing.T) {
	ctx := context.Background()
	connString := setupPostgresContainer(t, ctx)

	n := 0
	storetest.Run(t, func(t *testing.T) store.Store {
		// each case gets a fresh schema so collections never leak between cases
		n++
		pool := newTestPool(t, ctx, connString)
		schema := fmt.Sprintf("case_%d", n)
		_, err := pool.Exec(ctx, "CREATE SCHEMA "+schema)
		require.NoError(t, err)
		pool.Close()

		pool = newTestPool(t, ctx, connString+"&search_path="+schema)
		return NewStore(pool)
	})
}

func TestRunMigrations_integration(t *testing.T) {
	ctx := context.Background()
	pool := newTestPool(t, ctx, setupPostgresContainer(t, ctx))
	defer pool.Close()

	require.NoError(t, RunMigrations(ctx, pool))
	// a second run is a no-op
	require.NoError(t, RunMigrations(ctx, pool))

	var count int
	require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM schema_migrations`).Scan(&count))
	require.Equal(t, 2, count)

	s := NewStore(pool)
	orgs := s.Collection("organizations")

	// the migration's index and CreateUniqueIndex agree on the name
	require.NoError(t, orgs.CreateUniqueIndex(ctx, "organization_name"))

	_, err := orgs.InsertOne(ctx, store.Document{"organization_name": "Acme"})
	require.NoError(t, err)
	_, err = orgs.InsertOne(ctx, store.Document{"organization_name": "Acme"})
	require.ErrorIs(t, err, store.ErrDuplicateKey)
}

func TestStore_longCollectionNames_integration(t *testing.T) {
	ctx := context.Background()
	pool := newTestPool(t, ctx, setupPostgresContainer(t, ctx))
	s := NewStore(pool)
	defer s.Close()

	long := "org_a_very_long_organization_name_that_exceeds_the_postgres_identifier_limit"
	coll := s.Collection(long)
	require.Equal(t, long, coll.Name())

	_, err := coll.InsertOne(ctx, store.Document{"sku": "1"})
	require.NoError(t, err)
	require.NoError(t, coll.CreateUniqueIndex(ctx, "sku"))

	other := s.Collection(long + "_2")
	docs, err := other.Find(ctx, nil)
	require.NoError(t, err)
	require.Empty(t, docs)
}

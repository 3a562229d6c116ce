//go:build integration

package repository

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/helixir/catalog-sync-service/internal/domain"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	os.Exit(runIntegration(m))
}

func runIntegration(m *testing.M) int {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("catalog_sync_test"),
		postgres.WithUsername("catalog_sync"),
		postgres.WithPassword("testpassword"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start postgres container: %v\n", err)
		return 1
	}
	defer func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			fmt.Fprintf(os.Stderr, "failed to terminate container: %v\n", err)
		}
	}()

	dbURL, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to get connection string: %v\n", err)
		return 1
	}

	// Path is relative from internal/repository/ to migrations/.
	migrator, err := migrate.New("file://../../migrations", dbURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create migrator: %v\n", err)
		return 1
	}
	if err := migrator.Up(); err != nil && err != migrate.ErrNoChange {
		fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
		return 1
	}

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect to test database: %v\n", err)
		return 1
	}
	defer pool.Close()

	testPool = pool
	return m.Run()
}

// cleanTable truncates the given tables between tests.
func cleanTable(t *testing.T, tables ...string) {
	t.Helper()
	ctx := context.Background()
	for _, table := range tables {
		_, err := testPool.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", pq.QuoteIdentifier(table)))
		if err != nil {
			t.Fatalf("failed to truncate %s: %v", table, err)
		}
	}
}

func TestIntegration_JobScheduleDeduplicates(t *testing.T) {
	cleanTable(t, "async_jobs")
	ctx := context.Background()
	repo := NewPgJobRepository(testPool)
	now := time.Now().UTC().Truncate(time.Microsecond)

	first, err := repo.Schedule(ctx, domain.NewEntityJob(domain.JobTypeSourceRefresh, 42, now))
	require.NoError(t, err)
	second, err := repo.Schedule(ctx, domain.NewEntityJob(domain.JobTypeSourceRefresh, 42, now.Add(time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// Both nil entity keys collide under NULLS NOT DISTINCT.
	a, err := repo.Schedule(ctx, domain.NewJob(domain.JobTypeRefreshAll, nil, nil, now))
	require.NoError(t, err)
	b, err := repo.Schedule(ctx, domain.NewJob(domain.JobTypeRefreshAll, nil, nil, now))
	require.NoError(t, err)
	assert.Equal(t, a, b)

	job, err := repo.Get(ctx, first)
	require.NoError(t, err)
	require.NotNil(t, job.ScheduledAt)
	assert.True(t, job.ScheduledAt.Equal(now.Add(time.Hour)))
}

func TestIntegration_SessionRollbackDiscardsWrites(t *testing.T) {
	cleanTable(t, "journals")
	ctx := context.Background()

	store, err := NewPgStoreFactory(testPool, zerolog.Nop()).Begin(ctx)
	require.NoError(t, err)

	_, err = store.Journals().BulkGetOrCreate(ctx, []string{"Nature"})
	require.NoError(t, err)
	require.NoError(t, store.Rollback(ctx))

	ids, err := store.Journals().FindByNormalizedNames(ctx, []string{"nature"})
	require.NoError(t, err)
	assert.Empty(t, ids)
	require.NoError(t, store.Close(ctx))
}

func TestIntegration_PublicationCreateManyAdoptsDOI(t *testing.T) {
	cleanTable(t, "publications")
	ctx := context.Background()
	repo := NewPgPublicationRepository(testPool)

	doi := "10.1000/abc"
	first, err := repo.CreateMany(ctx, []*string{&doi, nil})
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.True(t, first[0].Inserted)
	assert.True(t, first[1].Inserted)

	second, err := repo.CreateMany(ctx, []*string{&doi})
	require.NoError(t, err)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.False(t, second[0].Inserted)

	deleted, err := repo.DeleteUnused(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)
}

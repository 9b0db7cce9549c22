//go:build integration

package postgres

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"example.com/workwatch/internal/domain"
)

func TestRepositoryRespectsTenantIsolation(t *testing.T) {
	ctx := context.Background()
	repo, _ := setupRepository(t, ctx)

	record := domain.ActivityRecord{
		ID:              uuid.NewString(),
		TenantID:        uuid.NewString(),
		UserID:          uuid.NewString(),
		Application:     "Visual Studio Code",
		ObservedAt:      time.Now().UTC().Truncate(time.Second),
		DurationSeconds: 300,
		IsActive:        true,
		Source:          "integration-test",
		CreatedAt:       time.Now().UTC(),
	}

	require.NoError(t, repo.Insert(ctx, record, "key-1"))

	stored, err := repo.Get(ctx, record.TenantID, record.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.Equal(t, record.ID, stored.ID)

	otherTenant := uuid.NewString()
	storedOther, err := repo.Get(ctx, otherTenant, record.ID)
	require.NoError(t, err)
	require.Nil(t, storedOther, "RLS should prevent cross-tenant access")
}

func TestRepositoryIdempotencyAndOutbox(t *testing.T) {
	ctx := context.Background()
	repo, pool := setupRepository(t, ctx)

	tenantID := uuid.NewString()
	userID := uuid.NewString()

	record := domain.ActivityRecord{
		ID:          uuid.NewString(),
		TenantID:    tenantID,
		UserID:      userID,
		Application: "Slack",
		ObservedAt:  time.Now().UTC().Truncate(time.Second),
		Source:      "integration-test",
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, repo.Insert(ctx, record, "key-42"))

	found, err := repo.FindByIdempotency(ctx, tenantID, userID, "key-42")
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Equal(t, record.ID, found.ID)

	missing, err := repo.FindByIdempotency(ctx, tenantID, userID, "key-other")
	require.NoError(t, err)
	require.Nil(t, missing)

	var eventType, topic string
	err = pool.QueryRow(ctx, `SELECT event_type, topic FROM outbox WHERE aggregate_id = $1`, record.ID).Scan(&eventType, &topic)
	require.NoError(t, err)
	require.Equal(t, "snapshot.recorded", eventType)
	require.Equal(t, "activity_snapshots", topic)
}

func TestRepositoryListByUserPaginates(t *testing.T) {
	ctx := context.Background()
	repo, _ := setupRepository(t, ctx)

	tenantID := uuid.NewString()
	userID := uuid.NewString()
	base := time.Now().UTC().Truncate(time.Second)

	for i := 0; i < 5; i++ {
		record := domain.ActivityRecord{
			ID:          uuid.NewString(),
			TenantID:    tenantID,
			UserID:      userID,
			Application: "Terminal",
			ObservedAt:  base.Add(time.Duration(i) * time.Minute),
			Source:      "integration-test",
			CreatedAt:   time.Now().UTC(),
		}
		require.NoError(t, repo.Insert(ctx, record, ""))
	}

	first, cursor, err := repo.ListByUser(ctx, tenantID, userID, nil, 3)
	require.NoError(t, err)
	require.Len(t, first, 3)
	require.NotNil(t, cursor)
	require.True(t, first[0].ObservedAt.After(first[2].ObservedAt))

	rest, _, err := repo.ListByUser(ctx, tenantID, userID, cursor, 3)
	require.NoError(t, err)
	require.Len(t, rest, 2)
	require.True(t, first[2].ObservedAt.After(rest[0].ObservedAt))
}

func setupRepository(t *testing.T, ctx context.Context) (*Repository, *pgxpool.Pool) {
	t.Helper()

	pg, err := postgrescontainer.RunContainer(ctx,
		postgrescontainer.WithDatabase("workwatch"),
		postgrescontainer.WithUsername("workwatch"),
		postgrescontainer.WithPassword("workwatch"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, waitForDatabase(ctx, connStr))
	runMigrations(t, ctx, connStr)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	return NewRepository(pool), pool
}

func runMigrations(t *testing.T, ctx context.Context, connStr string) {
	t.Helper()

	migrationsDir := resolvePath(t, "../../../db/postgres/migrations")
	files, err := filepath.Glob(filepath.Join(migrationsDir, "*.up.sql"))
	require.NoError(t, err)
	require.NotEmpty(t, files)
	sort.Strings(files)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	defer pool.Close()

	for _, file := range files {
		contents, readErr := os.ReadFile(file)
		require.NoErrorf(t, readErr, "read migration %s", file)

		_, execErr := pool.Exec(ctx, string(contents))
		require.NoErrorf(t, execErr, "execute migration %s", file)
	}
}

func resolvePath(t *testing.T, rel string) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	return filepath.Join(filepath.Dir(file), rel)
}

func waitForDatabase(ctx context.Context, connStr string) error {
	deadline := time.Now().Add(30 * time.Second)
	for {
		pool, err := pgxpool.New(ctx, connStr)
		if err == nil {
			err = pool.Ping(ctx)
			pool.Close()
			if err == nil {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return err
		}
		time.Sleep(time.Second)
	}
}

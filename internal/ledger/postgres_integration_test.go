//go:build integration

package ledger

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/spherical/smartpdf/internal/config"
	"github.com/spherical/smartpdf/internal/domain"
)

func TestPostgresLedger(t *testing.T) {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:17-alpine",
		postgres.WithDatabase("smartpdf_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate postgres container: %v", err)
		}
	})

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://test:test@%s:%s/smartpdf_test?sslmode=disable", host, port.Port())
	s, err := Open(ctx, config.LedgerConfig{Driver: "postgres", Postgres: dsn})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.StartRun(ctx, "pg-run", "/in"))
	require.NoError(t, s.RecordDocument(ctx, "pg-run", DocumentRecord{
		Path: "/in/a.pdf", Fingerprint: "abc", Output: "/out/a.md", Engine: "fast",
		Route: domain.RouteFast, Status: domain.StatusOK, Pages: 2,
	}))

	batch := &domain.BatchResult{RunID: "pg-run", Results: []domain.DocumentResult{{Status: domain.StatusOK}}}
	batch.Finalize()
	require.NoError(t, s.FinishRun(ctx, batch))

	done, err := s.Converted(ctx, "abc", "/out/a.md")
	require.NoError(t, err)
	assert.True(t, done)

	runs, err := s.RecentRuns(ctx, 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 1, runs[0].Documents)
}

//go:build e2e

package postgres_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/soonrec/identity/internal/auth/domain"
	"github.com/soonrec/identity/internal/auth/store"
	"github.com/soonrec/identity/internal/auth/store/drivers/postgres"
	"github.com/soonrec/identity/pkg/idx"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupPostgres starts a throwaway PostgreSQL container and returns a
// migrated store.
func setupPostgres(t *testing.T) *postgres.Store {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "identity",
				"POSTGRES_PASSWORD": "identity",
				"POSTGRES_DB":       "identity",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://identity:identity@%s:%s/identity?sslmode=disable", host, port.Port())
	s, err := postgres.NewStore(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.Ping(ctx))
	require.NoError(t, s.ApplyMigrations())
	return s
}

func TestPostgresStore(t *testing.T) {
	s := setupPostgres(t)
	ctx := context.Background()

	u := domain.User{ID: idx.New().String(), Email: "pg@example.com", Name: "PG", PasswordHash: "hash"}
	require.NoError(t, s.Users().CreateUser(ctx, u))

	t.Run("active email is unique", func(t *testing.T) {
		err := s.Users().CreateUser(ctx, domain.User{ID: idx.New().String(), Email: "pg@example.com"})
		require.ErrorIs(t, err, store.ErrAlreadyExists)
	})

	t.Run("concurrent inserts leave one active row", func(t *testing.T) {
		var wg sync.WaitGroup
		errs := make([]error, 8)
		for i := range errs {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs[i] = s.Users().CreateUser(ctx, domain.User{ID: idx.New().String(), Email: "race@example.com"})
			}()
		}
		wg.Wait()

		ok, dup := 0, 0
		for _, err := range errs {
			if err == nil {
				ok++
				continue
			}
			require.ErrorIs(t, err, store.ErrAlreadyExists)
			dup++
		}
		require.Equal(t, 1, ok)
		require.Equal(t, 7, dup)
	})

	t.Run("sessions and soft delete", func(t *testing.T) {
		now := time.Now()
		require.NoError(t, s.Sessions().CreateSession(ctx, domain.Session{
			ID: idx.New().String(), UserID: u.ID, TokenHash: "pg-hash",
			IssuedAt: now, ExpiresAt: now.Add(time.Hour),
		}))
		got, err := s.Sessions().GetSessionByTokenHash(ctx, "pg-hash")
		require.NoError(t, err)
		require.Equal(t, u.ID, got.UserID)

		require.NoError(t, s.Users().SoftDeleteUser(ctx, u.ID, now))
		_, err = s.Users().GetUserByEmail(ctx, "pg@example.com")
		require.ErrorIs(t, err, store.ErrNotFound)

		row, err := s.Users().GetUserByID(ctx, u.ID)
		require.NoError(t, err)
		require.NotNil(t, row.DeletedAt)
	})

	t.Run("activity log", func(t *testing.T) {
		require.NoError(t, s.ActivityLogs().AppendActivity(ctx, domain.ActivityLogEntry{
			ID: idx.New().String(), UserID: u.ID, Action: domain.ActionSignIn,
			IPAddress: domain.UnknownIP, CreatedAt: time.Now(),
		}))
		entries, err := s.ActivityLogs().ListUserActivity(ctx, u.ID, 10)
		require.NoError(t, err)
		require.Len(t, entries, 1)
	})
}

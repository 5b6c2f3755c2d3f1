package service

import (
	"context"
	"testing"

	"github.com/soonrec/identity/internal/auth/store"
	"github.com/stretchr/testify/require"
)

func TestInvalidateAll(t *testing.T) {
	ctx := context.Background()

	t.Run("keeps the named session", func(t *testing.T) {
		env := newTestEnv(t)
		s := env.signUp(t, "alice@example.com", "password123")
		other, err := env.Issuer.Issue(ctx, s.User.ID)
		require.NoError(t, err)

		require.NoError(t, env.Issuer.InvalidateAll(ctx, nil, s.User.ID, s.Token))

		_, _, err = env.Issuer.Validate(ctx, s.Token)
		require.NoError(t, err)
		_, _, err = env.Issuer.Validate(ctx, other.Token)
		require.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("rolled back with its transaction", func(t *testing.T) {
		env := newTestEnv(t)
		s := env.signUp(t, "bob@example.com", "password123")

		err := env.DB.WithTx(ctx, func(tx store.Tx) error {
			require.NoError(t, env.Issuer.InvalidateAll(ctx, tx, s.User.ID, ""))
			return errBoom
		})
		require.ErrorIs(t, err, errBoom)

		_, _, err = env.Issuer.Validate(ctx, s.Token)
		require.NoError(t, err)
	})
}

package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/soonrec/identity/internal/auth/domain"
	"github.com/soonrec/identity/internal/auth/store"
	"github.com/soonrec/identity/pkg/cryptox"
	"github.com/soonrec/identity/pkg/idx"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestSignUp(t *testing.T) {
	ctx := context.Background()

	t.Run("creates the account and signs it in", func(t *testing.T) {
		env := newTestEnv(t)

		s, err := env.Local.SignUp(ctx, SignUpInput{Email: "  Alice@Example.COM ", Password: "correct horse", Name: " Alice "}, "10.0.0.1")
		require.NoError(t, err)
		require.NotEmpty(t, s.Token)
		require.Equal(t, "alice@example.com", s.User.Email)
		require.Equal(t, "Alice", s.User.Name)
		require.Empty(t, s.User.PasswordHash)
		require.WithinDuration(t, time.Now().Add(DefaultSessionTTL), s.ExpiresAt, time.Minute)

		u, _, err := env.Issuer.Validate(ctx, s.Token)
		require.NoError(t, err)
		require.Equal(t, s.User.ID, u.ID)

		entries := env.activity(t, s.User.ID)
		require.Equal(t, []domain.Action{domain.ActionSignUp}, actions(entries))
		require.Equal(t, "10.0.0.1", entries[0].IPAddress)
	})

	t.Run("invalid input reports fields", func(t *testing.T) {
		env := newTestEnv(t)

		_, err := env.Local.SignUp(ctx, SignUpInput{Email: "not-an-email", Password: "short"}, "")
		require.ErrorIs(t, err, ErrInvalidInput)
		fields := FieldsOf(err)
		require.Contains(t, fields, "email")
		require.Contains(t, fields, "password")
	})

	t.Run("duplicate email ignores case", func(t *testing.T) {
		env := newTestEnv(t)
		env.signUp(t, "bob@example.com", "password123")

		_, err := env.Local.SignUp(ctx, SignUpInput{Email: "BOB@example.com", Password: "password456"}, "")
		require.ErrorIs(t, err, ErrDuplicateAccount)
	})

	t.Run("closed registration", func(t *testing.T) {
		env := newTestEnv(t, withRegistrationDisabled())

		_, err := env.Local.SignUp(ctx, SignUpInput{Email: "carol@example.com", Password: "password123"}, "")
		require.ErrorIs(t, err, ErrRegistrationDisabled)
		_, err = env.DB.Users().GetUserByEmail(ctx, "carol@example.com")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("concurrent sign-ups for one email create one account", func(t *testing.T) {
		env := newTestEnv(t)

		const n = 6
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			results []error
		)
		for range n {
			wg.Go(func() {
				_, err := env.Local.SignUp(ctx, SignUpInput{Email: "race@example.com", Password: "password123"}, "")
				mu.Lock()
				results = append(results, err)
				mu.Unlock()
			})
		}
		wg.Wait()

		ok := 0
		for _, err := range results {
			if err == nil {
				ok++
				continue
			}
			require.ErrorIs(t, err, ErrDuplicateAccount)
		}
		require.Equal(t, 1, ok)
	})

	t.Run("activity log outage does not fail the sign-up", func(t *testing.T) {
		env := newTestEnv(t)
		env.Store.activityErr = errBoom

		s := env.signUp(t, "dave@example.com", "password123")
		require.NotEmpty(t, s.Token)
		require.Empty(t, env.activity(t, s.User.ID))
		require.Equal(t, 1, env.Recorder.failures(domain.ActionSignUp))
	})

	t.Run("activity log panic does not fail the sign-up", func(t *testing.T) {
		env := newTestEnv(t)
		env.Store.activityPanic = true

		s := env.signUp(t, "erin@example.com", "password123")
		require.NotEmpty(t, s.Token)
		require.Equal(t, 1, env.Recorder.failures(domain.ActionSignUp))
	})

	t.Run("session issuance failure rolls the account back", func(t *testing.T) {
		env := newTestEnv(t)
		env.Store.createSessionErr = errBoom

		_, err := env.Local.SignUp(ctx, SignUpInput{Email: "frank@example.com", Password: "password123"}, "")
		require.ErrorIs(t, err, errBoom)
		require.Equal(t, domain.ErrInternal, KindOf(err))

		_, err = env.DB.Users().GetUserByEmail(ctx, "frank@example.com")
		require.ErrorIs(t, err, store.ErrNotFound)

		env.Store.createSessionErr = nil
		env.signUp(t, "frank@example.com", "password123")
	})
}

func TestSignIn(t *testing.T) {
	ctx := context.Background()

	t.Run("valid credentials", func(t *testing.T) {
		env := newTestEnv(t)
		up := env.signUp(t, "alice@example.com", "password123")

		in, err := env.Local.SignIn(ctx, SignInInput{Email: "ALICE@example.com", Password: "password123"}, "10.0.0.2")
		require.NoError(t, err)
		require.Equal(t, up.User.ID, in.User.ID)
		require.NotEqual(t, up.Token, in.Token)

		require.ElementsMatch(t, []domain.Action{domain.ActionSignUp, domain.ActionSignIn}, actions(env.activity(t, up.User.ID)))
	})

	t.Run("activity log outage does not fail the sign-in", func(t *testing.T) {
		env := newTestEnv(t)
		up := env.signUp(t, "alice@example.com", "password123")
		env.Store.activityErr = errBoom

		in, err := env.Local.SignIn(ctx, SignInInput{Email: "alice@example.com", Password: "password123"}, "")
		require.NoError(t, err)
		require.Equal(t, up.User.ID, in.User.ID)

		u, _, err := env.Issuer.Validate(ctx, in.Token)
		require.NoError(t, err)
		require.Equal(t, up.User.ID, u.ID)
		require.Equal(t, 1, env.Recorder.failures(domain.ActionSignIn))
	})

	t.Run("failures are indistinguishable", func(t *testing.T) {
		env := newTestEnv(t)
		up := env.signUp(t, "alice@example.com", "password123")
		env.signUp(t, "gone@example.com", "password123")

		deleted, err := env.Local.SignIn(ctx, SignInInput{Email: "gone@example.com", Password: "password123"}, "")
		require.NoError(t, err)
		require.NoError(t, env.Local.DeleteAccount(ctx, deleted.Token, DeleteAccountInput{Password: "password123"}, ""))

		cases := []SignInInput{
			{Email: "alice@example.com", Password: "wrong-password"},
			{Email: "nobody@example.com", Password: "password123"},
			{Email: "gone@example.com", Password: "password123"},
		}
		for _, in := range cases {
			_, err := env.Local.SignIn(ctx, in, "")
			require.ErrorIs(t, err, ErrInvalidCredentials, in.Email)
		}
		require.Equal(t, []domain.Action{domain.ActionSignUp}, actions(env.activity(t, up.User.ID)))
	})

	t.Run("missing fields", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.Local.SignIn(ctx, SignInInput{}, "")
		require.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("legacy bcrypt hash is upgraded", func(t *testing.T) {
		env := newTestEnv(t)

		legacy, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
		require.NoError(t, err)
		now := time.Now().UTC()
		u := domain.User{
			ID:           idx.NewAt(now).String(),
			Email:        "legacy@example.com",
			PasswordHash: string(legacy),
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		require.NoError(t, env.DB.Users().CreateUser(ctx, u))

		_, err = env.Local.SignIn(ctx, SignInInput{Email: u.Email, Password: "password123"}, "")
		require.NoError(t, err)

		got, err := env.DB.Users().GetUserByID(ctx, u.ID)
		require.NoError(t, err)
		require.False(t, cryptox.NeedsRehash(got.PasswordHash))
		require.NoError(t, cryptox.VerifyPassword("password123", got.PasswordHash))
	})
}

func TestSignOut(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	s := env.signUp(t, "alice@example.com", "password123")

	require.NoError(t, env.Local.SignOut(ctx, s.Token, ""))
	_, _, err := env.Issuer.Validate(ctx, s.Token)
	require.ErrorIs(t, err, ErrUnauthenticated)

	// already gone, or never existed
	require.NoError(t, env.Local.SignOut(ctx, s.Token, ""))
	require.NoError(t, env.Local.SignOut(ctx, "garbage", ""))
	require.NoError(t, env.Local.SignOut(ctx, "", ""))

	require.ElementsMatch(t, []domain.Action{domain.ActionSignUp, domain.ActionSignOut}, actions(env.activity(t, s.User.ID)))
}

func TestSignOutActivityOutage(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	s := env.signUp(t, "alice@example.com", "password123")
	env.Store.activityErr = errBoom

	require.NoError(t, env.Local.SignOut(ctx, s.Token, ""))
	_, _, err := env.Issuer.Validate(ctx, s.Token)
	require.ErrorIs(t, err, ErrUnauthenticated)
	require.Equal(t, 1, env.Recorder.failures(domain.ActionSignOut))
}

func TestUpdatePassword(t *testing.T) {
	ctx := context.Background()

	t.Run("checks run in order", func(t *testing.T) {
		env := newTestEnv(t)
		s := env.signUp(t, "alice@example.com", "password123")

		cases := []struct {
			name string
			in   UpdatePasswordInput
			want error
		}{
			{"missing confirmation", UpdatePasswordInput{CurrentPassword: "password123", NewPassword: "password456"}, ErrInvalidInput},
			{"wrong current wins over no-op", UpdatePasswordInput{CurrentPassword: "nope-nope", NewPassword: "nope-nope", ConfirmPassword: "other"}, ErrInvalidCredentials},
			{"no-op wins over mismatch", UpdatePasswordInput{CurrentPassword: "password123", NewPassword: "password123", ConfirmPassword: "other"}, ErrNoOpChange},
			{"mismatch", UpdatePasswordInput{CurrentPassword: "password123", NewPassword: "password456", ConfirmPassword: "password789"}, ErrMismatch},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				err := env.Local.UpdatePassword(ctx, s.Token, tc.in, "")
				require.ErrorIs(t, err, tc.want)
			})
		}
	})

	t.Run("revokes other sessions and keeps the current one", func(t *testing.T) {
		env := newTestEnv(t)
		current := env.signUp(t, "alice@example.com", "password123")
		other, err := env.Local.SignIn(ctx, SignInInput{Email: "alice@example.com", Password: "password123"}, "")
		require.NoError(t, err)

		require.NoError(t, env.Local.UpdatePassword(ctx, current.Token, UpdatePasswordInput{
			CurrentPassword: "password123",
			NewPassword:     "password456",
			ConfirmPassword: "password456",
		}, ""))

		_, _, err = env.Issuer.Validate(ctx, current.Token)
		require.NoError(t, err)
		_, _, err = env.Issuer.Validate(ctx, other.Token)
		require.ErrorIs(t, err, ErrUnauthenticated)

		_, err = env.Local.SignIn(ctx, SignInInput{Email: "alice@example.com", Password: "password123"}, "")
		require.ErrorIs(t, err, ErrInvalidCredentials)
		_, err = env.Local.SignIn(ctx, SignInInput{Email: "alice@example.com", Password: "password456"}, "")
		require.NoError(t, err)
	})

	t.Run("requires a session", func(t *testing.T) {
		env := newTestEnv(t)
		err := env.Local.UpdatePassword(ctx, "bogus", UpdatePasswordInput{
			CurrentPassword: "password123",
			NewPassword:     "password456",
			ConfirmPassword: "password456",
		}, "")
		require.ErrorIs(t, err, ErrUnauthenticated)
	})
}

func TestDeleteAccount(t *testing.T) {
	ctx := context.Background()

	t.Run("wrong password", func(t *testing.T) {
		env := newTestEnv(t)
		s := env.signUp(t, "alice@example.com", "password123")

		err := env.Local.DeleteAccount(ctx, s.Token, DeleteAccountInput{Password: "wrong-password"}, "")
		require.ErrorIs(t, err, ErrInvalidCredentials)
		_, _, err = env.Issuer.Validate(ctx, s.Token)
		require.NoError(t, err)
	})

	t.Run("soft deletes and revokes every session", func(t *testing.T) {
		env := newTestEnv(t)
		s := env.signUp(t, "alice@example.com", "password123")
		other, err := env.Local.SignIn(ctx, SignInInput{Email: "alice@example.com", Password: "password123"}, "")
		require.NoError(t, err)

		require.NoError(t, env.Local.DeleteAccount(ctx, s.Token, DeleteAccountInput{Password: "password123"}, ""))

		for _, tok := range []string{s.Token, other.Token} {
			_, _, err := env.Issuer.Validate(ctx, tok)
			require.ErrorIs(t, err, ErrUnauthenticated)
		}

		row, err := env.DB.Users().GetUserByID(ctx, s.User.ID)
		require.NoError(t, err)
		require.True(t, row.IsDeleted())

		require.Contains(t, actions(env.activity(t, s.User.ID)), domain.ActionDeleteAccount)

		// the address is free again
		again := env.signUp(t, "alice@example.com", "password789")
		require.NotEqual(t, s.User.ID, again.User.ID)
	})
}

func TestUpdateAccount(t *testing.T) {
	ctx := context.Background()

	t.Run("updates name and email", func(t *testing.T) {
		env := newTestEnv(t)
		s := env.signUp(t, "alice@example.com", "password123")

		u, err := env.Local.UpdateAccount(ctx, s.Token, UpdateAccountInput{Name: "Alice B", Email: "Alice.B@Example.com"}, "")
		require.NoError(t, err)
		require.Equal(t, "alice.b@example.com", u.Email)
		require.Equal(t, "Alice B", u.Name)
		require.Empty(t, u.PasswordHash)

		_, err = env.Local.SignIn(ctx, SignInInput{Email: "alice.b@example.com", Password: "password123"}, "")
		require.NoError(t, err)
	})

	t.Run("email owned by someone else", func(t *testing.T) {
		env := newTestEnv(t)
		s := env.signUp(t, "alice@example.com", "password123")
		env.signUp(t, "bob@example.com", "password123")

		_, err := env.Local.UpdateAccount(ctx, s.Token, UpdateAccountInput{Email: "BOB@example.com"}, "")
		require.ErrorIs(t, err, ErrDuplicateAccount)
	})

	t.Run("keeping the same email is fine", func(t *testing.T) {
		env := newTestEnv(t)
		s := env.signUp(t, "alice@example.com", "password123")

		u, err := env.Local.UpdateAccount(ctx, s.Token, UpdateAccountInput{Name: "New Name", Email: "alice@example.com"}, "")
		require.NoError(t, err)
		require.Equal(t, "New Name", u.Name)
	})
}

func TestSessionIssuer(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	s := env.signUp(t, "alice@example.com", "password123")

	now := time.Now()
	env.Issuer.Now = func() time.Time { return now.Add(DefaultSessionTTL + time.Second) }

	_, _, err := env.Issuer.Validate(ctx, s.Token)
	require.ErrorIs(t, err, ErrUnauthenticated)

	// the expired row was removed on the way out
	_, err = env.DB.Sessions().GetSessionByTokenHash(ctx, cryptox.FingerprintToken(s.Token))
	require.ErrorIs(t, err, store.ErrNotFound)

	_, _, err = env.Issuer.Validate(ctx, "")
	require.ErrorIs(t, err, ErrUnauthenticated)
}

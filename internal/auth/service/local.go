package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/soonrec/identity/internal/auth/domain"
	"github.com/soonrec/identity/internal/auth/store"
	"github.com/soonrec/identity/pkg/cryptox"
	"github.com/soonrec/identity/pkg/idx"
	"github.com/soonrec/identity/pkg/slogx"
	"github.com/soonrec/identity/pkg/validatex"
	"golang.org/x/text/cases"
)

type SignUpInput struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=100"`
	Name     string `json:"name" validate:"max=100"`
}

type SignInInput struct {
	Email    string `json:"email" validate:"required,max=254"`
	Password string `json:"password" validate:"required,max=100"`
}

type UpdatePasswordInput struct {
	CurrentPassword string `json:"current_password" validate:"required,max=100"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=100"`
	ConfirmPassword string `json:"confirm_password" validate:"required"`
}

type DeleteAccountInput struct {
	Password string `json:"password" validate:"required,max=100"`
}

type UpdateAccountInput struct {
	Name  string `json:"name" validate:"max=100"`
	Email string `json:"email" validate:"required,email,max=254"`
}

// AuthSession is the outcome of a successful sign-up or sign-in.
type AuthSession struct {
	User      domain.User
	Token     string
	ExpiresAt time.Time
}

// LocalAuthService implements email/password accounts on top of the
// credential store.
type LocalAuthService struct {
	Store     store.Store
	Sessions  *SessionIssuer
	Activity  *ActivityLogger
	Validator *validatex.Validator

	// RegistrationEnabled is fixed at startup.
	RegistrationEnabled bool
}

// normalizeEmail trims and case-folds an address. A Caser is stateful, so
// one is made per call.
func normalizeEmail(email string) string {
	return cases.Fold().String(strings.TrimSpace(email))
}

// SignUp creates an account and signs it in.
func (s *LocalAuthService) SignUp(ctx context.Context, in SignUpInput, ip string) (AuthSession, error) {
	in.Email = strings.TrimSpace(in.Email)
	if err := validate(s.Validator, in); err != nil {
		return AuthSession{}, err
	}
	if !s.RegistrationEnabled {
		return AuthSession{}, ErrRegistrationDisabled
	}

	l := slogx.FromContext(ctx)
	email := normalizeEmail(in.Email)

	// Friendly early answer; the unique index is what actually guarantees it.
	if _, err := s.Store.Users().GetUserByEmail(ctx, email); err == nil {
		return AuthSession{}, ErrDuplicateAccount
	} else if !errors.Is(err, store.ErrNotFound) {
		return AuthSession{}, fmt.Errorf("lookup email: %w", err)
	}

	hash, err := cryptox.HashPassword(in.Password)
	if err != nil {
		return AuthSession{}, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	user := domain.User{
		ID:           idx.NewAt(now).String(),
		Email:        email,
		Name:         strings.TrimSpace(in.Name),
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Store.Users().CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return AuthSession{}, ErrDuplicateAccount
		}
		return AuthSession{}, fmt.Errorf("create user: %w", err)
	}

	var issued IssuedSession
	err = withActivity(ctx,
		func(ctx context.Context) (err error) {
			issued, err = s.Sessions.Issue(ctx, user.ID)
			return err
		},
		func() { s.Activity.Log(ctx, user.ID, domain.ActionSignUp, ip, "") },
	)
	if err != nil {
		// No half-created accounts: drop the row we just inserted.
		if derr := s.Store.Users().DeleteUser(context.WithoutCancel(ctx), user.ID); derr != nil {
			l.Error("failed to roll back user after session issuance failure",
				slog.String("user_id", user.ID), slog.String("error", derr.Error()))
		}
		return AuthSession{}, err
	}

	l.Info("user signed up", slog.String("user_id", user.ID))
	return AuthSession{User: user.Public(), Token: issued.Token, ExpiresAt: issued.Session.ExpiresAt}, nil
}

// SignIn verifies credentials and issues a session. Unknown email, wrong
// password and deleted account are indistinguishable to the caller.
func (s *LocalAuthService) SignIn(ctx context.Context, in SignInInput, ip string) (AuthSession, error) {
	if err := validate(s.Validator, in); err != nil {
		return AuthSession{}, err
	}

	l := slogx.FromContext(ctx)

	user, err := s.Store.Users().GetUserByEmail(ctx, normalizeEmail(in.Email))
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return AuthSession{}, fmt.Errorf("lookup email: %w", err)
		}
		_ = cryptox.VerifyDummy(in.Password)
		return AuthSession{}, ErrInvalidCredentials
	}
	if user.PasswordHash == "" {
		_ = cryptox.VerifyDummy(in.Password)
		return AuthSession{}, ErrInvalidCredentials
	}
	if err := cryptox.VerifyPassword(in.Password, user.PasswordHash); err != nil {
		if !errors.Is(err, cryptox.ErrPasswordMismatch) {
			l.Warn("stored password hash could not be verified", slog.String("user_id", user.ID), slog.String("error", err.Error()))
		}
		return AuthSession{}, ErrInvalidCredentials
	}

	if cryptox.NeedsRehash(user.PasswordHash) {
		s.upgradeHash(ctx, user.ID, in.Password)
	}

	var issued IssuedSession
	err = withActivity(ctx,
		func(ctx context.Context) (err error) {
			issued, err = s.Sessions.Issue(ctx, user.ID)
			return err
		},
		func() { s.Activity.Log(ctx, user.ID, domain.ActionSignIn, ip, "") },
	)
	if err != nil {
		return AuthSession{}, err
	}

	return AuthSession{User: user.Public(), Token: issued.Token, ExpiresAt: issued.Session.ExpiresAt}, nil
}

// upgradeHash replaces a legacy hash. Failure leaves the old hash in place.
func (s *LocalAuthService) upgradeHash(ctx context.Context, userID, password string) {
	l := slogx.FromContext(ctx)

	hash, err := cryptox.HashPassword(password)
	if err == nil {
		err = s.Store.Users().UpdatePasswordHash(ctx, userID, hash)
	}
	if err != nil {
		l.Warn("failed to upgrade legacy password hash", slog.String("user_id", userID), slog.String("error", err.Error()))
		return
	}
	l.Info("upgraded legacy password hash", slog.String("user_id", userID))
}

// SignOut invalidates token. A token that no longer resolves to a session
// is simply forgotten.
func (s *LocalAuthService) SignOut(ctx context.Context, token, ip string) error {
	if token == "" {
		return nil
	}

	sess, err := s.Store.Sessions().GetSessionByTokenHash(ctx, cryptox.FingerprintToken(token))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("load session: %w", err)
	}

	return withActivity(ctx,
		func(ctx context.Context) error { return s.Sessions.Invalidate(ctx, token) },
		func() { s.Activity.Log(ctx, sess.UserID, domain.ActionSignOut, ip, "") },
	)
}

// UpdatePassword changes the password of the session's user. Checks run in
// order: input, current password, no-op, confirmation. Every other session
// of the user is revoked.
func (s *LocalAuthService) UpdatePassword(ctx context.Context, token string, in UpdatePasswordInput, ip string) error {
	if err := validate(s.Validator, in); err != nil {
		return err
	}

	user, _, err := s.Sessions.Validate(ctx, token)
	if err != nil {
		return err
	}

	if err := cryptox.VerifyPassword(in.CurrentPassword, user.PasswordHash); err != nil {
		return ErrInvalidCredentials
	}
	if in.NewPassword == in.CurrentPassword {
		return ErrNoOpChange
	}
	if in.ConfirmPassword != in.NewPassword {
		return ErrMismatch
	}

	hash, err := cryptox.HashPassword(in.NewPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	return withActivity(ctx,
		func(ctx context.Context) error {
			return s.Store.WithTx(ctx, func(tx store.Tx) error {
				if err := tx.Users().UpdatePasswordHash(ctx, user.ID, hash); err != nil {
					return fmt.Errorf("update password: %w", err)
				}
				if err := s.Sessions.InvalidateAll(ctx, tx, user.ID, token); err != nil {
					return fmt.Errorf("revoke sessions: %w", err)
				}
				return nil
			})
		},
		func() { s.Activity.Log(ctx, user.ID, domain.ActionUpdatePassword, ip, "") },
	)
}

// DeleteAccount soft-deletes the session's user and revokes all of its
// sessions. The caller clears the cookie.
func (s *LocalAuthService) DeleteAccount(ctx context.Context, token string, in DeleteAccountInput, ip string) error {
	if err := validate(s.Validator, in); err != nil {
		return err
	}

	user, _, err := s.Sessions.Validate(ctx, token)
	if err != nil {
		return err
	}

	if err := cryptox.VerifyPassword(in.Password, user.PasswordHash); err != nil {
		return ErrInvalidCredentials
	}

	err = withActivity(ctx,
		func(ctx context.Context) error {
			return s.Store.WithTx(ctx, func(tx store.Tx) error {
				if err := tx.Users().SoftDeleteUser(ctx, user.ID, time.Now().UTC()); err != nil {
					return fmt.Errorf("soft delete user: %w", err)
				}
				if err := s.Sessions.InvalidateAll(ctx, tx, user.ID, ""); err != nil {
					return fmt.Errorf("revoke sessions: %w", err)
				}
				return nil
			})
		},
		func() { s.Activity.Log(ctx, user.ID, domain.ActionDeleteAccount, ip, "") },
	)
	if err != nil {
		return err
	}

	slogx.FromContext(ctx).Info("account deleted", slog.String("user_id", user.ID))
	return nil
}

// UpdateAccount changes the display name and email of the session's user.
func (s *LocalAuthService) UpdateAccount(ctx context.Context, token string, in UpdateAccountInput, ip string) (domain.User, error) {
	in.Email = strings.TrimSpace(in.Email)
	if err := validate(s.Validator, in); err != nil {
		return domain.User{}, err
	}

	user, _, err := s.Sessions.Validate(ctx, token)
	if err != nil {
		return domain.User{}, err
	}

	email := normalizeEmail(in.Email)
	name := strings.TrimSpace(in.Name)

	if email != user.Email {
		other, err := s.Store.Users().GetUserByEmail(ctx, email)
		switch {
		case err == nil && other.ID != user.ID:
			return domain.User{}, ErrDuplicateAccount
		case err != nil && !errors.Is(err, store.ErrNotFound):
			return domain.User{}, fmt.Errorf("lookup email: %w", err)
		}
	}

	err = withActivity(ctx,
		func(ctx context.Context) error {
			err := s.Store.Users().UpdateProfile(ctx, user.ID, name, email)
			if errors.Is(err, store.ErrAlreadyExists) {
				return ErrDuplicateAccount
			}
			return err
		},
		func() { s.Activity.Log(ctx, user.ID, domain.ActionUpdateAccount, ip, "") },
	)
	if err != nil {
		return domain.User{}, err
	}

	user.Name = name
	user.Email = email
	user.UpdatedAt = time.Now().UTC()
	return user.Public(), nil
}

// ListActivity returns the newest activity entries of the session's user.
func (s *LocalAuthService) ListActivity(ctx context.Context, token string, limit int) ([]domain.ActivityLogEntry, error) {
	user, _, err := s.Sessions.Validate(ctx, token)
	if err != nil {
		return nil, err
	}
	return s.Store.ActivityLogs().ListUserActivity(ctx, user.ID, limit)
}

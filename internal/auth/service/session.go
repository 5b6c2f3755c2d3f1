package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/soonrec/identity/internal/auth/domain"
	"github.com/soonrec/identity/internal/auth/store"
	"github.com/soonrec/identity/pkg/cryptox"
	"github.com/soonrec/identity/pkg/idx"
	"github.com/soonrec/identity/pkg/slogx"
)

// DefaultSessionTTL is the lifetime of a local session and its cookie.
const DefaultSessionTTL = 30 * 24 * time.Hour

// IssuedSession is a freshly minted session. Token is only ever held by the
// client; the store keeps its fingerprint.
type IssuedSession struct {
	Token   string
	Session domain.Session
}

// SessionIssuer mints and validates opaque session tokens.
type SessionIssuer struct {
	Store store.Store
	TTL   time.Duration

	// Now is overridable in tests.
	Now func() time.Time
}

func (s *SessionIssuer) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *SessionIssuer) ttl() time.Duration {
	if s.TTL <= 0 {
		return DefaultSessionTTL
	}
	return s.TTL
}

// Issue creates a session for userID.
func (s *SessionIssuer) Issue(ctx context.Context, userID string) (IssuedSession, error) {
	token, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return IssuedSession{}, fmt.Errorf("generate session token: %w", err)
	}

	now := s.now().UTC()
	sess := domain.Session{
		ID:        idx.NewAt(now).String(),
		UserID:    userID,
		TokenHash: cryptox.FingerprintToken(token),
		IssuedAt:  now,
		ExpiresAt: now.Add(s.ttl()),
	}

	if err := s.Store.Sessions().CreateSession(ctx, sess); err != nil {
		return IssuedSession{}, fmt.Errorf("create session: %w", err)
	}

	return IssuedSession{Token: token, Session: sess}, nil
}

// Validate resolves token to its session and owning user. Unknown and
// expired tokens, and tokens of missing or soft-deleted users, all yield
// ErrUnauthenticated. Expired rows are removed on the way out.
func (s *SessionIssuer) Validate(ctx context.Context, token string) (domain.User, domain.Session, error) {
	if token == "" {
		return domain.User{}, domain.Session{}, ErrUnauthenticated
	}

	hash := cryptox.FingerprintToken(token)
	sess, err := s.Store.Sessions().GetSessionByTokenHash(ctx, hash)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, domain.Session{}, ErrUnauthenticated
		}
		return domain.User{}, domain.Session{}, fmt.Errorf("load session: %w", err)
	}

	if sess.Expired(s.now()) {
		if err := s.Store.Sessions().DeleteSessionByTokenHash(ctx, hash); err != nil {
			slogx.FromContext(ctx).Warn("failed to delete expired session", "error", err)
		}
		return domain.User{}, domain.Session{}, ErrUnauthenticated
	}

	user, err := s.Store.Users().GetUserByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, domain.Session{}, ErrUnauthenticated
		}
		return domain.User{}, domain.Session{}, fmt.Errorf("load session user: %w", err)
	}
	if user.IsDeleted() {
		return domain.User{}, domain.Session{}, ErrUnauthenticated
	}

	return user, sess, nil
}

// Invalidate deletes the session behind token. Unknown tokens are a no-op.
func (s *SessionIssuer) Invalidate(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.Store.Sessions().DeleteSessionByTokenHash(ctx, cryptox.FingerprintToken(token))
}

// InvalidateAll deletes every session of userID except the one behind
// keepToken (pass "" to revoke all). A non-nil tx scopes the deletion to
// that transaction.
func (s *SessionIssuer) InvalidateAll(ctx context.Context, tx store.Tx, userID, keepToken string) error {
	keep := ""
	if keepToken != "" {
		keep = cryptox.FingerprintToken(keepToken)
	}
	sessions := s.Store.Sessions()
	if tx != nil {
		sessions = tx.Sessions()
	}
	return sessions.DeleteUserSessions(ctx, userID, keep)
}

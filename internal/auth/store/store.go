package store

import (
	"context"
	"errors"
	"time"

	"github.com/soonrec/identity/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite, postgres)
// implement this. It exposes sub-repositories to keep concerns tidy and
// testable, and so a Tx-scoped Store cannot start a nested transaction.
type Store interface {
	Users() Users
	Sessions() Sessions
	ActivityLogs() ActivityLogs

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	// GetUserByID returns a user by id, including soft-deleted users.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail returns the active (non-deleted) user owning email.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// CreateUser inserts a new user (id is provided by app via ULID).
	// Returns ErrAlreadyExists when an active user already owns the email.
	CreateUser(ctx context.Context, u domain.User) error

	// UpdateProfile sets name and email and bumps updated_at.
	// Returns ErrAlreadyExists when another active user owns the email.
	UpdateProfile(ctx context.Context, userID, name, email string) error

	// UpdatePasswordHash sets the password_hash and bumps updated_at.
	UpdatePasswordHash(ctx context.Context, userID string, newHash string) error

	// SoftDeleteUser stamps deleted_at. The row is kept and the email is
	// released for re-registration.
	SoftDeleteUser(ctx context.Context, userID string, at time.Time) error

	// DeleteUser physically removes the row. Only used to roll back a user
	// whose creation could not be completed.
	DeleteUser(ctx context.Context, userID string) error
}

type Sessions interface {
	CreateSession(ctx context.Context, s domain.Session) error

	// GetSessionByTokenHash returns the session by its token fingerprint.
	GetSessionByTokenHash(ctx context.Context, hash string) (domain.Session, error)

	DeleteSessionByTokenHash(ctx context.Context, hash string) error

	// DeleteUserSessions removes every session of the user except the one
	// whose fingerprint is keepHash (pass "" to remove all).
	DeleteUserSessions(ctx context.Context, userID, keepHash string) error

	// DeleteExpiredSessions is housekeeping; it returns the number of rows removed.
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

type ActivityLogs interface {
	AppendActivity(ctx context.Context, e domain.ActivityLogEntry) error

	// ListUserActivity returns the newest entries first.
	ListUserActivity(ctx context.Context, userID string, limit int) ([]domain.ActivityLogEntry, error)
}

package domain

import "time"

type User struct {
	ID           string
	Email        string     // normalised, case-folded
	Name         string     // optional display name
	PasswordHash string     // argon2id PHC (or legacy bcrypt); empty for federated users
	DeletedAt    *time.Time // soft-delete marker
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsDeleted reports whether the user has been soft-deleted.
func (u User) IsDeleted() bool { return u.DeletedAt != nil }

// Public returns a copy of u that is safe to hand to callers outside the
// core: the password hash is stripped.
func (u User) Public() User {
	u.PasswordHash = ""
	return u
}

package domain

import "time"

// Session is the stored record behind a local session token. Only the
// fingerprint of the token is persisted.
type Session struct {
	ID        string
	UserID    string
	TokenHash string // deterministic fingerprint (base64url SHA-256)
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the session is past its expiry at now.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Origin identifies which identity backend a session belongs to.
type Origin string

const (
	OriginLocal     Origin = "local"
	OriginFederated Origin = "federated"
)

// SessionRef is the session presented by a client. Token is either a local
// opaque session token or a provider-issued session secret, depending on
// Origin.
type SessionRef struct {
	Origin Origin
	Token  string
}

// IsZero reports whether no session was presented.
func (r SessionRef) IsZero() bool { return r.Token == "" }

// LocalSession returns a SessionRef for a local token.
func LocalSession(token string) SessionRef {
	return SessionRef{Origin: OriginLocal, Token: token}
}

// FederatedSession returns a SessionRef for a provider session secret.
func FederatedSession(secret string) SessionRef {
	return SessionRef{Origin: OriginFederated, Token: secret}
}

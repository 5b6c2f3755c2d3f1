package http

import (
	"net/http"
	"time"

	"github.com/soonrec/identity/internal/auth/domain"
)

const (
	SessionCookie          = "session"
	FederatedSessionCookie = "federated_session"
)

// CookieConfig controls the session cookies. Secure is on outside development.
type CookieConfig struct {
	Secure bool
	MaxAge time.Duration
}

func (c CookieConfig) set(w http.ResponseWriter, name, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(c.MaxAge.Seconds()),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (c CookieConfig) clear(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// setLocal stores a local session token and drops any federated session.
func (c CookieConfig) setLocal(w http.ResponseWriter, token string) {
	c.set(w, SessionCookie, token)
	c.clear(w, FederatedSessionCookie)
}

// setFederated stores a provider session secret and drops any local session.
func (c CookieConfig) setFederated(w http.ResponseWriter, secret string) {
	c.set(w, FederatedSessionCookie, secret)
	c.clear(w, SessionCookie)
}

func (c CookieConfig) clearAll(w http.ResponseWriter) {
	c.clear(w, SessionCookie)
	c.clear(w, FederatedSessionCookie)
}

// sessionRef reads the request's session. A local session wins when both
// cookies are present.
func sessionRef(r *http.Request) domain.SessionRef {
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		return domain.LocalSession(c.Value)
	}
	if c, err := r.Cookie(FederatedSessionCookie); err == nil && c.Value != "" {
		return domain.FederatedSession(c.Value)
	}
	return domain.SessionRef{}
}

// Package idpsdktest provides an in-memory identity provider for tests.
package idpsdktest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/soonrec/identity/pkg/idpsdk"
)

// Server is a fake provider speaking the idpsdk wire protocol.
type Server struct {
	*httptest.Server

	ProjectID string
	APIKey    string

	// Now stamps new sessions; tests move it to shape registration windows.
	Now func() time.Time

	mu       sync.Mutex
	users    map[string]idpsdk.User
	secrets  map[string]string // one-time secret -> user id
	sessions map[string]idpsdk.Session
	failures map[string]int // route pattern -> forced status
	calls    []string
}

// NewServer starts a fake provider that is closed with the test.
func NewServer(t testing.TB) *Server {
	t.Helper()

	s := &Server{
		ProjectID: "test-project",
		APIKey:    "test-api-key",
		Now:       time.Now,
		users:     make(map[string]idpsdk.User),
		secrets:   make(map[string]string),
		sessions:  make(map[string]idpsdk.Session),
		failures:  make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/account/sessions/token", s.admin(s.exchange))
	mux.HandleFunc("GET /v1/users/{id}", s.admin(s.getUser))
	mux.HandleFunc("DELETE /v1/users/{id}", s.admin(s.deleteUser))
	mux.HandleFunc("DELETE /v1/users/{id}/sessions/{sid}", s.admin(s.deleteSession))
	mux.HandleFunc("GET /v1/account", s.account)
	mux.HandleFunc("DELETE /v1/account/sessions/current", s.deleteCurrent)

	s.Server = httptest.NewServer(s.record(mux))
	t.Cleanup(s.Close)
	return s
}

// Config returns an idpsdk.Config pointing at the fake.
func (s *Server) Config() idpsdk.Config {
	return idpsdk.Config{BaseURL: s.URL, ProjectID: s.ProjectID, APIKey: s.APIKey, Timeout: 5 * time.Second}
}

// AddUser registers a provider account.
func (s *Server) AddUser(u idpsdk.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

// IssueSecret mints the one-time secret the provider would append to the
// OAuth redirect for userID.
func (s *Server) IssueSecret(userID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	secret := uuid.NewString()
	s.secrets[secret] = userID
	return secret
}

// HasUser reports whether the provider still holds the account.
func (s *Server) HasUser(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.users[id]
	return ok
}

// SessionCount returns the number of live provider sessions for userID.
func (s *Server) SessionCount(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, sess := range s.sessions {
		if sess.UserID == userID {
			n++
		}
	}
	return n
}

// Fail forces every request matching pattern (e.g. "GET /v1/users/{id}")
// to answer with status.
func (s *Server) Fail(pattern string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[pattern] = status
}

// Calls returns "METHOD path" for every request received.
func (s *Server) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls = append(s.calls, r.Method+" "+r.URL.Path)
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) admin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok {
			writeError(w, http.StatusUnauthorized, "general_unauthorized_scope", "missing admin assertion")
			return
		}
		if _, err := idpsdk.VerifyAdminAssertion(token, s.ProjectID, []byte(s.APIKey)); err != nil {
			writeError(w, http.StatusUnauthorized, "general_unauthorized_scope", err.Error())
			return
		}
		if s.forced(w, r) {
			return
		}
		next(w, r)
	}
}

func (s *Server) forced(w http.ResponseWriter, r *http.Request) bool {
	s.mu.Lock()
	status, ok := s.failures[r.Pattern]
	s.mu.Unlock()
	if !ok {
		return false
	}
	writeError(w, status, "forced_failure", "forced by test")
	return true
}

func (s *Server) exchange(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"userId"`
		Secret string `json:"secret"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "general_argument_invalid", "bad body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	owner, ok := s.secrets[req.Secret]
	if !ok || owner != req.UserID {
		writeError(w, http.StatusUnauthorized, "user_invalid_token", "invalid token passed in the request")
		return
	}
	delete(s.secrets, req.Secret)

	now := s.Now().UTC()
	sess := idpsdk.Session{
		ID:        uuid.NewString(),
		UserID:    req.UserID,
		Secret:    uuid.NewString(),
		Provider:  "oauth2",
		CreatedAt: now,
		ExpiresAt: now.Add(365 * 24 * time.Hour),
	}
	s.sessions[sess.ID] = sess
	writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	u, ok := s.users[r.PathValue("id")]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "user_not_found", "user not found")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		writeError(w, http.StatusNotFound, "user_not_found", "user not found")
		return
	}
	delete(s.users, id)
	for sid, sess := range s.sessions {
		if sess.UserID == id {
			delete(s.sessions, sid)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[r.PathValue("sid")]
	if !ok || sess.UserID != r.PathValue("id") {
		writeError(w, http.StatusNotFound, "user_session_not_found", "session not found")
		return
	}
	delete(s.sessions, sess.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) sessionBySecret(r *http.Request) (idpsdk.Session, bool) {
	secret := r.Header.Get("X-Session-Secret")
	for _, sess := range s.sessions {
		if secret != "" && sess.Secret == secret {
			return sess, true
		}
	}
	return idpsdk.Session{}, false
}

func (s *Server) account(w http.ResponseWriter, r *http.Request) {
	if s.forced(w, r) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessionBySecret(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "user_unauthorized", "no session")
		return
	}
	u, ok := s.users[sess.UserID]
	if !ok {
		writeError(w, http.StatusUnauthorized, "user_unauthorized", "no user")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) deleteCurrent(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessionBySecret(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "user_unauthorized", "no session")
		return
	}
	delete(s.sessions, sess.ID)
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, typ, msg string) {
	writeJSON(w, status, idpsdk.ErrorResponse{Code: status, Type: typ, Message: msg})
}

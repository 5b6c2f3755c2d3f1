package http

import (
	"net/http"
	"time"

	"github.com/soonrec/identity/internal/auth/domain"
	"github.com/soonrec/identity/pkg/httpx"
)

// SuccessResponse wraps the payload of a successful call.
type SuccessResponse[T any] struct {
	Success bool `json:"success"`
	Data    T    `json:"data,omitempty"`
}

// ErrorResponse describes a failed call. Fields is set for invalid_input.
type ErrorResponse struct {
	Success bool              `json:"success"`
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

type UserResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type SessionResponse struct {
	User      UserResponse `json:"user"`
	ExpiresAt time.Time    `json:"expires_at"`
}

type ActivityResponse struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	IPAddress string    `json:"ip_address"`
	Metadata  string    `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime"`
	Version string        `json:"version"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

type HealthChecks struct {
	Database string `json:"database"`
}

func toUserResponse(u domain.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func toActivityResponse(entries []domain.ActivityLogEntry) []ActivityResponse {
	out := make([]ActivityResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, ActivityResponse{
			ID:        e.ID,
			Action:    string(e.Action),
			IPAddress: e.IPAddress,
			Metadata:  e.Metadata,
			CreatedAt: e.CreatedAt,
		})
	}
	return out
}

// statusFor maps an error kind onto its HTTP status.
func statusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.ErrInvalidInput:
		return http.StatusBadRequest
	case domain.ErrInvalidCredentials, domain.ErrUnauthenticated:
		return http.StatusUnauthorized
	case domain.ErrDuplicateAccount:
		return http.StatusConflict
	case domain.ErrNoOpChange, domain.ErrMismatch:
		return http.StatusUnprocessableEntity
	case domain.ErrRegistrationDisabled:
		return http.StatusForbidden
	case domain.ErrExchangeFailed:
		return http.StatusBadGateway
	case domain.ErrProviderUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, kind domain.ErrorKind, fields map[string]string) {
	httpx.WriteJSON(w, statusFor(kind), ErrorResponse{
		Error:   string(kind),
		Message: kind.Message(),
		Fields:  fields,
	})
}

func writeBadBody(w http.ResponseWriter, err error) {
	writeError(w, domain.ErrInvalidInput, map[string]string{"body": err.Error()})
}

// writeResult renders res, converting its data with conv on success.
func writeResult[T, R any](w http.ResponseWriter, res domain.Result[T], status int, conv func(T) R) {
	if !res.Success {
		writeError(w, res.Error, res.Fields)
		return
	}
	httpx.WriteJSON(w, status, SuccessResponse[R]{Success: true, Data: conv(res.Data)})
}

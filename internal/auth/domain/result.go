package domain

// ErrorKind classifies every failure the auth core reports to its callers.
type ErrorKind string

const (
	ErrInvalidInput         ErrorKind = "invalid_input"
	ErrInvalidCredentials   ErrorKind = "invalid_credentials"
	ErrDuplicateAccount     ErrorKind = "duplicate_account"
	ErrNoOpChange           ErrorKind = "no_op_change"
	ErrMismatch             ErrorKind = "mismatch"
	ErrRegistrationDisabled ErrorKind = "registration_disabled"
	ErrExchangeFailed       ErrorKind = "exchange_failed"
	ErrProviderUnavailable  ErrorKind = "provider_unavailable"
	ErrUnauthenticated      ErrorKind = "unauthenticated"
	ErrInternal             ErrorKind = "internal"
)

// Message is the client-facing description of the kind. InvalidCredentials
// deliberately has a single message regardless of cause.
func (k ErrorKind) Message() string {
	switch k {
	case ErrInvalidInput:
		return "The request contains invalid fields."
	case ErrInvalidCredentials:
		return "Invalid email or password."
	case ErrDuplicateAccount:
		return "An account with this email already exists."
	case ErrNoOpChange:
		return "The new password must differ from the current password."
	case ErrMismatch:
		return "The password confirmation does not match."
	case ErrRegistrationDisabled:
		return "Registration is currently disabled."
	case ErrExchangeFailed:
		return "The identity provider rejected the sign-in."
	case ErrProviderUnavailable:
		return "The identity provider is unavailable."
	case ErrUnauthenticated:
		return "Authentication required."
	default:
		return "Internal error."
	}
}

// Result is the discriminated outcome of a facade operation: either Success
// with Data, or an Error kind with optional per-field messages.
type Result[T any] struct {
	Success bool
	Data    T
	Error   ErrorKind
	Fields  map[string]string
}

func Ok[T any](data T) Result[T] {
	return Result[T]{Success: true, Data: data}
}

func Fail[T any](kind ErrorKind, fields map[string]string) Result[T] {
	return Result[T]{Error: kind, Fields: fields}
}

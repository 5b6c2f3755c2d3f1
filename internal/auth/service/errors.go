package service

import (
	"context"
	"errors"
	"maps"

	"github.com/soonrec/identity/internal/auth/domain"
	"github.com/soonrec/identity/pkg/validatex"
)

var (
	ErrInvalidInput         = errors.New("invalid_input")
	ErrInvalidCredentials   = errors.New("invalid_credentials")
	ErrDuplicateAccount     = errors.New("duplicate_account")
	ErrNoOpChange           = errors.New("no_op_change")
	ErrMismatch             = errors.New("mismatch")
	ErrRegistrationDisabled = errors.New("registration_disabled")
	ErrExchangeFailed       = errors.New("exchange_failed")
	ErrProviderUnavailable  = errors.New("provider_unavailable")
	ErrUnauthenticated      = errors.New("unauthenticated")
	ErrMissingParameters    = errors.New("missing_parameters")
)

// InputError carries per-field validation messages. It matches ErrInvalidInput.
type InputError struct {
	Fields map[string]string
}

func (e *InputError) Error() string {
	return "invalid_input: " + validatex.FieldErrors(e.Fields).Error()
}

func (e *InputError) Is(target error) bool { return target == ErrInvalidInput }

// validate runs v over in and converts field failures into an *InputError.
func validate(v *validatex.Validator, in any) error {
	err := v.Struct(in)
	if err == nil {
		return nil
	}
	var fe validatex.FieldErrors
	if errors.As(err, &fe) {
		return &InputError{Fields: maps.Clone(map[string]string(fe))}
	}
	return err
}

// KindOf classifies err for callers outside the core. Anything unrecognised,
// including context cancellation, is Internal.
func KindOf(err error) domain.ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrMissingParameters):
		return domain.ErrInvalidInput
	case errors.Is(err, ErrInvalidCredentials):
		return domain.ErrInvalidCredentials
	case errors.Is(err, ErrDuplicateAccount):
		return domain.ErrDuplicateAccount
	case errors.Is(err, ErrNoOpChange):
		return domain.ErrNoOpChange
	case errors.Is(err, ErrMismatch):
		return domain.ErrMismatch
	case errors.Is(err, ErrRegistrationDisabled):
		return domain.ErrRegistrationDisabled
	case errors.Is(err, ErrExchangeFailed):
		return domain.ErrExchangeFailed
	case errors.Is(err, ErrProviderUnavailable):
		return domain.ErrProviderUnavailable
	case errors.Is(err, ErrUnauthenticated):
		return domain.ErrUnauthenticated
	default:
		return domain.ErrInternal
	}
}

// FieldsOf returns the per-field messages of an input error, if any.
func FieldsOf(err error) map[string]string {
	var ie *InputError
	if errors.As(err, &ie) {
		return ie.Fields
	}
	return nil
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

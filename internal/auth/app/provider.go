package app

import (
	"context"
	"fmt"

	"github.com/soonrec/identity/pkg/idpsdk"
)

var errNoProvider = fmt.Errorf("%w: no identity provider configured", idpsdk.ErrUnavailable)

// unconfiguredProvider stands in for the identity provider when none is
// configured.
type unconfiguredProvider struct{}

func (unconfiguredProvider) ExchangeSecret(context.Context, string, string) (idpsdk.Session, error) {
	return idpsdk.Session{}, errNoProvider
}

func (unconfiguredProvider) GetUser(context.Context, string) (idpsdk.User, error) {
	return idpsdk.User{}, errNoProvider
}

func (unconfiguredProvider) DeleteSession(context.Context, string, string) error { return errNoProvider }

func (unconfiguredProvider) DeleteUser(context.Context, string) error { return errNoProvider }

// GetSessionUser rejects the secret outright: with no provider there are no
// federated sessions, so a stale cookie just means "signed out".
func (unconfiguredProvider) GetSessionUser(context.Context, string) (idpsdk.User, error) {
	return idpsdk.User{}, &idpsdk.APIError{StatusCode: 401, Type: "no_provider", Message: "no identity provider configured"}
}

func (unconfiguredProvider) DeleteCurrentSession(context.Context, string) error { return errNoProvider }

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/soonrec/identity/internal/auth/domain"
	"github.com/soonrec/identity/internal/auth/metrics"
	"github.com/soonrec/identity/pkg/idpsdk"
	"github.com/soonrec/identity/pkg/slogx"
	"golang.org/x/net/publicsuffix"
)

// Redirect targets of the OAuth callback.
const (
	RedirectOAuthIncomplete      = "/sign-in?error=oauth_incomplete"
	RedirectOAuthFailed          = "/sign-in?error=oauth_failed"
	RedirectRegistrationDisabled = "/sign-in?error=registration_disabled"

	DefaultSuccessPath = "/dashboard"
)

// DefaultRegistrationWindow is how close a provider user's creation must be
// to the new session's creation for the sign-in to count as a registration.
//
// This is a heuristic: an existing user who signs in again within the window
// of their original sign-up is treated as registering and is denied while
// registration is closed.
const DefaultRegistrationWindow = 5 * time.Minute

// rollbackTimeout bounds the provider deletions of a denied registration.
// They run detached from the request so a cancelled callback still cleans up.
const rollbackTimeout = 10 * time.Second

// IdentityProvider is the remote managed-identity service.
type IdentityProvider interface {
	ExchangeSecret(ctx context.Context, userID, secret string) (idpsdk.Session, error)
	GetUser(ctx context.Context, userID string) (idpsdk.User, error)
	DeleteSession(ctx context.Context, userID, sessionID string) error
	DeleteUser(ctx context.Context, userID string) error
	GetSessionUser(ctx context.Context, secret string) (idpsdk.User, error)
	DeleteCurrentSession(ctx context.Context, secret string) error
}

type FederationConfig struct {
	// RegistrationEnabled is fixed at startup.
	RegistrationEnabled bool
	RegistrationWindow  time.Duration
	SuccessPath         string
}

// FederationService turns a provider OAuth callback into a federated
// session while enforcing the registration policy.
type FederationService struct {
	Provider IdentityProvider
	Activity *ActivityLogger
	Metrics  metrics.Recorder

	registrationEnabled bool
	window              time.Duration
	successPath         string
}

func NewFederationService(
	provider IdentityProvider,
	activity *ActivityLogger,
	rec metrics.Recorder,
	cfg FederationConfig,
) *FederationService {
	if cfg.RegistrationWindow <= 0 {
		cfg.RegistrationWindow = DefaultRegistrationWindow
	}
	if cfg.SuccessPath == "" {
		cfg.SuccessPath = DefaultSuccessPath
	}
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &FederationService{
		Provider:            provider,
		Activity:            activity,
		Metrics:             rec,
		registrationEnabled: cfg.RegistrationEnabled,
		window:              cfg.RegistrationWindow,
		successPath:         cfg.SuccessPath,
	}
}

// CallbackRequest is what the provider's redirect delivers.
type CallbackRequest struct {
	UserID        string
	Secret        string
	RefererOrigin string
	IP            string
}

// CallbackResult is the outcome of a callback. Secret is set only on
// success and is what the federated session cookie carries. Err records
// why the callback failed, for logging and metrics; it is never surfaced
// to the browser beyond the redirect.
type CallbackResult struct {
	Redirect string
	Secret   string
	Err      error
}

// HandleCallback runs the exchange state machine. The provider calls are
// strictly sequential since each gates the next. The only end states are a
// session (Secret set) or no session; a denied registration also removes
// the provider user.
func (s *FederationService) HandleCallback(ctx context.Context, req CallbackRequest) (res CallbackResult) {
	if req.UserID == "" || req.Secret == "" {
		return CallbackResult{Redirect: RedirectOAuthIncomplete, Err: ErrMissingParameters}
	}

	ctx = slogx.With(ctx, slog.String("provider_user_id", req.UserID))
	l := slogx.FromContext(ctx)

	defer func() {
		if r := recover(); r != nil {
			l.Error("oauth callback panicked", slog.Any("panic", r))
			res = CallbackResult{Redirect: RedirectOAuthFailed, Err: fmt.Errorf("oauth callback panicked: %v", r)}
		}
	}()

	sess, err := s.Provider.ExchangeSecret(ctx, req.UserID, req.Secret)
	if err != nil {
		err = s.classify(err)
		s.Metrics.RecordProviderCall("exchange_secret", string(KindOf(err)))
		l.Warn("oauth secret exchange failed", slog.String("error", err.Error()))
		return CallbackResult{Redirect: RedirectOAuthFailed, Err: err}
	}
	s.Metrics.RecordProviderCall("exchange_secret", "ok")

	if sess.Secret == "" || sess.UserID != req.UserID {
		l.Warn("provider returned an unusable session", slog.String("session_user_id", sess.UserID))
		return CallbackResult{Redirect: RedirectOAuthFailed, Err: ErrExchangeFailed}
	}

	if !s.registrationEnabled {
		if denied := s.enforceRegistrationPolicy(ctx, sess); denied {
			return CallbackResult{Redirect: RedirectRegistrationDisabled, Err: ErrRegistrationDisabled}
		}
	}

	label := providerLabel(req.RefererOrigin)
	s.Activity.Log(ctx, sess.UserID, domain.ActionSignIn, req.IP, "provider="+label)

	l.Info("federated sign-in", slog.String("provider", label))
	return CallbackResult{Redirect: s.successPath, Secret: sess.Secret}
}

// enforceRegistrationPolicy reports whether the sign-in must be denied
// because it is a new registration (or cannot be shown not to be one).
// On denial the provider session, and for a new registration the provider
// user, are deleted. Each deletion is attempted independently.
func (s *FederationService) enforceRegistrationPolicy(ctx context.Context, sess idpsdk.Session) bool {
	l := slogx.FromContext(ctx)

	user, err := s.Provider.GetUser(ctx, sess.UserID)
	if err != nil {
		s.Metrics.RecordProviderCall("get_user", string(KindOf(s.classify(err))))
		l.Warn("registration check failed; denying sign-in", slog.String("error", err.Error()))
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
		defer cancel()
		s.deleteSession(rctx, sess)
		return true
	}
	s.Metrics.RecordProviderCall("get_user", "ok")

	if !s.isNewRegistration(user.CreatedAt, sess.CreatedAt) {
		return false
	}

	l.Info("registration disabled; rolling back new provider account",
		slog.Time("user_created_at", user.CreatedAt),
		slog.Time("session_created_at", sess.CreatedAt),
	)
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
	defer cancel()
	s.deleteSession(rctx, sess)
	if err := s.Provider.DeleteUser(rctx, sess.UserID); err != nil {
		s.Metrics.RecordProviderCall("delete_user", string(KindOf(s.classify(err))))
		l.Error("failed to delete provider user", slog.String("error", err.Error()))
	} else {
		s.Metrics.RecordProviderCall("delete_user", "ok")
	}
	return true
}

func (s *FederationService) deleteSession(ctx context.Context, sess idpsdk.Session) {
	if err := s.Provider.DeleteSession(ctx, sess.UserID, sess.ID); err != nil {
		s.Metrics.RecordProviderCall("delete_session", string(KindOf(s.classify(err))))
		slogx.FromContext(ctx).Error("failed to delete provider session", slog.String("error", err.Error()))
		return
	}
	s.Metrics.RecordProviderCall("delete_session", "ok")
}

func (s *FederationService) isNewRegistration(userCreated, sessionCreated time.Time) bool {
	d := sessionCreated.Sub(userCreated)
	if d < 0 {
		d = -d
	}
	return d <= s.window
}

// classify maps provider errors onto ExchangeFailed (the provider refused)
// and ProviderUnavailable (it could not be reached or broke).
func (s *FederationService) classify(err error) error {
	switch {
	case errors.Is(err, idpsdk.ErrUnavailable), isContextErr(err):
		return fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	default:
		return fmt.Errorf("%w: %w", ErrExchangeFailed, err)
	}
}

// CurrentUser resolves a federated session secret to the provider account.
func (s *FederationService) CurrentUser(ctx context.Context, secret string) (domain.User, error) {
	if secret == "" {
		return domain.User{}, ErrUnauthenticated
	}
	u, err := s.Provider.GetSessionUser(ctx, secret)
	if err != nil {
		var apiErr *idpsdk.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode < 500 {
			return domain.User{}, ErrUnauthenticated
		}
		return domain.User{}, s.classify(err)
	}
	return domain.User{
		ID:        u.ID,
		Email:     normalizeEmail(u.Email),
		Name:      u.Name,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.CreatedAt,
	}, nil
}

// SignOut ends the provider session behind secret. It never fails: the
// provider call and the activity log are both best-effort.
func (s *FederationService) SignOut(ctx context.Context, secret, ip string) {
	if secret == "" {
		return
	}
	l := slogx.FromContext(ctx)

	u, err := s.Provider.GetSessionUser(ctx, secret)
	if err != nil {
		l.Warn("federated sign-out: session already gone or provider unreachable", slog.String("error", err.Error()))
		return
	}

	_ = withActivity(ctx,
		func(ctx context.Context) error {
			if err := s.Provider.DeleteCurrentSession(ctx, secret); err != nil {
				l.Warn("failed to delete provider session on sign-out", slog.String("error", err.Error()))
			}
			return nil
		},
		func() { s.Activity.Log(ctx, u.ID, domain.ActionSignOut, ip, "provider=federated") },
	)
}

// providerLabel names the OAuth provider from the referring origin's
// registrable domain.
func providerLabel(origin string) string {
	if origin == "" {
		return "oauth"
	}
	host := origin
	if u, err := url.Parse(origin); err == nil && u.Hostname() != "" {
		host = u.Hostname()
	}
	domainName, err := publicsuffix.EffectiveTLDPlusOne(strings.ToLower(host))
	if err != nil {
		return "oauth"
	}
	switch domainName {
	case "google.com":
		return "google"
	case "github.com":
		return "github"
	default:
		return "oauth"
	}
}

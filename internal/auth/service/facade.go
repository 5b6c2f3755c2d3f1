package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/soonrec/identity/internal/auth/domain"
	"github.com/soonrec/identity/internal/auth/metrics"
	"github.com/soonrec/identity/pkg/slogx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "identity/service"

// DefaultActivityLimit caps activity history reads.
const DefaultActivityLimit = 50

// Facade is the single entry point for the UI and API layers. It dispatches
// on session origin once and turns every business failure into a typed
// Result; only unexpected failures are reported as Go errors, and only by
// the read-only GetCurrentUser.
type Facade struct {
	Local      *LocalAuthService
	Federation *FederationService
	Metrics    metrics.Recorder

	tracer trace.Tracer
}

func NewFacade(local *LocalAuthService, federation *FederationService, rec metrics.Recorder) *Facade {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Facade{
		Local:      local,
		Federation: federation,
		Metrics:    rec,
		tracer:     otel.Tracer(tracerName),
	}
}

// Empty is the Data of results that carry none.
type Empty struct{}

// run wraps a facade operation in a span, records its outcome and folds
// the error into a Result.
func run[T any](ctx context.Context, f *Facade, op string, fn func(ctx context.Context) (T, error)) domain.Result[T] {
	ctx, span := f.tracer.Start(ctx, "auth."+op)
	defer span.End()

	start := time.Now()
	data, err := fn(ctx)
	if err == nil {
		f.Metrics.RecordOperation(op, "ok", time.Since(start))
		return domain.Ok(data)
	}

	kind := KindOf(err)
	span.SetAttributes(attribute.String("auth.error_kind", string(kind)))
	if kind == domain.ErrInternal {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slogx.FromContext(ctx).Error("auth operation failed",
			slog.String("operation", op),
			slog.String("error", err.Error()),
			slog.Bool("timeout", errors.Is(err, context.DeadlineExceeded)),
		)
	}
	f.Metrics.RecordOperation(op, string(kind), time.Since(start))
	return domain.Fail[T](kind, FieldsOf(err))
}

func (f *Facade) SignUp(ctx context.Context, in SignUpInput, ip string) domain.Result[AuthSession] {
	return run(ctx, f, "sign_up", func(ctx context.Context) (AuthSession, error) {
		return f.Local.SignUp(ctx, in, ip)
	})
}

func (f *Facade) SignIn(ctx context.Context, in SignInInput, ip string) domain.Result[AuthSession] {
	return run(ctx, f, "sign_in", func(ctx context.Context) (AuthSession, error) {
		return f.Local.SignIn(ctx, in, ip)
	})
}

// SignOut ends the presented session, local or federated. A missing
// session is not an error.
func (f *Facade) SignOut(ctx context.Context, ref domain.SessionRef, ip string) domain.Result[Empty] {
	return run(ctx, f, "sign_out", func(ctx context.Context) (Empty, error) {
		switch ref.Origin {
		case domain.OriginLocal:
			return Empty{}, f.Local.SignOut(ctx, ref.Token, ip)
		case domain.OriginFederated:
			f.Federation.SignOut(ctx, ref.Token, ip)
		}
		return Empty{}, nil
	})
}

// Password and profile changes apply to local accounts; federated accounts
// are managed by the provider, so a federated session is Unauthenticated here.
func (f *Facade) UpdatePassword(ctx context.Context, ref domain.SessionRef, in UpdatePasswordInput, ip string) domain.Result[Empty] {
	return run(ctx, f, "update_password", func(ctx context.Context) (Empty, error) {
		if ref.Origin != domain.OriginLocal {
			return Empty{}, ErrUnauthenticated
		}
		return Empty{}, f.Local.UpdatePassword(ctx, ref.Token, in, ip)
	})
}

func (f *Facade) DeleteAccount(ctx context.Context, ref domain.SessionRef, in DeleteAccountInput, ip string) domain.Result[Empty] {
	return run(ctx, f, "delete_account", func(ctx context.Context) (Empty, error) {
		if ref.Origin != domain.OriginLocal {
			return Empty{}, ErrUnauthenticated
		}
		return Empty{}, f.Local.DeleteAccount(ctx, ref.Token, in, ip)
	})
}

func (f *Facade) UpdateAccount(ctx context.Context, ref domain.SessionRef, in UpdateAccountInput, ip string) domain.Result[domain.User] {
	return run(ctx, f, "update_account", func(ctx context.Context) (domain.User, error) {
		if ref.Origin != domain.OriginLocal {
			return domain.User{}, ErrUnauthenticated
		}
		return f.Local.UpdateAccount(ctx, ref.Token, in, ip)
	})
}

// ListActivity returns the newest audit entries of the session's account.
// Federated accounts are keyed by the provider's user id.
func (f *Facade) ListActivity(ctx context.Context, ref domain.SessionRef, limit int) domain.Result[[]domain.ActivityLogEntry] {
	if limit <= 0 || limit > DefaultActivityLimit {
		limit = DefaultActivityLimit
	}
	return run(ctx, f, "list_activity", func(ctx context.Context) ([]domain.ActivityLogEntry, error) {
		switch ref.Origin {
		case domain.OriginLocal:
			return f.Local.ListActivity(ctx, ref.Token, limit)
		case domain.OriginFederated:
			u, err := f.Federation.CurrentUser(ctx, ref.Token)
			if err != nil {
				return nil, err
			}
			return f.Local.Store.ActivityLogs().ListUserActivity(ctx, u.ID, limit)
		default:
			return nil, ErrUnauthenticated
		}
	})
}

// HandleOAuthCallback completes a provider sign-in. It always yields a
// redirect; see FederationService.HandleCallback.
func (f *Facade) HandleOAuthCallback(ctx context.Context, req CallbackRequest) CallbackResult {
	ctx, span := f.tracer.Start(ctx, "auth.oauth_callback")
	defer span.End()

	start := time.Now()
	res := f.Federation.HandleCallback(ctx, req)

	outcome := "ok"
	if res.Err != nil {
		kind := KindOf(res.Err)
		outcome = string(kind)
		span.SetAttributes(attribute.String("auth.error_kind", outcome))
		if kind == domain.ErrInternal || kind == domain.ErrProviderUnavailable {
			span.RecordError(res.Err)
			span.SetStatus(codes.Error, res.Err.Error())
		}
	}
	f.Metrics.RecordOperation("oauth_callback", outcome, time.Since(start))
	return res
}

// GetCurrentUser resolves the presented session to its account. It returns
// (nil, nil) when there is no valid session; an error means the answer
// could not be determined.
func (f *Facade) GetCurrentUser(ctx context.Context, ref domain.SessionRef) (*domain.User, error) {
	ctx, span := f.tracer.Start(ctx, "auth.get_current_user",
		trace.WithAttributes(attribute.String("auth.origin", string(ref.Origin))))
	defer span.End()

	if ref.IsZero() {
		return nil, nil
	}

	var (
		user domain.User
		err  error
	)
	switch ref.Origin {
	case domain.OriginLocal:
		user, _, err = f.Local.Sessions.Validate(ctx, ref.Token)
	case domain.OriginFederated:
		user, err = f.Federation.CurrentUser(ctx, ref.Token)
	default:
		return nil, nil
	}

	if errors.Is(err, ErrUnauthenticated) {
		return nil, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	user = user.Public()
	return &user, nil
}

package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/soonrec/identity/internal/auth/metrics"
	"github.com/soonrec/identity/internal/auth/service"
	"github.com/soonrec/identity/internal/auth/store"
	"github.com/soonrec/identity/pkg/httpx"
	"github.com/soonrec/identity/pkg/slogx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	_ "github.com/soonrec/identity/api/auth" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store    store.Store
	Facade   *service.Facade
	Cookies  CookieConfig
	Gatherer prometheus.Gatherer // nil disables /metrics
}

func NewRouter(
	facade *service.Facade,
	st store.Store,
	cookies CookieConfig,
	buildVersion string,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
		store:        st,
		Facade:       facade,
		Cookies:      cookies,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		otelhttp.NewMiddleware("identity",
			otelhttp.WithSpanNameFormatter(func(_ string, req *http.Request) string {
				if req.Pattern != "" {
					return req.Pattern
				}
				return req.Method + " " + req.URL.Path
			}),
		),
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerAccount()
	r.registerOAuth()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Identity Service API
//	@version		0.1.0
//	@description	Account and session lifecycle: local email/password accounts and federated
//	@description	sign-in through a managed identity provider.
//	@description
//	@description	Sessions are carried in HttpOnly, SameSite=Strict cookies: `session` for local
//	@description	accounts and `federated_session` for provider accounts.
//
//	@host			localhost:8080
//	@BasePath		/
//
//	@schemes		http https
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	h := &AuthHandler{Facade: r.Facade, Cookies: r.Cookies}

	// Credential endpoints - strict rate limit by IP + email to slow down guessing
	r.Mux.Handle("POST /v1/auth/sign-up",
		httpx.Chain(http.HandlerFunc(h.HandleSignUp),
			httpx.RateLimitByIPAndJSONField(httpx.StrictLimit, "email"),
		),
	)
	r.Mux.Handle("POST /v1/auth/sign-in",
		httpx.Chain(http.HandlerFunc(h.HandleSignIn),
			httpx.RateLimitByIPAndJSONField(httpx.StrictLimit, "email"),
		),
	)

	r.Mux.Handle("POST /v1/auth/sign-out",
		httpx.Chain(http.HandlerFunc(h.HandleSignOut),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerAccount() {
	h := &AccountHandler{Facade: r.Facade, Cookies: r.Cookies}

	secured := func(fn http.HandlerFunc, limit httpx.RateLimitConfig) http.Handler {
		return httpx.Chain(fn,
			RequireSession(r.Facade),
			httpx.RateLimitByUser(limit),
		)
	}

	r.Mux.Handle("GET /v1/account", secured(h.HandleGet, httpx.LenientLimit))
	r.Mux.Handle("PATCH /v1/account", secured(h.HandleUpdate, httpx.ModerateLimit))
	r.Mux.Handle("DELETE /v1/account", secured(h.HandleDelete, httpx.StrictLimit))

	// password re-entry endpoints are guessing targets too
	r.Mux.Handle("POST /v1/account/password", secured(h.HandlePassword, httpx.StrictLimit))
	r.Mux.Handle("GET /v1/account/activity", secured(h.HandleActivity, httpx.LenientLimit))
}

func (r *Router) registerOAuth() {
	h := &OAuthCallbackHandler{Facade: r.Facade, Cookies: r.Cookies}

	r.Mux.Handle("GET /v1/oauth/callback",
		httpx.Chain(h,
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerSystem() {
	// Health and metrics endpoints - public rate limits (monitoring systems poll frequently)
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)

	if r.Gatherer != nil {
		r.Mux.Handle("GET /metrics",
			httpx.Chain(metrics.Handler(r.Gatherer),
				httpx.RateLimitByIP(httpx.PublicLimit),
			),
		)
	}
}

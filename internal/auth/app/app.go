package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	httpapi "github.com/soonrec/identity/internal/auth/http"
	"github.com/soonrec/identity/internal/auth/metrics"
	"github.com/soonrec/identity/internal/auth/service"
	"github.com/soonrec/identity/internal/auth/store"
	"github.com/soonrec/identity/internal/auth/store/drivers/postgres"
	"github.com/soonrec/identity/internal/auth/store/drivers/sqlite"
	"github.com/soonrec/identity/pkg/cryptox"
	"github.com/soonrec/identity/pkg/idpsdk"
	"github.com/soonrec/identity/pkg/otelx"
	"github.com/soonrec/identity/pkg/slogx"
	"github.com/soonrec/identity/pkg/validatex"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"

	serviceName = "identity-service"
)

// Application encapsulates the identity service with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db            store.Store
	registry      *prometheus.Registry
	metrics       *metrics.Collector
	provider      service.IdentityProvider
	traceShutdown otelx.ShutdownFunc

	// Services
	facade              *service.Facade
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: serviceName,
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	// Set pepper path for password hashing
	cryptox.SetPepperPath(app.cfg.PepperFile)

	shutdown, err := otelx.Setup(context.Background(), serviceName, BuildVersion, cfg.OTelEndpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	app.traceShutdown = shutdown

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	app.initMetrics()
	app.initProvider()
	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	// Start housekeeping service
	app.housekeepingService.Start()

	app.logger.Info("identity service starting",
		"port", app.cfg.Port,
		"version", BuildVersion,
		"database_driver", app.cfg.DatabaseDriver,
		"registration_enabled", app.cfg.RegistrationEnabled,
	)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a shutdown signal or server error
	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		// Perform graceful shutdown
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down identity service...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	// Shutdown the HTTP server
	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	// Stop the housekeeping service
	app.housekeepingService.Stop()

	if err := app.traceShutdown(ctx); err != nil {
		app.logger.Error("error flushing traces", "error", err)
	}

	// Close database connection
	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("identity service stopped")
	return nil
}

// initDatabase opens the configured credential store and applies migrations
func (app *Application) initDatabase() error {
	var (
		db  store.Store
		err error
	)
	switch app.cfg.DatabaseDriver {
	case "postgres":
		db, err = postgres.NewStore(app.cfg.DatabaseURL)
	default:
		dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", app.cfg.DatabaseFile)
		db, err = sqlite.NewStore(dsn)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully", "driver", app.cfg.DatabaseDriver)
	return nil
}

func (app *Application) initMetrics() {
	app.registry = prometheus.NewRegistry()
	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	app.metrics = metrics.NewCollector(app.registry)
}

// initProvider connects the identity provider. Without an endpoint,
// federated sign-in is switched off and every provider call reports the
// provider as unavailable.
func (app *Application) initProvider() {
	if app.cfg.IDPEndpoint == "" {
		app.logger.Warn("IDP_ENDPOINT not set; federated sign-in is disabled")
		app.provider = unconfiguredProvider{}
		return
	}

	app.provider = idpsdk.New(idpsdk.Config{
		BaseURL:   app.cfg.IDPEndpoint,
		ProjectID: app.cfg.IDPProjectID,
		APIKey:    app.cfg.IDPAPIKey,
		Timeout:   app.cfg.IDPTimeout,
	})
}

// initServices initializes all business logic services
func (app *Application) initServices() {
	issuer := &service.SessionIssuer{
		Store: app.db,
		TTL:   app.cfg.SessionTTL,
	}
	activity := &service.ActivityLogger{
		Store:   app.db,
		Metrics: app.metrics,
	}

	local := &service.LocalAuthService{
		Store:               app.db,
		Sessions:            issuer,
		Activity:            activity,
		Validator:           validatex.New(),
		RegistrationEnabled: app.cfg.RegistrationEnabled,
	}
	federation := service.NewFederationService(app.provider, activity, app.metrics, service.FederationConfig{
		RegistrationEnabled: app.cfg.RegistrationEnabled,
		SuccessPath:         app.cfg.OAuthSuccessPath,
	})

	app.facade = service.NewFacade(local, federation, app.metrics)

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.metrics,
		app.cfg.HousekeepingInterval,
	)
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.facade,
		app.db,
		httpapi.CookieConfig{
			Secure: app.cfg.SecureCookies(),
			MaxAge: app.cfg.SessionTTL,
		},
		BuildVersion,
		app.logger,
	)
	router.Gatherer = app.registry
	router.ApplyRoutes()

	app.router = router

	// Initialize HTTP server
	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}

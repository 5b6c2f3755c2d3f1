package app

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Env       string `env:"ENV"        envDefault:"dev"`  // dev, staging, prod
	Port      int    `env:"PORT"       envDefault:"8080"` // HTTP server port
	LogLevel  string `env:"LOG_LEVEL"  envDefault:"info"` // debug, info, warn, error
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"` // json, text

	DatabaseDriver string `env:"AUTH_DATABASE_DRIVER" envDefault:"sqlite"` // sqlite, postgres
	DatabaseFile   string `env:"AUTH_DATABASE_FILE"   envDefault:"auth.db"`
	DatabaseURL    string `env:"AUTH_DATABASE_URL"` // required for postgres
	PepperFile     string `env:"AUTH_PEPPER_FILE"     envDefault:"pepper"`

	SessionTTL          time.Duration `env:"SESSION_TTL"          envDefault:"720h"`
	RegistrationEnabled bool          `env:"REGISTRATION_ENABLED" envDefault:"true"`

	IDPEndpoint      string        `env:"IDP_ENDPOINT"`
	IDPProjectID     string        `env:"IDP_PROJECT_ID"`
	IDPAPIKey        string        `env:"IDP_API_KEY"`
	IDPTimeout       time.Duration `env:"IDP_TIMEOUT"        envDefault:"10s"`
	OAuthSuccessPath string        `env:"OAUTH_SUCCESS_PATH" envDefault:"/dashboard"`

	ShutdownGracePeriod  time.Duration `env:"SHUTDOWN_GRACE_PERIOD" envDefault:"10s"`
	HousekeepingInterval time.Duration `env:"HOUSEKEEPING_INTERVAL" envDefault:"1h"`

	// OTelEndpoint enables tracing when set (OTLP over HTTP, host:port).
	OTelEndpoint string `env:"OTEL_ENDPOINT"`
}

// LoadConfig reads the configuration from the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error

	if !slices.Contains([]string{"sqlite", "postgres"}, c.DatabaseDriver) {
		errs = append(errs, fmt.Errorf("AUTH_DATABASE_DRIVER: unsupported driver %q", c.DatabaseDriver))
	}
	if c.DatabaseDriver == "postgres" && c.DatabaseURL == "" {
		errs = append(errs, errors.New("AUTH_DATABASE_URL is required for the postgres driver"))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}
	if c.IDPEndpoint != "" && (c.IDPProjectID == "" || c.IDPAPIKey == "") {
		errs = append(errs, errors.New("IDP_PROJECT_ID and IDP_API_KEY are required with IDP_ENDPOINT"))
	}

	return errors.Join(errs...)
}

// SecureCookies reports whether session cookies carry the Secure flag.
func (c Config) SecureCookies() bool {
	return c.Env == "prod"
}

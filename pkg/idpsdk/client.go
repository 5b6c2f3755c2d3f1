package idpsdk

import (
	"net/http"
	"strings"
	"time"
)

const (
	defaultTimeout      = 10 * time.Second
	defaultAssertionTTL = time.Minute
)

type Config struct {
	BaseURL   string
	ProjectID string
	APIKey    string // signs admin assertions

	// Timeout bounds each request on top of the caller's context.
	Timeout time.Duration
}

// Client talks to the identity provider's REST API. It is safe for
// concurrent use.
type Client struct {
	BaseURL    string
	ProjectID  string
	HTTPClient *http.Client

	apiKey       []byte
	assertionTTL time.Duration
}

// New creates a provider client.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		BaseURL:   strings.TrimSuffix(cfg.BaseURL, "/"),
		ProjectID: cfg.ProjectID,
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
		apiKey:       []byte(cfg.APIKey),
		assertionTTL: defaultAssertionTTL,
	}
}

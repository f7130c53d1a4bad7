package lima

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/rickgao/cognitive-hub/internal/config"
)

// Client provides access to the LIMA REST API.
type Client struct {
	baseURL    string
	authURL    string
	accountID  string
	password   string
	httpClient *http.Client
	logger     *slog.Logger
	userAgent  string

	clientID    string
	serviceType string
	appName     string
	environment string

	maxRetries   int
	retryBackoff time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a new LIMA client from the nlu config section.
func NewClient(cfg config.NLUConfig, opts ...ClientOption) *Client {
	baseURL := strings.TrimRight(cfg.URL, "/")
	authURL := cfg.AuthURL
	if authURL == "" {
		authURL = baseURL + "/auth"
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = config.DefaultNLUTimeout
	}

	c := &Client{
		baseURL:   baseURL,
		authURL:   authURL,
		accountID: cfg.AccountID,
		password:  cfg.Password,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger:       slog.Default(),
		clientID:     cfg.ClientID,
		serviceType:  cfg.ServiceType,
		appName:      cfg.AppName,
		environment:  cfg.Environment,
		maxRetries:   cfg.MaxRetries,
		retryBackoff: 500 * time.Millisecond,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithRetries sets the retry configuration.
func WithRetries(max int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		c.maxRetries = max
		c.retryBackoff = backoff
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithUserAgent sets the User-Agent header on outbound requests.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.userAgent = ua
	}
}

package azure

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/rickgao/cognitive-hub/internal/config"
)

var (
	// ErrMissingKey is returned when no subscription key is configured.
	ErrMissingKey = errors.New("azure speech subscription key is required")

	// ErrStreamClosed is returned when sending audio after CloseSend or Close.
	ErrStreamClosed = errors.New("recognition stream closed")
)

// StatusError is returned when an Azure endpoint answers with an error status.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("azure %s: status %d: %s", e.Op, e.StatusCode, e.Body)
}

// Client implements session.ASRProvider and session.TTSProvider.
type Client struct {
	cfg        config.SpeechConfig
	httpClient *http.Client
	logger     *slog.Logger
	userAgent  string

	sttURL string
	ttsURL string
	tokens *tokenSource
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a speech client from the speech config section.
func NewClient(cfg config.SpeechConfig, opts ...ClientOption) *Client {
	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{},
		logger:     slog.Default(),
		sttURL:     "https://" + cfg.Region + ".stt.speech.microsoft.com/speech/recognition/conversation/cognitiveservices/v1",
		ttsURL:     "https://" + cfg.Region + ".tts.speech.microsoft.com/cognitiveservices/v1",
	}

	for _, opt := range opts {
		opt(c)
	}

	c.tokens = newTokenSource(cfg.TokenEndpoint, cfg.SubscriptionKey, c.httpClient)
	return c
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
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

// WithUserAgent sets the User-Agent header on outbound requests.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithEndpoints overrides the recognition and synthesis endpoints.
func WithEndpoints(sttURL, ttsURL string) ClientOption {
	return func(c *Client) {
		if sttURL != "" {
			c.sttURL = sttURL
		}
		if ttsURL != "" {
			c.ttsURL = ttsURL
		}
	}
}

func (c *Client) setCommonHeaders(req *http.Request, token string) {
	req.Header.Set("Authorization", "Bearer "+token)
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
}

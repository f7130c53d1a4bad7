package azure

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// tokenTTL is how long an issued token is reused. Azure tokens are valid
// for ten minutes.
const tokenTTL = 9 * time.Minute

// tokenSource fetches and caches issueToken bearer tokens.
type tokenSource struct {
	endpoint   string
	key        string
	httpClient *http.Client
	now        func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

func newTokenSource(endpoint, key string, hc *http.Client) *tokenSource {
	return &tokenSource{
		endpoint:   endpoint,
		key:        key,
		httpClient: hc,
		now:        time.Now,
	}
}

// Token returns a cached token or fetches a new one.
func (t *tokenSource) Token(ctx context.Context) (string, error) {
	if t.key == "" {
		return "", ErrMissingKey
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.token != "" && t.now().Before(t.expires) {
		return t.token, nil
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", t.key)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch token: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}
	if resp.StatusCode >= 400 {
		return "", &StatusError{Op: "issue token", StatusCode: resp.StatusCode, Body: string(body)}
	}

	t.token = strings.TrimSpace(string(body))
	t.expires = t.now().Add(tokenTTL)
	return t.token, nil
}

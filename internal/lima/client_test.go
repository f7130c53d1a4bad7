package lima

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rickgao/cognitive-hub/internal/config"
	"github.com/rickgao/cognitive-hub/internal/session"
)

func testConfig(url string) config.NLUConfig {
	return config.NLUConfig{
		URL:         url,
		AccountID:   "hub",
		Password:    "secret",
		ClientID:    "hub-lima-client",
		ServiceType: "luis",
		AppName:     "luis/robo-dispatch",
		Environment: "environment",
		Timeout:     time.Second,
	}
}

// newLimaServer returns a server implementing /auth and /transaction.
func newLimaServer(t *testing.T, transaction http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/auth", func(w http.ResponseWriter, r *http.Request) {
		var req authRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode auth request: %v", err)
		}
		if req.AccountID != "hub" || req.Password != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"access_token":"tok-1"}`))
	})
	mux.HandleFunc("/transaction", transaction)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestNewClient(t *testing.T) {
	t.Run("derives auth url", func(t *testing.T) {
		c := NewClient(testConfig("http://lima.local/"))
		if c.baseURL != "http://lima.local" {
			t.Errorf("baseURL = %q, want %q", c.baseURL, "http://lima.local")
		}
		if c.authURL != "http://lima.local/auth" {
			t.Errorf("authURL = %q, want %q", c.authURL, "http://lima.local/auth")
		}
	})

	t.Run("explicit auth url", func(t *testing.T) {
		cfg := testConfig("http://lima.local")
		cfg.AuthURL = "http://auth.local/login"
		c := NewClient(cfg)
		if c.authURL != "http://auth.local/login" {
			t.Errorf("authURL = %q, want %q", c.authURL, "http://auth.local/login")
		}
	})

	t.Run("default timeout", func(t *testing.T) {
		cfg := testConfig("http://lima.local")
		cfg.Timeout = 0
		c := NewClient(cfg)
		if c.httpClient.Timeout != config.DefaultNLUTimeout {
			t.Errorf("Timeout = %v, want %v", c.httpClient.Timeout, config.DefaultNLUTimeout)
		}
	})

	t.Run("with retries option", func(t *testing.T) {
		c := NewClient(testConfig("http://lima.local"), WithRetries(2, time.Millisecond))
		if c.maxRetries != 2 {
			t.Errorf("maxRetries = %d, want %d", c.maxRetries, 2)
		}
	})
}

func TestUnderstand(t *testing.T) {
	var got TransactionRequest
	srv := newLimaServer(t, func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie("access_token")
		if err != nil || cookie.Value != "tok-1" {
			t.Errorf("access_token cookie = %v, want tok-1", cookie)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode transaction: %v", err)
		}
		w.Write([]byte(`{"response":{"sessionId":"conv-7","intent":"launchClock"}}`))
	})

	c := NewClient(testConfig(srv.URL), WithUserAgent("cognitive-hub/test"))
	resp, err := c.Understand(context.Background(), session.NLURequest{
		Input:     "what time is it",
		SessionID: "conv-6",
		UserID:    "robot1",
	})
	if err != nil {
		t.Fatalf("Understand() error = %v", err)
	}

	if resp.SessionID != "conv-7" {
		t.Errorf("SessionID = %q, want %q", resp.SessionID, "conv-7")
	}
	if got.Input != "what time is it" || got.SessionID != "conv-6" || got.UserID != "robot1" {
		t.Errorf("request = %+v", got)
	}
	if got.ClientID != "hub-lima-client" || got.Type != "device" || got.AppName != "luis/robo-dispatch" {
		t.Errorf("request defaults = %+v", got)
	}

	data, _ := json.Marshal(resp)
	if string(data) != `{"response":{"sessionId":"conv-7","intent":"launchClock"}}` {
		t.Errorf("marshaled response = %s", data)
	}
}

func TestUnderstand_AuthRejected(t *testing.T) {
	srv := newLimaServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("transaction should not be called")
	})

	cfg := testConfig(srv.URL)
	cfg.Password = "wrong"
	_, err := NewClient(cfg).Understand(context.Background(), session.NLURequest{Input: "hi"})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("StatusCode = %d, want %d", apiErr.StatusCode, http.StatusUnauthorized)
	}
}

func TestUnderstand_MissingCredentials(t *testing.T) {
	cfg := testConfig("http://lima.local")
	cfg.AccountID = ""
	_, err := NewClient(cfg).Understand(context.Background(), session.NLURequest{Input: "hi"})
	if !errors.Is(err, ErrMissingCredentials) {
		t.Errorf("error = %v, want %v", err, ErrMissingCredentials)
	}
}

func TestTransaction_Retries(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		retries   int
		wantCalls int32
		wantErr   bool
	}{
		{"server error retried", http.StatusBadGateway, 2, 3, true},
		{"client error not retried", http.StatusBadRequest, 2, 1, true},
		{"no retries by default", http.StatusServiceUnavailable, 0, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := newLimaServer(t, func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
			})

			c := NewClient(testConfig(srv.URL), WithRetries(tt.retries, time.Millisecond))
			_, err := c.Transaction(context.Background(), TransactionRequest{Input: "hi"})
			if (err != nil) != tt.wantErr {
				t.Errorf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if calls.Load() != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls.Load(), tt.wantCalls)
			}
		})
	}
}

func TestAPIError(t *testing.T) {
	err := &APIError{StatusCode: 503, Message: "Service Unavailable"}
	if err.Error() != "lima api error 503: Service Unavailable" {
		t.Errorf("Error() = %q", err.Error())
	}

	tests := []struct {
		code int
		want bool
	}{
		{500, true},
		{503, true},
		{429, true},
		{400, false},
		{401, false},
		{404, false},
	}
	for _, tt := range tests {
		if got := (&APIError{StatusCode: tt.code}).IsRetryable(); got != tt.want {
			t.Errorf("IsRetryable(%d) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

package main

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/cognitive-hub/internal/auth"
	"github.com/rickgao/cognitive-hub/internal/config"
	"github.com/rickgao/cognitive-hub/internal/connection"
	"github.com/rickgao/cognitive-hub/internal/router"
)

type nopSocket string

func (s nopSocket) ID() string             { return string(s) }
func (s nopSocket) Emit(string, any) error { return nil }

func TestHandlers(t *testing.T) {
	m := connection.NewManager(connection.Deps{})
	_, err := m.AddConnection(connection.TypeDevice, nopSocket("sock-dev"), "robot-1")
	require.NoError(t, err)

	mux := http.NewServeMux()
	registerHandlers(mux, m, router.New(m, nil), time.Now(), slog.Default())

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthcheck", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var health struct {
		Status string           `json:"status"`
		Stats  connection.Stats `json:"connections"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "OK", health.Status)
	assert.Equal(t, 1, health.Stats.Devices)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/connections", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "robot-1: [sock-d]")

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/time", nil))
	var clock struct {
		Millis int64 `json:"millis"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &clock))
	assert.InDelta(t, time.Now().UnixMilli(), clock.Millis, 5000)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(config.LogConfig{Level: "warn", Format: "json"}, &buf)

	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"k":"v"`)
}

func TestTokenCmd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hub.yaml")
	require.NoError(t, os.WriteFile(path, []byte("auth:\n  secret: cmd-secret\n"), 0o600))

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"token", "robot-7", "--config", path, "--ttl", "1m"})
	require.NoError(t, root.Execute())

	token := strings.TrimSpace(out.String())
	accountID, err := auth.NewValidator("cmd-secret", config.DefaultAuthIssuer).AccountID(token)
	require.NoError(t, err)
	assert.Equal(t, "robot-7", accountID)
}

func TestVersionCmd(t *testing.T) {
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "dev")
}

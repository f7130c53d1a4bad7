package transport

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/cognitive-hub/internal/auth"
	"github.com/rickgao/cognitive-hub/internal/config"
	"github.com/rickgao/cognitive-hub/internal/connection"
	"github.com/rickgao/cognitive-hub/internal/model"
	"github.com/rickgao/cognitive-hub/internal/router"
)

const (
	testSecret = "transport-test-secret"
	testIssuer = "hub-test"
)

type testHub struct {
	server  *httptest.Server
	manager *connection.Manager
	issuer  *auth.Issuer
}

func newTestHub(t *testing.T, mutate func(*config.ServerConfig)) *testHub {
	t.Helper()

	cfg := config.Default().Server
	if mutate != nil {
		mutate(&cfg)
	}

	m := connection.NewManager(connection.Deps{})
	srv := NewServer(cfg, m, router.New(m, nil), auth.NewValidator(testSecret, testIssuer), slog.Default())
	mux := http.NewServeMux()
	srv.Register(mux)

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	t.Cleanup(srv.Close)

	return &testHub{
		server:  ts,
		manager: m,
		issuer:  auth.NewIssuer(testSecret, testIssuer),
	}
}

func (h *testHub) url(path string) string {
	return "ws" + strings.TrimPrefix(h.server.URL, "http") + path
}

func (h *testHub) dial(t *testing.T, path, accountID string) *websocket.Conn {
	t.Helper()

	token, err := h.issuer.Sign(accountID, time.Minute)
	require.NoError(t, err)

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	ws, _, err := websocket.DefaultDialer.Dial(h.url(path), header)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	return ws
}

func readFrame(t *testing.T, ws *websocket.Conn) model.Frame {
	t.Helper()

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f model.Frame
	require.NoError(t, ws.ReadJSON(&f))
	return f
}

func readHandshake(t *testing.T, ws *websocket.Conn) model.Message {
	t.Helper()

	f := readFrame(t, ws)
	require.Equal(t, model.EventMessage, f.Event)
	var msg model.Message
	require.NoError(t, json.Unmarshal(f.Data, &msg))
	require.Equal(t, model.MessageHandshake, msg.Event)
	return msg
}

func TestServer_RejectsMissingToken(t *testing.T) {
	hub := newTestHub(t, nil)

	_, resp, err := websocket.DefaultDialer.Dial(hub.url(config.DefaultDevicePath), nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, connection.Stats{}, hub.manager.Stats())
}

func TestServer_RejectsBadToken(t *testing.T) {
	hub := newTestHub(t, nil)

	token, err := auth.NewIssuer("other-secret", testIssuer).Sign("robot-1", time.Minute)
	require.NoError(t, err)

	_, resp, err := websocket.DefaultDialer.Dial(hub.url(config.DefaultDevicePath+"?token="+token), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestServer_RejectsOrigin(t *testing.T) {
	hub := newTestHub(t, func(cfg *config.ServerConfig) {
		cfg.AllowedOrigins = []string{"https://console.example"}
	})

	token, err := hub.issuer.Sign("op-1", time.Minute)
	require.NoError(t, err)

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	header.Set("Origin", "https://elsewhere.example")
	_, resp, err := websocket.DefaultDialer.Dial(hub.url(config.DefaultControllerPath), header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	header.Set("Origin", "https://console.example")
	ws, _, err := websocket.DefaultDialer.Dial(hub.url(config.DefaultControllerPath), header)
	require.NoError(t, err)
	defer ws.Close()
	readHandshake(t, ws)
}

func TestServer_Handshakes(t *testing.T) {
	hub := newTestHub(t, nil)

	tests := []struct {
		path       string
		wantSource string
		wantText   string
	}{
		{config.DefaultDevicePath, model.SourceHub, "DEVICE connection accepted"},
		{config.DefaultControllerPath, model.SourceController, "Controller connection accepted"},
		{config.DefaultAppPath, model.SourceHub, "APP connection accepted"},
	}

	for _, tt := range tests {
		ws := hub.dial(t, tt.path, "acct")
		msg := readHandshake(t, ws)
		assert.Equal(t, tt.wantSource, msg.Source, tt.path)
		assert.Equal(t, tt.wantText, msg.Message, tt.path)
	}

	assert.Eventually(t, func() bool {
		st := hub.manager.Stats()
		return st.Devices == 1 && st.Controllers == 1 && st.Apps == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestServer_SubscribeAndRelay(t *testing.T) {
	hub := newTestHub(t, nil)

	device := hub.dial(t, config.DefaultDevicePath, "robot-1")
	readHandshake(t, device)
	controller := hub.dial(t, config.DefaultControllerPath, "operator-1")
	readHandshake(t, controller)

	subscribe := `{"event":"command","data":{"id":"s1","type":"hubCommand","name":"subscribe","payload":{"connectionType":"device","accountId":"robot-1"},"createdAtTime":1}}`
	require.NoError(t, controller.WriteMessage(websocket.TextMessage, []byte(subscribe)))

	ack := readFrame(t, controller)
	require.Equal(t, model.EventCommand, ack.Event)
	cmd, err := model.ParseCommand(ack.Data)
	require.NoError(t, err)
	assert.Equal(t, model.NameNotification, cmd.Name)
	assert.Equal(t, "robot-1", cmd.TargetAccountID)

	status := `{"id":"c1","type":"command","name":"status","payload":{"battery":77},"createdAtTime":1700000000000}`
	require.NoError(t, device.WriteMessage(websocket.TextMessage, []byte(`{"event":"command","data":`+status+`}`)))

	relayed := readFrame(t, controller)
	assert.Equal(t, model.EventCommand, relayed.Event)
	assert.JSONEq(t, status, string(relayed.Data))
}

func TestServer_Timesync(t *testing.T) {
	hub := newTestHub(t, nil)

	ws := hub.dial(t, config.DefaultAppPath, "app-1")
	readHandshake(t, ws)

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`{"event":"timesync","data":{"id":"abc"}}`)))
	f := readFrame(t, ws)
	require.Equal(t, model.EventTimesync, f.Event)

	var resp struct {
		ID     string `json:"id"`
		Result int64  `json:"result"`
	}
	require.NoError(t, json.Unmarshal(f.Data, &resp))
	assert.Equal(t, "abc", resp.ID)
	assert.InDelta(t, time.Now().UnixMilli(), resp.Result, 5000)
}

func TestServer_BinaryAudio(t *testing.T) {
	hub := newTestHub(t, nil)

	ws := hub.dial(t, config.DefaultDevicePath, "robot-1")
	readHandshake(t, ws)

	require.NoError(t, ws.WriteMessage(websocket.BinaryMessage, make([]byte, 640)))

	assert.Eventually(t, func() bool {
		conn := hub.manager.ConnectionByAccountID("robot-1")
		return conn != nil && conn.Analytics().AudioBytesFrom == 640
	}, 2*time.Second, 10*time.Millisecond)
}

func TestServer_DisconnectRemovesConnection(t *testing.T) {
	hub := newTestHub(t, nil)

	ws := hub.dial(t, config.DefaultDevicePath, "robot-1")
	readHandshake(t, ws)
	require.Eventually(t, func() bool { return hub.manager.Stats().Devices == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	ws.Close()

	assert.Eventually(t, func() bool {
		return hub.manager.Stats().Devices == 0 && hub.manager.ConnectionByAccountID("robot-1") == nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSocket_EmitQueue(t *testing.T) {
	s := newSocket("sock-1", nil, 1, time.Second, time.Minute, slog.Default())

	require.NoError(t, s.Emit(model.EventMessage, map[string]string{"hello": "world"}))
	assert.ErrorIs(t, s.Emit(model.EventMessage, nil), ErrSendQueueFull)

	data := <-s.send
	assert.JSONEq(t, `{"event":"message","data":{"hello":"world"}}`, string(data))

	s.close()
	s.close()
	assert.ErrorIs(t, s.Emit(model.EventMessage, nil), ErrSocketClosed)
}

func TestSocket_EmitEncodeError(t *testing.T) {
	s := newSocket("sock-1", nil, 1, time.Second, time.Minute, slog.Default())
	assert.Error(t, s.Emit(model.EventMessage, func() {}))
}

package skills

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/cognitive-hub/internal/model"
)

var errNotConnected = errors.New("remote skill not connected")

// remote proxies events to a skill service and turns its messages into
// asynchronous replies.
type remote struct {
	skillBase
	deps   Deps
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	writeMu sync.Mutex

	mu     sync.RWMutex
	conn   *websocket.Conn
	closed bool
}

func newRemote(data SkillData, deps Deps) (Skill, error) {
	if data.Service == nil || data.Service.URL == "" || data.Service.AuthURL == "" {
		return nil, fmt.Errorf("%w: %s needs service url and auth_url", ErrSkillNotConfigured, data.ID)
	}
	if deps.AccountID == "" || deps.Password == "" {
		return nil, fmt.Errorf("%w: %s needs device credentials", ErrSkillNotConfigured, data.ID)
	}
	if deps.HTTPClient == nil {
		deps.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if deps.Dialer == nil {
		deps.Dialer = &websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.OnReply == nil {
		deps.OnReply = func(Reply) {}
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &remote{
		skillBase: skillBase{data: data},
		deps:      deps,
		logger:    deps.Logger.With("skill", data.ID),
		ctx:       ctx,
		cancel:    cancel,
	}
	go r.connect()
	return r, nil
}

// connect logs in and dials the skill socket. Failures leave the skill
// silent for the rest of the connection.
func (r *remote) connect() {
	token, err := r.token(r.ctx)
	if err != nil {
		if r.ctx.Err() == nil {
			r.logger.Warn("remote skill login failed", "error", err)
		}
		return
	}

	target, err := socketURL(r.data.Service)
	if err != nil {
		r.logger.Warn("remote skill url invalid", "error", err)
		return
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	if r.deps.UserAgent != "" {
		header.Set("User-Agent", r.deps.UserAgent)
	}

	conn, _, err := r.deps.Dialer.DialContext(r.ctx, target, header)
	if err != nil {
		if r.ctx.Err() == nil {
			r.logger.Warn("remote skill dial failed", "url", target, "error", err)
		}
		return
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		conn.Close()
		return
	}
	r.conn = conn
	r.mu.Unlock()

	r.logger.Debug("remote skill connected", "url", target)
	r.readLoop(conn)
}

type tokenRequest struct {
	AccountID string `json:"accountId"`
	Password  string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

func (r *remote) token(ctx context.Context) (string, error) {
	body, err := json.Marshal(tokenRequest{AccountID: r.deps.AccountID, Password: r.deps.Password})
	if err != nil {
		return "", fmt.Errorf("marshal login: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.data.Service.AuthURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.deps.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("login: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("login: status %d", resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("decode login response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", errors.New("login response has no access_token")
	}
	return tr.AccessToken, nil
}

// socketURL maps the service url onto its websocket endpoint.
func socketURL(svc *ServiceData) (string, error) {
	u, err := url.Parse(svc.URL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	path := svc.Path
	if path == "" {
		path = DefaultSocketPath
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + path
	return u.String(), nil
}

type remoteMessage struct {
	Data json.RawMessage `json:"data"`
}

func (r *remote) readLoop(conn *websocket.Conn) {
	defer func() {
		r.mu.Lock()
		r.conn = nil
		r.mu.Unlock()
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if r.ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				r.logger.Debug("remote skill read failed", "error", err)
			}
			return
		}

		var frame model.Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			r.logger.Debug("remote skill sent malformed frame", "error", err)
			continue
		}
		if frame.Event != "message" {
			r.logger.Debug("remote skill frame ignored", "event", frame.Event)
			continue
		}

		var msg remoteMessage
		if len(frame.Data) > 0 {
			if err := json.Unmarshal(frame.Data, &msg); err != nil {
				r.logger.Debug("remote skill sent malformed message", "error", err)
				continue
			}
		}
		r.deps.OnReply(r.replyFrom(msg.Data))
	}
}

func (r *remote) replyFrom(data json.RawMessage) Reply {
	var text struct {
		Reply string `json:"reply"`
	}
	json.Unmarshal(data, &text)

	return Reply{
		Source:   "CS:" + r.data.ID,
		SkillID:  r.data.ID,
		Priority: r.data.Priority,
		Text:     text.Reply,
		Data:     data,
		Speak:    r.data.Speak,
	}
}

// Handle forwards final transcripts and NLU results. Replies arrive later
// through Deps.OnReply.
func (r *remote) Handle(ev Event) *Reply {
	var err error
	switch e := ev.(type) {
	case SpeechSessionEnded:
		err = r.send(model.NameASREnd, map[string]string{"text": e.Text})
	case NLUSessionEnded:
		err = r.send(model.NameNLUEnd, e.Response)
	default:
		return nil
	}
	if err != nil {
		r.logger.Debug("remote skill event dropped", "error", err)
	}
	return nil
}

func (r *remote) send(event string, data any) error {
	r.mu.RLock()
	conn := r.conn
	r.mu.RUnlock()
	if conn == nil {
		return errNotConnected
	}

	frame, err := model.NewFrame(event, data)
	if err != nil {
		return err
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteJSON(frame)
}

// Close disconnects from the skill service.
func (r *remote) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	conn := r.conn
	r.mu.Unlock()

	r.cancel()

	if conn != nil {
		r.writeMu.Lock()
		conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		r.writeMu.Unlock()
		return conn.Close()
	}
	return nil
}

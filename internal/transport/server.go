package transport

import (
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rickgao/cognitive-hub/internal/config"
	"github.com/rickgao/cognitive-hub/internal/connection"
	"github.com/rickgao/cognitive-hub/internal/model"
	"github.com/rickgao/cognitive-hub/internal/router"
)

// Authenticator resolves a request to an account id.
type Authenticator interface {
	Authenticate(r *http.Request) (string, error)
}

// Server upgrades hub sockets and wires them to the Manager and Router.
type Server struct {
	cfg      config.ServerConfig
	manager  *connection.Manager
	router   *router.Router
	auth     Authenticator
	upgrader websocket.Upgrader
	logger   *slog.Logger

	sockets sync.Map // socket id → *socket
}

// NewServer creates a Server. Zero values in cfg fall back to the config
// package defaults.
func NewServer(cfg config.ServerConfig, manager *connection.Manager, rt *router.Router, auth Authenticator, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = config.DefaultWriteTimeout
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = config.DefaultPingInterval
	}
	if cfg.PongTimeout <= 0 {
		cfg.PongTimeout = config.DefaultPongTimeout
	}
	if cfg.SendBufferSize <= 0 {
		cfg.SendBufferSize = config.DefaultSendBufferSize
	}
	if cfg.MaxMessageBytes <= 0 {
		cfg.MaxMessageBytes = config.DefaultMaxMessageBytes
	}

	s := &Server{
		cfg:     cfg,
		manager: manager,
		router:  rt,
		auth:    auth,
		logger:  logger,
	}
	s.upgrader = websocket.Upgrader{
		HandshakeTimeout: 10 * time.Second,
		CheckOrigin:      s.checkOrigin,
	}
	return s
}

// Register mounts the device, controller and app endpoints on mux.
func (s *Server) Register(mux *http.ServeMux) {
	paths := []struct {
		path string
		typ  connection.Type
	}{
		{s.cfg.DevicePath, connection.TypeDevice},
		{s.cfg.ControllerPath, connection.TypeController},
		{s.cfg.AppPath, connection.TypeApp},
	}
	for _, p := range paths {
		if p.path == "" {
			continue
		}
		mux.Handle(p.path, s.Handler(p.typ))
	}
}

// Handler returns the endpoint for one connection type.
func (s *Server) Handler(typ connection.Type) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.serve(typ, w, r)
	})
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if slices.Contains(s.cfg.AllowedOrigins, origin) {
		return true
	}
	s.logger.Debug("origin rejected", "origin", origin, "error", ErrOriginRejected)
	return false
}

func (s *Server) serve(typ connection.Type, w http.ResponseWriter, r *http.Request) {
	accountID, err := s.auth.Authenticate(r)
	if err != nil {
		s.logger.Info("socket rejected", "type", typ, "remote_addr", r.RemoteAddr, "error", err)
		http.Error(w, ErrUnauthorized.Error(), http.StatusUnauthorized)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		s.logger.Debug("upgrade failed", "type", typ, "error", err)
		return
	}

	id := uuid.NewString()
	logger := s.logger.With("type", typ, "socket_id", id, "account_id", accountID)
	sock := newSocket(id, ws, s.cfg.SendBufferSize, s.cfg.WriteTimeout, s.cfg.PingInterval, logger)

	conn, err := s.manager.AddConnection(typ, sock, accountID)
	if err != nil {
		logger.Warn("failed to add connection", "error", err)
		_ = ws.Close()
		return
	}

	s.sockets.Store(id, sock)
	go sock.writeLoop()
	conn.SendMessage(handshake(typ))

	s.readLoop(conn, sock, ws)
}

// readLoop dispatches frames until the peer goes away, then unregisters
// the connection.
func (s *Server) readLoop(conn *connection.Connection, sock *socket, ws *websocket.Conn) {
	defer func() {
		s.sockets.Delete(sock.id)
		s.manager.RemoveConnection(conn.Type(), sock)
		sock.close()
	}()

	ws.SetReadLimit(s.cfg.MaxMessageBytes)
	_ = ws.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))
	})

	for {
		msgType, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				sock.logger.Warn("read error", "error", err)
			} else {
				sock.logger.Debug("read loop ended", "error", err)
			}
			return
		}
		_ = ws.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))

		switch msgType {
		case websocket.TextMessage:
			s.router.HandleText(conn, data)
		case websocket.BinaryMessage:
			s.router.HandleBinary(conn, data)
		}
	}
}

// Close closes every open socket. Their read loops then unregister them.
func (s *Server) Close() {
	s.sockets.Range(func(_, v any) bool {
		v.(*socket).close()
		return true
	})
}

func handshake(typ connection.Type) model.Message {
	switch typ {
	case connection.TypeController:
		return model.Message{Source: model.SourceController, Event: model.MessageHandshake, Message: "Controller connection accepted"}
	case connection.TypeApp:
		return model.Message{Source: model.SourceHub, Event: model.MessageHandshake, Message: "APP connection accepted"}
	default:
		return model.Message{Source: model.SourceHub, Event: model.MessageHandshake, Message: "DEVICE connection accepted"}
	}
}

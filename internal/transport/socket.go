package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/cognitive-hub/internal/model"
)

// Errors
var (
	ErrSocketClosed   = errors.New("socket closed")
	ErrSendQueueFull  = errors.New("send queue full")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrOriginRejected = errors.New("origin not allowed")
)

// socket is one upgraded websocket. It implements connection.Socket.
type socket struct {
	id     string
	conn   *websocket.Conn
	logger *slog.Logger

	writeTimeout time.Duration
	pingInterval time.Duration

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newSocket(id string, conn *websocket.Conn, bufferSize int, writeTimeout, pingInterval time.Duration, logger *slog.Logger) *socket {
	return &socket{
		id:           id,
		conn:         conn,
		logger:       logger,
		writeTimeout: writeTimeout,
		pingInterval: pingInterval,
		send:         make(chan []byte, bufferSize),
		done:         make(chan struct{}),
	}
}

// ID returns the socket id.
func (s *socket) ID() string { return s.id }

// Emit queues a frame for the writer.
func (s *socket) Emit(event string, payload any) error {
	frame, err := model.NewFrame(event, payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", event, err)
	}
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("encode %s frame: %w", event, err)
	}

	select {
	case <-s.done:
		return ErrSocketClosed
	default:
	}

	select {
	case s.send <- data:
		return nil
	case <-s.done:
		return ErrSocketClosed
	default:
		s.logger.Warn("send queue full, dropping frame", "event", event, "queue", cap(s.send))
		return ErrSendQueueFull
	}
}

// close stops the writer. The writer sends a close frame and closes the
// underlying connection.
func (s *socket) close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// writeLoop drains the send queue and keeps the connection alive with
// pings until the socket is closed or a write fails.
func (s *socket) writeLoop() {
	ticker := time.NewTicker(s.pingInterval)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case data := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.logger.Debug("write failed", "error", err)
				s.close()
				return
			}

		case <-ticker.C:
			deadline := time.Now().Add(s.writeTimeout)
			if err := s.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				s.logger.Debug("failed to send ping", "error", err)
				s.close()
				return
			}

		case <-s.done:
			_ = s.conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second),
			)
			return
		}
	}
}

package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rickgao/cognitive-hub/internal/connection"
	"github.com/rickgao/cognitive-hub/internal/model"
)

// Router parses inbound frames and routes them to the Manager and the
// sending Connection.
type Router struct {
	manager *connection.Manager
	logger  *slog.Logger

	mu            sync.Mutex
	received      int64
	routed        int64
	parseErrors   int64
	unknownFrames int64
}

// New creates a Router over manager.
func New(manager *connection.Manager, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		manager: manager,
		logger:  logger,
	}
}

// Stats returns current statistics.
func (r *Router) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Stats{
		FramesReceived: r.received,
		FramesRouted:   r.routed,
		ParseErrors:    r.parseErrors,
		UnknownFrames:  r.unknownFrames,
	}
}

// HandleText routes one text frame from conn.
func (r *Router) HandleText(conn *connection.Connection, data []byte) {
	r.count(&r.received)

	var frame model.Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		r.logger.Debug("failed to parse frame", "socket_id", conn.SocketID(), "error", err)
		r.count(&r.parseErrors)
		return
	}

	err := r.route(conn, frame)
	switch {
	case err == nil:
		r.count(&r.routed)
	case errors.Is(err, ErrUnknownEvent), errors.Is(err, ErrUnsupportedSource):
		r.logger.Debug("skipping frame", "type", conn.Type(), "socket_id", conn.SocketID(), "event", frame.Event)
		r.count(&r.unknownFrames)
	default:
		r.logger.Debug("failed to route frame",
			"type", conn.Type(),
			"socket_id", conn.SocketID(),
			"event", frame.Event,
			"error", err,
		)
		r.count(&r.parseErrors)
	}
}

// HandleBinary routes a binary frame from conn as an asrAudio chunk.
func (r *Router) HandleBinary(conn *connection.Connection, data []byte) {
	r.count(&r.received)
	if conn.Type() != connection.TypeDevice {
		r.count(&r.unknownFrames)
		return
	}
	if err := r.handleAudio(conn, data); err != nil {
		r.logger.Debug("binary audio dropped", "socket_id", conn.SocketID(), "error", err)
		r.count(&r.parseErrors)
		return
	}
	r.count(&r.routed)
}

func (r *Router) count(n *int64) {
	r.mu.Lock()
	*n++
	r.mu.Unlock()
}

func (r *Router) route(conn *connection.Connection, frame model.Frame) error {
	switch frame.Event {
	case model.EventCommand:
		cmd, err := model.ParseCommand(frame.Data)
		if err != nil {
			return fmt.Errorf("parse command: %w", err)
		}
		return r.handleCommand(conn, cmd)

	case model.EventTimesync:
		return r.handleTimesync(conn, frame.Data)
	}

	if conn.Type() != connection.TypeDevice {
		return ErrUnsupportedSource
	}

	switch frame.Event {
	case model.EventMessage:
		return r.handleDeviceMessage(conn, frame.Data)

	case model.EventASRAudioStart:
		return conn.StartAudio()

	case model.EventASRAudio:
		var chunk []byte
		if err := json.Unmarshal(frame.Data, &chunk); err != nil {
			return fmt.Errorf("parse audio: %w", err)
		}
		return r.handleAudio(conn, chunk)

	case model.EventASRAudioEnd:
		return conn.EndAudio()

	case model.EventBase64Photo:
		var photo string
		if err := json.Unmarshal(frame.Data, &photo); err != nil {
			return fmt.Errorf("parse photo: %w", err)
		}
		conn.OnBase64Photo(photo)
		return nil

	default:
		return ErrUnknownEvent
	}
}

func (r *Router) handleCommand(conn *connection.Connection, cmd model.Command) error {
	r.manager.OnAnalyticsEvent(conn.Type(), conn.SocketID(), connection.CommandFrom, string(cmd.Type))

	switch cmd.Type {
	case model.CommandTypeSync:
		return r.handleSync(conn, cmd)
	case model.CommandTypeHub:
		return r.handleHubCommand(conn, cmd)
	}

	switch conn.Type() {
	case connection.TypeDevice:
		r.manager.BroadcastDeviceCommand(conn.AccountID(), cmd)
		return nil

	case connection.TypeController:
		if cmd.TargetAccountID == "" {
			return nil
		}
		r.manager.OnAnalyticsEvent(conn.Type(), conn.SocketID(), connection.CommandTo, string(cmd.Type))
		r.manager.SendCommandToTarget(connection.TypeDevice, cmd.TargetAccountID, cmd)
		return nil

	default:
		return ErrUnsupportedSource
	}
}

func (r *Router) handleSync(conn *connection.Connection, cmd model.Command) error {
	if cmd.Name != model.NameSyncOffset {
		return nil
	}
	var p model.SyncOffsetPayload
	if err := cmd.DecodePayload(&p); err != nil {
		return fmt.Errorf("decode sync payload: %w", err)
	}
	if p.SyncOffset == nil {
		return nil
	}
	conn.OnSyncOffset(*p.SyncOffset)
	return nil
}

func (r *Router) handleHubCommand(conn *connection.Connection, cmd model.Command) error {
	switch cmd.Name {
	case model.NameTTS:
		return conn.HandleTTSCommand(cmd)

	case model.NameNLU:
		return conn.HandleNLUCommand(cmd)

	case model.NameSubscribe, model.NameUnsubscribe:
		if conn.Type() != connection.TypeController {
			return ErrUnsupportedSource
		}
		var p model.SubscribePayload
		if err := cmd.DecodePayload(&p); err != nil {
			return fmt.Errorf("decode subscribe payload: %w", err)
		}
		if connection.Type(p.ConnectionType) != connection.TypeDevice || p.AccountID == "" {
			return nil
		}
		if cmd.Name == model.NameSubscribe {
			return r.subscribe(conn, p.AccountID)
		}
		return r.unsubscribe(conn, p.AccountID)

	default:
		return nil
	}
}

func (r *Router) subscribe(conn *connection.Connection, accountID string) error {
	if _, err := r.manager.SubscribeToConnection(connection.TypeDevice, accountID, conn.Socket()); err != nil {
		return fmt.Errorf("subscribe to %s: %w", accountID, err)
	}
	conn.SendCommand(notification(model.NotificationSubscribedTo, accountID, "subscribed to "+accountID))
	return nil
}

func (r *Router) unsubscribe(conn *connection.Connection, accountID string) error {
	n := r.manager.UnsubscribeSubscriber(accountID, conn.SocketID())
	r.logger.Debug("unsubscribed", "socket_id", conn.SocketID(), "target_account_id", accountID, "removed", n)
	conn.SendCommand(notification(model.NotificationUnsubscribedFrom, accountID, "unsubscribed from "+accountID))
	return nil
}

// notification builds the hubCommand acknowledging a subscription change.
func notification(event, targetAccountID, message string) model.Command {
	cmd := model.NewCommand(model.CommandTypeHub, model.NameNotification, model.SourceController, targetAccountID, model.NotificationPayload{
		Event:           event,
		TargetAccountID: targetAccountID,
	})
	cmd.Message = message
	return cmd
}

func (r *Router) handleDeviceMessage(conn *connection.Connection, data json.RawMessage) error {
	if len(data) == 0 {
		return errors.New("empty message")
	}
	var env messageEnvelope
	_ = json.Unmarshal(data, &env)

	r.manager.OnAnalyticsEvent(conn.Type(), conn.SocketID(), connection.MessageFrom, env.Event)
	r.manager.BroadcastDeviceMessage(conn.AccountID(), map[string]json.RawMessage{"message": data})
	return nil
}

func (r *Router) handleAudio(conn *connection.Connection, chunk []byte) error {
	if len(chunk) == 0 {
		return errors.New("empty audio chunk")
	}
	r.manager.OnAnalyticsEvent(conn.Type(), conn.SocketID(), connection.AudioBytesFrom, len(chunk))
	return conn.ProvideAudio(chunk)
}

func (r *Router) handleTimesync(conn *connection.Connection, data json.RawMessage) error {
	var req model.TimesyncRequest
	if len(data) > 0 {
		if err := json.Unmarshal(data, &req); err != nil {
			return fmt.Errorf("parse timesync: %w", err)
		}
	}
	conn.EmitEvent(model.EventTimesync, model.TimesyncResponse{ID: req.ID, Result: model.NowMillis()})
	return nil
}

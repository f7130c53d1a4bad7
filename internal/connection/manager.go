package connection

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/rickgao/cognitive-hub/internal/model"
)

// Manager is the registry of live connections and the subscription table.
type Manager struct {
	deps   Deps
	logger *slog.Logger

	mu               sync.RWMutex
	connections      map[Type]map[string]*Connection // type → socket id → connection
	devicesByAccount map[string]*Connection
	subscriptions    map[string][]*Subscription // device account id → subscriptions
	subCount         int
}

// NewManager creates an empty Manager.
func NewManager(deps Deps) *Manager {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	return &Manager{
		deps:   deps,
		logger: deps.Logger,
		connections: map[Type]map[string]*Connection{
			TypeDevice:     make(map[string]*Connection),
			TypeController: make(map[string]*Connection),
			TypeApp:        make(map[string]*Connection),
		},
		devicesByAccount: make(map[string]*Connection),
		subscriptions:    make(map[string][]*Subscription),
	}
}

// AddConnection registers a socket. A device with an account id becomes the
// account's indexed device, replacing any earlier one.
func (m *Manager) AddConnection(typ Type, socket Socket, accountID string) (*Connection, error) {
	if !typ.Valid() {
		return nil, ErrUnknownType
	}
	if socket == nil || socket.ID() == "" {
		return nil, ErrInvalidSocket
	}

	conn := newConnection(m, typ, socket, accountID)

	m.mu.Lock()
	replaced := m.connections[typ][conn.socketID]
	m.connections[typ][conn.socketID] = conn
	if replaced != nil && replaced.accountID != accountID && m.devicesByAccount[replaced.accountID] == replaced {
		delete(m.devicesByAccount, replaced.accountID)
	}
	if typ == TypeDevice && accountID != "" {
		m.devicesByAccount[accountID] = conn
	}
	m.mu.Unlock()

	if replaced != nil {
		replaced.Dispose()
	} else if m.deps.Metrics != nil {
		m.deps.Metrics.Connections.WithLabelValues(string(typ)).Inc()
	}

	if typ == TypeDevice && m.deps.Skills != nil {
		go conn.initSkills()
	}

	m.logger.Info("connection added", "type", typ, "socket_id", conn.socketID, "account_id", accountID)
	return conn, nil
}

// RemoveConnection unregisters and disposes the socket's connection. The
// device account index is cleared only if it still refers to this
// connection. Subscriptions owned by a removed controller are dropped;
// subscriptions targeting a removed device are kept.
func (m *Manager) RemoveConnection(typ Type, socket Socket) {
	if socket == nil || !typ.Valid() {
		return
	}
	socketID := socket.ID()

	m.mu.Lock()
	conn := m.connections[typ][socketID]
	if conn == nil {
		m.mu.Unlock()
		return
	}
	delete(m.connections[typ], socketID)
	if typ == TypeDevice && conn.accountID != "" && m.devicesByAccount[conn.accountID] == conn {
		delete(m.devicesByAccount, conn.accountID)
	}
	var dropped []*Subscription
	if typ == TypeController {
		dropped = m.removeSubscriptionsLocked(func(s *Subscription) bool {
			return s.SubscriberSocketID == socketID
		})
	}
	m.mu.Unlock()

	for _, s := range dropped {
		s.Dispose()
	}
	conn.Dispose()

	if m.deps.Metrics != nil {
		m.deps.Metrics.Connections.WithLabelValues(string(typ)).Dec()
	}
	m.logger.Info("connection removed",
		"type", typ,
		"socket_id", socketID,
		"account_id", conn.accountID,
		"subscriptions_dropped", len(dropped),
	)
}

// Connection returns the connection of a socket, or nil.
func (m *Manager) Connection(typ Type, socketID string) *Connection {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connections[typ][socketID]
}

// ConnectionByAccountID returns the indexed device of an account, or nil.
func (m *Manager) ConnectionByAccountID(accountID string) *Connection {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.devicesByAccount[accountID]
}

// Connections returns the connections of a type ordered by account and
// socket id.
func (m *Manager) Connections(typ Type) []*Connection {
	m.mu.RLock()
	out := make([]*Connection, 0, len(m.connections[typ]))
	for _, c := range m.connections[typ] {
		out = append(out, c)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].accountID != out[j].accountID {
			return out[i].accountID < out[j].accountID
		}
		return out[i].socketID < out[j].socketID
	})
	return out
}

// SubscribeToConnection subscribes the controller owning subscriberSocket
// to a device account. Every call adds a subscription, so repeated calls
// deliver repeatedly.
func (m *Manager) SubscribeToConnection(typ Type, targetAccountID string, subscriberSocket Socket) (*Subscription, error) {
	if typ != TypeDevice {
		return nil, ErrUnsupportedTarget
	}
	if targetAccountID == "" {
		return nil, ErrMissingAccount
	}
	if subscriberSocket == nil || subscriberSocket.ID() == "" {
		return nil, ErrInvalidSocket
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	subscriber := m.connections[TypeController][subscriberSocket.ID()]
	if subscriber == nil {
		return nil, ErrNotController
	}

	sub := NewSubscription(targetAccountID, subscriber.accountID, subscriber.socketID,
		subscriber.SendCommand,
		func(msg any) {
			subscriber.OnAnalyticsEvent(MessageTo, nil)
			subscriber.SendMessage(msg)
		},
	)
	m.subscriptions[targetAccountID] = append(m.subscriptions[targetAccountID], sub)
	m.setSubCountLocked(m.subCount + 1)

	m.logger.Debug("subscribed",
		"target_account_id", targetAccountID,
		"subscriber_account_id", subscriber.accountID,
		"subscription_id", sub.ID,
	)
	return sub, nil
}

// UnsubscribeFromConnection removes every subscription to a device account
// and returns how many were removed.
func (m *Manager) UnsubscribeFromConnection(typ Type, accountID string) int {
	if typ != TypeDevice {
		return 0
	}

	m.mu.Lock()
	removed := m.subscriptions[accountID]
	delete(m.subscriptions, accountID)
	m.setSubCountLocked(m.subCount - len(removed))
	m.mu.Unlock()

	for _, s := range removed {
		s.Dispose()
	}
	return len(removed)
}

// Unsubscribe removes one subscription by id.
func (m *Manager) Unsubscribe(id string) bool {
	m.mu.Lock()
	removed := m.removeSubscriptionsLocked(func(s *Subscription) bool { return s.ID == id })
	m.mu.Unlock()

	for _, s := range removed {
		s.Dispose()
	}
	return len(removed) > 0
}

// UnsubscribeSubscriber removes one controller's subscriptions to a device
// account and returns how many were removed.
func (m *Manager) UnsubscribeSubscriber(targetAccountID, subscriberSocketID string) int {
	m.mu.Lock()
	var removed []*Subscription
	if subs, ok := m.subscriptions[targetAccountID]; ok {
		kept := subs[:0:0]
		for _, s := range subs {
			if s.SubscriberSocketID == subscriberSocketID {
				removed = append(removed, s)
			} else {
				kept = append(kept, s)
			}
		}
		m.storeSubscriptionsLocked(targetAccountID, kept)
		m.setSubCountLocked(m.subCount - len(removed))
	}
	m.mu.Unlock()

	for _, s := range removed {
		s.Dispose()
	}
	return len(removed)
}

// Subscriptions returns the subscriptions to a device account in insertion
// order.
func (m *Manager) Subscriptions(accountID string) []*Subscription {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*Subscription(nil), m.subscriptions[accountID]...)
}

// removeSubscriptionsLocked removes matching subscriptions from every
// account. Caller holds m.mu.
func (m *Manager) removeSubscriptionsLocked(match func(*Subscription) bool) []*Subscription {
	var removed []*Subscription
	for accountID, subs := range m.subscriptions {
		kept := subs[:0:0]
		for _, s := range subs {
			if match(s) {
				removed = append(removed, s)
			} else {
				kept = append(kept, s)
			}
		}
		if len(kept) != len(subs) {
			m.storeSubscriptionsLocked(accountID, kept)
		}
	}
	m.setSubCountLocked(m.subCount - len(removed))
	return removed
}

func (m *Manager) storeSubscriptionsLocked(accountID string, subs []*Subscription) {
	if len(subs) == 0 {
		delete(m.subscriptions, accountID)
		return
	}
	m.subscriptions[accountID] = subs
}

func (m *Manager) setSubCountLocked(n int) {
	m.subCount = n
	if m.deps.Metrics != nil {
		m.deps.Metrics.Subscriptions.Set(float64(n))
	}
}

// BroadcastDeviceCommand delivers a command to every subscriber of a device
// account, in subscription order.
func (m *Manager) BroadcastDeviceCommand(accountID string, cmd model.Command) {
	for _, s := range m.Subscriptions(accountID) {
		s.OnCommand(cmd)
	}
}

// BroadcastDeviceMessage delivers a message to every subscriber of a device
// account, in subscription order.
func (m *Manager) BroadcastDeviceMessage(accountID string, msg any) {
	for _, s := range m.Subscriptions(accountID) {
		s.OnMessage(msg)
	}
}

// SendCommandToTarget sends a command to the indexed device of an account.
// It reports whether the target was connected.
func (m *Manager) SendCommandToTarget(typ Type, targetAccountID string, cmd model.Command) bool {
	conn := m.target(typ, targetAccountID)
	if conn == nil {
		m.logger.Debug("command target not connected", "type", typ, "target_account_id", targetAccountID)
		return false
	}
	conn.SendCommand(cmd)
	return true
}

// EmitEventToTarget sends a named event to the indexed device of an
// account. It reports whether the target was connected.
func (m *Manager) EmitEventToTarget(typ Type, targetAccountID, event string, data any) bool {
	conn := m.target(typ, targetAccountID)
	if conn == nil {
		m.logger.Debug("event target not connected", "type", typ, "target_account_id", targetAccountID, "event", event)
		return false
	}
	conn.EmitEvent(event, data)
	return true
}

// target resolves an account to its connection. Only devices are indexed
// by account.
func (m *Manager) target(typ Type, accountID string) *Connection {
	if typ != TypeDevice {
		return nil
	}
	return m.ConnectionByAccountID(accountID)
}

// OnAnalyticsEvent updates a counter on the socket's connection, if any.
func (m *Manager) OnAnalyticsEvent(typ Type, socketID string, kind AnalyticsKind, data any) {
	conn := m.Connection(typ, socketID)
	if conn == nil {
		return
	}
	conn.OnAnalyticsEvent(kind, data)

	if m.deps.Metrics == nil {
		return
	}
	switch kind {
	case CommandFrom:
		cmdType, _ := data.(string)
		m.deps.Metrics.CommandsFrom.WithLabelValues(string(typ), cmdType).Inc()
	case MessageFrom:
		m.deps.Metrics.MessagesFrom.WithLabelValues(string(typ)).Inc()
	case AudioBytesFrom:
		if n, ok := data.(int); ok {
			m.deps.Metrics.AudioBytesFrom.Add(float64(n))
		}
	}
}

// Stats counts live connections and subscriptions.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Stats{
		Devices:       len(m.connections[TypeDevice]),
		Controllers:   len(m.connections[TypeController]),
		Apps:          len(m.connections[TypeApp]),
		Subscriptions: m.subCount,
	}
}

// Close disposes every connection. Used on shutdown.
func (m *Manager) Close() {
	m.mu.Lock()
	var all []*Connection
	for _, conns := range m.connections {
		for _, c := range conns {
			all = append(all, c)
		}
	}
	m.mu.Unlock()

	for _, c := range all {
		c.Dispose()
	}
}

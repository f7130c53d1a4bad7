package connection

import (
	"sync"

	"github.com/google/uuid"

	"github.com/rickgao/cognitive-hub/internal/model"
)

// Subscription routes a device's commands and messages to one controller.
type Subscription struct {
	ID                  string
	TargetAccountID     string
	SubscriberAccountID string
	SubscriberSocketID  string

	mu        sync.RWMutex
	onCommand func(model.Command)
	onMessage func(any)
}

// NewSubscription creates a subscription delivering to the given callbacks.
func NewSubscription(targetAccountID, subscriberAccountID, subscriberSocketID string, onCommand func(model.Command), onMessage func(any)) *Subscription {
	return &Subscription{
		ID:                  uuid.NewString(),
		TargetAccountID:     targetAccountID,
		SubscriberAccountID: subscriberAccountID,
		SubscriberSocketID:  subscriberSocketID,
		onCommand:           onCommand,
		onMessage:           onMessage,
	}
}

// OnCommand delivers a command. No-op once disposed.
func (s *Subscription) OnCommand(cmd model.Command) {
	s.mu.RLock()
	fn := s.onCommand
	s.mu.RUnlock()
	if fn != nil {
		fn(cmd)
	}
}

// OnMessage delivers a message. No-op once disposed.
func (s *Subscription) OnMessage(msg any) {
	s.mu.RLock()
	fn := s.onMessage
	s.mu.RUnlock()
	if fn != nil {
		fn(msg)
	}
}

// Dispose detaches both callbacks. A delivery already in progress completes.
func (s *Subscription) Dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onCommand = nil
	s.onMessage = nil
}

// Disposed reports whether Dispose has been called.
func (s *Subscription) Disposed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.onCommand == nil && s.onMessage == nil
}

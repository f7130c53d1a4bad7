package session

import (
	"context"
	"log/slog"
	"sync"
)

// NLUHandler runs one understanding request for a target account.
type NLUHandler struct {
	provider        NLUProvider
	targetAccountID string
	sessionID       string
	onEvent         func(NLUEvent)
	logger          *slog.Logger

	mu       sync.Mutex
	cancel   context.CancelFunc
	started  bool
	disposed bool
	done     chan struct{}
}

// NewNLUHandler creates a handler. sessionID is the conversation id of the
// previous response, or empty for a new conversation.
func NewNLUHandler(provider NLUProvider, targetAccountID, sessionID string, onEvent func(NLUEvent), logger *slog.Logger) *NLUHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if onEvent == nil {
		onEvent = func(NLUEvent) {}
	}
	return &NLUHandler{
		provider:        provider,
		targetAccountID: targetAccountID,
		sessionID:       sessionID,
		onEvent:         onEvent,
		logger:          logger.With("session", KindNLU, "target_account_id", targetAccountID),
		done:            make(chan struct{}),
	}
}

// TargetAccountID returns the account the request is made for.
func (h *NLUHandler) TargetAccountID() string {
	return h.targetAccountID
}

// Start sends the request in the background. Events follow the order
// NLUStart, then NLUEnd or NLUError.
func (h *NLUHandler) Start(ctx context.Context, text string) error {
	if text == "" {
		return ErrEmptyInput
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.disposed {
		return ErrDisposed
	}
	if h.started {
		return nil
	}
	if h.provider == nil {
		return &ProviderError{Kind: KindNLU, Err: ErrNoProvider}
	}
	h.started = true

	ctx, h.cancel = context.WithCancel(ctx)
	go h.run(ctx, text)
	return nil
}

// Done is closed when the request goroutine exits.
func (h *NLUHandler) Done() <-chan struct{} {
	return h.done
}

// Dispose cancels the request and drops any further events.
func (h *NLUHandler) Dispose() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.disposed {
		return
	}
	h.disposed = true
	if h.cancel != nil {
		h.cancel()
	}
	if !h.started {
		close(h.done)
	}
}

func (h *NLUHandler) run(ctx context.Context, text string) {
	defer close(h.done)

	h.emit(ctx, NLUStart{InputText: text})

	resp, err := h.provider.Understand(ctx, NLURequest{
		Input:     text,
		SessionID: h.sessionID,
		UserID:    h.targetAccountID,
	})
	if err != nil {
		if ctx.Err() == nil {
			h.logger.Warn("nlu request failed", "error", err)
		}
		h.emit(ctx, NLUError{Err: providerError(KindNLU, err)})
		return
	}
	h.emit(ctx, NLUEnd{Response: resp})
}

func (h *NLUHandler) emit(ctx context.Context, ev NLUEvent) {
	if ctx.Err() != nil {
		return
	}
	h.onEvent(ev)
}

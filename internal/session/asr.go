package session

import (
	"context"
	"log/slog"
	"sync"
)

// ASRHandler owns the recognition stream of one connection's audio session.
//
// The stream is opened by Start, or lazily by the first ProvideAudio. After
// the stream ends the next ProvideAudio opens a fresh one.
type ASRHandler struct {
	provider ASRProvider
	cfg      ASRConfig
	onEvent  func(ASREvent)
	logger   *slog.Logger

	mu       sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
	stream   ASRStream
	disposed bool
}

// NewASRHandler creates a handler delivering stream events to onEvent.
func NewASRHandler(provider ASRProvider, cfg ASRConfig, onEvent func(ASREvent), logger *slog.Logger) *ASRHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if onEvent == nil {
		onEvent = func(ASREvent) {}
	}
	return &ASRHandler{
		provider: provider,
		cfg:      cfg,
		onEvent:  onEvent,
		logger:   logger.With("session", KindASR),
	}
}

// Start opens the recognition stream if none is active.
func (h *ASRHandler) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.openLocked(ctx)
}

func (h *ASRHandler) openLocked(ctx context.Context) error {
	if h.disposed {
		return ErrDisposed
	}
	if h.stream != nil {
		return nil
	}
	if h.provider == nil {
		return &ProviderError{Kind: KindASR, Err: ErrNoProvider}
	}
	if h.ctx == nil {
		h.ctx, h.cancel = context.WithCancel(ctx)
	}

	stream, err := h.provider.Open(h.ctx, h.cfg)
	if err != nil {
		return providerError(KindASR, err)
	}
	h.stream = stream
	go h.pump(stream)

	h.logger.Debug("asr stream opened", "language", h.cfg.Language)
	return nil
}

// ProvideAudio forwards a chunk of audio, opening a stream when none is active.
func (h *ASRHandler) ProvideAudio(ctx context.Context, chunk []byte) error {
	h.mu.Lock()
	if err := h.openLocked(ctx); err != nil {
		h.mu.Unlock()
		return err
	}
	stream := h.stream
	h.mu.Unlock()

	if err := stream.SendAudio(chunk); err != nil {
		return providerError(KindASR, err)
	}
	return nil
}

// EndAudio signals that no more audio follows for the current utterance.
func (h *ASRHandler) EndAudio() error {
	h.mu.Lock()
	stream := h.stream
	h.mu.Unlock()

	if stream == nil {
		return nil
	}
	if err := stream.CloseSend(); err != nil {
		return providerError(KindASR, err)
	}
	return nil
}

// Active reports whether a stream is open.
func (h *ASRHandler) Active() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stream != nil
}

// Dispose closes the stream and drops any further events. Safe to call
// more than once.
func (h *ASRHandler) Dispose() {
	h.mu.Lock()
	if h.disposed {
		h.mu.Unlock()
		return
	}
	h.disposed = true
	stream := h.stream
	h.stream = nil
	if h.cancel != nil {
		h.cancel()
	}
	h.mu.Unlock()

	if stream != nil {
		if err := stream.Close(); err != nil {
			h.logger.Debug("asr stream close failed", "error", err)
		}
	}
}

// pump delivers stream events until the stream ends.
func (h *ASRHandler) pump(stream ASRStream) {
	defer func() {
		h.mu.Lock()
		if h.stream == stream {
			h.stream = nil
		}
		h.mu.Unlock()
		stream.Close()
	}()

	for ev := range stream.Events() {
		if !h.current(stream) {
			continue
		}
		if e, ok := ev.(ASRError); ok {
			ev = ASRError{Err: providerError(KindASR, e.Err)}
		}
		h.onEvent(ev)
	}
}

func (h *ASRHandler) current(stream ASRStream) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return !h.disposed && h.stream == stream
}

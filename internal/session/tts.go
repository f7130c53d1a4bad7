package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
)

// DefaultChunkSize is the size of audio chunks relayed to clients.
const DefaultChunkSize = 4096

// TTSHandler runs one synthesis for a target account.
type TTSHandler struct {
	provider        TTSProvider
	targetAccountID string
	onEvent         func(TTSEvent)
	logger          *slog.Logger
	chunkSize       int

	mu       sync.Mutex
	cancel   context.CancelFunc
	started  bool
	disposed bool
	done     chan struct{}
}

// NewTTSHandler creates a handler delivering synthesis events to onEvent.
func NewTTSHandler(provider TTSProvider, targetAccountID string, onEvent func(TTSEvent), logger *slog.Logger) *TTSHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if onEvent == nil {
		onEvent = func(TTSEvent) {}
	}
	return &TTSHandler{
		provider:        provider,
		targetAccountID: targetAccountID,
		onEvent:         onEvent,
		logger:          logger.With("session", KindTTS, "target_account_id", targetAccountID),
		chunkSize:       DefaultChunkSize,
		done:            make(chan struct{}),
	}
}

// TargetAccountID returns the account the synthesized audio is meant for.
func (h *TTSHandler) TargetAccountID() string {
	return h.targetAccountID
}

// Start begins synthesis in the background. Events follow the order
// TTSAudioStart, TTSAudio..., then TTSAudioEnd or TTSAudioError.
func (h *TTSHandler) Start(ctx context.Context, text string) error {
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
		return &ProviderError{Kind: KindTTS, Err: ErrNoProvider}
	}
	h.started = true

	ctx, h.cancel = context.WithCancel(ctx)
	go h.run(ctx, text)
	return nil
}

// Done is closed when the synthesis goroutine exits.
func (h *TTSHandler) Done() <-chan struct{} {
	return h.done
}

// Dispose stops the synthesis and drops any further events.
func (h *TTSHandler) Dispose() {
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

func (h *TTSHandler) run(ctx context.Context, text string) {
	defer close(h.done)

	audio, err := h.provider.Synthesize(ctx, text)
	if err != nil {
		if ctx.Err() == nil {
			h.logger.Warn("tts synthesis failed", "error", err)
		}
		h.emit(ctx, TTSAudioError{Err: providerError(KindTTS, err)})
		return
	}
	defer audio.Close()

	h.emit(ctx, TTSAudioStart{InputText: text})

	buf := make([]byte, h.chunkSize)
	for {
		n, err := audio.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			h.emit(ctx, TTSAudio{Chunk: chunk})
		}
		if errors.Is(err, io.EOF) {
			h.emit(ctx, TTSAudioEnd{})
			return
		}
		if err != nil {
			if ctx.Err() == nil {
				h.logger.Warn("tts stream failed", "error", err)
			}
			h.emit(ctx, TTSAudioError{Err: providerError(KindTTS, err)})
			return
		}
	}
}

func (h *TTSHandler) emit(ctx context.Context, ev TTSEvent) {
	if ctx.Err() != nil {
		return
	}
	h.onEvent(ev)
}

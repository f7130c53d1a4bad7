package session

import (
	"errors"
	"fmt"
)

var (
	// ErrDisposed is returned when using a handler after Dispose.
	ErrDisposed = errors.New("session disposed")

	// ErrNoProvider is returned when a handler has no provider configured.
	ErrNoProvider = errors.New("no provider configured")

	// ErrAudioBackpressure is returned by ASRStream.SendAudio when the stream
	// cannot take more audio yet. The chunk is lost but the stream stays open.
	ErrAudioBackpressure = errors.New("audio queue full")

	// ErrEmptyInput is returned when a TTS or NLU session is started without text.
	ErrEmptyInput = errors.New("empty input text")
)

// Kind names a cognitive session kind.
type Kind string

const (
	KindASR Kind = "asr"
	KindTTS Kind = "tts"
	KindNLU Kind = "nlu"
)

// ProviderError wraps a failure reported by a provider.
type ProviderError struct {
	Kind Kind
	Err  error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s provider: %v", e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func providerError(kind Kind, err error) error {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return err
	}
	return &ProviderError{Kind: kind, Err: err}
}

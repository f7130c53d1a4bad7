package session

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"time"
)

// ASRConfig configures one recognition stream.
type ASRConfig struct {
	Language         string
	Hints            []string
	EOSTimeout       time.Duration // Silence after which the utterance is closed
	MaxSpeechTimeout time.Duration // Upper bound on a single utterance
}

// ASRProvider opens recognition streams.
type ASRProvider interface {
	Open(ctx context.Context, cfg ASRConfig) (ASRStream, error)
}

// ASRStream is one streaming recognition session.
//
// Events is closed after the terminal ASRSessionEnded or ASRError event, or
// when the stream's context is cancelled. Close may be called more than
// once.
type ASRStream interface {
	SendAudio(chunk []byte) error
	CloseSend() error
	Events() <-chan ASREvent
	Close() error
}

// TTSProvider synthesizes text into an audio stream.
type TTSProvider interface {
	Synthesize(ctx context.Context, text string) (io.ReadCloser, error)
}

// NLURequest is one understanding request.
type NLURequest struct {
	Input     string
	SessionID string // Conversation id returned by a previous response
	UserID    string
}

// NLUResponse is a provider response. It marshals to the provider's
// original JSON so clients see the full payload.
type NLUResponse struct {
	SessionID string
	Raw       json.RawMessage
}

// MarshalJSON implements json.Marshaler.
func (r NLUResponse) MarshalJSON() ([]byte, error) {
	if len(bytes.TrimSpace(r.Raw)) == 0 {
		return []byte("{}"), nil
	}
	return r.Raw, nil
}

// NLUProvider answers understanding requests.
type NLUProvider interface {
	Understand(ctx context.Context, req NLURequest) (NLUResponse, error)
}

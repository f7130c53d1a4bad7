package connection

import (
	"errors"
	"log/slog"
	"time"

	"github.com/rickgao/cognitive-hub/internal/metrics"
	"github.com/rickgao/cognitive-hub/internal/session"
	"github.com/rickgao/cognitive-hub/internal/skills"
)

// Errors
var (
	ErrInvalidSocket     = errors.New("socket is nil or has no id")
	ErrUnknownType       = errors.New("unknown connection type")
	ErrNotController     = errors.New("socket is not a controller connection")
	ErrUnsupportedTarget = errors.New("only device connections accept subscriptions")
	ErrMissingAccount    = errors.New("target account id is required")
	ErrDisposed          = errors.New("connection disposed")
	ErrInvalidRequest    = errors.New("input text and target account id are required")
)

// Type identifies the kind of client behind a connection.
type Type string

const (
	TypeDevice     Type = "device"
	TypeController Type = "controller"
	TypeApp        Type = "app"
)

// Valid reports whether t is a known connection type.
func (t Type) Valid() bool {
	switch t {
	case TypeDevice, TypeController, TypeApp:
		return true
	}
	return false
}

// AnalyticsKind names a per-connection counter.
type AnalyticsKind string

const (
	CommandFrom    AnalyticsKind = "command_from"
	CommandTo      AnalyticsKind = "command_to"
	MessageFrom    AnalyticsKind = "message_from"
	MessageTo      AnalyticsKind = "message_to"
	AudioBytesFrom AnalyticsKind = "audio_bytes_from"
)

// Socket is the transport endpoint of a connection. Emit must not block.
type Socket interface {
	ID() string
	Emit(event string, payload any) error
}

// Analytics is a snapshot of a connection's counters.
type Analytics struct {
	CommandsFrom       int            `json:"commandsFrom"`
	CommandsFromByType map[string]int `json:"commandsFromByType"`
	CommandsTo         int            `json:"commandsTo"`
	MessagesFrom       int            `json:"messagesFrom"`
	MessagesTo         int            `json:"messagesTo"`
	AudioBytesFrom     int64          `json:"audioBytesFrom"`
}

// Stats counts live connections and subscriptions.
type Stats struct {
	Devices       int `json:"devices"`
	Controllers   int `json:"controllers"`
	Apps          int `json:"apps"`
	Subscriptions int `json:"subscriptions"`
}

// Deps are the collaborators shared by every connection.
type Deps struct {
	ASR       session.ASRProvider
	TTS       session.TTSProvider
	NLU       session.NLUProvider
	ASRConfig session.ASRConfig

	// Skills provides device manifests. Nil disables skills.
	Skills          skills.Source
	SkillDeps       skills.Deps // AccountID, OnReply and Logger are set per connection
	ManifestTimeout time.Duration

	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

package model

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNoPayload is returned when decoding the payload of a command that has none.
var ErrNoPayload = errors.New("command has no payload")

// CommandType is the top-level discriminator of a Command.
type CommandType string

const (
	CommandTypeCommand CommandType = "command"
	CommandTypeEvent   CommandType = "event"
	CommandTypeSync    CommandType = "sync"
	CommandTypeHub     CommandType = "hubCommand"
)

// Command names understood or produced by the hub.
const (
	NameSyncOffset   = "syncOffset"
	NameSubscribe    = "subscribe"
	NameUnsubscribe  = "unsubscribe"
	NameNotification = "notification"
	NameTTS          = "tts"
	NameNLU          = "nlu"
	NameASRSOS       = "asrSOS"
	NameASREOS       = "asrEOS"
	NameASRResult    = "asrResult"
	NameASREnd       = "asrEnd"
	NameNLUEnd       = "nluEnd"
	NameBase64Photo  = "base64Photo"
)

// Notification events carried in hubCommand/notification payloads.
const (
	NotificationSubscribedTo     = "subscribed-to"
	NotificationUnsubscribedFrom = "unsubscribed-from"
)

// Sources stamped on hub-originated commands and messages.
const (
	SourceHub        = "RCH"
	SourceConnection = "RCH:Connection"
	SourceController = "RCH:ControllerServer"
)

// Command is the unit of routing between devices, controllers and the hub.
//
// A Command decoded with ParseCommand re-encodes to its original bytes so
// fan-out delivers exactly what the sender wrote.
type Command struct {
	ID              string          `json:"id"`
	Source          string          `json:"source,omitempty"`
	Type            CommandType     `json:"type"`
	Name            string          `json:"name"`
	TargetAccountID string          `json:"targetAccountId,omitempty"`
	Message         string          `json:"message,omitempty"`
	Payload         json.RawMessage `json:"payload,omitempty"`
	CreatedAtTime   int64           `json:"createdAtTime"`

	raw json.RawMessage
}

type commandFields Command

// ParseCommand decodes a command and remembers its wire form.
func ParseCommand(data []byte) (Command, error) {
	var fields commandFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return Command{}, err
	}
	cmd := Command(fields)
	cmd.raw = append(json.RawMessage(nil), data...)
	return cmd, nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *Command) UnmarshalJSON(data []byte) error {
	parsed, err := ParseCommand(data)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// MarshalJSON implements json.Marshaler.
func (c Command) MarshalJSON() ([]byte, error) {
	if c.raw != nil {
		return c.raw, nil
	}
	return json.Marshal(commandFields(c))
}

// DecodePayload unmarshals the payload into v.
func (c Command) DecodePayload(v any) error {
	if len(c.Payload) == 0 || string(c.Payload) == "null" {
		return ErrNoPayload
	}
	return json.Unmarshal(c.Payload, v)
}

// NewCommand builds a hub-originated command stamped with a fresh id and the
// current hub time. The hub clock is the synchronized clock.
func NewCommand(typ CommandType, name, source, targetAccountID string, payload any) Command {
	cmd := Command{
		ID:              uuid.NewString(),
		Source:          source,
		Type:            typ,
		Name:            name,
		TargetAccountID: targetAccountID,
		CreatedAtTime:   NowMillis(),
	}
	if payload != nil {
		data, _ := json.Marshal(payload)
		cmd.Payload = data
	}
	return cmd
}

// NowMillis returns the hub time in epoch milliseconds.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}

package model

// SyncOffsetPayload is the payload of a sync/syncOffset command.
type SyncOffsetPayload struct {
	SyncOffset *float64 `json:"syncOffset"`
}

// SubscribePayload is the payload of hubCommand/subscribe and hubCommand/unsubscribe.
type SubscribePayload struct {
	ConnectionType string `json:"connectionType"`
	AccountID      string `json:"accountId"`
}

// NotificationPayload is the payload of hubCommand/notification.
type NotificationPayload struct {
	Event           string `json:"event"`
	TargetAccountID string `json:"targetAccountId"`
}

// TextRequestPayload is the payload of hubCommand/tts and hubCommand/nlu.
// TargetAccountID is honored when the command itself carries none.
type TextRequestPayload struct {
	InputText       string `json:"inputText"`
	TargetAccountID string `json:"targetAccountId,omitempty"`
	Status          string `json:"status,omitempty"`
	RequestID       string `json:"requestId,omitempty"`
}

// Message is a free-form hub message delivered on the "message" event.
type Message struct {
	Source  string `json:"source"`
	Event   string `json:"event"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// TextRequest extracts the input text and target account of a tts/nlu
// command. ok is false when either is missing.
func (c Command) TextRequest() (text, targetAccountID string, ok bool) {
	var p TextRequestPayload
	if err := c.DecodePayload(&p); err != nil {
		return "", "", false
	}
	target := c.TargetAccountID
	if target == "" {
		target = p.TargetAccountID
	}
	if p.InputText == "" || target == "" {
		return "", "", false
	}
	return p.InputText, target, true
}

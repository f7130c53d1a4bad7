package model

// Socket event names.
const (
	EventCommand  = "command"
	EventMessage  = "message"
	EventTimesync = "timesync"

	EventASRAudioStart = "asrAudioStart"
	EventASRAudio      = "asrAudio"
	EventASRAudioEnd   = "asrAudioEnd"
	EventASRSOS        = "asrSOS"
	EventASREOS        = "asrEOS"
	EventASRResult     = "asrResult"
	EventASREnd        = "asrEnd"
	EventASRError      = "asrError"

	EventTTSAudioStart = "ttsAudioStart"
	EventTTSAudio      = "ttsAudio"
	EventTTSAudioEnd   = "ttsAudioEnd"
	EventTTSAudioError = "ttsAudioError"

	EventNLUStart = "nluStart"
	EventNLUEnd   = "nluEnd"
	EventNLUError = "nluError"

	EventBase64Photo = "base64Photo"
)

// Message events produced by the hub.
const (
	MessageHandshake            = "handshake"
	MessageSkillsControllerInit = "skillsControllerInit"
)

// TextEvent is the payload of ttsAudioStart and nluStart.
type TextEvent struct {
	InputText       string `json:"inputText"`
	TargetAccountID string `json:"targetAccountId"`
}

// AudioEvent is the payload of ttsAudio. Audio is base64 encoded on the wire.
type AudioEvent struct {
	TargetAccountID string `json:"targetAccountId"`
	Audio           []byte `json:"audio"`
}

// TargetEvent is the payload of ttsAudioEnd.
type TargetEvent struct {
	TargetAccountID string `json:"targetAccountId"`
}

// ErrorEvent is the payload of asrError, ttsAudioError and nluError.
type ErrorEvent struct {
	TargetAccountID string `json:"targetAccountId,omitempty"`
	Error           string `json:"error"`
}

// TimesyncRequest is the payload of an inbound timesync.
type TimesyncRequest struct {
	ID any `json:"id"`
}

// TimesyncResponse answers a timesync with the hub time in epoch ms.
type TimesyncResponse struct {
	ID     any   `json:"id"`
	Result int64 `json:"result"`
}

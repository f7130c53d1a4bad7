package router

import "errors"

// Errors
var (
	ErrUnknownEvent      = errors.New("unknown event")
	ErrUnsupportedSource = errors.New("event not accepted from this connection type")
)

// Stats contains runtime statistics.
type Stats struct {
	FramesReceived int64 `json:"framesReceived"`
	FramesRouted   int64 `json:"framesRouted"`
	ParseErrors    int64 `json:"parseErrors"`
	UnknownFrames  int64 `json:"unknownFrames"`
}

// messageEnvelope is used to read the event field of a device message.
type messageEnvelope struct {
	Event string `json:"event"`
}

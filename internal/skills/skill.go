package skills

import (
	"encoding/json"
	"errors"
)

// ErrSkillNotConfigured is returned by a factory when the manifest entry
// lacks what the skill needs to run.
var ErrSkillNotConfigured = errors.New("skill not configured")

// Event is delivered to skills. It is one of SpeechStarted, SpeechEnded,
// SpeechResult, SpeechSessionEnded or NLUSessionEnded.
type Event interface{ skillEvent() }

// SpeechStarted marks the start of an utterance.
type SpeechStarted struct{}

// SpeechEnded marks the end of utterance audio.
type SpeechEnded struct{}

// SpeechResult carries a recognition hypothesis.
type SpeechResult struct {
	Text  string
	Final bool
}

// SpeechSessionEnded carries the final transcript of an utterance.
type SpeechSessionEnded struct {
	Text string
}

// NLUSessionEnded carries an NLU response as returned by the provider.
type NLUSessionEnded struct {
	SessionID string
	Response  json.RawMessage
}

func (SpeechStarted) skillEvent()      {}
func (SpeechEnded) skillEvent()        {}
func (SpeechResult) skillEvent()       {}
func (SpeechSessionEnded) skillEvent() {}
func (NLUSessionEnded) skillEvent()    {}

// isSpeech reports whether ev belongs to the ASR family.
func isSpeech(ev Event) bool {
	switch ev.(type) {
	case SpeechStarted, SpeechEnded, SpeechResult, SpeechSessionEnded:
		return true
	}
	return false
}

// Reply is a skill's answer, relayed to the device as a message.
type Reply struct {
	Source   string
	SkillID  string
	Priority int
	Text     string          // Reply text, spoken when Speak is set
	Data     json.RawMessage // Remote skill payload; sent as-is when present
	Speak    bool
}

type replyWire struct {
	Source        string          `json:"source"`
	Event         string          `json:"event"`
	SkillID       string          `json:"skillId"`
	SkillPriority int             `json:"skillPriority"`
	Data          json.RawMessage `json:"data"`
}

// MarshalJSON encodes the reply in the message form clients expect.
func (r Reply) MarshalJSON() ([]byte, error) {
	data := r.Data
	if len(data) == 0 {
		var err error
		data, err = json.Marshal(map[string]string{"reply": r.Text})
		if err != nil {
			return nil, err
		}
	}
	return json.Marshal(replyWire{
		Source:        r.Source,
		Event:         "reply",
		SkillID:       r.SkillID,
		SkillPriority: r.Priority,
		Data:          data,
	})
}

// Skill handles events for one device.
//
// Handle returns a reply to deliver synchronously, or nil. Skills that
// answer asynchronously deliver through Deps.OnReply instead.
type Skill interface {
	ID() string
	Priority() int
	Handle(ev Event) *Reply
}

// skillBase carries the manifest fields every skill reports.
type skillBase struct {
	data SkillData
}

func (b skillBase) ID() string    { return b.data.ID }
func (b skillBase) Priority() int { return b.data.Priority }

func (b skillBase) reply(source, text string) *Reply {
	return &Reply{
		Source:   source,
		SkillID:  b.data.ID,
		Priority: b.data.Priority,
		Text:     text,
		Speak:    b.data.Speak,
	}
}

package connection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/cognitive-hub/internal/model"
	"github.com/rickgao/cognitive-hub/internal/session"
	"github.com/rickgao/cognitive-hub/internal/skills"
)

const defaultManifestTimeout = 10 * time.Second

// Connection is one connected client.
type Connection struct {
	typ       Type
	socket    Socket
	socketID  string
	accountID string
	manager   *Manager
	deps      Deps
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	syncOffset   float64
	analytics    Analytics
	asr          *session.ASRHandler
	asrFailed    bool
	tts          *session.TTSHandler
	nlu          *session.NLUHandler
	nluSessionID string
	skills       *skills.Controller
	skillsReady  chan struct{}
	disposed     bool
}

func newConnection(m *Manager, typ Type, socket Socket, accountID string) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		typ:       typ,
		socket:    socket,
		socketID:  socket.ID(),
		accountID: accountID,
		manager:   m,
		deps:      m.deps,
		logger: m.logger.With(
			"type", typ,
			"socket_id", socket.ID(),
			"account_id", accountID,
		),
		ctx:         ctx,
		cancel:      cancel,
		analytics:   Analytics{CommandsFromByType: make(map[string]int)},
		skillsReady: make(chan struct{}),
	}
	if typ != TypeDevice || m.deps.Skills == nil {
		close(c.skillsReady)
	}
	return c
}

// Type returns the connection type.
func (c *Connection) Type() Type { return c.typ }

// SocketID returns the transport socket id.
func (c *Connection) SocketID() string { return c.socketID }

// AccountID returns the authenticated account id.
func (c *Connection) AccountID() string { return c.accountID }

// Socket returns the transport socket.
func (c *Connection) Socket() Socket { return c.socket }

// EmitEvent sends a named event to the client.
func (c *Connection) EmitEvent(event string, data any) {
	if err := c.socket.Emit(event, data); err != nil {
		c.logger.Debug("emit failed", "event", event, "error", err)
	}
}

// SendMessage sends a "message" event.
func (c *Connection) SendMessage(msg any) {
	c.EmitEvent(model.EventMessage, msg)
}

// SendCommand sends a "command" event.
func (c *Connection) SendCommand(cmd model.Command) {
	c.EmitEvent(model.EventCommand, cmd)
}

// OnSyncOffset records the client clock offset in milliseconds.
func (c *Connection) OnSyncOffset(offset float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.syncOffset = offset
}

// SyncOffset returns the last recorded clock offset in milliseconds.
func (c *Connection) SyncOffset() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.syncOffset
}

// OnAnalyticsEvent updates a counter. data is the command type for
// CommandFrom and the byte count for AudioBytesFrom.
func (c *Connection) OnAnalyticsEvent(kind AnalyticsKind, data any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch kind {
	case CommandFrom:
		c.analytics.CommandsFrom++
		if t, ok := data.(string); ok && t != "" {
			c.analytics.CommandsFromByType[t]++
		}
	case CommandTo:
		c.analytics.CommandsTo++
	case MessageFrom:
		c.analytics.MessagesFrom++
	case MessageTo:
		c.analytics.MessagesTo++
	case AudioBytesFrom:
		switch n := data.(type) {
		case int:
			c.analytics.AudioBytesFrom += int64(n)
		case int64:
			c.analytics.AudioBytesFrom += n
		}
	}
}

// Analytics returns a snapshot of the counters.
func (c *Connection) Analytics() Analytics {
	c.mu.Lock()
	defer c.mu.Unlock()

	a := c.analytics
	a.CommandsFromByType = make(map[string]int, len(c.analytics.CommandsFromByType))
	for k, v := range c.analytics.CommandsFromByType {
		a.CommandsFromByType[k] = v
	}
	return a
}

// String summarizes the connection for the debug listing.
func (c *Connection) String() string {
	a := c.Analytics()
	byType, _ := json.Marshal(a.CommandsFromByType)
	id := c.socketID
	if len(id) > 6 {
		id = id[:6]
	}
	return fmt.Sprintf("%s: [%s] syncOffset: %g ms, commandsFrom: %d, commandCountFromByType: %s, messagesFrom: %d, audioFrom: %d",
		c.accountID, id, math.Round(c.SyncOffset()*1000)/1000, a.CommandsFrom, byType, a.MessagesFrom, a.AudioBytesFrom)
}

// ASR

// StartAudio opens a new recognition session, disposing any previous one.
func (c *Connection) StartAudio() error {
	h, old, err := c.replaceASR()
	if err != nil {
		return err
	}
	if old != nil {
		old.Dispose()
	}
	c.countSession(session.KindASR)

	if err := h.Start(c.ctx); err != nil {
		c.failASR(h, err)
		return err
	}
	return nil
}

// ProvideAudio forwards audio to the active recognition session, opening
// one when the client skipped asrAudioStart.
func (c *Connection) ProvideAudio(chunk []byte) error {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return ErrDisposed
	}
	if c.asrFailed {
		c.mu.Unlock()
		return nil
	}
	h := c.asr
	c.mu.Unlock()

	if h == nil {
		var err error
		if h, _, err = c.replaceASR(); err != nil {
			return err
		}
		c.countSession(session.KindASR)
	}

	if err := h.ProvideAudio(c.ctx, chunk); err != nil {
		if errors.Is(err, session.ErrDisposed) {
			return nil
		}
		if errors.Is(err, session.ErrAudioBackpressure) {
			c.logger.Warn("asr audio chunk dropped", "bytes", len(chunk), "error", err)
			return nil
		}
		c.failASR(h, err)
		return err
	}
	return nil
}

// EndAudio closes the audio of the current utterance.
// A failed session is released so the next utterance opens a new one.
func (c *Connection) EndAudio() error {
	c.mu.Lock()
	h := c.asr
	c.asrFailed = false
	c.mu.Unlock()

	if h == nil {
		return nil
	}
	return h.EndAudio()
}

func (c *Connection) replaceASR() (h, old *session.ASRHandler, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return nil, nil, ErrDisposed
	}

	h = session.NewASRHandler(c.deps.ASR, c.deps.ASRConfig, func(ev session.ASREvent) {
		c.onASREvent(h, ev)
	}, c.logger)
	old = c.asr
	c.asr = h
	c.asrFailed = false
	return h, old, nil
}

// failASR reports an ASR failure once and stops feeding the session until
// the next StartAudio.
func (c *Connection) failASR(h *session.ASRHandler, err error) {
	c.mu.Lock()
	current := c.asr == h && !c.asrFailed
	if current {
		c.asrFailed = true
	}
	c.mu.Unlock()
	if !current {
		return
	}

	c.logger.Warn("asr session failed", "error", err)
	c.countProviderError(session.KindASR)
	c.EmitEvent(model.EventASRError, model.ErrorEvent{Error: err.Error()})
}

func (c *Connection) onASREvent(h *session.ASRHandler, ev session.ASREvent) {
	c.mu.Lock()
	current := c.asr == h && !c.disposed
	c.mu.Unlock()
	if !current {
		return
	}

	switch e := ev.(type) {
	case session.ASRStartOfSpeech:
		c.EmitEvent(model.EventASRSOS, nil)
		c.broadcastEvent(model.NameASRSOS, nil)
		c.forwardToSkills(skills.SpeechStarted{})

	case session.ASREndOfSpeech:
		c.EmitEvent(model.EventASREOS, nil)
		c.broadcastEvent(model.NameASREOS, nil)
		c.forwardToSkills(skills.SpeechEnded{})

	case session.ASRResult:
		c.EmitEvent(model.EventASRResult, e)
		c.broadcastEvent(model.NameASRResult, map[string]any{"data": e})
		c.forwardToSkills(skills.SpeechResult{Text: e.Text, Final: e.Final})

	case session.ASRSessionEnded:
		c.EmitEvent(model.EventASREnd, e)
		c.broadcastEvent(model.NameASREnd, map[string]any{"data": e})
		c.forwardToSkills(skills.SpeechSessionEnded{Text: e.Text})
		if e.Text != "" {
			if err := c.StartNLU(e.Text, c.accountID); err != nil && !errors.Is(err, ErrDisposed) {
				c.logger.Debug("nlu not started", "error", err)
			}
		}

	case session.ASRError:
		c.logger.Warn("asr stream failed", "error", e.Err)
		c.countProviderError(session.KindASR)
		c.EmitEvent(model.EventASRError, model.ErrorEvent{Error: e.Err.Error()})
	}
}

// TTS

// HandleTTSCommand starts TTS from a tts command.
func (c *Connection) HandleTTSCommand(cmd model.Command) error {
	text, target, ok := cmd.TextRequest()
	if !ok {
		c.logger.Debug("tts command ignored", "id", cmd.ID)
		return ErrInvalidRequest
	}
	return c.StartTTS(text, target)
}

// StartTTS synthesizes text for targetAccountID, disposing any previous
// synthesis.
func (c *Connection) StartTTS(text, targetAccountID string) error {
	if text == "" || targetAccountID == "" {
		return ErrInvalidRequest
	}

	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return ErrDisposed
	}
	var h *session.TTSHandler
	h = session.NewTTSHandler(c.deps.TTS, targetAccountID, func(ev session.TTSEvent) {
		c.onTTSEvent(h, ev)
	}, c.logger)
	old := c.tts
	c.tts = h
	c.mu.Unlock()

	if old != nil {
		old.Dispose()
	}
	c.countSession(session.KindTTS)

	if err := h.Start(c.ctx, text); err != nil {
		c.onTTSEvent(h, session.TTSAudioError{Err: err})
		return err
	}
	return nil
}

func (c *Connection) onTTSEvent(h *session.TTSHandler, ev session.TTSEvent) {
	c.mu.Lock()
	current := c.tts == h && !c.disposed
	c.mu.Unlock()
	if !current {
		return
	}

	target := h.TargetAccountID()
	var (
		name    string
		payload any
	)
	switch e := ev.(type) {
	case session.TTSAudioStart:
		name, payload = model.EventTTSAudioStart, model.TextEvent{InputText: e.InputText, TargetAccountID: target}
	case session.TTSAudio:
		name, payload = model.EventTTSAudio, model.AudioEvent{TargetAccountID: target, Audio: e.Chunk}
	case session.TTSAudioEnd:
		name, payload = model.EventTTSAudioEnd, model.TargetEvent{TargetAccountID: target}
	case session.TTSAudioError:
		c.countProviderError(session.KindTTS)
		name, payload = model.EventTTSAudioError, model.ErrorEvent{TargetAccountID: target, Error: e.Err.Error()}
	default:
		return
	}

	c.EmitEvent(name, payload)
	if c.typ == TypeController {
		c.manager.EmitEventToTarget(TypeDevice, target, name, payload)
	}
}

// NLU

// HandleNLUCommand starts NLU from an nlu command.
func (c *Connection) HandleNLUCommand(cmd model.Command) error {
	text, target, ok := cmd.TextRequest()
	if !ok {
		c.logger.Debug("nlu command ignored", "id", cmd.ID)
		return ErrInvalidRequest
	}
	return c.StartNLU(text, target)
}

// StartNLU sends text for understanding on behalf of targetAccountID,
// disposing any previous request. The conversation session id of the last
// response is carried into the request.
func (c *Connection) StartNLU(text, targetAccountID string) error {
	if text == "" || targetAccountID == "" {
		return ErrInvalidRequest
	}

	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return ErrDisposed
	}
	var h *session.NLUHandler
	h = session.NewNLUHandler(c.deps.NLU, targetAccountID, c.nluSessionID, func(ev session.NLUEvent) {
		c.onNLUEvent(h, ev)
	}, c.logger)
	old := c.nlu
	c.nlu = h
	c.mu.Unlock()

	if old != nil {
		old.Dispose()
	}
	c.countSession(session.KindNLU)

	if err := h.Start(c.ctx, text); err != nil {
		c.onNLUEvent(h, session.NLUError{Err: err})
		return err
	}
	return nil
}

// NLUSessionID returns the conversation id from the last NLU response.
func (c *Connection) NLUSessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nluSessionID
}

func (c *Connection) onNLUEvent(h *session.NLUHandler, ev session.NLUEvent) {
	c.mu.Lock()
	current := c.nlu == h && !c.disposed
	if end, ok := ev.(session.NLUEnd); ok && current && end.Response.SessionID != "" {
		c.nluSessionID = end.Response.SessionID
	}
	c.mu.Unlock()
	if !current {
		return
	}

	target := h.TargetAccountID()
	var (
		name    string
		payload any
	)
	switch e := ev.(type) {
	case session.NLUStart:
		name, payload = model.EventNLUStart, model.TextEvent{InputText: e.InputText, TargetAccountID: target}
	case session.NLUEnd:
		name, payload = model.EventNLUEnd, e.Response
	case session.NLUError:
		c.countProviderError(session.KindNLU)
		name, payload = model.EventNLUError, model.ErrorEvent{TargetAccountID: target, Error: e.Err.Error()}
	default:
		return
	}

	c.EmitEvent(name, payload)
	if c.typ == TypeController {
		c.manager.EmitEventToTarget(TypeDevice, target, name, payload)
	}

	if e, ok := ev.(session.NLUEnd); ok {
		c.broadcastEvent(model.NameNLUEnd, map[string]any{"data": e.Response})
		c.forwardToSkills(skills.NLUSessionEnded{SessionID: e.Response.SessionID, Response: e.Response.Raw})
	}
}

// Photo

// OnBase64Photo relays photo data from a device to its subscribers.
func (c *Connection) OnBase64Photo(data string) {
	if data == "" {
		return
	}
	c.broadcastEvent(model.NameBase64Photo, data)
}

// Skills

// initSkills fetches the manifest and builds the skills controller.
func (c *Connection) initSkills() {
	defer close(c.skillsReady)

	timeout := c.deps.ManifestTimeout
	if timeout <= 0 {
		timeout = defaultManifestTimeout
	}
	ctx, cancel := context.WithTimeout(c.ctx, timeout)
	defer cancel()

	manifest, err := c.deps.Skills.Manifest(ctx)
	if err != nil {
		if c.ctx.Err() == nil {
			c.logger.Warn("skills manifest unavailable", "error", err)
		}
		return
	}

	deps := c.deps.SkillDeps
	deps.AccountID = c.accountID
	deps.OnReply = c.onSkillReply
	deps.Logger = c.logger

	controller := skills.NewController(manifest, deps)

	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		controller.Close()
		return
	}
	c.skills = controller
	c.mu.Unlock()

	activated := make(map[string]skills.Activation)
	for _, a := range controller.Activated() {
		activated[a.ID] = a
	}
	c.SendMessage(model.Message{
		Source: model.SourceConnection,
		Event:  model.MessageSkillsControllerInit,
		Data:   activated,
	})
	c.logger.Debug("skills controller ready", "skills", len(activated))
}

// SkillsReady is closed once the skills controller is built or has failed to
// build. It is closed immediately for connections without skills.
func (c *Connection) SkillsReady() <-chan struct{} {
	return c.skillsReady
}

// SkillsController returns the device's skills controller, or nil before
// the manifest has resolved.
func (c *Connection) SkillsController() *skills.Controller {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.skills
}

func (c *Connection) forwardToSkills(ev skills.Event) {
	if ctl := c.SkillsController(); ctl != nil {
		ctl.Broadcast(ev)
	}
}

// onSkillReply relays a reply to the device. Spoken replies are announced
// with a tts command and synthesized for the device.
func (c *Connection) onSkillReply(r skills.Reply) {
	if c.deps.Metrics != nil {
		c.deps.Metrics.SkillReplies.WithLabelValues(r.SkillID).Inc()
	}
	c.SendMessage(r)

	if !r.Speak || r.Text == "" {
		return
	}
	cmd := model.NewCommand(model.CommandTypeCommand, model.NameTTS, model.SourceConnection, c.accountID, model.TextRequestPayload{
		InputText: r.Text,
		Status:    "REQUESTED",
		RequestID: uuid.NewString(),
	})
	c.SendCommand(cmd)
	if err := c.HandleTTSCommand(cmd); err != nil && !errors.Is(err, ErrDisposed) {
		c.logger.Debug("reply tts not started", "skill", r.SkillID, "error", err)
	}
}

func (c *Connection) broadcastEvent(name string, payload any) {
	cmd := model.NewCommand(model.CommandTypeEvent, name, model.SourceConnection, c.accountID, payload)
	c.manager.BroadcastDeviceCommand(c.accountID, cmd)
}

func (c *Connection) countSession(kind session.Kind) {
	if c.deps.Metrics != nil {
		c.deps.Metrics.Sessions.WithLabelValues(string(kind)).Inc()
	}
}

func (c *Connection) countProviderError(kind session.Kind) {
	if c.deps.Metrics != nil {
		c.deps.Metrics.ProviderErrors.WithLabelValues(string(kind)).Inc()
	}
}

// Dispose tears down every session and the skills controller. Safe to call
// more than once.
func (c *Connection) Dispose() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.disposed = true
	asr, tts, nlu, ctl := c.asr, c.tts, c.nlu, c.skills
	c.asr, c.tts, c.nlu, c.skills = nil, nil, nil, nil
	c.mu.Unlock()

	c.cancel()
	if asr != nil {
		asr.Dispose()
	}
	if tts != nil {
		tts.Dispose()
	}
	if nlu != nil {
		nlu.Dispose()
	}
	if ctl != nil {
		ctl.Close()
	}
	c.logger.Debug("connection disposed")
}

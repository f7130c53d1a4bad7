package azure

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rickgao/cognitive-hub/internal/session"
)

const audioQueueSize = 256

// Recognition statuses returned by the short-audio endpoint.
const (
	statusSuccess               = "Success"
	statusNoMatch               = "NoMatch"
	statusInitialSilenceTimeout = "InitialSilenceTimeout"
	statusBabbleTimeout         = "BabbleTimeout"
)

type recognitionResult struct {
	RecognitionStatus string `json:"RecognitionStatus"`
	DisplayText       string `json:"DisplayText"`
	Offset            int64  `json:"Offset"`
	Duration          int64  `json:"Duration"`
}

// Open implements session.ASRProvider. The request is sent once the first
// audio chunk arrives; the utterance ends on CloseSend, after EOSTimeout
// without audio, or after MaxSpeechTimeout.
func (c *Client) Open(ctx context.Context, cfg session.ASRConfig) (session.ASRStream, error) {
	if c.cfg.SubscriptionKey == "" {
		return nil, ErrMissingKey
	}
	if cfg.Language == "" {
		cfg.Language = c.cfg.Language
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &recognizeStream{
		client:     c,
		cfg:        cfg,
		cancel:     cancel,
		audio:      make(chan []byte, audioQueueSize),
		events:     make(chan session.ASREvent, 16),
		sendDone:   make(chan struct{}),
		firstAudio: make(chan struct{}),
		pumpDone:   make(chan struct{}),
	}

	pr, pw := io.Pipe()
	go s.pumpAudio(ctx, pw)
	go s.recognize(ctx, pr)

	return s, nil
}

// recognizeStream is one short-audio recognition request.
type recognizeStream struct {
	client *Client
	cfg    session.ASRConfig
	cancel context.CancelFunc

	audio      chan []byte
	events     chan session.ASREvent
	sendDone   chan struct{}
	firstAudio chan struct{}
	pumpDone   chan struct{}

	sendOnce  sync.Once
	closeOnce sync.Once
}

func (s *recognizeStream) SendAudio(chunk []byte) error {
	select {
	case <-s.sendDone:
		return ErrStreamClosed
	default:
	}

	select {
	case s.audio <- chunk:
		return nil
	case <-s.sendDone:
		return ErrStreamClosed
	default:
		return session.ErrAudioBackpressure
	}
}

func (s *recognizeStream) CloseSend() error {
	s.sendOnce.Do(func() { close(s.sendDone) })
	return nil
}

func (s *recognizeStream) Events() <-chan session.ASREvent {
	return s.events
}

func (s *recognizeStream) Close() error {
	s.closeOnce.Do(func() {
		s.CloseSend()
		s.cancel()
	})
	return nil
}

// pumpAudio copies queued audio into the request body.
func (s *recognizeStream) pumpAudio(ctx context.Context, pw *io.PipeWriter) {
	defer close(s.pumpDone)

	var eos <-chan time.Time
	var eosTimer *time.Timer
	var maxSpeech <-chan time.Time
	if s.cfg.MaxSpeechTimeout > 0 {
		t := time.NewTimer(s.cfg.MaxSpeechTimeout)
		defer t.Stop()
		maxSpeech = t.C
	}

	started := false
	write := func(chunk []byte) bool {
		if !started {
			started = true
			close(s.firstAudio)
			s.emit(ctx, session.ASRStartOfSpeech{})
		}
		if _, err := pw.Write(chunk); err != nil {
			return false
		}
		if s.cfg.EOSTimeout > 0 {
			if eosTimer == nil {
				eosTimer = time.NewTimer(s.cfg.EOSTimeout)
				eos = eosTimer.C
			} else {
				eosTimer.Reset(s.cfg.EOSTimeout)
			}
		}
		return true
	}

	defer func() {
		if eosTimer != nil {
			eosTimer.Stop()
		}
	}()

loop:
	for {
		select {
		case chunk := <-s.audio:
			if !write(chunk) {
				pw.Close()
				return
			}
		case <-s.sendDone:
			for {
				select {
				case chunk := <-s.audio:
					if !write(chunk) {
						pw.Close()
						return
					}
				default:
					break loop
				}
			}
		case <-eos:
			break loop
		case <-maxSpeech:
			break loop
		case <-ctx.Done():
			pw.CloseWithError(ctx.Err())
			return
		}
	}

	s.CloseSend()
	pw.Close()
	if started {
		s.emit(ctx, session.ASREndOfSpeech{})
	}
}

// recognize sends the request once audio is flowing and emits the result.
func (s *recognizeStream) recognize(ctx context.Context, pr *io.PipeReader) {
	defer close(s.events)
	defer pr.Close()

	select {
	case <-s.firstAudio:
	case <-s.pumpDone:
		return
	case <-ctx.Done():
		return
	}

	result, err := s.post(ctx, pr)
	<-s.pumpDone

	if err != nil {
		if ctx.Err() == nil {
			s.client.logger.Warn("azure recognition failed", "error", err)
			s.emit(ctx, session.ASRError{Err: err})
		}
		return
	}

	switch result.RecognitionStatus {
	case statusSuccess:
		s.emit(ctx, session.ASRResult{Text: result.DisplayText, Final: true})
		s.emit(ctx, session.ASRSessionEnded{Text: result.DisplayText})
	case statusNoMatch, statusInitialSilenceTimeout, statusBabbleTimeout:
		s.emit(ctx, session.ASRSessionEnded{})
	default:
		s.emit(ctx, session.ASRError{Err: fmt.Errorf("recognition status %q", result.RecognitionStatus)})
	}
}

func (s *recognizeStream) post(ctx context.Context, body io.Reader) (recognitionResult, error) {
	token, err := s.client.tokens.Token(ctx)
	if err != nil {
		return recognitionResult{}, err
	}

	query := url.Values{}
	query.Set("language", s.cfg.Language)
	query.Set("format", "simple")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.client.sttURL+"?"+query.Encode(), body)
	if err != nil {
		return recognitionResult{}, fmt.Errorf("create recognition request: %w", err)
	}
	s.client.setCommonHeaders(req, token)
	req.Header.Set("Content-Type", "audio/wav; codecs=audio/pcm; samplerate=16000")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.httpClient.Do(req)
	if err != nil {
		return recognitionResult{}, fmt.Errorf("recognize: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return recognitionResult{}, fmt.Errorf("read recognition response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return recognitionResult{}, &StatusError{Op: "recognize", StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var result recognitionResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return recognitionResult{}, fmt.Errorf("unmarshal recognition response: %w", err)
	}
	return result, nil
}

func (s *recognizeStream) emit(ctx context.Context, ev session.ASREvent) {
	select {
	case s.events <- ev:
	case <-ctx.Done():
	}
}

var _ session.ASRProvider = (*Client)(nil)

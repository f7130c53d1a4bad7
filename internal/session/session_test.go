package session

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStream is an ASRStream driven by the test.
type fakeStream struct {
	events chan ASREvent

	mu        sync.Mutex
	audio     [][]byte
	closeSend bool
	closed    bool
}

func newFakeStream() *fakeStream {
	return &fakeStream{events: make(chan ASREvent, 16)}
}

func (s *fakeStream) SendAudio(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audio = append(s.audio, chunk)
	return nil
}

func (s *fakeStream) CloseSend() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeSend = true
	return nil
}

func (s *fakeStream) Events() <-chan ASREvent { return s.events }

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeStream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type fakeASRProvider struct {
	mu      sync.Mutex
	streams []*fakeStream
	err     error
}

func (p *fakeASRProvider) Open(ctx context.Context, cfg ASRConfig) (ASRStream, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	s := newFakeStream()
	p.streams = append(p.streams, s)
	return s, nil
}

func (p *fakeASRProvider) opened() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.streams)
}

// recorder collects events delivered on handler goroutines.
type recorder[T any] struct {
	mu     sync.Mutex
	events []T
}

func (r *recorder[T]) add(ev T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder[T]) snapshot() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]T(nil), r.events...)
}

func (r *recorder[T]) waitFor(t *testing.T, n int) []T {
	t.Helper()
	require.Eventually(t, func() bool { return len(r.snapshot()) >= n }, time.Second, 5*time.Millisecond)
	return r.snapshot()
}

func TestASRHandler_StartDeliversEvents(t *testing.T) {
	provider := &fakeASRProvider{}
	rec := &recorder[ASREvent]{}
	h := NewASRHandler(provider, ASRConfig{Language: "en-US"}, rec.add, nil)

	require.NoError(t, h.Start(context.Background()))
	require.NoError(t, h.Start(context.Background()))
	require.Equal(t, 1, provider.opened())
	assert.True(t, h.Active())

	stream := provider.streams[0]
	require.NoError(t, h.ProvideAudio(context.Background(), []byte{1, 2}))
	require.NoError(t, h.EndAudio())

	stream.events <- ASRStartOfSpeech{}
	stream.events <- ASREndOfSpeech{}
	stream.events <- ASRSessionEnded{Text: "hello"}
	close(stream.events)

	got := rec.waitFor(t, 3)
	assert.Equal(t, []ASREvent{ASRStartOfSpeech{}, ASREndOfSpeech{}, ASRSessionEnded{Text: "hello"}}, got)
	assert.Len(t, stream.audio, 1)
	assert.True(t, stream.closeSend)

	require.Eventually(t, func() bool { return !h.Active() }, time.Second, 5*time.Millisecond)
}

func TestASRHandler_LazyOpenOnAudio(t *testing.T) {
	provider := &fakeASRProvider{}
	h := NewASRHandler(provider, ASRConfig{}, nil, nil)

	require.NoError(t, h.ProvideAudio(context.Background(), []byte("pcm")))
	require.Equal(t, 1, provider.opened())
	assert.Equal(t, [][]byte{[]byte("pcm")}, provider.streams[0].audio)
}

func TestASRHandler_ReopensAfterStreamEnds(t *testing.T) {
	provider := &fakeASRProvider{}
	h := NewASRHandler(provider, ASRConfig{}, nil, nil)

	require.NoError(t, h.Start(context.Background()))
	close(provider.streams[0].events)
	require.Eventually(t, func() bool { return !h.Active() }, time.Second, 5*time.Millisecond)

	require.NoError(t, h.ProvideAudio(context.Background(), []byte{0}))
	assert.Equal(t, 2, provider.opened())
}

func TestASRHandler_DisposeDropsLateEvents(t *testing.T) {
	provider := &fakeASRProvider{}
	rec := &recorder[ASREvent]{}
	h := NewASRHandler(provider, ASRConfig{}, rec.add, nil)

	require.NoError(t, h.Start(context.Background()))
	stream := provider.streams[0]
	h.Dispose()
	h.Dispose()

	stream.events <- ASRSessionEnded{Text: "late"}
	close(stream.events)

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, rec.snapshot())
	assert.True(t, stream.isClosed())
	assert.ErrorIs(t, h.Start(context.Background()), ErrDisposed)
}

func TestASRHandler_OpenErrorIsProviderError(t *testing.T) {
	cause := errors.New("quota exceeded")
	h := NewASRHandler(&fakeASRProvider{err: cause}, ASRConfig{}, nil, nil)

	err := h.Start(context.Background())
	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, KindASR, pe.Kind)
	assert.ErrorIs(t, err, cause)
}

func TestASRHandler_StreamErrorWrapped(t *testing.T) {
	provider := &fakeASRProvider{}
	rec := &recorder[ASREvent]{}
	h := NewASRHandler(provider, ASRConfig{}, rec.add, nil)
	require.NoError(t, h.Start(context.Background()))

	provider.streams[0].events <- ASRError{Err: io.ErrUnexpectedEOF}
	close(provider.streams[0].events)

	got := rec.waitFor(t, 1)
	ev, ok := got[0].(ASRError)
	require.True(t, ok)
	var pe *ProviderError
	assert.ErrorAs(t, ev.Err, &pe)
	assert.ErrorIs(t, ev.Err, io.ErrUnexpectedEOF)
}

type fakeTTSProvider struct {
	audio string
	err   error
	block chan struct{}
}

type errReader struct{ err error }

func (r errReader) Read([]byte) (int, error) { return 0, r.err }

func (p *fakeTTSProvider) Synthesize(ctx context.Context, text string) (io.ReadCloser, error) {
	if p.block != nil {
		select {
		case <-p.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if p.err != nil {
		return nil, p.err
	}
	return io.NopCloser(strings.NewReader(p.audio)), nil
}

func TestTTSHandler_EventOrder(t *testing.T) {
	rec := &recorder[TTSEvent]{}
	h := NewTTSHandler(&fakeTTSProvider{audio: "abcdef"}, "robot1", rec.add, nil)
	h.chunkSize = 4

	require.NoError(t, h.Start(context.Background(), "hello"))
	<-h.Done()

	assert.Equal(t, []TTSEvent{
		TTSAudioStart{InputText: "hello"},
		TTSAudio{Chunk: []byte("abcd")},
		TTSAudio{Chunk: []byte("ef")},
		TTSAudioEnd{},
	}, rec.snapshot())
	assert.Equal(t, "robot1", h.TargetAccountID())
}

func TestTTSHandler_SynthesisError(t *testing.T) {
	rec := &recorder[TTSEvent]{}
	h := NewTTSHandler(&fakeTTSProvider{err: errors.New("401")}, "robot1", rec.add, nil)

	require.NoError(t, h.Start(context.Background(), "hello"))
	<-h.Done()

	got := rec.snapshot()
	require.Len(t, got, 1)
	ev, ok := got[0].(TTSAudioError)
	require.True(t, ok)
	var pe *ProviderError
	require.ErrorAs(t, ev.Err, &pe)
	assert.Equal(t, KindTTS, pe.Kind)
}

func TestTTSHandler_StreamError(t *testing.T) {
	rec := &recorder[TTSEvent]{}
	provider := ttsReaderProvider{r: errReader{err: io.ErrClosedPipe}}
	h := NewTTSHandler(provider, "robot1", rec.add, nil)

	require.NoError(t, h.Start(context.Background(), "hello"))
	<-h.Done()

	got := rec.snapshot()
	require.Len(t, got, 2)
	assert.Equal(t, TTSAudioStart{InputText: "hello"}, got[0])
	assert.IsType(t, TTSAudioError{}, got[1])
}

type ttsReaderProvider struct{ r io.Reader }

func (p ttsReaderProvider) Synthesize(context.Context, string) (io.ReadCloser, error) {
	return io.NopCloser(p.r), nil
}

func TestTTSHandler_DisposeSilences(t *testing.T) {
	rec := &recorder[TTSEvent]{}
	provider := &fakeTTSProvider{audio: "abc", block: make(chan struct{})}
	h := NewTTSHandler(provider, "robot1", rec.add, nil)

	require.NoError(t, h.Start(context.Background(), "hello"))
	h.Dispose()
	<-h.Done()

	assert.Empty(t, rec.snapshot())
	assert.ErrorIs(t, h.Start(context.Background(), "again"), ErrDisposed)
}

func TestTTSHandler_EmptyInput(t *testing.T) {
	h := NewTTSHandler(&fakeTTSProvider{}, "robot1", nil, nil)
	assert.ErrorIs(t, h.Start(context.Background(), ""), ErrEmptyInput)
}

type fakeNLUProvider struct {
	mu   sync.Mutex
	reqs []NLURequest
	resp NLUResponse
	err  error
}

func (p *fakeNLUProvider) Understand(ctx context.Context, req NLURequest) (NLUResponse, error) {
	p.mu.Lock()
	p.reqs = append(p.reqs, req)
	p.mu.Unlock()
	return p.resp, p.err
}

func TestNLUHandler_StartEnd(t *testing.T) {
	provider := &fakeNLUProvider{resp: NLUResponse{SessionID: "s2", Raw: []byte(`{"response":{"sessionId":"s2"}}`)}}
	rec := &recorder[NLUEvent]{}
	h := NewNLUHandler(provider, "robot1", "s1", rec.add, nil)

	require.NoError(t, h.Start(context.Background(), "hello"))
	<-h.Done()

	got := rec.snapshot()
	require.Len(t, got, 2)
	assert.Equal(t, NLUStart{InputText: "hello"}, got[0])
	end, ok := got[1].(NLUEnd)
	require.True(t, ok)
	assert.Equal(t, "s2", end.Response.SessionID)

	require.Len(t, provider.reqs, 1)
	assert.Equal(t, NLURequest{Input: "hello", SessionID: "s1", UserID: "robot1"}, provider.reqs[0])
}

func TestNLUHandler_Error(t *testing.T) {
	rec := &recorder[NLUEvent]{}
	h := NewNLUHandler(&fakeNLUProvider{err: errors.New("unavailable")}, "robot1", "", rec.add, nil)

	require.NoError(t, h.Start(context.Background(), "hello"))
	<-h.Done()

	got := rec.snapshot()
	require.Len(t, got, 2)
	ev, ok := got[1].(NLUError)
	require.True(t, ok)
	var pe *ProviderError
	require.ErrorAs(t, ev.Err, &pe)
	assert.Equal(t, KindNLU, pe.Kind)
}

func TestNLUResponse_MarshalJSON(t *testing.T) {
	data, err := NLUResponse{Raw: []byte(`{"intent":"time"}`)}.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"intent":"time"}`, string(data))

	data, err = NLUResponse{}.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))
}

func TestProviderError(t *testing.T) {
	err := providerError(KindTTS, io.EOF)
	assert.Equal(t, "tts provider: EOF", err.Error())
	assert.Same(t, err, providerError(KindASR, err))
}

package speech

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"vibespace/internal/domain"
	"vibespace/internal/ports"
)

func TestRecognizerAvailability(t *testing.T) {
	t.Parallel()

	cases := []struct {
		configured bool
		recorder   bool
		want       bool
	}{
		{true, true, true},
		{false, true, false},
		{true, false, false},
	}
	for _, tc := range cases {
		r := NewRecognizer(&fakeCapture{available: tc.recorder}, &fakeProvider{configured: tc.configured}, Config{}, zerolog.Nop())
		if got := r.Available(); got != tc.want {
			t.Fatalf("Available() with configured=%v recorder=%v = %v", tc.configured, tc.recorder, got)
		}
	}

	r := NewRecognizer(&fakeCapture{}, &fakeProvider{}, Config{}, zerolog.Nop())
	if _, err := r.CreateSession(context.Background(), ports.SessionConfig{}); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestSessionForwardsResultsThenEnds(t *testing.T) {
	t.Parallel()

	stream := newFakeStream(
		[]domain.Fragment{{Text: "hel"}},
		[]domain.Fragment{{Text: "hello", IsFinal: true}},
	)
	provider := &fakeProvider{configured: true, stream: stream}
	capture := &fakeCapture{available: true, data: []byte("pcm-bytes")}

	r := NewRecognizer(capture, provider, Config{Audio: ports.AudioConfig{SampleRate: 16000, Channels: 1}}, zerolog.Nop())
	session, err := r.CreateSession(context.Background(), ports.SessionConfig{Locale: "en-GB", InterimResults: true})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if err := session.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	events := collect(t, session.Events())
	if len(events) != 3 {
		t.Fatalf("expected two results and an end, got %+v", events)
	}
	if events[0].Kind != ports.RecognitionResult || events[0].Fragments[0].Text != "hel" {
		t.Fatalf("unexpected first event: %+v", events[0])
	}
	if events[1].Kind != ports.RecognitionResult || !events[1].Fragments[0].IsFinal {
		t.Fatalf("unexpected second event: %+v", events[1])
	}
	if events[2].Kind != ports.RecognitionEnd {
		t.Fatalf("expected end event last, got %+v", events[2])
	}

	if got := string(stream.sentBytes()); got != "pcm-bytes" {
		t.Fatalf("expected audio to be streamed, got %q", got)
	}
	if provider.lastConfig.Language != "en-GB" || !provider.lastConfig.InterimResults || provider.lastConfig.Encoding != "linear16" {
		t.Fatalf("unexpected streaming config: %+v", provider.lastConfig)
	}

	if err := session.Start(context.Background()); err == nil {
		t.Fatalf("expected second start to fail")
	}
}

func TestSessionReportsProviderError(t *testing.T) {
	t.Parallel()

	stream := newFakeStream()
	stream.waitErr = errors.New("socket dropped")
	r := NewRecognizer(&fakeCapture{available: true}, &fakeProvider{configured: true, stream: stream}, Config{}, zerolog.Nop())

	session, _ := r.CreateSession(context.Background(), ports.SessionConfig{})
	if err := session.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	events := collect(t, session.Events())
	if len(events) != 2 || events[0].Kind != ports.RecognitionError || events[1].Kind != ports.RecognitionEnd {
		t.Fatalf("expected error then end, got %+v", events)
	}
	if events[0].Err == nil || events[0].Err.Error() != "socket dropped" {
		t.Fatalf("unexpected error payload: %v", events[0].Err)
	}
}

func TestSessionMarksMicrophoneFailures(t *testing.T) {
	t.Parallel()

	capture := &fakeCapture{available: true, reader: brokenReader{}}
	r := NewRecognizer(capture, &fakeProvider{configured: true, stream: newFakeStream()}, Config{}, zerolog.Nop())

	session, _ := r.CreateSession(context.Background(), ports.SessionConfig{})
	if err := session.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	events := collect(t, session.Events())
	if len(events) != 2 || events[0].Kind != ports.RecognitionError || events[1].Kind != ports.RecognitionEnd {
		t.Fatalf("expected error then end, got %+v", events)
	}
	if !errors.Is(events[0].Err, ports.ErrAudioStream) {
		t.Fatalf("expected an audio stream error, got %v", events[0].Err)
	}
}

func TestSessionStartClosesStreamWhenMicrophoneFails(t *testing.T) {
	t.Parallel()

	stream := newFakeStream()
	capture := &fakeCapture{available: true, startErr: errors.New("device busy")}
	r := NewRecognizer(capture, &fakeProvider{configured: true, stream: stream}, Config{}, zerolog.Nop())

	session, _ := r.CreateSession(context.Background(), ports.SessionConfig{})
	if err := session.Start(context.Background()); err == nil {
		t.Fatalf("expected start error")
	}
	if !stream.isClosed() {
		t.Fatalf("expected stream to be closed after microphone failure")
	}
	if err := session.Stop(); err != nil {
		t.Fatalf("stop before start should be a no-op: %v", err)
	}
}

func TestSessionStopEndsCaptureAndSuppressesErrors(t *testing.T) {
	t.Parallel()

	reader, writer := io.Pipe()
	stream := newFakeStream()
	stream.waitErr = errors.New("closed by client")
	capture := &fakeCapture{available: true, reader: reader, onStop: func() { _ = writer.Close() }}
	r := NewRecognizer(capture, &fakeProvider{configured: true, stream: stream}, Config{DrainTimeout: time.Second}, zerolog.Nop())

	session, _ := r.CreateSession(context.Background(), ports.SessionConfig{})
	if err := session.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := session.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := session.Stop(); err != nil {
		t.Fatalf("second stop: %v", err)
	}

	events := collect(t, session.Events())
	if len(events) != 1 || events[0].Kind != ports.RecognitionEnd {
		t.Fatalf("expected only an end event after stop, got %+v", events)
	}
}

func collect(t *testing.T, events <-chan ports.RecognitionEvent) []ports.RecognitionEvent {
	t.Helper()

	var out []ports.RecognitionEvent
	timeout := time.After(3 * time.Second)
	for {
		select {
		case event, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, event)
		case <-timeout:
			t.Fatalf("timed out waiting for events, got %+v", out)
			return nil
		}
	}
}

type fakeProvider struct {
	configured bool
	stream     *fakeStream
	lastConfig ports.StreamingConfig
}

func (p *fakeProvider) Configured() bool { return p.configured }

func (p *fakeProvider) StartStreaming(_ context.Context, cfg ports.StreamingConfig) (ports.StreamingSession, error) {
	p.lastConfig = cfg
	return p.stream, nil
}

// fakeStream delivers its queued batches and closes Results once the
// sender half-closes.
type fakeStream struct {
	results chan []domain.Fragment
	waitErr error

	mu       sync.Mutex
	sent     bytes.Buffer
	closed   bool
	halfDone chan struct{}
	once     sync.Once
}

func newFakeStream(batches ...[]domain.Fragment) *fakeStream {
	s := &fakeStream{
		results:  make(chan []domain.Fragment, len(batches)),
		halfDone: make(chan struct{}),
	}
	for _, batch := range batches {
		s.results <- batch
	}
	return s
}

func (s *fakeStream) SendAudio(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent.Write(chunk)
	return nil
}

func (s *fakeStream) CloseSend() error {
	s.once.Do(func() {
		close(s.results)
		close(s.halfDone)
	})
	return nil
}

func (s *fakeStream) Results() <-chan []domain.Fragment { return s.results }

func (s *fakeStream) Wait() error {
	<-s.halfDone
	return s.waitErr
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return s.CloseSend()
}

func (s *fakeStream) sentBytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.sent.Bytes()...)
}

func (s *fakeStream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type fakeCapture struct {
	available bool
	startErr  error
	data      []byte
	reader    io.Reader
	onStop    func()
}

func (c *fakeCapture) Available() bool { return c.available }

func (c *fakeCapture) Start(context.Context, ports.AudioConfig) (ports.AudioSession, error) {
	if c.startErr != nil {
		return nil, c.startErr
	}
	reader := c.reader
	if reader == nil {
		reader = bytes.NewReader(c.data)
	}
	return &fakeAudioSession{reader: reader, onStop: c.onStop}, nil
}

type brokenReader struct{}

func (brokenReader) Read([]byte) (int, error) { return 0, errors.New("device unplugged") }

type fakeAudioSession struct {
	reader io.Reader
	onStop func()
	once   sync.Once
}

func (s *fakeAudioSession) Read(p []byte) (int, error) { return s.reader.Read(p) }

func (s *fakeAudioSession) Close() error { return s.Stop() }

func (s *fakeAudioSession) Stop() error {
	s.once.Do(func() {
		if s.onStop != nil {
			s.onStop()
		}
	})
	return nil
}

package speech

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"vibespace/internal/ports"
)

// ErrUnavailable is returned when no provider key or recorder is present.
var ErrUnavailable = errors.New("speech recognition is not available")

var errAlreadyStarted = errors.New("recognition session already started")

// Config controls how audio is captured and streamed to the provider.
type Config struct {
	Audio     ports.AudioConfig
	Encoding  string
	ChunkSize int
	// DrainTimeout bounds how long a stopped session waits for the provider
	// to flush its remaining results.
	DrainTimeout time.Duration
}

// Recognizer pairs microphone capture with a streaming transcription
// provider and exposes them as recognition sessions.
type Recognizer struct {
	audio    ports.AudioCapture
	provider ports.TranscriptionProvider
	cfg      Config
	logger   zerolog.Logger
}

func NewRecognizer(audio ports.AudioCapture, provider ports.TranscriptionProvider, cfg Config, logger zerolog.Logger) *Recognizer {
	if cfg.ChunkSize < 256 {
		cfg.ChunkSize = 4096
	}
	if cfg.Encoding == "" {
		cfg.Encoding = "linear16"
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = 4 * time.Second
	}
	return &Recognizer{audio: audio, provider: provider, cfg: cfg, logger: logger}
}

func (r *Recognizer) Available() bool {
	return r.provider.Configured() && r.audio.Available()
}

func (r *Recognizer) CreateSession(_ context.Context, cfg ports.SessionConfig) (ports.RecognitionSession, error) {
	if !r.Available() {
		return nil, ErrUnavailable
	}

	id := uuid.NewString()
	return &session{
		recognizer: r,
		streaming: ports.StreamingConfig{
			SampleRate:     r.cfg.Audio.SampleRate,
			Channels:       r.cfg.Audio.Channels,
			Encoding:       r.cfg.Encoding,
			Language:       cfg.Locale,
			InterimResults: cfg.InterimResults,
		},
		logger: r.logger.With().Str("session", id).Logger(),
		events: make(chan ports.RecognitionEvent, 64),
	}, nil
}

type session struct {
	recognizer *Recognizer
	streaming  ports.StreamingConfig
	logger     zerolog.Logger

	events chan ports.RecognitionEvent

	mu      sync.Mutex
	started bool
	audio   ports.AudioSession
	stream  ports.StreamingSession

	stopped  atomic.Bool
	stopOnce sync.Once
}

func (s *session) Events() <-chan ports.RecognitionEvent {
	return s.events
}

// Start opens the provider stream and the microphone. Events are only
// delivered after Start returns nil.
func (s *session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return errAlreadyStarted
	}
	s.started = true

	sessionCtx, cancel := context.WithCancel(ctx)
	stream, err := s.recognizer.provider.StartStreaming(sessionCtx, s.streaming)
	if err != nil {
		cancel()
		return fmt.Errorf("start transcription stream: %w", err)
	}

	audio, err := s.recognizer.audio.Start(sessionCtx, s.recognizer.cfg.Audio)
	if err != nil {
		_ = stream.Close()
		cancel()
		return fmt.Errorf("start microphone: %w", err)
	}

	s.audio = audio
	s.stream = stream
	s.logger.Debug().Str("language", s.streaming.Language).Msg("recognition session started")

	go s.run(audio, stream, cancel)
	return nil
}

// Stop ends capture and lets the provider flush. The end event follows once
// the stream has finished or the drain timeout closes it.
func (s *session) Stop() error {
	s.mu.Lock()
	audio, stream := s.audio, s.stream
	s.mu.Unlock()

	if audio == nil || stream == nil {
		return nil
	}

	var stopErr error
	s.stopOnce.Do(func() {
		s.stopped.Store(true)
		stopErr = audio.Stop()
		_ = stream.CloseSend()

		timeout := s.recognizer.cfg.DrainTimeout
		go func() {
			if err := waitForStream(stream, timeout); err != nil {
				s.logger.Debug().Err(err).Msg("stream finished with error after stop")
			}
		}()
	})
	return stopErr
}

func (s *session) run(audio ports.AudioSession, stream ports.StreamingSession, cancel context.CancelFunc) {
	defer close(s.events)
	defer cancel()

	pumpDone := make(chan error, 1)
	go func() {
		pumpDone <- pumpAudioChunks(audio, stream, s.recognizer.cfg.ChunkSize)
	}()

	for batch := range stream.Results() {
		s.events <- ports.RecognitionEvent{Kind: ports.RecognitionResult, Fragments: batch}
	}

	if err := stream.Wait(); err != nil && !s.stopped.Load() {
		s.events <- ports.RecognitionEvent{Kind: ports.RecognitionError, Err: err}
	}

	_ = audio.Stop()
	if err := <-pumpDone; err != nil && !s.stopped.Load() {
		s.events <- ports.RecognitionEvent{Kind: ports.RecognitionError, Err: fmt.Errorf("%w: %w", ports.ErrAudioStream, err)}
	}

	s.logger.Debug().Msg("recognition session ended")
	s.events <- ports.RecognitionEvent{Kind: ports.RecognitionEnd}
}

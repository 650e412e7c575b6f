package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"vibespace/internal/domain"
	"vibespace/internal/ports"
)

// CaptureController runs an ephemeral recognition session whose finalized
// text is appended to a caller-owned buffer. It never touches the shared
// dictation state; the microphone lease keeps the two apart.
type CaptureController struct {
	recognizer ports.SpeechRecognizer
	events     ports.EventSink
	lease      *MicrophoneLease
	cfg        ports.SessionConfig
	logger     zerolog.Logger

	mu         sync.Mutex
	session    ports.RecognitionSession
	buffer     ports.TextBuffer
	generation uint64
	teardown   chan struct{}
}

func NewCaptureController(
	recognizer ports.SpeechRecognizer,
	events ports.EventSink,
	lease *MicrophoneLease,
	cfg ports.SessionConfig,
	logger zerolog.Logger,
) *CaptureController {
	if lease == nil {
		lease = NewMicrophoneLease()
	}
	return &CaptureController{
		recognizer: recognizer,
		events:     events,
		lease:      lease,
		cfg:        cfg,
		logger:     logger,
	}
}

// Start opens a capture session writing into buffer. It is a no-op while a
// capture is already running.
func (c *CaptureController) Start(ctx context.Context, buffer ports.TextBuffer) error {
	if buffer == nil {
		return errors.New("capture buffer is required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := awaitTeardown(ctx, &c.mu, &c.teardown); err != nil {
		return err
	}
	if c.session != nil {
		return nil
	}
	if !c.recognizer.Available() {
		c.events.Notice(domain.ErrorCodeCapabilityUnavailable, ErrSpeechUnavailable.Error())
		return ErrSpeechUnavailable
	}
	if !c.lease.Acquire(ownerCapture) {
		c.events.Notice(domain.ErrorCodeMicrophoneBusy, ErrMicrophoneBusy.Error())
		return ErrMicrophoneBusy
	}

	session, err := c.recognizer.CreateSession(ctx, c.cfg)
	if err == nil {
		err = session.Start(ctx)
	}
	if err != nil {
		c.lease.Release(ownerCapture)
		c.logger.Error().Err(err).Msg("failed to start quick capture")
		c.events.SessionError(domain.ErrorCodeAdapter, err.Error())
		return fmt.Errorf("start capture: %w", err)
	}

	c.generation++
	c.session = session
	c.buffer = buffer
	c.logger.Info().Msg("quick capture started")

	go c.consume(c.generation, session)
	return nil
}

// Stop ends the running capture. The microphone is released only after the
// recorder has stopped.
func (c *CaptureController) Stop() error {
	c.mu.Lock()
	session := c.session
	if session == nil {
		c.mu.Unlock()
		return ErrNoActiveSession
	}
	done := c.detachLocked()
	c.mu.Unlock()

	c.logger.Info().Msg("quick capture stopped")
	c.finishSession(session, done)
	return nil
}

// Active reports whether a capture is running.
func (c *CaptureController) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session != nil
}

func (c *CaptureController) consume(generation uint64, session ports.RecognitionSession) {
	for event := range session.Events() {
		c.handle(generation, event)
	}
	c.handle(generation, ports.RecognitionEvent{Kind: ports.RecognitionEnd})
}

func (c *CaptureController) handle(generation uint64, event ports.RecognitionEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if generation != c.generation || c.session == nil {
		return
	}

	switch event.Kind {
	case ports.RecognitionResult:
		final, _ := mergeFragments(event.Fragments)
		if final != "" {
			c.buffer.SetText(appendTranscript(c.buffer.Text(), final))
		}
	case ports.RecognitionError:
		err := event.Err
		if err == nil {
			err = errRecognition
		}
		c.logger.Warn().Err(err).Msg("capture recognition error")
		c.events.SessionError(recognitionErrorCode(err), err.Error())
	case ports.RecognitionEnd:
		session := c.session
		go c.finishSession(session, c.detachLocked())
	}
}

// detachLocked drops the running session and starts tracking its shutdown.
func (c *CaptureController) detachLocked() chan struct{} {
	c.generation++
	c.session = nil
	c.buffer = nil
	done := make(chan struct{})
	c.teardown = done
	return done
}

func (c *CaptureController) finishSession(session ports.RecognitionSession, done chan struct{}) {
	if err := session.Stop(); err != nil {
		c.logger.Warn().Err(err).Msg("capture session did not stop cleanly")
	}
	c.lease.Release(ownerCapture)

	c.mu.Lock()
	if c.teardown == done {
		c.teardown = nil
	}
	c.mu.Unlock()
	close(done)
}

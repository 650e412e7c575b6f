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

var (
	ErrSpeechUnavailable = errors.New("speech recognition is not supported on this system")
	ErrMicrophoneBusy    = errors.New("microphone is in use by another capture")
	ErrNoActiveSession   = errors.New("no active dictation session")
)

const (
	ownerDictation = "dictation"
	ownerCapture   = "capture"
)

// DictationController owns the single shared dictation session and drives
// the caption surface and text routing from its recognition events.
type DictationController struct {
	recognizer ports.SpeechRecognizer
	captions   ports.CaptionSurface
	events     ports.EventSink
	lease      *MicrophoneLease
	router     textRouter
	cfg        ports.SessionConfig
	logger     zerolog.Logger

	mu         sync.Mutex
	state      dictationState
	caption    string
	session    ports.RecognitionSession
	generation uint64

	// starting is set while a session is being opened outside the lock.
	// A stop that arrives meanwhile sets cancelStart instead.
	starting    bool
	cancelStart bool

	// teardown is closed once the previous session has stopped and the
	// microphone lease is free again.
	teardown chan struct{}
}

func NewDictationController(
	recognizer ports.SpeechRecognizer,
	rules ports.TextRules,
	targets ports.InsertionTargets,
	captions ports.CaptionSurface,
	events ports.EventSink,
	lease *MicrophoneLease,
	cfg ports.SessionConfig,
	captionsEnabled bool,
	logger zerolog.Logger,
) *DictationController {
	if lease == nil {
		lease = NewMicrophoneLease()
	}
	return &DictationController{
		recognizer: recognizer,
		captions:   captions,
		events:     events,
		lease:      lease,
		router:     newTextRouter(rules, targets, captions, logger),
		cfg:        cfg,
		logger:     logger,
		state: dictationState{
			Session:         domain.SessionStateIdle,
			CaptionsEnabled: captionsEnabled,
		},
	}
}

// Toggle starts dictation when idle and stops it when listening.
func (c *DictationController) Toggle(ctx context.Context) (domain.DictationStatus, error) {
	c.mu.Lock()
	active := c.starting || c.state.Session == domain.SessionStateListening
	c.mu.Unlock()
	if active {
		return c.Stop()
	}
	return c.Start(ctx)
}

// Start begins listening. It is a no-op while a session is already active.
func (c *DictationController) Start(ctx context.Context) (domain.DictationStatus, error) {
	err := c.start(ctx)
	return c.Status(), err
}

// Stop ends the active session and returns once its audio capture has been
// shut down. Events still in flight from it are ignored.
func (c *DictationController) Stop() (domain.DictationStatus, error) {
	c.mu.Lock()
	if c.starting {
		c.cancelStart = true
		status := c.statusLocked()
		c.mu.Unlock()
		return status, nil
	}
	if c.state.Session != domain.SessionStateListening {
		status := c.statusLocked()
		c.mu.Unlock()
		return status, ErrNoActiveSession
	}
	session, done := c.stopLocked()
	status := c.statusLocked()
	c.mu.Unlock()

	c.finishSession(session, done)
	return status, nil
}

// Status returns a snapshot of the shared session.
func (c *DictationController) Status() domain.DictationStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

// CaptionsPreferenceChanged records the persisted captions preference. The
// overlay only follows it while idle.
func (c *DictationController) CaptionsPreferenceChanged(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.CaptionsEnabled = enabled
	if c.state.Session != domain.SessionStateListening {
		c.captions.ShowCaptions(enabled)
	}
}

func (c *DictationController) start(ctx context.Context) error {
	c.mu.Lock()
	if err := awaitTeardown(ctx, &c.mu, &c.teardown); err != nil {
		c.mu.Unlock()
		return err
	}
	if c.starting || c.state.Session == domain.SessionStateListening {
		c.mu.Unlock()
		return nil
	}

	if !c.recognizer.Available() {
		defer c.mu.Unlock()
		c.logger.Warn().Msg("speech recognition unavailable")
		c.events.Notice(domain.ErrorCodeCapabilityUnavailable, ErrSpeechUnavailable.Error())
		c.events.SessionStateChanged(domain.SessionStateIdle, domain.SessionReasonSpeechUnavailable)
		return ErrSpeechUnavailable
	}

	if !c.lease.Acquire(ownerDictation) {
		defer c.mu.Unlock()
		c.events.Notice(domain.ErrorCodeMicrophoneBusy, ErrMicrophoneBusy.Error())
		c.events.SessionStateChanged(domain.SessionStateIdle, domain.SessionReasonMicrophoneBusy)
		return ErrMicrophoneBusy
	}
	c.starting = true
	c.cancelStart = false
	c.mu.Unlock()

	session, err := c.recognizer.CreateSession(ctx, c.cfg)
	if err == nil {
		err = session.Start(ctx)
	}

	c.mu.Lock()
	c.starting = false
	if err != nil {
		defer c.mu.Unlock()
		c.lease.Release(ownerDictation)
		c.logger.Error().Err(err).Msg("failed to start dictation")
		c.events.SessionError(domain.ErrorCodeAdapter, err.Error())
		c.events.SessionStateChanged(domain.SessionStateErrored, domain.SessionReasonStartFailed)
		return fmt.Errorf("start dictation: %w", err)
	}
	if c.cancelStart {
		c.cancelStart = false
		done := c.beginTeardownLocked()
		c.mu.Unlock()
		c.logger.Info().Msg("dictation stopped while starting")
		go drain(session)
		c.finishSession(session, done)
		return nil
	}
	defer c.mu.Unlock()

	c.generation++
	c.session = session
	c.state.Session = domain.SessionStateListening
	c.captions.ShowCaptions(true)
	c.setCaptionLocked(ListeningPlaceholder)
	c.events.SessionStateChanged(domain.SessionStateListening, domain.SessionReasonListeningStarted)
	c.logger.Info().Str("locale", c.cfg.Locale).Msg("dictation started")

	go c.consume(c.generation, session)
	return nil
}

// stopLocked moves to idle and returns the session to shut down outside the
// lock.
func (c *DictationController) stopLocked() (ports.RecognitionSession, chan struct{}) {
	session := c.session
	c.generation++
	c.applyLocked(endTransition(c.state))
	c.events.SessionStateChanged(domain.SessionStateIdle, domain.SessionReasonListeningStopped)
	c.logger.Info().Msg("dictation stopped")
	return session, c.beginTeardownLocked()
}

func (c *DictationController) beginTeardownLocked() chan struct{} {
	done := make(chan struct{})
	c.teardown = done
	return done
}

// finishSession stops the recorder before giving the microphone back, so a
// capture started afterwards never overlaps it.
func (c *DictationController) finishSession(session ports.RecognitionSession, done chan struct{}) {
	if session != nil {
		if err := session.Stop(); err != nil {
			c.logger.Warn().Err(err).Msg("recognition session did not stop cleanly")
		}
	}
	c.lease.Release(ownerDictation)

	c.mu.Lock()
	if c.teardown == done {
		c.teardown = nil
	}
	c.mu.Unlock()
	close(done)
}

// consume feeds one session's events through the reducer in arrival order.
func (c *DictationController) consume(generation uint64, session ports.RecognitionSession) {
	for event := range session.Events() {
		c.handle(generation, event)
	}
	c.handle(generation, ports.RecognitionEvent{Kind: ports.RecognitionEnd})
}

func (c *DictationController) handle(generation uint64, event ports.RecognitionEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if generation != c.generation {
		return
	}

	session := c.session
	tr := reduceDictation(c.state, event)
	if tr.Err != nil {
		c.logger.Warn().Err(tr.Err).Msg("recognition error")
		c.events.SessionError(recognitionErrorCode(tr.Err), tr.Err.Error())
	}
	c.applyLocked(tr)

	if tr.Dispatch != "" {
		if sink, text := c.router.Route(tr.Dispatch); sink == domain.SinkCaptionOverlay {
			c.caption = text
		}
	}
	if tr.Ended {
		c.generation++
		// The consumer may still be draining this session's events.
		go c.finishSession(session, c.beginTeardownLocked())
		c.events.SessionStateChanged(domain.SessionStateEnded, domain.SessionReasonRecognizerEnded)
		c.logger.Info().Msg("recognizer ended dictation")
	}
}

func drain(session ports.RecognitionSession) {
	for range session.Events() {
	}
}

func recognitionErrorCode(err error) domain.ErrorCode {
	if errors.Is(err, ports.ErrAudioStream) {
		return domain.ErrorCodeAudioStream
	}
	return domain.ErrorCodeAdapter
}

func (c *DictationController) applyLocked(tr dictationTransition) {
	c.state.Session = tr.Next
	if tr.SetCaption {
		c.setCaptionLocked(tr.Caption)
	}
	if tr.SetVisible {
		c.captions.ShowCaptions(tr.Visible)
	}
	if tr.Ended {
		c.session = nil
	}
}

func (c *DictationController) setCaptionLocked(text string) {
	c.caption = text
	c.captions.SetCaptionText(text)
}

func (c *DictationController) statusLocked() domain.DictationStatus {
	return domain.DictationStatus{
		State:   c.state.Session,
		Active:  c.state.Session == domain.SessionStateListening,
		Caption: c.caption,
	}
}

package usecase

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"vibespace/internal/domain"
	"vibespace/internal/ports"
)

const DefaultTickInterval = time.Second

// SystemClock is the wall-clock implementation of ports.Clock.
type SystemClock struct{}

func (SystemClock) NewTicker(d time.Duration) ports.Ticker {
	return systemTicker{ticker: time.NewTicker(d)}
}

type systemTicker struct {
	ticker *time.Ticker
}

func (t systemTicker) C() <-chan time.Time { return t.ticker.C }
func (t systemTicker) Stop()               { t.ticker.Stop() }

// TimerScheduler is the focus/break countdown. It decrements once per tick
// while running and flips phase when a tick finds zero seconds left.
type TimerScheduler struct {
	store    ports.SettingsStore
	clock    ports.Clock
	view     ports.TimerView
	cue      ports.PhaseCue
	interval time.Duration
	logger   zerolog.Logger

	mu         sync.Mutex
	state      domain.TimerState
	ticker     ports.Ticker
	halt       chan struct{}
	generation uint64
}

func NewTimerScheduler(
	ctx context.Context,
	store ports.SettingsStore,
	clock ports.Clock,
	view ports.TimerView,
	cue ports.PhaseCue,
	interval time.Duration,
	logger zerolog.Logger,
) *TimerScheduler {
	if clock == nil {
		clock = SystemClock{}
	}
	if interval <= 0 {
		interval = DefaultTickInterval
	}

	settings, err := store.Load(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("timer using default durations")
	}
	focus := settings.FocusSettings.Normalize()

	s := &TimerScheduler{
		store:    store,
		clock:    clock,
		view:     view,
		cue:      cue,
		interval: interval,
		logger:   logger,
		state: domain.TimerState{
			Phase:        domain.PhaseFocus,
			FocusMinutes: focus.FocusMinutes,
			BreakMinutes: focus.BreakMinutes,
		},
	}
	s.state.RemainingSeconds = s.state.DurationSeconds(domain.PhaseFocus)
	s.render()
	return s
}

// Start begins ticking. It is a no-op while already running.
func (s *TimerScheduler) Start() domain.TimerDisplay {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Running {
		return s.state.Display()
	}

	s.state.Running = true
	s.generation++
	s.ticker = s.clock.NewTicker(s.interval)
	s.halt = make(chan struct{})
	go s.loop(s.generation, s.ticker, s.halt)

	s.logger.Debug().Str("phase", string(s.state.Phase)).Msg("timer started")
	s.render()
	return s.state.Display()
}

// Stop cancels the tick source before returning. A non-empty reset phase
// also moves to that phase with its full duration.
func (s *TimerScheduler) Stop(reset domain.TimerPhase) domain.TimerDisplay {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.haltLocked()
	if reset == domain.PhaseFocus || reset == domain.PhaseBreak {
		s.state.Phase = reset
		s.state.RemainingSeconds = s.state.DurationSeconds(reset)
	}

	s.logger.Debug().Str("phase", string(s.state.Phase)).Int("remaining", s.state.RemainingSeconds).Msg("timer stopped")
	s.render()
	return s.state.Display()
}

// Toggle pauses a running timer or starts an idle one.
func (s *TimerScheduler) Toggle() domain.TimerDisplay {
	s.mu.Lock()
	running := s.state.Running
	s.mu.Unlock()

	if running {
		return s.Stop(domain.PhaseNone)
	}
	return s.Start()
}

// Reconfigure applies new durations, persists them and resets to the focus
// phase. Values below one keep the previous duration. Running state is kept.
func (s *TimerScheduler) Reconfigure(ctx context.Context, focusMinutes, breakMinutes int) domain.TimerDisplay {
	s.mu.Lock()
	if focusMinutes >= 1 {
		s.state.FocusMinutes = focusMinutes
	}
	if breakMinutes >= 1 {
		s.state.BreakMinutes = breakMinutes
	}
	s.state.Phase = domain.PhaseFocus
	s.state.RemainingSeconds = s.state.DurationSeconds(domain.PhaseFocus)
	focus := domain.FocusSettings{FocusMinutes: s.state.FocusMinutes, BreakMinutes: s.state.BreakMinutes}
	s.render()
	display := s.state.Display()
	s.mu.Unlock()

	if _, err := s.store.SaveFocus(ctx, focus); err != nil {
		s.logger.Warn().Err(err).Msg("timer durations not persisted")
	}
	return display
}

// Status returns the current timer state.
func (s *TimerScheduler) Status() domain.TimerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Close stops the tick source without rendering.
func (s *TimerScheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.haltLocked()
}

func (s *TimerScheduler) loop(generation uint64, ticker ports.Ticker, halt <-chan struct{}) {
	for {
		select {
		case <-halt:
			return
		case <-ticker.C():
			if !s.handleTick(generation) {
				return
			}
		}
	}
}

// handleTick applies one tick for the given run. It reports false once the
// run has been stopped so the loop can exit.
func (s *TimerScheduler) handleTick(generation uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if generation != s.generation || !s.state.Running {
		return false
	}

	if s.state.RemainingSeconds > 0 {
		s.state.RemainingSeconds--
		s.render()
		return true
	}

	s.state.Phase = s.state.Phase.Next()
	s.state.RemainingSeconds = s.state.DurationSeconds(s.state.Phase)
	s.render()
	s.logger.Info().Str("phase", string(s.state.Phase)).Msg("timer phase switched")
	if s.cue != nil {
		s.cue.PhaseChanged(s.state.Phase)
	}
	return true
}

func (s *TimerScheduler) haltLocked() {
	s.state.Running = false
	s.generation++
	if s.ticker != nil {
		s.ticker.Stop()
		s.ticker = nil
	}
	if s.halt != nil {
		close(s.halt)
		s.halt = nil
	}
}

func (s *TimerScheduler) render() {
	if s.view != nil {
		s.view.TimerUpdated(s.state.Display())
	}
}

// ParseMinutes converts a duration field from the UI. Anything that is not a
// whole number yields 0, which Reconfigure then coerces.
func ParseMinutes(input string) int {
	value, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil {
		return 0
	}
	return value
}

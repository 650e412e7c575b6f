package cue

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/effects"
	"github.com/faiface/beep/speaker"
	"github.com/rs/zerolog"

	"vibespace/internal/domain"
	"vibespace/internal/ports"
)

const sampleRate = beep.SampleRate(44100)

// Config controls the phase-change tone.
type Config struct {
	Enabled     bool
	FrequencyHz int
	Duration    time.Duration
	VolumeDB    float64
}

// Tone plays a short synthesized chime when the timer changes phase. Focus
// starts sound a fifth above the base frequency, breaks at the base.
type Tone struct {
	cfg    Config
	logger zerolog.Logger

	initOnce sync.Once
	initErr  error
	playing  atomic.Bool
}

func NewTone(cfg Config, logger zerolog.Logger) *Tone {
	if cfg.FrequencyHz <= 0 {
		cfg.FrequencyHz = 880
	}
	if cfg.Duration <= 0 {
		cfg.Duration = 350 * time.Millisecond
	}
	return &Tone{cfg: cfg, logger: logger}
}

// PhaseChanged starts the chime and returns immediately. A chime that is
// still sounding swallows the next one.
func (t *Tone) PhaseChanged(phase domain.TimerPhase) {
	if !t.cfg.Enabled {
		return
	}
	if !t.playing.CompareAndSwap(false, true) {
		return
	}
	go t.play(phase)
}

func (t *Tone) play(phase domain.TimerPhase) {
	t.initOnce.Do(func() {
		t.initErr = speaker.Init(sampleRate, sampleRate.N(time.Second/10))
		if t.initErr != nil {
			t.logger.Warn().Err(t.initErr).Msg("audio output unavailable, phase tone disabled")
		}
	})
	if t.initErr != nil {
		t.playing.Store(false)
		return
	}

	volume := &effects.Volume{
		Streamer: sineTone(sampleRate, frequencyFor(phase, t.cfg.FrequencyHz), t.cfg.Duration),
		Base:     2,
		Volume:   t.cfg.VolumeDB,
	}
	speaker.Play(beep.Seq(volume, beep.Callback(func() {
		t.playing.Store(false)
	})))
}

func frequencyFor(phase domain.TimerPhase, base int) float64 {
	if phase == domain.PhaseFocus {
		return float64(base) * 1.5
	}
	return float64(base)
}

// sineTone is a mono sine wave with a short linear fade at both ends.
func sineTone(sr beep.SampleRate, frequency float64, duration time.Duration) beep.Streamer {
	total := sr.N(duration)
	fade := sr.N(10 * time.Millisecond)
	step := 2 * math.Pi * frequency / float64(sr)
	position := 0

	return beep.StreamerFunc(func(samples [][2]float64) (n int, ok bool) {
		if position >= total {
			return 0, false
		}
		for i := range samples {
			if position >= total {
				break
			}
			value := math.Sin(step*float64(position)) * envelope(position, total, fade)
			samples[i][0] = value
			samples[i][1] = value
			position++
			n++
		}
		return n, true
	})
}

func envelope(position, total, fade int) float64 {
	if fade <= 0 {
		return 1
	}
	if position < fade {
		return float64(position) / float64(fade)
	}
	if remaining := total - position; remaining < fade {
		return float64(remaining) / float64(fade)
	}
	return 1
}

// Fanout forwards a phase change to every cue in order.
type Fanout []ports.PhaseCue

func (f Fanout) PhaseChanged(phase domain.TimerPhase) {
	for _, cue := range f {
		if cue != nil {
			cue.PhaseChanged(phase)
		}
	}
}

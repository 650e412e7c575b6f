package domain

import "fmt"

// TimerPhase is one of the two alternating timer modes.
type TimerPhase string

const (
	// PhaseNone is used by Stop to mean "pause without resetting".
	PhaseNone  TimerPhase = ""
	PhaseFocus TimerPhase = "focus"
	PhaseBreak TimerPhase = "break"
)

// Next returns the phase that follows p.
func (p TimerPhase) Next() TimerPhase {
	if p == PhaseFocus {
		return PhaseBreak
	}
	return PhaseFocus
}

// Label is the user-facing phase name.
func (p TimerPhase) Label() string {
	if p == PhaseBreak {
		return "Break Time"
	}
	return "Focus Time"
}

// TimerState is the scheduler's owned state.
type TimerState struct {
	Phase            TimerPhase `json:"phase"`
	RemainingSeconds int        `json:"remainingSeconds"`
	Running          bool       `json:"running"`
	FocusMinutes     int        `json:"focusMinutes"`
	BreakMinutes     int        `json:"breakMinutes"`
}

// DurationSeconds returns the full length of phase p.
func (s TimerState) DurationSeconds(p TimerPhase) int {
	if p == PhaseBreak {
		return s.BreakMinutes * 60
	}
	return s.FocusMinutes * 60
}

// TimerDisplay is what the presentation layer renders after every change.
type TimerDisplay struct {
	Clock      string     `json:"clock"`
	PhaseLabel string     `json:"phaseLabel"`
	Phase      TimerPhase `json:"phase"`
	Running    bool       `json:"running"`
}

func (s TimerState) Display() TimerDisplay {
	return TimerDisplay{
		Clock:      FormatClock(s.RemainingSeconds),
		PhaseLabel: s.Phase.Label(),
		Phase:      s.Phase,
		Running:    s.Running,
	}
}

// FormatClock renders seconds as zero-padded minutes:seconds.
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

package usecase

import (
	"errors"

	"vibespace/internal/domain"
	"vibespace/internal/ports"
)

var errRecognition = errors.New("speech recognition error")

// dictationState is the part of the shared session the reducer reads.
type dictationState struct {
	Session         domain.SessionState
	CaptionsEnabled bool
}

// dictationTransition describes the effects of one adapter event. Zero
// values mean "leave unchanged".
type dictationTransition struct {
	Next domain.SessionState

	SetCaption bool
	Caption    string

	SetVisible bool
	Visible    bool

	// Dispatch is finalized text to route, consumed by this update.
	Dispatch string
	Err      error
	Ended    bool
}

// reduceDictation maps (state, event) to the next state and its side effects.
// Events that arrive while not listening are ignored, which makes a late end
// after an explicit stop a no-op.
func reduceDictation(state dictationState, event ports.RecognitionEvent) dictationTransition {
	if state.Session != domain.SessionStateListening {
		return dictationTransition{Next: state.Session}
	}

	switch event.Kind {
	case ports.RecognitionResult:
		final, interim := mergeFragments(event.Fragments)
		return dictationTransition{
			Next:       domain.SessionStateListening,
			SetCaption: true,
			Caption:    captionText(final, interim),
			Dispatch:   final,
		}

	case ports.RecognitionError:
		err := event.Err
		if err == nil {
			err = errRecognition
		}
		return dictationTransition{Next: domain.SessionStateListening, Err: err}

	case ports.RecognitionEnd:
		return endTransition(state)

	default:
		return dictationTransition{Next: state.Session}
	}
}

// endTransition clears the caption and hands overlay visibility back to the
// captions preference.
func endTransition(state dictationState) dictationTransition {
	return dictationTransition{
		Next:       domain.SessionStateIdle,
		SetCaption: true,
		Caption:    "",
		SetVisible: true,
		Visible:    state.CaptionsEnabled,
		Ended:      true,
	}
}

package ports

import (
	"context"
	"errors"
	"io"
	"time"

	"vibespace/internal/domain"
)

// ErrAudioStream marks recognition errors caused by the microphone feed rather
// than the recognition service.
var ErrAudioStream = errors.New("audio stream interrupted")

// AudioConfig describes how the microphone should be captured.
type AudioConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
}

// AudioSession is a live capture session.
type AudioSession interface {
	io.ReadCloser
	Stop() error
}

// AudioCapture creates microphone capture sessions.
type AudioCapture interface {
	Available() bool
	Start(ctx context.Context, cfg AudioConfig) (AudioSession, error)
}

// StreamingConfig describes provider-agnostic streaming settings.
type StreamingConfig struct {
	SampleRate     int
	Channels       int
	Encoding       string
	Language       string
	InterimResults bool
}

// StreamingSession is an active provider websocket session. Every value
// received from Results is one ordered result batch.
type StreamingSession interface {
	SendAudio(chunk []byte) error
	CloseSend() error
	Results() <-chan []domain.Fragment
	Wait() error
	Close() error
}

// TranscriptionProvider starts streaming transcription sessions.
type TranscriptionProvider interface {
	Configured() bool
	StartStreaming(ctx context.Context, cfg StreamingConfig) (StreamingSession, error)
}

// SessionConfig configures a recognition session.
type SessionConfig struct {
	Locale         string
	InterimResults bool
}

// RecognitionEventKind classifies adapter events.
type RecognitionEventKind string

const (
	RecognitionResult RecognitionEventKind = "result"
	RecognitionError  RecognitionEventKind = "error"
	RecognitionEnd    RecognitionEventKind = "end"
)

// RecognitionEvent is one adapter callback, delivered in issuance order.
type RecognitionEvent struct {
	Kind      RecognitionEventKind
	Fragments []domain.Fragment
	Err       error
}

// RecognitionSession is a single speech-to-text session. The Events channel
// is closed after the end event has been delivered.
type RecognitionSession interface {
	Start(ctx context.Context) error
	Stop() error
	Events() <-chan RecognitionEvent
}

// SpeechRecognizer is the platform speech-to-text capability.
type SpeechRecognizer interface {
	// Available reports whether CreateSession can be expected to succeed.
	Available() bool
	CreateSession(ctx context.Context, cfg SessionConfig) (RecognitionSession, error)
}

// TextRules transforms finalized dictation text.
type TextRules interface {
	Apply(text string) (string, error)
}

// CaptionSurface is the caption overlay.
type CaptionSurface interface {
	ShowCaptions(visible bool)
	SetCaptionText(text string)
}

// EditableField is the focused input, textarea or content-editable element.
// Selection offsets are in runes.
type EditableField interface {
	Value() string
	Selection() (start int, end int)
	Replace(value string, caret int)
}

// ChatSurface is a chat-like log the page exposes.
type ChatSurface interface {
	AppendEntry(entry domain.ChatEntry)
	ScrollToEnd()
}

// InsertionTargets resolves text-insertion targets at finalize time.
type InsertionTargets interface {
	FocusedEditable() (EditableField, bool)
	ChatSurface() (ChatSurface, bool)
}

// TextBuffer is a caller-owned transcript buffer used by quick capture.
type TextBuffer interface {
	Text() string
	SetText(text string)
}

// EventSink emits backend state/events to the UI.
type EventSink interface {
	SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason)
	SessionError(code domain.ErrorCode, detail string)
	Notice(code domain.ErrorCode, message string)
}

// AppearanceView applies theme, font size and dyslexic font classes.
type AppearanceView interface {
	AppearanceChanged(appearance domain.Appearance)
}

// TimerView renders timer state.
type TimerView interface {
	TimerUpdated(display domain.TimerDisplay)
}

// PhaseCue signals a phase change audibly or visually.
type PhaseCue interface {
	PhaseChanged(phase domain.TimerPhase)
}

// Ticker delivers periodic ticks until stopped.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Clock creates tick sources.
type Clock interface {
	NewTicker(d time.Duration) Ticker
}

// SettingsStore persists user preferences.
type SettingsStore interface {
	Load(ctx context.Context) (domain.Settings, error)
	UpdateGeneral(ctx context.Context, patch domain.GeneralPatch) (domain.GeneralSettings, error)
	SaveFocus(ctx context.Context, focus domain.FocusSettings) (domain.FocusSettings, error)
}

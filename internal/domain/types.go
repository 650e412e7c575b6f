package domain

import "time"

// SessionState models the shared dictation session lifecycle. Ended is only
// announced when the recognizer ends a session on its own; the controller is
// idle again at that point.
type SessionState string

const (
	SessionStateIdle      SessionState = "idle"
	SessionStateListening SessionState = "listening"
	SessionStateEnded     SessionState = "ended"
	SessionStateErrored   SessionState = "errored"
)

// SessionStateReason provides a structured reason for state transitions.
type SessionStateReason string

const (
	SessionReasonReady             SessionStateReason = "ready"
	SessionReasonListeningStarted  SessionStateReason = "listening_started"
	SessionReasonListeningStopped  SessionStateReason = "listening_stopped"
	SessionReasonRecognizerEnded   SessionStateReason = "recognizer_ended"
	SessionReasonSpeechUnavailable SessionStateReason = "speech_unavailable"
	SessionReasonMicrophoneBusy    SessionStateReason = "microphone_busy"
	SessionReasonStartFailed       SessionStateReason = "start_failed"
)

// ErrorCode identifies non-fatal and fatal backend errors.
type ErrorCode string

const (
	ErrorCodeStartup               ErrorCode = "startup"
	ErrorCodeCapabilityUnavailable ErrorCode = "capability_unavailable"
	ErrorCodeAdapter               ErrorCode = "adapter_error"
	ErrorCodeStorage               ErrorCode = "storage_unavailable"
	ErrorCodeMicrophoneBusy        ErrorCode = "microphone_busy"
	ErrorCodeAudioStream           ErrorCode = "audio_stream"
	ErrorCodeRules                 ErrorCode = "rules_unavailable"
)

// Fragment is one recognition result segment. Interim fragments are the
// recognizer's current guess for the unfinalized tail and may be revised.
type Fragment struct {
	Text    string `json:"text"`
	IsFinal bool   `json:"isFinal"`
}

// Sink identifies where a finalized dictation fragment was delivered.
type Sink string

const (
	SinkActiveInput    Sink = "active_input"
	SinkChatSurface    Sink = "chat_surface"
	SinkCaptionOverlay Sink = "caption_overlay"
)

// ChatEntry is a dictated line appended to a chat-like surface.
type ChatEntry struct {
	ID   string    `json:"id"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// DictationStatus summarizes the shared dictation session.
type DictationStatus struct {
	State   SessionState `json:"state"`
	Active  bool         `json:"active"`
	Caption string       `json:"caption,omitempty"`
	Message string       `json:"message,omitempty"`
}

package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"vibespace/internal/bootstrap"
	"vibespace/internal/domain"
	"vibespace/internal/usecase"
)

const (
	eventSession    = "vibespace:session"
	eventError      = "vibespace:error"
	eventNotice     = "vibespace:notice"
	eventCaptions   = "vibespace:captions"
	eventCaption    = "vibespace:caption"
	eventTimer      = "vibespace:timer"
	eventPhase      = "vibespace:phase"
	eventAppearance = "vibespace:appearance"
	eventInsert     = "vibespace:insert"
	eventChat       = "vibespace:chat"
	eventChatScroll = "vibespace:chat-scroll"
	eventCapture    = "vibespace:capture"
)

type emitFunc func(ctx context.Context, name string, data ...interface{})

// App is the Wails application root.
type App struct {
	ctx  context.Context
	emit emitFunc

	services bootstrap.Services
	targets  *pageTargets
	capture  *captureBuffer
	ready    bool
	bootErr  error
}

func NewApp() *App {
	app := &App{emit: runtime.EventsEmit}
	app.targets = newPageTargets(app.publish)
	return app
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(ctx, a, a.targets)
	if err != nil {
		a.bootErr = err
		a.SessionError(domain.ErrorCodeStartup, err.Error())
		return
	}

	a.services = services
	a.ready = true
	a.services.Preferences.Apply(ctx)
	a.SessionStateChanged(domain.SessionStateIdle, domain.SessionReasonReady)
}

func (a *App) shutdown(context.Context) {
	if !a.ready {
		return
	}
	if err := a.services.Close(); err != nil {
		a.services.Logger.Warn().Err(err).Msg("shutdown cleanup failed")
	}
}

// PageReady replays the current appearance, caption and timer state once the
// page has subscribed to events.
func (a *App) PageReady() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	a.services.ReplayNotices(a)
	a.services.Preferences.Apply(a.ctx)
	a.TimerUpdated(a.services.Timer.Status().Display())
	status := a.services.Dictation.Status()
	if status.Active {
		a.SetCaptionText(status.Caption)
	}
	return nil
}

// ToggleDictation starts dictation when idle and stops it when listening.
func (a *App) ToggleDictation() (domain.DictationStatus, error) {
	if err := a.requireReady(); err != nil {
		return domain.DictationStatus{}, err
	}
	return a.services.Dictation.Toggle(a.ctx)
}

// StartDictation opens the shared dictation session.
func (a *App) StartDictation() (domain.DictationStatus, error) {
	if err := a.requireReady(); err != nil {
		return domain.DictationStatus{}, err
	}
	return a.services.Dictation.Start(a.ctx)
}

// StopDictation ends the shared dictation session. Stopping while idle is not
// an error for the page.
func (a *App) StopDictation() (domain.DictationStatus, error) {
	if err := a.requireReady(); err != nil {
		return domain.DictationStatus{}, err
	}
	status, err := a.services.Dictation.Stop()
	if errors.Is(err, usecase.ErrNoActiveSession) {
		return status, nil
	}
	return status, err
}

// GetDictationStatus returns the shared session status.
func (a *App) GetDictationStatus() domain.DictationStatus {
	if !a.ready {
		if a.bootErr != nil {
			return domain.DictationStatus{State: domain.SessionStateErrored, Message: a.bootErr.Error()}
		}
		return domain.DictationStatus{State: domain.SessionStateIdle}
	}
	return a.services.Dictation.Status()
}

// StartCapture records speech into the quick-post text box, seeded with its
// current contents.
func (a *App) StartCapture(initial string) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	if a.services.Capture.Active() {
		return nil
	}
	buffer := newCaptureBuffer(initial, a.publish)
	if err := a.services.Capture.Start(a.ctx, buffer); err != nil {
		return err
	}
	a.capture = buffer
	return nil
}

// StopCapture ends quick-post capture and returns the captured text.
func (a *App) StopCapture() (string, error) {
	if err := a.requireReady(); err != nil {
		return "", err
	}
	err := a.services.Capture.Stop()
	text := ""
	if a.capture != nil {
		text = a.capture.Text()
		a.capture = nil
	}
	if errors.Is(err, usecase.ErrNoActiveSession) {
		return text, nil
	}
	return text, err
}

// FocusChanged records the editable element the page has focused.
func (a *App) FocusChanged(field FieldSnapshot) {
	a.targets.Focus(field)
}

// FocusCleared records that no editable element has focus.
func (a *App) FocusCleared() {
	a.targets.Blur()
}

// ChatSurfaceChanged records the chat log present on the page, if any.
func (a *App) ChatSurfaceChanged(id string) {
	a.targets.SetChat(id)
}

// HandleShortcut toggles dictation on a plain "v" press outside editable
// elements. It reports whether the key was consumed.
func (a *App) HandleShortcut(key KeyPress) bool {
	if !strings.EqualFold(key.Key, "v") || key.Meta || key.Ctrl || key.Alt {
		return false
	}
	if key.Editable || a.targets.HasFocus() {
		return false
	}
	// Start failures are already surfaced as notices or session errors.
	_, _ = a.ToggleDictation()
	return true
}

// StartTimer begins the countdown.
func (a *App) StartTimer() (domain.TimerDisplay, error) {
	if err := a.requireReady(); err != nil {
		return domain.TimerDisplay{}, err
	}
	return a.services.Timer.Start(), nil
}

// StopTimer pauses the countdown. A reset of "focus" or "break" also moves to
// the start of that phase.
func (a *App) StopTimer(reset string) (domain.TimerDisplay, error) {
	if err := a.requireReady(); err != nil {
		return domain.TimerDisplay{}, err
	}
	phase := domain.TimerPhase(strings.ToLower(strings.TrimSpace(reset)))
	if phase != domain.PhaseFocus && phase != domain.PhaseBreak {
		phase = domain.PhaseNone
	}
	return a.services.Timer.Stop(phase), nil
}

// ToggleTimer pauses a running timer and resumes a paused one.
func (a *App) ToggleTimer() (domain.TimerDisplay, error) {
	if err := a.requireReady(); err != nil {
		return domain.TimerDisplay{}, err
	}
	return a.services.Timer.Toggle(), nil
}

// SaveTimerSettings applies the raw minute fields from the timer form.
func (a *App) SaveTimerSettings(focusMinutes, breakMinutes string) (domain.TimerDisplay, error) {
	if err := a.requireReady(); err != nil {
		return domain.TimerDisplay{}, err
	}
	return a.services.Timer.Reconfigure(a.ctx, usecase.ParseMinutes(focusMinutes), usecase.ParseMinutes(breakMinutes)), nil
}

// GetTimerStatus returns the current timer state.
func (a *App) GetTimerStatus() (domain.TimerState, error) {
	if err := a.requireReady(); err != nil {
		return domain.TimerState{}, err
	}
	return a.services.Timer.Status(), nil
}

// GetSettings returns the complete preference record.
func (a *App) GetSettings() (domain.Settings, error) {
	if err := a.requireReady(); err != nil {
		return domain.DefaultSettings(), err
	}
	return a.services.Preferences.Settings(a.ctx), nil
}

// UpdateSettings merges a partial change into the general preferences.
func (a *App) UpdateSettings(patch domain.GeneralPatch) (domain.GeneralSettings, error) {
	if err := a.requireReady(); err != nil {
		return domain.GeneralSettings{}, err
	}
	return a.services.Preferences.Update(a.ctx, patch), nil
}

// ToggleCaptions flips the captions preference.
func (a *App) ToggleCaptions() (domain.GeneralSettings, error) {
	if err := a.requireReady(); err != nil {
		return domain.GeneralSettings{}, err
	}
	return a.services.Preferences.ToggleCaptions(a.ctx), nil
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}
	cfg := a.services.Config
	return map[string]string{
		"provider":   "Deepgram",
		"model":      cfg.Deepgram.Model,
		"locale":     cfg.Speech.Locale,
		"rulesFile":  cfg.Rules.Path,
		"storage":    cfg.Storage.Backend,
		"audioInput": cfg.Audio.InputDevice,
	}
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if !a.ready {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

func (a *App) publish(name string, payload interface{}) {
	if a.ctx == nil || a.emit == nil {
		return
	}
	a.emit(a.ctx, name, payload)
}

// SessionStateChanged emits session lifecycle updates to the frontend.
func (a *App) SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason) {
	a.publish(eventSession, map[string]string{
		"state":   string(state),
		"reason":  string(reason),
		"message": sessionReasonMessage(reason),
	})
}

// SessionError emits backend errors to the UI.
func (a *App) SessionError(code domain.ErrorCode, detail string) {
	a.publish(eventError, map[string]string{
		"code":    string(code),
		"message": errorMessage(code, detail),
		"detail":  detail,
	})
}

// Notice emits a user-facing notice.
func (a *App) Notice(code domain.ErrorCode, message string) {
	a.publish(eventNotice, map[string]string{
		"code":    string(code),
		"message": message,
	})
}

// ShowCaptions shows or hides the caption overlay.
func (a *App) ShowCaptions(visible bool) {
	a.publish(eventCaptions, map[string]bool{"visible": visible})
}

// SetCaptionText replaces the caption overlay text.
func (a *App) SetCaptionText(text string) {
	a.publish(eventCaption, map[string]string{"text": text})
}

// TimerUpdated renders the timer.
func (a *App) TimerUpdated(display domain.TimerDisplay) {
	a.publish(eventTimer, display)
}

// PhaseChanged lets the page flash the timer on a phase switch.
func (a *App) PhaseChanged(phase domain.TimerPhase) {
	a.publish(eventPhase, map[string]string{
		"phase": string(phase),
		"label": phase.Label(),
	})
}

// AppearanceChanged applies theme, font size and dyslexic font.
func (a *App) AppearanceChanged(appearance domain.Appearance) {
	a.publish(eventAppearance, appearance)
}

func sessionReasonMessage(reason domain.SessionStateReason) string {
	switch reason {
	case domain.SessionReasonReady:
		return "Ready"
	case domain.SessionReasonListeningStarted:
		return "Listening..."
	case domain.SessionReasonListeningStopped:
		return "Voice stopped"
	case domain.SessionReasonRecognizerEnded:
		return "Speech recognition ended"
	case domain.SessionReasonSpeechUnavailable:
		return "Speech recognition not supported"
	case domain.SessionReasonMicrophoneBusy:
		return "Microphone is in use"
	case domain.SessionReasonStartFailed:
		return "Could not start speech recognition"
	default:
		return ""
	}
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodeCapabilityUnavailable:
		return "Speech recognition not supported"
	case domain.ErrorCodeAdapter:
		return "Speech recognition error"
	case domain.ErrorCodeStorage:
		return "Preferences could not be saved"
	case domain.ErrorCodeMicrophoneBusy:
		return "Microphone is in use"
	case domain.ErrorCodeAudioStream:
		return "Audio streaming issue"
	case domain.ErrorCodeRules:
		return "Phrase rules could not be loaded"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}

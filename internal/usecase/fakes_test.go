package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"vibespace/internal/domain"
	"vibespace/internal/ports"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

type fakeRecognizer struct {
	mu        sync.Mutex
	available bool
	createErr error
	startErr  error
	startGate chan struct{} // holds session Start until closed
	stopGate  chan struct{} // holds session Stop until closed
	sessions  []*fakeSession
	configs   []ports.SessionConfig
}

func (f *fakeRecognizer) Available() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.available
}

func (f *fakeRecognizer) CreateSession(_ context.Context, cfg ports.SessionConfig) (ports.RecognitionSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	session := &fakeSession{
		events:    make(chan ports.RecognitionEvent, 16),
		startErr:  f.startErr,
		startGate: f.startGate,
		stopGate:  f.stopGate,
	}
	f.sessions = append(f.sessions, session)
	f.configs = append(f.configs, cfg)
	return session, nil
}

func (f *fakeRecognizer) session(t *testing.T, index int) *fakeSession {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if index >= len(f.sessions) {
		t.Fatalf("session %d was never created (have %d)", index, len(f.sessions))
	}
	return f.sessions[index]
}

func (f *fakeRecognizer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sessions)
}

type fakeSession struct {
	events    chan ports.RecognitionEvent
	startErr  error
	startGate chan struct{}
	stopGate  chan struct{}

	mu         sync.Mutex
	startCalls int
	stopCalls  int
	stopsDone  int
	closed     bool
}

func (f *fakeSession) Start(context.Context) error {
	f.mu.Lock()
	f.startCalls++
	f.mu.Unlock()
	if f.startGate != nil {
		<-f.startGate
	}
	return f.startErr
}

func (f *fakeSession) Stop() error {
	f.mu.Lock()
	f.stopCalls++
	f.mu.Unlock()
	if f.stopGate != nil {
		<-f.stopGate
	}
	f.mu.Lock()
	f.stopsDone++
	f.mu.Unlock()
	return nil
}

func (f *fakeSession) starts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.startCalls
}

func (f *fakeSession) stopped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopsDone > 0
}

func (f *fakeSession) Events() <-chan ports.RecognitionEvent { return f.events }

func (f *fakeSession) result(fragments ...domain.Fragment) {
	f.events <- ports.RecognitionEvent{Kind: ports.RecognitionResult, Fragments: fragments}
}

func (f *fakeSession) fail(err error) {
	f.events <- ports.RecognitionEvent{Kind: ports.RecognitionError, Err: err}
}

func (f *fakeSession) end() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	f.events <- ports.RecognitionEvent{Kind: ports.RecognitionEnd}
	close(f.events)
}

func (f *fakeSession) stops() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopCalls
}

type fakeCaptions struct {
	mu      sync.Mutex
	visible bool
	text    string
	texts   []string
}

func (f *fakeCaptions) ShowCaptions(visible bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.visible = visible
}

func (f *fakeCaptions) SetCaptionText(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.text = text
	f.texts = append(f.texts, text)
}

func (f *fakeCaptions) snapshot() (bool, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.visible, f.text
}

type fakeField struct {
	mu         sync.Mutex
	value      string
	start, end int
	replaced   int
}

func (f *fakeField) Value() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value
}

func (f *fakeField) Selection() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.start, f.end
}

func (f *fakeField) Replace(value string, caret int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.value = value
	f.start, f.end = caret, caret
	f.replaced++
}

func (f *fakeField) snapshot() (string, int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value, f.start, f.replaced
}

type fakeChat struct {
	mu       sync.Mutex
	entries  []domain.ChatEntry
	scrolled int
}

func (f *fakeChat) AppendEntry(entry domain.ChatEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entry)
}

func (f *fakeChat) ScrollToEnd() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scrolled++
}

func (f *fakeChat) snapshot() ([]domain.ChatEntry, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.ChatEntry(nil), f.entries...), f.scrolled
}

type fakeTargets struct {
	field *fakeField
	chat  *fakeChat
}

func (f *fakeTargets) FocusedEditable() (ports.EditableField, bool) {
	if f.field == nil {
		return nil, false
	}
	return f.field, true
}

func (f *fakeTargets) ChatSurface() (ports.ChatSurface, bool) {
	if f.chat == nil {
		return nil, false
	}
	return f.chat, true
}

type fakeRules struct {
	transform func(string) string
	err       error
}

func (f *fakeRules) Apply(text string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if f.transform != nil {
		return f.transform(text), nil
	}
	return text, nil
}

type fakeEventSink struct {
	mu sync.Mutex

	states  []stateEvent
	errors  []codeEvent
	notices []codeEvent
}

type stateEvent struct {
	state  domain.SessionState
	reason domain.SessionStateReason
}

type codeEvent struct {
	code    domain.ErrorCode
	message string
}

func (f *fakeEventSink) SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, stateEvent{state: state, reason: reason})
}

func (f *fakeEventSink) SessionError(code domain.ErrorCode, detail string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, codeEvent{code: code, message: detail})
}

func (f *fakeEventSink) Notice(code domain.ErrorCode, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notices = append(f.notices, codeEvent{code: code, message: message})
}

func (f *fakeEventSink) snapshotStates() []stateEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]stateEvent(nil), f.states...)
}

func (f *fakeEventSink) snapshotErrors() []codeEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]codeEvent(nil), f.errors...)
}

func (f *fakeEventSink) snapshotNotices() []codeEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]codeEvent(nil), f.notices...)
}

type fakeSettingsStore struct {
	mu       sync.Mutex
	settings domain.Settings
	err      error
	saved    []domain.FocusSettings
	patches  int
}

func newFakeSettingsStore() *fakeSettingsStore {
	return &fakeSettingsStore{settings: domain.DefaultSettings()}
}

func (f *fakeSettingsStore) Load(context.Context) (domain.Settings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.settings, f.err
}

func (f *fakeSettingsStore) UpdateGeneral(_ context.Context, patch domain.GeneralPatch) (domain.GeneralSettings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.patches++
	f.settings.GeneralSettings = patch.Apply(f.settings.GeneralSettings)
	return f.settings.GeneralSettings, f.err
}

func (f *fakeSettingsStore) SaveFocus(_ context.Context, focus domain.FocusSettings) (domain.FocusSettings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, focus)
	f.settings.FocusSettings = focus
	return focus, f.err
}

func (f *fakeSettingsStore) savedFocus() []domain.FocusSettings {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.FocusSettings(nil), f.saved...)
}

var errDiskFull = errors.New("disk full")

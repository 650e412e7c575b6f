package usecase

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"vibespace/internal/domain"
	"vibespace/internal/ports"
)

func TestReduceDictationResult(t *testing.T) {
	t.Parallel()

	state := dictationState{Session: domain.SessionStateListening}
	tr := reduceDictation(state, ports.RecognitionEvent{
		Kind: ports.RecognitionResult,
		Fragments: []domain.Fragment{
			{Text: "good", IsFinal: true},
			{Text: "mor"},
			{Text: "morning", IsFinal: true},
			{Text: " "},
		},
	})

	if tr.Next != domain.SessionStateListening {
		t.Fatalf("unexpected next state: %s", tr.Next)
	}
	if tr.Dispatch != "good morning" {
		t.Fatalf("unexpected dispatch: %q", tr.Dispatch)
	}
	if !tr.SetCaption || tr.Caption != "good morning mor" {
		t.Fatalf("unexpected caption: %+v", tr)
	}
	if tr.SetVisible || tr.Ended || tr.Err != nil {
		t.Fatalf("unexpected side effects: %+v", tr)
	}
}

func TestReduceDictationInterimOnlyDispatchesNothing(t *testing.T) {
	t.Parallel()

	tr := reduceDictation(dictationState{Session: domain.SessionStateListening}, ports.RecognitionEvent{
		Kind:      ports.RecognitionResult,
		Fragments: []domain.Fragment{{Text: "thinking"}},
	})
	if tr.Dispatch != "" || tr.Caption != "thinking" {
		t.Fatalf("unexpected transition: %+v", tr)
	}
}

func TestReduceDictationEmptyUpdateClearsCaption(t *testing.T) {
	t.Parallel()

	tr := reduceDictation(dictationState{Session: domain.SessionStateListening}, ports.RecognitionEvent{
		Kind:      ports.RecognitionResult,
		Fragments: []domain.Fragment{{Text: " "}, {Text: "", IsFinal: true}},
	})
	if !tr.SetCaption || tr.Caption != "" {
		t.Fatalf("expected the caption to be rendered empty, got %+v", tr)
	}
	if tr.Dispatch != "" || tr.Next != domain.SessionStateListening {
		t.Fatalf("unexpected transition: %+v", tr)
	}
}

func TestReduceDictationErrorAndEnd(t *testing.T) {
	t.Parallel()

	listening := dictationState{Session: domain.SessionStateListening, CaptionsEnabled: false}

	tr := reduceDictation(listening, ports.RecognitionEvent{Kind: ports.RecognitionError})
	if tr.Next != domain.SessionStateListening || !errors.Is(tr.Err, errRecognition) {
		t.Fatalf("unexpected error transition: %+v", tr)
	}

	tr = reduceDictation(listening, ports.RecognitionEvent{Kind: ports.RecognitionEnd})
	if tr.Next != domain.SessionStateIdle || !tr.Ended {
		t.Fatalf("expected end to go idle: %+v", tr)
	}
	if !tr.SetCaption || tr.Caption != "" || !tr.SetVisible || tr.Visible {
		t.Fatalf("expected cleared hidden overlay: %+v", tr)
	}
}

func TestReduceDictationIgnoresEventsWhenIdle(t *testing.T) {
	t.Parallel()

	idle := dictationState{Session: domain.SessionStateIdle, CaptionsEnabled: true}
	for _, event := range []ports.RecognitionEvent{
		{Kind: ports.RecognitionResult, Fragments: []domain.Fragment{{Text: "x", IsFinal: true}}},
		{Kind: ports.RecognitionError, Err: errors.New("late")},
		{Kind: ports.RecognitionEnd},
	} {
		tr := reduceDictation(idle, event)
		if tr != (dictationTransition{Next: domain.SessionStateIdle}) {
			t.Fatalf("expected no-op for %s, got %+v", event.Kind, tr)
		}
	}
}

func TestAppendTranscript(t *testing.T) {
	t.Parallel()

	if got := appendTranscript("", "hello"); got != "hello" {
		t.Fatalf("unexpected: %q", got)
	}
	if got := appendTranscript("hello", "world"); got != "hello world" {
		t.Fatalf("unexpected: %q", got)
	}
}

func TestInsertAtSelection(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		value      string
		start, end int
		want       string
		caret      int
	}{
		{"replace selection", "hello cruel world", 6, 11, "hello kind world", 10},
		{"caret at end", "hi", 2, 2, "hikind", 6},
		{"out of range clamps", "abc", 10, 20, "abckind", 7},
		{"negative clamps", "abc", -3, -1, "kindabc", 4},
		{"reversed selection inserts at start", "abc", 2, 1, "abkindc", 6},
		{"runes not bytes", "héllo", 1, 2, "hkindllo", 5},
	}
	for _, tc := range cases {
		field := &fakeField{value: tc.value, start: tc.start, end: tc.end}
		insertAtSelection(field, "kind")
		value, caret, _ := field.snapshot()
		if value != tc.want || caret != tc.caret {
			t.Fatalf("%s: got value=%q caret=%d, want %q caret=%d", tc.name, value, caret, tc.want, tc.caret)
		}
	}
}

func TestTextRouterPriority(t *testing.T) {
	t.Parallel()

	fixed := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	captions := &fakeCaptions{}
	targets := &fakeTargets{field: &fakeField{}, chat: &fakeChat{}}
	router := newTextRouter(nil, targets, captions, zerolog.Nop())
	router.now = func() time.Time { return fixed }
	router.newID = func() string { return "entry-1" }

	if sink, _ := router.Route("one"); sink != domain.SinkActiveInput {
		t.Fatalf("expected active input first, got %s", sink)
	}

	targets.field = nil
	if sink, _ := router.Route("two"); sink != domain.SinkChatSurface {
		t.Fatalf("expected chat surface second, got %s", sink)
	}
	entries, _ := targets.chat.snapshot()
	if len(entries) != 1 || entries[0] != (domain.ChatEntry{ID: "entry-1", Text: "two", At: fixed}) {
		t.Fatalf("unexpected chat entries: %+v", entries)
	}

	targets.chat = nil
	sink, text := router.Route("three")
	if sink != domain.SinkCaptionOverlay || text != "three" {
		t.Fatalf("expected overlay last, got %s %q", sink, text)
	}
	if visible, caption := captions.snapshot(); !visible || caption != "three" {
		t.Fatalf("unexpected overlay: visible=%v caption=%q", visible, caption)
	}
}

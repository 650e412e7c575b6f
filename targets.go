package main

import (
	"strings"
	"sync"

	"vibespace/internal/domain"
	"vibespace/internal/ports"
)

// FieldSnapshot describes the focused editable element as the page last saw
// it. Selection offsets are in code points.
type FieldSnapshot struct {
	ID             string `json:"id"`
	Value          string `json:"value"`
	SelectionStart int    `json:"selectionStart"`
	SelectionEnd   int    `json:"selectionEnd"`
}

// KeyPress is a keydown forwarded by the page.
type KeyPress struct {
	Key      string `json:"key"`
	Meta     bool   `json:"meta"`
	Ctrl     bool   `json:"ctrl"`
	Alt      bool   `json:"alt"`
	Editable bool   `json:"editable"`
}

type publishFunc func(name string, payload interface{})

// pageTargets mirrors the page's focus and chat state so dictation can pick
// an insertion target when a fragment is finalized.
type pageTargets struct {
	publish publishFunc

	mu      sync.Mutex
	focused *FieldSnapshot
	chatID  string
}

func newPageTargets(publish publishFunc) *pageTargets {
	return &pageTargets{publish: publish}
}

func (t *pageTargets) Focus(field FieldSnapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.focused = &field
}

func (t *pageTargets) Blur() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.focused = nil
}

func (t *pageTargets) SetChat(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.chatID = strings.TrimSpace(id)
}

func (t *pageTargets) HasFocus() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.focused != nil
}

func (t *pageTargets) FocusedEditable() (ports.EditableField, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.focused == nil {
		return nil, false
	}
	return &pageField{targets: t, snapshot: *t.focused}, true
}

func (t *pageTargets) ChatSurface() (ports.ChatSurface, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.chatID == "" {
		return nil, false
	}
	return pageChat{id: t.chatID, publish: t.publish}, true
}

// replaced keeps the mirror in step with an insertion so back-to-back
// fragments land after each other.
func (t *pageTargets) replaced(id, value string, caret int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.focused == nil || t.focused.ID != id {
		return
	}
	t.focused.Value = value
	t.focused.SelectionStart = caret
	t.focused.SelectionEnd = caret
}

type pageField struct {
	targets  *pageTargets
	snapshot FieldSnapshot
}

func (f *pageField) Value() string {
	return f.snapshot.Value
}

func (f *pageField) Selection() (int, int) {
	return f.snapshot.SelectionStart, f.snapshot.SelectionEnd
}

func (f *pageField) Replace(value string, caret int) {
	f.snapshot.Value = value
	f.snapshot.SelectionStart = caret
	f.snapshot.SelectionEnd = caret
	f.targets.replaced(f.snapshot.ID, value, caret)
	f.targets.publish(eventInsert, map[string]interface{}{
		"id":    f.snapshot.ID,
		"value": value,
		"caret": caret,
	})
}

type pageChat struct {
	id      string
	publish publishFunc
}

func (c pageChat) AppendEntry(entry domain.ChatEntry) {
	c.publish(eventChat, map[string]interface{}{
		"target": c.id,
		"entry":  entry,
	})
}

func (c pageChat) ScrollToEnd() {
	c.publish(eventChatScroll, map[string]string{"target": c.id})
}

// captureBuffer is the quick-post text box.
type captureBuffer struct {
	publish publishFunc

	mu   sync.Mutex
	text string
}

func newCaptureBuffer(initial string, publish publishFunc) *captureBuffer {
	return &captureBuffer{text: initial, publish: publish}
}

func (b *captureBuffer) Text() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.text
}

func (b *captureBuffer) SetText(text string) {
	b.mu.Lock()
	b.text = text
	b.mu.Unlock()
	b.publish(eventCapture, map[string]string{"text": text})
}

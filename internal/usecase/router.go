package usecase

import (
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"vibespace/internal/domain"
	"vibespace/internal/ports"
)

// textRouter delivers finalized dictation to exactly one sink, resolved at
// the moment of delivery.
type textRouter struct {
	rules    ports.TextRules
	targets  ports.InsertionTargets
	captions ports.CaptionSurface
	logger   zerolog.Logger

	now   func() time.Time
	newID func() string
}

func newTextRouter(rules ports.TextRules, targets ports.InsertionTargets, captions ports.CaptionSurface, logger zerolog.Logger) textRouter {
	return textRouter{
		rules:    rules,
		targets:  targets,
		captions: captions,
		logger:   logger,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Route rewrites text through the phrase rules and inserts it into the
// focused field, else the chat surface, else the caption overlay. It returns
// the chosen sink and the text that was delivered.
func (r textRouter) Route(raw string) (domain.Sink, string) {
	text := r.rewrite(raw)

	sink := domain.SinkCaptionOverlay
	if field, ok := r.targets.FocusedEditable(); ok {
		insertAtSelection(field, text)
		sink = domain.SinkActiveInput
	} else if chat, ok := r.targets.ChatSurface(); ok {
		chat.AppendEntry(domain.ChatEntry{ID: r.newID(), Text: text, At: r.now()})
		chat.ScrollToEnd()
		sink = domain.SinkChatSurface
	} else {
		r.captions.ShowCaptions(true)
		r.captions.SetCaptionText(text)
	}

	r.logger.Debug().Str("sink", string(sink)).Int("chars", utf8.RuneCountInString(text)).Msg("dictation routed")
	return sink, text
}

func (r textRouter) rewrite(raw string) string {
	if r.rules == nil {
		return raw
	}
	text, err := r.rules.Apply(raw)
	if err != nil {
		r.logger.Warn().Err(err).Msg("phrase rules failed, routing raw text")
		return raw
	}
	if text == "" {
		return raw
	}
	return text
}

// insertAtSelection replaces the selected rune range with text and places the
// caret right after it.
func insertAtSelection(field ports.EditableField, text string) {
	value := []rune(field.Value())
	start, end := field.Selection()

	start = clamp(start, 0, len(value))
	end = clamp(end, start, len(value))

	updated := string(value[:start]) + text + string(value[end:])
	field.Replace(updated, start+utf8.RuneCountInString(text))
}

func clamp(value, low, high int) int {
	if value < low {
		return low
	}
	if value > high {
		return high
	}
	return value
}

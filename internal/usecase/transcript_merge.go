package usecase

import (
	"strings"

	"github.com/samber/lo"

	"vibespace/internal/domain"
)

// ListeningPlaceholder is shown on the caption surface until the first result.
const ListeningPlaceholder = "Listening..."

// mergeFragments splits one result batch into its space-joined final text and
// its space-joined interim text, preserving fragment order within each.
func mergeFragments(batch []domain.Fragment) (final string, interim string) {
	finals, interims := lo.FilterReject(batch, func(fragment domain.Fragment, _ int) bool {
		return fragment.IsFinal
	})
	return joinFragments(finals), joinFragments(interims)
}

// captionText renders the caption for one update: finals then the interim tail.
func captionText(final string, interim string) string {
	return strings.TrimSpace(final + " " + interim)
}

func joinFragments(fragments []domain.Fragment) string {
	texts := lo.FilterMap(fragments, func(fragment domain.Fragment, _ int) (string, bool) {
		text := strings.TrimSpace(fragment.Text)
		return text, text != ""
	})
	return strings.Join(texts, " ")
}

// appendTranscript appends finalized text to an existing buffer value.
func appendTranscript(existing string, addition string) string {
	return strings.TrimSpace(existing + " " + addition)
}

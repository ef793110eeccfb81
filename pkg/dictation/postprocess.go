package dictation

import (
	"regexp"
	"strings"
)

// FilterFillerWords removes whole-word occurrences of each configured
// filler word (e.g. "um", "uh", "like") from a transcript before it is
// delivered, per ModeConfig's "post-processing rules" (SPEC_FULL.md §3).
// Matching is case-insensitive and whole-word; repeated whitespace left
// behind by a removal collapses to a single space.
func FilterFillerWords(text string, fillers []string) string {
	if len(fillers) == 0 || text == "" {
		return text
	}
	for _, word := range fillers {
		word = strings.TrimSpace(word)
		if word == "" {
			continue
		}
		re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(word) + `\b`)
		text = re.ReplaceAllString(text, "")
	}
	text = regexp.MustCompile(`[ \t]{2,}`).ReplaceAllString(text, " ")
	text = regexp.MustCompile(` +([.,;:!?])`).ReplaceAllString(text, "$1")
	return strings.TrimSpace(text)
}

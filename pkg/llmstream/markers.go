// Package llmstream demultiplexes a model runtime's raw token stream into a
// thinking channel and a response channel, cleans up the response text, and
// watches for repetition loops. Grounded in glyphoxa's streaming-chunk
// channel shape and the teacher's StreamSynthesize callback-per-chunk
// control flow (pkg/providers/tts/lokutor.go), adapted here to carry token
// text over github.com/coder/websocket instead of audio bytes.
package llmstream

import "strings"

// MarkerSet is the open/close marker pair (plus optional preamble) one
// model family uses to delimit its thinking block. The set of families is
// closed and additive: extending it is a literal addition to modelFamilies,
// never a change to the parser's state machine.
type MarkerSet struct {
	Family   string
	Open     string
	Close    string
	Preamble string // stripped at the Thinking→Response boundary, if non-empty

	// SeedPhrase is the fixed phrase the Repetition Detector watches for
	// within this family's output (spec.md §4.5: "a fixed seed phrase
	// configured per model, e.g. 'The correct term is'"). Empty disables
	// loop detection for the family.
	SeedPhrase string

	// MaxTokens, Temperature, TopP, and AntiRepetitionPrompt are
	// generation-time overrides applied when this family is selected
	// (spec.md §4.5's gpt-oss overrides).
	MaxTokens            int
	Temperature          float64
	TopP                 float64
	AntiRepetitionPrompt string
}

// modelFamilies is the closed set of recognized thinking-block marker
// styles (spec.md §4.5).
var modelFamilies = []MarkerSet{
	{
		Family:     "think-tag",
		Open:       "<think>",
		Close:      "</think>",
		SeedPhrase: "The correct term is",
	},
	{
		Family:     "cjk-think-tag",
		Open:       "<思考过程>",
		Close:      "</思考过程>",
		SeedPhrase: "正确的术语是",
	},
	{
		Family:               "gpt-oss",
		Open:                 "<|channel|>analysis<|message|>",
		Close:                "<|end|>",
		Preamble:             "<|start|>assistant<|channel|>final<|message|>",
		SeedPhrase:           "The correct term is",
		MaxTokens:            2048,
		Temperature:          0.3,
		TopP:                 0.95,
		AntiRepetitionPrompt: "Do not repeat yourself. State each correction once.",
	},
}

// longestMarker is the absolute upper bound on tail_buffer length: the
// length of the longest marker or preamble across every configured family.
var longestMarker = computeLongestMarker()

func computeLongestMarker() int {
	max := 0
	for _, fam := range modelFamilies {
		for _, s := range []string{fam.Open, fam.Close, fam.Preamble} {
			if len(s) > max {
				max = len(s)
			}
		}
	}
	return max
}

// FamilyForModel resolves the marker set for a model identifier. modelID
// containing "gpt-oss" selects the reasoning-channel family (spec.md §4.5);
// everything else defaults to plain <think> tags, which is a harmless no-op
// marker set for models that emit no thinking block at all.
func FamilyForModel(modelID string) MarkerSet {
	lower := strings.ToLower(modelID)
	for _, fam := range modelFamilies {
		if fam.Family == "gpt-oss" && strings.Contains(lower, "gpt-oss") {
			return fam
		}
	}
	return modelFamilies[0]
}

// AllMarkers returns every configured family's marker set, for tests that
// need to exercise the closed family table directly. Parser only consults
// the single family it was built with (FamilyForModel resolves that choice
// up front); it does not scan across families.
func AllMarkers() []MarkerSet {
	return modelFamilies
}

package dictation

import "context"

// Transcriber is the Transcription Service external collaborator
// (SPEC_FULL.md §2, item 5): it turns a completed utterance's PCM bytes
// into text. Provider packages under pkg/providers/stt implement this
// directly, mirroring the teacher's STTProvider interface shape minus the
// Language parameter (general multi-language NLU is an explicit
// spec.md Non-goal).
type Transcriber interface {
	Transcribe(ctx context.Context, pcm []byte) (string, error)
	Name() string
}

// hypothesisAdapter lets the same Transcriber used for final utterance
// transcription double as the Wake-Word Recogniser's HypothesisSource,
// matching SPEC_FULL.md §4.2 ("via the same Transcription Service used for
// utterances, run in a cheap/partial mode"). The "cheap/partial mode" here
// is simply running it over the short sliding window instead of a full
// utterance buffer; the provider itself needs no special mode.
type hypothesisAdapter struct {
	ctx context.Context
	t   Transcriber
}

// NewHypothesisSource adapts a Transcriber into a HypothesisSource for the
// Wake-Word Recognizer, bound to ctx for the process lifetime (wake-word
// hypothesizing isn't individually cancellable; the whole recognizer is
// torn down on shutdown instead).
func NewHypothesisSource(ctx context.Context, t Transcriber) HypothesisSource {
	return &hypothesisAdapter{ctx: ctx, t: t}
}

func (h *hypothesisAdapter) Hypothesize(pcm []byte) (string, error) {
	return h.t.Transcribe(h.ctx, pcm)
}

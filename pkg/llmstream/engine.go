package llmstream

// FeedResult is what one Engine.Feed call produces: the newly parsed text
// for each channel (to stream live to the UI) and whether the caller must
// now stop the generator because a repetition loop was detected.
type FeedResult struct {
	ThinkingDelta string
	ResponseDelta string
	Stop          bool
}

// Engine orchestrates the marker-stripping Parser, the chunk-join rules,
// and repetition detection into the single pipeline spec.md §4.5
// describes: raw model tokens in, thinking/response deltas and a cleaned
// final artifact out.
type Engine struct {
	family MarkerSet
	parser *Parser
	rep    *RepetitionDetector

	thinkingText   string
	responseJoined string
}

// NewEngine builds an engine for the given model family and repetition
// seed phrase (empty disables loop detection).
func NewEngine(family MarkerSet, seedPhrase string) *Engine {
	return &Engine{
		family: family,
		parser: NewParser(family),
		rep:    NewRepetitionDetector(seedPhrase),
	}
}

// Feed processes one raw chunk from the model runtime.
func (e *Engine) Feed(chunk string) FeedResult {
	pr := e.parser.Feed(chunk)

	var res FeedResult
	if pr.Thinking != "" {
		e.thinkingText += pr.Thinking
		res.ThinkingDelta = pr.Thinking
	}
	if pr.Response != "" {
		e.responseJoined = Join(e.responseJoined, pr.Response)
		res.ResponseDelta = pr.Response
		if e.rep.Feed(pr.Response) {
			res.Stop = true
		}
	}
	return res
}

// FinalArtifact returns the cleaned response text — the joined, deduped
// response accumulated so far — for delivery as
// TRANSCRIPTION:PROOFED|LETTER:<text>.
func (e *Engine) FinalArtifact() string {
	return Dedup(e.responseJoined)
}

// ThinkingText returns the full accumulated thinking-channel text.
func (e *Engine) ThinkingText() string {
	return e.thinkingText
}

// Family returns the model family this engine was built for, so callers
// can read its generation-parameter overrides (MaxTokens, Temperature,
// TopP, AntiRepetitionPrompt).
func (e *Engine) Family() MarkerSet {
	return e.family
}

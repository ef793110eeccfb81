package llmstream

import "strings"

const (
	repetitionWindowSize = 100
	maxRepetitions       = 3
)

// RepetitionDetector watches a ring of the most recent response characters
// for a configured seed phrase recurring too many times, the loop-detection
// heuristic spec.md §4.5 requires local model runtimes to be guarded
// against.
type RepetitionDetector struct {
	seedPhrase string
	window     []rune
	tripped    bool
}

// NewRepetitionDetector builds a detector for the given seed phrase. An
// empty seedPhrase disables detection (Feed never trips).
func NewRepetitionDetector(seedPhrase string) *RepetitionDetector {
	return &RepetitionDetector{seedPhrase: seedPhrase}
}

// Feed appends response text to the ring buffer and reports whether the
// seed phrase has now recurred max_repetitions (=3) times within the most
// recent 100 characters.
func (d *RepetitionDetector) Feed(text string) bool {
	if d.tripped || d.seedPhrase == "" {
		return d.tripped
	}
	d.window = append(d.window, []rune(text)...)
	if len(d.window) > repetitionWindowSize {
		d.window = d.window[len(d.window)-repetitionWindowSize:]
	}
	if strings.Count(string(d.window), d.seedPhrase) >= maxRepetitions {
		d.tripped = true
	}
	return d.tripped
}

// Tripped reports whether the detector has already fired.
func (d *RepetitionDetector) Tripped() bool {
	return d.tripped
}

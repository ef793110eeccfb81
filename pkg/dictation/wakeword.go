package dictation

import (
	"strings"
	"time"

	"github.com/antzucaro/matchr"
)

// wakeWordWindow bounds how long a contiguous run of hypothesis text is
// considered for a multi-word wake phrase match before it is discarded as
// stale (SPEC_FULL.md §4.2: "recognition window no longer than 1.5s").
const wakeWordWindow = 1500 * time.Millisecond

const (
	phoneticThreshold = 0.78
	fuzzyThreshold    = 0.88
)

// HypothesisSource turns a rolling buffer of recent voiced PCM into a cheap
// text hypothesis for wake-word spotting. It is intentionally not a full
// transcription: the Transcription Service (outside this package) does that
// work only after a wake word commits the session to StateCapturing.
type HypothesisSource interface {
	Hypothesize(pcm []byte) (string, error)
}

// WakeWordMatch reports a recognized wake phrase and the mode it selects.
type WakeWordMatch struct {
	Mode       Mode
	Phrase     string
	Confidence float64
}

// phraseEntry is one phrase bound to the mode that owns it.
type phraseEntry struct {
	mode   Mode
	phrase string
}

// WakeWordRecognizer listens to voiced frames while the session is in
// StateListening and reports the first wake phrase recognized across all
// configured modes, phonetically matched the way glyphoxa's
// internal/transcript/phonetic.Matcher matches entity names: Double
// Metaphone candidate filtering followed by Jaro-Winkler ranking, via
// github.com/antzucaro/matchr.
//
// Unlike glyphoxa's Matcher (which ranks a single already-known word against
// a small entity list), the recognizer owns a sliding window of voiced PCM
// so that multi-word phrases ("start letter") can be recognized as they
// accumulate across frames without waiting for an utterance to end.
type WakeWordRecognizer struct {
	source  HypothesisSource
	entries []phraseEntry

	window      []byte
	windowStart time.Time
	frameDur    time.Duration

	limiter *AmplitudeLimiter
}

// NewWakeWordRecognizer builds a recognizer from the configured per-mode
// phrase sets. Modes with no wake words contribute nothing.
func NewWakeWordRecognizer(source HypothesisSource, modes map[Mode]ModeConfig, frameDur time.Duration, amplitudeRateHz int) *WakeWordRecognizer {
	var entries []phraseEntry
	for mode, cfg := range modes {
		for _, phrase := range cfg.WakeWords {
			phrase = strings.ToLower(strings.TrimSpace(phrase))
			if phrase == "" {
				continue
			}
			entries = append(entries, phraseEntry{mode: mode, phrase: phrase})
		}
	}
	return &WakeWordRecognizer{
		source:   source,
		entries:  entries,
		frameDur: frameDur,
		limiter:  NewAmplitudeLimiter(amplitudeRateHz),
	}
}

// AmplitudeEvent is emitted for every frame fed to the recognizer, subject
// to the shared rate limiter, regardless of whether the frame contributed
// to a match. Feed's boolean result is false when the emission was
// suppressed by the limiter.
type AmplitudeEvent struct {
	Amplitude int16
	At        time.Time
}

// Feed processes one voiced frame during StateListening. Callers must not
// invoke Feed while the session is outside StateListening — the Session
// Controller enforces this gate, not the recognizer itself, so the
// recognizer stays a pure frame-in/match-out component (SPEC_FULL.md §4.2).
//
// It returns the recognized match (nil if none yet) and an amplitude event
// the caller should forward to the Status Bus if ok is true.
func (r *WakeWordRecognizer) Feed(frame AudioFrame, now time.Time) (*WakeWordMatch, AmplitudeEvent, bool) {
	ev := AmplitudeEvent{Amplitude: frame.Amplitude, At: now}
	allowed := r.limiter.Allow(now)

	if r.windowStart.IsZero() || now.Sub(r.windowStart) > wakeWordWindow {
		r.window = nil
		r.windowStart = now
	}
	r.window = append(r.window, frame.PCM...)

	if r.source == nil || len(r.entries) == 0 {
		return nil, ev, allowed
	}

	hypothesis, err := r.source.Hypothesize(r.window)
	if err != nil || strings.TrimSpace(hypothesis) == "" {
		return nil, ev, allowed
	}

	match := r.match(hypothesis)
	if match != nil {
		r.window = nil
		r.windowStart = time.Time{}
	}
	return match, ev, allowed
}

// match runs the two-stage Double Metaphone + Jaro-Winkler comparison
// against every configured phrase and resolves ties between modes with
// Mode.Precedes (proofread > letter > dictate, SPEC_FULL.md §4.2).
func (r *WakeWordRecognizer) match(hypothesis string) *WakeWordMatch {
	hypothesis = strings.ToLower(strings.TrimSpace(hypothesis))
	hypTokens := strings.Fields(hypothesis)
	if len(hypTokens) == 0 {
		return nil
	}
	hypCodes := codesForTokens(hypTokens)

	var best *WakeWordMatch
	for _, e := range r.entries {
		phraseTokens := strings.Fields(e.phrase)
		phraseCodes := codesForTokens(phraseTokens)
		phonetic := codesOverlap(hypCodes, phraseCodes)
		score := bestJWScore(hypTokens, phraseTokens, hypothesis, e.phrase)

		var accepted bool
		switch {
		case phonetic && score >= phoneticThreshold:
			accepted = true
		case !phonetic && score >= fuzzyThreshold:
			accepted = true
		}
		if !accepted {
			continue
		}

		candidate := &WakeWordMatch{Mode: e.mode, Phrase: e.phrase, Confidence: score}
		if best == nil ||
			candidate.Confidence > best.Confidence ||
			(candidate.Confidence == best.Confidence && candidate.Mode.Precedes(best.Mode)) {
			best = candidate
		}
	}
	return best
}

// Reset clears the sliding window, used when the controller leaves and
// re-enters StateListening.
func (r *WakeWordRecognizer) Reset() {
	r.window = nil
	r.windowStart = time.Time{}
}

// codesForTokens returns the union of Double Metaphone codes for the given
// tokens, mirroring glyphoxa's phonetic.codesForTokens.
func codesForTokens(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

// codesOverlap reports whether two code sets share at least one code.
func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// bestJWScore mirrors glyphoxa's phonetic.bestJWScore: the best of a
// full-string comparison, a space-stripped comparison, and the best
// pairwise token comparison.
func bestJWScore(inputTokens, entityTokens []string, inputFull, entityFull string) float64 {
	score := matchr.JaroWinkler(inputFull, entityFull, false)

	if len(inputTokens) > 1 || len(entityTokens) > 1 {
		concat1 := strings.Join(inputTokens, "")
		concat2 := strings.Join(entityTokens, "")
		if s := matchr.JaroWinkler(concat1, concat2, false); s > score {
			score = s
		}
	}

	for _, it := range inputTokens {
		for _, et := range entityTokens {
			if s := matchr.JaroWinkler(it, et, false); s > score {
				score = s
			}
		}
	}

	return score
}

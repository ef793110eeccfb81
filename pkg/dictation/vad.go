package dictation

import "math"

// VADProvider is a pluggable voice-activity detector. Implementations must
// not block and must be side-effect-free beyond their own internal state,
// matching SPEC_FULL.md §4.1's contract.
//
// Aggressiveness mirrors the classic WebRTC VAD knob (0-3, higher = more
// selective about calling audio "voiced"); the teacher's RMSVAD has no such
// knob, so aggressiveness is mapped onto the threshold/confirmation-frame
// pair here (see NewRMSVAD) — that mapping is documented in DESIGN.md.
type VADProvider interface {
	// IsVoiced reports whether the frame contains voice activity.
	IsVoiced(frame []byte) (bool, error)
	Reset()
}

// aggressivenessProfile holds the (threshold, minConfirmedFrames) pair for
// each of the four WebRTC-style aggressiveness levels.
var aggressivenessProfile = [4]struct {
	threshold    float64
	minConfirmed int
}{
	0: {threshold: 0.010, minConfirmed: 2},
	1: {threshold: 0.015, minConfirmed: 3},
	2: {threshold: 0.020, minConfirmed: 5},
	3: {threshold: 0.035, minConfirmed: 8},
}

// RMSVAD is a root-mean-square voice activity detector, adapted from the
// teacher's pkg/orchestrator/vad.go RMSVAD. Unlike the teacher's version
// (which also tracked a silence-duration event for barge-in), this VAD only
// keeps a speech-start confirmation count: a frame is voiced once
// minConfirmed consecutive frames are above threshold, and the first frame
// below it is unvoiced. Trailing-silence timing belongs to the Utterance
// Recorder (SPEC_FULL.md §4.3), not the classifier.
type RMSVAD struct {
	threshold    float64
	minConfirmed int

	consecutiveAbove int
	consecutiveBelow int
}

// NewRMSVAD builds an RMSVAD at the given aggressiveness (0-3, clamped).
func NewRMSVAD(aggressiveness int) *RMSVAD {
	if aggressiveness < 0 {
		aggressiveness = 0
	}
	if aggressiveness > 3 {
		aggressiveness = 3
	}
	p := aggressivenessProfile[aggressiveness]
	return &RMSVAD{threshold: p.threshold, minConfirmed: p.minConfirmed}
}

func (v *RMSVAD) IsVoiced(frame []byte) (bool, error) {
	rms := calculateRMS(frame)
	if rms > v.threshold {
		v.consecutiveAbove++
		v.consecutiveBelow = 0
		return v.consecutiveAbove >= v.minConfirmed, nil
	}
	v.consecutiveAbove = 0
	v.consecutiveBelow++
	return false, nil
}

func (v *RMSVAD) Reset() {
	v.consecutiveAbove = 0
	v.consecutiveBelow = 0
}

func calculateRMS(chunk []byte) float64 {
	if len(chunk) < 2 {
		return 0
	}
	var sum float64
	n := 0
	for i := 0; i < len(chunk)-1; i += 2 {
		sample := int16(chunk[i]) | (int16(chunk[i+1]) << 8)
		f := float64(sample) / 32768.0
		sum += f * f
		n++
	}
	return math.Sqrt(sum / float64(n))
}

// PeakAmplitude returns the max absolute sample value in a 16-bit PCM
// frame, per SPEC_FULL.md §4.1's "amplitude = max absolute sample" rule.
func PeakAmplitude(frame []byte) int16 {
	var peak int16
	for i := 0; i < len(frame)-1; i += 2 {
		sample := int16(frame[i]) | (int16(frame[i+1]) << 8)
		if sample < 0 {
			sample = -sample
		}
		if sample > peak {
			peak = sample
		}
	}
	return peak
}

// FrameClassifier computes amplitude and voiced/unvoiced status for each
// incoming frame, short-circuiting the VAD engine during sustained
// near-silence (SPEC_FULL.md §4.1).
type FrameClassifier struct {
	vad VADProvider

	skipAmplitude   int16
	skipConsecutive int

	belowStreak int
	lastErr     error
}

// NewFrameClassifier builds a classifier around the given VAD provider and
// short-circuit thresholds.
func NewFrameClassifier(vad VADProvider, skipAmplitude int16, skipConsecutive int) *FrameClassifier {
	return &FrameClassifier{
		vad:             vad,
		skipAmplitude:   skipAmplitude,
		skipConsecutive: skipConsecutive,
	}
}

// ClassifyResult is the per-frame classifier output.
type ClassifyResult struct {
	Amplitude int16
	IsVoiced  bool
	Err       error // non-nil on a VAD engine error; IsVoiced is false in that case
}

// Classify computes the amplitude and voiced state for one frame. It never
// blocks and never returns an error from itself — VAD engine errors are
// reported via ClassifyResult.Err so that one failure does not abort the
// pipeline (SPEC_FULL.md §4.1 failure semantics).
func (c *FrameClassifier) Classify(frame []byte) ClassifyResult {
	amp := PeakAmplitude(frame)

	// shouldSkip only ever applies to a frame that is itself below
	// threshold, and only once the streak entering that frame has already
	// reached skipConsecutive (boundary property in SPEC_FULL.md §8: 10
	// below-threshold frames trip the short-circuit on the 11th). A frame
	// above threshold resets the streak immediately and is never
	// short-circuited, per §4.1's "streak counter resets on any frame
	// above threshold."
	belowThreshold := amp < c.skipAmplitude
	shouldSkip := belowThreshold && c.belowStreak >= c.skipConsecutive

	if belowThreshold {
		c.belowStreak++
	} else {
		c.belowStreak = 0
	}

	if shouldSkip {
		return ClassifyResult{Amplitude: amp, IsVoiced: false}
	}

	voiced, err := c.vad.IsVoiced(frame)
	if err != nil {
		return ClassifyResult{Amplitude: amp, IsVoiced: false, Err: err}
	}
	return ClassifyResult{Amplitude: amp, IsVoiced: voiced}
}

// Reset clears the short-circuit streak counter and resets the underlying
// VAD (called on session reentry into Listening).
func (c *FrameClassifier) Reset() {
	c.belowStreak = 0
	c.vad.Reset()
}

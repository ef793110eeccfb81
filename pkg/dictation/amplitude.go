package dictation

import "time"

// AmplitudeLimiter rate-limits amplitude emissions to at most rateHz
// updates per second, shared by the Wake-Word Recogniser and the Utterance
// Recorder so that the AUDIO_AMP testable property (SPEC_FULL.md §8,
// "never exceeds 30 per second") holds regardless of which component is
// currently feeding the Status Bus.
type AmplitudeLimiter struct {
	interval time.Duration
	last     time.Time
}

// NewAmplitudeLimiter builds a limiter allowing at most rateHz emissions
// per second.
func NewAmplitudeLimiter(rateHz int) *AmplitudeLimiter {
	if rateHz <= 0 {
		rateHz = 30
	}
	return &AmplitudeLimiter{interval: time.Second / time.Duration(rateHz)}
}

// Allow reports whether an emission at time now should be let through. It
// updates internal state only when it returns true.
func (l *AmplitudeLimiter) Allow(now time.Time) bool {
	if now.Sub(l.last) < l.interval {
		return false
	}
	l.last = now
	return true
}

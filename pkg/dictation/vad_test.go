package dictation

import (
	"errors"
	"testing"
)

func silentFrame(n int) []byte {
	return make([]byte, n*2)
}

func loudFrame(n int, amp int16) []byte {
	buf := make([]byte, n*2)
	for i := 0; i < n; i++ {
		buf[i*2] = byte(amp)
		buf[i*2+1] = byte(amp >> 8)
	}
	return buf
}

type stubVAD struct {
	voiced bool
	err    error
	calls  int
}

func (s *stubVAD) IsVoiced(frame []byte) (bool, error) {
	s.calls++
	return s.voiced, s.err
}
func (s *stubVAD) Reset() {}

func TestFrameClassifier_ShortCircuitBoundary(t *testing.T) {
	stub := &stubVAD{voiced: true}
	c := NewFrameClassifier(stub, 5, 10)

	quiet := silentFrame(320) // amplitude 0 < threshold 5

	for i := 1; i <= 10; i++ {
		res := c.Classify(quiet)
		if !res.IsVoiced {
			t.Fatalf("frame %d: expected the VAD stub's voiced=true result before the short circuit applies", i)
		}
	}
	if stub.calls != 10 {
		t.Fatalf("expected VAD invoked for first 10 below-threshold frames, got %d calls", stub.calls)
	}

	// 11th consecutive below-threshold frame must short-circuit: VAD is
	// NOT invoked again.
	res := c.Classify(quiet)
	if res.IsVoiced {
		t.Fatalf("11th frame should be forced not-voiced by short circuit")
	}
	if stub.calls != 10 {
		t.Fatalf("expected VAD NOT invoked on 11th below-threshold frame (short circuit), got %d total calls", stub.calls)
	}
}

func TestFrameClassifier_StreakResetsOnLoudFrame(t *testing.T) {
	stub := &stubVAD{voiced: true}
	c := NewFrameClassifier(stub, 5, 3)
	quiet := silentFrame(320)
	loud := loudFrame(320, 1000)

	c.Classify(quiet)
	c.Classify(quiet)
	c.Classify(loud) // resets streak; also invokes VAD since streak was only 2
	c.Classify(quiet)
	c.Classify(quiet)
	if stub.calls < 4 {
		t.Fatalf("expected VAD invoked after streak reset, got %d calls", stub.calls)
	}
}

func TestFrameClassifier_LoudFrameAfterStreakIsNotShortCircuited(t *testing.T) {
	stub := &stubVAD{voiced: true}
	c := NewFrameClassifier(stub, 5, 10)
	quiet := silentFrame(320)
	loud := loudFrame(320, 1000)

	for i := 0; i < 10; i++ {
		c.Classify(quiet)
	}
	if stub.calls != 10 {
		t.Fatalf("expected VAD invoked for the first 10 below-threshold frames, got %d calls", stub.calls)
	}

	// The streak is now 10, but this frame is itself above threshold: it
	// must reach the VAD, not be force-unvoiced by the short circuit.
	res := c.Classify(loud)
	if !res.IsVoiced {
		t.Fatalf("loud frame right after a 10-frame streak must not be short-circuited")
	}
	if stub.calls != 11 {
		t.Fatalf("expected VAD invoked for the loud frame, got %d total calls", stub.calls)
	}
}

func TestFrameClassifier_VADErrorSurfacesAsNotVoiced(t *testing.T) {
	stub := &stubVAD{voiced: true, err: errors.New("engine down")}
	c := NewFrameClassifier(stub, 5, 10)
	loud := loudFrame(320, 1000)

	res := c.Classify(loud)
	if res.IsVoiced {
		t.Fatalf("expected is_voiced=false on VAD error")
	}
	if res.Err == nil {
		t.Fatalf("expected error to be surfaced")
	}
}

func TestPeakAmplitude(t *testing.T) {
	frame := loudFrame(4, 12345)
	if got := PeakAmplitude(frame); got != 12345 {
		t.Errorf("expected 12345, got %d", got)
	}
}

func TestRMSVAD_Aggressiveness(t *testing.T) {
	v := NewRMSVAD(0)
	quiet := silentFrame(320)
	voiced, err := v.IsVoiced(quiet)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if voiced {
		t.Errorf("silence should never be voiced")
	}

	v2 := NewRMSVAD(9) // out of range, should clamp to 3
	if v2.threshold != aggressivenessProfile[3].threshold {
		t.Errorf("expected clamped aggressiveness 3 threshold, got %v", v2.threshold)
	}
}

package audiosrc

import (
	"testing"

	"github.com/dictationd/dictationd/pkg/dictation"
)

func newTestSource(chanCap int) *Source {
	cfg := dictation.DefaultConfig()
	return &Source{
		cfg:    cfg,
		frames: make(chan dictation.AudioFrame, chanCap),
	}
}

func TestSource_SlicesExactFrames(t *testing.T) {
	s := newTestSource(frameChanCapacity)
	frameBytes := s.cfg.FrameBytes()

	// Feed exactly 2.5 frames worth of bytes in one callback.
	buf := make([]byte, frameBytes*2+frameBytes/2)
	for i := range buf {
		buf[i] = byte(i)
	}
	s.onSamples(nil, buf, uint32(len(buf)/2))

	if got := len(s.frames); got != 2 {
		t.Fatalf("expected 2 complete frames buffered, got %d", got)
	}
	if remaining := len(s.accum); remaining != frameBytes/2 {
		t.Fatalf("expected %d leftover bytes held in accum, got %d", frameBytes/2, remaining)
	}

	f1 := <-s.frames
	f2 := <-s.frames
	if f1.Seq != 1 || f2.Seq != 2 {
		t.Fatalf("expected sequential Seq 1,2; got %d,%d", f1.Seq, f2.Seq)
	}
	if len(f1.PCM) != frameBytes || len(f2.PCM) != frameBytes {
		t.Fatalf("expected frames of %d bytes, got %d and %d", frameBytes, len(f1.PCM), len(f2.PCM))
	}
}

func TestSource_DropsOldestOnOverflow(t *testing.T) {
	s := newTestSource(2)
	frameBytes := s.cfg.FrameBytes()

	var dropped int
	s.OnDrop(func() { dropped++ })

	// Push 4 frames worth of audio through a 2-capacity channel.
	buf := make([]byte, frameBytes*4)
	s.onSamples(nil, buf, 0)

	if len(s.frames) != 2 {
		t.Fatalf("expected channel capped at 2, got %d", len(s.frames))
	}
	if dropped != 2 {
		t.Fatalf("expected 2 drops, got %d", dropped)
	}

	// The surviving frames should be the two most recent (Seq 3 and 4):
	// the oldest (1, 2) were evicted to make room.
	f1 := <-s.frames
	f2 := <-s.frames
	if f1.Seq != 3 || f2.Seq != 4 {
		t.Fatalf("expected surviving frames Seq 3,4; got %d,%d", f1.Seq, f2.Seq)
	}
}

func TestSource_IgnoresEmptyInput(t *testing.T) {
	s := newTestSource(frameChanCapacity)
	s.onSamples(nil, nil, 0)
	if len(s.frames) != 0 {
		t.Fatalf("expected no frames from empty input, got %d", len(s.frames))
	}
}

func TestSource_ClosedDropsCallback(t *testing.T) {
	s := newTestSource(frameChanCapacity)
	s.closed.Store(true)
	s.onSamples(nil, make([]byte, s.cfg.FrameBytes()), 0)
	if len(s.frames) != 0 {
		t.Fatalf("expected closed source to ignore samples, got %d frames", len(s.frames))
	}
}

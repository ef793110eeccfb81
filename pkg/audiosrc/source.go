// Package audiosrc is the Audio Source external collaborator
// (SPEC_FULL.md §2, item 1): it owns the microphone device exclusively and
// produces fixed-duration mono 16kHz 16-bit PCM AudioFrames. Grounded in
// the teacher's cmd/agent/main.go malgo wiring (malgo.InitContext +
// malgo.InitDevice with a Data callback), narrowed from the teacher's
// full-duplex capture+playback device to capture-only, since this engine
// only ever listens.
package audiosrc

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"

	"github.com/dictationd/dictationd/pkg/dictation"
)

// frameChanCapacity matches SPEC_FULL.md §5's single-producer channel:
// capacity ~4 frames, with the oldest dropped on overflow to preserve
// real-time behaviour rather than apply back-pressure to the capture
// callback.
const frameChanCapacity = 4

// Source captures audio from the default input device and emits
// fixed-size AudioFrames. The malgo device callback runs on malgo's own
// realtime thread and must never block; Source buffers arbitrary-sized
// device callbacks into frameBytes-sized frames and pushes them onto a
// bounded channel, dropping the oldest entry on overflow.
type Source struct {
	cfg    dictation.Config
	logger dictation.Logger

	ctx    *malgo.AllocatedContext
	device *malgo.Device

	frames chan dictation.AudioFrame

	mu     sync.Mutex
	accum  []byte
	seq    uint64
	closed atomic.Bool

	onDrop func()
}

// New opens the default capture device configured for mono 16-bit PCM at
// cfg's sample rate, ready to Start(). It does not start capturing yet.
func New(cfg dictation.Config, logger dictation.Logger) (*Source, error) {
	if logger == nil {
		logger = dictation.NoOpLogger{}
	}
	s := &Source{
		cfg:    cfg,
		logger: logger,
		frames: make(chan dictation.AudioFrame, frameChanCapacity),
	}

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: init audio context: %v", dictation.ErrAudioUnavailable, err)
	}
	s.ctx = mctx

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = uint32(cfg.SampleRate)
	deviceConfig.Alsa.NoMMap = 1

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: s.onSamples,
	})
	if err != nil {
		mctx.Uninit()
		return nil, fmt.Errorf("%w: init capture device: %v", dictation.ErrAudioUnavailable, err)
	}
	s.device = device

	return s, nil
}

// Start begins capturing. The microphone device is exclusively owned by
// this Source for as long as it's running, per SPEC_FULL.md §5: no other
// component may touch it.
func (s *Source) Start() error {
	if err := s.device.Start(); err != nil {
		return fmt.Errorf("%w: start capture device: %v", dictation.ErrAudioUnavailable, err)
	}
	return nil
}

// Frames returns the channel of captured AudioFrames. Frames arrive in
// Seq order but may contain gaps if the channel overflowed and a frame was
// dropped (SPEC_FULL.md §5's "back-pressure drops oldest").
func (s *Source) Frames() <-chan dictation.AudioFrame {
	return s.frames
}

// OnDrop registers a callback invoked (off the audio thread is not
// guaranteed; keep it cheap) whenever a frame is dropped due to channel
// overflow, so the caller can log a single warning status.
func (s *Source) OnDrop(fn func()) {
	s.onDrop = fn
}

// Close stops capture and releases the device and context. Safe to call
// once; subsequent calls are no-ops.
func (s *Source) Close() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	if s.device != nil {
		s.device.Uninit()
	}
	if s.ctx != nil {
		s.ctx.Uninit()
	}
	close(s.frames)
}

// onSamples is malgo's realtime audio callback. It must not block: frame
// slicing is O(frameBytes) and the channel send uses a non-blocking
// select, dropping the oldest buffered frame on overflow.
func (s *Source) onSamples(_, pInput []byte, _ uint32) {
	if len(pInput) == 0 || s.closed.Load() {
		return
	}

	frameBytes := s.cfg.FrameBytes()
	if frameBytes <= 0 {
		return
	}

	s.mu.Lock()
	s.accum = append(s.accum, pInput...)
	for len(s.accum) >= frameBytes {
		pcm := make([]byte, frameBytes)
		copy(pcm, s.accum[:frameBytes])
		s.accum = s.accum[frameBytes:]
		s.seq++
		frame := dictation.AudioFrame{
			Seq:       s.seq,
			PCM:       pcm,
			Amplitude: dictation.PeakAmplitude(pcm),
		}
		s.push(frame)
	}
	s.mu.Unlock()
}

// push delivers frame onto the bounded channel, dropping the oldest queued
// frame to make room rather than blocking the audio callback.
func (s *Source) push(frame dictation.AudioFrame) {
	select {
	case s.frames <- frame:
		return
	default:
	}

	select {
	case <-s.frames:
		if s.onDrop != nil {
			s.onDrop()
		}
	default:
	}

	select {
	case s.frames <- frame:
	default:
	}
}

package dictation

import "time"

// UtteranceRecorder accumulates voiced (and near-trailing-silent) PCM
// frames during StateCapturing, grounded in the teacher's ManagedStream
// buffer-append pattern but generalized with the FIFO drop, progressive
// cleanup, and hard-cap rules spec.md adds on top of it.
type UtteranceRecorder struct {
	maxFrames    int
	autoStop     time.Duration
	cleanupAfter time.Duration
	hardCapAfter time.Duration
	frameDur     time.Duration

	frames         [][]byte
	startedAt      time.Time
	lastVoicedAt   time.Time
	trailingSilent time.Duration

	droppedWarned bool
	cleanupWarned bool

	limiter *AmplitudeLimiter
}

// NewUtteranceRecorder builds a recorder from process configuration.
func NewUtteranceRecorder(cfg Config) *UtteranceRecorder {
	return &UtteranceRecorder{
		maxFrames:    cfg.MaxUtteranceFrames,
		autoStop:     cfg.AutoStopSilence,
		cleanupAfter: cfg.ProgressiveCleanupAfter,
		hardCapAfter: cfg.HardCapAfter,
		frameDur:     time.Duration(cfg.FrameDurationMS) * time.Millisecond,
		limiter:      NewAmplitudeLimiter(cfg.AmplitudeRateHz),
	}
}

// Begin resets the recorder for a new Capturing phase.
func (r *UtteranceRecorder) Begin(now time.Time) {
	r.frames = nil
	r.startedAt = now
	r.lastVoicedAt = now
	r.trailingSilent = 0
	r.droppedWarned = false
	r.cleanupWarned = false
}

// AppendResult reports what happened when a frame was fed to the recorder.
type AppendResult struct {
	Dropped          bool // oldest frame dropped due to MAX_UTTERANCE_FRAMES overflow
	DroppedFirstWarn bool // true only the first time Dropped becomes true this session
	AutoStop         bool // trailing silence reached AUTO_STOP_SILENCE_SECONDS
	HardCap          bool // hard cap duration reached; caller must stop regardless of silence
	ProgressiveWarn  bool // crossed ProgressiveCleanupAfter for the first time this session
	Amplitude        AmplitudeEvent
	EmitAmplitude    bool
}

// Append feeds one classified frame into the buffer. Both voiced frames and
// near-silent frames are appended while the trailing-silence counter has not
// yet reached the auto-stop threshold, so that natural inter-word pauses
// survive in the recorded utterance (spec.md §4.3).
func (r *UtteranceRecorder) Append(frame AudioFrame, voiced bool, now time.Time) AppendResult {
	res := AppendResult{Amplitude: AmplitudeEvent{Amplitude: frame.Amplitude, At: now}}
	res.EmitAmplitude = r.limiter.Allow(now)

	if voiced {
		r.lastVoicedAt = now
		r.trailingSilent = 0
	} else {
		r.trailingSilent += r.frameDur
	}

	if r.trailingSilent < r.autoStop {
		r.frames = append(r.frames, frame.PCM)
		if r.maxFrames > 0 && len(r.frames) > r.maxFrames {
			r.frames = r.frames[1:]
			res.Dropped = true
			if !r.droppedWarned {
				res.DroppedFirstWarn = true
				r.droppedWarned = true
			}
		}
	}

	elapsed := now.Sub(r.startedAt)
	if !r.cleanupWarned && r.cleanupAfter > 0 && elapsed >= r.cleanupAfter {
		res.ProgressiveWarn = true
		r.cleanupWarned = true
	}
	if r.hardCapAfter > 0 && elapsed >= r.hardCapAfter {
		res.HardCap = true
	}
	if r.trailingSilent >= r.autoStop {
		res.AutoStop = true
	}

	return res
}

// Finalize returns the accumulated PCM as a single contiguous buffer and
// clears recorder state. Call on STOP_DICTATION, auto-stop, or hard cap.
func (r *UtteranceRecorder) Finalize() []byte {
	total := 0
	for _, f := range r.frames {
		total += len(f)
	}
	out := make([]byte, 0, total)
	for _, f := range r.frames {
		out = append(out, f...)
	}
	r.frames = nil
	return out
}

// Discard clears the buffer without producing a transcript (ABORT_DICTATION).
func (r *UtteranceRecorder) Discard() {
	r.frames = nil
}

// FrameCount reports the number of frames currently buffered.
func (r *UtteranceRecorder) FrameCount() int {
	return len(r.frames)
}

package dictation

import "errors"

// Sentinel errors for the error kinds enumerated in SPEC_FULL.md §7.
// Grounded in the teacher's pkg/orchestrator/errors.go: a flat var block of
// errors.New values, matched with errors.Is/errors.As at call sites rather
// than custom error types.
var (
	// ErrAudioUnavailable is published when the capture device cannot be
	// opened or read (another process holds the microphone).
	ErrAudioUnavailable = errors.New("dictation: audio device unavailable")

	// ErrModelLoad is published when the ASR or LLM runtime fails to
	// initialise.
	ErrModelLoad = errors.New("dictation: model failed to load")

	// ErrModelRuntime is published on a mid-stream inference failure.
	ErrModelRuntime = errors.New("dictation: model runtime error")

	// ErrTimeout wraps ErrModelRuntime-class failures caused by a hard
	// cap or idle timeout rather than an outright provider error.
	ErrTimeout = errors.New("dictation: operation timed out")

	// ErrProtocol marks a malformed inbound IPC command; the command is
	// dropped and a yellow status is emitted.
	ErrProtocol = errors.New("dictation: malformed inbound command")

	// ErrCancelled marks a user-requested abort. Never surfaced as an
	// error status; present only for internal control flow.
	ErrCancelled = errors.New("dictation: cancelled")

	// ErrEmptyTranscription mirrors the teacher's empty-transcript guard.
	ErrEmptyTranscription = errors.New("dictation: transcription returned empty text")

	// ErrIgnoredCommand marks a command rejected because it does not
	// apply in the current state (e.g. a cross-mode wake word heard
	// while already capturing).
	ErrIgnoredCommand = errors.New("dictation: command ignored in current state")

	// ErrNilProvider mirrors the teacher's required-dependency guard.
	ErrNilProvider = errors.New("dictation: required provider is nil")
)

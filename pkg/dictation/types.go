// Package dictation implements the real-time audio pipeline and session
// state machine for the dictation engine: frame classification, wake-word
// dispatch, utterance recording, and the controller that sequences them
// together with transcription and LLM phases.
package dictation

import "time"

// Mode selects which wake-word phrase set was matched and which downstream
// processing path an utterance takes.
type Mode string

const (
	ModeDictate   Mode = "dictate"
	ModeProofread Mode = "proofread"
	ModeLetter    Mode = "letter"
)

// modePrecedence breaks ties when two wake-word phrases match the same
// recognition window. Lower value wins. See SPEC_FULL.md §4.2.
var modePrecedence = map[Mode]int{
	ModeProofread: 0,
	ModeLetter:    1,
	ModeDictate:   2,
}

// Precedes reports whether m should win a tie against other.
func (m Mode) Precedes(other Mode) bool {
	return modePrecedence[m] < modePrecedence[other]
}

// AudioFrame is a fixed-duration slice of mono 16kHz 16-bit PCM audio.
type AudioFrame struct {
	Seq       uint64
	PCM       []byte
	Amplitude int16 // max absolute sample value, 0..32767
}

// SessionState is the tagged state of the Session Controller's state
// machine (SPEC_FULL.md §4.6).
type SessionState int

const (
	StateInactive SessionState = iota
	StatePreparing
	StateListening
	StateCapturing
	StateTranscribing
	StateProcessing
	StateDelivering
)

func (s SessionState) String() string {
	switch s {
	case StateInactive:
		return "Inactive"
	case StatePreparing:
		return "Preparing"
	case StateListening:
		return "Listening"
	case StateCapturing:
		return "Capturing"
	case StateTranscribing:
		return "Transcribing"
	case StateProcessing:
		return "Processing"
	case StateDelivering:
		return "Delivering"
	default:
		return "Unknown"
	}
}

// ModeConfig holds per-mode configuration: the wake-word phrase set, the
// LLM prompt template (empty for dictate), the target model identifier
// (empty for dictate), and a filler-word post-processing filter list.
type ModeConfig struct {
	WakeWords      []string
	PromptTemplate string
	ModelID        string
	FillerWords    []string
}

// Config is the process-wide configuration, built by DefaultConfig at
// startup. CONFIG:<json> (APPLY_CONFIG) replaces per-mode entries of Modes
// without restart; the other fields are not changed by it.
type Config struct {
	SampleRate              int
	FrameDurationMS         int
	VADAggressiveness       int // 0-3
	VADSkipAmplitude        int16
	VADSkipConsecutiveFrame int
	AutoStopSilence         time.Duration
	MaxUtteranceFrames      int
	ProgressiveCleanupAfter time.Duration
	HardCapAfter            time.Duration
	AmplitudeRateHz         int
	Modes                   map[Mode]ModeConfig
	ModelIdleTimeout        time.Duration // 0 disables unload-on-idle
	TranscriptionTimeout    time.Duration
	LLMTokenIdleTimeout     time.Duration
}

// DefaultConfig returns the configuration described in SPEC_FULL.md,
// grounded in the teacher's orchestrator.DefaultConfig pattern of a single
// constructor function returning sane defaults.
func DefaultConfig() Config {
	return Config{
		SampleRate:              16000,
		FrameDurationMS:         20,
		VADAggressiveness:       2,
		VADSkipAmplitude:        5,
		VADSkipConsecutiveFrame: 10,
		AutoStopSilence:         1500 * time.Millisecond,
		MaxUtteranceFrames:      600,
		ProgressiveCleanupAfter: 60 * time.Second,
		HardCapAfter:            150 * time.Second,
		AmplitudeRateHz:         30,
		Modes: map[Mode]ModeConfig{
			ModeDictate:   {WakeWords: []string{"note", "dictate"}},
			ModeProofread: {WakeWords: []string{"proofread"}, PromptTemplate: "Correct grammar and punctuation only:\n\n{{.Text}}"},
			ModeLetter:    {WakeWords: []string{"letter"}, PromptTemplate: "Format the following as a formal letter:\n\n{{.Text}}"},
		},
		ModelIdleTimeout:     0,
		TranscriptionTimeout: 60 * time.Second,
		LLMTokenIdleTimeout:  30 * time.Second,
	}
}

// FrameSamples returns the number of PCM samples in one frame at the
// configured sample rate and frame duration (320 at 16kHz/20ms).
func (c Config) FrameSamples() int {
	return c.SampleRate * c.FrameDurationMS / 1000
}

// FrameBytes returns the number of PCM bytes in one frame (16-bit samples).
func (c Config) FrameBytes() int {
	return c.FrameSamples() * 2
}

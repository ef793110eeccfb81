package statusbus

import "fmt"

// Color is one of the six status colors spec.md §6.1 allows.
type Color string

const (
	ColorGrey   Color = "grey"
	ColorBlue   Color = "blue"
	ColorGreen  Color = "green"
	ColorOrange Color = "orange"
	ColorRed    Color = "red"
	ColorYellow Color = "yellow"
)

// StreamKind distinguishes the three PROOF_STREAM payload kinds.
type StreamKind string

const (
	StreamThinking StreamKind = "thinking"
	StreamChunk    StreamKind = "chunk"
	StreamEnd      StreamKind = "end"
)

// StateSnapshot mirrors the JSON shape of the outbound STATE message
// (spec.md §6.1).
type StateSnapshot struct {
	ProgramActive    bool   `json:"programActive"`
	AudioState       string `json:"audioState"`
	IsDictating      bool   `json:"isDictating"`
	IsProofingActive bool   `json:"isProofingActive"`
	CanDictate       bool   `json:"canDictate"`
	CurrentMode      string `json:"currentMode"`
}

// The following constructors each return the exact line to be written,
// already escaped where the payload may contain control characters. Bus
// itself just writes whatever string it's handed, so construction and
// transport stay separate, matching the teacher's split between building a
// payload and the single writer that emits it.

func BackendReady() string { return "PYTHON_BACKEND_READY" }

// GetConfig requests the UI push its persisted configuration (wake-word
// sets, prompt templates, selected model identifiers, vocabulary) over
// CONFIG:<json>, per spec.md §6.3.
func GetConfig() string { return "GET_CONFIG" }

func ModelsSummary(json string) string { return "MODELS:" + json }

func ModelSelected(mode, modelID string) string {
	return fmt.Sprintf("MODEL_SELECTED:%s:%s", mode, modelID)
}

func State(json string) string { return "STATE:" + json }

func Status(color Color, text string) string {
	return fmt.Sprintf("STATUS:%s:%s", color, Escape(text))
}

func ProofStream(color Color, kind StreamKind, payload string) string {
	return fmt.Sprintf("STATUS:%s:PROOF_STREAM:%s:%s", color, kind, Escape(payload))
}

func AudioAmp(level int) string {
	if level < 0 {
		level = 0
	}
	if level > 100 {
		level = 100
	}
	return fmt.Sprintf("AUDIO_AMP:%d", level)
}

func FinalTranscript(text string) string {
	return "FINAL_TRANSCRIPT:" + Escape(text)
}

func DictationPreview(text string) string {
	return "DICTATION_PREVIEW:" + Escape(text)
}

// TranscriptionKind is either "PROOFED" or "LETTER", matching the two
// non-dictate modes' final-artifact delivery kind.
type TranscriptionKind string

const (
	TranscriptionProofed TranscriptionKind = "PROOFED"
	TranscriptionLetter  TranscriptionKind = "LETTER"
)

func Transcription(kind TranscriptionKind, text string) string {
	return fmt.Sprintf("TRANSCRIPTION:%s:%s", kind, Escape(text))
}

func TranscriptionError(text string) string {
	return "TRANSCRIPTION:error:" + Escape(text)
}

func VocabResponse(id, json string) string {
	return fmt.Sprintf("VOCAB_RESPONSE:%s:%s", id, json)
}

// AmplitudeToLevel converts a peak PCM amplitude (0..32767) into the 0..100
// scale AUDIO_AMP publishes.
func AmplitudeToLevel(amplitude int16) int {
	level := int(amplitude) * 100 / 32767
	if level > 100 {
		level = 100
	}
	return level
}

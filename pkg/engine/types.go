// Package engine wires the Session Controller (SPEC_FULL.md §4.4) together
// with the Frame Classifier, Wake-Word Recognizer, Utterance Recorder,
// Transcription Service, and LLM Streaming Engine into the single event
// loop described in SPEC_FULL.md §5: one goroutine owns SessionState and
// consumes AudioFrames, IPC commands, and background-task results off
// channels, exactly as the teacher's ManagedStream owns its state and
// consumes a single events channel fed by multiple producers.
package engine

import (
	"context"
	"errors"

	"github.com/dictationd/dictationd/pkg/dictation"
	"github.com/dictationd/dictationd/pkg/llmstream"
	"github.com/dictationd/dictationd/pkg/statusbus"
)

// errRepetitionStop is returned by the onToken callback passed to
// RuntimeClient.Stream to unwind the stream read loop after the
// Repetition Detector trips, distinguishing a deliberate stop from a real
// ModelRuntime error (SPEC_FULL.md §4.5's loop-detection rule).
var errRepetitionStop = errors.New("engine: repetition limit reached")

// VocabularyHandler forwards the opaque VOCABULARY_API:<id>:<json> RPC
// (spec.md §6.2) to the vocabulary collaborator, which is out of scope for
// this engine (spec.md §1 lists vocabulary CRUD dialogs as an external
// collaborator). Handle returns the JSON payload to echo back as
// VOCAB_RESPONSE:<id>:<payload>.
type VocabularyHandler interface {
	Handle(id, payload string) string
}

// NoopVocabulary answers every request with an empty JSON object, used when
// no vocabulary collaborator is wired in.
type NoopVocabulary struct{}

func (NoopVocabulary) Handle(id, payload string) string { return "{}" }

// ProviderDescriptor backs the MODELS:<json> startup summary (spec.md
// §6.1): one entry per available ASR or LLM identifier the UI can offer
// the user.
type ProviderDescriptor struct {
	Kind        string `json:"kind"` // "stt" or "llm"
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// Options configures a new Engine. Runtime is nil in CT_LIGHT_MODE
// (spec.md §6.3): dictation then runs with ASR only, and a proofread/letter
// session ends with a red "no LLM runtime configured" status and a return
// to Listening. A nil Transcriber makes every transcription fail with
// ErrModelLoad.
type Options struct {
	Transcriber    dictation.Transcriber
	TranscriberID  string
	Runtime        LLMRuntime
	Bus            *statusbus.Bus
	Cache          *dictation.UtteranceCache // nil disables the fingerprint cache
	Vocabulary     VocabularyHandler
	Logger         dictation.Logger
	ModelSelection map[dictation.Mode]ProviderDescriptor
}

// LLMRuntime is the minimal surface the engine needs from the LLM model
// runtime transport (satisfied by *llmstream.RuntimeClient), narrowed to an
// interface so tests can substitute a fake without a live websocket
// connection.
type LLMRuntime interface {
	Stream(ctx context.Context, req llmstream.GenerationRequest, onToken func(string) error) error
}

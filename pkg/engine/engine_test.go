package engine

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/dictationd/dictationd/pkg/dictation"
	"github.com/dictationd/dictationd/pkg/llmstream"
	"github.com/dictationd/dictationd/pkg/statusbus"
)

type fakeTranscriber struct {
	text string
	err  error
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, pcm []byte) (string, error) {
	return f.text, f.err
}

func (f *fakeTranscriber) Name() string { return "fake-stt" }

// fakeRuntime plays back a fixed token sequence, ignoring the request
// content, satisfying the LLMRuntime interface without a live websocket.
type fakeRuntime struct {
	tokens []string
	err    error
}

func (f *fakeRuntime) Stream(ctx context.Context, req llmstream.GenerationRequest, onToken func(string) error) error {
	for _, tok := range f.tokens {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := onToken(tok); err != nil {
			return err
		}
	}
	return f.err
}

// blockingRuntime blocks on a channel until the test signals it to proceed,
// used to exercise ABORT_DICTATION while a stream is in flight.
type blockingRuntime struct {
	unblock chan struct{}
}

func (f *blockingRuntime) Stream(ctx context.Context, req llmstream.GenerationRequest, onToken func(string) error) error {
	if err := onToken("<think>thinking</think>partial "); err != nil {
		return err
	}
	select {
	case <-f.unblock:
		return onToken("never reached")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// multiTokenBlockingRuntime emits several tokens back-to-back before
// blocking, so multiple onLLMFeed closures can pile up on eng.events ahead
// of an ABORT_DICTATION being processed — reproducing the ordering the
// stream goroutine can produce in production (feed closures enqueued
// before the goroutine observes ctx cancellation).
type multiTokenBlockingRuntime struct {
	tokens  []string
	unblock chan struct{}
}

func (f *multiTokenBlockingRuntime) Stream(ctx context.Context, req llmstream.GenerationRequest, onToken func(string) error) error {
	for _, tok := range f.tokens {
		if err := onToken(tok); err != nil {
			return err
		}
	}
	select {
	case <-f.unblock:
		return onToken("never reached")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func drainEvent(t *testing.T, eng *Engine) {
	t.Helper()
	select {
	case fn := <-eng.events:
		fn()
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a background event")
	}
}

func newTestEngine(t *testing.T, transcriber dictation.Transcriber, runtime LLMRuntime) (*Engine, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	bus := statusbus.NewBus(&buf, nil, nil)
	cfg := dictation.DefaultConfig()
	eng := New(cfg, Options{
		Transcriber: transcriber,
		Runtime:     runtime,
		Bus:         bus,
		Logger:      dictation.NoOpLogger{},
	})
	return eng, &buf
}

func TestEngine_DictateFlowDeliversFinalTranscript(t *testing.T) {
	eng, buf := newTestEngine(t, &fakeTranscriber{text: "hello world"}, nil)
	ctx := context.Background()

	eng.Activate()
	if eng.ctrl.State() != dictation.StateListening {
		t.Fatalf("expected Listening after Activate, got %v", eng.ctrl.State())
	}

	eng.enterCapturing(dictation.CmdStartDictate, dictation.ModeDictate, time.Now())
	if eng.ctrl.State() != dictation.StateCapturing {
		t.Fatalf("expected Capturing, got %v", eng.ctrl.State())
	}

	eng.stopCapturing(ctx, false)
	drainEvent(t, eng) // onTranscribed

	if eng.ctrl.State() != dictation.StateListening {
		t.Fatalf("expected back to Listening after delivery, got %v", eng.ctrl.State())
	}
	if !strings.Contains(buf.String(), "FINAL_TRANSCRIPT:hello world") {
		t.Errorf("expected FINAL_TRANSCRIPT in bus output, got %q", buf.String())
	}
}

func TestEngine_ProofreadFlowStreamsAndDeliversArtifact(t *testing.T) {
	runtime := &fakeRuntime{tokens: []string{"<think>", "reasoning", "</think>", "Corrected text"}}
	eng, buf := newTestEngine(t, &fakeTranscriber{text: "corected txt"}, runtime)
	ctx := context.Background()

	eng.Activate()
	eng.enterCapturing(dictation.CmdStartProofread, dictation.ModeProofread, time.Now())
	eng.stopCapturing(ctx, false)
	drainEvent(t, eng) // onTranscribed -> kicks off runLLM

	if eng.ctrl.State() != dictation.StateProcessing {
		t.Fatalf("expected Processing once the LLM phase starts, got %v", eng.ctrl.State())
	}

	// One onLLMFeed event per token fed to the parser (four tokens), plus a
	// final onLLMDone.
	for i := 0; i < 4; i++ {
		drainEvent(t, eng)
	}
	drainEvent(t, eng) // onLLMDone

	if eng.ctrl.State() != dictation.StateListening {
		t.Fatalf("expected back to Listening after delivery, got %v", eng.ctrl.State())
	}
	out := buf.String()
	if !strings.Contains(out, "PROOF_STREAM:thinking:reasoning") {
		t.Errorf("expected a thinking delta, got %q", out)
	}
	if !strings.Contains(out, "PROOF_STREAM:end") {
		t.Errorf("expected a stream end marker, got %q", out)
	}
	if !strings.Contains(out, "TRANSCRIPTION:PROOFED:Corrected text") {
		t.Errorf("expected the final proofed artifact, got %q", out)
	}
}

func TestEngine_AbortDuringProcessingReturnsToListening(t *testing.T) {
	runtime := &blockingRuntime{unblock: make(chan struct{})}
	eng, buf := newTestEngine(t, &fakeTranscriber{text: "hello"}, runtime)
	ctx := context.Background()

	eng.Activate()
	eng.enterCapturing(dictation.CmdStartLetter, dictation.ModeLetter, time.Now())
	eng.stopCapturing(ctx, false)
	drainEvent(t, eng) // onTranscribed -> runLLM
	drainEvent(t, eng) // onLLMFeed for the first partial token

	if eng.ctrl.State() != dictation.StateProcessing {
		t.Fatalf("expected Processing, got %v", eng.ctrl.State())
	}

	eng.handleAbort()
	if eng.ctrl.State() != dictation.StateListening {
		t.Fatalf("expected abort to return to Listening, got %v", eng.ctrl.State())
	}
	if eng.ctrl.Mode() != "" {
		t.Errorf("expected mode cleared after abort")
	}

	// The stream's context is now cancelled; its goroutine will still post
	// an onLLMDone event, which finishOp must recognize as already handled.
	drainEvent(t, eng)
	if eng.ctrl.State() != dictation.StateListening {
		t.Fatalf("onLLMDone after abort must not move the state machine again, got %v", eng.ctrl.State())
	}

	out := buf.String()
	if strings.Count(out, "PROOF_STREAM:end") != 1 {
		t.Errorf("expected exactly one PROOF_STREAM:end, got %q", out)
	}
}

func TestEngine_AbortDropsChunksQueuedAheadOfIt(t *testing.T) {
	runtime := &multiTokenBlockingRuntime{tokens: []string{"one ", "two ", "three "}, unblock: make(chan struct{})}
	eng, buf := newTestEngine(t, &fakeTranscriber{text: "hello"}, runtime)
	ctx := context.Background()

	eng.Activate()
	eng.enterCapturing(dictation.CmdStartLetter, dictation.ModeLetter, time.Now())
	eng.stopCapturing(ctx, false)
	drainEvent(t, eng) // onTranscribed -> runLLM

	// Let all three feed closures land on eng.events before the abort is
	// ever processed, then abort with the queue still full.
	time.Sleep(50 * time.Millisecond)
	eng.handleAbort()

	if eng.ctrl.State() != dictation.StateListening {
		t.Fatalf("expected abort to return to Listening, got %v", eng.ctrl.State())
	}

	// Drain whatever the stream goroutine had already queued: the three
	// feed closures plus the eventual onLLMDone. None of them may publish
	// a chunk now that the operation is marked aborted.
	for i := 0; i < 4; i++ {
		drainEvent(t, eng)
	}

	out := buf.String()
	if strings.Count(out, "PROOF_STREAM:end") != 1 {
		t.Errorf("expected exactly one PROOF_STREAM:end, got %q", out)
	}
	if strings.Contains(out, "PROOF_STREAM:chunk") {
		t.Errorf("expected no PROOF_STREAM:chunk after abort, got %q", out)
	}
}

func TestEngine_AbortDuringCapturingDiscardsUtterance(t *testing.T) {
	eng, _ := newTestEngine(t, &fakeTranscriber{text: "unused"}, nil)

	eng.Activate()
	eng.enterCapturing(dictation.CmdStartDictate, dictation.ModeDictate, time.Now())

	eng.handleAbort()
	if eng.ctrl.State() != dictation.StateListening {
		t.Fatalf("expected abort during Capturing to return to Listening, got %v", eng.ctrl.State())
	}
	if eng.recorder.FrameCount() != 0 {
		t.Errorf("expected the recorder to be discarded, got %d buffered frames", eng.recorder.FrameCount())
	}
}

func TestEngine_TranscriptionFailureReturnsToListening(t *testing.T) {
	eng, buf := newTestEngine(t, &fakeTranscriber{err: dictation.ErrModelRuntime}, nil)
	ctx := context.Background()

	eng.Activate()
	eng.enterCapturing(dictation.CmdStartDictate, dictation.ModeDictate, time.Now())
	eng.stopCapturing(ctx, false)
	drainEvent(t, eng)

	if eng.ctrl.State() != dictation.StateListening {
		t.Fatalf("expected Listening after a transcription failure, got %v", eng.ctrl.State())
	}
	if !strings.Contains(buf.String(), "TRANSCRIPTION:error:") {
		t.Errorf("expected a TRANSCRIPTION:error line, got %q", buf.String())
	}
}

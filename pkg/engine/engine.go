package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dictationd/dictationd/pkg/dictation"
	"github.com/dictationd/dictationd/pkg/llmstream"
	"github.com/dictationd/dictationd/pkg/statusbus"
)

// Engine is the single owner of dictation.Controller (SessionState) and the
// components that feed it. Exactly one goroutine — the one running Run —
// touches ctrl, classifier, recognizer, and recorder; background
// transcription/LLM goroutines communicate results back by enqueueing a
// closure on events rather than mutating engine state directly, so no
// additional locking is needed around the pipeline components themselves.
type Engine struct {
	cfgMu sync.RWMutex
	cfg   dictation.Config

	ctrl       *dictation.Controller
	classifier *dictation.FrameClassifier
	recognizer *dictation.WakeWordRecognizer
	recorder   *dictation.UtteranceRecorder

	transcriber   dictation.Transcriber
	transcriberID string
	runtime       LLMRuntime
	bus           *statusbus.Bus
	cache         *dictation.UtteranceCache
	vocab         VocabularyHandler
	logger        dictation.Logger
	models        map[dictation.Mode]ProviderDescriptor
	unloader      *modelUnloader

	events chan func()

	opMu sync.Mutex
	op   *operation
}

// operation tracks the cancellation token for the one in-flight LLM
// Processing phase; runLLM creates it when the stream starts. Transcription
// runs under its own timeout context and is not tracked here.
type operation struct {
	cancel  context.CancelFunc
	aborted bool
}

// New builds an Engine around cfg and opts. The controller starts in
// StateInactive; call Run to drive it.
func New(cfg dictation.Config, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = dictation.NoOpLogger{}
	}
	vocab := opts.Vocabulary
	if vocab == nil {
		vocab = NoopVocabulary{}
	}

	vad := dictation.NewRMSVAD(cfg.VADAggressiveness)
	classifier := dictation.NewFrameClassifier(vad, cfg.VADSkipAmplitude, cfg.VADSkipConsecutiveFrame)

	var hypSource dictation.HypothesisSource
	if opts.Transcriber != nil {
		hypSource = dictation.NewHypothesisSource(context.Background(), opts.Transcriber)
	}
	frameDur := time.Duration(cfg.FrameDurationMS) * time.Millisecond
	recognizer := dictation.NewWakeWordRecognizer(hypSource, cfg.Modes, frameDur, cfg.AmplitudeRateHz)

	return &Engine{
		cfg:           cfg,
		ctrl:          dictation.NewController(),
		classifier:    classifier,
		recognizer:    recognizer,
		recorder:      dictation.NewUtteranceRecorder(cfg),
		transcriber:   opts.Transcriber,
		transcriberID: opts.TranscriberID,
		runtime:       opts.Runtime,
		bus:           opts.Bus,
		cache:         opts.Cache,
		vocab:         vocab,
		logger:        logger,
		models:        opts.ModelSelection,
		unloader:      newModelUnloader(opts.Runtime, logger),
		events:        make(chan func(), 32),
	}
}

// Activate runs the Inactive→Preparing→Listening startup sequence
// (SPEC_FULL.md §4.6). Called once at process start and again after
// TOGGLE_ACTIVE reactivates a deactivated engine.
func (e *Engine) Activate() {
	snap, changed, err := e.ctrl.Apply(dictation.CmdToggleActive, "")
	if err != nil {
		e.logger.Warn("activate: %v", err)
		return
	}
	if changed {
		e.publishState(snap)
	}
	e.publish(statusbus.Status(statusbus.ColorBlue, "preparing"))

	snap, changed, err = e.ctrl.Apply(dictation.EvtSubsystemsReady, "")
	if err != nil {
		e.logger.Warn("activate: subsystems ready: %v", err)
		return
	}
	if changed {
		e.publishState(snap)
	}
	e.publish(statusbus.Status(statusbus.ColorBlue, "listening"))
}

// Run is the Session/controller task of SPEC_FULL.md §5: the single
// goroutine that owns SessionState and drains frames, inbound IPC
// commands, and background-task completions until ctx is cancelled or a
// SHUTDOWN command is processed.
func (e *Engine) Run(ctx context.Context, frames <-chan dictation.AudioFrame, inbound <-chan statusbus.InboundMessage) error {
	e.publish(statusbus.BackendReady())
	e.publishModels()
	e.publish(statusbus.GetConfig())
	e.Activate()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case frame, ok := <-frames:
			if !ok {
				frames = nil
				continue
			}
			e.handleFrame(ctx, frame)

		case msg, ok := <-inbound:
			if !ok {
				inbound = nil
				continue
			}
			if e.handleInbound(ctx, msg) {
				return nil
			}

		case fn, ok := <-e.events:
			if !ok {
				continue
			}
			fn()
		}
	}
}

func (e *Engine) config() dictation.Config {
	e.cfgMu.RLock()
	defer e.cfgMu.RUnlock()
	return e.cfg
}

func (e *Engine) modeConfig(mode dictation.Mode) dictation.ModeConfig {
	e.cfgMu.RLock()
	defer e.cfgMu.RUnlock()
	return e.cfg.Modes[mode]
}

// --- frame handling -------------------------------------------------------

func (e *Engine) handleFrame(ctx context.Context, frame dictation.AudioFrame) {
	now := time.Now()
	switch e.ctrl.State() {
	case dictation.StateListening:
		result := e.classifier.Classify(frame.PCM)
		if result.Err != nil {
			e.logger.Warn("vad: %v", result.Err)
		}
		match, ampEv, allowed := e.recognizer.Feed(frame, now)
		if allowed {
			e.publish(statusbus.AudioAmp(statusbus.AmplitudeToLevel(ampEv.Amplitude)))
		}
		if match != nil {
			e.enterCapturing(dictation.EvtWakeWord, match.Mode, now)
		}

	case dictation.StateCapturing:
		result := e.classifier.Classify(frame.PCM)
		appendRes := e.recorder.Append(frame, result.IsVoiced, now)
		if appendRes.EmitAmplitude {
			e.publish(statusbus.AudioAmp(statusbus.AmplitudeToLevel(appendRes.Amplitude.Amplitude)))
		}
		if appendRes.DroppedFirstWarn {
			e.publish(statusbus.Status(statusbus.ColorYellow, "utterance buffer full, dropping oldest audio"))
		}
		if appendRes.ProgressiveWarn {
			e.publish(statusbus.Status(statusbus.ColorYellow, "long utterance, consider stopping soon"))
		}
		if appendRes.AutoStop || appendRes.HardCap {
			e.stopCapturing(ctx, appendRes.HardCap)
		}

	default:
		// Wake-word gating (spec.md §8): frames outside Listening/Capturing
		// are simply not routed anywhere.
	}
}

// enterCapturing is shared by wake-word dispatch and explicit START_*
// commands: both drive the identical Listening→Capturing transition.
func (e *Engine) enterCapturing(cmd dictation.Command, mode dictation.Mode, now time.Time) {
	snap, changed, err := e.ctrl.Apply(cmd, mode)
	if err != nil {
		if errors.Is(err, dictation.ErrIgnoredCommand) {
			e.publish(statusbus.Status(statusbus.ColorYellow, fmt.Sprintf("ignored: %s not valid from %s", cmd, e.ctrl.State())))
		}
		return
	}
	e.recorder.Begin(now)
	e.classifier.Reset()
	e.recognizer.Reset()
	if changed {
		e.publishState(snap)
	}
	e.publish(statusbus.Status(statusbus.ColorGreen, "listening to you..."))
}

func (e *Engine) stopCapturing(ctx context.Context, hardCap bool) {
	pcm := e.recorder.Finalize()
	snap, changed, err := e.ctrl.Apply(dictation.CmdStopDictation, "")
	if err != nil {
		return
	}
	mode := e.ctrl.Mode()
	if changed {
		e.publishState(snap)
	}
	if hardCap {
		e.publish(statusbus.Status(statusbus.ColorYellow, "utterance hit the hard cap; stopping automatically"))
	}
	e.publish(statusbus.Status(statusbus.ColorOrange, "transcribing..."))
	e.runTranscription(ctx, pcm, mode)
}

// --- transcription phase --------------------------------------------------

func (e *Engine) runTranscription(parentCtx context.Context, pcm []byte, mode dictation.Mode) {
	cfg := e.config()
	opCtx, cancel := context.WithTimeout(parentCtx, cfg.TranscriptionTimeout)

	go func() {
		defer cancel()
		text, err := e.doTranscribe(opCtx, pcm, mode)
		select {
		case e.events <- func() { e.onTranscribed(parentCtx, mode, text, err) }:
		case <-parentCtx.Done():
		}
	}()
}

func (e *Engine) doTranscribe(ctx context.Context, pcm []byte, mode dictation.Mode) (string, error) {
	if e.transcriber == nil {
		return "", dictation.ErrModelLoad
	}
	modeCfg := e.modeConfig(mode)
	fp := dictation.Fingerprint(pcm, mode, dictation.PromptDigest(modeCfg.PromptTemplate))
	text, err := e.cache.GetOrCompute(ctx, fp, func(ctx context.Context) (string, error) {
		return e.transcriber.Transcribe(ctx, pcm)
	})
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: %v", dictation.ErrTimeout, err)
		}
		return "", fmt.Errorf("%w: %v", dictation.ErrModelRuntime, err)
	}
	return text, nil
}

func (e *Engine) onTranscribed(ctx context.Context, mode dictation.Mode, text string, err error) {
	if err != nil {
		e.publish(statusbus.TranscriptionError(err.Error()))
		e.publish(statusbus.Status(statusbus.ColorRed, "transcription failed: "+err.Error()))
		snap, changed, _ := e.ctrl.Fail(false)
		if changed {
			e.publishState(snap)
		}
		return
	}

	filtered := dictation.FilterFillerWords(text, e.modeConfig(mode).FillerWords)

	snap, changed, applyErr := e.ctrl.Apply(dictation.EvtTranscribed, "")
	if applyErr != nil {
		return
	}
	if changed {
		e.publishState(snap)
	}

	if mode == dictation.ModeDictate {
		e.publish(statusbus.FinalTranscript(filtered))
		snap, changed, _ = e.ctrl.Apply(dictation.EvtDelivered, "")
		if changed {
			e.publishState(snap)
		}
		return
	}

	e.publish(statusbus.DictationPreview(filtered))
	e.runLLM(ctx, mode, filtered)
}

// --- LLM processing phase -------------------------------------------------

func (e *Engine) runLLM(parentCtx context.Context, mode dictation.Mode, userText string) {
	if e.runtime == nil {
		e.publish(statusbus.Status(statusbus.ColorRed, "no LLM runtime configured"))
		snap, changed, _ := e.ctrl.Fail(false)
		if changed {
			e.publishState(snap)
		}
		return
	}

	// Using the runtime now means it must not be unloaded mid-stream;
	// disarming here cancels any pending unload, and the stream goroutine
	// below schedules the next one once this invocation settles.
	e.unloader.Touch(0)

	modeCfg := e.modeConfig(mode)
	family := llmstream.FamilyForModel(modeCfg.ModelID)
	parser := llmstream.NewEngine(family, family.SeedPhrase)

	req := llmstream.GenerationRequest{
		Mode:             string(mode),
		PromptTemplate:   modeCfg.PromptTemplate,
		UserText:         userText,
		ModelID:          modeCfg.ModelID,
		MaxTokens:        family.MaxTokens,
		Temperature:      family.Temperature,
		TopP:             family.TopP,
		SystemPromptAddl: family.AntiRepetitionPrompt,
	}

	ctx, cancel := context.WithCancel(parentCtx)
	e.opMu.Lock()
	e.op = &operation{cancel: cancel}
	e.opMu.Unlock()

	cfg := e.config()
	idle := withIdleTimeout(ctx, cfg.LLMTokenIdleTimeout, cancel)

	go func() {
		defer cancel()
		streamErr := e.runtime.Stream(ctx, req, func(tok string) error {
			idle.Touch()
			fr := parser.Feed(tok)
			select {
			case e.events <- func() { e.onLLMFeed(fr) }:
			case <-ctx.Done():
			}
			if fr.Stop {
				return errRepetitionStop
			}
			return nil
		})
		e.unloader.Touch(cfg.ModelIdleTimeout)
		select {
		case e.events <- func() { e.onLLMDone(mode, parser, streamErr) }:
		case <-parentCtx.Done():
		}
	}()
}

// onLLMFeed publishes one parsed chunk, unless the in-flight operation has
// already been marked aborted. Feed closures are enqueued on e.events by
// the stream goroutine before it observes ctx cancellation, so a closure
// can still be sitting in the queue after handleAbort has already emitted
// PROOF_STREAM:end — checking here keeps §8's cancellation-promptness
// invariant ("no further PROOF_STREAM:chunk after ABORT_DICTATION is
// accepted") regardless of that race.
func (e *Engine) onLLMFeed(fr llmstream.FeedResult) {
	e.opMu.Lock()
	aborted := e.op == nil || e.op.aborted
	e.opMu.Unlock()
	if aborted {
		return
	}

	if fr.ThinkingDelta != "" {
		e.publish(statusbus.ProofStream(statusbus.ColorBlue, statusbus.StreamThinking, fr.ThinkingDelta))
	}
	if fr.ResponseDelta != "" {
		e.publish(statusbus.ProofStream(statusbus.ColorBlue, statusbus.StreamChunk, fr.ResponseDelta))
	}
}

func (e *Engine) onLLMDone(mode dictation.Mode, parser *llmstream.Engine, streamErr error) {
	wasAborted := e.finishOp()
	if wasAborted {
		// ABORT_DICTATION's handler already emitted PROOF_STREAM:end and
		// drove the state transition back to Listening.
		return
	}

	e.publish(statusbus.ProofStream(statusbus.ColorBlue, statusbus.StreamEnd, ""))

	if streamErr != nil && !errors.Is(streamErr, errRepetitionStop) {
		e.publish(statusbus.Status(statusbus.ColorRed, "LLM runtime error: "+streamErr.Error()))
		snap, changed, _ := e.ctrl.Fail(false)
		if changed {
			e.publishState(snap)
		}
		return
	}

	artifact := dictation.FilterFillerWords(parser.FinalArtifact(), e.modeConfig(mode).FillerWords)
	snap, changed, err := e.ctrl.Apply(dictation.EvtLLMDone, "")
	if err != nil {
		return
	}
	if changed {
		e.publishState(snap)
	}

	kind := statusbus.TranscriptionProofed
	if mode == dictation.ModeLetter {
		kind = statusbus.TranscriptionLetter
	}
	e.publish(statusbus.Transcription(kind, artifact))

	snap, changed, _ = e.ctrl.Apply(dictation.EvtDelivered, "")
	if changed {
		e.publishState(snap)
	}
}

// finishOp clears the in-flight operation and reports whether it had been
// marked aborted.
func (e *Engine) finishOp() bool {
	e.opMu.Lock()
	defer e.opMu.Unlock()
	wasAborted := e.op != nil && e.op.aborted
	e.op = nil
	return wasAborted
}

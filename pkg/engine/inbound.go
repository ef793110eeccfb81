package engine

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dictationd/dictationd/pkg/dictation"
	"github.com/dictationd/dictationd/pkg/statusbus"
)

// handleInbound dispatches one parsed IPC command. It returns true only for
// SHUTDOWN, telling Run to return.
func (e *Engine) handleInbound(ctx context.Context, msg statusbus.InboundMessage) bool {
	switch msg.Kind {
	case statusbus.InToggleActive:
		e.handleToggle()

	case statusbus.InStartDictate:
		e.enterCapturing(dictation.CmdStartDictate, dictation.ModeDictate, time.Now())

	case statusbus.InStartProofread:
		e.enterCapturing(dictation.CmdStartProofread, dictation.ModeProofread, time.Now())

	case statusbus.InStartLetter:
		e.enterCapturing(dictation.CmdStartLetter, dictation.ModeLetter, time.Now())

	case statusbus.InStopDictation:
		if e.ctrl.State() == dictation.StateCapturing {
			e.stopCapturing(ctx, false)
		}

	case statusbus.InAbortDictation:
		e.handleAbort()

	case statusbus.InConfig:
		e.applyConfig(msg.Payload)

	case statusbus.InModelsRequest:
		e.publishModels()

	case statusbus.InVocabularyAPI:
		resp := e.vocab.Handle(msg.ID, msg.Payload)
		e.publish(statusbus.VocabResponse(msg.ID, resp))

	case statusbus.InRestart:
		e.handleRestart()

	case statusbus.InShutdown:
		snap, _, _ := e.ctrl.Apply(dictation.CmdShutdown, "")
		e.publishState(snap)
		return true

	default:
		e.logger.Warn("protocol: unrecognized inbound message")
		e.publish(statusbus.Status(statusbus.ColorYellow, "ignored malformed command"))
	}
	return false
}

// handleToggle implements TOGGLE_ACTIVE's two directions: Inactive runs the
// normal startup sequence, any other state aborts whatever phase is running
// and deactivates — reversibly, unlike SHUTDOWN.
func (e *Engine) handleToggle() {
	if e.ctrl.State() == dictation.StateInactive {
		e.Activate()
		return
	}
	e.handleAbort()
	snap, changed, err := e.ctrl.Deactivate()
	if err != nil {
		return
	}
	if changed {
		e.publishState(snap)
	}
}

// handleRestart deactivates and immediately reactivates, used when the UI
// wants fresh subsystem state without a full process restart.
func (e *Engine) handleRestart() {
	snap, changed, _ := e.ctrl.Deactivate()
	if changed {
		e.publishState(snap)
	}
	e.Activate()
}

// handleAbort cancels whichever phase is in flight and returns the session
// to Listening. Outside Capturing/Processing — the only two states the
// transition table accepts ABORT_DICTATION from — it is a no-op, matching
// spec.md §4.4's "ABORT_DICTATION is ignored outside an active utterance".
func (e *Engine) handleAbort() {
	switch e.ctrl.State() {
	case dictation.StateCapturing:
		e.recorder.Discard()
		snap, changed, err := e.ctrl.Apply(dictation.CmdAbortDictation, "")
		if err != nil {
			return
		}
		if changed {
			e.publishState(snap)
		}
		e.publish(statusbus.Status(statusbus.ColorGrey, "aborted"))

	case dictation.StateProcessing:
		e.opMu.Lock()
		op := e.op
		if op != nil {
			op.aborted = true
		}
		e.opMu.Unlock()

		snap, changed, err := e.ctrl.Apply(dictation.CmdAbortDictation, "")
		if err != nil {
			return
		}
		if changed {
			e.publishState(snap)
		}
		e.publish(statusbus.ProofStream(statusbus.ColorBlue, statusbus.StreamEnd, ""))
		e.publish(statusbus.Status(statusbus.ColorGrey, "aborted"))

		if op != nil && op.cancel != nil {
			op.cancel()
		}
	}
}

// configPayload is the JSON body of CONFIG:<json> (spec.md §6.2): a sparse
// per-mode override set applied on top of whatever DefaultConfig loaded.
type configPayload struct {
	Modes map[string]struct {
		WakeWords      []string `json:"wakeWords"`
		PromptTemplate string   `json:"promptTemplate"`
		ModelID        string   `json:"modelId"`
		FillerWords    []string `json:"fillerWords"`
	} `json:"modes"`
}

// applyConfig rebuilds the per-mode configuration and the Wake-Word
// Recognizer (the only component that captures a snapshot of the modes map
// at construction) without touching SessionState, matching CmdApplyConfig's
// "never moves the state machine" contract in Controller.Apply.
func (e *Engine) applyConfig(payload string) {
	var p configPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		e.logger.Warn("config: invalid payload: %v", err)
		e.publish(statusbus.Status(statusbus.ColorYellow, "ignored malformed CONFIG payload"))
		return
	}

	e.cfgMu.Lock()
	if e.cfg.Modes == nil {
		e.cfg.Modes = make(map[dictation.Mode]dictation.ModeConfig)
	}
	for name, m := range p.Modes {
		e.cfg.Modes[dictation.Mode(name)] = dictation.ModeConfig{
			WakeWords:      m.WakeWords,
			PromptTemplate: m.PromptTemplate,
			ModelID:        m.ModelID,
			FillerWords:    m.FillerWords,
		}
	}
	modes := e.cfg.Modes
	frameDur := time.Duration(e.cfg.FrameDurationMS) * time.Millisecond
	amplitudeRateHz := e.cfg.AmplitudeRateHz
	e.cfgMu.Unlock()

	var hypSource dictation.HypothesisSource
	if e.transcriber != nil {
		hypSource = dictation.NewHypothesisSource(context.Background(), e.transcriber)
	}
	e.recognizer = dictation.NewWakeWordRecognizer(hypSource, modes, frameDur, amplitudeRateHz)

	e.ctrl.Apply(dictation.CmdApplyConfig, "")
	for name, m := range p.Modes {
		if m.ModelID != "" {
			e.publish(statusbus.ModelSelected(name, m.ModelID))
		}
	}
	e.publish(statusbus.Status(statusbus.ColorGrey, "configuration applied"))
}

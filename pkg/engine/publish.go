package engine

import (
	"encoding/json"

	"github.com/dictationd/dictationd/pkg/dictation"
	"github.com/dictationd/dictationd/pkg/statusbus"
)

// publish hands one already-constructed line to the Bus, logging (never
// panicking) on a write failure — a stalled stdout reader must not bring
// down the session loop.
func (e *Engine) publish(line string) {
	if e.bus == nil {
		return
	}
	if err := e.bus.Publish(line); err != nil {
		e.logger.Error("publish: %v", err)
	}
}

// publishState converts a dictation.StateSnapshot into the STATE:<json>
// wire shape and publishes it. Controller.Apply's changed flag already
// suppresses duplicate snapshots before this is called.
func (e *Engine) publishState(snap dictation.StateSnapshot) {
	out := statusbus.StateSnapshot{
		ProgramActive:    snap.State != dictation.StateInactive,
		AudioState:       snap.State.String(),
		IsDictating:      snap.State == dictation.StateCapturing && snap.Mode == dictation.ModeDictate,
		IsProofingActive: snap.State != dictation.StateInactive && snap.State != dictation.StateListening && snap.Mode != dictation.ModeDictate,
		CanDictate:       snap.State == dictation.StateListening,
		CurrentMode:      string(snap.Mode),
	}
	body, err := json.Marshal(out)
	if err != nil {
		e.logger.Error("marshal state: %v", err)
		return
	}
	e.publish(statusbus.State(string(body)))
}

// publishModels announces the configured ASR/LLM providers once at startup
// (spec.md §6.1's MODELS:<json>).
func (e *Engine) publishModels() {
	if len(e.models) == 0 {
		return
	}
	list := make([]ProviderDescriptor, 0, len(e.models))
	for _, d := range e.models {
		list = append(list, d)
	}
	body, err := json.Marshal(list)
	if err != nil {
		e.logger.Error("marshal models: %v", err)
		return
	}
	e.publish(statusbus.ModelsSummary(string(body)))
}

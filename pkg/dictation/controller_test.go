package dictation

import "testing"

func TestController_FullDictateCycle(t *testing.T) {
	c := NewController()

	mustApply := func(cmd Command, mode Mode, want SessionState) {
		t.Helper()
		snap, _, err := c.Apply(cmd, mode)
		if err != nil {
			t.Fatalf("Apply(%v): unexpected error: %v", cmd, err)
		}
		if snap.State != want {
			t.Fatalf("Apply(%v): expected state %v, got %v", cmd, want, snap.State)
		}
	}

	mustApply(CmdToggleActive, "", StatePreparing)
	mustApply(EvtSubsystemsReady, "", StateListening)
	mustApply(EvtWakeWord, ModeDictate, StateCapturing)
	if c.Mode() != ModeDictate {
		t.Fatalf("expected mode dictate, got %v", c.Mode())
	}
	mustApply(CmdStopDictation, "", StateTranscribing)
	mustApply(EvtTranscribed, "", StateDelivering)
	mustApply(EvtDelivered, "", StateListening)
	if c.Mode() != "" {
		t.Errorf("expected mode cleared after delivery, got %v", c.Mode())
	}
}

func TestController_ProofreadGoesThroughProcessing(t *testing.T) {
	c := NewController()
	c.Apply(CmdToggleActive, "")
	c.Apply(EvtSubsystemsReady, "")
	c.Apply(EvtWakeWord, ModeProofread)
	c.Apply(CmdStopDictation, "")

	snap, _, err := c.Apply(EvtTranscribed, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.State != StateProcessing {
		t.Fatalf("expected proofread to enter Processing, got %v", snap.State)
	}

	snap, _, err = c.Apply(EvtLLMDone, "")
	if err != nil || snap.State != StateDelivering {
		t.Fatalf("expected Delivering after EvtLLMDone, got %v err=%v", snap.State, err)
	}
}

func TestController_AbortDiscardsAndReturnsToListening(t *testing.T) {
	c := NewController()
	c.Apply(CmdToggleActive, "")
	c.Apply(EvtSubsystemsReady, "")
	c.Apply(EvtWakeWord, ModeDictate)

	snap, _, err := c.Apply(CmdAbortDictation, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.State != StateListening {
		t.Fatalf("expected abort to return to Listening, got %v", snap.State)
	}
	if c.Mode() != "" {
		t.Errorf("expected mode cleared on abort")
	}
}

func TestController_AbortDuringProcessingReturnsToListening(t *testing.T) {
	c := NewController()
	c.Apply(CmdToggleActive, "")
	c.Apply(EvtSubsystemsReady, "")
	c.Apply(EvtWakeWord, ModeProofread)
	c.Apply(CmdStopDictation, "")
	c.Apply(EvtTranscribed, "")
	if c.State() != StateProcessing {
		t.Fatalf("setup: expected Processing, got %v", c.State())
	}

	snap, _, err := c.Apply(CmdAbortDictation, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.State != StateListening {
		t.Fatalf("expected abort during Processing to return to Listening, got %v", snap.State)
	}
	if c.Mode() != "" {
		t.Errorf("expected mode cleared on abort during Processing")
	}
}

func TestController_IllegalTransitionIsIgnored(t *testing.T) {
	c := NewController() // Inactive

	_, changed, err := c.Apply(CmdStopDictation, "")
	if err != ErrIgnoredCommand {
		t.Fatalf("expected ErrIgnoredCommand, got %v", err)
	}
	if changed {
		t.Errorf("expected no snapshot change for an illegal transition")
	}
}

func TestController_DuplicateSnapshotSuppressed(t *testing.T) {
	c := NewController()
	c.Apply(CmdToggleActive, "")

	_, changed, err := c.Apply(CmdApplyConfig, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if changed {
		t.Errorf("APPLY_CONFIG must never change the published snapshot")
	}
}

func TestController_ShutdownFromAnyState(t *testing.T) {
	c := NewController()
	c.Apply(CmdToggleActive, "")
	c.Apply(EvtSubsystemsReady, "")
	c.Apply(EvtWakeWord, ModeDictate)

	snap, _, err := c.Apply(CmdShutdown, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.State != StateInactive {
		t.Fatalf("expected shutdown to force Inactive, got %v", snap.State)
	}

	_, _, err = c.Apply(CmdToggleActive, "")
	if err != ErrIgnoredCommand {
		t.Errorf("expected commands after shutdown to be ignored, got %v", err)
	}
}

func TestController_FailReturnsToListeningUnlessAudioFatal(t *testing.T) {
	c := NewController()
	c.Apply(CmdToggleActive, "")
	c.Apply(EvtSubsystemsReady, "")
	c.Apply(EvtWakeWord, ModeDictate)
	c.Apply(CmdStopDictation, "")

	snap, _, _ := c.Fail(false)
	if snap.State != StateListening {
		t.Fatalf("expected non-fatal failure to return to Listening, got %v", snap.State)
	}

	snap, _, _ = c.Fail(true)
	if snap.State != StateInactive {
		t.Fatalf("expected audio-fatal failure to go Inactive, got %v", snap.State)
	}
}

func TestController_AtMostOneActivePhase(t *testing.T) {
	c := NewController()
	c.Apply(CmdToggleActive, "")
	c.Apply(EvtSubsystemsReady, "")
	c.Apply(EvtWakeWord, ModeDictate)

	// A second wake word while already Capturing must be ignored —
	// there is no {StateCapturing, EvtWakeWord} table entry.
	_, changed, err := c.Apply(EvtWakeWord, ModeProofread)
	if err != ErrIgnoredCommand {
		t.Fatalf("expected cross-mode wake word during capture to be ignored, got %v", err)
	}
	if changed {
		t.Errorf("expected no snapshot change")
	}
	if c.State() != StateCapturing || c.Mode() != ModeDictate {
		t.Errorf("expected state to remain Capturing(dictate), got %v(%v)", c.State(), c.Mode())
	}
}

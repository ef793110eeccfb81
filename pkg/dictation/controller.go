package dictation

// Command is a public inbound command accepted from the IPC transport
// (§6.2), plus the internal events the long-lived tasks raise when a
// subsystem finishes its work. Keeping both in one enum lets the whole
// state machine live in a single transition table.
type Command int

const (
	CmdToggleActive Command = iota
	CmdStartDictate
	CmdStartProofread
	CmdStartLetter
	CmdStopDictation
	CmdAbortDictation
	CmdApplyConfig
	CmdShutdown

	// Internal events — never received over IPC, raised by the
	// component that just finished its phase of work.
	EvtWakeWord        // Wake-Word Recognizer matched a phrase
	EvtSubsystemsReady // Audio Source + Wake-Word Recognizer finished loading
	EvtTranscribed     // Transcription Service returned text
	EvtLLMDone         // LLM Streaming Engine's stream ended
	EvtDelivered       // caller finished emitting the final-artifact status message
)

func (c Command) String() string {
	switch c {
	case CmdToggleActive:
		return "TOGGLE_ACTIVE"
	case CmdStartDictate:
		return "START_DICTATE"
	case CmdStartProofread:
		return "START_PROOFREAD"
	case CmdStartLetter:
		return "START_LETTER"
	case CmdStopDictation:
		return "STOP_DICTATION"
	case CmdAbortDictation:
		return "ABORT_DICTATION"
	case CmdApplyConfig:
		return "APPLY_CONFIG"
	case CmdShutdown:
		return "SHUTDOWN"
	case EvtWakeWord:
		return "wake_word"
	case EvtSubsystemsReady:
		return "subsystems_ready"
	case EvtTranscribed:
		return "transcribed"
	case EvtLLMDone:
		return "llm_done"
	case EvtDelivered:
		return "delivered"
	default:
		return "UNKNOWN"
	}
}

// StartCommandForMode maps a recognized wake-word mode onto the explicit
// START_* command it is equivalent to, so wake-word dispatch and manual
// IPC commands drive the identical transition.
func StartCommandForMode(m Mode) Command {
	switch m {
	case ModeProofread:
		return CmdStartProofread
	case ModeLetter:
		return CmdStartLetter
	default:
		return CmdStartDictate
	}
}

// transitionKey identifies one edge of the state machine: a (state,
// command) pair mapping to the next state. Grounded in
// voicetyped-voicetyped's pkg/dialog/fsm.go transition-table style, chosen
// over the teacher's ad hoc boolean flags (isSpeaking / isThinking) because
// the state-monotonicity testable property demands an auditable,
// enumerated transition set — every legal edge below is independently
// unit-testable.
type transitionKey struct {
	from SessionState
	cmd  Command
}

// transitions is the closed transition table for SPEC_FULL.md §4.6. Entries
// absent from this map are illegal: Apply rejects them with
// ErrIgnoredCommand rather than silently no-opping. The one
// mode-conditional edge (Transcribing leaving to either Delivering or
// Processing) is resolved in Apply, not here, since the table has no notion
// of mode.
var transitions = map[transitionKey]SessionState{
	{StateInactive, CmdToggleActive}: StatePreparing,

	{StatePreparing, EvtSubsystemsReady}: StateListening,

	{StateListening, EvtWakeWord}:       StateCapturing,
	{StateListening, CmdStartDictate}:   StateCapturing,
	{StateListening, CmdStartProofread}: StateCapturing,
	{StateListening, CmdStartLetter}:    StateCapturing,

	{StateCapturing, CmdStopDictation}:  StateTranscribing,
	{StateCapturing, CmdAbortDictation}: StateListening,

	// Transcribing's actual destination is resolved by mode in Apply:
	// dictate goes straight to Delivering, proofread/letter go to
	// Processing for the LLM phase.
	{StateTranscribing, EvtTranscribed}: StateDelivering,

	{StateProcessing, EvtLLMDone}:       StateDelivering,
	{StateProcessing, CmdAbortDictation}: StateListening,

	{StateDelivering, EvtDelivered}: StateListening,
}

// Controller drives the session state machine. It does not itself own
// goroutines or channels — pkg/engine wires Controller.Apply calls to
// the audio, wake-word, recorder, transcription, and LLM components.
type Controller struct {
	state        SessionState
	mode         Mode
	shuttingDown bool

	lastSnapshot StateSnapshot
	haveSnapshot bool
}

// NewController builds a controller in StateInactive.
func NewController() *Controller {
	return &Controller{state: StateInactive}
}

// State returns the current state.
func (c *Controller) State() SessionState { return c.state }

// Mode returns the mode of the active Capturing/Transcribing/Processing/
// Delivering phase. Meaningless in Inactive/Preparing/Listening.
func (c *Controller) Mode() Mode { return c.mode }

// StateSnapshot is the de-duplicated value published on every transition,
// matching spec.md §4.4's "duplicate identical snapshots MUST be
// suppressed" invariant.
type StateSnapshot struct {
	State SessionState
	Mode  Mode
}

// Apply validates and executes one command or internal event against the
// current state. It returns the resulting snapshot and whether it differs
// from the last one published (changed=false means the caller should
// suppress the STATE event to avoid UI flicker).
//
// mode is only consulted for commands/events that enter or leave a mode:
// START_* and wake-word carry the newly selected mode; EvtTranscribed in
// StateTranscribing is resolved against the mode already recorded on the
// controller, not the mode argument.
func (c *Controller) Apply(cmd Command, mode Mode) (snapshot StateSnapshot, changed bool, err error) {
	if cmd == CmdShutdown {
		c.state = StateInactive
		c.shuttingDown = true
		c.mode = ""
		return c.publish()
	}
	if c.shuttingDown {
		return c.lastSnapshot, false, ErrIgnoredCommand
	}

	// APPLY_CONFIG never moves the state machine; the caller rebuilds
	// component configuration entirely outside Apply.
	if cmd == CmdApplyConfig {
		return c.lastSnapshot, false, nil
	}

	next, ok := transitions[transitionKey{c.state, cmd}]
	if !ok {
		return c.lastSnapshot, false, ErrIgnoredCommand
	}

	switch {
	case c.state == StateListening && (cmd == EvtWakeWord || isStartCommand(cmd)):
		c.mode = mode

	case c.state == StateCapturing && cmd == CmdAbortDictation:
		c.mode = ""

	case c.state == StateProcessing && cmd == CmdAbortDictation:
		c.mode = ""

	case c.state == StateTranscribing && cmd == EvtTranscribed:
		if c.mode == ModeDictate {
			next = StateDelivering
		} else {
			next = StateProcessing
		}

	case c.state == StateDelivering && cmd == EvtDelivered:
		c.mode = ""
	}

	c.state = next
	return c.publish()
}

func isStartCommand(cmd Command) bool {
	switch cmd {
	case CmdStartDictate, CmdStartProofread, CmdStartLetter:
		return true
	default:
		return false
	}
}

// Fail forces a return to Listening (or Inactive for audio failures),
// matching spec.md §4.4's failure policy: transcription/LLM failures return
// to Listening, audio failures go to Inactive.
func (c *Controller) Fail(audioFatal bool) (StateSnapshot, bool, error) {
	if audioFatal {
		c.state = StateInactive
	} else {
		c.state = StateListening
	}
	c.mode = ""
	return c.publish()
}

// Deactivate forces the controller back to StateInactive from any state,
// without the permanent shuttingDown latch Apply(CmdShutdown) sets. Used by
// the engine to implement TOGGLE_ACTIVE's active→inactive direction, which
// (unlike SHUTDOWN) must be reversible by a later TOGGLE_ACTIVE.
func (c *Controller) Deactivate() (StateSnapshot, bool, error) {
	c.state = StateInactive
	c.mode = ""
	return c.publish()
}

func (c *Controller) publish() (StateSnapshot, bool, error) {
	snap := StateSnapshot{State: c.state, Mode: c.mode}
	changed := !c.haveSnapshot || snap != c.lastSnapshot
	c.lastSnapshot = snap
	c.haveSnapshot = true
	return snap, changed, nil
}

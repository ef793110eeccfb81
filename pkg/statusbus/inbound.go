package statusbus

import (
	"bufio"
	"io"
	"strings"
)

// InboundKind is the parsed inbound command kind (spec.md §6.2).
type InboundKind string

const (
	InStartDictate   InboundKind = "start_dictate"
	InStartProofread InboundKind = "start_proofread"
	InStartLetter    InboundKind = "start_letter"
	InStopDictation  InboundKind = "STOP_DICTATION"
	InAbortDictation InboundKind = "ABORT_DICTATION"
	InToggleActive   InboundKind = "TOGGLE_ACTIVE"
	InRestart        InboundKind = "RESTART"
	InShutdown       InboundKind = "SHUTDOWN"
	InConfig         InboundKind = "CONFIG"
	InModelsRequest  InboundKind = "MODELS_REQUEST"
	InVocabularyAPI  InboundKind = "VOCABULARY_API"
	InUnknown        InboundKind = ""
)

// InboundMessage is one parsed line from the UI.
type InboundMessage struct {
	Kind InboundKind
	// ID is populated for VOCABULARY_API:<id>:<json>.
	ID string
	// Payload is the JSON body for CONFIG:<json> and the JSON body for
	// VOCABULARY_API:<id>:<json>.
	Payload string
}

// ParseInbound parses one raw line off stdin into an InboundMessage. A line
// that matches no known command returns InUnknown, which the caller should
// treat as a protocol error (ErrProtocol) rather than panic or ignore
// silently.
func ParseInbound(line string) InboundMessage {
	line = strings.TrimRight(line, "\r\n")

	switch line {
	case string(InStartDictate), string(InStartProofread), string(InStartLetter),
		string(InStopDictation), string(InAbortDictation), string(InToggleActive),
		string(InRestart), string(InShutdown), string(InModelsRequest):
		return InboundMessage{Kind: InboundKind(line)}
	}

	if rest, ok := cutPrefix(line, "CONFIG:"); ok {
		return InboundMessage{Kind: InConfig, Payload: rest}
	}
	if rest, ok := cutPrefix(line, "VOCABULARY_API:"); ok {
		id, payload, found := strings.Cut(rest, ":")
		if !found {
			return InboundMessage{Kind: InUnknown}
		}
		return InboundMessage{Kind: InVocabularyAPI, ID: id, Payload: payload}
	}

	return InboundMessage{Kind: InUnknown}
}

func cutPrefix(s, prefix string) (string, bool) {
	if !strings.HasPrefix(s, prefix) {
		return "", false
	}
	return s[len(prefix):], true
}

// ReadInbound reads lines from r on the caller's goroutine, invoking onMsg
// for each parsed message, until r is exhausted or returns an error. It is
// the UI→core half of the IPC transport, read line-by-line the same way
// the outbound half writes line-by-line.
func ReadInbound(r io.Reader, onMsg func(InboundMessage)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		onMsg(ParseInbound(scanner.Text()))
	}
	return scanner.Err()
}

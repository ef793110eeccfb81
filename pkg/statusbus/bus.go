package statusbus

import (
	"bufio"
	"io"
	"strings"
	"sync"
)

// acceptedPrefixes is the closed set of outbound message prefixes spec.md
// §6.1 allows onto the transport; everything else is diverted to the
// rotating log file instead.
var acceptedPrefixes = []string{
	"PYTHON_BACKEND_READY",
	"GET_CONFIG",
	"MODELS:",
	"MODEL_SELECTED:",
	"STATE:",
	"STATUS:",
	"AUDIO_AMP:",
	"FINAL_TRANSCRIPT:",
	"DICTATION_PREVIEW:",
	"TRANSCRIPTION:",
	"VOCAB_RESPONSE:",
}

func isAcceptedLabel(line string, whitelist map[string]bool) bool {
	for _, p := range acceptedPrefixes {
		if strings.HasPrefix(line, p) {
			return true
		}
	}
	label := line
	if idx := strings.IndexByte(line, ':'); idx >= 0 {
		label = line[:idx]
	}
	return whitelist[label]
}

// Bus is the single writer to the line-oriented stdout transport. All
// publish calls funnel through one mutex, mirroring the teacher's
// single-consumer event channel but as a synchronous writer rather than a
// goroutine reading off a channel — this package owns no goroutines itself
// so cmd/dictationd decides whether publishes happen inline or are
// buffered upstream.
type Bus struct {
	mu        sync.Mutex
	w         *bufio.Writer
	rotate    *RotatingLog
	whitelist map[string]bool
	verbose   bool
}

// NewBus wraps w (typically os.Stdout) as the outbound transport. rotate
// may be nil to discard non-whitelisted labels instead of logging them.
func NewBus(w io.Writer, rotate *RotatingLog, whitelistLabels []string) *Bus {
	wl := make(map[string]bool, len(whitelistLabels))
	for _, l := range whitelistLabels {
		wl[l] = true
	}
	return &Bus{w: bufio.NewWriter(w), rotate: rotate, whitelist: wl}
}

// SetVerbose toggles CT_VERBOSE's "disable minimal-terminal mode" behaviour
// (spec.md §6.3): once set, Publish writes every line regardless of label
// instead of diverting non-whitelisted ones to the rotating log.
func (b *Bus) SetVerbose(v bool) {
	b.mu.Lock()
	b.verbose = v
	b.mu.Unlock()
}

// Publish writes one already-constructed line (see message.go's
// constructors) to the transport if its label is in the accepted set, the
// CT_LOG_WHITELIST, or verbose mode is on; otherwise it goes to the
// rotating log file.
func (b *Bus) Publish(line string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.verbose && !isAcceptedLabel(line, b.whitelist) {
		if b.rotate != nil {
			return b.rotate.WriteLine(line)
		}
		return nil
	}

	if _, err := b.w.WriteString(line); err != nil {
		return err
	}
	if err := b.w.WriteByte('\n'); err != nil {
		return err
	}
	return b.w.Flush()
}

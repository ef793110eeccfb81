package engine

import (
	"context"
	"sync"
	"time"

	"github.com/dictationd/dictationd/pkg/dictation"
)

// idleSignal resets an idle-timeout watchdog each time a token arrives on
// the LLM stream, so a connection that stalls mid-generation is aborted
// after LLMTokenIdleTimeout of silence (SPEC_FULL.md §4.5) without bounding
// total stream duration the way a single context.WithTimeout would.
type idleSignal struct {
	touch chan struct{}
}

// Touch resets the watchdog's timer. Non-blocking: a Touch made while an
// earlier one is still waiting in the one-slot channel is dropped, since
// that pending one already resets the timer.
func (s *idleSignal) Touch() {
	select {
	case s.touch <- struct{}{}:
	default:
	}
}

// withIdleTimeout starts a watchdog goroutine that calls parentCancel if
// more than timeout elapses between Touch calls, and stops on its own once
// parent is done. A non-positive timeout disables the watchdog.
func withIdleTimeout(parent context.Context, timeout time.Duration, parentCancel context.CancelFunc) *idleSignal {
	sig := &idleSignal{touch: make(chan struct{}, 1)}
	if timeout <= 0 {
		return sig
	}

	go func() {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		for {
			select {
			case <-parent.Done():
				return
			case <-sig.touch:
				if !timer.Stop() {
					<-timer.C
				}
				timer.Reset(timeout)
			case <-timer.C:
				parentCancel()
				return
			}
		}
	}()

	return sig
}

// runtimeCloser is satisfied by *llmstream.RuntimeClient: a model runtime
// connection that can be released and lazily re-established on next use.
// Not every LLMRuntime needs to implement it (a fake used in tests simply
// doesn't); modelUnloader treats the absence of Close as "nothing to
// unload".
type runtimeCloser interface {
	Close() error
}

// modelUnloader releases an idle model-runtime connection after
// ModelIdleTimeout of inactivity (spec.md §5: "loaded lazily, held by the
// respective worker, and unloaded on idle timeout (configurable; default
// disabled)"). It is armed once per process and re-armed on every LLM
// invocation; a non-positive timeout leaves it permanently disarmed.
type modelUnloader struct {
	mu      sync.Mutex
	timer   *time.Timer
	timeout time.Duration
	target  runtimeCloser
	logger  dictation.Logger
}

func newModelUnloader(target LLMRuntime, logger dictation.Logger) *modelUnloader {
	closer, _ := target.(runtimeCloser)
	return &modelUnloader{target: closer, logger: logger}
}

// Touch (re)arms the unload timer for timeout from now. Called on every
// runLLM invocation; a zero or negative timeout disarms the watchdog
// instead, matching Config.ModelIdleTimeout's "0 disables unload-on-idle".
func (u *modelUnloader) Touch(timeout time.Duration) {
	if u == nil || u.target == nil {
		return
	}
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.timer != nil {
		u.timer.Stop()
		u.timer = nil
	}
	u.timeout = timeout
	if timeout <= 0 {
		return
	}
	u.timer = time.AfterFunc(timeout, u.unload)
}

func (u *modelUnloader) unload() {
	u.mu.Lock()
	target := u.target
	u.timer = nil
	u.mu.Unlock()

	if target == nil {
		return
	}
	if err := target.Close(); err != nil && u.logger != nil {
		u.logger.Warn("model runtime idle-unload: %v", err)
	}
}

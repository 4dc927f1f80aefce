package voicecore

import (
	"sync"
	"time"

	"github.com/questlog/voicecore/core/triggers"
)

const (
	// DefaultQuietWindow is how long the detector waits after the last
	// committed fragment before deciding the speaker is done.
	DefaultQuietWindow = 3 * time.Second

	// partialWindowSize is how many identical partials in a row read as
	// silence (the service re-emitting a stale result).
	partialWindowSize = 3

	// patternLockReleaseDelta is the rune-length divergence that releases
	// the repeated-partial refire lock.
	patternLockReleaseDelta = 3
)

// finalizeDetector runs the two end-of-utterance heuristics: a quiet timer
// since the last committed fragment and a repeated-partial pattern match.
// Either may fire; both feed the same serialized decision function in the
// accumulator, and both stand down while a dispatch is in flight.
type finalizeDetector struct {
	mu sync.Mutex

	quietWindow time.Duration
	timer       *time.Timer

	window []string
	// patternLock remembers the last text the pattern fired on so continued
	// silence does not refire on the same stale partial.
	patternLock string

	dispatching func() bool
	onTrigger   func(trigger triggers.Trigger)
}

func newFinalizeDetector(quietWindow time.Duration, dispatching func() bool, onTrigger func(trigger triggers.Trigger)) *finalizeDetector {
	if quietWindow <= 0 {
		quietWindow = DefaultQuietWindow
	}
	if dispatching == nil {
		dispatching = func() bool { return false }
	}
	if onTrigger == nil {
		onTrigger = func(triggers.Trigger) {}
	}

	return &finalizeDetector{
		quietWindow: quietWindow,
		dispatching: dispatching,
		onTrigger:   onTrigger,
	}
}

// HandlePartial feeds one partial transcript into the rolling window. A full
// window of character-identical, non-empty entries fires the
// repeated-partial trigger and arms the refire lock.
func (d *finalizeDetector) HandlePartial(text string) {
	if text == "" || d.dispatching() {
		return
	}

	d.mu.Lock()
	if d.patternLock != "" && runeLengthDelta(text, d.patternLock) > patternLockReleaseDelta {
		d.patternLock = ""
	}

	d.window = append(d.window, text)
	if len(d.window) > partialWindowSize {
		d.window = d.window[1:]
	}

	fire := len(d.window) == partialWindowSize && d.patternLock != text
	for _, entry := range d.window {
		if entry != text {
			fire = false
			break
		}
	}
	if fire {
		d.patternLock = text
		d.window = d.window[:0]
	}
	d.mu.Unlock()

	if fire {
		d.onTrigger(triggers.NewRepeatedPartialTrigger(text))
	}
}

// HandleCommitted resets the pattern state: a fresh committed transcript
// releases the refire lock and invalidates the stale-partial streak.
func (d *finalizeDetector) HandleCommitted() {
	d.mu.Lock()
	d.patternLock = ""
	d.window = d.window[:0]
	d.mu.Unlock()
}

// Rearm restarts the quiet timer, counting from now.
func (d *finalizeDetector) Rearm() {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.quietWindow, d.fireQuietWindow)
	d.mu.Unlock()
}

// Disarm stops any pending quiet timer.
func (d *finalizeDetector) Disarm() {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.mu.Unlock()
}

func (d *finalizeDetector) fireQuietWindow() {
	if d.dispatching() {
		return
	}
	d.onTrigger(triggers.NewQuietWindowTrigger())
}

func runeLengthDelta(a, b string) int {
	delta := len([]rune(a)) - len([]rune(b))
	if delta < 0 {
		return -delta
	}
	return delta
}

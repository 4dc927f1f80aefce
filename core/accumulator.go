package voicecore

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/questlog/voicecore/core/events"
	"github.com/questlog/voicecore/core/triggers"
	"go.opentelemetry.io/otel/codes"
)

// utteranceAccumulator is the race-safe state holder between the two
// finalize heuristics and the downstream dispatcher. It joins committed
// fragments into the pending utterance and guarantees at-most-once dispatch
// per distinct utterance.
//
// Dispatch is commit-before-await: every buffer and marker mutation happens
// under the lock before the asynchronous call goes out, so events arriving
// mid-dispatch observe fully updated state.
type utteranceAccumulator struct {
	mu sync.Mutex

	fragments    []string
	lastFragment string
	// processedMarker holds the most recently dispatched utterance text; a
	// finalize trigger on the same text is rejected instead of re-sent.
	processedMarker string
	dispatching     bool

	dispatcher Dispatcher
	emitEvent  eventEmitter

	rearmTimer  func()
	disarmTimer func()
}

func newUtteranceAccumulator(dispatcher Dispatcher) *utteranceAccumulator {
	if dispatcher == nil {
		dispatcher = DispatchFunc(func(context.Context, string) error { return nil })
	}

	return &utteranceAccumulator{
		dispatcher:  dispatcher,
		emitEvent:   noopEventEmitter,
		rearmTimer:  func() {},
		disarmTimer: func() {},
	}
}

func (a *utteranceAccumulator) setTimerHooks(rearm, disarm func()) {
	if rearm != nil {
		a.rearmTimer = rearm
	}
	if disarm != nil {
		a.disarmTimer = disarm
	}
}

func (a *utteranceAccumulator) setEventEmitter(emitEvent eventEmitter) {
	if emitEvent != nil {
		a.emitEvent = emitEvent
	} else {
		a.emitEvent = noopEventEmitter
	}
}

// Dispatching reports whether a dispatch is currently in flight. The
// detector consults this before firing either heuristic.
func (a *utteranceAccumulator) Dispatching() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.dispatching
}

// AppendFragment adds one committed fragment to the pending utterance.
// Blank fragments and exact repeats of the previous fragment are dropped.
// The quiet timer is rearmed only when no dispatch is in flight, so the
// countdown never races the in-flight call.
func (a *utteranceAccumulator) AppendFragment(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	a.mu.Lock()
	if text == a.lastFragment {
		a.mu.Unlock()
		return
	}
	a.fragments = append(a.fragments, text)
	a.lastFragment = text
	rearm := !a.dispatching
	a.mu.Unlock()

	a.emitEvent(events.NewUserUtteranceFragment(text))
	if rearm {
		a.rearmTimer()
	}
}

// HandleTrigger is the single serialized entry point for both finalize
// heuristics. Guards run in a fixed order: in-flight dispatch, blank
// candidate, already-dispatched candidate.
func (a *utteranceAccumulator) HandleTrigger(ctx context.Context, trigger triggers.Trigger) {
	a.mu.Lock()
	if a.dispatching {
		a.mu.Unlock()
		return
	}

	candidate := strings.Join(a.fragments, " ")
	if candidate == "" {
		// Nothing committed yet; a repeated-partial streak still carries
		// the text the service is stuck on, so that stands in.
		if repeated, ok := trigger.(triggers.RepeatedPartialTrigger); ok {
			candidate = strings.TrimSpace(repeated.Transcript())
		}
	}
	if candidate == "" {
		a.mu.Unlock()
		return
	}

	if candidate == a.processedMarker {
		// Already dispatched; drop the stale buffer too so the quiet timer
		// stops churning on text that will never be sent again.
		a.fragments = nil
		a.lastFragment = ""
		a.mu.Unlock()
		a.disarmTimer()
		return
	}

	a.dispatching = true
	a.fragments = nil
	a.lastFragment = ""
	a.processedMarker = candidate
	a.mu.Unlock()

	a.disarmTimer()

	id := uuid.NewString()
	a.emitEvent(events.NewUserUtteranceFinalized(id, candidate))

	go a.dispatch(ctx, id, candidate)
}

func (a *utteranceAccumulator) dispatch(ctx context.Context, id, utterance string) {
	ctx, span := tracer.Start(ctx, "dispatch utterance")
	defer span.End()

	err := a.dispatcher.Dispatch(ctx, utterance)

	a.mu.Lock()
	a.dispatching = false
	a.mu.Unlock()

	if err != nil {
		// The marker deliberately stays set: a failed dispatch is not
		// retried against a possibly stale or malformed utterance.
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		a.emitEvent(events.NewUtteranceDispatchFailed(id, utterance, err))
		return
	}

	a.emitEvent(events.NewUtteranceDispatched(id, utterance))
}

// Reset clears all utterance state at the end of a period.
func (a *utteranceAccumulator) Reset() {
	a.mu.Lock()
	a.fragments = nil
	a.lastFragment = ""
	a.processedMarker = ""
	a.mu.Unlock()

	a.disarmTimer()
}

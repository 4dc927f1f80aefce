// Package voicecore turns a live microphone into finalized utterances: it
// captures samples, encodes them into PCM frames, streams them to a realtime
// transcription session, decides when the speaker is done, and dispatches
// each finalized utterance downstream exactly once.
package voicecore

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/questlog/voicecore/core/audio"
	"github.com/questlog/voicecore/core/audio/miniaudio"
	"github.com/questlog/voicecore/core/audio/portaudio"
	"github.com/questlog/voicecore/core/events"
	"github.com/questlog/voicecore/core/speechtotext"
	"github.com/questlog/voicecore/core/speechtotext/scribe"
	"github.com/questlog/voicecore/core/triggers"
)

// ErrAlreadyRunning is returned by Start while a previous run is still live.
var ErrAlreadyRunning = errors.New("pipeline is already running")

type Pipeline struct {
	// speechToText is the STT facade used to handle optional client wiring.
	speechToText *speechToText
	// audioInput is the input facade used to normalize capture behavior.
	audioInput *audioInput

	encoder     *audio.FrameEncoder
	detector    *finalizeDetector
	accumulator *utteranceAccumulator
	dispatcher  Dispatcher

	quietWindow  time.Duration
	frameSamples int

	running     atomic.Bool
	baseContext context.Context
	cancelRun   context.CancelFunc
	emitEvent   eventEmitter

	statusMu   sync.Mutex
	status     speechtotext.Status
	errMessage string
}

func NewPipeline(opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		speechToText: newSpeechToText(nil),
		quietWindow:  DefaultQuietWindow,
		frameSamples: audio.DefaultFrameSamples,
		baseContext:  context.Background(),
		cancelRun:    func() {},
		emitEvent:    noopEventEmitter,
		status:       speechtotext.StatusIdle,
	}

	p.audioInput = newAudioInput(nil, func(samples []float32) {
		p.encoder.Write(samples)
	})

	for _, opt := range opts {
		opt(p)
	}

	p.encoder = audio.NewFrameEncoder(p.frameSamples, func(frame []byte) {
		p.emitEvent(events.NewUserAudioFrame(frame))
		if err := p.speechToText.SendAudio(frame); err != nil {
			logger.Warn("Failed to send audio frame", "error", err)
		}
	})

	p.accumulator = newUtteranceAccumulator(p.dispatcher)
	p.detector = newFinalizeDetector(p.quietWindow, p.accumulator.Dispatching,
		func(trigger triggers.Trigger) {
			p.accumulator.HandleTrigger(p.baseContext, trigger)
		},
	)
	p.accumulator.setTimerHooks(p.detector.Rearm, p.detector.Disarm)

	return p
}

// Status returns the mirrored transcription-session lifecycle state.
func (p *Pipeline) Status() speechtotext.Status {
	p.statusMu.Lock()
	defer p.statusMu.Unlock()
	return p.status
}

// ErrorMessage returns the most specific description of the last session
// failure, or an empty string when the session is healthy.
func (p *Pipeline) ErrorMessage() string {
	p.statusMu.Lock()
	defer p.statusMu.Unlock()
	return p.errMessage
}

func (p *Pipeline) setStatus(status speechtotext.Status, errMessage string) {
	p.statusMu.Lock()
	p.status = status
	p.errMessage = errMessage
	p.statusMu.Unlock()

	p.emitEvent(events.NewSessionStatusChanged(string(status), errMessage))
}

// Start opens the transcription session and begins streaming microphone
// audio into it. At most one run may be live at a time; Start while a
// previous run is still active returns ErrAlreadyRunning and leaves the
// active run untouched.
//
// When no speech-to-text client was configured the realtime scribe client is
// used. When no sample source was configured the portaudio backend is tried
// first, with the miniaudio backend as fallback; if neither device opens the
// session still starts and SendAudio can be driven manually.
func (p *Pipeline) Start(ctx context.Context, opts ...RunOption) error {
	if !p.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	runOptions := RunOptions{}
	for _, opt := range opts {
		opt(&runOptions)
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.baseContext = runCtx
	p.cancelRun = cancel
	p.emitEvent = newCallbackEventEmitter(runOptions)
	p.accumulator.setEventEmitter(p.emitEvent)

	if !p.speechToText.isConfigured() {
		p.speechToText.set(scribe.NewClient())
	}
	if !p.audioInput.IsConfigured() {
		p.audioInput.Set(p.defaultSampleSource())
	}

	encodingInfo := p.audioInput.EncodingInfo()
	if err := p.speechToText.Transcribe(ctx,
		speechtotext.WithSessionStartedCallback(func(sessionID string) {
			logger.Info("Transcription session started", "sessionID", sessionID)
		}),
		speechtotext.WithStatusChangedCallback(func(status speechtotext.Status, errMessage string) {
			p.setStatus(status, errMessage)
		}),
		speechtotext.WithPartialTranscriptionCallback(func(transcript string) {
			p.emitEvent(events.NewUserTranscriptPartial(transcript))
			p.detector.HandlePartial(transcript)
		}),
		speechtotext.WithTranscriptionCallback(func(transcript string) {
			p.detector.HandleCommitted()
			p.accumulator.AppendFragment(transcript)
		}),
		speechtotext.WithDisconnectedCallback(func(err error) {
			logger.Error("Transcription session disconnected", "error", err)
			p.teardown()
		}),
		speechtotext.WithEncodingInfo(encodingInfo),
	); err != nil {
		cancel()
		p.running.Store(false)
		return err
	}

	p.audioInput.Start(runCtx)

	go func() {
		<-runCtx.Done()
		p.Stop()
	}()

	return nil
}

// Stop ends the run intentionally: the session close that follows is not
// reported as a failure and the status returns to idle. Stop is idempotent.
func (p *Pipeline) Stop() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}

	p.cancelRun()
	p.detector.Disarm()

	if err := p.speechToText.Close(p.baseContext); err != nil {
		logger.Error("Failed to close speech-to-text client", "error", err)
	}

	p.accumulator.Reset()

	if err := p.audioInput.Close(); err != nil {
		logger.Error("Failed to close audio input", "error", err)
	}

	// Reset only after capture is down, so no capture block is still being
	// written into the buffered remainder.
	p.encoder.Reset()
}

// teardown releases capture and timer resources after an unrequested
// disconnect. Unlike Stop it keeps the configured sample source around for a
// later run and leaves the mirrored error status in place.
func (p *Pipeline) teardown() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}

	p.cancelRun()
	p.detector.Disarm()

	if err := p.audioInput.StopCapture(); err != nil {
		logger.Error("Failed to stop audio capture", "error", err)
	}

	p.encoder.Reset()
}

func (p *Pipeline) defaultSampleSource() SampleSource {
	if source, err := portaudio.NewClient(p.frameSamples); err == nil {
		return source
	} else {
		logger.Warn("Failed to open portaudio input, falling back to miniaudio", "error", err)
	}

	if source, err := miniaudio.NewClient(); err == nil {
		return source
	} else {
		logger.Warn("Failed to open miniaudio input", "error", err)
	}

	return nil
}

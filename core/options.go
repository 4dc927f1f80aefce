package voicecore

import (
	"context"
	"time"

	"github.com/questlog/voicecore/core/audio"
	"github.com/questlog/voicecore/core/speechtotext"
)

type PipelineOption func(*Pipeline)

// SpeechToText is the transcription session contract the pipeline drives.
type SpeechToText interface {
	Transcribe(ctx context.Context, opts ...speechtotext.TranscriptionOption) error
	SendAudio(frame []byte) error
}

func WithSpeechToTextClient(client SpeechToText) PipelineOption {
	return func(p *Pipeline) { p.speechToText.set(client) }
}

// SampleSource streams normalized float samples from a microphone.
type SampleSource interface {
	EncodingInfo() audio.EncodingInfo
	Stream(ctx context.Context, onSamples func(samples []float32)) error
	Close()
}

// SampleSourceFine is the optional capability for sources with explicit
// capture controls, detected by type assertion.
type SampleSourceFine interface {
	StartCapture(ctx context.Context, onSamples func(samples []float32)) error
	StopCapture() error
}

func WithSampleSource(source SampleSource) PipelineOption {
	return func(p *Pipeline) { p.audioInput.Set(source) }
}

// Dispatcher is the external dialogue collaborator receiving finalized
// utterances. A failed dispatch is not retried.
type Dispatcher interface {
	Dispatch(ctx context.Context, utterance string) error
}

type DispatchFunc func(ctx context.Context, utterance string) error

func (f DispatchFunc) Dispatch(ctx context.Context, utterance string) error {
	return f(ctx, utterance)
}

func WithDispatcher(dispatcher Dispatcher) PipelineOption {
	return func(p *Pipeline) {
		if dispatcher != nil {
			p.dispatcher = dispatcher
		}
	}
}

// WithQuietWindow overrides how long the pipeline waits after the last
// committed fragment before finalizing the utterance.
func WithQuietWindow(window time.Duration) PipelineOption {
	return func(p *Pipeline) {
		if window > 0 {
			p.quietWindow = window
		}
	}
}

// WithFrameSamples overrides the encoder's frame size in samples.
func WithFrameSamples(samples int) PipelineOption {
	return func(p *Pipeline) {
		if samples > 0 {
			p.frameSamples = samples
		}
	}
}

type RunOptions struct {
	onStatusChanged     func(status string, errMessage string)
	onPartialTranscript func(transcript string)
	onCommittedFragment func(fragment string)
	onUtterance         func(utterance string)
	onDispatchError     func(err error)
	onInputAudio        func(frame []byte)
}

type RunOption func(*RunOptions)

// WithStatusChangedCallback registers a callback for session lifecycle
// transitions, including the error message when one is available.
func WithStatusChangedCallback(callback func(status string, errMessage string)) RunOption {
	return func(o *RunOptions) {
		o.onStatusChanged = callback
	}
}

// WithPartialTranscriptCallback registers a callback for provisional
// recognition results.
func WithPartialTranscriptCallback(callback func(transcript string)) RunOption {
	return func(o *RunOptions) {
		o.onPartialTranscript = callback
	}
}

// WithCommittedFragmentCallback registers a callback for committed segments
// as they are appended to the pending utterance.
func WithCommittedFragmentCallback(callback func(fragment string)) RunOption {
	return func(o *RunOptions) {
		o.onCommittedFragment = callback
	}
}

// WithUtteranceCallback registers a callback for finalized utterances, fired
// once per distinct utterance when the finalize decision is made.
func WithUtteranceCallback(callback func(utterance string)) RunOption {
	return func(o *RunOptions) {
		o.onUtterance = callback
	}
}

// WithDispatchErrorCallback registers a callback for failed downstream
// dispatches. The session stays connected; the utterance is not retried.
func WithDispatchErrorCallback(callback func(err error)) RunOption {
	return func(o *RunOptions) {
		o.onDispatchError = callback
	}
}

// WithInputAudioCallback registers a callback for encoded PCM frames on
// their way out. The slice is passed through as-is (no defensive copy); the
// callback runs inline on the audio path and should not block.
func WithInputAudioCallback(callback func(frame []byte)) RunOption {
	return func(o *RunOptions) {
		o.onInputAudio = callback
	}
}

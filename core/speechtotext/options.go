package speechtotext

import "github.com/questlog/voicecore/core/audio"

type TranscriptionOptions struct {
	// SessionStartedCallback fires once the remote service confirms the
	// session; audio sent before this point is dropped by the client.
	SessionStartedCallback func(sessionID string)

	// PartialTranscriptionCallback receives provisional recognition results
	// that may still be revised by the service.
	PartialTranscriptionCallback func(transcript string)

	// TranscriptionCallback receives committed recognition segments, final
	// as far as the service is concerned.
	TranscriptionCallback func(transcript string)

	// DisconnectedCallback fires when the session ends for any reason that
	// was not requested through Close. The error carries the close
	// classification.
	DisconnectedCallback func(err error)

	// StatusChangedCallback mirrors every lifecycle transition, including
	// the intermediate credential/connect states inside Transcribe.
	StatusChangedCallback func(status Status, errMessage string)

	EncodingInfo audio.EncodingInfo
}

type TranscriptionOption func(*TranscriptionOptions)

func WithSessionStartedCallback(callback func(sessionID string)) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.SessionStartedCallback = callback
	}
}

func WithPartialTranscriptionCallback(callback func(transcript string)) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.PartialTranscriptionCallback = callback
	}
}

func WithTranscriptionCallback(callback func(transcript string)) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.TranscriptionCallback = callback
	}
}

func WithDisconnectedCallback(callback func(err error)) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.DisconnectedCallback = callback
	}
}

func WithStatusChangedCallback(callback func(status Status, errMessage string)) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.StatusChangedCallback = callback
	}
}

func WithEncodingInfo(encodingInfo audio.EncodingInfo) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.EncodingInfo = encodingInfo
	}
}

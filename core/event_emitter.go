package voicecore

import events "github.com/questlog/voicecore/core/events"

type eventEmitter func(events.Event)

func noopEventEmitter(events.Event) {}

func newCallbackEventEmitter(opts RunOptions) eventEmitter {
	return func(event events.Event) {
		switch typedEvent := event.(type) {
		case events.SessionStatusChanged:
			if opts.onStatusChanged != nil {
				opts.onStatusChanged(typedEvent.Status, typedEvent.ErrorMessage)
			}
		case events.UserAudioFrame:
			if opts.onInputAudio != nil {
				opts.onInputAudio(typedEvent.Audio)
			}
		case events.UserTranscriptPartial:
			if opts.onPartialTranscript != nil {
				opts.onPartialTranscript(typedEvent.Transcript)
			}
		case events.UserUtteranceFragment:
			if opts.onCommittedFragment != nil {
				opts.onCommittedFragment(typedEvent.Fragment)
			}
		case events.UserUtteranceFinalized:
			if opts.onUtterance != nil {
				opts.onUtterance(typedEvent.Utterance)
			}
		case events.UtteranceDispatchFailed:
			if opts.onDispatchError != nil {
				opts.onDispatchError(typedEvent.Err)
			}
		}
	}
}

package events

const (
	KindUserUtteranceFinalized  Kind = "user.utterance_finalized"
	KindUtteranceDispatched     Kind = "utterance.dispatched"
	KindUtteranceDispatchFailed Kind = "utterance.dispatch_failed"
)

// UserUtteranceFinalized marks the pipeline's own decision that the speaker
// finished an utterance. ID correlates the finalize decision with its
// dispatch outcome.
type UserUtteranceFinalized struct {
	Base
	ID        string
	Utterance string
}

func (e UserUtteranceFinalized) String() string { return e.Utterance }

func NewUserUtteranceFinalized(id, utterance string) UserUtteranceFinalized {
	return UserUtteranceFinalized{Base: NewBase(KindUserUtteranceFinalized), ID: id, Utterance: utterance}
}

// UtteranceDispatched confirms the downstream collaborator accepted the
// utterance.
type UtteranceDispatched struct {
	Base
	ID        string
	Utterance string
}

func NewUtteranceDispatched(id, utterance string) UtteranceDispatched {
	return UtteranceDispatched{Base: NewBase(KindUtteranceDispatched), ID: id, Utterance: utterance}
}

// UtteranceDispatchFailed reports a failed downstream call. The utterance is
// not retried; the error stays local to this one dispatch.
type UtteranceDispatchFailed struct {
	Base
	ID        string
	Utterance string
	Err       error
}

func NewUtteranceDispatchFailed(id, utterance string, err error) UtteranceDispatchFailed {
	return UtteranceDispatchFailed{Base: NewBase(KindUtteranceDispatchFailed), ID: id, Utterance: utterance, Err: err}
}

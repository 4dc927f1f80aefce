package events

const (
	KindUserTranscriptPartial Kind = "user.transcript_partial"
	KindUserUtteranceFragment Kind = "user.utterance_fragment"
)

// UserTranscriptPartial is a provisional recognition result that the service
// may still revise.
type UserTranscriptPartial struct {
	Base
	Transcript string
}

func (e UserTranscriptPartial) String() string { return e.Transcript + "..." }

func NewUserTranscriptPartial(transcript string) UserTranscriptPartial {
	return UserTranscriptPartial{Base: NewBase(KindUserTranscriptPartial), Transcript: transcript}
}

// UserUtteranceFragment is a committed recognition segment appended to the
// pending utterance.
type UserUtteranceFragment struct {
	Base
	Fragment string
}

func (e UserUtteranceFragment) String() string { return e.Fragment }

func NewUserUtteranceFragment(fragment string) UserUtteranceFragment {
	return UserUtteranceFragment{Base: NewBase(KindUserUtteranceFragment), Fragment: fragment}
}

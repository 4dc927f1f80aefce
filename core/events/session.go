package events

const (
	KindSessionStatusChanged Kind = "session.status_changed"
	KindUserAudioFrame       Kind = "user.audio_frame"
)

// SessionStatusChanged reports a transcription-session lifecycle transition.
// ErrorMessage carries the most specific classification when Status is the
// error state, and is empty otherwise.
type SessionStatusChanged struct {
	Base
	Status       string
	ErrorMessage string
}

func NewSessionStatusChanged(status, errorMessage string) SessionStatusChanged {
	return SessionStatusChanged{
		Base:         NewBase(KindSessionStatusChanged),
		Status:       status,
		ErrorMessage: errorMessage,
	}
}

// UserAudioFrame carries one encoded PCM frame on its way to the
// transcription service. The slice is passed through without a copy.
type UserAudioFrame struct {
	Base
	Audio []byte
}

func NewUserAudioFrame(audio []byte) UserAudioFrame {
	return UserAudioFrame{Base: NewBase(KindUserAudioFrame), Audio: audio}
}

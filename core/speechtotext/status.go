package speechtotext

// Status is the lifecycle of one transcription session. Exactly one status
// is active at a time; it is surfaced to callers as a read-only value.
type Status string

const (
	StatusIdle         Status = "idle"
	StatusGettingToken Status = "getting-token"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusError        Status = "error"
)

// Active reports whether the session holds, or is in the process of
// acquiring, the microphone and socket resources.
func (s Status) Active() bool {
	switch s {
	case StatusGettingToken, StatusConnecting, StatusConnected:
		return true
	}
	return false
}

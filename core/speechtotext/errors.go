package speechtotext

import (
	"errors"
	"fmt"
)

// ErrSessionActive is returned when Transcribe is called while a previous
// session still owns the socket and microphone. Callers must Close first;
// an active session is never silently replaced.
var ErrSessionActive = errors.New("transcription session already active")

// CredentialError reports a failed single-use credential fetch. RateLimited
// distinguishes HTTP 429 so callers can surface a specific message.
type CredentialError struct {
	StatusCode  int
	Body        string
	RateLimited bool
	Err         error
}

func (e *CredentialError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to fetch session credential: %v", e.Err)
	}
	if e.RateLimited {
		return "credential endpoint rate limited (HTTP 429)"
	}
	return fmt.Sprintf("credential endpoint returned HTTP %d: %s", e.StatusCode, e.Body)
}

func (e *CredentialError) Unwrap() error { return e.Err }

// DisconnectReason classifies an unintentional session closure.
type DisconnectReason string

const (
	// DisconnectRejected covers closes arriving moments after the socket
	// opened, which in practice means the credential was not accepted.
	DisconnectRejected DisconnectReason = "rejected"
	// DisconnectExpiredCredential maps close code 1008 (policy violation).
	DisconnectExpiredCredential DisconnectReason = "expired-credential"
	// DisconnectDropped maps close code 1005, an unexpected mid-session drop.
	DisconnectDropped DisconnectReason = "dropped"
	// DisconnectServerClosed is a clean close the client never requested.
	DisconnectServerClosed DisconnectReason = "server-closed"
	// DisconnectAbnormal covers every other non-1000 close code.
	DisconnectAbnormal DisconnectReason = "abnormal"
)

// ConnectionError reports an unintentional session closure with the most
// specific classification available.
type ConnectionError struct {
	Reason  DisconnectReason
	Code    int
	Message string
}

func (e *ConnectionError) Error() string { return e.Message }

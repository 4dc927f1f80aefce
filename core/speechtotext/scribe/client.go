// Package scribe implements the realtime transcription session client: it
// trades a single-use credential for a persistent websocket, streams encoded
// PCM frames up, and turns the service's incremental results into callbacks.
package scribe

import (
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/questlog/voicecore/core/speechtotext"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultSocketURL = "wss://api.scribe.dev/v1/speech-to-text/realtime"
	defaultModelID   = "scribe_v1_realtime"

	// Closes arriving inside this window after the socket opened are treated
	// as the credential being rejected rather than a mid-session failure.
	rejectionWindow = 500 * time.Millisecond
)

type TranscriptionClient struct {
	httpClient    *http.Client
	tokenEndpoint string
	socketURL     string
	modelID       string

	conn   *websocket.Conn
	connMu sync.Mutex

	// sessionReady gates outbound audio until the service confirms the
	// session. Frames sent before that are dropped, never buffered.
	sessionReady atomic.Bool
	// configSent makes the per-session set_config message idempotent.
	configSent atomic.Bool
	// intentionalClose marks a Close requested by us, so the socket's close
	// event is not misread as a failure.
	intentionalClose atomic.Bool

	openedAt   time.Time
	sampleRate int

	statusMu   sync.Mutex
	status     speechtotext.Status
	errMessage string
	onStatus   func(status speechtotext.Status, errMessage string)
	// lastServerError remembers the most recent error-shaped message so an
	// immediately following close can carry the specific cause.
	lastServerError string
}

type ClientOption func(*TranscriptionClient)

func WithTokenEndpoint(endpoint string) ClientOption {
	return func(c *TranscriptionClient) { c.tokenEndpoint = endpoint }
}

func WithSocketURL(socketURL string) ClientOption {
	return func(c *TranscriptionClient) { c.socketURL = socketURL }
}

func WithModelID(modelID string) ClientOption {
	return func(c *TranscriptionClient) { c.modelID = modelID }
}

func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *TranscriptionClient) { c.httpClient = client }
}

func NewClient(opts ...ClientOption) *TranscriptionClient {
	client := &TranscriptionClient{
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   10 * time.Second,
		},
		socketURL: defaultSocketURL,
		modelID:   defaultModelID,
		status:    speechtotext.StatusIdle,
	}
	if endpoint, ok := os.LookupEnv("SCRIBE_TOKEN_ENDPOINT"); ok {
		client.tokenEndpoint = endpoint
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// Status returns the current session lifecycle state.
func (c *TranscriptionClient) Status() speechtotext.Status {
	c.statusMu.Lock()
	defer c.statusMu.Unlock()
	return c.status
}

// ErrorMessage returns the most specific description of the last failure, or
// an empty string when the session is healthy.
func (c *TranscriptionClient) ErrorMessage() string {
	c.statusMu.Lock()
	defer c.statusMu.Unlock()
	return c.errMessage
}

func (c *TranscriptionClient) setStatus(status speechtotext.Status, errMessage string) {
	c.statusMu.Lock()
	c.status = status
	c.errMessage = errMessage
	onStatus := c.onStatus
	c.statusMu.Unlock()

	if onStatus != nil {
		onStatus(status, errMessage)
	}
}

// Close tears the session down intentionally: the socket close event that
// follows is ignored and the state returns to idle regardless of it.
func (c *TranscriptionClient) Close() error {
	c.intentionalClose.Store(true)
	c.sessionReady.Store(false)

	c.connMu.Lock()
	if c.conn != nil {
		_ = c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()

	c.setStatus(speechtotext.StatusIdle, "")
	return nil
}

package deepgram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
	commoninterfaces "github.com/deepgram/deepgram-go-sdk/pkg/client/common/v1/interfaces"
	"github.com/gorilla/websocket"
	"github.com/questlog/voicecore/core/audio"
	"github.com/questlog/voicecore/core/speechtotext"
)

// Transcribe opens one listen session against Deepgram. The API key is read
// from the environment; there is no separate credential exchange, so the
// session goes straight from idle to connecting.
func (c *TranscriptionClient) Transcribe(ctx context.Context, opts ...speechtotext.TranscriptionOption) error {
	options := &speechtotext.TranscriptionOptions{}
	for _, opt := range opts {
		opt(options)
	}
	if options.EncodingInfo.IsZero() {
		options.EncodingInfo = audio.GetDefaultEncodingInfo()
	}

	// The active check and the transition out of idle/error happen under one
	// lock acquisition, so two concurrent calls cannot both pass the guard.
	c.statusMu.Lock()
	if c.status.Active() {
		c.statusMu.Unlock()
		return speechtotext.ErrSessionActive
	}
	c.onStatus = options.StatusChangedCallback
	c.status = speechtotext.StatusConnecting
	c.errMessage = ""
	onStatus := c.onStatus
	c.statusMu.Unlock()
	if onStatus != nil {
		onStatus(speechtotext.StatusConnecting, "")
	}

	conn, err := connectWebsocket(options.EncodingInfo)
	if err != nil {
		c.setStatus(speechtotext.StatusError, err.Error())
		return err
	}

	c.connMu.Lock()
	c.conn = conn
	c.encoding = options.EncodingInfo
	c.connMu.Unlock()
	c.intentionalClose.Store(false)
	c.setStatus(speechtotext.StatusConnected, "")

	// Deepgram accepts audio as soon as the socket opens; there is no
	// separate readiness handshake to wait for.
	if options.SessionStartedCallback != nil {
		options.SessionStartedCallback("")
	}

	go c.readAndProcessMessages(ctx, conn, *options)

	return nil
}

func connectWebsocket(encoding audio.EncodingInfo) (*websocket.Conn, error) {
	apiKey, ok := os.LookupEnv("DEEPGRAM_API_KEY")
	if !ok {
		return nil, fmt.Errorf("deepgram api key not found")
	}

	listenURL, _ := url.Parse("wss://api.deepgram.com/v1/listen")
	queryParams := listenURL.Query()
	queryParams.Set("encoding", encoding.Format.Name())
	queryParams.Set("sample_rate", strconv.Itoa(encoding.SampleRate))
	queryParams.Set("channels", "1")
	queryParams.Set("model", "nova-3")
	queryParams.Set("language", "en-US")
	queryParams.Set("smart_format", "true")
	queryParams.Set("interim_results", "true")
	queryParams.Set("endpointing", "300")

	listenURL.RawQuery = queryParams.Encode()
	conn, _, err := websocket.DefaultDialer.Dial(listenURL.String(),
		http.Header{"Authorization": {"Token " + apiKey}})
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to deepgram: %w", err)
	}

	return conn, nil
}

// SendAudio streams one PCM frame as a binary websocket message. Deepgram
// takes raw audio, so the frame goes out without an envelope.
func (c *TranscriptionClient) SendAudio(frame []byte) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn == nil {
		return nil
	}

	c.lastAudioTs = time.Now()
	if err := c.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		return fmt.Errorf("failed to write to deepgram client: %w", err)
	}
	return nil
}

// silenceFrame builds 100ms of silence in the session's wire encoding.
func silenceFrame(encoding audio.EncodingInfo) []byte {
	frame := make([]byte, encoding.SampleRate/10*encoding.Format.ByteSize())
	if silence := encoding.SilenceValue(); silence != 0 {
		for i := range frame {
			frame[i] = silence
		}
	}
	return frame
}

func (c *TranscriptionClient) sendSilence() {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn == nil {
		return
	}
	if err := c.conn.WriteMessage(websocket.BinaryMessage, silenceFrame(c.encoding)); err != nil {
		logger.Warn("Failed to send silence keepalive", "error", err)
	}
}

func (c *TranscriptionClient) readAndProcessMessages(ctx context.Context, conn *websocket.Conn, options speechtotext.TranscriptionOptions) {
	keepAliveCtx, keepAliveCancel := context.WithCancel(ctx)
	defer keepAliveCancel()
	go c.keepAliveOnIdle(keepAliveCtx)

	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			c.handleDisconnect(err, options)
			return
		}
		if msgType != websocket.BinaryMessage {
			c.processMessage(msg, options)
		}
	}
}

func (c *TranscriptionClient) processMessage(msg []byte, options speechtotext.TranscriptionOptions) {
	var parsedMsg struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(msg, &parsedMsg); err != nil {
		logger.Warn("Failed to unmarshal deepgram message", "error", err)
		return
	}

	switch api.TypeResponse(parsedMsg.Type) {
	case api.TypeMessageResponse:
		var msgResp api.MessageResponse
		if err := json.Unmarshal(msg, &msgResp); err != nil {
			logger.Warn("Failed to unmarshal deepgram transcript", "error", err)
			return
		}
		if len(msgResp.Channel.Alternatives) == 0 {
			return
		}

		transcript := strings.TrimSpace(msgResp.Channel.Alternatives[0].Transcript)
		if len(transcript) == 0 {
			return
		}

		if msgResp.IsFinal {
			if options.TranscriptionCallback != nil {
				options.TranscriptionCallback(transcript)
			}
		} else if options.PartialTranscriptionCallback != nil {
			options.PartialTranscriptionCallback(transcript)
		}

	case api.TypeResponse(commoninterfaces.TypeErrorResponse):
		logger.Warn("Deepgram reported an error", "message", string(msg))

	default:
		logger.Debug("Dropping unrecognized deepgram message", "type", parsedMsg.Type)
	}
}

func (c *TranscriptionClient) handleDisconnect(err error, options speechtotext.TranscriptionOptions) {
	c.connMu.Lock()
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()

	if c.intentionalClose.Load() {
		c.setStatus(speechtotext.StatusIdle, "")
		return
	}

	connErr := &speechtotext.ConnectionError{
		Reason:  speechtotext.DisconnectAbnormal,
		Message: fmt.Sprintf("deepgram session closed unexpectedly: %v", err),
	}
	if closeErr, ok := err.(*websocket.CloseError); ok {
		connErr.Code = closeErr.Code
		if closeErr.Code == websocket.CloseNormalClosure {
			connErr.Reason = speechtotext.DisconnectServerClosed
			connErr.Message = "deepgram closed the session unexpectedly"
		}
	}

	c.setStatus(speechtotext.StatusError, connErr.Message)
	if options.DisconnectedCallback != nil {
		options.DisconnectedCallback(connErr)
	}
}

// keepAliveOnIdle keeps the socket open across quiet stretches: once no
// audio has gone out for a few seconds, periodic silence frames stand in for
// it until audio resumes, so the service's endpointing sees an unbroken
// stream.
func (c *TranscriptionClient) keepAliveOnIdle(ctx context.Context) {
	const idleThreshold = 3 * time.Second
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	var lastKeepAlive time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.connMu.Lock()
			idle := time.Since(c.lastAudioTs) > idleThreshold
			c.connMu.Unlock()

			if idle && time.Since(lastKeepAlive) >= 5*time.Second {
				lastKeepAlive = time.Now()
				c.sendSilence()
			}
		}
	}
}

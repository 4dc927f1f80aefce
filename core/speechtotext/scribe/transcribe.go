package scribe

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/questlog/voicecore/core/audio"
	"github.com/questlog/voicecore/core/speechtotext"
	"go.opentelemetry.io/otel/codes"
)

// Transcribe opens one transcription session: it fetches a single-use
// credential, dials the streaming socket, and starts the read loop. Valid
// only from idle or error; an active session must be closed first.
func (c *TranscriptionClient) Transcribe(ctx context.Context, opts ...speechtotext.TranscriptionOption) error {
	options := &speechtotext.TranscriptionOptions{}
	for _, opt := range opts {
		opt(options)
	}
	if options.EncodingInfo.IsZero() {
		options.EncodingInfo = audio.GetDefaultEncodingInfo()
	}

	// The active check and the transition out of idle/error happen under one
	// lock acquisition, so two concurrent calls cannot both pass the guard
	// and race for the socket.
	c.statusMu.Lock()
	if c.status.Active() {
		c.statusMu.Unlock()
		return speechtotext.ErrSessionActive
	}
	c.onStatus = options.StatusChangedCallback
	c.status = speechtotext.StatusGettingToken
	c.errMessage = ""
	onStatus := c.onStatus
	c.statusMu.Unlock()
	if onStatus != nil {
		onStatus(speechtotext.StatusGettingToken, "")
	}

	credential, err := c.fetchCredential(ctx)
	if err != nil {
		c.setStatus(speechtotext.StatusError, err.Error())
		return err
	}

	c.setStatus(speechtotext.StatusConnecting, "")

	socketURL, err := c.sessionURL(credential, options.EncodingInfo)
	if err != nil {
		c.setStatus(speechtotext.StatusError, err.Error())
		return err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, socketURL, nil)
	if err != nil {
		wrapped := fmt.Errorf("failed to open transcription socket: %w", err)
		c.setStatus(speechtotext.StatusError, wrapped.Error())
		return wrapped
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()

	c.openedAt = time.Now()
	c.sampleRate = options.EncodingInfo.SampleRate
	c.sessionReady.Store(false)
	c.configSent.Store(false)
	c.intentionalClose.Store(false)
	c.statusMu.Lock()
	c.lastServerError = ""
	c.statusMu.Unlock()
	c.setStatus(speechtotext.StatusConnected, "")

	go c.readAndProcessMessages(conn, *options)

	return nil
}

func (c *TranscriptionClient) fetchCredential(ctx context.Context) (credentialResponse, error) {
	ctx, span := tracer.Start(ctx, "fetch session credential")
	defer span.End()

	if c.tokenEndpoint == "" {
		err := &speechtotext.CredentialError{Err: errors.New("no token endpoint configured")}
		span.SetStatus(codes.Error, err.Error())
		return credentialResponse{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.tokenEndpoint, nil)
	if err != nil {
		return credentialResponse{}, &speechtotext.CredentialError{Err: err}
	}
	if apiKey, ok := os.LookupEnv("SCRIBE_API_KEY"); ok {
		req.Header.Set("xi-api-key", apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		credErr := &speechtotext.CredentialError{Err: err}
		span.SetStatus(codes.Error, credErr.Error())
		return credentialResponse{}, credErr
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode == http.StatusTooManyRequests {
		credErr := &speechtotext.CredentialError{StatusCode: resp.StatusCode, RateLimited: true}
		span.SetStatus(codes.Error, credErr.Error())
		return credentialResponse{}, credErr
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		credErr := &speechtotext.CredentialError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
		span.SetStatus(codes.Error, credErr.Error())
		return credentialResponse{}, credErr
	}

	var credential credentialResponse
	if err := json.Unmarshal(body, &credential); err != nil {
		return credentialResponse{}, &speechtotext.CredentialError{Err: fmt.Errorf("malformed credential response: %w", err)}
	}
	if credential.token() == "" && credential.SignedURL == "" {
		return credentialResponse{}, &speechtotext.CredentialError{Err: errors.New("credential response carried neither token nor signed URL")}
	}

	return credential, nil
}

func (c *TranscriptionClient) sessionURL(credential credentialResponse, encoding audio.EncodingInfo) (string, error) {
	// A pre-signed URL already embeds the credential and session parameters.
	if credential.SignedURL != "" {
		return credential.SignedURL, nil
	}

	sessionURL, err := url.Parse(c.socketURL)
	if err != nil {
		return "", fmt.Errorf("invalid socket URL: %w", err)
	}

	queryParams := sessionURL.Query()
	queryParams.Set("token", credential.token())
	queryParams.Set("model_id", c.modelID)
	queryParams.Set("audio_format", fmt.Sprintf("pcm_%d", encoding.SampleRate))
	sessionURL.RawQuery = queryParams.Encode()

	return sessionURL.String(), nil
}

// SendAudio streams one encoded PCM frame. Frames are dropped without error
// until the service has confirmed the session.
func (c *TranscriptionClient) SendAudio(frame []byte) error {
	if !c.sessionReady.Load() {
		return nil
	}

	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn == nil {
		return nil
	}

	if err := c.conn.WriteJSON(audioChunkMessage{
		MessageType: "input_audio_chunk",
		AudioBase64: base64.StdEncoding.EncodeToString(frame),
		SampleRate:  c.sampleRate,
	}); err != nil {
		return fmt.Errorf("failed to write audio frame: %w", err)
	}
	return nil
}

func (c *TranscriptionClient) sendConfig() {
	if !c.configSent.CompareAndSwap(false, true) {
		return
	}

	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn == nil {
		return
	}
	if err := c.conn.WriteJSON(setConfigMessage{
		MessageType: "set_config",
		Config: sessionConfig{
			VADSilenceThresholdSecs: 0.5,
			CommitStrategy:          "vad",
		},
	}); err != nil {
		logger.Warn("Failed to send session config", "error", err)
	}
}

func (c *TranscriptionClient) readAndProcessMessages(conn *websocket.Conn, options speechtotext.TranscriptionOptions) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			c.handleDisconnect(err, options)
			return
		}
		c.processMessage(msg, options)
	}
}

func (c *TranscriptionClient) processMessage(msg []byte, options speechtotext.TranscriptionOptions) {
	var envelope inboundEnvelope
	if err := json.Unmarshal(msg, &envelope); err != nil {
		logger.Warn("Failed to unmarshal transcription message", "error", err)
		return
	}

	kind := envelope.kind()
	switch kind {
	case "session_started":
		var started sessionStartedMessage
		if err := json.Unmarshal(msg, &started); err != nil {
			logger.Warn("Failed to unmarshal session_started message", "error", err)
			return
		}
		c.sessionReady.Store(true)
		c.sendConfig()
		if options.SessionStartedCallback != nil {
			options.SessionStartedCallback(started.SessionID)
		}

	case "partial_transcript", "partial_transcript_with_timestamps":
		var transcript transcriptMessage
		if err := json.Unmarshal(msg, &transcript); err != nil {
			logger.Warn("Failed to unmarshal partial transcript", "error", err)
			return
		}
		if options.PartialTranscriptionCallback != nil {
			options.PartialTranscriptionCallback(transcript.Text)
		}

	case "committed_transcript", "committed_transcript_with_timestamps":
		var transcript transcriptMessage
		if err := json.Unmarshal(msg, &transcript); err != nil {
			logger.Warn("Failed to unmarshal committed transcript", "error", err)
			return
		}
		if options.TranscriptionCallback != nil {
			options.TranscriptionCallback(transcript.Text)
		}

	case "config_updated", "config_set":
		logger.Debug("Session config acknowledged")

	default:
		if kind == "error" || strings.HasSuffix(kind, "Error") {
			var serverErr errorMessage
			if err := json.Unmarshal(msg, &serverErr); err != nil {
				logger.Warn("Failed to unmarshal service error message", "error", err)
				return
			}
			logger.Warn("Transcription service reported an error", "kind", kind, "message", serverErr.text())
			c.statusMu.Lock()
			c.lastServerError = serverErr.text()
			c.statusMu.Unlock()
			return
		}

		logger.Debug("Dropping unrecognized transcription message", "kind", kind)
	}
}

func (c *TranscriptionClient) handleDisconnect(err error, options speechtotext.TranscriptionOptions) {
	c.sessionReady.Store(false)

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

	connErr := c.classifyDisconnect(err, time.Since(c.openedAt))
	c.setStatus(speechtotext.StatusError, connErr.Message)
	logger.Warn("Transcription session closed unexpectedly", "reason", string(connErr.Reason), "code", connErr.Code)

	if options.DisconnectedCallback != nil {
		options.DisconnectedCallback(connErr)
	}
}

func (c *TranscriptionClient) classifyDisconnect(err error, sinceOpen time.Duration) *speechtotext.ConnectionError {
	c.statusMu.Lock()
	serverError := c.lastServerError
	c.statusMu.Unlock()

	detail := ""
	if serverError != "" {
		detail = ": " + serverError
	}

	var closeErr *websocket.CloseError
	if !errors.As(err, &closeErr) {
		return &speechtotext.ConnectionError{
			Reason:  speechtotext.DisconnectAbnormal,
			Message: fmt.Sprintf("transcription connection lost: %v", err),
		}
	}

	switch {
	case sinceOpen < rejectionWindow:
		return &speechtotext.ConnectionError{
			Reason:  speechtotext.DisconnectRejected,
			Code:    closeErr.Code,
			Message: "transcription connection failed: token was invalid or rejected" + detail,
		}
	case closeErr.Code == websocket.ClosePolicyViolation:
		return &speechtotext.ConnectionError{
			Reason:  speechtotext.DisconnectExpiredCredential,
			Code:    closeErr.Code,
			Message: "transcription session rejected: credential expired or invalid" + detail,
		}
	case closeErr.Code == websocket.CloseNoStatusReceived:
		return &speechtotext.ConnectionError{
			Reason:  speechtotext.DisconnectDropped,
			Code:    closeErr.Code,
			Message: "transcription session dropped unexpectedly mid-stream" + detail,
		}
	case closeErr.Code == websocket.CloseNormalClosure:
		// A clean close we never asked for still means the service hung up
		// on a live session; it is surfaced, not treated as benign idling.
		return &speechtotext.ConnectionError{
			Reason:  speechtotext.DisconnectServerClosed,
			Code:    closeErr.Code,
			Message: "transcription service closed the session unexpectedly" + detail,
		}
	default:
		return &speechtotext.ConnectionError{
			Reason:  speechtotext.DisconnectAbnormal,
			Code:    closeErr.Code,
			Message: fmt.Sprintf("transcription session closed unexpectedly (code %d)%s", closeErr.Code, detail),
		}
	}
}

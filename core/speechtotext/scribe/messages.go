package scribe

// Wire shapes for the realtime transcription protocol. Inbound messages are
// keyed by message_type, with type as a fallback discriminator.

type audioChunkMessage struct {
	MessageType string `json:"message_type"`
	AudioBase64 string `json:"audio_base_64"`
	SampleRate  int    `json:"sample_rate"`
}

type setConfigMessage struct {
	MessageType string        `json:"message_type"`
	Config      sessionConfig `json:"config"`
}

type sessionConfig struct {
	VADSilenceThresholdSecs float64 `json:"vad_silence_threshold_secs"`
	CommitStrategy          string  `json:"commit_strategy"`
}

type inboundEnvelope struct {
	MessageType string `json:"message_type"`
	Type        string `json:"type"`
}

func (e inboundEnvelope) kind() string {
	if e.MessageType != "" {
		return e.MessageType
	}
	return e.Type
}

type sessionStartedMessage struct {
	SessionID string `json:"session_id"`
}

type transcriptMessage struct {
	Text string `json:"text"`
}

type errorMessage struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (e errorMessage) text() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Error
}

type credentialResponse struct {
	Token       string `json:"token"`
	SignedURL   string `json:"signed_url"`
	AccessToken string `json:"access_token"`
}

func (r credentialResponse) token() string {
	if r.Token != "" {
		return r.Token
	}
	return r.AccessToken
}

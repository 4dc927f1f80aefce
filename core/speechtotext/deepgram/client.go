// Package deepgram provides an alternative transcription backend speaking
// the Deepgram listen protocol. It implements the same contract as the
// scribe client so the pipeline stays backend-independent: interim results
// map to partial transcripts and is_final results to committed ones.
package deepgram

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/questlog/voicecore/core/audio"
	"github.com/questlog/voicecore/core/speechtotext"
)

type TranscriptionClient struct {
	lastAudioTs time.Time

	conn     *websocket.Conn
	encoding audio.EncodingInfo
	connMu   sync.Mutex

	intentionalClose atomic.Bool

	statusMu   sync.Mutex
	status     speechtotext.Status
	errMessage string
	onStatus   func(status speechtotext.Status, errMessage string)
}

func NewClient() *TranscriptionClient {
	return &TranscriptionClient{status: speechtotext.StatusIdle}
}

func (c *TranscriptionClient) Status() speechtotext.Status {
	c.statusMu.Lock()
	defer c.statusMu.Unlock()
	return c.status
}

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

func (c *TranscriptionClient) Close() error {
	c.intentionalClose.Store(true)

	c.connMu.Lock()
	if c.conn != nil {
		_ = c.conn.WriteJSON(struct {
			Type string `json:"type"`
		}{Type: "CloseStream"})
		_ = c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()

	c.setStatus(speechtotext.StatusIdle, "")
	return nil
}

package deepgram

import (
	"errors"
	"fmt"
	"testing"

	commoninterfaces "github.com/deepgram/deepgram-go-sdk/pkg/client/common/v1/interfaces"
	"github.com/questlog/voicecore/core/audio"
	"github.com/questlog/voicecore/core/speechtotext"
)

func TestProcessMessageMapsInterimToPartialAndFinalToCommitted(t *testing.T) {
	client := NewClient()

	partials := []string{}
	committed := []string{}
	options := speechtotext.TranscriptionOptions{
		PartialTranscriptionCallback: func(text string) { partials = append(partials, text) },
		TranscriptionCallback:        func(text string) { committed = append(committed, text) },
	}

	client.processMessage([]byte(`{"type":"Results","is_final":false,"channel":{"alternatives":[{"transcript":"going to"}]}}`), options)
	client.processMessage([]byte(`{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":" going to the market "}]}}`), options)
	client.processMessage([]byte(`{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"   "}]}}`), options)
	client.processMessage([]byte(`{"type":"Metadata"}`), options)
	client.processMessage([]byte(`not json`), options)

	if len(partials) != 1 || partials[0] != "going to" {
		t.Fatalf("expected one partial from the interim result, got %v", partials)
	}
	if len(committed) != 1 || committed[0] != "going to the market" {
		t.Fatalf("expected one trimmed committed transcript, got %v", committed)
	}
}

func TestProcessMessageServiceErrorsDoNotReachTranscriptCallbacks(t *testing.T) {
	client := NewClient()

	calls := 0
	options := speechtotext.TranscriptionOptions{
		PartialTranscriptionCallback: func(string) { calls++ },
		TranscriptionCallback:        func(string) { calls++ },
	}

	payload := fmt.Sprintf(`{"type":%q,"description":"quota exceeded"}`, string(commoninterfaces.TypeErrorResponse))
	client.processMessage([]byte(payload), options)

	if calls != 0 {
		t.Fatalf("expected no transcript callbacks for an error message, got %d", calls)
	}
}

func TestSilenceFrameMatchesEncoding(t *testing.T) {
	frame := silenceFrame(audio.GetDefaultEncodingInfo())
	if len(frame) != 3200 {
		t.Fatalf("expected 100ms of linear16 at 16kHz to be 3200 bytes, got %d", len(frame))
	}
	for i, b := range frame {
		if b != 0 {
			t.Fatalf("expected linear16 silence to be zero, got %#x at %d", b, i)
		}
	}

	mulaw := silenceFrame(audio.EncodingInfo{SampleRate: 8000, Format: audio.EncodingMulaw})
	if len(mulaw) != 800 {
		t.Fatalf("expected 100ms of mulaw at 8kHz to be 800 bytes, got %d", len(mulaw))
	}
	for i, b := range mulaw {
		if b != 0xFF {
			t.Fatalf("expected mulaw silence to be 0xFF, got %#x at %d", b, i)
		}
	}
}

func TestTranscribeRejectedWhileSessionActive(t *testing.T) {
	client := NewClient()
	client.setStatus(speechtotext.StatusConnected, "")

	err := client.Transcribe(t.Context())
	if !errors.Is(err, speechtotext.ErrSessionActive) {
		t.Fatalf("expected ErrSessionActive, got %v", err)
	}
}

func TestHandleDisconnectAfterCloseStaysIdle(t *testing.T) {
	client := NewClient()
	client.intentionalClose.Store(true)

	disconnects := []error{}
	client.handleDisconnect(errors.New("use of closed network connection"), speechtotext.TranscriptionOptions{
		DisconnectedCallback: func(err error) { disconnects = append(disconnects, err) },
	})

	if got := client.Status(); got != speechtotext.StatusIdle {
		t.Fatalf("expected idle after intentional close, got %q", got)
	}
	if len(disconnects) != 0 {
		t.Fatalf("expected no disconnect callback after intentional close, got %v", disconnects)
	}
}

package voicecore

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/questlog/voicecore/core/audio"
	"github.com/questlog/voicecore/core/speechtotext"
)

type speechToTextClientStub struct {
	mu      sync.Mutex
	options speechtotext.TranscriptionOptions

	transcribeErr error
	frames        [][]byte
	closed        atomic.Int32
	onClose       func()
}

func (s *speechToTextClientStub) Transcribe(_ context.Context, opts ...speechtotext.TranscriptionOption) error {
	if s.transcribeErr != nil {
		return s.transcribeErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.options = speechtotext.TranscriptionOptions{}
	for _, opt := range opts {
		opt(&s.options)
	}
	return nil
}

func (s *speechToTextClientStub) SendAudio(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, frame)
	return nil
}

func (s *speechToTextClientStub) Close() error {
	s.closed.Add(1)
	if s.onClose != nil {
		s.onClose()
	}
	return nil
}

func (s *speechToTextClientStub) capturedOptions() speechtotext.TranscriptionOptions {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.options
}

func (s *speechToTextClientStub) frameCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

type sampleSourceStub struct {
	samples []float32
	closed  atomic.Int32
	onClose func()
}

func (s *sampleSourceStub) EncodingInfo() audio.EncodingInfo {
	return audio.GetDefaultEncodingInfo()
}

func (s *sampleSourceStub) Stream(ctx context.Context, onSamples func(samples []float32)) error {
	if len(s.samples) > 0 {
		onSamples(s.samples)
	}
	<-ctx.Done()
	return nil
}

func (s *sampleSourceStub) Close() {
	s.closed.Add(1)
	if s.onClose != nil {
		s.onClose()
	}
}

func TestPipelineRejectsStartWhileRunning(t *testing.T) {
	sttClient := &speechToTextClientStub{}
	pipeline := NewPipeline(
		WithSpeechToTextClient(sttClient),
		WithSampleSource(&sampleSourceStub{}),
	)
	defer pipeline.Stop()

	if err := pipeline.Start(context.Background()); err != nil {
		t.Fatalf("expected first start to succeed, got %v", err)
	}
	if err := pipeline.Start(context.Background()); err != ErrAlreadyRunning {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
}

func TestPipelineStopIsIdempotent(t *testing.T) {
	sttClient := &speechToTextClientStub{}
	source := &sampleSourceStub{}
	pipeline := NewPipeline(
		WithSpeechToTextClient(sttClient),
		WithSampleSource(source),
	)

	if err := pipeline.Start(context.Background()); err != nil {
		t.Fatalf("expected start to succeed, got %v", err)
	}

	var teardownMu sync.Mutex
	var teardownOrder []string
	sttClient.onClose = func() {
		teardownMu.Lock()
		teardownOrder = append(teardownOrder, "socket")
		teardownMu.Unlock()
	}
	source.onClose = func() {
		teardownMu.Lock()
		teardownOrder = append(teardownOrder, "audio")
		teardownMu.Unlock()
	}

	pipeline.Stop()
	pipeline.Stop()

	if got := sttClient.closed.Load(); got != 1 {
		t.Fatalf("expected exactly one close, got %d", got)
	}
	if got := source.closed.Load(); got != 1 {
		t.Fatalf("expected the sample source to close once, got %d", got)
	}

	teardownMu.Lock()
	defer teardownMu.Unlock()
	if len(teardownOrder) != 2 || teardownOrder[0] != "socket" || teardownOrder[1] != "audio" {
		t.Fatalf("expected the socket to close before the audio input, got %v", teardownOrder)
	}
}

func TestPipelineFailedTranscribeReleasesRunGuard(t *testing.T) {
	sttClient := &speechToTextClientStub{transcribeErr: speechtotext.ErrSessionActive}
	pipeline := NewPipeline(
		WithSpeechToTextClient(sttClient),
		WithSampleSource(&sampleSourceStub{}),
	)
	defer pipeline.Stop()

	if err := pipeline.Start(context.Background()); err == nil {
		t.Fatalf("expected start to fail")
	}

	sttClient.transcribeErr = nil
	if err := pipeline.Start(context.Background()); err != nil {
		t.Fatalf("expected a retry to succeed, got %v", err)
	}
}

func TestPipelineEncodesCapturedSamplesIntoFrames(t *testing.T) {
	sttClient := &speechToTextClientStub{}
	source := &sampleSourceStub{samples: make([]float32, 8)}
	pipeline := NewPipeline(
		WithSpeechToTextClient(sttClient),
		WithSampleSource(source),
		WithFrameSamples(4),
	)
	defer pipeline.Stop()

	if err := pipeline.Start(context.Background()); err != nil {
		t.Fatalf("expected start to succeed, got %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for sttClient.frameCount() < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("expected 2 frames, got %d", sttClient.frameCount())
		}
		time.Sleep(5 * time.Millisecond)
	}

	sttClient.mu.Lock()
	defer sttClient.mu.Unlock()
	for i, frame := range sttClient.frames {
		if len(frame) != 8 {
			t.Fatalf("expected 8-byte frames, frame %d has %d bytes", i, len(frame))
		}
	}
}

func TestPipelineWiresTranscriptsThroughToDispatch(t *testing.T) {
	sttClient := &speechToTextClientStub{}
	dispatcher := newDispatcherStub()
	pipeline := NewPipeline(
		WithSpeechToTextClient(sttClient),
		WithSampleSource(&sampleSourceStub{}),
		WithDispatcher(dispatcher),
		WithQuietWindow(20*time.Millisecond),
	)
	defer pipeline.Stop()

	partials := make(chan string, 4)
	fragments := make(chan string, 4)
	utterances := make(chan string, 4)
	if err := pipeline.Start(context.Background(),
		WithPartialTranscriptCallback(func(transcript string) { partials <- transcript }),
		WithCommittedFragmentCallback(func(fragment string) { fragments <- fragment }),
		WithUtteranceCallback(func(utterance string) { utterances <- utterance }),
	); err != nil {
		t.Fatalf("expected start to succeed, got %v", err)
	}

	opts := sttClient.capturedOptions()
	if opts.PartialTranscriptionCallback == nil || opts.TranscriptionCallback == nil {
		t.Fatalf("expected transcript callbacks to be configured")
	}
	if opts.DisconnectedCallback == nil || opts.StatusChangedCallback == nil {
		t.Fatalf("expected lifecycle callbacks to be configured")
	}

	opts.PartialTranscriptionCallback("hello th")
	opts.TranscriptionCallback("hello there")
	opts.TranscriptionCallback("how are you")

	if got := <-partials; got != "hello th" {
		t.Fatalf("expected partial to surface, got %q", got)
	}
	if got := <-fragments; got != "hello there" {
		t.Fatalf("expected first fragment, got %q", got)
	}

	if got := dispatcher.awaitDispatch(t); got != "hello there how are you" {
		t.Fatalf("expected the quiet window to finalize the utterance, got %q", got)
	}
	select {
	case got := <-utterances:
		if got != "hello there how are you" {
			t.Fatalf("expected the utterance callback to match, got %q", got)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected an utterance callback")
	}
}

func TestPipelineRepeatedPartialsFinalizeWithoutQuietWindow(t *testing.T) {
	sttClient := &speechToTextClientStub{}
	dispatcher := newDispatcherStub()
	pipeline := NewPipeline(
		WithSpeechToTextClient(sttClient),
		WithSampleSource(&sampleSourceStub{}),
		WithDispatcher(dispatcher),
		WithQuietWindow(time.Hour),
	)
	defer pipeline.Stop()

	if err := pipeline.Start(context.Background()); err != nil {
		t.Fatalf("expected start to succeed, got %v", err)
	}

	opts := sttClient.capturedOptions()
	opts.TranscriptionCallback("hello there")
	for range 3 {
		opts.PartialTranscriptionCallback("hello there")
	}

	if got := dispatcher.awaitDispatch(t); got != "hello there" {
		t.Fatalf("expected the repeated-partial pattern to finalize, got %q", got)
	}
}

func TestPipelineMirrorsSessionStatus(t *testing.T) {
	sttClient := &speechToTextClientStub{}
	pipeline := NewPipeline(
		WithSpeechToTextClient(sttClient),
		WithSampleSource(&sampleSourceStub{}),
	)
	defer pipeline.Stop()

	type statusChange struct {
		status     string
		errMessage string
	}
	changes := make(chan statusChange, 8)
	if err := pipeline.Start(context.Background(),
		WithStatusChangedCallback(func(status, errMessage string) {
			changes <- statusChange{status, errMessage}
		}),
	); err != nil {
		t.Fatalf("expected start to succeed, got %v", err)
	}

	opts := sttClient.capturedOptions()
	opts.StatusChangedCallback(speechtotext.StatusConnected, "")
	opts.StatusChangedCallback(speechtotext.StatusError, "session token expired or invalid")

	if got := <-changes; got.status != string(speechtotext.StatusConnected) {
		t.Fatalf("expected connected status, got %+v", got)
	}
	if got := <-changes; got.status != string(speechtotext.StatusError) || got.errMessage == "" {
		t.Fatalf("expected error status with message, got %+v", got)
	}

	if pipeline.Status() != speechtotext.StatusError {
		t.Fatalf("expected the pipeline to mirror the error status, got %q", pipeline.Status())
	}
	if pipeline.ErrorMessage() != "session token expired or invalid" {
		t.Fatalf("unexpected error message %q", pipeline.ErrorMessage())
	}
}

func TestPipelineDisconnectTearsDownButKeepsErrorStatus(t *testing.T) {
	sttClient := &speechToTextClientStub{}
	source := &sampleSourceStub{}
	pipeline := NewPipeline(
		WithSpeechToTextClient(sttClient),
		WithSampleSource(source),
	)

	if err := pipeline.Start(context.Background()); err != nil {
		t.Fatalf("expected start to succeed, got %v", err)
	}

	opts := sttClient.capturedOptions()
	opts.StatusChangedCallback(speechtotext.StatusError, "server dropped the connection")
	opts.DisconnectedCallback(&speechtotext.ConnectionError{
		Reason: speechtotext.DisconnectDropped,
	})

	if pipeline.Status() != speechtotext.StatusError {
		t.Fatalf("expected the error status to survive teardown, got %q", pipeline.Status())
	}
	if got := sttClient.closed.Load(); got != 0 {
		t.Fatalf("expected no close call on an already-dead session, got %d", got)
	}
	if got := source.closed.Load(); got != 0 {
		t.Fatalf("expected the sample source to stay configured, got %d closes", got)
	}

	// The run guard released and the source survived, so a fresh start works.
	if err := pipeline.Start(context.Background()); err != nil {
		t.Fatalf("expected a restart to succeed, got %v", err)
	}
	pipeline.Stop()

	if got := source.closed.Load(); got != 1 {
		t.Fatalf("expected stop to close the sample source, got %d", got)
	}
}

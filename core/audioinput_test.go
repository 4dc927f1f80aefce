package voicecore

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/questlog/voicecore/core/audio"
)

type fineSampleSourceStub struct {
	sampleSourceStub
	started atomic.Int32
	stopped atomic.Int32
}

func (s *fineSampleSourceStub) StartCapture(_ context.Context, _ func(samples []float32)) error {
	s.started.Add(1)
	return nil
}

func (s *fineSampleSourceStub) StopCapture() error {
	s.stopped.Add(1)
	return nil
}

func TestAudioInputDetectsCaptureControls(t *testing.T) {
	input := newAudioInput(nil, nil)
	if input.IsConfigured() {
		t.Fatalf("expected an empty input to report unconfigured")
	}

	input.Set(&sampleSourceStub{})
	if !input.IsConfigured() || input.SupportsCaptureControls() {
		t.Fatalf("expected a plain source without capture controls")
	}

	input.Set(&fineSampleSourceStub{})
	if !input.SupportsCaptureControls() {
		t.Fatalf("expected capture controls to be detected")
	}

	input.Set(nil)
	if input.IsConfigured() || input.SupportsCaptureControls() {
		t.Fatalf("expected clearing the source to reset both capabilities")
	}
}

func TestAudioInputCaptureStartsOnce(t *testing.T) {
	source := &fineSampleSourceStub{}
	input := newAudioInput(source, nil)

	if err := input.Capture(context.Background()); err != nil {
		t.Fatalf("expected capture to start, got %v", err)
	}
	if err := input.Capture(context.Background()); err != nil {
		t.Fatalf("expected a second capture to be a no-op, got %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for source.started.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("expected capture to start")
		}
		time.Sleep(time.Millisecond)
	}
	if got := source.started.Load(); got != 1 {
		t.Fatalf("expected exactly one capture start, got %d", got)
	}

	if err := input.StopCapture(); err != nil {
		t.Fatalf("expected stop to succeed, got %v", err)
	}
	if got := source.stopped.Load(); got != 1 {
		t.Fatalf("expected one capture stop, got %d", got)
	}
	if input.IsCapturing() {
		t.Fatalf("expected capturing flag to clear on stop")
	}
}

func TestAudioInputStreamsSamplesThrough(t *testing.T) {
	received := make(chan []float32, 1)
	source := &sampleSourceStub{samples: []float32{0.1, -0.1}}
	input := newAudioInput(source, func(samples []float32) {
		select {
		case received <- samples:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	input.Start(ctx)

	select {
	case samples := <-received:
		if len(samples) != 2 {
			t.Fatalf("expected the source samples to pass through, got %v", samples)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for samples")
	}
}

func TestAudioInputEncodingInfoFallsBackToDefault(t *testing.T) {
	input := newAudioInput(nil, nil)

	if got := input.EncodingInfo(); got != audio.GetDefaultEncodingInfo() {
		t.Fatalf("expected the default encoding info without a source, got %+v", got)
	}
}

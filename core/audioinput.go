package voicecore

import (
	"context"
	"log"
	"sync/atomic"

	"github.com/questlog/voicecore/core/audio"
)

// audioInput normalizes capture behavior across sample sources: the
// worker-loop backend exposes only Stream, while the callback-driven one
// also supports explicit capture controls, detected by type assertion.
type audioInput struct {
	// base stores the configured sample source used for streaming audio.
	base SampleSource
	// fineCaptureControl is set when the source supports explicit capture controls.
	fineCaptureControl SampleSourceFine

	// connected reports whether a concrete source is currently configured.
	connected atomic.Bool
	// isCapturing reports whether the source is currently capturing audio.
	isCapturing atomic.Bool

	// onSamples is called with each block of captured samples.
	onSamples func(samples []float32)
}

func newAudioInput(source SampleSource, onSamples func(samples []float32)) *audioInput {
	if onSamples == nil {
		onSamples = func([]float32) {}
	}

	input := audioInput{onSamples: onSamples}
	input.Set(source)
	return &input
}

func (a *audioInput) Set(source SampleSource) {
	if a == nil {
		return
	}

	a.base = source
	a.fineCaptureControl = nil
	a.connected.Store(false)
	a.isCapturing.Store(false)

	if source == nil {
		return
	}

	a.connected.Store(true)
	if fine, ok := source.(SampleSourceFine); ok {
		a.fineCaptureControl = fine
	}
}

func (a *audioInput) IsConfigured() bool            { return a != nil && a.connected.Load() }
func (a *audioInput) SupportsCaptureControls() bool { return a != nil && a.fineCaptureControl != nil }
func (a *audioInput) IsCapturing() bool             { return a != nil && a.isCapturing.Load() }

func (a *audioInput) Start(ctx context.Context) {
	if a.IsConfigured() {
		a.Capture(ctx)
	}
}

func (a *audioInput) Capture(ctx context.Context) error {
	if a == nil {
		return nil
	}

	if !a.isCapturing.CompareAndSwap(false, true) {
		return nil
	}

	if a.SupportsCaptureControls() {
		go func() {
			if err := a.fineCaptureControl.StartCapture(ctx, a.onSamples); err != nil {
				a.isCapturing.Store(false)
				log.Printf("Failed to start audio input: %v", err)
			}
		}()
		return nil
	}

	if a.base != nil {
		go func() {
			if err := a.base.Stream(ctx, a.onSamples); err != nil {
				log.Printf("Failed to start audio input: %v", err)
			}
			a.isCapturing.Store(false)
		}()
		return nil
	}

	a.isCapturing.Store(false)
	return nil
}

// StopCapture halts capture but keeps the source configured, so a later run
// can reuse it. Worker-loop sources stop through their context; this only
// clears the capture flag for them.
func (a *audioInput) StopCapture() error {
	if a == nil {
		return nil
	}
	defer a.isCapturing.Store(false)

	if !a.SupportsCaptureControls() {
		return nil
	}
	return a.fineCaptureControl.StopCapture()
}

func (a *audioInput) Close() error {
	if a.base != nil && a.IsConfigured() {
		if a.fineCaptureControl != nil {
			if err := a.fineCaptureControl.StopCapture(); err != nil {
				log.Printf("Failed to stop audio capture: %v", err)
			}
		}

		a.base.Close()
	}
	a.connected.Store(false)
	a.isCapturing.Store(false)

	return nil
}

func (a *audioInput) EncodingInfo() audio.EncodingInfo {
	if a == nil || a.base == nil {
		return audio.GetDefaultEncodingInfo()
	}

	return a.base.EncodingInfo()
}

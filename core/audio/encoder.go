package audio

import (
	"encoding/binary"
	"math"
	"sync"
)

// FrameEncoder converts normalized float samples into fixed-size linear16
// little-endian PCM frames. Samples are buffered until a full frame is
// available and then handed off through onFrame; the handoff slice is owned
// by the receiver.
//
// Write runs on the capture goroutine while Reset is called from teardown,
// which can overlap with a capture block still in flight; a mutex serializes
// access to the buffered remainder.
type FrameEncoder struct {
	frameSamples int
	onFrame      func(frame []byte)

	mu       sync.Mutex
	buffered []int16
}

func NewFrameEncoder(frameSamples int, onFrame func(frame []byte)) *FrameEncoder {
	if frameSamples <= 0 {
		frameSamples = DefaultFrameSamples
	}
	if onFrame == nil {
		onFrame = func([]byte) {}
	}

	return &FrameEncoder{
		frameSamples: frameSamples,
		onFrame:      onFrame,
		buffered:     make([]int16, 0, frameSamples),
	}
}

func (e *FrameEncoder) Write(samples []float32) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, sample := range samples {
		e.buffered = append(e.buffered, EncodeSample(sample))
		if len(e.buffered) == e.frameSamples {
			e.flush()
		}
	}
}

// Reset drops any partially accumulated frame. Called on teardown so a stale
// remainder never leaks into the next session.
func (e *FrameEncoder) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.buffered = e.buffered[:0]
}

func (e *FrameEncoder) flush() {
	frame := make([]byte, len(e.buffered)*2)
	for i, sample := range e.buffered {
		binary.LittleEndian.PutUint16(frame[i*2:], uint16(sample))
	}
	e.buffered = e.buffered[:0]
	e.onFrame(frame)
}

// EncodeSample maps one normalized sample onto the signed 16-bit range. The
// scale is asymmetric (32768 below zero, 32767 above) so the positive extreme
// cannot overflow while the negative range stays fully used.
func EncodeSample(sample float32) int16 {
	clamped := float64(sample)
	if clamped > 1 {
		clamped = 1
	} else if clamped < -1 {
		clamped = -1
	}

	if clamped < 0 {
		return int16(math.Round(clamped * 32768))
	}
	return int16(math.Round(clamped * 32767))
}

// Package portaudio provides the primary microphone source: a blocking
// worker-loop capture stream producing normalized float samples.
package portaudio

import (
	"context"
	"fmt"
	"log"

	"github.com/gordonklaus/portaudio"
	"github.com/questlog/voicecore/core/audio"
)

type Client struct {
	bufferSize int
	stream     *portaudio.Stream

	in []float32
}

func NewClient(bufferSize int) (*Client, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}

	in := make([]float32, bufferSize)
	stream, err := portaudio.OpenDefaultStream(1, 0, audio.DefaultSampleRate, bufferSize, in)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("failed to open PortAudio stream: %w", err)
	}

	return &Client{
		bufferSize: bufferSize,
		stream:     stream,
		in:         in,
	}, nil
}

func (c *Client) Stream(ctx context.Context, onSamples func(samples []float32)) error {
	log.Println("Starting microphone capture. Speak now...")
	if err := c.stream.Start(); err != nil {
		return fmt.Errorf("failed to start PortAudio stream: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
			if err := c.stream.Read(); err != nil {
				log.Printf("Failed to read from PortAudio stream: %v", err)
				continue
			}

			samples := make([]float32, len(c.in))
			copy(samples, c.in)
			onSamples(samples)
		}
	}
}

func (c *Client) Close() {
	c.stream.Close()
	portaudio.Terminate()
}

func (c *Client) EncodingInfo() audio.EncodingInfo {
	return audio.GetDefaultEncodingInfo()
}

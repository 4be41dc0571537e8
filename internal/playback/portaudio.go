package playback

import (
	"context"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/m4ch14v3lli/voice-clone-assistant/internal/audio"
)

// PortAudioPlayer streams decoded WAV audio to the default output device.
// At most one playback is active; starting a new one interrupts and
// releases the previous stream first.
type PortAudioPlayer struct {
	mu        sync.Mutex
	interrupt chan struct{}
}

// NewPortAudioPlayer creates a player for the default output device.
func NewPortAudioPlayer() *PortAudioPlayer {
	return &PortAudioPlayer{}
}

// Play decodes the WAV payload and writes it to the output device.
func (p *PortAudioPlayer) Play(ctx context.Context, wavData []byte) error {
	pcm, err := audio.DecodeWAV(wavData)
	if err != nil {
		return fmt.Errorf("failed to decode reply audio: %w", err)
	}

	p.mu.Lock()
	if p.interrupt != nil {
		close(p.interrupt) // release the previous playback
	}
	interrupt := make(chan struct{})
	p.interrupt = interrupt
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		if p.interrupt == interrupt {
			p.interrupt = nil
		}
		p.mu.Unlock()
	}()

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("audio output unavailable: initialize: %w", err)
	}
	defer portaudio.Terminate()

	samples := pcm.Samples()
	frameLen := pcm.SampleRate / 10 // 100ms output frames
	if frameLen < 1 {
		frameLen = len(samples)
	}

	out := make([]int16, frameLen*pcm.Channels)
	stream, err := portaudio.OpenDefaultStream(0, pcm.Channels,
		float64(pcm.SampleRate), frameLen, out)
	if err != nil {
		return fmt.Errorf("audio output unavailable: open stream: %w", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return fmt.Errorf("audio output unavailable: start stream: %w", err)
	}
	defer stream.Stop()

	for offset := 0; offset < len(samples); offset += len(out) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-interrupt:
			return nil
		default:
		}

		n := copy(out, samples[offset:])
		for i := n; i < len(out); i++ {
			out[i] = 0
		}

		if err := stream.Write(); err != nil && err != portaudio.OutputUnderflowed {
			return fmt.Errorf("playback write failed: %w", err)
		}
	}

	return nil
}

// Close interrupts any active playback.
func (p *PortAudioPlayer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.interrupt != nil {
		close(p.interrupt)
		p.interrupt = nil
	}
	return nil
}

// Package capture provides microphone audio capture with chunked delivery.
// The PortAudio recorder reads PCM-16 frames from the default input device
// and hands them to the session controller as fixed-duration chunks.
package capture

import (
	"errors"
	"time"
)

// ErrDeviceUnavailable reports that the audio input device could not be
// acquired, typically because it is missing, busy, or access was denied.
// Callers surface this distinctly from network failures.
var ErrDeviceUnavailable = errors.New("audio input device unavailable")

// ErrAlreadyRecording reports a start while capture is active.
var ErrAlreadyRecording = errors.New("capture already in progress")

// ErrNotRecording reports a stop while capture is inactive.
var ErrNotRecording = errors.New("no capture in progress")

// ChunkFunc receives one captured audio chunk. Chunks are delivered in
// capture order from a single goroutine; the slice is only valid for the
// duration of the call.
type ChunkFunc func(chunk []byte)

// Recorder captures audio from an input device until stopped.
type Recorder interface {
	// Start begins capture and delivers chunks to onChunk until Stop is
	// called or the context is cancelled. It returns once capture is
	// running; chunk delivery is asynchronous.
	Start(onChunk ChunkFunc) error

	// Stop ends capture, flushes any remaining audio through onChunk and
	// returns once the delivery goroutine has exited.
	Stop() error
}

// Config contains capture parameters.
type Config struct {
	SampleRate    int
	Channels      int
	ChunkDuration time.Duration
}

// FramesPerChunk returns the number of samples in one chunk.
func (c Config) FramesPerChunk() int {
	frames := int(float64(c.SampleRate) * c.ChunkDuration.Seconds())
	if frames < 1 {
		frames = 1
	}
	return frames
}

package capture

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// audioStream is the slice of the PortAudio stream API the capture loop
// needs; narrowed so the loop can be exercised without a device.
type audioStream interface {
	Read() error
}

// PortAudioRecorder captures audio through the system PortAudio library.
// Requires the native PortAudio library to be installed.
type PortAudioRecorder struct {
	config Config

	mu      sync.Mutex
	running bool
	readErr error
	done    chan struct{}
	flushed chan struct{}
}

// NewPortAudioRecorder creates a recorder for the default input device.
func NewPortAudioRecorder(config Config) *PortAudioRecorder {
	return &PortAudioRecorder{config: config}
}

// Start acquires the default input device and begins delivering chunks.
// Device acquisition failures are wrapped in ErrDeviceUnavailable.
func (r *PortAudioRecorder) Start(onChunk ChunkFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return ErrAlreadyRecording
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("%w: initialize: %v", ErrDeviceUnavailable, err)
	}

	in := make([]int16, r.config.FramesPerChunk())
	stream, err := portaudio.OpenDefaultStream(r.config.Channels, 0,
		float64(r.config.SampleRate), len(in), in)
	if err != nil {
		_ = portaudio.Terminate()
		return fmt.Errorf("%w: open stream: %v", ErrDeviceUnavailable, err)
	}

	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return fmt.Errorf("%w: start stream: %v", ErrDeviceUnavailable, err)
	}

	r.running = true
	r.readErr = nil
	r.done = make(chan struct{})
	r.flushed = make(chan struct{})

	go r.captureLoop(stream, in, onChunk, func() {
		_ = stream.Stop()
		_ = stream.Close()
		_ = portaudio.Terminate()
	})

	return nil
}

// captureLoop reads frames until stopped, delivering each as one chunk.
// A terminal read error is recorded for the next Stop to return.
func (r *PortAudioRecorder) captureLoop(stream audioStream, in []int16, onChunk ChunkFunc, cleanup func()) {
	defer close(r.flushed)
	defer cleanup()

	for {
		select {
		case <-r.done:
			return
		default:
		}

		if err := stream.Read(); err != nil {
			// Overflows drop a frame but capture continues.
			if err == portaudio.InputOverflowed {
				continue
			}
			r.mu.Lock()
			r.readErr = err
			r.mu.Unlock()
			return
		}

		onChunk(samplesToBytes(in))
	}
}

// Stop ends capture and waits for the delivery goroutine to finish
// flushing, so every chunk read before Stop has been delivered on return.
// If the device failed mid-session, Stop returns that error wrapped in
// ErrDeviceUnavailable; chunks captured before the failure were delivered.
func (r *PortAudioRecorder) Stop() error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return ErrNotRecording
	}
	r.running = false
	close(r.done)
	flushed := r.flushed
	r.mu.Unlock()

	<-flushed

	r.mu.Lock()
	readErr := r.readErr
	r.readErr = nil
	r.mu.Unlock()

	if readErr != nil {
		return fmt.Errorf("%w: capture ended early: %v", ErrDeviceUnavailable, readErr)
	}
	return nil
}

// samplesToBytes converts PCM-16 samples to little-endian bytes. The
// result is a fresh slice because the input buffer is reused per read.
func samplesToBytes(samples []int16) []byte {
	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		data[i*2] = byte(s)
		data[i*2+1] = byte(uint16(s) >> 8)
	}
	return data
}

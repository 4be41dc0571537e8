package capture

import (
	"errors"
	"testing"
	"time"

	"github.com/gordonklaus/portaudio"
)

// scriptedStream returns a scripted sequence of read results, then a
// terminal error once the script is exhausted
type scriptedStream struct {
	script []error
	pos    int
	final  error
}

func (s *scriptedStream) Read() error {
	if s.pos >= len(s.script) {
		return s.final
	}
	err := s.script[s.pos]
	s.pos++
	return err
}

func startScriptedLoop(r *PortAudioRecorder, stream audioStream, onChunk ChunkFunc) {
	r.mu.Lock()
	r.running = true
	r.readErr = nil
	r.done = make(chan struct{})
	r.flushed = make(chan struct{})
	r.mu.Unlock()

	go r.captureLoop(stream, make([]int16, 4), onChunk, func() {})
}

func TestFramesPerChunk(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		expected int
	}{
		{"100ms at 16kHz", Config{SampleRate: 16000, ChunkDuration: 100 * time.Millisecond}, 1600},
		{"20ms at 8kHz", Config{SampleRate: 8000, ChunkDuration: 20 * time.Millisecond}, 160},
		{"1s at 44.1kHz", Config{SampleRate: 44100, ChunkDuration: time.Second}, 44100},
		{"degenerate duration", Config{SampleRate: 16000, ChunkDuration: 0}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.config.FramesPerChunk(); got != tt.expected {
				t.Errorf("FramesPerChunk() = %d, expected %d", got, tt.expected)
			}
		})
	}
}

func TestSamplesToBytes(t *testing.T) {
	samples := []int16{0x0102, -1, 0}
	data := samplesToBytes(samples)

	expected := []byte{0x02, 0x01, 0xFF, 0xFF, 0x00, 0x00}
	if len(data) != len(expected) {
		t.Fatalf("Expected %d bytes, got %d", len(expected), len(data))
	}

	for i := range expected {
		if data[i] != expected[i] {
			t.Errorf("Byte %d: expected 0x%02X, got 0x%02X", i, expected[i], data[i])
		}
	}
}

func TestStopSurfacesMidSessionReadError(t *testing.T) {
	recorder := NewPortAudioRecorder(Config{SampleRate: 16000, Channels: 1, ChunkDuration: 100 * time.Millisecond})

	var chunks int
	stream := &scriptedStream{
		script: []error{nil, nil},
		final:  errors.New("device disconnected"),
	}
	startScriptedLoop(recorder, stream, func(chunk []byte) { chunks++ })

	// The loop exits on the terminal read error; wait for the flush.
	<-recorder.flushed

	err := recorder.Stop()
	if err == nil {
		t.Fatal("Expected Stop to surface the read error")
	}
	if !errors.Is(err, ErrDeviceUnavailable) {
		t.Errorf("Expected ErrDeviceUnavailable, got %v", err)
	}

	if chunks != 2 {
		t.Errorf("Expected 2 chunks delivered before the failure, got %d", chunks)
	}

	// The error is consumed; the recorder is reusable.
	if err := recorder.Stop(); !errors.Is(err, ErrNotRecording) {
		t.Errorf("Expected ErrNotRecording after stop, got %v", err)
	}
}

func TestCaptureLoopSkipsOverflows(t *testing.T) {
	recorder := NewPortAudioRecorder(Config{SampleRate: 16000, Channels: 1, ChunkDuration: 100 * time.Millisecond})

	var chunks int
	stream := &scriptedStream{
		script: []error{nil, portaudio.InputOverflowed, nil},
		final:  errors.New("device disconnected"),
	}
	startScriptedLoop(recorder, stream, func(chunk []byte) { chunks++ })

	<-recorder.flushed

	if err := recorder.Stop(); err == nil {
		t.Fatal("Expected Stop to surface the terminal error")
	}

	if chunks != 2 {
		t.Errorf("Expected overflow to drop one frame and keep 2 chunks, got %d", chunks)
	}
}

func TestStopWithoutStart(t *testing.T) {
	recorder := NewPortAudioRecorder(Config{SampleRate: 16000, Channels: 1})

	if err := recorder.Stop(); err != ErrNotRecording {
		t.Errorf("Expected ErrNotRecording, got %v", err)
	}
}

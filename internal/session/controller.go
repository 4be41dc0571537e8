package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/m4ch14v3lli/voice-clone-assistant/internal/assistant"
	"github.com/m4ch14v3lli/voice-clone-assistant/internal/audio"
	"github.com/m4ch14v3lli/voice-clone-assistant/internal/capture"
	"github.com/m4ch14v3lli/voice-clone-assistant/internal/metrics"
	"github.com/m4ch14v3lli/voice-clone-assistant/internal/playback"
)

// State represents the controller lifecycle state
type State int

const (
	StateIdle State = iota
	StateRecording
)

// String returns a human readable state name
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	default:
		return "unknown"
	}
}

// Stage names a pipeline stage for event reporting
type Stage string

const (
	StageCapture  Stage = "capture"
	StageEncode   Stage = "encode"
	StageCache    Stage = "cache"
	StageUpload   Stage = "upload"
	StagePlayback Stage = "playback"
)

// Event reports the outcome of a pipeline stage. Events with a nil Err
// mark stage completion; events with a non-nil Err carry the stage error
// so the caller can present it without the pipeline dying silently.
type Event struct {
	SessionID string
	Stage     Stage
	Err       error
	Timestamp time.Time
}

// Uploader submits one recorded WAV payload to the assistant
type Uploader interface {
	Submit(ctx context.Context, wavData []byte) (*assistant.Reply, error)
}

// Config contains session controller configuration
type Config struct {
	SampleRate    int
	Channels      int
	UploadTimeout time.Duration
	CacheDir      string // empty disables recording cache files
}

// Controller ties capture, upload and playback into one toggled session.
// All mutable state is owned by the instance; nothing is shared between
// controllers.
type Controller struct {
	config   Config
	recorder capture.Recorder
	uploader Uploader
	player   playback.Player
	buffer   *audio.ChunkBuffer
	metrics  *metrics.Metrics
	logger   *slog.Logger

	state     State
	sessionID string
	startedAt time.Time
	mu        sync.Mutex

	events   chan Event
	pipeline sync.WaitGroup
}

// NewController creates a session controller in the idle state
func NewController(config Config, recorder capture.Recorder, uploader Uploader, player playback.Player, m *metrics.Metrics, logger *slog.Logger) (*Controller, error) {
	if recorder == nil {
		return nil, fmt.Errorf("recorder cannot be nil")
	}
	if uploader == nil {
		return nil, fmt.Errorf("uploader cannot be nil")
	}
	if player == nil {
		return nil, fmt.Errorf("player cannot be nil")
	}
	if config.SampleRate <= 0 {
		config.SampleRate = 16000
	}
	if config.Channels <= 0 {
		config.Channels = 1
	}
	if config.UploadTimeout <= 0 {
		config.UploadTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Controller{
		config:   config,
		recorder: recorder,
		uploader: uploader,
		player:   player,
		buffer:   audio.NewChunkBuffer(config.SampleRate),
		metrics:  m,
		logger:   logger,
		state:    StateIdle,
		events:   make(chan Event, 16),
	}, nil
}

// State returns the current controller state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Events returns the pipeline event channel. Events are dropped rather
// than blocking the pipeline when the channel is full.
func (c *Controller) Events() <-chan Event {
	return c.events
}

// Toggle flips the session between idle and recording. Starting a
// session begins capture into a fresh buffer; stopping one hands the
// buffered audio to the background pipeline and returns immediately.
func (c *Controller) Toggle(ctx context.Context) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateIdle:
		return c.startLocked()
	case StateRecording:
		return c.stopLocked(ctx)
	default:
		return c.state, fmt.Errorf("cannot toggle from state %s", c.state)
	}
}

// startLocked begins a new recording session. The buffer is reset so
// audio from an earlier session never leaks into this one.
func (c *Controller) startLocked() (State, error) {
	c.buffer.Reset()
	c.sessionID = uuid.New().String()
	c.startedAt = time.Now()

	err := c.recorder.Start(func(chunk []byte) {
		c.buffer.Append(chunk)
		if c.metrics != nil {
			c.metrics.RecordChunk(len(chunk))
		}
	})
	if err != nil {
		c.logger.Error("Failed to start capture",
			"session_id", c.sessionID,
			"error", err)
		return StateIdle, fmt.Errorf("failed to start capture: %w", err)
	}

	c.state = StateRecording
	if c.metrics != nil {
		c.metrics.RecordSessionStarted()
	}
	c.logger.Info("Recording started", "session_id", c.sessionID)
	return c.state, nil
}

// stopLocked ends the recording and launches the upload pipeline with
// the session's audio passed by value. After Take the controller holds
// no reference to the recorded data.
func (c *Controller) stopLocked(ctx context.Context) (State, error) {
	if err := c.recorder.Stop(); err != nil {
		c.state = StateIdle
		return c.state, fmt.Errorf("failed to stop capture: %w", err)
	}

	c.state = StateIdle
	duration := time.Since(c.startedAt)

	chunkCount := c.buffer.ChunkCount()
	payload := c.buffer.Take()
	sessionID := c.sessionID

	c.logger.Info("Recording stopped",
		"session_id", sessionID,
		"duration", duration,
		"chunks", chunkCount,
		"bytes", len(payload))

	if len(payload) == 0 {
		c.logger.Warn("Empty recording discarded", "session_id", sessionID)
		return c.state, nil
	}

	if c.metrics != nil {
		c.metrics.RecordSessionCompleted(duration.Seconds())
	}

	c.pipeline.Add(1)
	go func() {
		defer c.pipeline.Done()
		c.runPipeline(ctx, sessionID, payload)
	}()

	return c.state, nil
}

// runPipeline drives one recorded payload through encode, upload and
// playback. Each stage reports through the events channel; a stage
// error ends the pipeline for this session only.
func (c *Controller) runPipeline(ctx context.Context, sessionID string, pcmData []byte) {
	wavData, err := audio.EncodeWAV(pcmData, c.config.SampleRate)
	if err != nil {
		c.emit(sessionID, StageEncode, err)
		return
	}
	c.emit(sessionID, StageEncode, nil)

	if c.config.CacheDir != "" {
		if err := c.writeCacheFile(sessionID, pcmData); err != nil {
			// Cache failures are reported but never block the upload.
			c.emit(sessionID, StageCache, err)
		}
	}

	uploadCtx, cancel := context.WithTimeout(ctx, c.config.UploadTimeout)
	defer cancel()

	uploadStart := time.Now()
	if c.metrics != nil {
		c.metrics.RecordUploadStarted(len(wavData))
	}

	reply, err := c.uploader.Submit(uploadCtx, wavData)
	if err != nil {
		if c.metrics != nil {
			c.metrics.RecordUploadFailure(time.Since(uploadStart).Seconds())
			if errors.Is(err, assistant.ErrMalformedResponse) {
				c.metrics.RecordDecodeFailure()
			}
		}
		c.emit(sessionID, StageUpload, err)
		return
	}
	if c.metrics != nil {
		c.metrics.RecordUploadSuccess(time.Since(uploadStart).Seconds())
	}
	c.emit(sessionID, StageUpload, nil)

	c.logger.Info("Assistant reply received",
		"session_id", sessionID,
		"request_id", reply.RequestID,
		"reply_bytes", len(reply.Audio),
		"transcription", reply.Transcription)

	err = c.player.Play(ctx, reply.Audio)
	if c.metrics != nil {
		c.metrics.RecordPlayback(err)
	}
	if err != nil {
		c.emit(sessionID, StagePlayback, err)
		return
	}
	c.emit(sessionID, StagePlayback, nil)
}

// writeCacheFile stores the raw session audio as a WAV file for debugging
func (c *Controller) writeCacheFile(sessionID string, pcmData []byte) error {
	if err := os.MkdirAll(c.config.CacheDir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	path := filepath.Join(c.config.CacheDir, fmt.Sprintf("session-%s.wav", sessionID))
	if err := audio.WriteWAVFile(path, pcmData, c.config.SampleRate, c.config.Channels); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}

	c.logger.Debug("Session cached", "session_id", sessionID, "path", path)
	return nil
}

// emit delivers a pipeline event without blocking the pipeline
func (c *Controller) emit(sessionID string, stage Stage, err error) {
	event := Event{
		SessionID: sessionID,
		Stage:     stage,
		Err:       err,
		Timestamp: time.Now(),
	}

	if err != nil {
		c.logger.Error("Pipeline stage failed",
			"session_id", sessionID,
			"stage", string(stage),
			"error", err)
	}

	select {
	case c.events <- event:
	default:
		c.logger.Warn("Event channel full, dropping event",
			"session_id", sessionID,
			"stage", string(stage))
	}
}

// Wait blocks until all in-flight pipelines have finished
func (c *Controller) Wait() {
	c.pipeline.Wait()
}

// Close stops any active recording, waits for in-flight pipelines and
// releases the player
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.state == StateRecording {
		if err := c.recorder.Stop(); err != nil {
			c.logger.Warn("Failed to stop recorder on close", "error", err)
		}
		c.state = StateIdle
	}
	c.mu.Unlock()

	c.pipeline.Wait()
	return c.player.Close()
}

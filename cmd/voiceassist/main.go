package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gen2brain/beeep"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/m4ch14v3lli/voice-clone-assistant/internal/assistant"
	"github.com/m4ch14v3lli/voice-clone-assistant/internal/capture"
	"github.com/m4ch14v3lli/voice-clone-assistant/internal/config"
	"github.com/m4ch14v3lli/voice-clone-assistant/internal/metrics"
	"github.com/m4ch14v3lli/voice-clone-assistant/internal/playback"
	"github.com/m4ch14v3lli/voice-clone-assistant/internal/session"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "voiceassist"
	serviceVersion    = "1.0.0"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load .env before the config so env fallbacks can pick it up
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Failed to load .env file: %v\n", err)
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger based on configuration
	logger := initLogger(cfg.Logging)

	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)

	logger.Info("Configuration loaded",
		slog.Int("sample_rate", cfg.Capture.SampleRate),
		slog.Int("channels", cfg.Capture.Channels),
		slog.Duration("chunk_duration", cfg.Capture.GetChunkDuration()),
		slog.String("assistant_endpoint", cfg.Assistant.Endpoint),
		slog.String("voice_id", cfg.Assistant.VoiceID),
		slog.String("playback_backend", cfg.Playback.Backend),
		slog.String("log_level", cfg.Logging.Level),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Prometheus metrics
	appMetrics := metrics.NewMetrics()

	// Optional standalone metrics listener
	if cfg.Metrics.Enabled {
		metricsAddr := fmt.Sprintf("%s:%d", cfg.Metrics.Address, cfg.Metrics.Port)
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			logger.Info("Metrics listener started", slog.String("address", metricsAddr))
			if err := http.ListenAndServe(metricsAddr, mux); err != nil {
				logger.Error("Metrics listener error", slog.String("error", err.Error()))
			}
		}()
	}

	// Initialize capture
	recorder := capture.NewPortAudioRecorder(capture.Config{
		SampleRate:    cfg.Capture.SampleRate,
		Channels:      cfg.Capture.Channels,
		ChunkDuration: cfg.Capture.GetChunkDuration(),
	})

	// Initialize assistant upload client
	uploader, err := assistant.NewClient(assistant.Config{
		Endpoint: cfg.Assistant.Endpoint,
		VoiceID:  cfg.Assistant.VoiceID,
		Timeout:  cfg.Assistant.GetTimeoutDuration(),
	})
	if err != nil {
		logger.Error("Failed to create assistant client", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Initialize playback
	player := newPlayer(cfg.Playback)

	// Initialize session controller
	controller, err := session.NewController(session.Config{
		SampleRate:    cfg.Capture.SampleRate,
		Channels:      cfg.Capture.Channels,
		UploadTimeout: cfg.Assistant.GetTimeoutDuration(),
		CacheDir:      cfg.Cache.Dir,
	}, recorder, uploader, player, appMetrics, logger)
	if err != nil {
		logger.Error("Failed to create session controller", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Report pipeline events as desktop notifications
	go watchEvents(controller, logger, cfg.Notify)

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	fmt.Println("Press Enter to start or stop recording, Ctrl+C to quit.")

	// Toggle on Enter key presses from stdin
	toggleChan := make(chan struct{})
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			toggleChan <- struct{}{}
		}
	}()

	for {
		select {
		case <-toggleChan:
			state, err := controller.Toggle(ctx)
			if err != nil {
				logger.Error("Toggle failed", slog.String("error", err.Error()))
				notify(cfg.Notify, "Recording failed", err.Error())
				continue
			}
			switch state {
			case session.StateRecording:
				fmt.Println("Recording... press Enter to stop.")
				notify(cfg.Notify, "Recording started", "Press Enter to stop")
			case session.StateIdle:
				fmt.Println("Processing...")
			}

		case sig := <-sigChan:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
			shutdown(controller, logger)
			return
		}
	}
}

// watchEvents forwards pipeline events to the log and the desktop
func watchEvents(controller *session.Controller, logger *slog.Logger, notifyEnabled bool) {
	for event := range controller.Events() {
		if event.Err != nil {
			notify(notifyEnabled, "Assistant error",
				fmt.Sprintf("%s stage failed: %v", event.Stage, event.Err))
			continue
		}
		if event.Stage == session.StagePlayback {
			logger.Info("Session completed", slog.String("session_id", event.SessionID))
		}
	}
}

// notify shows a desktop notification when enabled, logging is the fallback
func notify(enabled bool, title, message string) {
	if !enabled {
		return
	}
	if err := beeep.Notify(title, message, ""); err != nil {
		slog.Warn("Notification failed", slog.String("error", err.Error()))
	}
}

// newPlayer selects the playback backend from configuration
func newPlayer(cfg config.PlaybackConfig) playback.Player {
	if cfg.Backend == "command" {
		return playback.NewCommandPlayer(cfg.Command)
	}
	return playback.NewPortAudioPlayer()
}

func shutdown(controller *session.Controller, logger *slog.Logger) {
	logger.Info("Starting graceful shutdown...")

	done := make(chan struct{})
	go func() {
		if err := controller.Close(); err != nil {
			logger.Error("Error closing controller", slog.String("error", err.Error()))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		logger.Warn("Shutdown timed out waiting for pipelines")
	}

	logger.Info("Service stopped")
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var output *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stdout\n", cfg.Output, err)
			output = os.Stdout
		} else {
			output = file
		}
	}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}

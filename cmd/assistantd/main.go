package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/m4ch14v3lli/voice-clone-assistant/internal/config"
	"github.com/m4ch14v3lli/voice-clone-assistant/internal/metrics"
	"github.com/m4ch14v3lli/voice-clone-assistant/internal/responder"
	"github.com/m4ch14v3lli/voice-clone-assistant/internal/server"
	"github.com/m4ch14v3lli/voice-clone-assistant/internal/voices"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "assistantd"
	serviceVersion    = "1.0.0"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	voicesDataDir := flag.String("voices-dir", "", "Directory for registered voice samples")
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
		slog.String("address", cfg.Server.Address),
		slog.Int("port", cfg.Server.Port),
		slog.String("provider", cfg.Server.Provider),
		slog.Int64("max_upload_bytes", cfg.Server.MaxUploadBytes),
		slog.String("log_level", cfg.Logging.Level),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Prometheus metrics
	appMetrics := metrics.NewMetrics()

	// Initialize voice registry
	store, err := voices.NewStore(*voicesDataDir)
	if err != nil {
		logger.Error("Failed to create voice store", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if cfg.Voices.Dir != "" {
		seeded, err := store.SeedFromDir(cfg.Voices.Dir)
		if err != nil {
			logger.Error("Failed to seed voices", slog.String("error", err.Error()))
			os.Exit(1)
		}
		if seeded > 0 {
			logger.Info("Voices seeded",
				slog.Int("count", seeded),
				slog.String("dir", cfg.Voices.Dir))
		}
	}
	appMetrics.SetRegisteredVoices(store.Count())

	// Initialize the assistant responder
	rsp, err := newResponder(cfg.Server, logger)
	if err != nil {
		logger.Error("Failed to create responder", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Initialize and start the HTTP API server
	httpServer := server.NewHTTPServer(cfg.Server, logger, store, rsp, appMetrics)
	if err := httpServer.Start(); err != nil {
		logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Service started successfully, waiting for signals...",
		slog.String("address", fmt.Sprintf("%s:%d", cfg.Server.Address, cfg.Server.Port)),
	)

	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("Context cancelled, shutting down")
	}

	logger.Info("Starting graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
	}

	logger.Info("Service stopped")
}

// newResponder selects the assistant backend from configuration
func newResponder(cfg config.ServerConfig, logger *slog.Logger) (responder.Responder, error) {
	switch cfg.Provider {
	case "local":
		return responder.NewLocalResponder(cfg.OpenAI, cfg.Local, logger)
	case "openai", "":
		return responder.NewOpenAIResponder(cfg.OpenAI, logger)
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
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

package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete configuration for both binaries.
// The client uses Capture, Assistant, Playback, Cache and Logging;
// the assistant server uses Server, Voices and Logging.
type Config struct {
	Capture   CaptureConfig   `yaml:"capture"`
	Assistant AssistantConfig `yaml:"assistant"`
	Playback  PlaybackConfig  `yaml:"playback"`
	Cache     CacheConfig     `yaml:"cache"`
	Notify    bool            `yaml:"notify"`
	Server    ServerConfig    `yaml:"server"`
	Voices    VoicesConfig    `yaml:"voices"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// CaptureConfig contains microphone capture parameters.
type CaptureConfig struct {
	SampleRate      int `yaml:"sample_rate"`
	Channels        int `yaml:"channels"`
	ChunkDurationMs int `yaml:"chunk_duration_ms"`
}

// AssistantConfig contains the assistant endpoint configuration.
type AssistantConfig struct {
	Endpoint string `yaml:"endpoint"`
	VoiceID  string `yaml:"voice_id"`
	Timeout  int    `yaml:"timeout"` // seconds
}

// PlaybackConfig selects how synthesized replies are played.
type PlaybackConfig struct {
	Backend string `yaml:"backend"` // "portaudio" or "command"
	Command string `yaml:"command"` // external player, e.g. "aplay"
}

// CacheConfig controls the optional per-session WAV cache.
type CacheConfig struct {
	Dir string `yaml:"dir"` // empty disables the cache
}

// ServerConfig contains the development assistant server configuration.
type ServerConfig struct {
	Address        string       `yaml:"address"`
	Port           int          `yaml:"port"`
	MaxUploadBytes int64        `yaml:"max_upload_bytes"`
	Provider       string       `yaml:"provider"` // "openai" or "local"
	OpenAI         OpenAIConfig `yaml:"openai"`
	Local          LocalConfig  `yaml:"local"`
}

// OpenAIConfig configures the OpenAI responder.
type OpenAIConfig struct {
	APIKey          string `yaml:"api_key"` // falls back to OPENAI_API_KEY
	ChatModel       string `yaml:"chat_model"`
	TranscribeModel string `yaml:"transcribe_model"`
	TTSModel        string `yaml:"tts_model"`
}

// LocalConfig configures the local TTS responder.
type LocalConfig struct {
	TTSCommand string `yaml:"tts_command"`
	ModelName  string `yaml:"model_name"`
}

// VoicesConfig configures the in-memory voice registry.
type VoicesConfig struct {
	Dir string `yaml:"dir"` // optional directory of WAV samples to seed from
}

// MetricsConfig configures the client's standalone metrics listener.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads and parses the configuration file, applies environment
// fallbacks for secrets and endpoints, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	config.applyEnv()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Default returns a configuration with working defaults for local use.
func Default() *Config {
	return &Config{
		Capture: CaptureConfig{
			SampleRate:      16000,
			Channels:        1,
			ChunkDurationMs: 100,
		},
		Assistant: AssistantConfig{
			Endpoint: "http://127.0.0.1:8780/assistant",
			Timeout:  30,
		},
		Playback: PlaybackConfig{
			Backend: "portaudio",
		},
		Server: ServerConfig{
			Address:        "0.0.0.0",
			Port:           8780,
			MaxUploadBytes: 10 << 20,
			Provider:       "openai",
			OpenAI: OpenAIConfig{
				ChatModel:       "gpt-4o-mini",
				TranscribeModel: "whisper-1",
				TTSModel:        "tts-1",
			},
			Local: LocalConfig{
				TTSCommand: "tts",
				ModelName:  "tts_models/multilingual/multi-dataset/xtts_v2",
			},
		},
		Metrics: MetricsConfig{
			Address: "127.0.0.1",
			Port:    9780,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}

// applyEnv fills secrets and endpoints from the environment when the file
// leaves them empty. A .env file loaded by the caller feeds these too.
func (c *Config) applyEnv() {
	if c.Server.OpenAI.APIKey == "" {
		c.Server.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if v := os.Getenv("ASSISTANT_ENDPOINT"); v != "" {
		c.Assistant.Endpoint = v
	}
	if v := os.Getenv("ASSISTANT_VOICE_ID"); v != "" {
		c.Assistant.VoiceID = v
	}
}

// Validate performs comprehensive validation of the configuration.
func (c *Config) Validate() error {
	if err := c.Capture.Validate(); err != nil {
		return fmt.Errorf("capture config: %w", err)
	}

	if err := c.Assistant.Validate(); err != nil {
		return fmt.Errorf("assistant config: %w", err)
	}

	if err := c.Playback.Validate(); err != nil {
		return fmt.Errorf("playback config: %w", err)
	}

	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates capture configuration.
func (cc *CaptureConfig) Validate() error {
	if cc.SampleRate < 8000 || cc.SampleRate > 48000 {
		return fmt.Errorf("sample_rate must be between 8000 and 48000 Hz, got %d", cc.SampleRate)
	}

	if cc.Channels != 1 {
		return fmt.Errorf("channels must be 1 (mono), got %d", cc.Channels)
	}

	if cc.ChunkDurationMs < 10 || cc.ChunkDurationMs > 1000 {
		return fmt.Errorf("chunk_duration_ms must be between 10 and 1000, got %d", cc.ChunkDurationMs)
	}

	return nil
}

// Validate validates assistant endpoint configuration.
func (a *AssistantConfig) Validate() error {
	if a.Endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty")
	}

	if a.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", a.Timeout)
	}

	return nil
}

// Validate validates playback configuration.
func (p *PlaybackConfig) Validate() error {
	switch p.Backend {
	case "portaudio":
	case "command":
		if p.Command == "" {
			return fmt.Errorf("command cannot be empty when backend is 'command'")
		}
	default:
		return fmt.Errorf("backend must be 'portaudio' or 'command', got '%s'", p.Backend)
	}

	return nil
}

// Validate validates server configuration.
func (s *ServerConfig) Validate() error {
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", s.Port)
	}

	if s.Address == "" {
		return fmt.Errorf("address cannot be empty")
	}

	if s.MaxUploadBytes < 1024 {
		return fmt.Errorf("max_upload_bytes must be at least 1024, got %d", s.MaxUploadBytes)
	}

	validProviders := map[string]bool{"openai": true, "local": true}
	if !validProviders[s.Provider] {
		return fmt.Errorf("provider must be 'openai' or 'local', got '%s'", s.Provider)
	}

	if s.Provider == "local" && s.Local.TTSCommand == "" {
		return fmt.Errorf("local.tts_command cannot be empty for the local provider")
	}

	return nil
}

// Validate validates metrics configuration.
func (m *MetricsConfig) Validate() error {
	if !m.Enabled {
		return nil
	}

	if m.Port < 1 || m.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", m.Port)
	}

	if m.Address == "" {
		return fmt.Errorf("address cannot be empty when metrics are enabled")
	}

	return nil
}

// Validate validates logging configuration.
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

// GetTimeoutDuration returns the assistant request timeout as a time.Duration.
func (a *AssistantConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(a.Timeout) * time.Second
}

// GetChunkDuration returns the capture chunk duration as a time.Duration.
func (cc *CaptureConfig) GetChunkDuration() time.Duration {
	return time.Duration(cc.ChunkDurationMs) * time.Millisecond
}

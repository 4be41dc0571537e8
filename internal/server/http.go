package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/m4ch14v3lli/voice-clone-assistant/internal/audio"
	"github.com/m4ch14v3lli/voice-clone-assistant/internal/config"
	"github.com/m4ch14v3lli/voice-clone-assistant/internal/metrics"
	"github.com/m4ch14v3lli/voice-clone-assistant/internal/responder"
	"github.com/m4ch14v3lli/voice-clone-assistant/internal/voices"
)

// HTTPServer provides the assistant upload API and voice management
type HTTPServer struct {
	server    *http.Server
	logger    *slog.Logger
	config    config.ServerConfig
	store     *voices.Store
	responder responder.Responder
	metrics   *metrics.Metrics

	// Server state
	startTime time.Time
	requests  uint64
	mu        sync.RWMutex
}

// assistantResponse is the JSON body returned for a successful upload.
// The synthesized reply travels as a hex string.
type assistantResponse struct {
	Audio         string `json:"audio"`
	Transcription string `json:"transcription,omitempty"`
	ResponseText  string `json:"response_text,omitempty"`
}

// NewHTTPServer creates the assistant API server
func NewHTTPServer(cfg config.ServerConfig, logger *slog.Logger,
	store *voices.Store, rsp responder.Responder, m *metrics.Metrics) *HTTPServer {

	h := &HTTPServer{
		logger:    logger,
		config:    cfg,
		store:     store,
		responder: rsp,
		metrics:   m,
		startTime: time.Now(),
	}

	mux := http.NewServeMux()
	h.setupRoutes(mux)

	h.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Address, cfg.Port),
		Handler:      mux,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return h
}

// setupRoutes configures HTTP API routes
func (h *HTTPServer) setupRoutes(mux *http.ServeMux) {
	// Assistant upload endpoint
	mux.HandleFunc("/assistant", h.withMetrics("/assistant", h.handleAssistant))

	// Standalone pipeline stages
	mux.HandleFunc("/transcribe", h.withMetrics("/transcribe", h.handleTranscribe))
	mux.HandleFunc("/speak", h.withMetrics("/speak", h.handleSpeak))

	// Voice registry endpoints
	mux.HandleFunc("/voices", h.withMetrics("/voices", h.handleVoices))
	mux.HandleFunc("/voices/", h.withMetrics("/voices/{id}", h.handleVoiceDetail))

	// Health check endpoint
	mux.HandleFunc("/health", h.withMetrics("/health", h.handleHealth))

	// Prometheus metrics endpoint
	mux.Handle("/metrics", promhttp.Handler())

	// Root endpoint with API documentation
	mux.HandleFunc("/", h.withMetrics("/", h.handleRoot))
}

// withMetrics wraps an HTTP handler with metrics collection
func (h *HTTPServer) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		ww := &responseWriter{ResponseWriter: w, statusCode: 200}

		handler(ww, r)

		duration := time.Since(startTime).Seconds()
		statusCode := fmt.Sprintf("%d", ww.statusCode)

		if h.metrics != nil {
			h.metrics.RecordHTTPRequest(r.Method, endpoint, statusCode, duration)

			if ww.statusCode >= 400 {
				errorType := "client_error"
				if ww.statusCode >= 500 {
					errorType = "server_error"
				}
				h.metrics.RecordHTTPError(r.Method, endpoint, errorType)
			}
		}
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Start starts the HTTP server
func (h *HTTPServer) Start() error {
	h.logger.Info("Starting assistant API server",
		slog.String("address", h.server.Addr),
		slog.String("provider", h.config.Provider),
	)

	go func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			h.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully stops the HTTP server
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping assistant API server...")

	return h.server.Shutdown(ctx)
}

// Handler returns the configured handler, used by tests
func (h *HTTPServer) Handler() http.Handler {
	return h.server.Handler
}

// handleAssistant implements the POST /assistant endpoint. The request
// carries the recording as a multipart part named "audio" and selects
// the reply voice with the voice_id query parameter.
func (h *HTTPServer) handleAssistant(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	voiceID := r.URL.Query().Get("voice_id")
	if voiceID == "" {
		http.Error(w, "voice_id query parameter required", http.StatusBadRequest)
		return
	}

	voice, err := h.store.Get(voiceID)
	if err != nil {
		if errors.Is(err, voices.ErrNotFound) {
			http.Error(w, "Voice not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Voice lookup failed", http.StatusInternalServerError)
		return
	}

	audioData, err := h.readAudioPart(r)
	if err != nil {
		h.logger.Warn("Rejected upload", slog.String("error", err.Error()))
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	synthesisStart := time.Now()
	result, err := h.responder.Respond(r.Context(), responder.Request{
		Audio: audioData,
		Voice: voice,
	})
	if err != nil {
		h.logger.Error("Assistant pipeline failed",
			slog.String("voice_id", voiceID),
			slog.String("error", err.Error()))
		http.Error(w, "Assistant pipeline failed", http.StatusInternalServerError)
		return
	}
	if h.metrics != nil {
		h.metrics.RecordSynthesis(time.Since(synthesisStart).Seconds())
	}

	h.mu.Lock()
	h.requests++
	h.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(assistantResponse{
		Audio:         audio.EncodeHex(result.Audio),
		Transcription: result.Transcription,
		ResponseText:  result.ResponseText,
	})
}

// readAudioPart extracts and validates the uploaded audio form part
func (h *HTTPServer) readAudioPart(r *http.Request) ([]byte, error) {
	maxBytes := h.config.MaxUploadBytes
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	r.Body = http.MaxBytesReader(nil, r.Body, maxBytes)

	file, _, err := r.FormFile("audio")
	if err != nil {
		return nil, fmt.Errorf("missing audio form part")
	}
	defer file.Close()

	audioData, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio part")
	}

	if err := audio.ValidateWAV(audioData); err != nil {
		return nil, fmt.Errorf("invalid WAV payload: %v", err)
	}

	return audioData, nil
}

// handleVoices implements GET and POST on the /voices endpoint
func (h *HTTPServer) handleVoices(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listVoices(w)
	case http.MethodPost:
		h.registerVoice(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *HTTPServer) listVoices(w http.ResponseWriter) {
	list := h.store.List()

	response := map[string]interface{}{
		"total_voices": len(list),
		"voices":       list,
		"timestamp":    time.Now().UTC(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// registerVoice accepts a multipart form with a "sample" WAV part and a
// "name" field and returns the generated voice ID
func (h *HTTPServer) registerVoice(w http.ResponseWriter, r *http.Request) {
	maxBytes := h.config.MaxUploadBytes
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	r.Body = http.MaxBytesReader(nil, r.Body, maxBytes)

	file, _, err := r.FormFile("sample")
	if err != nil {
		http.Error(w, "missing sample form part", http.StatusBadRequest)
		return
	}
	defer file.Close()

	sample, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "failed to read sample part", http.StatusBadRequest)
		return
	}

	name := r.FormValue("name")
	voice, err := h.store.Register(name, sample)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if h.metrics != nil {
		h.metrics.SetRegisteredVoices(h.store.Count())
	}

	h.logger.Info("Voice registered",
		slog.String("voice_id", voice.ID),
		slog.String("name", voice.Name))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(voice)
}

// handleVoiceDetail implements the /voices/{voice_id} and
// /voices/{voice_id}/download endpoints
func (h *HTTPServer) handleVoiceDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	voiceID := r.URL.Path[len("/voices/"):]
	download := strings.HasSuffix(voiceID, "/download")
	if download {
		voiceID = strings.TrimSuffix(voiceID, "/download")
	}
	if voiceID == "" || strings.Contains(voiceID, "/") {
		http.Error(w, "Voice ID required", http.StatusBadRequest)
		return
	}

	voice, err := h.store.Get(voiceID)
	if err != nil {
		if errors.Is(err, voices.ErrNotFound) {
			http.Error(w, "Voice not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Voice lookup failed", http.StatusInternalServerError)
		return
	}

	if download {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Disposition",
			fmt.Sprintf("attachment; filename=%q", voice.ID+".wav"))
		http.ServeFile(w, r, voice.SamplePath)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(voice)
}

// handleTranscribe implements the POST /transcribe endpoint, running only
// the speech-to-text stage on an uploaded recording
func (h *HTTPServer) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	tr, ok := h.responder.(responder.Transcriber)
	if !ok {
		http.Error(w, "Transcription unsupported by configured provider", http.StatusNotImplemented)
		return
	}

	audioData, err := h.readAudioPart(r)
	if err != nil {
		h.logger.Warn("Rejected upload", slog.String("error", err.Error()))
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	text, err := tr.Transcribe(r.Context(), audioData)
	if err != nil {
		h.logger.Error("Transcription failed", slog.String("error", err.Error()))
		http.Error(w, "Transcription failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"text": text})
}

// speakRequest is the JSON body accepted by POST /speak
type speakRequest struct {
	Text    string `json:"text"`
	VoiceID string `json:"voice_id"`
}

// handleSpeak implements the POST /speak endpoint, running only the
// synthesis stage for a given text and registered voice
func (h *HTTPServer) handleSpeak(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sy, ok := h.responder.(responder.Synthesizer)
	if !ok {
		http.Error(w, "Synthesis unsupported by configured provider", http.StatusNotImplemented)
		return
	}

	var req speakRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.Text == "" {
		http.Error(w, "text field required", http.StatusBadRequest)
		return
	}
	if req.VoiceID == "" {
		http.Error(w, "voice_id field required", http.StatusBadRequest)
		return
	}

	voice, err := h.store.Get(req.VoiceID)
	if err != nil {
		if errors.Is(err, voices.ErrNotFound) {
			http.Error(w, "Voice not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Voice lookup failed", http.StatusInternalServerError)
		return
	}

	synthesisStart := time.Now()
	replyAudio, err := sy.Synthesize(r.Context(), req.Text, voice)
	if err != nil {
		h.logger.Error("Synthesis failed",
			slog.String("voice_id", voice.ID),
			slog.String("error", err.Error()))
		http.Error(w, "Synthesis failed", http.StatusInternalServerError)
		return
	}
	if h.metrics != nil {
		h.metrics.RecordSynthesis(time.Since(synthesisStart).Seconds())
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"audio":  audio.EncodeHex(replyAudio),
		"format": "wav",
	})
}

// handleRoot implements the / endpoint with API documentation
func (h *HTTPServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	apiDoc := map[string]interface{}{
		"service": "Voice Clone Assistant Server",
		"version": "1.0.0",
		"endpoints": map[string]interface{}{
			"POST /assistant?voice_id=":       "Upload a recording, receive a synthesized reply",
			"POST /transcribe":                "Transcribe an uploaded recording",
			"POST /speak":                     "Synthesize text in a registered voice",
			"GET /voices":                     "List registered voices",
			"POST /voices":                    "Register a voice from a WAV sample",
			"GET /voices/{voice_id}":          "Get voice details",
			"GET /voices/{voice_id}/download": "Download the voice's speaker sample",
			"GET /health":                     "Service health check",
			"GET /metrics":                    "Prometheus metrics",
		},
		"timestamp": time.Now().UTC(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(apiDoc)
}

// handleHealth implements the /health endpoint
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.mu.RLock()
	requests := h.requests
	h.mu.RUnlock()

	uptime := time.Since(h.startTime)

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    uptime.String(),
		"service": map[string]interface{}{
			"name":    "voice-clone-assistant",
			"version": "1.0.0",
		},
		"components": map[string]interface{}{
			"voices": map[string]interface{}{
				"status":     "running",
				"registered": h.store.Count(),
			},
			"assistant": map[string]interface{}{
				"status":   "running",
				"provider": h.config.Provider,
				"requests": requests,
			},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(health)
}

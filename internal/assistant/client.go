package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/m4ch14v3lli/voice-clone-assistant/internal/audio"
)

const (
	audioFieldName = "audio"
	uploadFilename = "audio.wav"
	audioMIMEType  = "audio/wav"
)

// ErrMalformedResponse reports a response body that is not the expected
// JSON shape or carries an undecodable hex audio payload. It is distinct
// from transport failures so callers can count decode errors separately.
var ErrMalformedResponse = errors.New("malformed assistant response")

// Client provides HTTP client functionality for assistant upload requests
type Client struct {
	config     Config
	httpClient *http.Client

	// Statistics
	totalRequests   uint64
	successRequests uint64
	failedRequests  uint64
	avgResponseTime time.Duration

	mu sync.RWMutex
}

// Config contains assistant client configuration
type Config struct {
	Endpoint string
	VoiceID  string
	Timeout  time.Duration
}

// Reply represents a parsed assistant response with the synthesized
// audio already decoded from its hex wire form
type Reply struct {
	Audio         []byte
	Transcription string
	ResponseText  string
	RequestID     string
	Elapsed       time.Duration
}

// wireResponse is the assistant endpoint's JSON body
type wireResponse struct {
	Audio         string `json:"audio"`
	Transcription string `json:"transcription,omitempty"`
	ResponseText  string `json:"response_text,omitempty"`
}

// ClientStats represents client statistics
type ClientStats struct {
	TotalRequests   uint64        `json:"total_requests"`
	SuccessRequests uint64        `json:"success_requests"`
	FailedRequests  uint64        `json:"failed_requests"`
	SuccessRate     float64       `json:"success_rate"`
	AvgResponseTime time.Duration `json:"avg_response_time"`
}

// NewClient creates a new assistant HTTP client
func NewClient(config Config) (*Client, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("endpoint cannot be empty")
	}

	if _, err := url.Parse(config.Endpoint); err != nil {
		return nil, fmt.Errorf("invalid endpoint: %w", err)
	}

	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	httpClient := &http.Client{
		Timeout: config.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	return &Client{
		config:     config,
		httpClient: httpClient,
	}, nil
}

// Submit uploads one recorded session as a WAV payload and returns the
// assistant's reply. Failed uploads are surfaced to the caller; there is
// no retry loop, a session is submitted exactly once.
func (c *Client) Submit(ctx context.Context, wavData []byte) (*Reply, error) {
	if len(wavData) == 0 {
		return nil, fmt.Errorf("audio payload cannot be empty")
	}

	startTime := time.Now()
	c.incrementTotalRequests()

	requestID := uuid.New().String()

	reply, err := c.doRequest(ctx, wavData, requestID)
	if err != nil {
		c.incrementFailedRequests()
		return nil, err
	}

	elapsed := time.Since(startTime)
	c.incrementSuccessRequests()
	c.updateAvgResponseTime(elapsed)

	reply.RequestID = requestID
	reply.Elapsed = elapsed
	return reply, nil
}

// doRequest performs a single HTTP request to the assistant endpoint
func (c *Client) doRequest(ctx context.Context, wavData []byte, requestID string) (*Reply, error) {
	body, contentType, err := c.createMultipartBody(wavData)
	if err != nil {
		return nil, fmt.Errorf("failed to create multipart body: %w", err)
	}

	requestURL, err := c.buildRequestURL()
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, requestURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", "Voice-Clone-Assistant/1.0")
	httpReq.Header.Set("X-Request-ID", requestID)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP error %d: %s", resp.StatusCode, string(respBody))
	}

	return parseReply(respBody)
}

// buildRequestURL appends the voice_id query parameter to the configured endpoint
func (c *Client) buildRequestURL() (string, error) {
	u, err := url.Parse(c.config.Endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint: %w", err)
	}

	if c.config.VoiceID != "" {
		q := u.Query()
		q.Set("voice_id", c.config.VoiceID)
		u.RawQuery = q.Encode()
	}

	return u.String(), nil
}

// createMultipartBody builds the multipart/form-data body with a single
// audio part. The part header is written explicitly so the part carries
// an audio/wav content type instead of application/octet-stream.
func (c *Client) createMultipartBody(wavData []byte) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name=%q; filename=%q`, audioFieldName, uploadFilename))
	header.Set("Content-Type", audioMIMEType)

	partWriter, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create audio part: %w", err)
	}

	if _, err := partWriter.Write(wavData); err != nil {
		return nil, "", fmt.Errorf("failed to write audio data: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}

	return &buf, writer.FormDataContentType(), nil
}

// parseReply decodes the JSON body and the hex audio payload inside it.
// A missing audio field or a malformed hex string fails the upload.
func parseReply(respBody []byte) (*Reply, error) {
	var wire wireResponse
	if err := json.Unmarshal(respBody, &wire); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON: %v", ErrMalformedResponse, err)
	}

	if wire.Audio == "" {
		return nil, fmt.Errorf("%w: missing audio field", ErrMalformedResponse)
	}

	audioData, err := audio.DecodeHex(wire.Audio)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	return &Reply{
		Audio:         audioData,
		Transcription: wire.Transcription,
		ResponseText:  wire.ResponseText,
	}, nil
}

// Statistics methods
func (c *Client) incrementTotalRequests() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalRequests++
}

func (c *Client) incrementSuccessRequests() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.successRequests++
}

func (c *Client) incrementFailedRequests() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failedRequests++
}

func (c *Client) updateAvgResponseTime(responseTime time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Simple moving average
	if c.avgResponseTime == 0 {
		c.avgResponseTime = responseTime
	} else {
		c.avgResponseTime = (c.avgResponseTime + responseTime) / 2
	}
}

// GetStats returns current client statistics
func (c *Client) GetStats() ClientStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	successRate := float64(0)
	if c.totalRequests > 0 {
		successRate = float64(c.successRequests) / float64(c.totalRequests) * 100
	}

	return ClientStats{
		TotalRequests:   c.totalRequests,
		SuccessRequests: c.successRequests,
		FailedRequests:  c.failedRequests,
		SuccessRate:     successRate,
		AvgResponseTime: c.avgResponseTime,
	}
}

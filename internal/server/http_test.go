package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/m4ch14v3lli/voice-clone-assistant/internal/audio"
	"github.com/m4ch14v3lli/voice-clone-assistant/internal/config"
	"github.com/m4ch14v3lli/voice-clone-assistant/internal/responder"
	"github.com/m4ch14v3lli/voice-clone-assistant/internal/voices"
)

// fakeResponder echoes the uploaded audio back as the reply
type fakeResponder struct {
	err error
}

func (f *fakeResponder) Respond(ctx context.Context, req responder.Request) (*responder.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &responder.Result{
		Transcription: "you said something",
		ResponseText:  "here is my reply",
		Audio:         req.Audio,
	}, nil
}

func (f *fakeResponder) Transcribe(ctx context.Context, audioData []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "you said something", nil
}

func (f *fakeResponder) Synthesize(ctx context.Context, text string, voice voices.Voice) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []byte("spoken:" + text + ":" + voice.ID), nil
}

// pipelineOnlyResponder supports the full assistant turn but neither
// standalone stage
type pipelineOnlyResponder struct{}

func (pipelineOnlyResponder) Respond(ctx context.Context, req responder.Request) (*responder.Result, error) {
	return &responder.Result{Audio: req.Audio}, nil
}

func testWAV(t *testing.T) []byte {
	t.Helper()
	pcm := make([]byte, 1600)
	data, err := audio.EncodeWAV(pcm, 16000)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}
	return data
}

func newTestServer(t *testing.T, rsp responder.Responder) (*HTTPServer, *voices.Store) {
	t.Helper()
	store, err := voices.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	cfg := config.ServerConfig{
		Address:        "127.0.0.1",
		Port:           8780,
		MaxUploadBytes: 10 << 20,
		Provider:       "openai",
	}
	logger := slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), nil))
	return NewHTTPServer(cfg, logger, store, rsp, nil), store
}

func multipartUpload(t *testing.T, field, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("CreateFormFile failed: %v", err)
	}
	part.Write(data)
	writer.Close()
	return &buf, writer.FormDataContentType()
}

func TestAssistantUpload(t *testing.T) {
	srv, store := newTestServer(t, &fakeResponder{})

	voice, err := store.Register("alice", testWAV(t))
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	wavData := testWAV(t)
	body, contentType := multipartUpload(t, "audio", "audio.wav", wavData)

	req := httptest.NewRequest(http.MethodPost, "/assistant?voice_id="+voice.ID, body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp assistantResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}

	decoded, err := audio.DecodeHex(resp.Audio)
	if err != nil {
		t.Fatalf("Reply audio is not valid hex: %v", err)
	}
	if !bytes.Equal(decoded, wavData) {
		t.Error("Decoded reply does not round-trip the uploaded audio")
	}

	if resp.Transcription != "you said something" {
		t.Errorf("Unexpected transcription: %q", resp.Transcription)
	}
}

func TestAssistantUnknownVoice(t *testing.T) {
	srv, _ := newTestServer(t, &fakeResponder{})

	body, contentType := multipartUpload(t, "audio", "audio.wav", testWAV(t))
	req := httptest.NewRequest(http.MethodPost, "/assistant?voice_id=missing", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown voice, got %d", rec.Code)
	}
}

func TestAssistantValidation(t *testing.T) {
	srv, store := newTestServer(t, &fakeResponder{})
	voice, _ := store.Register("alice", testWAV(t))

	t.Run("missing voice_id", func(t *testing.T) {
		body, contentType := multipartUpload(t, "audio", "audio.wav", testWAV(t))
		req := httptest.NewRequest(http.MethodPost, "/assistant", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", rec.Code)
		}
	})

	t.Run("missing audio part", func(t *testing.T) {
		body, contentType := multipartUpload(t, "wrong", "audio.wav", testWAV(t))
		req := httptest.NewRequest(http.MethodPost, "/assistant?voice_id="+voice.ID, body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", rec.Code)
		}
	})

	t.Run("invalid wav payload", func(t *testing.T) {
		body, contentType := multipartUpload(t, "audio", "audio.wav", []byte("not-a-wav"))
		req := httptest.NewRequest(http.MethodPost, "/assistant?voice_id="+voice.ID, body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", rec.Code)
		}
	})

	t.Run("method not allowed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/assistant?voice_id="+voice.ID, nil)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("Expected 405, got %d", rec.Code)
		}
	})
}

func TestAssistantPipelineFailure(t *testing.T) {
	srv, store := newTestServer(t, &fakeResponder{err: fmt.Errorf("synthesis broke")})
	voice, _ := store.Register("alice", testWAV(t))

	body, contentType := multipartUpload(t, "audio", "audio.wav", testWAV(t))
	req := httptest.NewRequest(http.MethodPost, "/assistant?voice_id="+voice.ID, body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500 for pipeline failure, got %d", rec.Code)
	}
}

func TestVoiceRegistrationAndListing(t *testing.T) {
	srv, _ := newTestServer(t, &fakeResponder{})

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, _ := writer.CreateFormFile("sample", "bob.wav")
	part.Write(testWAV(t))
	writer.WriteField("name", "bob")
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/voices", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var voice voices.Voice
	if err := json.Unmarshal(rec.Body.Bytes(), &voice); err != nil {
		t.Fatalf("Failed to parse registration response: %v", err)
	}
	if voice.ID == "" || voice.Name != "bob" {
		t.Errorf("Unexpected voice in response: %+v", voice)
	}

	listReq := httptest.NewRequest(http.MethodGet, "/voices", nil)
	listRec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(listRec, listReq)

	if listRec.Code != http.StatusOK {
		t.Fatalf("Expected 200 listing voices, got %d", listRec.Code)
	}

	var listing struct {
		TotalVoices int            `json:"total_voices"`
		Voices      []voices.Voice `json:"voices"`
	}
	if err := json.Unmarshal(listRec.Body.Bytes(), &listing); err != nil {
		t.Fatalf("Failed to parse listing: %v", err)
	}
	if listing.TotalVoices != 1 {
		t.Errorf("Expected 1 voice, got %d", listing.TotalVoices)
	}
}

func TestVoiceDetail(t *testing.T) {
	srv, store := newTestServer(t, &fakeResponder{})
	voice, _ := store.Register("dana", testWAV(t))

	req := httptest.NewRequest(http.MethodGet, "/voices/"+voice.ID, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var got voices.Voice
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("Failed to parse voice detail: %v", err)
	}
	if got.ID != voice.ID || got.Name != "dana" {
		t.Errorf("Unexpected voice detail: %+v", got)
	}

	missingReq := httptest.NewRequest(http.MethodGet, "/voices/nope", nil)
	missingRec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(missingRec, missingReq)
	if missingRec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown voice, got %d", missingRec.Code)
	}
}

func TestVoiceSampleDownload(t *testing.T) {
	srv, store := newTestServer(t, &fakeResponder{})
	sample := testWAV(t)
	voice, _ := store.Register("dana", sample)

	req := httptest.NewRequest(http.MethodGet, "/voices/"+voice.ID+"/download", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != "application/octet-stream" {
		t.Errorf("Expected octet-stream content type, got %q", got)
	}
	if !bytes.Equal(rec.Body.Bytes(), sample) {
		t.Error("Downloaded sample does not match the registered WAV")
	}

	missingReq := httptest.NewRequest(http.MethodGet, "/voices/nope/download", nil)
	missingRec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(missingRec, missingReq)
	if missingRec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown voice, got %d", missingRec.Code)
	}
}

func TestTranscribeEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, &fakeResponder{})

	body, contentType := multipartUpload(t, "audio", "audio.wav", testWAV(t))
	req := httptest.NewRequest(http.MethodPost, "/transcribe", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if resp.Text != "you said something" {
		t.Errorf("Unexpected transcription: %q", resp.Text)
	}

	t.Run("invalid wav payload", func(t *testing.T) {
		body, contentType := multipartUpload(t, "audio", "audio.wav", []byte("not-a-wav"))
		req := httptest.NewRequest(http.MethodPost, "/transcribe", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", rec.Code)
		}
	})

	t.Run("unsupported provider", func(t *testing.T) {
		bare, _ := newTestServer(t, pipelineOnlyResponder{})
		body, contentType := multipartUpload(t, "audio", "audio.wav", testWAV(t))
		req := httptest.NewRequest(http.MethodPost, "/transcribe", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		bare.Handler().ServeHTTP(rec, req)
		if rec.Code != http.StatusNotImplemented {
			t.Errorf("Expected 501, got %d", rec.Code)
		}
	})
}

func TestSpeakEndpoint(t *testing.T) {
	srv, store := newTestServer(t, &fakeResponder{})
	voice, _ := store.Register("erin", testWAV(t))

	speak := func(t *testing.T, srv *HTTPServer, payload string) *httptest.ResponseRecorder {
		t.Helper()
		req := httptest.NewRequest(http.MethodPost, "/speak", bytes.NewBufferString(payload))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		return rec
	}

	rec := speak(t, srv, fmt.Sprintf(`{"text": "hello there", "voice_id": %q}`, voice.ID))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Audio  string `json:"audio"`
		Format string `json:"format"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	decoded, err := audio.DecodeHex(resp.Audio)
	if err != nil {
		t.Fatalf("Reply audio is not valid hex: %v", err)
	}
	want := "spoken:hello there:" + voice.ID
	if string(decoded) != want {
		t.Errorf("Expected %q, got %q", want, decoded)
	}
	if resp.Format != "wav" {
		t.Errorf("Unexpected format: %q", resp.Format)
	}

	t.Run("unknown voice", func(t *testing.T) {
		rec := speak(t, srv, `{"text": "hi", "voice_id": "missing"}`)
		if rec.Code != http.StatusNotFound {
			t.Errorf("Expected 404, got %d", rec.Code)
		}
	})

	t.Run("missing text", func(t *testing.T) {
		rec := speak(t, srv, fmt.Sprintf(`{"voice_id": %q}`, voice.ID))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", rec.Code)
		}
	})

	t.Run("invalid body", func(t *testing.T) {
		rec := speak(t, srv, `{not json`)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", rec.Code)
		}
	})

	t.Run("unsupported provider", func(t *testing.T) {
		bare, bareStore := newTestServer(t, pipelineOnlyResponder{})
		bareVoice, _ := bareStore.Register("erin", testWAV(t))
		rec := speak(t, bare, fmt.Sprintf(`{"text": "hi", "voice_id": %q}`, bareVoice.ID))
		if rec.Code != http.StatusNotImplemented {
			t.Errorf("Expected 501, got %d", rec.Code)
		}
	})
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, &fakeResponder{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var health map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatalf("Failed to parse health response: %v", err)
	}
	if health["status"] != "healthy" {
		t.Errorf("Expected healthy status, got %v", health["status"])
	}
}

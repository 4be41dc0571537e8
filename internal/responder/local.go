package responder

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"

	"github.com/m4ch14v3lli/voice-clone-assistant/internal/config"
	"github.com/m4ch14v3lli/voice-clone-assistant/internal/voices"
)

// LocalResponder transcribes and chats through the OpenAI API but
// synthesizes the reply with a local Coqui TTS process, cloning the
// registered voice from its stored speaker sample.
type LocalResponder struct {
	client    *openai.Client
	openaiCfg config.OpenAIConfig
	localCfg  config.LocalConfig
	logger    *slog.Logger
}

// NewLocalResponder creates a responder using a local TTS command for synthesis
func NewLocalResponder(openaiCfg config.OpenAIConfig, localCfg config.LocalConfig, logger *slog.Logger) (*LocalResponder, error) {
	if openaiCfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key cannot be empty")
	}
	if localCfg.TTSCommand == "" {
		return nil, fmt.Errorf("TTS command cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &LocalResponder{
		client:    openai.NewClient(openaiCfg.APIKey),
		openaiCfg: openaiCfg,
		localCfg:  localCfg,
		logger:    logger,
	}, nil
}

// Respond transcribes the recording, generates a short reply and clones
// the registered voice locally
func (r *LocalResponder) Respond(ctx context.Context, req Request) (*Result, error) {
	startTime := time.Now()

	transcription, err := r.Transcribe(ctx, req.Audio)
	if err != nil {
		return nil, fmt.Errorf("transcription failed: %w", err)
	}

	chatResp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     r.openaiCfg.ChatModel,
		MaxTokens: maxResponseTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: transcription},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion returned no choices")
	}
	responseText := chatResp.Choices[0].Message.Content

	replyAudio, err := r.Synthesize(ctx, responseText, req.Voice)
	if err != nil {
		return nil, fmt.Errorf("speech synthesis failed: %w", err)
	}

	r.logger.Info("Assistant turn completed",
		"voice_id", req.Voice.ID,
		"provider", "local",
		"reply_bytes", len(replyAudio),
		"duration", time.Since(startTime))

	return &Result{
		Transcription: transcription,
		ResponseText:  responseText,
		Audio:         replyAudio,
	}, nil
}

// Transcribe converts an uploaded recording to text
func (r *LocalResponder) Transcribe(ctx context.Context, audioData []byte) (string, error) {
	resp, err := r.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    r.openaiCfg.TranscribeModel,
		FilePath: "audio.wav",
		Reader:   bytes.NewReader(audioData),
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// Synthesize clones the registered voice from its speaker sample
func (r *LocalResponder) Synthesize(ctx context.Context, text string, voice voices.Voice) ([]byte, error) {
	return r.synthesize(ctx, text, voice.SamplePath)
}

// synthesize runs the local TTS command and reads back the generated WAV
func (r *LocalResponder) synthesize(ctx context.Context, text, speakerPath string) ([]byte, error) {
	if speakerPath == "" {
		return nil, fmt.Errorf("voice has no speaker sample")
	}

	outPath := filepath.Join(os.TempDir(), fmt.Sprintf("voiceassist-tts-%s.wav", uuid.New().String()))
	defer os.Remove(outPath)

	args := []string{
		"--text", text,
		"--model_name", r.localCfg.ModelName,
		"--speaker_wav", speakerPath,
		"--language_idx", "en",
		"--out_path", outPath,
	}

	cmd := exec.CommandContext(ctx, r.localCfg.TTSCommand, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("TTS command failed: %w (%s)", err, stderr.String())
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read synthesized audio: %w", err)
	}
	return data, nil
}

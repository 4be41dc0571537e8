package responder

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/m4ch14v3lli/voice-clone-assistant/internal/config"
	"github.com/m4ch14v3lli/voice-clone-assistant/internal/voices"
)

const maxResponseTokens = 400

// OpenAIResponder runs the transcribe, chat and synthesize steps
// against the OpenAI API. The registered voice sample cannot be used
// for cloning here, so the voice name selects the closest built-in
// speech voice instead.
type OpenAIResponder struct {
	client *openai.Client
	config config.OpenAIConfig
	logger *slog.Logger
}

// NewOpenAIResponder creates a responder backed by the OpenAI API
func NewOpenAIResponder(cfg config.OpenAIConfig, logger *slog.Logger) (*OpenAIResponder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &OpenAIResponder{
		client: openai.NewClient(cfg.APIKey),
		config: cfg,
		logger: logger,
	}, nil
}

// Respond transcribes the recording, generates a short reply and
// synthesizes it as WAV audio
func (r *OpenAIResponder) Respond(ctx context.Context, req Request) (*Result, error) {
	startTime := time.Now()

	transcription, err := r.Transcribe(ctx, req.Audio)
	if err != nil {
		return nil, fmt.Errorf("transcription failed: %w", err)
	}

	responseText, err := r.chat(ctx, transcription)
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}

	replyAudio, err := r.Synthesize(ctx, responseText, req.Voice)
	if err != nil {
		return nil, fmt.Errorf("speech synthesis failed: %w", err)
	}

	r.logger.Info("Assistant turn completed",
		"voice_id", req.Voice.ID,
		"transcription_chars", len(transcription),
		"response_chars", len(responseText),
		"reply_bytes", len(replyAudio),
		"duration", time.Since(startTime))

	return &Result{
		Transcription: transcription,
		ResponseText:  responseText,
		Audio:         replyAudio,
	}, nil
}

// Transcribe converts an uploaded recording to text
func (r *OpenAIResponder) Transcribe(ctx context.Context, audioData []byte) (string, error) {
	resp, err := r.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    r.config.TranscribeModel,
		FilePath: "audio.wav",
		Reader:   bytes.NewReader(audioData),
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

func (r *OpenAIResponder) chat(ctx context.Context, userText string) (string, error) {
	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     r.config.ChatModel,
		MaxTokens: maxResponseTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userText},
		},
	})
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Synthesize speaks text as WAV audio in the built-in voice closest to
// the registered voice's name
func (r *OpenAIResponder) Synthesize(ctx context.Context, text string, voice voices.Voice) ([]byte, error) {
	resp, err := r.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(r.config.TTSModel),
		Input:          text,
		Voice:          speechVoice(voice.Name),
		ResponseFormat: openai.SpeechResponseFormatWav,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Close()

	return io.ReadAll(resp)
}

// speechVoice maps a registered voice name onto a built-in speech voice
func speechVoice(name string) openai.SpeechVoice {
	switch strings.ToLower(name) {
	case "alloy":
		return openai.VoiceAlloy
	case "echo":
		return openai.VoiceEcho
	case "fable":
		return openai.VoiceFable
	case "onyx":
		return openai.VoiceOnyx
	case "nova":
		return openai.VoiceNova
	case "shimmer":
		return openai.VoiceShimmer
	default:
		return openai.VoiceAlloy
	}
}

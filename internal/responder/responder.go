package responder

import (
	"context"

	"github.com/m4ch14v3lli/voice-clone-assistant/internal/voices"
)

// Request carries one uploaded recording and the voice to reply in
type Request struct {
	Audio []byte
	Voice voices.Voice
}

// Result is the full assistant turn for one request
type Result struct {
	Transcription string
	ResponseText  string
	Audio         []byte
}

// Responder turns an uploaded recording into a spoken reply
type Responder interface {
	Respond(ctx context.Context, req Request) (*Result, error)
}

// Transcriber converts uploaded audio to text, the first pipeline stage
// on its own
type Transcriber interface {
	Transcribe(ctx context.Context, audioData []byte) (string, error)
}

// Synthesizer speaks text in a registered voice, the last pipeline stage
// on its own
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, voice voices.Voice) ([]byte, error)
}

const systemPrompt = "You are a helpful voice assistant. Keep answers short and conversational; they will be spoken aloud."

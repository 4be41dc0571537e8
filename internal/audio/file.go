package audio

import (
	"fmt"
	"os"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WriteWAVFile writes raw little-endian PCM-16 audio to a WAV file.
// Used by the capture cache to keep a replayable copy of each session.
func WriteWAVFile(path string, pcmData []byte, sampleRate, channels int) error {
	if len(pcmData) == 0 || len(pcmData)%2 != 0 {
		return fmt.Errorf("invalid PCM-16 payload: %d bytes", len(pcmData))
	}

	if sampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	if channels <= 0 {
		channels = 1
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create WAV file %s: %w", path, err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)

	buf := &gaudio.IntBuffer{
		Format: &gaudio.Format{
			NumChannels: channels,
			SampleRate:  sampleRate,
		},
		Data:           make([]int, len(pcmData)/2),
		SourceBitDepth: 16,
	}
	for i := range buf.Data {
		buf.Data[i] = int(int16(pcmData[i*2]) | int16(pcmData[i*2+1])<<8)
	}

	if err := enc.Write(buf); err != nil {
		enc.Close()
		return fmt.Errorf("failed to write WAV samples: %w", err)
	}

	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to finalize WAV file: %w", err)
	}

	return nil
}

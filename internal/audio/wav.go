package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

const wavHeaderSize = 44

// wavHeader is the canonical 44-byte RIFF/WAVE header for PCM audio.
type wavHeader struct {
	ChunkID       [4]byte // "RIFF"
	ChunkSize     uint32  // file size - 8
	Format        [4]byte // "WAVE"
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32  // 16 for PCM
	AudioFormat   uint16  // 1 for PCM
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32 // SampleRate * NumChannels * BitsPerSample / 8
	BlockAlign    uint16 // NumChannels * BitsPerSample / 8
	BitsPerSample uint16
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32  // payload bytes
}

// PCM describes decoded PCM-16 audio.
type PCM struct {
	SampleRate int
	Channels   int
	Data       []byte // little-endian 16-bit samples
}

// Samples converts the raw little-endian data to int16 samples.
func (p PCM) Samples() []int16 {
	samples := make([]int16, len(p.Data)/2)
	for i := range samples {
		samples[i] = int16(p.Data[i*2]) | int16(p.Data[i*2+1])<<8
	}
	return samples
}

// Duration returns the audio duration in seconds.
func (p PCM) Duration() float64 {
	if p.SampleRate <= 0 || p.Channels <= 0 {
		return 0
	}
	return float64(len(p.Data)/2) / float64(p.SampleRate*p.Channels)
}

// EncodeWAV wraps raw little-endian PCM-16 mono bytes in a WAV container.
// This is the upload payload format: captured chunks concatenated and
// tagged as audio/wav.
func EncodeWAV(pcmData []byte, sampleRate int) ([]byte, error) {
	if len(pcmData) == 0 {
		return nil, fmt.Errorf("cannot encode empty audio payload")
	}

	if len(pcmData)%2 != 0 {
		return nil, fmt.Errorf("PCM-16 payload length must be even, got %d bytes", len(pcmData))
	}

	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	const (
		numChannels   = uint16(1)
		bitsPerSample = uint16(16)
	)

	dataSize := uint32(len(pcmData))
	header := wavHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   numChannels,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate) * uint32(numChannels) * uint32(bitsPerSample) / 8,
		BlockAlign:    numChannels * bitsPerSample / 8,
		BitsPerSample: bitsPerSample,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}

	buf := bytes.NewBuffer(make([]byte, 0, wavHeaderSize+len(pcmData)))
	if err := binary.Write(buf, binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("failed to write WAV header: %w", err)
	}
	buf.Write(pcmData)

	return buf.Bytes(), nil
}

// DecodeWAV parses a PCM-16 WAV payload, as returned by the assistant
// endpoint, into raw samples suitable for playback.
func DecodeWAV(data []byte) (PCM, error) {
	header, err := parseHeader(data)
	if err != nil {
		return PCM{}, err
	}

	if header.AudioFormat != 1 {
		return PCM{}, fmt.Errorf("unsupported audio format %d (only PCM is supported)", header.AudioFormat)
	}

	if header.BitsPerSample != 16 {
		return PCM{}, fmt.Errorf("unsupported bit depth %d (only 16-bit is supported)", header.BitsPerSample)
	}

	payload := data[wavHeaderSize:]
	if int(header.Subchunk2Size) < len(payload) {
		payload = payload[:header.Subchunk2Size]
	}
	if len(payload) == 0 || len(payload)%2 != 0 {
		return PCM{}, fmt.Errorf("invalid WAV data chunk: %d bytes", len(payload))
	}

	return PCM{
		SampleRate: int(header.SampleRate),
		Channels:   int(header.NumChannels),
		Data:       payload,
	}, nil
}

// ValidateWAV checks the container markers without decoding the payload.
func ValidateWAV(data []byte) error {
	_, err := parseHeader(data)
	return err
}

// WAVDuration returns the duration of a WAV payload in seconds.
func WAVDuration(data []byte) (float64, error) {
	header, err := parseHeader(data)
	if err != nil {
		return 0, err
	}

	if header.SampleRate == 0 || header.BlockAlign == 0 {
		return 0, fmt.Errorf("invalid WAV header: zero sample rate or block align")
	}

	frames := float64(header.Subchunk2Size) / float64(header.BlockAlign)
	return frames / float64(header.SampleRate), nil
}

func parseHeader(data []byte) (wavHeader, error) {
	var header wavHeader

	if len(data) < wavHeaderSize {
		return header, fmt.Errorf("WAV data too short: need at least %d bytes, got %d", wavHeaderSize, len(data))
	}

	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &header); err != nil {
		return header, fmt.Errorf("failed to read WAV header: %w", err)
	}

	if string(header.ChunkID[:]) != "RIFF" {
		return header, fmt.Errorf("invalid WAV file: missing RIFF header")
	}

	if string(header.Format[:]) != "WAVE" {
		return header, fmt.Errorf("invalid WAV file: missing WAVE format")
	}

	if string(header.Subchunk1ID[:]) != "fmt " {
		return header, fmt.Errorf("invalid WAV file: missing fmt chunk")
	}

	if string(header.Subchunk2ID[:]) != "data" {
		return header, fmt.Errorf("invalid WAV file: missing data chunk")
	}

	return header, nil
}

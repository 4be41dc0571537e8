package audio

import (
	"encoding/hex"
	"fmt"
)

// EncodeHex encodes audio bytes as lowercase two-hex-digit byte pairs,
// most significant nibble first. This is the wire format of the `audio`
// field in the assistant response.
func EncodeHex(data []byte) string {
	return hex.EncodeToString(data)
}

// DecodeHex decodes a hex audio string. Each adjacent pair of hex digits
// (case-insensitive) is one byte; the empty string decodes to an empty
// payload. Odd-length input and non-hex characters are decoding errors;
// the result is never silently truncated.
func DecodeHex(s string) ([]byte, error) {
	if len(s) == 0 {
		return []byte{}, nil
	}

	if len(s)%2 != 0 {
		return nil, fmt.Errorf("odd-length hex audio string: %d characters", len(s))
	}

	data, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex audio string: %w", err)
	}

	return data, nil
}

// Package playback plays synthesized assistant replies. Two backends are
// provided: direct output through PortAudio and an external player
// command. Both release the previous playback resource when a new reply
// replaces it.
package playback

import "context"

// Player plays one audio payload, replacing whatever was playing before.
type Player interface {
	// Play blocks until playback finishes or the context is cancelled.
	Play(ctx context.Context, wavData []byte) error

	// Close releases any resource held for the most recent playback.
	Close() error
}

package playback

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// replyFile is one written reply and the lifetime of the command playing
// it; done is closed when that command has exited.
type replyFile struct {
	path string
	done chan struct{}
}

// CommandPlayer plays replies through an external player such as aplay,
// afplay or ffplay. Each reply is written to a temp file; the previous
// reply's file is removed once its player command has exited, never
// while it may still be reading it.
type CommandPlayer struct {
	command string

	mu   sync.Mutex
	last *replyFile
}

// NewCommandPlayer creates a player that invokes the given command with
// the reply file path as its only argument.
func NewCommandPlayer(command string) *CommandPlayer {
	return &CommandPlayer{command: command}
}

// Play writes the payload to a temp file and runs the player on it.
func (c *CommandPlayer) Play(ctx context.Context, wavData []byte) error {
	if len(wavData) == 0 {
		return fmt.Errorf("empty reply audio")
	}

	path := filepath.Join(os.TempDir(), fmt.Sprintf("voiceassist-reply-%s.wav", uuid.NewString()))
	if err := os.WriteFile(path, wavData, 0600); err != nil {
		return fmt.Errorf("failed to write reply audio: %w", err)
	}

	rf := &replyFile{path: path, done: make(chan struct{})}

	c.mu.Lock()
	prev := c.last
	c.last = rf
	c.mu.Unlock()

	if prev != nil {
		releaseWhenDone(prev)
	}

	cmd := exec.CommandContext(ctx, c.command, path)
	err := cmd.Run()
	close(rf.done)
	if err != nil {
		return fmt.Errorf("player command %q failed: %w", c.command, err)
	}

	return nil
}

// releaseWhenDone removes a replaced reply file after its player command
// has exited. Removal is immediate when the command already finished.
func releaseWhenDone(prev *replyFile) {
	select {
	case <-prev.done:
		_ = os.Remove(prev.path)
	default:
		go func() {
			<-prev.done
			_ = os.Remove(prev.path)
		}()
	}
}

// Close removes the most recent reply file, waiting out its command the
// same way replacement does.
func (c *CommandPlayer) Close() error {
	c.mu.Lock()
	last := c.last
	c.last = nil
	c.mu.Unlock()

	if last == nil {
		return nil
	}

	select {
	case <-last.done:
		if err := os.Remove(last.path); err != nil && !os.IsNotExist(err) {
			return err
		}
	default:
		go func() {
			<-last.done
			_ = os.Remove(last.path)
		}()
	}
	return nil
}

// Package voices holds the in-memory voice registry used by the
// assistant server. A voice pairs a generated identifier with a
// reference WAV sample used for cloning.
package voices

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/m4ch14v3lli/voice-clone-assistant/internal/audio"
)

// ErrNotFound is returned when a voice ID is not registered
var ErrNotFound = errors.New("voice not found")

// Voice represents one registered voice
type Voice struct {
	ID         string    `json:"voice_id"`
	Name       string    `json:"name"`
	SamplePath string    `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

// Store is an in-memory voice registry. Samples are written under the
// store's data directory so speaker files survive for the duration of
// the process; registrations are not persisted across restarts.
type Store struct {
	dataDir string
	voices  map[string]Voice
	mu      sync.RWMutex
}

// NewStore creates a voice store writing samples under dataDir
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		dataDir = filepath.Join(os.TempDir(), "voiceassist-voices")
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create voice data directory: %w", err)
	}

	return &Store{
		dataDir: dataDir,
		voices:  make(map[string]Voice),
	}, nil
}

// Register validates the sample, stores it and returns the new voice
func (s *Store) Register(name string, sample []byte) (Voice, error) {
	if name == "" {
		return Voice{}, fmt.Errorf("voice name cannot be empty")
	}

	if err := audio.ValidateWAV(sample); err != nil {
		return Voice{}, fmt.Errorf("invalid voice sample: %w", err)
	}

	voice := Voice{
		ID:        uuid.New().String(),
		Name:      name,
		CreatedAt: time.Now(),
	}
	voice.SamplePath = filepath.Join(s.dataDir, voice.ID+".wav")

	if err := os.WriteFile(voice.SamplePath, sample, 0o644); err != nil {
		return Voice{}, fmt.Errorf("failed to write voice sample: %w", err)
	}

	s.mu.Lock()
	s.voices[voice.ID] = voice
	s.mu.Unlock()

	return voice, nil
}

// Get returns a voice by ID
func (s *Store) Get(id string) (Voice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	voice, ok := s.voices[id]
	if !ok {
		return Voice{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return voice, nil
}

// List returns all registered voices
func (s *Store) List() []Voice {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]Voice, 0, len(s.voices))
	for _, voice := range s.voices {
		list = append(list, voice)
	}
	return list
}

// Count returns the number of registered voices
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.voices)
}

// SeedFromDir registers every WAV file found in dir, using the file
// name without extension as the voice name. Missing directories are
// not an error so a fresh deployment starts with an empty registry.
func (s *Store) SeedFromDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read seed directory: %w", err)
	}

	seeded := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(strings.ToLower(entry.Name()), ".wav") {
			continue
		}

		sample, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return seeded, fmt.Errorf("failed to read seed sample %s: %w", entry.Name(), err)
		}

		name := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		if _, err := s.Register(name, sample); err != nil {
			return seeded, fmt.Errorf("failed to seed voice %s: %w", name, err)
		}
		seeded++
	}

	return seeded, nil
}

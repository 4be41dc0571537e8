package audio

import (
	"sync"
	"time"
)

// ChunkBuffer accumulates raw audio chunks for a single capture session.
// Chunks are kept in delivery order; the concatenation of all appended
// chunks is the session's upload payload. The capture goroutine is the
// only writer and the session controller the only reader, but access is
// still guarded so stats can be read while recording.
type ChunkBuffer struct {
	data       []byte
	chunkCount int
	lastAppend time.Time

	mu sync.RWMutex
}

// BufferStats represents buffer statistics for monitoring.
type BufferStats struct {
	ChunkCount int       `json:"chunk_count"`
	SizeBytes  int       `json:"size_bytes"`
	LastAppend time.Time `json:"last_append"`
}

// NewChunkBuffer creates a buffer pre-sized for a couple of seconds of
// PCM-16 mono audio at the given sample rate.
func NewChunkBuffer(sampleRate int) *ChunkBuffer {
	capacity := sampleRate * 4
	if capacity <= 0 {
		capacity = 16 * 1024
	}
	return &ChunkBuffer{
		data: make([]byte, 0, capacity),
	}
}

// Append adds one chunk to the end of the buffer.
func (b *ChunkBuffer) Append(chunk []byte) {
	if len(chunk) == 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.data = append(b.data, chunk...)
	b.chunkCount++
	b.lastAppend = time.Now()
}

// Take returns the concatenated chunks in delivery order and resets the
// buffer. The returned slice is owned by the caller; later appends never
// alias it.
func (b *ChunkBuffer) Take() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	payload := b.data
	b.data = make([]byte, 0, cap(payload))
	b.chunkCount = 0
	return payload
}

// Reset discards any buffered chunks.
func (b *ChunkBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.data = b.data[:0]
	b.chunkCount = 0
}

// Size returns the number of buffered bytes.
func (b *ChunkBuffer) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.data)
}

// ChunkCount returns the number of chunks appended since the last reset.
func (b *ChunkBuffer) ChunkCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.chunkCount
}

// LastAppend returns the time of the most recent append.
func (b *ChunkBuffer) LastAppend() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastAppend
}

// GetStats returns current buffer statistics.
func (b *ChunkBuffer) GetStats() BufferStats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return BufferStats{
		ChunkCount: b.chunkCount,
		SizeBytes:  len(b.data),
		LastAppend: b.lastAppend,
	}
}

package audio

import (
	"bytes"
	"testing"
	"time"
)

func TestNewChunkBuffer(t *testing.T) {
	buffer := NewChunkBuffer(16000)

	if buffer == nil {
		t.Fatal("NewChunkBuffer returned nil")
	}

	if buffer.Size() != 0 {
		t.Errorf("Expected initial size 0, got %d", buffer.Size())
	}

	if buffer.ChunkCount() != 0 {
		t.Errorf("Expected initial chunk count 0, got %d", buffer.ChunkCount())
	}
}

func TestAppendPreservesDeliveryOrder(t *testing.T) {
	buffer := NewChunkBuffer(16000)

	chunks := [][]byte{
		{0x01, 0x02},
		{0x03},
		{0x04, 0x05, 0x06},
	}

	var want []byte
	for _, chunk := range chunks {
		buffer.Append(chunk)
		want = append(want, chunk...)
	}

	if buffer.ChunkCount() != len(chunks) {
		t.Errorf("Expected %d chunks, got %d", len(chunks), buffer.ChunkCount())
	}

	got := buffer.Take()
	if !bytes.Equal(got, want) {
		t.Errorf("Expected payload %v, got %v", want, got)
	}
}

func TestAppendIgnoresEmptyChunks(t *testing.T) {
	buffer := NewChunkBuffer(16000)

	buffer.Append(nil)
	buffer.Append([]byte{})

	if buffer.ChunkCount() != 0 {
		t.Errorf("Expected 0 chunks after empty appends, got %d", buffer.ChunkCount())
	}
}

func TestTakeResetsBuffer(t *testing.T) {
	buffer := NewChunkBuffer(16000)

	buffer.Append(make([]byte, 100))
	buffer.Append(make([]byte, 200))

	payload := buffer.Take()
	if len(payload) != 300 {
		t.Errorf("Expected 300-byte payload, got %d", len(payload))
	}

	if buffer.Size() != 0 {
		t.Errorf("Expected empty buffer after Take, got %d bytes", buffer.Size())
	}

	if buffer.ChunkCount() != 0 {
		t.Errorf("Expected 0 chunks after Take, got %d", buffer.ChunkCount())
	}
}

func TestTakenPayloadNotAliased(t *testing.T) {
	buffer := NewChunkBuffer(16000)

	buffer.Append([]byte{0xAA, 0xBB})
	payload := buffer.Take()

	// A second session's chunks must not show up in the first payload.
	buffer.Append([]byte{0xCC, 0xDD})

	if !bytes.Equal(payload, []byte{0xAA, 0xBB}) {
		t.Errorf("Taken payload was mutated by a later append: %v", payload)
	}
}

func TestReset(t *testing.T) {
	buffer := NewChunkBuffer(16000)

	buffer.Append(make([]byte, 50))
	buffer.Reset()

	if buffer.Size() != 0 || buffer.ChunkCount() != 0 {
		t.Errorf("Expected empty buffer after Reset, got %d bytes, %d chunks",
			buffer.Size(), buffer.ChunkCount())
	}
}

func TestBufferStats(t *testing.T) {
	buffer := NewChunkBuffer(16000)

	before := time.Now()
	buffer.Append(make([]byte, 320))
	buffer.Append(make([]byte, 160))

	stats := buffer.GetStats()

	if stats.ChunkCount != 2 {
		t.Errorf("Expected 2 chunks, got %d", stats.ChunkCount)
	}

	if stats.SizeBytes != 480 {
		t.Errorf("Expected 480 bytes, got %d", stats.SizeBytes)
	}

	if stats.LastAppend.Before(before) {
		t.Error("Expected last append time to be updated")
	}
}

func TestConcurrentAccess(t *testing.T) {
	buffer := NewChunkBuffer(16000)

	done := make(chan bool)

	for i := 0; i < 5; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				_ = buffer.Size()
				_ = buffer.ChunkCount()
				_ = buffer.LastAppend()
				_ = buffer.GetStats()
			}
			done <- true
		}()
	}

	go func() {
		chunk := make([]byte, 160)
		for j := 0; j < 500; j++ {
			buffer.Append(chunk)
		}
		done <- true
	}()

	for i := 0; i < 6; i++ {
		<-done
	}

	if buffer.Size() != 500*160 {
		t.Errorf("Expected %d bytes after concurrent writes, got %d", 500*160, buffer.Size())
	}
}

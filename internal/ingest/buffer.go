package ingest

import (
	"sync"

	"whalewatch/internal/alert"
)

// DefaultBufferCapacity bounds the fallback buffer when no capacity is configured.
const DefaultBufferCapacity = 100

// Buffer is a fixed-capacity ring of recent messages, newest first.
// Once full, each push overwrites the oldest entry.
type Buffer struct {
	mu    sync.Mutex
	slots []alert.RawAlertMessage
	next  int
	size  int
}

// NewBuffer allocates a buffer holding at most capacity messages.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultBufferCapacity
	}
	return &Buffer{slots: make([]alert.RawAlertMessage, capacity)}
}

// Push inserts msg at the head, evicting the oldest message when full.
func (b *Buffer) Push(msg alert.RawAlertMessage) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.slots[b.next] = msg
	b.next = (b.next + 1) % len(b.slots)
	if b.size < len(b.slots) {
		b.size++
	}
	return b.size
}

// Recent returns up to limit messages, newest first. An empty channel
// matches every message; limit <= 0 returns everything held.
func (b *Buffer) Recent(channel string, limit int) []alert.RawAlertMessage {
	b.mu.Lock()
	defer b.mu.Unlock()

	if limit <= 0 || limit > b.size {
		limit = b.size
	}
	out := make([]alert.RawAlertMessage, 0, limit)
	capacity := len(b.slots)
	for i := 0; i < b.size && len(out) < limit; i++ {
		msg := b.slots[(b.next-1-i+capacity)%capacity]
		if channel != "" && msg.ChannelID != channel {
			continue
		}
		out = append(out, msg)
	}
	return out
}

// Len reports the number of buffered messages.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Capacity reports the maximum number of buffered messages.
func (b *Buffer) Capacity() int {
	return len(b.slots)
}

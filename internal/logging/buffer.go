package logging

import (
	"sync"
	"time"
)

// LogEntry is one structured log line retained for the history and
// streaming endpoints.
type LogEntry struct {
	Timestamp  time.Time      `json:"timestamp"`
	Level      string         `json:"level"`
	Module     string         `json:"module"`
	Message    string         `json:"message"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// RingBuffer retains the most recent log entries so late-joining readers
// can catch up on history.
type RingBuffer struct {
	mu      sync.RWMutex
	entries []LogEntry
	total   int
}

// NewRingBuffer returns a buffer that holds at most capacity entries.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &RingBuffer{entries: make([]LogEntry, capacity)}
}

// Write appends an entry, evicting the oldest one once the buffer is full.
func (b *RingBuffer) Write(entry LogEntry) {
	b.mu.Lock()
	b.entries[b.total%len(b.entries)] = entry
	b.total++
	b.mu.Unlock()
}

// ReadAll returns the retained entries, oldest first.
func (b *RingBuffer) ReadAll() []LogEntry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.total == 0 {
		return nil
	}
	if b.total <= len(b.entries) {
		out := make([]LogEntry, b.total)
		copy(out, b.entries[:b.total])
		return out
	}

	// Full buffer: the oldest entry sits right after the most recent write.
	out := make([]LogEntry, len(b.entries))
	start := b.total % len(b.entries)
	n := copy(out, b.entries[start:])
	copy(out[n:], b.entries[:start])
	return out
}

// Count reports how many entries are currently retained.
func (b *RingBuffer) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.total < len(b.entries) {
		return b.total
	}
	return len(b.entries)
}

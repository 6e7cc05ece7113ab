package logging

import (
	"sync"
	"time"
)

// LogEntry is one record kept for /api/logs.
type LogEntry struct {
	Timestamp  time.Time      `json:"timestamp"`
	Level      string         `json:"level"`
	Module     string         `json:"module"`
	Message    string         `json:"message"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// RingBuffer keeps the most recent log entries. Safe for concurrent use.
type RingBuffer struct {
	mu    sync.RWMutex
	buf   []LogEntry
	next  int
	total int
}

// NewRingBuffer returns a buffer holding up to capacity entries.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &RingBuffer{buf: make([]LogEntry, capacity)}
}

// Write stores entry, dropping the oldest one when full.
func (rb *RingBuffer) Write(entry LogEntry) {
	rb.mu.Lock()
	rb.buf[rb.next] = entry
	rb.next = (rb.next + 1) % len(rb.buf)
	rb.total++
	rb.mu.Unlock()
}

// ReadAll returns the buffered entries, oldest first.
func (rb *RingBuffer) ReadAll() []LogEntry {
	return rb.Tail("", 0)
}

// Tail returns up to limit of the newest entries from module, oldest
// first. An empty module matches everything and limit <= 0 means no limit.
func (rb *RingBuffer) Tail(module string, limit int) []LogEntry {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	n := rb.lenLocked()
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]LogEntry, 0, limit)
	// Walk backwards from the newest entry, then reverse.
	for i := 1; i <= n && len(out) < limit; i++ {
		e := rb.buf[(rb.next-i+len(rb.buf))%len(rb.buf)]
		if module == "" || e.Module == module {
			out = append(out, e)
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Count returns the number of buffered entries.
func (rb *RingBuffer) Count() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.lenLocked()
}

// Dropped returns how many entries have been overwritten.
func (rb *RingBuffer) Dropped() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.total - rb.lenLocked()
}

func (rb *RingBuffer) lenLocked() int {
	return min(rb.total, len(rb.buf))
}

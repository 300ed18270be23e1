package logging

import (
	"sync"
	"time"
)

// LogEntry is one record kept for the console "logs" command.
type LogEntry struct {
	Timestamp  time.Time      `json:"timestamp"`
	Level      string         `json:"level"`
	Module     string         `json:"module"`
	Message    string         `json:"message"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// RingBuffer keeps the newest entries in a fixed-size ring.
type RingBuffer struct {
	mu      sync.RWMutex
	entries []LogEntry
	next    int
	full    bool
}

// NewRingBuffer returns a ring holding at most size entries (minimum 1).
func NewRingBuffer(size int) *RingBuffer {
	if size < 1 {
		size = 1
	}
	return &RingBuffer{entries: make([]LogEntry, size)}
}

// Write stores entry, dropping the oldest one once the ring is full.
func (rb *RingBuffer) Write(entry LogEntry) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.entries[rb.next] = entry
	rb.next++
	if rb.next == len(rb.entries) {
		rb.next = 0
		rb.full = true
	}
}

// ReadAll returns every stored entry, oldest first.
func (rb *RingBuffer) ReadAll() []LogEntry {
	return rb.Tail(0, "")
}

// ReadLast returns up to n of the newest entries, oldest first.
func (rb *RingBuffer) ReadLast(n int) []LogEntry {
	return rb.Tail(n, "")
}

// Tail returns up to n of the newest entries logged by module, oldest first.
// n <= 0 means no limit and an empty module matches everything.
func (rb *RingBuffer) Tail(n int, module string) []LogEntry {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	var out []LogEntry
	rb.walkBackward(func(e LogEntry) bool {
		if module != "" && e.Module != module {
			return true
		}
		out = append(out, e)
		return n <= 0 || len(out) < n
	})

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// walkBackward visits entries newest first until fn returns false. mu must be held.
func (rb *RingBuffer) walkBackward(fn func(LogEntry) bool) {
	count := rb.countLocked()
	for i := 1; i <= count; i++ {
		idx := (rb.next - i + len(rb.entries)) % len(rb.entries)
		if !fn(rb.entries[idx]) {
			return
		}
	}
}

// Count returns the number of stored entries.
func (rb *RingBuffer) Count() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.countLocked()
}

func (rb *RingBuffer) countLocked() int {
	if rb.full {
		return len(rb.entries)
	}
	return rb.next
}

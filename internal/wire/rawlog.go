package wire

import (
	"sync"
	"time"
)

// DefaultRawLogCapacity is the raw event log capacity used when none is
// configured.
const DefaultRawLogCapacity = 2000

// RawEntry is one raw frame retained for diagnostics.
type RawEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// RawLog is a bounded FIFO of raw stream frames.
//
// Appends evict the oldest entry once capacity is reached. The log exists for
// diagnostics and history queries; replay logic never reads it.
type RawLog struct {
	mu       sync.Mutex
	capacity int
	entries  []RawEntry
}

// NewRawLog creates a RawLog with the given capacity.
func NewRawLog(capacity int) *RawLog {
	if capacity <= 0 {
		capacity = DefaultRawLogCapacity
	}
	return &RawLog{capacity: capacity}
}

// Append records one frame, evicting the oldest entry at capacity.
func (l *RawLog) Append(ts time.Time, payload any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) >= l.capacity {
		drop := len(l.entries) - l.capacity + 1
		l.entries = l.entries[drop:]
	}
	l.entries = append(l.entries, RawEntry{Timestamp: ts, Payload: payload})
}

// Len returns the number of retained entries.
func (l *RawLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Snapshot returns a copy of the retained entries, oldest first.
func (l *RawLog) Snapshot() []RawEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]RawEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

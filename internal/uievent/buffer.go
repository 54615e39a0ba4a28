package uievent

import (
	"sync"
	"time"
)

// DefaultBufferCapacity is the default signature ring buffer size.
const DefaultBufferCapacity = 50

// SignatureEntry is one buffered signature with its arrival time.
type SignatureEntry struct {
	Signature Signature
	Time      time.Time
}

// SignatureBuffer is a fixed-capacity ring of recent signatures, used for
// lookback and debugging. It is safe for concurrent use: the event path
// writes while flush timers and debug readers may inspect it.
type SignatureBuffer struct {
	mu      sync.Mutex
	entries []SignatureEntry
	start   int
	count   int
}

// NewSignatureBuffer creates a buffer with the given capacity.
// Non-positive capacities fall back to DefaultBufferCapacity.
func NewSignatureBuffer(capacity int) *SignatureBuffer {
	if capacity <= 0 {
		capacity = DefaultBufferCapacity
	}
	return &SignatureBuffer{entries: make([]SignatureEntry, capacity)}
}

// Add records a signature, evicting the oldest entry when full.
func (b *SignatureBuffer) Add(sig Signature) {
	b.mu.Lock()
	defer b.mu.Unlock()

	idx := (b.start + b.count) % len(b.entries)
	b.entries[idx] = SignatureEntry{Signature: sig, Time: time.Now()}
	if b.count < len(b.entries) {
		b.count++
	} else {
		b.start = (b.start + 1) % len(b.entries)
	}
}

// Recent returns up to n entries, newest first.
func (b *SignatureBuffer) Recent(n int) []SignatureEntry {
	b.mu.Lock()
	defer b.mu.Unlock()

	if n > b.count {
		n = b.count
	}
	out := make([]SignatureEntry, 0, n)
	for i := 0; i < n; i++ {
		idx := (b.start + b.count - 1 - i) % len(b.entries)
		out = append(out, b.entries[idx])
	}
	return out
}

// Len returns the number of buffered entries.
func (b *SignatureBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Clear empties the buffer. Called at session boundaries.
func (b *SignatureBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.start = 0
	b.count = 0
}

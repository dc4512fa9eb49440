package signal

import "sync"

// SampleBuffer is a fixed-capacity circular store of raw channel values.
// The acquisition tick appends; readers take consistent snapshots for
// streaming and diagnostics. When full, the oldest value is overwritten.
type SampleBuffer struct {
	mu    sync.RWMutex
	data  []float64
	head  int // next write position
	count int // valid values, <= cap
}

// NewSampleBuffer returns a buffer holding up to capacity values.
func NewSampleBuffer(capacity int) *SampleBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &SampleBuffer{data: make([]float64, capacity)}
}

// Append stores v, overwriting the oldest value when the buffer is full.
func (b *SampleBuffer) Append(v float64) {
	b.mu.Lock()
	b.data[b.head] = v
	b.head = (b.head + 1) % len(b.data)
	if b.count < len(b.data) {
		b.count++
	}
	b.mu.Unlock()
}

// Snapshot copies the buffered values, oldest first.
func (b *SampleBuffer) Snapshot() []float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]float64, b.count)
	start := b.head - b.count
	if start < 0 {
		start += len(b.data)
	}
	for i := 0; i < b.count; i++ {
		out[i] = b.data[(start+i)%len(b.data)]
	}
	return out
}

// Tail copies up to n of the most recent values, oldest first.
func (b *SampleBuffer) Tail(n int) []float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if n > b.count {
		n = b.count
	}
	out := make([]float64, n)
	start := b.head - n
	if start < 0 {
		start += len(b.data)
	}
	for i := 0; i < n; i++ {
		out[i] = b.data[(start+i)%len(b.data)]
	}
	return out
}

// Len reports how many values are currently buffered.
func (b *SampleBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.count
}

// Cap reports the fixed capacity.
func (b *SampleBuffer) Cap() int {
	return len(b.data)
}

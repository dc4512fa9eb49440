package vision

import "sync"

// Slot is the shared latest-result cache: one writer (the detection
// pipeline), any number of readers, never blocking either side. Readers
// that poll between publishes simply see the previous result again.
type Slot struct {
	mu     sync.RWMutex
	result Result
	seq    uint64
}

// Publish replaces the latest result and stamps its sequence number.
func (s *Slot) Publish(r Result) {
	s.mu.Lock()
	s.seq++
	r.Seq = s.seq
	s.result = r
	s.mu.Unlock()
}

// Latest returns the most recently published result, or the zero Result
// if nothing has ever been published.
func (s *Slot) Latest() Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result
}

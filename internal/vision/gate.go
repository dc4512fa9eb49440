package vision

import (
	"sync"
)

// Loader is the two-phase readiness gate around the heavy one-time
// detector initialization. StartLoad kicks the load off on a background
// goroutine and returns immediately; Ready flips true exactly once, after
// which Detector is safe to call. A failed load leaves the gate
// permanently not-ready with Err set, and the feature it gates stays
// disabled.
type Loader struct {
	mu       sync.RWMutex
	ready    bool
	err      error
	detector Detector
}

// StartLoad begins loading a detector in the background.
func StartLoad(load func() (Detector, error)) *Loader {
	l := &Loader{}
	go func() {
		det, err := load()
		l.mu.Lock()
		defer l.mu.Unlock()
		if err != nil {
			l.err = err
			return
		}
		l.detector = det
		l.ready = true
	}()
	return l
}

// Ready reports whether the detector finished loading successfully.
func (l *Loader) Ready() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.ready
}

// Err returns the load failure, if any.
func (l *Loader) Err() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.err
}

// Detector returns the loaded detector, or nil before Ready.
func (l *Loader) Detector() Detector {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.detector
}

package vision

import "sync"

// RateController decides which camera frames get a detector invocation.
// While a hand is present the detector runs often to track it; once it
// disappears the cadence halves to save the work. Defaults: every 3rd
// frame with a hand, every 6th without.
type RateController struct {
	mu           sync.Mutex
	presentEvery int
	absentEvery  int
	handPresent  bool
	frames       int
}

// NewRateController builds a controller with the given cadences. Values
// below 1 fall back to the defaults.
func NewRateController(presentEvery, absentEvery int) *RateController {
	if presentEvery < 1 {
		presentEvery = 3
	}
	if absentEvery < 1 {
		absentEvery = 6
	}
	return &RateController{presentEvery: presentEvery, absentEvery: absentEvery}
}

// Eligible counts one camera frame and reports whether the detector
// should run on it.
func (rc *RateController) Eligible() bool {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	every := rc.absentEvery
	if rc.handPresent {
		every = rc.presentEvery
	}
	rc.frames++
	return rc.frames%every == 0
}

// Observe records the outcome of a detector invocation.
func (rc *RateController) Observe(handPresent bool) {
	rc.mu.Lock()
	rc.handPresent = handPresent
	rc.mu.Unlock()
}

// HandPresent returns the cached detection state.
func (rc *RateController) HandPresent() bool {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.handPresent
}

package record

import (
	"errors"
	"fmt"
	"sync"

	"github.com/relabs-tech/emg_monitor/internal/emg"
	"github.com/relabs-tech/emg_monitor/internal/vision"
)

// State is the recorder's lifecycle position. Finalized describes the
// just-closed session and holds until the next Start.
type State int

const (
	Idle State = iota
	Recording
	Finalized
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Finalized:
		return "finalized"
	default:
		return "unknown"
	}
}

// Recorder errors callers branch on.
var (
	ErrNotReady     = errors.New("record: vision collaborator not ready")
	ErrBusy         = errors.New("record: recording already active")
	ErrNotRecording = errors.New("record: no active recording")
)

// EventKind tags recorder notifications.
type EventKind int

const (
	EventStarted EventKind = iota
	EventFrame
	EventFinalized
)

// Event is the push-side notification stream: one per state transition and
// one per appended frame. Slow consumers lose frame events, never
// transition events.
type Event struct {
	Kind   EventKind
	Label  string
	Frames int
	Meta   Metadata // set on EventFinalized
}

// Params configures a Recorder.
type Params struct {
	SampleRate    int
	CameraFPS     int
	CameraEnabled bool
	MaxImages     int
}

// Recorder is the frame synchronizer: it binds each 200 Hz tick observed
// while recording to the latest vision result, building one Session at a
// time. Ticks never wait on vision; the vision source is polled, not
// awaited. Start is gated on the vision readiness probe.
type Recorder struct {
	src    vision.Source
	ready  func() bool
	params Params

	mu      sync.RWMutex
	state   State
	session *Session
	t0      float64 // sample-clock timestamp of the first recorded tick
	haveT0  bool

	events chan Event
}

// NewRecorder builds an idle recorder. ready is the vision readiness
// probe; Start fails until it reports true.
func NewRecorder(src vision.Source, ready func() bool, params Params) *Recorder {
	if params.SampleRate <= 0 {
		params.SampleRate = emg.SampleRate
	}
	if ready == nil {
		ready = func() bool { return false }
	}
	return &Recorder{
		src:    src,
		ready:  ready,
		params: params,
		events: make(chan Event, 64),
	}
}

// Events exposes the notification stream.
func (r *Recorder) Events() <-chan Event {
	return r.events
}

// Start opens a new session for the given gesture label.
func (r *Recorder) Start(label string) error {
	if !r.ready() {
		return ErrNotReady
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == Recording {
		return ErrBusy
	}
	r.session = NewSession(label, r.params.SampleRate, r.params.CameraFPS, r.params.CameraEnabled, r.params.MaxImages)
	r.state = Recording
	r.haveT0 = false

	r.emit(Event{Kind: EventStarted, Label: label}, true)
	return nil
}

// Tick appends one synchronized frame for the given sample. The sample's
// stream timestamp drives the session-relative clock; the first recorded
// tick lands at t=0.
func (r *Recorder) Tick(sample emg.Sample) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case Recording:
	case Finalized:
		return fmt.Errorf("appending tick: %w", ErrFinalized)
	default:
		return ErrNotRecording
	}

	if !r.haveT0 {
		r.t0 = sample.Timestamp
		r.haveT0 = true
	}

	var result vision.Result
	if r.src != nil {
		result = r.src.Latest()
	}

	frame := MotionFrame{
		Timestamp:      sample.Timestamp - r.t0,
		Values:         sample.Values,
		Landmarks:      result.Landmarks,
		LandmarksValid: result.Valid,
	}
	if err := r.session.Append(frame, result.Image); err != nil {
		return err
	}

	r.emit(Event{Kind: EventFrame, Label: r.session.Label, Frames: r.session.FrameCount()}, false)
	return nil
}

// Stop finalizes the active session and returns it. Safe to call from any
// point in the tick cycle; late vision results simply never get appended
// because the session refuses further writes.
func (r *Recorder) Stop() (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != Recording {
		return nil, ErrNotRecording
	}
	session := r.session
	meta := session.Finalize()
	r.state = Finalized

	r.emit(Event{Kind: EventFinalized, Label: session.Label, Frames: meta.NumFrames, Meta: meta}, true)
	return session, nil
}

// State returns the current lifecycle position.
func (r *Recorder) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Session returns the active or last-finalized session, or nil.
func (r *Recorder) Session() *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.session
}

// Elapsed returns seconds of recording so far, zero when idle.
func (r *Recorder) Elapsed() float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.session == nil {
		return 0
	}
	return float64(r.session.FrameCount()) / float64(r.params.SampleRate)
}

// emit sends an event; frame events are droppable, transitions are not.
func (r *Recorder) emit(ev Event, transition bool) {
	if transition {
		select {
		case r.events <- ev:
		default:
			// Make room by shedding the oldest queued event.
			select {
			case <-r.events:
			default:
			}
			select {
			case r.events <- ev:
			default:
			}
		}
		return
	}
	select {
	case r.events <- ev:
	default:
	}
}

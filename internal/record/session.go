package record

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/relabs-tech/emg_monitor/internal/emg"
	"github.com/relabs-tech/emg_monitor/internal/vision"
)

// ErrFinalized is returned on any attempt to mutate a finalized session.
// Hitting it means the tick path and the stop path got out of order.
var ErrFinalized = errors.New("record: session already finalized")

// DefaultMaxRetainedImages caps the raw camera images kept in memory, about
// half a second of images at the 200 Hz tick rate.
const DefaultMaxRetainedImages = 100

// MotionFrame is one tick of a recording: the EMG sample vector plus the
// vision result that was current at that tick. The i-th frame of a session
// always corresponds to the i-th tick observed while recording.
type MotionFrame struct {
	Timestamp      float64                  `json:"t"` // seconds since recording start
	Values         [emg.NumChannels]float64 `json:"values"`
	Landmarks      vision.Landmarks         `json:"landmarks"`
	LandmarksValid bool                     `json:"landmarks_valid"`
}

// Metadata describes a finished session. All fields are fixed at finalize.
type Metadata struct {
	GestureLabel  string  `json:"gesture_label"`
	SampleRate    int     `json:"sample_rate"`
	CameraEnabled bool    `json:"camera_enabled"`
	CameraFPS     int     `json:"camera_fps"`
	StartTime     string  `json:"start_time"` // RFC 3339
	Duration      float64 `json:"duration"`   // seconds
	NumFrames     int     `json:"num_frames"`
}

// Session is an ordered, growing sequence of MotionFrames with a bounded
// parallel store of raw image payloads. A single writer appends; readers
// may poll progress concurrently. After Finalize the session is immutable.
type Session struct {
	ID    uuid.UUID
	Label string

	mu        sync.RWMutex
	frames    []MotionFrame
	images    [][]byte // parallel to frames; nil once evicted or never present
	retained  int      // images currently non-nil
	maxImages int
	finalized bool

	startWall  time.Time
	sampleRate int
	cameraOn   bool
	cameraFPS  int
	meta       Metadata
}

// NewSession creates an empty recording session.
func NewSession(label string, sampleRate, cameraFPS int, cameraOn bool, maxImages int) *Session {
	if maxImages <= 0 {
		maxImages = DefaultMaxRetainedImages
	}
	return &Session{
		ID:         uuid.New(),
		Label:      label,
		maxImages:  maxImages,
		startWall:  time.Now(),
		sampleRate: sampleRate,
		cameraOn:   cameraOn,
		cameraFPS:  cameraFPS,
	}
}

// Append adds one frame and its (possibly nil) image payload. Once the
// frame count passes the retention cap, the image of the frame falling out
// of the window is released; the frame's numeric and landmark data are
// never touched.
func (s *Session) Append(frame MotionFrame, image []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finalized {
		return ErrFinalized
	}

	s.frames = append(s.frames, frame)
	s.images = append(s.images, image)
	if image != nil {
		s.retained++
	}

	if evict := len(s.frames) - s.maxImages - 1; evict >= 0 && s.images[evict] != nil {
		s.images[evict] = nil
		s.retained--
	}
	return nil
}

// Finalize closes the session. Duration and frame count come from the
// sample clock, which is exact for a fixed-rate stream. Further Appends
// fail with ErrFinalized. Finalize is idempotent.
func (s *Session) Finalize() Metadata {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finalized {
		return s.meta
	}
	s.finalized = true

	duration := 0.0
	if n := len(s.frames); n > 0 && s.sampleRate > 0 {
		duration = float64(n) / float64(s.sampleRate)
	}
	s.meta = Metadata{
		GestureLabel:  s.Label,
		SampleRate:    s.sampleRate,
		CameraEnabled: s.cameraOn,
		CameraFPS:     s.cameraFPS,
		StartTime:     s.startWall.Format(time.RFC3339),
		Duration:      duration,
		NumFrames:     len(s.frames),
	}
	return s.meta
}

// Finalized reports whether the session has been closed.
func (s *Session) Finalized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.finalized
}

// FrameCount returns the number of appended frames.
func (s *Session) FrameCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.frames)
}

// RetainedImages returns how many raw image payloads are still held.
func (s *Session) RetainedImages() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.retained
}

// Frame returns a copy of the i-th frame and whether its image payload is
// still retained.
func (s *Session) Frame(i int) (MotionFrame, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frames[i], s.images[i] != nil
}

// LatestImage returns the most recent retained image, or nil.
func (s *Session) LatestImage() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.images) - 1; i >= 0; i-- {
		if s.images[i] != nil {
			return s.images[i]
		}
	}
	return nil
}

// Metadata returns the finalized metadata; zero value before Finalize.
func (s *Session) Metadata() Metadata {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.meta
}

// StartTime returns the wall-clock moment the session was created.
func (s *Session) StartTime() time.Time {
	return s.startWall
}

// Frames returns the frame slice for archiving. Only valid after
// Finalize, when no further mutation can occur.
func (s *Session) Frames() []MotionFrame {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frames
}

package signal

import (
	"sync"

	"github.com/relabs-tech/emg_monitor/internal/emg"
)

// EngineParams configures an Engine.
type EngineParams struct {
	Tracker    TrackerParams
	Thresholds Thresholds
	SampleRate int     // Hz, used to derive elapsed time from the tick count
	BufferSecs float64 // trailing window retained per channel

	// Idle recalibration: when every channel holds Standby for a full
	// interval and no recording is active, trackers reseed.
	RecalEnabled  bool
	RecalInterval int // ticks
}

// DefaultEngineParams returns the documented defaults for a 200 Hz device.
func DefaultEngineParams() EngineParams {
	return EngineParams{
		Tracker:       DefaultTrackerParams(),
		Thresholds:    DefaultThresholds(),
		SampleRate:    emg.SampleRate,
		BufferSecs:    5,
		RecalEnabled:  true,
		RecalInterval: 6000, // 30 s
	}
}

// Engine owns the per-channel tracker state and the trailing sample
// buffers. All mutable state lives here; there are no package-level
// globals. Ingest has a single caller (the acquisition loop); Status and
// the buffer accessors are safe for concurrent readers.
type Engine struct {
	params EngineParams

	mu       sync.RWMutex
	channels [emg.NumChannels]ChannelState
	buffers  [emg.NumChannels]*SampleBuffer
	ticks    uint64
	latest   emg.StatusUpdate

	connected   bool
	recalQuiet  bool // every tick in the current window was all-Standby
	recalTicks  int
	recalPaused bool
}

// NewEngine constructs an Engine with the given parameters.
func NewEngine(params EngineParams) *Engine {
	if params.SampleRate <= 0 {
		params.SampleRate = emg.SampleRate
	}
	capacity := int(float64(params.SampleRate) * params.BufferSecs)
	e := &Engine{params: params, recalQuiet: true}
	for i := range e.buffers {
		e.buffers[i] = NewSampleBuffer(capacity)
	}
	return e
}

// Ingest advances every channel by one tick and returns the resulting
// status snapshot. It must be called from a single goroutine.
func (e *Engine) Ingest(values [emg.NumChannels]float64) emg.StatusUpdate {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.ticks++
	elapsed := float64(e.ticks) / float64(e.params.SampleRate)

	status := emg.StatusUpdate{
		Elapsed:   elapsed,
		Ticks:     e.ticks,
		Connected: e.connected,
	}

	allStandby := true
	var strengthSum float64
	top := e.topRatio()

	for ch := range e.channels {
		c := &e.channels[ch]
		seeding := c.Seeding(e.params.Tracker)

		deviation := c.Update(values[ch], e.params.Tracker)
		ratio := c.Ratio(deviation, e.params.Tracker)

		quality := emg.Standby
		if !seeding {
			quality = e.params.Thresholds.Classify(ratio)
		}
		if quality != emg.Standby {
			allStandby = false
		}

		strengthSum += channelStrength(ratio, top)
		status.Channels[ch] = emg.ChannelStatus{
			Channel:    ch,
			Value:      values[ch],
			Baseline:   c.Baseline,
			NoiseLevel: c.NoiseLevel,
			Ratio:      ratio,
			Quality:    quality,
		}
		e.buffers[ch].Append(values[ch])

		if seeding {
			status.Seeding = true
		}
	}

	status.Strength = strengthSum / emg.NumChannels

	e.stepRecalibration(allStandby)

	e.latest = status
	return status
}

// Status returns the most recent snapshot produced by Ingest.
func (e *Engine) Status() emg.StatusUpdate {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.latest
}

// Buffer exposes one channel's trailing sample window for streaming.
func (e *Engine) Buffer(ch int) *SampleBuffer {
	return e.buffers[ch]
}

// Reseed restarts every channel's seed phase. Called on device
// (re)connection and by idle recalibration.
func (e *Engine) Reseed() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reseedLocked()
}

func (e *Engine) reseedLocked() {
	for ch := range e.channels {
		e.channels[ch].Reseed()
	}
	e.recalTicks = 0
	e.recalQuiet = true
}

// SetConnected records the transport state carried in status snapshots.
func (e *Engine) SetConnected(connected bool) {
	e.mu.Lock()
	e.connected = connected
	e.mu.Unlock()
}

// SuspendRecalibration pauses idle recalibration, typically while a
// recording is active.
func (e *Engine) SuspendRecalibration(paused bool) {
	e.mu.Lock()
	e.recalPaused = paused
	e.recalTicks = 0
	e.recalQuiet = true
	e.mu.Unlock()
}

func (e *Engine) stepRecalibration(allStandby bool) {
	if !e.params.RecalEnabled || e.params.RecalInterval <= 0 {
		return
	}
	if !allStandby {
		e.recalQuiet = false
	}
	e.recalTicks++
	if e.recalTicks < e.params.RecalInterval {
		return
	}
	if e.recalQuiet && !e.recalPaused {
		e.reseedLocked()
		return
	}
	e.recalTicks = 0
	e.recalQuiet = true
}

// topRatio is the ratio treated as 100% signal strength.
func (e *Engine) topRatio() float64 {
	if len(e.params.Thresholds.bands) == 0 {
		return 12
	}
	return e.params.Thresholds.bands[0].MinRatio
}

func channelStrength(ratio, top float64) float64 {
	if top <= 0 {
		return 0
	}
	s := ratio / top * 100
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}

package signal

import "math"

// TrackerParams tunes the per-channel baseline/noise estimator.
type TrackerParams struct {
	SeedSamples int     // ticks of fast adaptation after (re)connection
	SeedAlpha   float64 // blend factor during seeding
	Alpha       float64 // baseline blend factor after seeding
	NoiseAlpha  float64 // noise EWMA factor after seeding
	GateRatio   float64 // baseline updates only while deviation < GateRatio*noise
	MinNoise    float64 // optional sensor-noise prior in µV, 0 disables
}

// DefaultTrackerParams mirror the documented tuning: a 500-sample
// (~2.5 s at 200 Hz) seed window, 10% seed adaptation, 1% steady-state
// adaptation, and a 1.5x hysteresis gate.
func DefaultTrackerParams() TrackerParams {
	return TrackerParams{
		SeedSamples: 500,
		SeedAlpha:   0.1,
		Alpha:       0.01,
		NoiseAlpha:  0.01,
		GateRatio:   1.5,
		MinNoise:    0,
	}
}

// noiseEpsilon floors NoiseLevel wherever it divides, never stored.
const noiseEpsilon = 1e-9

// ChannelState tracks one electrode's resting baseline and noise amplitude.
//
// The baseline is only ever moved by the seed phase or by the hysteresis
// gate; it must never chase a large deviation, whether that deviation is
// genuine activation on this channel or crosstalk from a neighbor. The
// noise estimate accumulates from deviation alone. Folding a rate-of-change
// term into it inflates the estimate during transients and hides real
// signal.
type ChannelState struct {
	Baseline   float64
	NoiseLevel float64
	LastValue  float64

	seedCount int
}

// Update advances the tracker by one tick and returns the absolute
// deviation of v from the (pre-update) baseline.
func (c *ChannelState) Update(v float64, p TrackerParams) float64 {
	if c.seedCount < p.SeedSamples {
		return c.seed(v, p)
	}

	deviation := math.Abs(v - c.Baseline)

	c.NoiseLevel += p.NoiseAlpha * (deviation - c.NoiseLevel)

	if deviation < p.GateRatio*c.effectiveNoise(p) {
		c.Baseline += p.Alpha * (v - c.Baseline)
	}

	c.LastValue = v
	return deviation
}

func (c *ChannelState) seed(v float64, p TrackerParams) float64 {
	if c.seedCount == 0 {
		c.Baseline = v
		c.NoiseLevel = 0
		c.LastValue = v
		c.seedCount++
		return 0
	}

	deviation := math.Abs(v - c.Baseline)
	c.Baseline += p.SeedAlpha * (v - c.Baseline)
	c.NoiseLevel += p.SeedAlpha * (deviation - c.NoiseLevel)
	c.LastValue = v
	c.seedCount++
	return deviation
}

// Seeding reports whether the channel is still inside its seed window.
func (c *ChannelState) Seeding(p TrackerParams) bool {
	return c.seedCount < p.SeedSamples
}

// Reseed restarts the seed phase, discarding baseline and noise state.
// Used on device (re)connection and by idle recalibration.
func (c *ChannelState) Reseed() {
	c.Baseline = 0
	c.NoiseLevel = 0
	c.LastValue = 0
	c.seedCount = 0
}

// Ratio returns deviation expressed in multiples of the channel noise,
// with the divisor floored so a silent channel never divides by zero.
func (c *ChannelState) Ratio(deviation float64, p TrackerParams) float64 {
	return deviation / c.effectiveNoise(p)
}

func (c *ChannelState) effectiveNoise(p TrackerParams) float64 {
	n := c.NoiseLevel
	if n < p.MinNoise {
		n = p.MinNoise
	}
	if n < noiseEpsilon {
		n = noiseEpsilon
	}
	return n
}

package signal_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/emg_monitor/internal/signal"
)

func testParams() signal.TrackerParams {
	return signal.TrackerParams{
		SeedSamples: 10,
		SeedAlpha:   0.1,
		Alpha:       0.01,
		NoiseAlpha:  0.01,
		GateRatio:   1.5,
		MinNoise:    2,
	}
}

func seedAt(c *signal.ChannelState, v float64, p signal.TrackerParams) {
	for i := 0; i < p.SeedSamples; i++ {
		c.Update(v, p)
	}
}

func TestTrackerFirstSampleSeedsDirectly(t *testing.T) {
	p := testParams()
	var c signal.ChannelState

	dev := c.Update(120, p)
	require.Zero(t, dev)
	require.Equal(t, 120.0, c.Baseline)
	require.Equal(t, 0.0, c.NoiseLevel)
	require.True(t, c.Seeding(p))
}

func TestTrackerSeedConvergesTowardRest(t *testing.T) {
	p := testParams()
	var c signal.ChannelState

	// First sample lands far from the true rest level.
	c.Update(50, p)
	for i := 0; i < p.SeedSamples-1; i++ {
		c.Update(100, p)
	}
	require.False(t, c.Seeding(p))

	want := 100 - 50*math.Pow(1-p.SeedAlpha, float64(p.SeedSamples-1))
	require.InDelta(t, want, c.Baseline, 1e-6)
	require.Greater(t, c.NoiseLevel, 0.0)
	require.Less(t, c.NoiseLevel, 50.0)
}

func TestTrackerGateHoldsBaselineThroughSpike(t *testing.T) {
	p := testParams()
	var c signal.ChannelState
	seedAt(&c, 100, p)

	dev := c.Update(200, p)
	require.Equal(t, 100.0, dev)
	// The gate blocks the baseline update; the noise estimate still moves.
	require.Equal(t, 100.0, c.Baseline)
	require.InDelta(t, 1.0, c.NoiseLevel, 1e-9)
}

func TestTrackerFollowsSmallDrift(t *testing.T) {
	p := testParams()
	var c signal.ChannelState
	seedAt(&c, 100, p)

	for i := 0; i < 300; i++ {
		c.Update(101, p)
	}
	require.Greater(t, c.Baseline, 100.9)
	require.Less(t, c.Baseline, 101.0)
}

func TestTrackerRatioUsesNoisePrior(t *testing.T) {
	p := testParams() // MinNoise 2
	var c signal.ChannelState
	seedAt(&c, 100, p)

	dev := c.Update(110, p)
	require.InDelta(t, 5.0, c.Ratio(dev, p), 1e-9)
}

func TestTrackerSilentChannelRatioStaysFinite(t *testing.T) {
	p := testParams()
	p.MinNoise = 0
	var c signal.ChannelState
	seedAt(&c, 42, p)

	dev := c.Update(42, p)
	ratio := c.Ratio(dev, p)
	require.False(t, math.IsNaN(ratio))
	require.False(t, math.IsInf(ratio, 0))
	require.Zero(t, ratio)
}

func TestTrackerNoiseTracksRestAmplitude(t *testing.T) {
	p := testParams()
	p.MinNoise = 0
	var c signal.ChannelState
	seedAt(&c, 100, p)

	// Symmetric fluctuation of 4 µV around rest.
	for i := 0; i < 2000; i++ {
		if i%2 == 0 {
			c.Update(104, p)
		} else {
			c.Update(96, p)
		}
	}
	require.InDelta(t, 4.0, c.NoiseLevel, 0.5)
	require.InDelta(t, 100.0, c.Baseline, 0.5)
}

func TestTrackerReseed(t *testing.T) {
	p := testParams()
	var c signal.ChannelState
	seedAt(&c, 100, p)
	require.False(t, c.Seeding(p))

	c.Reseed()
	require.True(t, c.Seeding(p))
	require.Zero(t, c.Baseline)
	require.Zero(t, c.NoiseLevel)

	c.Update(250, p)
	require.Equal(t, 250.0, c.Baseline)
}

package vision_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/emg_monitor/internal/vision"
)

func collectEligible(rc *vision.RateController, from, to int) []int {
	var out []int
	for i := from; i <= to; i++ {
		if rc.Eligible() {
			out = append(out, i)
		}
	}
	return out
}

func TestRateControllerCadence(t *testing.T) {
	rc := vision.NewRateController(3, 6)

	// No hand yet: every 6th frame gets a detector run.
	require.False(t, rc.HandPresent())
	require.Equal(t, []int{6, 12}, collectEligible(rc, 1, 12))

	// Hand found: cadence tightens to every 3rd frame.
	rc.Observe(true)
	require.True(t, rc.HandPresent())
	require.Equal(t, []int{15, 18, 21, 24}, collectEligible(rc, 13, 24))

	// Hand lost: back to the slow cadence.
	rc.Observe(false)
	require.Equal(t, []int{30, 36}, collectEligible(rc, 25, 36))
}

func TestRateControllerDefaults(t *testing.T) {
	rc := vision.NewRateController(0, -1)
	require.Equal(t, []int{6}, collectEligible(rc, 1, 6))

	rc.Observe(true)
	require.Equal(t, []int{9, 12}, collectEligible(rc, 7, 12))
}

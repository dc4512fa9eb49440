package signal_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/emg_monitor/internal/emg"
	"github.com/relabs-tech/emg_monitor/internal/signal"
)

func TestClassifyDefaultBands(t *testing.T) {
	th := signal.DefaultThresholds()

	cases := []struct {
		ratio float64
		want  emg.Quality
	}{
		{0, emg.Standby},
		{2.9, emg.Standby},
		{3.0, emg.Weak},
		{3.5, emg.Weak},
		{4.99, emg.Weak},
		{5.0, emg.Good},
		{6.0, emg.Good},
		{8.0, emg.Strong},
		{10.0, emg.Strong},
		{12.0, emg.Optimal},
		{50.0, emg.Optimal},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, th.Classify(tc.ratio), "ratio %.2f", tc.ratio)
	}
}

func TestClassifySharedEdgeGoesToHigherBand(t *testing.T) {
	// The published ranges meet at their edges; the point itself belongs to
	// the higher level.
	th := signal.DefaultThresholds()
	require.Equal(t, emg.Good, th.Classify(5))
	require.Equal(t, emg.Strong, th.Classify(8))
	require.Equal(t, emg.Optimal, th.Classify(12))
}

func TestNewThresholdsAcceptsUnorderedBands(t *testing.T) {
	th, err := signal.NewThresholds([]signal.Band{
		{MinRatio: 8, Level: emg.Strong},
		{MinRatio: 3, Level: emg.Weak},
		{MinRatio: 12, Level: emg.Optimal},
		{MinRatio: 5, Level: emg.Good},
	})
	require.NoError(t, err)
	require.Equal(t, emg.Standby, th.Classify(2))
	require.Equal(t, emg.Weak, th.Classify(4))
	require.Equal(t, emg.Optimal, th.Classify(13))
}

func TestNewThresholdsRejectsBadTables(t *testing.T) {
	_, err := signal.NewThresholds(nil)
	require.Error(t, err)

	_, err = signal.NewThresholds([]signal.Band{{MinRatio: 0, Level: emg.Weak}})
	require.Error(t, err)

	_, err = signal.NewThresholds([]signal.Band{{MinRatio: -3, Level: emg.Weak}})
	require.Error(t, err)

	// Levels must strictly increase with ratio.
	_, err = signal.NewThresholds([]signal.Band{
		{MinRatio: 3, Level: emg.Good},
		{MinRatio: 5, Level: emg.Weak},
	})
	require.Error(t, err)

	_, err = signal.NewThresholds([]signal.Band{
		{MinRatio: 3, Level: emg.Weak},
		{MinRatio: 5, Level: emg.Weak},
	})
	require.Error(t, err)
}

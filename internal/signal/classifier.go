package signal

import (
	"fmt"
	"sort"

	"github.com/relabs-tech/emg_monitor/internal/emg"
)

// Band maps a minimum deviation/noise ratio to a quality level.
type Band struct {
	MinRatio float64
	Level    emg.Quality
}

// Thresholds is the classifier's range table. Bands are evaluated highest
// ratio first; the first band whose MinRatio the measured ratio reaches
// wins, which keeps the level monotonic in deviation even when published
// band edges overlap. Anything below the lowest band is Standby.
type Thresholds struct {
	bands []Band // sorted by MinRatio descending
}

// DefaultThresholds returns the documented default bands:
// 3x noise = Weak, 5x = Good, 8x = Strong, 12x = Optimal.
func DefaultThresholds() Thresholds {
	t, _ := NewThresholds([]Band{
		{MinRatio: 3, Level: emg.Weak},
		{MinRatio: 5, Level: emg.Good},
		{MinRatio: 8, Level: emg.Strong},
		{MinRatio: 12, Level: emg.Optimal},
	})
	return t
}

// NewThresholds validates and orders a band table. Ratios must be positive
// and levels must strictly increase with ratio.
func NewThresholds(bands []Band) (Thresholds, error) {
	if len(bands) == 0 {
		return Thresholds{}, fmt.Errorf("classifier: no bands")
	}
	sorted := make([]Band, len(bands))
	copy(sorted, bands)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].MinRatio > sorted[j].MinRatio })

	for i, b := range sorted {
		if b.MinRatio <= 0 {
			return Thresholds{}, fmt.Errorf("classifier: band ratio %.2f must be positive", b.MinRatio)
		}
		if i > 0 && b.Level >= sorted[i-1].Level {
			return Thresholds{}, fmt.Errorf("classifier: levels must increase with ratio")
		}
	}
	return Thresholds{bands: sorted}, nil
}

// Classify maps a deviation/noise ratio to a quality level.
func (t Thresholds) Classify(ratio float64) emg.Quality {
	for _, b := range t.bands {
		if ratio >= b.MinRatio {
			return b.Level
		}
	}
	return emg.Standby
}

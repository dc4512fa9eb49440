package record_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/emg_monitor/internal/emg"
	"github.com/relabs-tech/emg_monitor/internal/npz"
	"github.com/relabs-tech/emg_monitor/internal/record"
	"github.com/relabs-tech/emg_monitor/internal/vision"
)

func TestArchiveName(t *testing.T) {
	start := time.Date(2026, 3, 14, 15, 9, 2, 0, time.UTC)
	require.Equal(t, "motion_fist_20260314_150902.npz", record.ArchiveName("fist", start))
}

func TestWriteArchiveRequiresFinalize(t *testing.T) {
	s := record.NewSession("fist", 200, 15, true, 10)
	_, err := record.WriteArchive(t.TempDir(), s)
	require.ErrorIs(t, err, record.ErrNotFinalized)
}

func TestArchiveRoundTrip(t *testing.T) {
	const n = 10
	s := record.NewSession("pointing", 200, 15, true, 4)

	for i := 0; i < n; i++ {
		require.NoError(t, s.Append(frameAt(i), []byte{byte(i)}))
	}
	s.Finalize()

	dir := t.TempDir()
	path, err := record.WriteArchive(dir, s)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, record.ArchiveName("pointing", s.StartTime())), path)

	data, err := record.ReadArchive(path)
	require.NoError(t, err)
	require.Equal(t, n, data.NumFrames)
	require.Equal(t, s.Metadata(), data.Meta)

	// Row i of every array describes tick i.
	for i := 0; i < n; i++ {
		want := frameAt(i)
		require.InDelta(t, want.Timestamp, float64(data.Timestamps[i]), 1e-6, "frame %d", i)
		for ch := 0; ch < emg.NumChannels; ch++ {
			require.InDelta(t, want.Values[ch], float64(data.EMG[i*emg.NumChannels+ch]), 1e-3, "frame %d ch %d", i, ch)
		}
		for j := 0; j < vision.NumLandmarks; j++ {
			for k := 0; k < 3; k++ {
				off := (i*vision.NumLandmarks+j)*3 + k
				require.InDelta(t, want.Landmarks[j][k], float64(data.Landmarks[off]), 1e-6, "frame %d lm %d", i, j)
			}
		}
		require.Equal(t, want.LandmarksValid, data.Valid[i], "frame %d", i)
	}
}

func TestReadArchiveRejectsMisalignedRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.npz")
	f, err := os.Create(path)
	require.NoError(t, err)

	// Three timestamps but only two EMG rows.
	w := npz.NewWriter(f)
	require.NoError(t, w.Float32("timestamps", []int{3}, []float32{0, 1, 2}))
	require.NoError(t, w.Float32("emg_data", []int{2, emg.NumChannels}, make([]float32, 2*emg.NumChannels)))
	require.NoError(t, w.Float32("landmarks", []int{3, vision.NumLandmarks, 3}, make([]float32, 3*vision.NumLandmarks*3)))
	require.NoError(t, w.Bool("landmarks_valid", make([]bool, 3)))
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())

	_, err = record.ReadArchive(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "misaligned")
}

func TestReadArchiveRequiresCoreArrays(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.npz")
	f, err := os.Create(path)
	require.NoError(t, err)

	w := npz.NewWriter(f)
	require.NoError(t, w.Float32("timestamps", []int{1}, []float32{0}))
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())

	_, err = record.ReadArchive(path)
	require.Error(t, err)
}

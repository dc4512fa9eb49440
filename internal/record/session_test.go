package record_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/emg_monitor/internal/record"
	"github.com/relabs-tech/emg_monitor/internal/vision"
)

func frameAt(i int) record.MotionFrame {
	f := record.MotionFrame{Timestamp: float64(i) / 200}
	for ch := range f.Values {
		f.Values[ch] = float64(i*10 + ch)
	}
	f.Landmarks[0] = [3]float64{float64(i), 0.5, -0.1}
	f.LandmarksValid = i%2 == 0
	return f
}

func TestSessionAppendGrowsFrames(t *testing.T) {
	s := record.NewSession("fist", 200, 15, true, 10)
	require.NotEqual(t, "", s.ID.String())

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Append(frameAt(i), nil))
	}
	require.Equal(t, 3, s.FrameCount())
	require.Zero(t, s.RetainedImages())

	f, hasImage := s.Frame(1)
	require.False(t, hasImage)
	require.Equal(t, frameAt(1), f)
}

func TestSessionBoundedImageRetention(t *testing.T) {
	const maxImages = 5
	s := record.NewSession("open", 200, 15, true, maxImages)

	for i := 0; i < 12; i++ {
		require.NoError(t, s.Append(frameAt(i), []byte{byte(i)}))
	}

	// Every numeric frame survives; only the newest images do.
	require.Equal(t, 12, s.FrameCount())
	require.Equal(t, maxImages, s.RetainedImages())

	for i := 0; i < 12; i++ {
		f, hasImage := s.Frame(i)
		require.Equal(t, frameAt(i), f, "frame %d", i)
		require.Equal(t, i >= 7, hasImage, "frame %d", i)
	}
	require.Equal(t, []byte{11}, s.LatestImage())
}

func TestSessionRetentionWithSparseImages(t *testing.T) {
	s := record.NewSession("pinch", 200, 15, true, 4)

	// Images only on even ticks, like a camera slower than the sample rate.
	for i := 0; i < 12; i++ {
		var img []byte
		if i%2 == 0 {
			img = []byte{byte(i)}
		}
		require.NoError(t, s.Append(frameAt(i), img))
	}

	require.Equal(t, 12, s.FrameCount())
	require.Equal(t, 2, s.RetainedImages()) // ticks 8 and 10 inside the window

	_, hasImage := s.Frame(6)
	require.False(t, hasImage)
	_, hasImage = s.Frame(10)
	require.True(t, hasImage)
	require.Equal(t, []byte{10}, s.LatestImage())
}

func TestSessionDefaultImageCap(t *testing.T) {
	s := record.NewSession("wave", 200, 15, true, 0)

	for i := 0; i < record.DefaultMaxRetainedImages+20; i++ {
		require.NoError(t, s.Append(record.MotionFrame{}, []byte{1}))
	}
	require.Equal(t, record.DefaultMaxRetainedImages, s.RetainedImages())
}

func TestSessionFinalize(t *testing.T) {
	s := record.NewSession("fist", 200, 15, true, 10)
	for i := 0; i < 100; i++ {
		require.NoError(t, s.Append(frameAt(i), nil))
	}

	require.False(t, s.Finalized())
	meta := s.Finalize()
	require.True(t, s.Finalized())

	require.Equal(t, "fist", meta.GestureLabel)
	require.Equal(t, 200, meta.SampleRate)
	require.True(t, meta.CameraEnabled)
	require.Equal(t, 15, meta.CameraFPS)
	require.Equal(t, 100, meta.NumFrames)
	// Duration comes from the sample clock, not the wall clock.
	require.InDelta(t, 0.5, meta.Duration, 1e-9)

	_, err := time.Parse(time.RFC3339, meta.StartTime)
	require.NoError(t, err)

	// Idempotent.
	require.Equal(t, meta, s.Finalize())
	require.Equal(t, meta, s.Metadata())
}

func TestSessionAppendAfterFinalize(t *testing.T) {
	s := record.NewSession("rest", 200, 15, false, 10)
	require.NoError(t, s.Append(frameAt(0), nil))
	s.Finalize()

	err := s.Append(frameAt(1), nil)
	require.ErrorIs(t, err, record.ErrFinalized)
	require.Equal(t, 1, s.FrameCount())
}

func TestSessionFinalizeEmpty(t *testing.T) {
	s := record.NewSession("custom", 200, 15, false, 10)
	meta := s.Finalize()
	require.Zero(t, meta.Duration)
	require.Zero(t, meta.NumFrames)
}

func TestSessionLatestImageEmpty(t *testing.T) {
	s := record.NewSession("custom", 200, 15, false, 10)
	require.Nil(t, s.LatestImage())
	require.NoError(t, s.Append(record.MotionFrame{Landmarks: vision.Landmarks{}}, nil))
	require.Nil(t, s.LatestImage())
}

package record_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/emg_monitor/internal/emg"
	"github.com/relabs-tech/emg_monitor/internal/record"
	"github.com/relabs-tech/emg_monitor/internal/vision"
)

func testRecorder(ready bool) (*record.Recorder, *vision.Slot) {
	slot := &vision.Slot{}
	r := record.NewRecorder(slot, func() bool { return ready }, record.Params{
		SampleRate:    200,
		CameraFPS:     15,
		CameraEnabled: true,
		MaxImages:     10,
	})
	return r, slot
}

func sampleAt(t float64) emg.Sample {
	s := emg.Sample{Timestamp: t}
	for ch := range s.Values {
		s.Values[ch] = 100 + float64(ch)
	}
	return s
}

func TestRecorderStartGatedOnReadiness(t *testing.T) {
	r, _ := testRecorder(false)
	require.ErrorIs(t, r.Start("fist"), record.ErrNotReady)
	require.Equal(t, record.Idle, r.State())

	// A nil probe means never ready.
	r2 := record.NewRecorder(&vision.Slot{}, nil, record.Params{})
	require.ErrorIs(t, r2.Start("fist"), record.ErrNotReady)
}

func TestRecorderLifecycle(t *testing.T) {
	r, _ := testRecorder(true)

	require.Equal(t, record.Idle, r.State())
	require.ErrorIs(t, r.Tick(sampleAt(0)), record.ErrNotRecording)

	require.NoError(t, r.Start("fist"))
	require.Equal(t, record.Recording, r.State())
	require.ErrorIs(t, r.Start("open"), record.ErrBusy)

	// The stream clock starts mid-flight; session timestamps re-zero.
	for i := 0; i < 10; i++ {
		require.NoError(t, r.Tick(sampleAt(37.5+float64(i)/200)))
	}

	s, err := r.Stop()
	require.NoError(t, err)
	require.Equal(t, record.Finalized, r.State())
	require.True(t, s.Finalized())
	require.Equal(t, 10, s.FrameCount())

	f, _ := s.Frame(0)
	require.Zero(t, f.Timestamp)
	f, _ = s.Frame(9)
	require.InDelta(t, 9.0/200, f.Timestamp, 1e-9)

	// The closed session refuses late ticks.
	require.ErrorIs(t, r.Tick(sampleAt(40)), record.ErrFinalized)
	_, err = r.Stop()
	require.ErrorIs(t, err, record.ErrNotRecording)

	// A fresh session can start from Finalized.
	require.NoError(t, r.Start("open"))
	require.Equal(t, record.Recording, r.State())
	require.Zero(t, r.Session().FrameCount())
}

func TestRecorderBindsLatestVisionResult(t *testing.T) {
	r, slot := testRecorder(true)
	require.NoError(t, r.Start("pinch"))

	var lm vision.Landmarks
	lm[0] = [3]float64{0.4, 0.6, 0}
	slot.Publish(vision.Result{Image: []byte("jpeg1"), Landmarks: lm, Valid: true})

	require.NoError(t, r.Tick(sampleAt(1.0)))
	require.NoError(t, r.Tick(sampleAt(1.005))) // no new result: previous rides along

	slot.Publish(vision.Result{Valid: false})
	require.NoError(t, r.Tick(sampleAt(1.010)))

	s, err := r.Stop()
	require.NoError(t, err)

	f, hasImage := s.Frame(0)
	require.True(t, f.LandmarksValid)
	require.Equal(t, lm, f.Landmarks)
	require.True(t, hasImage)

	f, _ = s.Frame(1)
	require.True(t, f.LandmarksValid)
	require.Equal(t, lm, f.Landmarks)

	f, hasImage = s.Frame(2)
	require.False(t, f.LandmarksValid)
	require.Equal(t, vision.Landmarks{}, f.Landmarks)
	require.False(t, hasImage)
}

func TestRecorderEvents(t *testing.T) {
	r, _ := testRecorder(true)

	require.NoError(t, r.Start("thumbs_up"))
	for i := 0; i < 3; i++ {
		require.NoError(t, r.Tick(sampleAt(float64(i) / 200)))
	}
	_, err := r.Stop()
	require.NoError(t, err)

	wantKinds := []record.EventKind{
		record.EventStarted,
		record.EventFrame,
		record.EventFrame,
		record.EventFrame,
		record.EventFinalized,
	}
	for i, want := range wantKinds {
		ev := <-r.Events()
		require.Equal(t, want, ev.Kind, "event %d", i)
		require.Equal(t, "thumbs_up", ev.Label)
	}

	// The finalize event carries the metadata consumers archive from.
	r2, _ := testRecorder(true)
	require.NoError(t, r2.Start("peace"))
	require.NoError(t, r2.Tick(sampleAt(0)))
	_, err = r2.Stop()
	require.NoError(t, err)

	<-r2.Events() // started
	<-r2.Events() // frame
	ev := <-r2.Events()
	require.Equal(t, record.EventFinalized, ev.Kind)
	require.Equal(t, 1, ev.Meta.NumFrames)
	require.Equal(t, "peace", ev.Meta.GestureLabel)
}

func TestRecorderElapsed(t *testing.T) {
	r, _ := testRecorder(true)
	require.Zero(t, r.Elapsed())

	require.NoError(t, r.Start("wave"))
	for i := 0; i < 100; i++ {
		require.NoError(t, r.Tick(sampleAt(float64(i) / 200)))
	}
	require.InDelta(t, 0.5, r.Elapsed(), 1e-9)

	_, err := r.Stop()
	require.NoError(t, err)
	require.InDelta(t, 0.5, r.Elapsed(), 1e-9) // holds after finalize
}

func TestRecorderStateStrings(t *testing.T) {
	require.Equal(t, "idle", record.Idle.String())
	require.Equal(t, "recording", record.Recording.String())
	require.Equal(t, "finalized", record.Finalized.String())
}

package vision_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/emg_monitor/internal/vision"
)

type scriptedFrames struct{ n atomic.Int32 }

func (s *scriptedFrames) NextFrame() ([]byte, error) {
	return []byte{byte(s.n.Add(1))}, nil
}

type scriptedDetector struct {
	calls atomic.Int32
	valid bool
}

func (d *scriptedDetector) Detect(frame []byte) (vision.Landmarks, bool, error) {
	d.calls.Add(1)
	var lm vision.Landmarks
	lm[0][0] = 0.5
	return lm, d.valid, nil
}

func readyLoader(t *testing.T, det vision.Detector) *vision.Loader {
	t.Helper()
	l := vision.StartLoad(func() (vision.Detector, error) { return det, nil })
	require.Eventually(t, l.Ready, time.Second, time.Millisecond)
	return l
}

func TestPipelinePublishesDetections(t *testing.T) {
	frames := &scriptedFrames{}
	det := &scriptedDetector{valid: true}
	slot := &vision.Slot{}

	p := vision.NewPipeline(frames, readyLoader(t, det), vision.NewRateController(1, 1), slot, 200)
	go p.Run()
	defer p.Stop()

	require.Eventually(t, func() bool {
		r := slot.Latest()
		return r.Seq >= 3 && r.Valid
	}, 2*time.Second, 5*time.Millisecond)

	r := slot.Latest()
	require.NotEmpty(t, r.Image)
	require.InDelta(t, 0.5, r.Landmarks[0][0], 1e-9)
	require.Greater(t, det.calls.Load(), int32(0))
}

func TestPipelinePropagatesNoHand(t *testing.T) {
	frames := &scriptedFrames{}
	det := &scriptedDetector{valid: false}
	slot := &vision.Slot{}

	p := vision.NewPipeline(frames, readyLoader(t, det), vision.NewRateController(1, 1), slot, 200)
	go p.Run()
	defer p.Stop()

	require.Eventually(t, func() bool {
		return slot.Latest().Seq >= 2
	}, 2*time.Second, 5*time.Millisecond)

	r := slot.Latest()
	require.False(t, r.Valid)
	require.Equal(t, vision.Landmarks{}, r.Landmarks)
	require.NotEmpty(t, r.Image)
}

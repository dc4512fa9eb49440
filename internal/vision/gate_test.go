package vision_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/emg_monitor/internal/vision"
)

func TestLoaderGate(t *testing.T) {
	release := make(chan struct{})
	l := vision.StartLoad(func() (vision.Detector, error) {
		<-release
		return vision.NewSynthDetector(), nil
	})

	// Not ready while the load is in flight.
	require.False(t, l.Ready())
	require.Nil(t, l.Detector())
	require.NoError(t, l.Err())

	close(release)
	require.Eventually(t, l.Ready, time.Second, time.Millisecond)
	require.NotNil(t, l.Detector())
	require.NoError(t, l.Err())
}

func TestLoaderFailureStaysNotReady(t *testing.T) {
	boom := errors.New("model file missing")
	l := vision.StartLoad(func() (vision.Detector, error) { return nil, boom })

	require.Eventually(t, func() bool { return l.Err() != nil }, time.Second, time.Millisecond)
	require.False(t, l.Ready())
	require.ErrorIs(t, l.Err(), boom)
	require.Nil(t, l.Detector())
}

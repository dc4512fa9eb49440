package vision_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/emg_monitor/internal/vision"
)

func TestSlotLatest(t *testing.T) {
	var s vision.Slot

	// Nothing published yet: the zero triple.
	require.Equal(t, vision.Result{}, s.Latest())

	s.Publish(vision.Result{Valid: true})
	first := s.Latest()
	require.True(t, first.Valid)
	require.Equal(t, uint64(1), first.Seq)

	s.Publish(vision.Result{Image: []byte("f2")})
	second := s.Latest()
	require.Equal(t, uint64(2), second.Seq)
	require.False(t, second.Valid)
	require.Equal(t, []byte("f2"), second.Image)

	// Polling between publishes repeats the previous result.
	require.Equal(t, second, s.Latest())
}

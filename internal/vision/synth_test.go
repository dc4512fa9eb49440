// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package vision_test

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/emg_monitor/internal/vision"
)

func TestSynthFramesProducePNG(t *testing.T) {
	src := vision.NewSynthFrames(160, 120)
	frame, err := src.NextFrame()
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(frame))
	require.NoError(t, err)
	require.Equal(t, 160, img.Bounds().Dx())
	require.Equal(t, 120, img.Bounds().Dy())
}

func TestSynthFramesDefaultDimensions(t *testing.T) {
	src := vision.NewSynthFrames(0, -1)
	frame, err := src.NextFrame()
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(frame))
	require.NoError(t, err)
	require.Equal(t, 160, img.Bounds().Dx())
	require.Equal(t, 120, img.Bounds().Dy())
}

func TestSynthDetectorPosesPlausible(t *testing.T) {
	det := vision.NewSynthDetector()

	// The presence cycle starts with the hand in frame.
	lm, valid, err := det.Detect(nil)
	require.NoError(t, err)
	require.True(t, valid)

	// Wrist near the frame center, finger joints close around it.
	require.InDelta(t, 0.5, lm[0][0], 0.2)
	require.InDelta(t, 0.6, lm[0][1], 0.2)
	for i := 1; i < vision.NumLandmarks; i++ {
		require.InDelta(t, lm[0][0], lm[i][0], 0.3, "landmark %d x", i)
		require.InDelta(t, lm[0][1], lm[i][1], 0.3, "landmark %d y", i)
	}
}

// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package vision

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math"
	"time"
)

// synthFrames generates small PNG frames with a drifting bright blob,
// standing in for a camera while developing off-hardware.
type synthFrames struct {
	start   time.Time
	w, h    int
	scratch *image.Gray
}

// NewSynthFrames creates a synthetic camera producing w x h PNG frames.
func NewSynthFrames(w, h int) FrameSource {
	if w <= 0 || h <= 0 {
		w, h = 160, 120
	}
	return &synthFrames{start: time.Now(), w: w, h: h, scratch: image.NewGray(image.Rect(0, 0, w, h))}
}

func (s *synthFrames) NextFrame() ([]byte, error) {
	elapsed := time.Since(s.start).Seconds()

	// Background gradient plus a blob circling where the "hand" would be.
	cx := float64(s.w) * (0.5 + 0.3*math.Sin(elapsed*0.8))
	cy := float64(s.h) * (0.5 + 0.3*math.Cos(elapsed*0.6))

	for y := 0; y < s.h; y++ {
		for x := 0; x < s.w; x++ {
			v := 40 + 30*float64(y)/float64(s.h)
			dx, dy := float64(x)-cx, float64(y)-cy
			d := math.Sqrt(dx*dx + dy*dy)
			if d < 18 {
				v += (18 - d) * 10
			}
			if v > 255 {
				v = 255
			}
			s.scratch.SetGray(x, y, color.Gray{Y: uint8(v)})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, s.scratch); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// synthDetector fabricates hand poses on a fixed presence cycle: the hand
// is "in frame" for most of each period and gone for the rest, which
// exercises both rate-controller cadences and the valid=false path.
type synthDetector struct {
	start  time.Time
	period float64 // seconds
}

// NewSynthDetector creates a detector that needs no camera or model.
func NewSynthDetector() Detector {
	return &synthDetector{start: time.Now(), period: 5}
}

func (d *synthDetector) Detect(frame []byte) (Landmarks, bool, error) {
	elapsed := time.Since(d.start).Seconds()
	phase := math.Mod(elapsed, d.period) / d.period

	// Hand absent for the last fifth of every period.
	if phase > 0.8 {
		return Landmarks{}, false, nil
	}

	var lm Landmarks
	wristX := 0.5 + 0.15*math.Sin(elapsed*1.1)
	wristY := 0.6 + 0.1*math.Cos(elapsed*0.9)
	curl := 0.5 + 0.5*math.Sin(elapsed*2.0) // 0 open .. 1 fist

	lm[0] = [3]float64{wristX, wristY, 0}
	for finger := 0; finger < 5; finger++ {
		baseAngle := -math.Pi/2 + (float64(finger)-2)*0.3
		for joint := 1; joint <= 4; joint++ {
			idx := finger*4 + joint
			reach := 0.05 * float64(joint) * (1 - 0.6*curl)
			lm[idx] = [3]float64{
				wristX + reach*math.Cos(baseAngle),
				wristY + reach*math.Sin(baseAngle),
				-0.02 * float64(joint),
			}
		}
	}
	return lm, true, nil
}

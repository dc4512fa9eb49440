// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package acquisition

import (
	"math"
	"math/rand"
	"time"

	"github.com/relabs-tech/emg_monitor/internal/emg"
	"github.com/relabs-tech/emg_monitor/internal/wire"
)

// SimSource fabricates the device's packet stream: per channel a 10 Hz
// sine of 150 µV with its own phase plus gaussian noise, one IMU packet
// every 20th EMG packet, one shared sequence counter. Packets go through
// the same encode/decode round trip as the hardware path, so the wire
// decoder is exercised even in simulation.
type SimSource struct {
	rate    int
	rng     *rand.Rand
	phases  [emg.NumChannels]float64
	ticker  *time.Ticker
	start   time.Time
	seq     uint8
	count   int
	pending wire.Packet // IMU packet queued behind its EMG sibling
}

const (
	simSineHz    = 10.0
	simAmplitude = 150.0
	simNoiseUV   = 25.0
	simIMUEvery  = 20
)

// NewSimSource creates a simulator paced at the given sample rate.
func NewSimSource(sampleRate int) *SimSource {
	if sampleRate <= 0 {
		sampleRate = emg.SampleRate
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	s := &SimSource{
		rate:   sampleRate,
		rng:    rng,
		ticker: time.NewTicker(time.Second / time.Duration(sampleRate)),
		start:  time.Now(),
	}
	for i := range s.phases {
		s.phases[i] = rng.Float64() * math.Pi
	}
	return s
}

// Next blocks until the next tick and returns the packet for it.
func (s *SimSource) Next() (wire.Packet, error) {
	if s.pending != nil {
		pkt := s.pending
		s.pending = nil
		return pkt, nil
	}

	<-s.ticker.C
	t := time.Since(s.start).Seconds()

	var channels [emg.NumChannels]float64
	for ch := range channels {
		base := math.Sin(2*math.Pi*simSineHz*t+s.phases[ch]) * simAmplitude
		channels[ch] = base + s.rng.NormFloat64()*simNoiseUV
	}

	raw := wire.EncodeEMG(s.seq, channels)
	s.seq++
	s.count++

	if s.count%simIMUEvery == 0 {
		gyro := [3]float64{s.uniform(1.5), s.uniform(1.5), s.uniform(1.5)}
		accel := [3]float64{s.uniform(0.5), s.uniform(0.5), s.uniform(0.5)}
		imuRaw := wire.EncodeIMU(s.seq, gyro, accel)
		s.seq++
		if pkt, err := wire.Decode(imuRaw); err == nil {
			s.pending = pkt
		}
	}

	return wire.Decode(raw)
}

func (s *SimSource) uniform(limit float64) float64 {
	return (s.rng.Float64()*2 - 1) * limit
}

// Close stops the pacing ticker.
func (s *SimSource) Close() error {
	s.ticker.Stop()
	return nil
}

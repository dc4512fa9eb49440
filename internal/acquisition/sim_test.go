// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package acquisition_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/emg_monitor/internal/acquisition"
	"github.com/relabs-tech/emg_monitor/internal/wire"
)

func TestSimSourceStream(t *testing.T) {
	src := acquisition.NewSimSource(2000) // fast pacing so the test stays quick
	defer src.Close()

	const total = 42
	var emgPackets, imuPackets int
	var lastSeq uint8
	for i := 0; i < total; i++ {
		pkt, err := src.Next()
		require.NoError(t, err)

		if i > 0 {
			require.Equal(t, uint8(lastSeq+1), pkt.Sequence(), "packet %d", i)
		}
		lastSeq = pkt.Sequence()

		switch p := pkt.(type) {
		case *wire.EMGPacket:
			emgPackets++
			for ch, v := range p.Channels {
				require.Lessf(t, v, 1000.0, "channel %d", ch)
				require.Greaterf(t, v, -1000.0, "channel %d", ch)
			}
		case *wire.IMUPacket:
			imuPackets++
		default:
			t.Fatalf("unexpected packet type %T", pkt)
		}
	}

	// An IMU reading rides behind every 20th sample.
	require.Equal(t, 40, emgPackets)
	require.Equal(t, 2, imuPackets)
}

func TestSimSourceDefaultsRate(t *testing.T) {
	src := acquisition.NewSimSource(0)
	defer src.Close()

	pkt, err := src.Next()
	require.NoError(t, err)
	require.IsType(t, &wire.EMGPacket{}, pkt)
}

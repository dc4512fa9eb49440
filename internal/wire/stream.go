// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package wire

import "bytes"

// StreamDecoder reassembles packets from an arbitrary byte stream.
//
// The device writes back-to-back 29-byte packets; after transport
// corruption the decoder scans forward to the next 0xD2 0xD2 0xD2 header
// and resumes. Sequence gaps are counted, not reported per packet.
type StreamDecoder struct {
	buf []byte

	haveSeq bool
	lastSeq uint8

	// Packets counts successfully decoded packets, Lost the samples implied
	// by sequence gaps, Dropped the bytes discarded during resync.
	Packets uint64
	Lost    uint64
	Dropped uint64
}

// Feed appends raw bytes and returns all packets completed by them.
func (d *StreamDecoder) Feed(data []byte) []Packet {
	d.buf = append(d.buf, data...)

	var out []Packet
	for len(d.buf) >= PacketLength {
		pos := bytes.Index(d.buf, Header)
		if pos < 0 {
			// No header anywhere; keep the tail that could still start one.
			if len(d.buf) > PacketLength-1 {
				d.Dropped += uint64(len(d.buf) - (PacketLength - 1))
				d.buf = d.buf[len(d.buf)-(PacketLength-1):]
			}
			break
		}
		if pos > 0 {
			d.Dropped += uint64(pos)
			d.buf = d.buf[pos:]
		}
		if len(d.buf) < PacketLength {
			break
		}

		pkt, err := Decode(d.buf[:PacketLength])
		if err != nil {
			// Header matched but the packet is bad; skip one byte and rescan.
			d.Dropped++
			d.buf = d.buf[1:]
			continue
		}
		d.buf = d.buf[PacketLength:]

		d.Packets++
		d.trackSequence(pkt.Sequence())
		out = append(out, pkt)
	}

	// Compact so the retained tail does not pin the grown backing array.
	if len(d.buf) > 0 && cap(d.buf) > 4*PacketLength {
		d.buf = append(make([]byte, 0, PacketLength), d.buf...)
	} else if len(d.buf) == 0 {
		d.buf = d.buf[:0]
	}

	return out
}

func (d *StreamDecoder) trackSequence(seq uint8) {
	if d.haveSeq {
		gap := seq - d.lastSeq - 1 // wraps mod 256
		d.Lost += uint64(gap)
	}
	d.haveSeq = true
	d.lastSeq = seq
}

// Reset discards buffered bytes and sequence state, keeping counters.
func (d *StreamDecoder) Reset() {
	d.buf = d.buf[:0]
	d.haveSeq = false
}

// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package wire decodes and encodes the WL-EMG binary device protocol.
//
// Every packet is 29 bytes: a 3-byte header (0xD2 0xD2 0xD2), a type byte
// (0xAA = EMG, 0xBB = IMU), a sequence byte (mod 256) and a 24-byte payload.
// EMG payloads carry 8 channels as big-endian signed 24-bit microvolt
// values. IMU payloads carry 12 big-endian int16 words: gyro x/y/z, accel
// x/y/z, then 6 reserved words.
package wire

import (
	"fmt"

	"github.com/relabs-tech/emg_monitor/internal/emg"
)

const (
	// PacketLength is the fixed size of every device packet.
	PacketLength = 29

	// TypeEMG and TypeIMU are the packet type discriminators.
	TypeEMG = 0xAA
	TypeIMU = 0xBB

	headerByte  = 0xD2
	payloadOff  = 5
	payloadLen  = 24
	bytesPerCh  = 3
	imuWords    = 12
	imuDataOff  = 0 // gyro words start the payload
	imuAccelOff = 3
)

// Header is the 3-byte packet preamble used for stream resynchronization.
var Header = []byte{headerByte, headerByte, headerByte}

// Scale factors applied to raw IMU words.
const (
	GyroScale  = 0.0012    // rad/s per LSB
	AccelScale = 0.0005978 // m/s² per LSB
)

// Packet is a decoded device packet, either *EMGPacket or *IMUPacket.
type Packet interface {
	Sequence() uint8
}

// EMGPacket carries one 8-channel sample in microvolts.
type EMGPacket struct {
	Seq      uint8
	Channels [emg.NumChannels]float64
}

func (p *EMGPacket) Sequence() uint8 { return p.Seq }

// IMUPacket carries one scaled inertial reading.
type IMUPacket struct {
	Seq       uint8
	Gyro      [3]float64 // rad/s
	Accel     [3]float64 // m/s²
	Remainder [6]int16   // reserved words, passed through for diagnostics
}

func (p *IMUPacket) Sequence() uint8 { return p.Seq }

// Decode parses a single 29-byte packet.
func Decode(raw []byte) (Packet, error) {
	if len(raw) != PacketLength {
		return nil, fmt.Errorf("wire: expected %d bytes, got %d", PacketLength, len(raw))
	}
	if raw[0] != headerByte || raw[1] != headerByte || raw[2] != headerByte {
		return nil, fmt.Errorf("wire: packet missing %02x header", headerByte)
	}

	typ := raw[3]
	seq := raw[4]
	payload := raw[payloadOff : payloadOff+payloadLen]

	switch typ {
	case TypeEMG:
		p := &EMGPacket{Seq: seq}
		for ch := 0; ch < emg.NumChannels; ch++ {
			off := ch * bytesPerCh
			p.Channels[ch] = float64(signed24(payload[off], payload[off+1], payload[off+2]))
		}
		return p, nil

	case TypeIMU:
		var words [imuWords]int16
		for i := range words {
			words[i] = signed16(payload[2*i], payload[2*i+1])
		}
		p := &IMUPacket{Seq: seq}
		for i := 0; i < 3; i++ {
			p.Gyro[i] = float64(words[imuDataOff+i]) * GyroScale
			p.Accel[i] = float64(words[imuAccelOff+i]) * AccelScale
		}
		copy(p.Remainder[:], words[6:])
		return p, nil

	default:
		return nil, fmt.Errorf("wire: unknown packet type 0x%02X", typ)
	}
}

// EncodeEMG builds a 29-byte EMG packet. Channel values are clamped to the
// signed 24-bit range before encoding.
func EncodeEMG(seq uint8, channels [emg.NumChannels]float64) []byte {
	raw := make([]byte, PacketLength)
	raw[0], raw[1], raw[2] = headerByte, headerByte, headerByte
	raw[3] = TypeEMG
	raw[4] = seq
	for ch, v := range channels {
		off := payloadOff + ch*bytesPerCh
		putSigned24(raw[off:off+3], clamp24(v))
	}
	return raw
}

// EncodeIMU builds a 29-byte IMU packet from already-scaled values.
func EncodeIMU(seq uint8, gyro, accel [3]float64) []byte {
	raw := make([]byte, PacketLength)
	raw[0], raw[1], raw[2] = headerByte, headerByte, headerByte
	raw[3] = TypeIMU
	raw[4] = seq
	for i := 0; i < 3; i++ {
		putSigned16(raw[payloadOff+2*i:], int16(gyro[i]/GyroScale))
		putSigned16(raw[payloadOff+6+2*i:], int16(accel[i]/AccelScale))
	}
	return raw
}

func signed24(b0, b1, b2 byte) int32 {
	v := int32(b0)<<16 | int32(b1)<<8 | int32(b2)
	if v&0x800000 != 0 {
		v -= 1 << 24
	}
	return v
}

func signed16(b0, b1 byte) int16 {
	return int16(uint16(b0)<<8 | uint16(b1))
}

func putSigned24(dst []byte, v int32) {
	u := uint32(v) & 0xFFFFFF
	dst[0] = byte(u >> 16)
	dst[1] = byte(u >> 8)
	dst[2] = byte(u)
}

func putSigned16(dst []byte, v int16) {
	u := uint16(v)
	dst[0] = byte(u >> 8)
	dst[1] = byte(u)
}

func clamp24(v float64) int32 {
	const (
		min = -1 << 23
		max = 1<<23 - 1
	)
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return int32(v)
}

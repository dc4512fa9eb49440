// Package acquisition provides the packet sources feeding the producer:
// the serial device transport and a drop-in simulator for development
// without hardware. Both speak the same wire protocol, so the producer
// never knows which one it is reading.
package acquisition

import "github.com/relabs-tech/emg_monitor/internal/wire"

// Source delivers device packets at the device's own pace. Next blocks
// until a packet is available and returns an error on disconnect; the
// caller is expected to Close and reopen to recover.
type Source interface {
	Next() (wire.Packet, error)
	Close() error
}

// Stats reports transport health counters where a source tracks them.
type Stats struct {
	Packets uint64
	Lost    uint64 // samples implied by sequence gaps
	Dropped uint64 // bytes discarded during resync
}

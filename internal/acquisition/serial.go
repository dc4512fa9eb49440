package acquisition

import (
	"fmt"
	"io"

	serial "github.com/jacobsa/go-serial/serial"

	"github.com/relabs-tech/emg_monitor/internal/wire"
)

// SerialSource reads the binary packet stream from the device's USB
// serial bridge.
type SerialSource struct {
	port    io.ReadWriteCloser
	decoder wire.StreamDecoder
	queue   []wire.Packet
	readBuf []byte
}

// OpenSerial opens the device port in raw 8N1 mode.
func OpenSerial(portName string, baud uint) (*SerialSource, error) {
	serialOpts := serial.OpenOptions{
		PortName:              portName,
		BaudRate:              baud,
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}

	port, err := serial.Open(serialOpts)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", portName, err)
	}
	return &SerialSource{
		port:    port,
		readBuf: make([]byte, 4096),
	}, nil
}

// Next returns the next decoded packet, reading more bytes as needed.
func (s *SerialSource) Next() (wire.Packet, error) {
	for len(s.queue) == 0 {
		n, err := s.port.Read(s.readBuf)
		if err != nil {
			return nil, fmt.Errorf("serial read: %w", err)
		}
		s.queue = s.decoder.Feed(s.readBuf[:n])
	}
	pkt := s.queue[0]
	s.queue = s.queue[1:]
	return pkt, nil
}

// Stats returns transport health counters.
func (s *SerialSource) Stats() Stats {
	return Stats{
		Packets: s.decoder.Packets,
		Lost:    s.decoder.Lost,
		Dropped: s.decoder.Dropped,
	}
}

// Close releases the port.
func (s *SerialSource) Close() error {
	return s.port.Close()
}

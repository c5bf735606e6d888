// serial.go - headless drain for the PERIPH serial TX/RX registers
//
// Grounded on terminal_host.go's PrintOutput/DrainOutput pattern: poll a
// ready flag, consume one byte, buffer it for the caller to drain on its
// own schedule. Unlike TerminalHost, this has no controlling-terminal
// dependency — it operates purely against the device's PERIPH window, so
// it can run in tests and in cmd/rv32run's headless mode alike.
package host

import "github.com/intuitionamiga/rv32core/internal/device"

// Serial drains guest→host serial TX bytes and injects host→guest RX
// bytes through the PERIPH region.
type Serial struct {
	dev  *device.Device
	base uint32
	buf  []byte
}

// NewSerial returns a drain bound to the device's PERIPH window at
// periphOrigin.
func NewSerial(dev *device.Device, periphOrigin uint32) *Serial {
	return &Serial{dev: dev, base: periphOrigin}
}

// Poll checks the TX-ready flag; if set, it consumes the TX data byte,
// appends it to the internal buffer, and clears the ready flag so the
// guest can send the next byte.
func (s *Serial) Poll() {
	ready, ok := s.dev.Read(s.base+device.PeriphTXReady, 1)
	if !ok || ready[0] == 0 {
		return
	}
	data, ok := s.dev.Read(s.base+device.PeriphTXData, 1)
	if !ok {
		return
	}
	s.buf = append(s.buf, data[0])
	s.dev.Write(s.base+device.PeriphTXReady, 1, 0)
}

// DrainOutput returns everything buffered since the last call and
// clears the buffer.
func (s *Serial) DrainOutput() string {
	out := string(s.buf)
	s.buf = s.buf[:0]
	return out
}

// InjectRX delivers one byte to the guest's RX register and raises the
// RX-ready flag. The guest is responsible for clearing the flag after
// consuming the byte.
func (s *Serial) InjectRX(b byte) {
	s.dev.Write(s.base+device.PeriphRXData, 1, uint32(b))
	s.dev.Write(s.base+device.PeriphRXReady, 1, 1)
}

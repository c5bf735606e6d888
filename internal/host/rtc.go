// rtc.go - headless responder for the PERIPH RTC request register
package host

import (
	"time"

	"github.com/intuitionamiga/rv32core/internal/device"
)

// RTC answers guest RTC requests with milliseconds elapsed since the
// responder was created.
type RTC struct {
	dev   *device.Device
	base  uint32
	start time.Time
}

// NewRTC returns an RTC responder bound to the device's PERIPH window at
// periphOrigin, with its epoch set to the current time.
func NewRTC(dev *device.Device, periphOrigin uint32) *RTC {
	return &RTC{dev: dev, base: periphOrigin, start: time.Now()}
}

// Poll checks the RTC request flag; if set, it writes the elapsed
// milliseconds and clears the flag.
func (r *RTC) Poll() {
	req, ok := r.dev.Read(r.base+device.PeriphRTCReq, 1)
	if !ok || req[0] == 0 {
		return
	}
	elapsed := uint32(time.Since(r.start).Milliseconds())
	r.dev.Write(r.base+device.PeriphRTCMillis, 4, elapsed)
	r.dev.Write(r.base+device.PeriphRTCReq, 1, 0)
}

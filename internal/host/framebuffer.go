// framebuffer.go - headless drain for the PERIPH VSYNC/framebuffer window
//
// Grounded on video_backend_headless.go's snapshot-on-poll pattern: the
// guest publishes a ready flag, the host copies the window once, and
// clears the flag. No GUI dependency lives here; cmd/rv32view owns the
// ebiten-backed presentation of the snapshot this type produces.
package host

import "github.com/intuitionamiga/rv32core/internal/device"

// Framebuffer drains the PERIPH VSYNC flag and the 320x200 RGBA8 window
// behind it.
type Framebuffer struct {
	dev      *device.Device
	base     uint32
	snapshot []byte
	frames   uint64
}

// NewFramebuffer returns a drain bound to the device's PERIPH window at
// periphOrigin.
func NewFramebuffer(dev *device.Device, periphOrigin uint32) *Framebuffer {
	return &Framebuffer{dev: dev, base: periphOrigin}
}

// Poll checks the VSYNC flag; when set, it copies the framebuffer window
// into the retained snapshot, clears the flag, and returns true.
func (f *Framebuffer) Poll() bool {
	v, ok := f.dev.Read(f.base+device.PeriphVSync, 1)
	if !ok || v[0] == 0 {
		return false
	}
	f.snapshot = f.dev.Framebuffer()
	f.dev.Write(f.base+device.PeriphVSync, 1, 0)
	f.frames++
	return true
}

// Snapshot returns the most recently drained framebuffer, or nil if
// none has been drained yet.
func (f *Framebuffer) Snapshot() []byte { return f.snapshot }

// Frames returns the number of VSYNCs drained so far.
func (f *Framebuffer) Frames() uint64 { return f.frames }

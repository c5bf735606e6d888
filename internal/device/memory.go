// memory.go - the unified ROM/RAM/PERIPH address space
//
// Grounded on memory_bus.go's SystemBus / machine_bus.go's MachineBus: a
// small ordered table of regions, byte buffers, and little-endian word
// access. Unlike the reference bus, routing here is a first-match linear
// scan over three fixed regions rather than a page-masked IO map, because
// there are only three regions and they may overlap in address space.

package device

import "encoding/binary"

// region is one of the three address-space windows (ROM, RAM, PERIPH).
// Bytes are stored unsynchronised; callers serialise access via Step.
type region struct {
	name   string
	origin uint32
	data   []byte
}

func newRegion(name string, origin, size uint32) region {
	return region{name: name, origin: origin, data: make([]byte, size)}
}

// contains reports whether the byte range [addr, addr+n) lies fully
// inside this region.
func (r *region) contains(addr uint32, n uint32) bool {
	if addr < r.origin {
		return false
	}
	end := r.origin + uint32(len(r.data))
	return addr >= r.origin && addr+n <= end && addr+n >= addr
}

// addressSpace holds the three regions in first-match routing order:
// RAM, then ROM, then PERIPH. ROM is writable through this interface —
// it is "ROM" only by guest convention.
type addressSpace struct {
	ram    region
	rom    region
	periph region
}

func newAddressSpace(romSize, romOrigin, ramSize, ramOrigin, periphSize, periphOrigin uint32) *addressSpace {
	return &addressSpace{
		ram:    newRegion("RAM", ramOrigin, ramSize),
		rom:    newRegion("ROM", romOrigin, romSize),
		periph: newRegion("PERIPH", periphOrigin, periphSize),
	}
}

// order returns the three regions in routing order: RAM, ROM, PERIPH.
func (as *addressSpace) order() [3]*region {
	return [3]*region{&as.ram, &as.rom, &as.periph}
}

// find returns the first region (in RAM, ROM, PERIPH order) whose byte
// range fully contains [addr, addr+n), or nil if none does.
func (as *addressSpace) find(addr, n uint32) *region {
	for _, r := range as.order() {
		if r.contains(addr, n) {
			return r
		}
	}
	return nil
}

// Read copies n (1, 2 or 4) little-endian bytes starting at addr. ok is
// false iff no region fully contains the range, in which case buf's
// contents are unspecified.
func (as *addressSpace) Read(addr, n uint32) (buf []byte, ok bool) {
	r := as.find(addr, n)
	if r == nil {
		return nil, false
	}
	off := addr - r.origin
	out := make([]byte, n)
	copy(out, r.data[off:off+n])
	return out, true
}

// read32 is a convenience wrapper used by the fetch and load paths that
// already know the width and want a decoded value rather than raw bytes.
func (as *addressSpace) read32(addr uint32) (uint32, bool) {
	r := as.find(addr, 4)
	if r == nil {
		return 0, false
	}
	off := addr - r.origin
	return binary.LittleEndian.Uint32(r.data[off : off+4]), true
}

func (as *addressSpace) read16(addr uint32) (uint16, bool) {
	r := as.find(addr, 2)
	if r == nil {
		return 0, false
	}
	off := addr - r.origin
	return binary.LittleEndian.Uint16(r.data[off : off+2]), true
}

func (as *addressSpace) read8(addr uint32) (uint8, bool) {
	r := as.find(addr, 1)
	if r == nil {
		return 0, false
	}
	return r.data[addr-r.origin], true
}

// Write copies n little-endian bytes from v (only the low n bytes are
// used) into the matching region. ok is false iff no region fully
// contains the range — no partial write is ever made.
func (as *addressSpace) Write(addr, n, v uint32) (ok bool) {
	r := as.find(addr, n)
	if r == nil {
		return false
	}
	off := addr - r.origin
	switch n {
	case 1:
		r.data[off] = byte(v)
	case 2:
		binary.LittleEndian.PutUint16(r.data[off:off+2], uint16(v))
	case 4:
		binary.LittleEndian.PutUint32(r.data[off:off+4], v)
	default:
		return false
	}
	return true
}

// WriteBytes writes a caller-supplied byte slice verbatim (used by the
// ELF loader, which writes arbitrary section sizes rather than 1/2/4).
func (as *addressSpace) WriteBytes(addr uint32, b []byte) (ok bool) {
	r := as.find(addr, uint32(len(b)))
	if r == nil {
		return false
	}
	off := addr - r.origin
	copy(r.data[off:], b)
	return true
}

// device.go - the outer driver owning one RV32IM+Zicond core instance
//
// The reference source keeps a file-scope device_t singleton; here the
// device is an ordinary value the caller owns and passes by pointer,
// per the "global mutable device singleton" redesign note.

package device

// Config configures region sizes and origins at construction time. The
// conventional guest-toolchain layout is ROM at 0x0800_0000, RAM at
// 0x2000_0000, PERIPH at 0x0100_0000, but nothing in the core assumes
// those specific values.
type Config struct {
	ROMSize      uint32
	ROMOrigin    uint32
	RAMSize      uint32
	RAMOrigin    uint32
	PeriphSize   uint32
	PeriphOrigin uint32
}

// PERIPH MMIO offsets, fixed by the external interface contract.
const (
	PeriphTXData    = 0x00
	PeriphTXReady   = 0x01
	PeriphRXData    = 0x02
	PeriphRXReady   = 0x03
	PeriphRTCMillis = 0x04
	PeriphRTCReq    = 0x0C
	PeriphVSync     = 0x24
	PeriphFBOffset  = 0x28

	FramebufferWidth  = 320
	FramebufferHeight = 200
	FramebufferBytes  = FramebufferWidth * FramebufferHeight * 4
)

// Device is one RV32IM+Zicond core instance: address space, register
// file, program counter, cycle counter, decoded-instruction cache and
// optional ILP schedule.
type Device struct {
	mem  *addressSpace
	regs [32]uint32
	pc   uint32
	cyc  uint64

	cfg Config

	cache    []Inst // decoded-instruction cache, nil until BuildCache
	cacheLo  uint32 // ROM.origin
	cacheHi  uint32 // prog_end watermark
	exitAddr uint32
	hasExit  bool

	ilp *ilpSchedule // nil until LoadILP succeeds

	lastErr error
}

// New constructs a Device with freshly allocated, zeroed regions. PC is
// initialised to ROM.origin.
func New(cfg Config) *Device {
	d := &Device{
		mem:     newAddressSpace(cfg.ROMSize, cfg.ROMOrigin, cfg.RAMSize, cfg.RAMOrigin, cfg.PeriphSize, cfg.PeriphOrigin),
		cfg:     cfg,
		pc:      cfg.ROMOrigin,
		cacheLo: cfg.ROMOrigin,
	}
	return d
}

// Teardown releases the device's memory. The device must not be used
// afterwards.
func (d *Device) Teardown() {
	d.mem = nil
	d.cache = nil
	d.ilp = nil
}

// Err returns the error recorded by the most recent failing Step, or nil.
func (d *Device) Err() error {
	return d.lastErr
}

// PC returns the current program counter.
func (d *Device) PC() uint32 { return d.pc }

// Cycles returns the monotonic cycle counter.
func (d *Device) Cycles() uint64 { return d.cyc }

// Reg reads register i (0-31). x0 always reads as zero.
func (d *Device) Reg(i uint8) uint32 {
	if i == 0 {
		return 0
	}
	return d.regs[i&0x1F]
}

// SetReg writes register i. Writing x0 is a documented no-op.
func (d *Device) SetReg(i uint8, v uint32) {
	d.setReg(i, v)
}

func (d *Device) setReg(i uint8, v uint32) {
	if i == 0 {
		return
	}
	d.regs[i&0x1F] = v
}

// Read reads n (1, 2 or 4) bytes at addr from whichever region matches
// first (RAM, ROM, PERIPH). ok is false if no region contains the range.
func (d *Device) Read(addr, n uint32) ([]byte, bool) {
	return d.mem.Read(addr, n)
}

// Write writes the low n bytes of v at addr. ok is false if no region
// contains the range; no partial write is made in that case.
func (d *Device) Write(addr, n, v uint32) bool {
	return d.mem.Write(addr, n, v)
}

// Step executes exactly one guest instruction (or, if an ILP schedule is
// active and PC sits at a scheduled block, one slice of instructions).
// It returns false on any execution-time error; callers must not call
// Step again after a false return.
func (d *Device) Step() bool {
	if d.ilp != nil {
		if handled, ok := d.stepILP(); handled {
			return ok
		}
	}
	return d.stepSequential()
}

// stepSequential implements the plain fetch-decode-execute-advance path.
func (d *Device) stepSequential() bool {
	inst, ok := d.fetchDecode(d.pc)
	if !ok {
		d.lastErr = ErrFetch
		return false
	}
	res := d.execute(inst, d.pc)
	if !res.ok {
		if d.lastErr == nil {
			d.lastErr = ErrMemory
		}
		return false
	}
	d.finishStep(res)
	return true
}

// finishStep applies the common tail: PC advance (unless the instruction
// set it), x0 re-zeroing, and the cycle-counter increment.
func (d *Device) finishStep(res execResult) {
	if res.pcIsSet {
		d.pc = res.nextPC
	} else {
		d.pc += 4
	}
	d.regs[0] = 0
	d.cyc++
}

// fetchDecode fetches the instruction word at addr and decodes it,
// consulting the decoded-instruction cache when addr falls within its
// covered range.
func (d *Device) fetchDecode(addr uint32) (Inst, bool) {
	if d.cache != nil && addr >= d.cacheLo && addr < d.cacheHi && addr%4 == 0 {
		idx := (addr - d.cacheLo) / 4
		if int(idx) < len(d.cache) {
			inst := d.cache[idx]
			if inst.Op == OpInvalid {
				d.lastErr = ErrDecode
			}
			return inst, true
		}
	}
	w, ok := d.mem.read32(addr)
	if !ok {
		return Inst{}, false
	}
	inst := Decode(w)
	if inst.Op == OpInvalid {
		d.lastErr = ErrDecode
	}
	return inst, true
}

// BuildCache pre-decodes the ROM range [ROM.origin, prog_end) into the
// decoded-instruction cache, as the loader does after an ELF load.
func (d *Device) BuildCache(progEnd uint32) {
	lo := d.cfg.ROMOrigin
	if progEnd <= lo {
		d.cache = nil
		return
	}
	n := (progEnd - lo + 3) / 4
	cache := make([]Inst, n)
	for i := range cache {
		addr := lo + uint32(i)*4
		w, ok := d.mem.read32(addr)
		if !ok {
			cache[i] = Inst{Op: OpInvalid}
			continue
		}
		cache[i] = Decode(w)
	}
	d.cache = cache
	d.cacheLo = lo
	d.cacheHi = progEnd
}

// ExitAddr returns the resolved _exit symbol address and whether one was
// found by the most recent LoadELF call.
func (d *Device) ExitAddr() (uint32, bool) {
	return d.exitAddr, d.hasExit
}

// Framebuffer returns a copy of the PERIPH framebuffer window
// (320x200 RGBA8, row-major).
func (d *Device) Framebuffer() []byte {
	buf, ok := d.mem.Read(d.cfg.PeriphOrigin+PeriphFBOffset, FramebufferBytes)
	if !ok {
		return nil
	}
	return buf
}

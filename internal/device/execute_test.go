package device

import "testing"

func newTestDevice() *Device {
	return New(testConfig())
}

// Scenario 1: addi x1,x0,1; sw x1,0(x2) with x2 = 0x0100_0001.
func TestScenarioStoreByte(t *testing.T) {
	d := newTestDevice()
	d.SetReg(2, testPeriphOrigin+1)

	res := d.execute(Inst{Op: OpAddi, Rd: 1, Rs1: 0, Imm: 1}, d.pc)
	if !res.ok {
		t.Fatal("addi failed")
	}
	d.finishStep(res)
	if d.Reg(1) != 1 {
		t.Fatalf("x1 = %d, want 1", d.Reg(1))
	}

	res = d.execute(Inst{Op: OpSw, Rs1: 2, Rs2: 1, Imm: 0}, d.pc)
	if !res.ok {
		t.Fatal("sw failed")
	}
	d.finishStep(res)

	b, ok := d.Read(testPeriphOrigin+1, 1)
	if !ok || b[0] != 0x01 {
		t.Fatalf("periph byte = %v ok=%v, want [0x01]", b, ok)
	}
}

// Scenario 2: lui x1, 0x12345; addi x1, x1, 0x678 (bit 11 clear, so the
// immediate sign-extends to +0x678 and x1 ends as 0x12345678).
func TestScenarioLuiAddiSignExtension(t *testing.T) {
	d := newTestDevice()
	res := d.execute(Inst{Op: OpLui, Rd: 1, Imm: 0x12345}, d.pc)
	d.finishStep(res)
	if d.Reg(1) != 0x12345000 {
		t.Fatalf("after LUI x1 = %#x, want 0x12345000", d.Reg(1))
	}

	imm := signExtend(0x678, 12)
	res = d.execute(Inst{Op: OpAddi, Rd: 1, Rs1: 1, Imm: imm}, d.pc)
	d.finishStep(res)
	want := uint32(0x12345000) + uint32(imm)
	if d.Reg(1) != want {
		t.Fatalf("after ADDI x1 = %#x, want %#x", d.Reg(1), want)
	}
}

// Scenario 3: beq x0,x0,+8 taken; PC advances by imm, not by 4.
func TestScenarioBranchTaken(t *testing.T) {
	d := newTestDevice()
	start := d.pc
	res := d.execute(Inst{Op: OpBeq, Rs1: 0, Rs2: 0, Imm: 8}, d.pc)
	if !res.pcIsSet {
		t.Fatal("expected branch to set PC")
	}
	d.finishStep(res)
	if d.pc != start+8 {
		t.Fatalf("pc = %#x, want %#x", d.pc, start+8)
	}
}

// Scenario 4: jal x1, +16 at PC=P: x1 = P+4, PC = P+16.
func TestScenarioJAL(t *testing.T) {
	d := newTestDevice()
	p := d.pc
	res := d.execute(Inst{Op: OpJal, Rd: 1, Imm: 16}, p)
	d.finishStep(res)
	if d.Reg(1) != p+4 {
		t.Fatalf("x1 = %#x, want %#x", d.Reg(1), p+4)
	}
	if d.pc != p+16 {
		t.Fatalf("pc = %#x, want %#x", d.pc, p+16)
	}
}

// Scenario 5: auipc x1, 0x1; jalr x0, x1, 4 at PC=P: no low-bit masking.
func TestScenarioAUIPCJALRNoMasking(t *testing.T) {
	d := newTestDevice()
	p := d.pc
	res := d.execute(Inst{Op: OpAuipc, Rd: 1, Imm: 0x1}, p)
	d.finishStep(res)
	wantX1 := p + 0x1000
	if d.Reg(1) != wantX1 {
		t.Fatalf("x1 = %#x, want %#x", d.Reg(1), wantX1)
	}

	res = d.execute(Inst{Op: OpJalr, Rd: 0, Rs1: 1, Imm: 4}, d.pc)
	d.finishStep(res)
	wantPC := wantX1 + 4
	if d.pc != wantPC {
		t.Fatalf("pc = %#x, want %#x (unmasked)", d.pc, wantPC)
	}
}

func TestX0AlwaysZero(t *testing.T) {
	d := newTestDevice()
	d.SetReg(0, 0xDEADBEEF)
	if d.Reg(0) != 0 {
		t.Fatalf("x0 = %#x, want 0", d.Reg(0))
	}
	res := d.execute(Inst{Op: OpAddi, Rd: 0, Rs1: 0, Imm: 5}, d.pc)
	d.finishStep(res)
	if d.Reg(0) != 0 {
		t.Fatalf("x0 after write-attempt = %#x, want 0", d.Reg(0))
	}
}

func TestPCAdvancesByFourOnNonBranch(t *testing.T) {
	d := newTestDevice()
	start := d.pc
	res := d.execute(Inst{Op: OpAddi, Rd: 1, Rs1: 0, Imm: 1}, d.pc)
	d.finishStep(res)
	if d.pc != start+4 {
		t.Fatalf("pc = %#x, want %#x", d.pc, start+4)
	}
}

func TestCycleCounterMonotonic(t *testing.T) {
	d := newTestDevice()
	for i := 0; i < 5; i++ {
		res := d.execute(Inst{Op: OpAddi, Rd: 1, Rs1: 0, Imm: 1}, d.pc)
		d.finishStep(res)
	}
	if d.Cycles() != 5 {
		t.Fatalf("cycles = %d, want 5", d.Cycles())
	}
}

func TestDivRemZeroAndOverflowPolicy(t *testing.T) {
	d := newTestDevice()
	d.SetReg(1, 10)
	d.SetReg(2, 0)
	if got := divSigned(d.Reg(1), d.Reg(2)); got != 0xFFFFFFFF {
		t.Errorf("DIV by zero = %#x, want -1", got)
	}
	if got := divUnsigned(d.Reg(1), d.Reg(2)); got != 0xFFFFFFFF {
		t.Errorf("DIVU by zero = %#x, want 0xFFFFFFFF", got)
	}
	if got := remSigned(d.Reg(1), d.Reg(2)); got != 10 {
		t.Errorf("REM by zero = %d, want dividend 10", got)
	}

	minInt := uint32(0x80000000)
	negOne := uint32(0xFFFFFFFF)
	if got := divSigned(minInt, negOne); got != minInt {
		t.Errorf("INT_MIN/-1 = %#x, want %#x", got, minInt)
	}
	if got := remSigned(minInt, negOne); got != 0 {
		t.Errorf("INT_MIN%%-1 = %d, want 0", got)
	}
}

func TestCzeroInstructions(t *testing.T) {
	d := newTestDevice()
	d.SetReg(1, 0x42)
	d.SetReg(2, 0)
	res := d.execute(Inst{Op: OpCzeroEqz, Rd: 3, Rs1: 1, Rs2: 2}, d.pc)
	d.finishStep(res)
	if d.Reg(3) != 0 {
		t.Errorf("CZERO.EQZ with rs2=0: rd = %#x, want 0", d.Reg(3))
	}

	d.SetReg(2, 1)
	res = d.execute(Inst{Op: OpCzeroNez, Rd: 4, Rs1: 1, Rs2: 2}, d.pc)
	d.finishStep(res)
	if d.Reg(4) != 0 {
		t.Errorf("CZERO.NEZ with rs2!=0: rd = %#x, want 0", d.Reg(4))
	}
}

func TestMulhFamily(t *testing.T) {
	d := newTestDevice()
	d.SetReg(1, 0xFFFFFFFF) // -1
	d.SetReg(2, 0xFFFFFFFF) // -1 signed, large unsigned

	res := d.execute(Inst{Op: OpMulh, Rd: 3, Rs1: 1, Rs2: 2}, d.pc)
	d.finishStep(res)
	if d.Reg(3) != 0 { // (-1)*(-1) = 1, upper 32 bits = 0
		t.Errorf("MULH = %#x, want 0", d.Reg(3))
	}

	res = d.execute(Inst{Op: OpMulhu, Rd: 4, Rs1: 1, Rs2: 2}, d.pc)
	d.finishStep(res)
	want := uint32((uint64(0xFFFFFFFF) * uint64(0xFFFFFFFF)) >> 32)
	if d.Reg(4) != want {
		t.Errorf("MULHU = %#x, want %#x", d.Reg(4), want)
	}
}

func TestMemoryFaultLeavesStateUnchanged(t *testing.T) {
	d := newTestDevice()
	d.SetReg(1, 0xFFFF0000) // unmapped
	startPC := d.pc
	res := d.execute(Inst{Op: OpSw, Rs1: 1, Rs2: 2, Imm: 0}, d.pc)
	if res.ok {
		t.Fatal("expected store to unmapped address to fail")
	}
	if d.pc != startPC {
		t.Fatalf("pc moved on failure: %#x != %#x", d.pc, startPC)
	}
}

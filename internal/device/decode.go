// decode.go - RV32 instruction word decoding
//
// Field extraction follows the canonical RV32 bit layouts; a decode run
// never mutates state. Grounded on the reference CPU's addressing-mode
// resolver style (resolveOperand in cpu_ie32.go) generalised from a
// single fixed instruction width to RISC-V's per-format immediate
// encodings.

package device

const (
	opcodeRType  = 0x33
	opcodeIType  = 0x13
	opcodeLoad   = 0x03
	opcodeStore  = 0x23
	opcodeBranch = 0x63
	opcodeJAL    = 0x6F
	opcodeJALR   = 0x67
	opcodeLUI    = 0x37
	opcodeAUIPC  = 0x17
	opcodeSystem = 0x73
)

func bits(w uint32, hi, lo int) uint32 {
	return (w >> uint(lo)) & ((1 << uint(hi-lo+1)) - 1)
}

func signExtend(v uint32, bitWidth int) int32 {
	shift := 32 - bitWidth
	return int32(v<<uint(shift)) >> uint(shift)
}

// Decode maps a 32-bit instruction word to a decoded form, or OpInvalid
// if the opcode/funct-field combination is not recognised.
func Decode(w uint32) Inst {
	opcode := w & 0x7F
	rd := uint8(bits(w, 11, 7))
	funct3 := uint8(bits(w, 14, 12))
	rs1 := uint8(bits(w, 19, 15))
	rs2 := uint8(bits(w, 24, 20))
	funct7 := uint8(bits(w, 31, 25))

	switch opcode {
	case opcodeRType:
		return decodeRType(rd, funct3, rs1, rs2, funct7)
	case opcodeIType:
		imm := signExtend(bits(w, 31, 20), 12)
		return decodeIType(rd, funct3, rs1, imm)
	case opcodeLoad:
		imm := signExtend(bits(w, 31, 20), 12)
		return decodeLoad(rd, funct3, rs1, imm)
	case opcodeStore:
		immRaw := bits(w, 31, 25)<<5 | bits(w, 11, 7)
		imm := signExtend(immRaw, 12)
		return decodeStore(funct3, rs1, rs2, imm)
	case opcodeBranch:
		immRaw := bits(w, 31, 31)<<12 | bits(w, 7, 7)<<11 | bits(w, 30, 25)<<5 | bits(w, 11, 8)<<1
		imm := signExtend(immRaw, 13)
		return decodeBranch(funct3, rs1, rs2, imm)
	case opcodeJAL:
		immRaw := bits(w, 31, 31)<<20 | bits(w, 19, 12)<<12 | bits(w, 20, 20)<<11 | bits(w, 30, 21)<<1
		imm := signExtend(immRaw, 21)
		return Inst{Op: OpJal, Rd: rd, Imm: imm}
	case opcodeJALR:
		if funct3 != 0 {
			return Inst{Op: OpInvalid}
		}
		imm := signExtend(bits(w, 31, 20), 12)
		return Inst{Op: OpJalr, Rd: rd, Rs1: rs1, Imm: imm}
	case opcodeLUI:
		imm := signExtend(bits(w, 31, 12), 20)
		return Inst{Op: OpLui, Rd: rd, Imm: imm}
	case opcodeAUIPC:
		imm := signExtend(bits(w, 31, 12), 20)
		return Inst{Op: OpAuipc, Rd: rd, Imm: imm}
	case opcodeSystem:
		funct12 := bits(w, 31, 20)
		switch funct12 {
		case 0:
			return Inst{Op: OpEcall}
		case 1:
			return Inst{Op: OpEbreak}
		default:
			return Inst{Op: OpInvalid}
		}
	default:
		return Inst{Op: OpInvalid}
	}
}

func decodeRType(rd, funct3, rs1, rs2, funct7 uint8) Inst {
	base := Inst{Rd: rd, Rs1: rs1, Rs2: rs2}
	var op OpId
	switch {
	case funct3 == 0 && funct7 == 0:
		op = OpAdd
	case funct3 == 0 && funct7 == 0x20:
		op = OpSub
	case funct3 == 0 && funct7 == 1:
		op = OpMul
	case funct3 == 1 && funct7 == 0:
		op = OpSll
	case funct3 == 1 && funct7 == 1:
		op = OpMulh
	case funct3 == 2 && funct7 == 0:
		op = OpSlt
	case funct3 == 2 && funct7 == 1:
		op = OpMulhsu
	case funct3 == 3 && funct7 == 0:
		op = OpSltu
	case funct3 == 3 && funct7 == 1:
		op = OpMulhu
	case funct3 == 4 && funct7 == 0:
		op = OpXor
	case funct3 == 4 && funct7 == 1:
		op = OpDiv
	case funct3 == 5 && funct7 == 0:
		op = OpSrl
	case funct3 == 5 && funct7 == 0x20:
		op = OpSra
	case funct3 == 5 && funct7 == 1:
		op = OpDivu
	case funct3 == 5 && funct7 == 7:
		op = OpCzeroEqz
	case funct3 == 6 && funct7 == 0:
		op = OpOr
	case funct3 == 6 && funct7 == 1:
		op = OpRem
	case funct3 == 7 && funct7 == 0:
		op = OpAnd
	case funct3 == 7 && funct7 == 1:
		op = OpRemu
	case funct3 == 7 && funct7 == 7:
		op = OpCzeroNez
	default:
		return Inst{Op: OpInvalid}
	}
	base.Op = op
	return base
}

func decodeIType(rd, funct3, rs1 uint8, imm int32) Inst {
	base := Inst{Rd: rd, Rs1: rs1, Imm: imm}
	switch funct3 {
	case 0:
		base.Op = OpAddi
	case 1:
		// SLLI: upper 7 bits of imm must be 0; shamt is imm & 0x1F.
		if (imm>>5)&0x7F != 0 {
			return Inst{Op: OpInvalid}
		}
		base.Op = OpSlli
		base.Imm = imm & 0x1F
	case 2:
		base.Op = OpSlti
	case 3:
		base.Op = OpSltiu
	case 4:
		base.Op = OpXori
	case 5:
		switch (imm >> 5) & 0x7F {
		case 0:
			base.Op = OpSrli
		case 0x20:
			base.Op = OpSrai
		default:
			return Inst{Op: OpInvalid}
		}
		base.Imm = imm & 0x1F
	case 6:
		base.Op = OpOri
	case 7:
		base.Op = OpAndi
	default:
		return Inst{Op: OpInvalid}
	}
	return base
}

func decodeLoad(rd, funct3, rs1 uint8, imm int32) Inst {
	base := Inst{Rd: rd, Rs1: rs1, Imm: imm}
	switch funct3 {
	case 0:
		base.Op = OpLb
	case 1:
		base.Op = OpLh
	case 2:
		base.Op = OpLw
	case 4:
		base.Op = OpLbu
	case 5:
		base.Op = OpLhu
	default:
		return Inst{Op: OpInvalid}
	}
	return base
}

func decodeStore(funct3, rs1, rs2 uint8, imm int32) Inst {
	base := Inst{Rs1: rs1, Rs2: rs2, Imm: imm}
	switch funct3 {
	case 0:
		base.Op = OpSb
	case 1:
		base.Op = OpSh
	case 2:
		base.Op = OpSw
	default:
		return Inst{Op: OpInvalid}
	}
	return base
}

func decodeBranch(funct3, rs1, rs2 uint8, imm int32) Inst {
	base := Inst{Rs1: rs1, Rs2: rs2, Imm: imm}
	switch funct3 {
	case 0:
		base.Op = OpBeq
	case 1:
		base.Op = OpBne
	case 4:
		base.Op = OpBlt
	case 5:
		base.Op = OpBge
	case 6:
		base.Op = OpBltu
	case 7:
		base.Op = OpBgeu
	default:
		return Inst{Op: OpInvalid}
	}
	return base
}

package cpu

import (
	"math/bits"

	"github.com/rvjit/rvjit/decode"
)

// signed reinterprets v's 64 bits as a two's-complement integer — the
// `signed(x)` helper of spec §4.5, made a plain Go function since there is
// no emitted-text prologue to bind it in.
func signed(v uint64) int64 { return int64(v) }

// unsigned is signed's inverse — spec §4.5's `unsigned(x)`.
func unsigned(v int64) uint64 { return uint64(v) }

func signExt32(v uint32) int64 { return int64(int32(v)) }

// mulhUU returns the high 64 bits of the 128-bit unsigned product a*b.
func mulhUU(a, b uint64) uint64 {
	hi, _ := bits.Mul64(a, b)
	return hi
}

// mulhSS returns the high 64 bits of the 128-bit signed product a*b, via
// the standard unsigned-multiply-with-sign-correction identity.
func mulhSS(a, b int64) uint64 {
	hi, _ := bits.Mul64(uint64(a), uint64(b))
	if a < 0 {
		hi -= uint64(b)
	}
	if b < 0 {
		hi -= uint64(a)
	}
	return hi
}

// mulhSU returns the high 64 bits of the 128-bit product of signed a and
// unsigned b.
func mulhSU(a int64, b uint64) uint64 {
	hi, _ := bits.Mul64(uint64(a), b)
	if a < 0 {
		hi -= b
	}
	return hi
}

// allOnes64 is the value DIV/DIVU/REM/REMU and their W variants produce for
// both quotient and remainder on division by zero (RISC-V's unsigned-max
// convention, spec §4.3) — the W forms also sign-extend -1 to all 64 bits.
const allOnes64 = ^uint64(0)

func rs1v(s *State, i decode.Instruction) uint64 { return s.Regs.Get(i.Rs1) }
func rs2v(s *State, i decode.Instruction) uint64 { return s.Regs.Get(i.Rs2) }

// ---- R-type, 64-bit -------------------------------------------------

func execAdd(s *State, i decode.Instruction) control {
	s.Regs.Set(i.Rd, rs1v(s, i)+rs2v(s, i))
	return fallthroughCtl()
}
func execSub(s *State, i decode.Instruction) control {
	s.Regs.Set(i.Rd, rs1v(s, i)-rs2v(s, i))
	return fallthroughCtl()
}
func execSll(s *State, i decode.Instruction) control {
	s.Regs.Set(i.Rd, rs1v(s, i)<<(rs2v(s, i)&0x3F))
	return fallthroughCtl()
}
func execSlt(s *State, i decode.Instruction) control {
	v := uint64(0)
	if signed(rs1v(s, i)) < signed(rs2v(s, i)) {
		v = 1
	}
	s.Regs.Set(i.Rd, v)
	return fallthroughCtl()
}
func execSltu(s *State, i decode.Instruction) control {
	v := uint64(0)
	if rs1v(s, i) < rs2v(s, i) {
		v = 1
	}
	s.Regs.Set(i.Rd, v)
	return fallthroughCtl()
}
func execXor(s *State, i decode.Instruction) control {
	s.Regs.Set(i.Rd, rs1v(s, i)^rs2v(s, i))
	return fallthroughCtl()
}
func execSrl(s *State, i decode.Instruction) control {
	s.Regs.Set(i.Rd, rs1v(s, i)>>(rs2v(s, i)&0x3F))
	return fallthroughCtl()
}
func execSra(s *State, i decode.Instruction) control {
	s.Regs.Set(i.Rd, unsigned(signed(rs1v(s, i))>>(rs2v(s, i)&0x3F)))
	return fallthroughCtl()
}
func execOr(s *State, i decode.Instruction) control {
	s.Regs.Set(i.Rd, rs1v(s, i)|rs2v(s, i))
	return fallthroughCtl()
}
func execAnd(s *State, i decode.Instruction) control {
	s.Regs.Set(i.Rd, rs1v(s, i)&rs2v(s, i))
	return fallthroughCtl()
}

// ---- R-type, 32-bit (W) word variants --------------------------------

func execAddw(s *State, i decode.Instruction) control {
	v := uint32(rs1v(s, i)) + uint32(rs2v(s, i))
	s.Regs.Set(i.Rd, unsigned(signExt32(v)))
	return fallthroughCtl()
}
func execSubw(s *State, i decode.Instruction) control {
	v := uint32(rs1v(s, i)) - uint32(rs2v(s, i))
	s.Regs.Set(i.Rd, unsigned(signExt32(v)))
	return fallthroughCtl()
}
func execSllw(s *State, i decode.Instruction) control {
	v := uint32(rs1v(s, i)) << (uint32(rs2v(s, i)) & 0x1F)
	s.Regs.Set(i.Rd, unsigned(signExt32(v)))
	return fallthroughCtl()
}
func execSrlw(s *State, i decode.Instruction) control {
	v := uint32(rs1v(s, i)) >> (uint32(rs2v(s, i)) & 0x1F)
	s.Regs.Set(i.Rd, unsigned(signExt32(v)))
	return fallthroughCtl()
}
func execSraw(s *State, i decode.Instruction) control {
	v := int32(uint32(rs1v(s, i))) >> (uint32(rs2v(s, i)) & 0x1F)
	s.Regs.Set(i.Rd, unsigned(int64(v)))
	return fallthroughCtl()
}

// ---- M extension, 64-bit ---------------------------------------------

func execMul(s *State, i decode.Instruction) control {
	s.Regs.Set(i.Rd, rs1v(s, i)*rs2v(s, i))
	return fallthroughCtl()
}
func execMulh(s *State, i decode.Instruction) control {
	s.Regs.Set(i.Rd, mulhSS(signed(rs1v(s, i)), signed(rs2v(s, i))))
	return fallthroughCtl()
}
func execMulhu(s *State, i decode.Instruction) control {
	s.Regs.Set(i.Rd, mulhUU(rs1v(s, i), rs2v(s, i)))
	return fallthroughCtl()
}
func execMulhsu(s *State, i decode.Instruction) control {
	s.Regs.Set(i.Rd, mulhSU(signed(rs1v(s, i)), rs2v(s, i)))
	return fallthroughCtl()
}

// Division by zero yields allOnes64 for both quotient and remainder, the
// RISC-V "unsigned max" convention this emulator follows (spec §4.3).
func execDiv(s *State, i decode.Instruction) control {
	divisor := signed(rs2v(s, i))
	if divisor == 0 {
		s.Regs.Set(i.Rd, allOnes64)
	} else {
		s.Regs.Set(i.Rd, unsigned(signed(rs1v(s, i))/divisor))
	}
	return fallthroughCtl()
}
func execDivu(s *State, i decode.Instruction) control {
	divisor := rs2v(s, i)
	if divisor == 0 {
		s.Regs.Set(i.Rd, allOnes64)
	} else {
		s.Regs.Set(i.Rd, rs1v(s, i)/divisor)
	}
	return fallthroughCtl()
}
func execRem(s *State, i decode.Instruction) control {
	divisor := signed(rs2v(s, i))
	if divisor == 0 {
		s.Regs.Set(i.Rd, allOnes64)
	} else {
		s.Regs.Set(i.Rd, unsigned(signed(rs1v(s, i))%divisor))
	}
	return fallthroughCtl()
}
func execRemu(s *State, i decode.Instruction) control {
	divisor := rs2v(s, i)
	if divisor == 0 {
		s.Regs.Set(i.Rd, allOnes64)
	} else {
		s.Regs.Set(i.Rd, rs1v(s, i)%divisor)
	}
	return fallthroughCtl()
}

// ---- M extension, 32-bit (W) word variants ----------------------------

func execMulw(s *State, i decode.Instruction) control {
	v := uint32(rs1v(s, i)) * uint32(rs2v(s, i))
	s.Regs.Set(i.Rd, unsigned(signExt32(v)))
	return fallthroughCtl()
}
func execDivw(s *State, i decode.Instruction) control {
	divisor := int32(uint32(rs2v(s, i)))
	if divisor == 0 {
		s.Regs.Set(i.Rd, allOnes64)
	} else {
		v := int32(uint32(rs1v(s, i))) / divisor
		s.Regs.Set(i.Rd, unsigned(int64(v)))
	}
	return fallthroughCtl()
}
func execDivuw(s *State, i decode.Instruction) control {
	divisor := uint32(rs2v(s, i))
	if divisor == 0 {
		s.Regs.Set(i.Rd, allOnes64)
	} else {
		v := uint32(rs1v(s, i)) / divisor
		s.Regs.Set(i.Rd, unsigned(signExt32(v)))
	}
	return fallthroughCtl()
}
func execRemw(s *State, i decode.Instruction) control {
	divisor := int32(uint32(rs2v(s, i)))
	if divisor == 0 {
		s.Regs.Set(i.Rd, allOnes64)
	} else {
		v := int32(uint32(rs1v(s, i))) % divisor
		s.Regs.Set(i.Rd, unsigned(int64(v)))
	}
	return fallthroughCtl()
}
func execRemuw(s *State, i decode.Instruction) control {
	divisor := uint32(rs2v(s, i))
	if divisor == 0 {
		s.Regs.Set(i.Rd, allOnes64)
	} else {
		v := uint32(rs1v(s, i)) % divisor
		s.Regs.Set(i.Rd, unsigned(signExt32(v)))
	}
	return fallthroughCtl()
}

// ---- I-type, 64-bit -----------------------------------------------------

func execAddi(s *State, i decode.Instruction) control {
	s.Regs.Set(i.Rd, unsigned(signed(rs1v(s, i))+i.Imm))
	return fallthroughCtl()
}
func execSlti(s *State, i decode.Instruction) control {
	v := uint64(0)
	if signed(rs1v(s, i)) < i.Imm {
		v = 1
	}
	s.Regs.Set(i.Rd, v)
	return fallthroughCtl()
}
func execSltiu(s *State, i decode.Instruction) control {
	v := uint64(0)
	if rs1v(s, i) < unsigned(i.Imm) {
		v = 1
	}
	s.Regs.Set(i.Rd, v)
	return fallthroughCtl()
}
func execXori(s *State, i decode.Instruction) control {
	s.Regs.Set(i.Rd, rs1v(s, i)^unsigned(i.Imm))
	return fallthroughCtl()
}
func execOri(s *State, i decode.Instruction) control {
	s.Regs.Set(i.Rd, rs1v(s, i)|unsigned(i.Imm))
	return fallthroughCtl()
}
func execAndi(s *State, i decode.Instruction) control {
	s.Regs.Set(i.Rd, rs1v(s, i)&unsigned(i.Imm))
	return fallthroughCtl()
}
func execSlli(s *State, i decode.Instruction) control {
	s.Regs.Set(i.Rd, rs1v(s, i)<<uint(i.Imm&0x3F))
	return fallthroughCtl()
}
func execSrli(s *State, i decode.Instruction) control {
	s.Regs.Set(i.Rd, rs1v(s, i)>>uint(i.Imm&0x3F))
	return fallthroughCtl()
}
func execSrai(s *State, i decode.Instruction) control {
	s.Regs.Set(i.Rd, unsigned(signed(rs1v(s, i))>>uint(i.Imm&0x3F)))
	return fallthroughCtl()
}

// ---- I-type, 32-bit (W) word variants ---------------------------------

func execAddiw(s *State, i decode.Instruction) control {
	v := uint32(rs1v(s, i)) + uint32(i.Imm)
	s.Regs.Set(i.Rd, unsigned(signExt32(v)))
	return fallthroughCtl()
}
func execSlliw(s *State, i decode.Instruction) control {
	v := uint32(rs1v(s, i)) << uint(i.Imm&0x1F)
	s.Regs.Set(i.Rd, unsigned(signExt32(v)))
	return fallthroughCtl()
}
func execSrliw(s *State, i decode.Instruction) control {
	v := uint32(rs1v(s, i)) >> uint(i.Imm&0x1F)
	s.Regs.Set(i.Rd, unsigned(signExt32(v)))
	return fallthroughCtl()
}
func execSraiw(s *State, i decode.Instruction) control {
	v := int32(uint32(rs1v(s, i))) >> uint(i.Imm&0x1F)
	s.Regs.Set(i.Rd, unsigned(int64(v)))
	return fallthroughCtl()
}

// ---- Loads ---------------------------------------------------------------

// loadAddr computes rs1+imm. s.PC still equals the instruction's own address
// at the time exec* runs (Exec sets it from its pc argument before
// dispatch), so branch/jump/
// auipc below use s.PC directly rather than threading pc through execTable.
func loadAddr(s *State, i decode.Instruction) uint64 {
	return unsigned(signed(rs1v(s, i)) + i.Imm)
}

func execLb(s *State, i decode.Instruction) control {
	v := s.read8(loadAddr(s, i))
	s.Regs.Set(i.Rd, unsigned(int64(int8(v))))
	return fallthroughCtl()
}
func execLh(s *State, i decode.Instruction) control {
	v := s.read16(loadAddr(s, i))
	s.Regs.Set(i.Rd, unsigned(int64(int16(v))))
	return fallthroughCtl()
}
func execLw(s *State, i decode.Instruction) control {
	v := s.read32(loadAddr(s, i))
	s.Regs.Set(i.Rd, unsigned(signExt32(uint32(v))))
	return fallthroughCtl()
}
func execLd(s *State, i decode.Instruction) control {
	s.Regs.Set(i.Rd, s.read64(loadAddr(s, i)))
	return fallthroughCtl()
}
func execLbu(s *State, i decode.Instruction) control {
	s.Regs.Set(i.Rd, s.read8(loadAddr(s, i)))
	return fallthroughCtl()
}
func execLhu(s *State, i decode.Instruction) control {
	s.Regs.Set(i.Rd, s.read16(loadAddr(s, i)))
	return fallthroughCtl()
}
func execLwu(s *State, i decode.Instruction) control {
	s.Regs.Set(i.Rd, s.read32(loadAddr(s, i)))
	return fallthroughCtl()
}

// ---- Stores ---------------------------------------------------------------

// storeAddr mirrors loadAddr for S-type instructions, whose immediate the
// decoder also assembles into Imm (see decode.decodeStore).
func storeAddr(s *State, i decode.Instruction) uint64 {
	return unsigned(signed(rs1v(s, i)) + i.Imm)
}

func execSb(s *State, i decode.Instruction) control {
	s.write8(storeAddr(s, i), rs2v(s, i))
	return fallthroughCtl()
}
func execSh(s *State, i decode.Instruction) control {
	s.write16(storeAddr(s, i), rs2v(s, i))
	return fallthroughCtl()
}
func execSw(s *State, i decode.Instruction) control {
	s.write32(storeAddr(s, i), rs2v(s, i))
	return fallthroughCtl()
}
func execSd(s *State, i decode.Instruction) control {
	s.write64(storeAddr(s, i), rs2v(s, i))
	return fallthroughCtl()
}

// ---- Branches --------------------------------------------------------

// branchTarget adds the decoder's half-word Offset (doubled back to bytes)
// to the branch instruction's own address.
func branchTarget(s *State, i decode.Instruction) uint64 {
	return unsigned(signed(s.PC) + i.Offset*2)
}

func execBeq(s *State, i decode.Instruction) control {
	return branchCtl(rs1v(s, i) == rs2v(s, i), branchTarget(s, i))
}
func execBne(s *State, i decode.Instruction) control {
	return branchCtl(rs1v(s, i) != rs2v(s, i), branchTarget(s, i))
}
func execBlt(s *State, i decode.Instruction) control {
	return branchCtl(signed(rs1v(s, i)) < signed(rs2v(s, i)), branchTarget(s, i))
}
func execBge(s *State, i decode.Instruction) control {
	return branchCtl(signed(rs1v(s, i)) >= signed(rs2v(s, i)), branchTarget(s, i))
}
func execBltu(s *State, i decode.Instruction) control {
	return branchCtl(rs1v(s, i) < rs2v(s, i), branchTarget(s, i))
}
func execBgeu(s *State, i decode.Instruction) control {
	return branchCtl(rs1v(s, i) >= rs2v(s, i), branchTarget(s, i))
}

// ---- Jumps -------------------------------------------------------------

// execJal writes the return address (its own next PC) to rd and jumps to
// PC + Offset*2. jumpCtl masks bit 0 off, which is a no-op here since JAL's
// target is always half-word aligned by construction.
func execJal(s *State, i decode.Instruction) control {
	s.Regs.Set(i.Rd, s.PC+4)
	return jumpCtl(unsigned(signed(s.PC) + i.Offset*2))
}

// execJalr writes the return address to rd and jumps to (rs1+Offset*2) with
// bit 0 cleared, per spec — jumpCtl performs the masking. decodeJalr stores
// the I-immediate pre-halved in Offset like every other displacement field,
// so Offset*2 is the immediate with its bit 0 dropped.
func execJalr(s *State, i decode.Instruction) control {
	target := unsigned(signed(rs1v(s, i)) + i.Offset*2)
	s.Regs.Set(i.Rd, s.PC+4)
	return jumpCtl(target)
}

// ---- Upper immediate ---------------------------------------------------

func execLui(s *State, i decode.Instruction) control {
	s.Regs.Set(i.Rd, unsigned(i.Imm))
	return fallthroughCtl()
}

func execAuipc(s *State, i decode.Instruction) control {
	s.Regs.Set(i.Rd, unsigned(signed(s.PC)+i.Imm))
	return fallthroughCtl()
}

// ---- Misc ----------------------------------------------------------------

func execNop(s *State, i decode.Instruction) control { return fallthroughCtl() }
func execEcall(s *State, i decode.Instruction) control { return ecallCtl() }

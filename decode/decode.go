// Package decode turns a 32-bit (or, eventually, 16-bit compressed)
// RISC-V instruction word into a tagged Instruction plus a Length tag.
// Decode is pure: it reads no state beyond the word it is given.
//
// The opcode set covers the base integer ISA (arithmetic, logic, shifts,
// immediates, loads, stores, branches, JAL/JALR, LUI, AUIPC, FENCE, ECALL,
// EBREAK) and the M extension (MUL/MULH/MULHU/MULHSU/DIV/DIVU/REM/REMU and
// their W variants), per spec §4.2 and its Go-rendition supplement in
// SPEC_FULL.md.
package decode

import (
	"fmt"

	"github.com/rvjit/rvjit/bits"
)

// Length tags how many bytes of the instruction stream an Instruction
// occupies. Compressed (C-extension) decoding is only stubbed at the
// interface level per spec §1/§4.2: a compressed word's low two bits would
// select Compressed, but no compressed opcode table is implemented here.
type Length int

const (
	Full       Length = 4
	Compressed Length = 2
)

// Op names every decoded operation this emulator understands.
type Op int

const (
	OpInvalid Op = iota

	// base arithmetic / logic, register-register
	Add
	Sub
	Sll
	Slt
	Sltu
	Xor
	Srl
	Sra
	Or
	And

	// word (32-bit) variants of the above, register-register
	Addw
	Subw
	Sllw
	Srlw
	Sraw

	// M extension, register-register
	Mul
	Mulh
	Mulhu
	Mulhsu
	Div
	Divu
	Rem
	Remu

	// M extension word variants
	Mulw
	Divw
	Divuw
	Remw
	Remuw

	// immediate arithmetic / logic
	Addi
	Slti
	Sltiu
	Xori
	Ori
	Andi
	Slli
	Srli
	Srai

	// immediate word variants
	Addiw
	Slliw
	Srliw
	Sraiw

	// loads
	Lb
	Lh
	Lw
	Ld
	Lbu
	Lhu
	Lwu

	// stores
	Sb
	Sh
	Sw
	Sd

	// branches
	Beq
	Bne
	Blt
	Bge
	Bltu
	Bgeu

	// jumps
	Jal
	Jalr

	// upper immediate
	Lui
	Auipc

	// misc
	Fence
	FenceI
	Ecall
	Ebreak
)

var opNames = map[Op]string{
	Add: "add", Sub: "sub", Sll: "sll", Slt: "slt", Sltu: "sltu",
	Xor: "xor", Srl: "srl", Sra: "sra", Or: "or", And: "and",
	Addw: "addw", Subw: "subw", Sllw: "sllw", Srlw: "srlw", Sraw: "sraw",
	Mul: "mul", Mulh: "mulh", Mulhu: "mulhu", Mulhsu: "mulhsu",
	Div: "div", Divu: "divu", Rem: "rem", Remu: "remu",
	Mulw: "mulw", Divw: "divw", Divuw: "divuw", Remw: "remw", Remuw: "remuw",
	Addi: "addi", Slti: "slti", Sltiu: "sltiu", Xori: "xori", Ori: "ori",
	Andi: "andi", Slli: "slli", Srli: "srli", Srai: "srai",
	Addiw: "addiw", Slliw: "slliw", Srliw: "srliw", Sraiw: "sraiw",
	Lb: "lb", Lh: "lh", Lw: "lw", Ld: "ld", Lbu: "lbu", Lhu: "lhu", Lwu: "lwu",
	Sb: "sb", Sh: "sh", Sw: "sw", Sd: "sd",
	Beq: "beq", Bne: "bne", Blt: "blt", Bge: "bge", Bltu: "bltu", Bgeu: "bgeu",
	Jal: "jal", Jalr: "jalr", Lui: "lui", Auipc: "auipc",
	Fence: "fence", FenceI: "fence.i", Ecall: "ecall", Ebreak: "ebreak",
}

func (o Op) String() string {
	if s, ok := opNames[o]; ok {
		return s
	}
	return "invalid"
}

// Instruction is a tagged variant over RV64IM opcodes. Not every field is
// meaningful for every Op; see the per-Op comment groups in decode.go for
// which fields a given Op reads.
type Instruction struct {
	Op Op

	Rd, Rs1, Rs2 int

	// Imm is the sign-extended immediate for arithmetic/load/store/LUI/
	// AUIPC forms, used as-is (byte count, not halved).
	Imm int64

	// Offset is the sign-extended branch/jump displacement already
	// right-shifted by one, i.e. a half-word count rather than a byte
	// count (spec §4.3: "the offset field is already a half-word count
	// in the decoder's representation"). Targets are computed as
	// PC + Offset*2 for branches and JAL, and as rs1 + Offset*2 for JALR.
	// Branch and JAL displacements are even, so halving them is exact;
	// for JALR it drops bit 0 of the encoded immediate before the sum is
	// masked with &^1.
	Offset int64
}

// DecodeError reports that a 32-bit word could not be decoded into any
// known instruction form.
type DecodeError struct {
	PC   uint64
	Word uint32
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode: unrecognized instruction word 0x%08x at pc 0x%x", e.Word, e.PC)
}

// Decode decodes a 32-bit instruction word. pc is used only to annotate a
// DecodeError; it plays no role in decoding itself. Compressed words (low
// two bits != 0b11) are rejected with a DecodeError for now: the Length
// tag exists so block stepping can already advance by 2 bytes once
// compressed semantics land, but no C-extension opcode table is defined by
// this spec (§1 Non-goals).
func Decode(pc uint64, word uint32) (Instruction, Length, error) {
	if word&0b11 != 0b11 {
		return Instruction{}, Compressed, &DecodeError{PC: pc, Word: word}
	}

	opcode := bits.Range(word, 6, 0)
	rd := int(bits.Range(word, 11, 7))
	funct3 := bits.Range(word, 14, 12)
	rs1 := int(bits.Range(word, 19, 15))
	rs2 := int(bits.Range(word, 24, 20))
	funct7 := bits.Range(word, 31, 25)

	switch opcode {
	case 0b0110011: // R-type: OP
		return decodeOp(pc, word, rd, funct3, rs1, rs2, funct7)
	case 0b0111011: // R-type: OP-32 (word variants)
		return decodeOpW(pc, word, rd, funct3, rs1, rs2, funct7)
	case 0b0010011: // I-type: OP-IMM
		return decodeOpImm(pc, word, rd, funct3, rs1)
	case 0b0011011: // I-type: OP-IMM-32
		return decodeOpImmW(pc, word, rd, funct3, rs1, funct7, rs2)
	case 0b0000011: // I-type: LOAD
		return decodeLoad(pc, word, rd, funct3, rs1)
	case 0b0100011: // S-type: STORE
		return decodeStore(pc, word, rs1, rs2, funct3)
	case 0b1100011: // B-type: BRANCH
		return decodeBranch(pc, word, rs1, rs2, funct3)
	case 0b1101111: // J-type: JAL
		return decodeJal(word, rd), Full, nil
	case 0b1100111: // I-type: JALR
		if funct3 != 0 {
			return Instruction{}, Full, &DecodeError{PC: pc, Word: word}
		}
		return decodeJalr(word, rd, rs1), Full, nil
	case 0b0110111: // U-type: LUI
		return Instruction{Op: Lui, Rd: rd, Imm: decodeUImm(word)}, Full, nil
	case 0b0010111: // U-type: AUIPC
		return Instruction{Op: Auipc, Rd: rd, Imm: decodeUImm(word)}, Full, nil
	case 0b0001111: // MISC-MEM: FENCE / FENCE.I
		if funct3 == 0b001 {
			return Instruction{Op: FenceI}, Full, nil
		}
		return Instruction{Op: Fence}, Full, nil
	case 0b1110011: // SYSTEM: ECALL / EBREAK
		switch word >> 20 {
		case 0:
			return Instruction{Op: Ecall}, Full, nil
		case 1:
			return Instruction{Op: Ebreak}, Full, nil
		}
		return Instruction{}, Full, &DecodeError{PC: pc, Word: word}
	default:
		return Instruction{}, Full, &DecodeError{PC: pc, Word: word}
	}
}

func decodeOp(pc uint64, word uint32, rd int, funct3 uint32, rs1, rs2 int, funct7 uint32) (Instruction, Length, error) {
	base := Instruction{Rd: rd, Rs1: rs1, Rs2: rs2}
	switch {
	case funct7 == 0b0000001: // M extension
		switch funct3 {
		case 0b000:
			base.Op = Mul
		case 0b001:
			base.Op = Mulh
		case 0b010:
			base.Op = Mulhsu
		case 0b011:
			base.Op = Mulhu
		case 0b100:
			base.Op = Div
		case 0b101:
			base.Op = Divu
		case 0b110:
			base.Op = Rem
		case 0b111:
			base.Op = Remu
		default:
			return Instruction{}, Full, &DecodeError{PC: pc, Word: word}
		}
		return base, Full, nil
	case funct7 == 0 || funct7 == 0b0100000:
		switch funct3 {
		case 0b000:
			if funct7 == 0b0100000 {
				base.Op = Sub
			} else {
				base.Op = Add
			}
		case 0b001:
			base.Op = Sll
		case 0b010:
			base.Op = Slt
		case 0b011:
			base.Op = Sltu
		case 0b100:
			base.Op = Xor
		case 0b101:
			if funct7 == 0b0100000 {
				base.Op = Sra
			} else {
				base.Op = Srl
			}
		case 0b110:
			base.Op = Or
		case 0b111:
			base.Op = And
		default:
			return Instruction{}, Full, &DecodeError{PC: pc, Word: word}
		}
		return base, Full, nil
	default:
		return Instruction{}, Full, &DecodeError{PC: pc, Word: word}
	}
}

func decodeOpW(pc uint64, word uint32, rd int, funct3 uint32, rs1, rs2 int, funct7 uint32) (Instruction, Length, error) {
	base := Instruction{Rd: rd, Rs1: rs1, Rs2: rs2}
	switch {
	case funct7 == 0b0000001:
		switch funct3 {
		case 0b000:
			base.Op = Mulw
		case 0b100:
			base.Op = Divw
		case 0b101:
			base.Op = Divuw
		case 0b110:
			base.Op = Remw
		case 0b111:
			base.Op = Remuw
		default:
			return Instruction{}, Full, &DecodeError{PC: pc, Word: word}
		}
		return base, Full, nil
	case funct7 == 0 || funct7 == 0b0100000:
		switch funct3 {
		case 0b000:
			if funct7 == 0b0100000 {
				base.Op = Subw
			} else {
				base.Op = Addw
			}
		case 0b001:
			base.Op = Sllw
		case 0b101:
			if funct7 == 0b0100000 {
				base.Op = Sraw
			} else {
				base.Op = Srlw
			}
		default:
			return Instruction{}, Full, &DecodeError{PC: pc, Word: word}
		}
		return base, Full, nil
	default:
		return Instruction{}, Full, &DecodeError{PC: pc, Word: word}
	}
}

func decodeIImm(word uint32) int64 {
	return bits.SignExtend(bits.Range(word, 31, 20), 12)
}

// decodeOpImm handles OP-IMM. Note that on RV64, SLLI/SRLI/SRAI take a
// 6-bit shamt (bits [25:20]) rather than the 5-bit shamt + 7-bit funct7
// split used by the word (*W) variants and by R-type ALU ops: bit 25
// doubles as the shamt's MSB, so the SLLI/SRAI discriminator here is a
// 6-bit funct6 (bits [31:26]), not the 7-bit funct7 used elsewhere.
func decodeOpImm(pc uint64, word uint32, rd int, funct3 uint32, rs1 int) (Instruction, Length, error) {
	base := Instruction{Rd: rd, Rs1: rs1}
	funct6 := bits.Range(word, 31, 26)
	shamt6 := int64(bits.Range(word, 25, 20))
	switch funct3 {
	case 0b000:
		base.Op, base.Imm = Addi, decodeIImm(word)
	case 0b010:
		base.Op, base.Imm = Slti, decodeIImm(word)
	case 0b011:
		base.Op, base.Imm = Sltiu, decodeIImm(word)
	case 0b100:
		base.Op, base.Imm = Xori, decodeIImm(word)
	case 0b110:
		base.Op, base.Imm = Ori, decodeIImm(word)
	case 0b111:
		base.Op, base.Imm = Andi, decodeIImm(word)
	case 0b001:
		if funct6 != 0 {
			return Instruction{}, Full, &DecodeError{PC: pc, Word: word}
		}
		base.Op, base.Imm = Slli, shamt6
	case 0b101:
		switch funct6 {
		case 0:
			base.Op = Srli
		case 0b010000:
			base.Op = Srai
		default:
			return Instruction{}, Full, &DecodeError{PC: pc, Word: word}
		}
		base.Imm = shamt6
	default:
		return Instruction{}, Full, &DecodeError{PC: pc, Word: word}
	}
	return base, Full, nil
}

func decodeOpImmW(pc uint64, word uint32, rd int, funct3 uint32, rs1 int, funct7 uint32, shamt int) (Instruction, Length, error) {
	base := Instruction{Rd: rd, Rs1: rs1}
	switch funct3 {
	case 0b000:
		base.Op, base.Imm = Addiw, decodeIImm(word)
	case 0b001:
		base.Op, base.Imm = Slliw, int64(shamt&0x1F)
	case 0b101:
		if funct7 == 0b0100000 {
			base.Op = Sraiw
		} else {
			base.Op = Srliw
		}
		base.Imm = int64(shamt & 0x1F)
	default:
		return Instruction{}, Full, &DecodeError{PC: pc, Word: word}
	}
	return base, Full, nil
}

func decodeLoad(pc uint64, word uint32, rd int, funct3 uint32, rs1 int) (Instruction, Length, error) {
	base := Instruction{Rd: rd, Rs1: rs1, Imm: decodeIImm(word)}
	switch funct3 {
	case 0b000:
		base.Op = Lb
	case 0b001:
		base.Op = Lh
	case 0b010:
		base.Op = Lw
	case 0b011:
		base.Op = Ld
	case 0b100:
		base.Op = Lbu
	case 0b101:
		base.Op = Lhu
	case 0b110:
		base.Op = Lwu
	default:
		return Instruction{}, Full, &DecodeError{PC: pc, Word: word}
	}
	return base, Full, nil
}

func decodeStore(pc uint64, word uint32, rs1, rs2 int, funct3 uint32) (Instruction, Length, error) {
	imm11_5 := bits.Range(word, 31, 25)
	imm4_0 := bits.Range(word, 11, 7)
	imm := bits.SignExtend((imm11_5<<5)|imm4_0, 12)
	base := Instruction{Rs1: rs1, Rs2: rs2, Imm: imm}
	switch funct3 {
	case 0b000:
		base.Op = Sb
	case 0b001:
		base.Op = Sh
	case 0b010:
		base.Op = Sw
	case 0b011:
		base.Op = Sd
	default:
		return Instruction{}, Full, &DecodeError{PC: pc, Word: word}
	}
	return base, Full, nil
}

func decodeBranch(pc uint64, word uint32, rs1, rs2 int, funct3 uint32) (Instruction, Length, error) {
	bit12 := bits.Range(word, 31, 31)
	bit11 := bits.Range(word, 7, 7)
	bits10_5 := bits.Range(word, 30, 25)
	bits4_1 := bits.Range(word, 11, 8)
	imm := (bit12 << 12) | (bit11 << 11) | (bits10_5 << 5) | (bits4_1 << 1)
	byteOffset := bits.SignExtend(imm, 13)

	base := Instruction{Rs1: rs1, Rs2: rs2, Offset: byteOffset >> 1}
	switch funct3 {
	case 0b000:
		base.Op = Beq
	case 0b001:
		base.Op = Bne
	case 0b100:
		base.Op = Blt
	case 0b101:
		base.Op = Bge
	case 0b110:
		base.Op = Bltu
	case 0b111:
		base.Op = Bgeu
	default:
		return Instruction{}, Full, &DecodeError{PC: pc, Word: word}
	}
	return base, Full, nil
}

func decodeJal(word uint32, rd int) Instruction {
	bit20 := bits.Range(word, 31, 31)
	bits10_1 := bits.Range(word, 30, 21)
	bit11 := bits.Range(word, 20, 20)
	bits19_12 := bits.Range(word, 19, 12)
	imm := (bit20 << 20) | (bits19_12 << 12) | (bit11 << 11) | (bits10_1 << 1)
	byteOffset := bits.SignExtend(imm, 21)
	return Instruction{Op: Jal, Rd: rd, Offset: byteOffset >> 1}
}

func decodeJalr(word uint32, rd, rs1 int) Instruction {
	byteOffset := decodeIImm(word)
	return Instruction{Op: Jalr, Rd: rd, Rs1: rs1, Offset: byteOffset >> 1}
}

func decodeUImm(word uint32) int64 {
	return int64(int32(word & 0xFFFFF000))
}

package cpu

import "github.com/rvjit/rvjit/decode"

// execTable dispatches a decoded Op to the function implementing its
// semantics. Both the interpreter's Step and the JIT's step closures (see
// jit/compile.go) reach it through State.Exec, which looks the Op up here
// on every call.
var execTable = map[decode.Op]func(*State, decode.Instruction) control{
	decode.Add:  execAdd,
	decode.Sub:  execSub,
	decode.Sll:  execSll,
	decode.Slt:  execSlt,
	decode.Sltu: execSltu,
	decode.Xor:  execXor,
	decode.Srl:  execSrl,
	decode.Sra:  execSra,
	decode.Or:   execOr,
	decode.And:  execAnd,

	decode.Addw: execAddw,
	decode.Subw: execSubw,
	decode.Sllw: execSllw,
	decode.Srlw: execSrlw,
	decode.Sraw: execSraw,

	decode.Mul:    execMul,
	decode.Mulh:   execMulh,
	decode.Mulhu:  execMulhu,
	decode.Mulhsu: execMulhsu,
	decode.Div:    execDiv,
	decode.Divu:   execDivu,
	decode.Rem:    execRem,
	decode.Remu:   execRemu,

	decode.Mulw:  execMulw,
	decode.Divw:  execDivw,
	decode.Divuw: execDivuw,
	decode.Remw:  execRemw,
	decode.Remuw: execRemuw,

	decode.Addi:  execAddi,
	decode.Slti:  execSlti,
	decode.Sltiu: execSltiu,
	decode.Xori:  execXori,
	decode.Ori:   execOri,
	decode.Andi:  execAndi,
	decode.Slli:  execSlli,
	decode.Srli:  execSrli,
	decode.Srai:  execSrai,

	decode.Addiw: execAddiw,
	decode.Slliw: execSlliw,
	decode.Srliw: execSrliw,
	decode.Sraiw: execSraiw,

	decode.Lb:  execLb,
	decode.Lh:  execLh,
	decode.Lw:  execLw,
	decode.Ld:  execLd,
	decode.Lbu: execLbu,
	decode.Lhu: execLhu,
	decode.Lwu: execLwu,

	decode.Sb: execSb,
	decode.Sh: execSh,
	decode.Sw: execSw,
	decode.Sd: execSd,

	decode.Beq:  execBeq,
	decode.Bne:  execBne,
	decode.Blt:  execBlt,
	decode.Bge:  execBge,
	decode.Bltu: execBltu,
	decode.Bgeu: execBgeu,

	decode.Jal:  execJal,
	decode.Jalr: execJalr,

	decode.Lui:   execLui,
	decode.Auipc: execAuipc,

	decode.Fence:  execNop,
	decode.FenceI: execNop,
	decode.Ebreak: execNop,
	decode.Ecall:  execEcall,
}

package ir

import "fmt"

// Op is the opcode of a canonicalized instruction (spec.md §3, §4.3).
type Op uint8

const (
	OpMov Op = iota
	OpExt8U
	OpExt8S
	OpExt16U
	OpExt16S
	OpExt32U
	OpExt32S
	OpLdEnv  // load from the CPU-state region
	OpStEnv  // store to the CPU-state region
	OpLd     // qemu_ld: load from guest memory
	OpSt     // qemu_st: store to guest memory
	OpAdd
	OpSub
	OpMul
	OpDivS
	OpDivU
	OpRemS
	OpRemU
	OpAnd
	OpOr
	OpXor
	OpAndC
	OpOrC
	OpNand
	OpNor
	OpEqv
	OpShl
	OpShr
	OpSar
	OpBrcond
	OpMovcond
	OpAdd2
	OpSub2
	OpMuls2
	OpCall
	OpGotoTB
	OpExitTB
	OpGotoPtr
	OpInsnStart
)

func (o Op) String() string {
	names := [...]string{
		"mov", "ext8u", "ext8s", "ext16u", "ext16s", "ext32u", "ext32s",
		"ld_env", "st_env", "qemu_ld", "qemu_st",
		"add", "sub", "mul", "divs", "divu", "rems", "remu",
		"and", "or", "xor", "andc", "orc", "nand", "nor", "eqv",
		"shl", "shr", "sar",
		"brcond", "movcond", "add2", "sub2", "muls2",
		"call", "goto_tb", "exit_tb", "goto_ptr", "insn_start",
	}
	if int(o) < len(names) {
		return names[o]
	}
	return fmt.Sprintf("op(%d)", o)
}

// CondCode is the branch/compare condition code table of spec.md §4.6.
type CondCode uint8

const (
	CondEQ CondCode = iota
	CondNE
	CondLT
	CondLE
	CondGE
	CondGT
	CondLTU
	CondLEU
	CondGEU
	CondGTU
	CondTSTEQ
	CondTSTNE
	CondNever
	CondAlways
)

func (c CondCode) String() string {
	names := [...]string{
		"eq", "ne", "lt", "le", "ge", "gt",
		"ltu", "leu", "geu", "gtu", "tsteq", "tstne", "never", "always",
	}
	if int(c) < len(names) {
		return names[c]
	}
	return "cond(?)"
}

// Signed reports whether c compares its operands as signed integers. It is
// meaningless for CondTSTEQ/CondTSTNE/CondNever/CondAlways.
func (c CondCode) Signed() bool {
	switch c {
	case CondEQ, CondNE, CondLT, CondLE, CondGE, CondGT:
		return true
	default:
		return false
	}
}

// Alignment is the alignment requirement of a guest memory access
// (spec.md §3, §4.5).
type Alignment uint8

const (
	AlignNone Alignment = iota
	AlignNatural
	Align4
	Align8
)

// AccessSize is the width, in bits, of a guest or host memory access.
type AccessSize uint8

const (
	Size8  AccessSize = 8
	Size16 AccessSize = 16
	Size32 AccessSize = 32
	Size64 AccessSize = 64
)

// Bytes returns the access size in bytes.
func (s AccessSize) Bytes() uint64 { return uint64(s) / 8 }

// MemOpFlags encodes the qemu_ld/qemu_st and CPU-state access attributes of
// spec.md §3. Endianness is always little and atomicity is always none, per
// the Non-goals in spec.md §1; the fields exist so callers can assert that
// an unexpected value was never asked for.
type MemOpFlags struct {
	Size       AccessSize
	Signed     bool
	Align      Alignment
	LittleOnly bool // always true; kept explicit so a parse bug that flips it is caught
	NoAtomic   bool // always true; see above
}

// AlignBytes resolves Align against Size, per spec.md §4.5's
// {none->1, natural->size, 4, 8} table.
func (f MemOpFlags) AlignBytes() uint64 {
	switch f.Align {
	case AlignNatural:
		return f.Size.Bytes()
	case Align4:
		return 4
	case Align8:
		return 8
	default:
		return 1
	}
}

// CallIntent is the decoded meaning of a call instruction, resolved through
// the extensible table described in spec.md §4.3 and §9.
type CallIntent struct {
	Name    string
	Known   bool
	Alloc   bool // helper_allocator-style request
	MemCopy bool // memcpy/memset-style helper
}

// CallIntentUnknown is the zero-value sentinel for an unrecognized helper.
var CallIntentUnknown = CallIntent{Name: "<unknown>", Known: false}

// Inst is one canonicalized instruction. Not every field is meaningful for
// every Op; see the per-field comments for which opcodes populate them.
// This mirrors the teacher's interpreterOp union-of-everything shape
// (internal/engine/interpreter/interpreter.go's op.b1/op.b2/op.us/op.rs),
// generalized to named fields since each field here carries a distinct
// typed meaning rather than a reinterpreted byte/uint64 slot.
type Inst struct {
	Op    Op
	Width Width // result width for everything but qemu_ld/qemu_st, which use Mem.Size

	Dst  Temp // mov, ext*, ld_env, qemu_ld, arithmetic/bitwise/shift, movcond; st_env: the value stored
	Dst2 Temp // add2/sub2/muls2: high half destination

	Src1 Temp // left operand, or the value moved/extended/loaded-from-address
	Src2 Temp // right operand, or the value stored (qemu_st), or brcond's rhs

	Src3 Temp // movcond: value selected when the condition holds
	Src4 Temp // movcond: value selected when the condition does not hold

	Src1Hi Temp // add2/sub2: high half of the first wide operand
	Src2Hi Temp // add2/sub2: high half of the second wide operand

	Cond CondCode // brcond, movcond

	Mem MemOpFlags // ld_env/st_env/qemu_ld/qemu_st

	Label  Label // brcond branch target
	Target uint32 // goto_tb: translation-block slot index

	Call CallIntent // call

	GuestPC uint64 // insn_start: the guest PC this instruction marks the start of
}

func (i Inst) String() string {
	switch i.Op {
	case OpMov:
		return fmt.Sprintf("mov %s, %s", i.Dst, i.Src1)
	case OpBrcond:
		return fmt.Sprintf("brcond %s %s, %s -> L%d", i.Cond, i.Src1, i.Src2, i.Label.ID)
	case OpMovcond:
		return fmt.Sprintf("movcond %s, %s %s, %s, %s, %s", i.Dst, i.Cond, i.Src1, i.Src2, i.Src3, i.Src4)
	case OpInsnStart:
		return fmt.Sprintf("insn_start 0x%x", i.GuestPC)
	default:
		return fmt.Sprintf("%s %s", i.Op, i.Dst)
	}
}

// Package ir implements the typed intermediate-representation model this
// engine interprets: temporaries, labels, instructions and the owned
// instruction sequence that makes up one translation block.
package ir

import "fmt"

// Width is the bit-width of a temporary or instruction result. The engine
// only ever deals in 32- and 64-bit scalars; 128-bit values appear as a
// pair of 64-bit halves (see Temp.Half).
type Width uint8

const (
	Width32 Width = 32
	Width64 Width = 64
)

// Valid reports whether w is one of the two widths this engine supports.
func (w Width) Valid() bool {
	return w == Width32 || w == Width64
}

func (w Width) String() string {
	switch w {
	case Width32:
		return "i32"
	case Width64:
		return "i64"
	default:
		return fmt.Sprintf("i?%d", uint8(w))
	}
}

// Mask returns the all-ones bit pattern for w, used to wrap arithmetic
// results and to zero-extend partial loads.
func (w Width) Mask() uint64 {
	if w == Width32 {
		return 0xffffffff
	}
	return 0xffffffffffffffff
}

// TempKind discriminates the six variants of Temp described in spec.md §3.
type TempKind uint8

const (
	// TempConst is an immediate value baked into the instruction stream.
	TempConst TempKind = iota
	// TempFixed names a fixed host register slot (e.g. a hard-wired TCG
	// global such as the guest program counter).
	TempFixed
	// TempGlobalDirect is a named field in the CPU-state region, reached
	// as env_base + offset.
	TempGlobalDirect
	// TempGlobalIndirect is a named field reached through a pointer field
	// in the CPU-state region, i.e. *(env_base + offset1) + offset2.
	TempGlobalIndirect
	// TempTBLocal is a translation-block-scoped temporary; it survives
	// internal branches within the block.
	TempTBLocal
	// TempEBBLocal is an extended-basic-block-scoped temporary.
	TempEBBLocal
)

func (k TempKind) String() string {
	switch k {
	case TempConst:
		return "const"
	case TempFixed:
		return "fixed"
	case TempGlobalDirect:
		return "global_direct"
	case TempGlobalIndirect:
		return "global_indirect"
	case TempTBLocal:
		return "tb_local"
	case TempEBBLocal:
		return "ebb_local"
	default:
		return "unknown"
	}
}

// Temp is a canonicalized reference to one of the storage locations the
// interpreter can read or write. It is the normalized form of whatever
// record shape the emulator's front-end hands the parser (spec.md §4.3);
// once Parse has run, no code outside this package inspects a raw temp.
type Temp struct {
	Kind  TempKind
	Width Width

	// Half distinguishes the low (0) and high (1) 64-bit halves of a
	// 128-bit-wide pair. Zero for every Width32/Width64 temp that isn't
	// part of such a pair.
	Half uint8

	// Value holds the immediate for TempConst, masked to Width (a 32-bit
	// immediate is zero-extended, not sign-extended).
	Value uint64

	// Reg names the fixed host register for TempFixed.
	Reg uint16

	// BaseReg is the fixed register the CPU-state region is addressed
	// from, for TempGlobalDirect and TempGlobalIndirect.
	BaseReg uint16

	// Offset1 is the CPU-state offset for TempGlobalDirect, and the
	// offset of the pointer field for TempGlobalIndirect.
	Offset1 int32
	// Offset2 is the offset applied after dereferencing the pointer
	// field, for TempGlobalIndirect only.
	Offset2 int32

	// Index identifies a TempTBLocal or TempEBBLocal slot within its
	// owning block.
	Index uint32
}

// Const builds an immediate temp.
func Const(w Width, v uint64) Temp { return Temp{Kind: TempConst, Width: w, Value: v & w.Mask()} }

// String renders a temp for trace logging, in the spirit of the original's
// qce_debug_print_var.
func (t Temp) String() string {
	switch t.Kind {
	case TempConst:
		return fmt.Sprintf("[%s]$0x%x", t.Width, t.Value)
	case TempFixed:
		return fmt.Sprintf("[%s]reg(#%d)", t.Width, t.Reg)
	case TempGlobalDirect:
		return fmt.Sprintf("[%s]env(#%d::0x%x)", t.Width, t.BaseReg, t.Offset1)
	case TempGlobalIndirect:
		return fmt.Sprintf("[%s]env(#%d::0x%x::0x%x)", t.Width, t.BaseReg, t.Offset1, t.Offset2)
	case TempTBLocal:
		return fmt.Sprintf("[%s]%%v%d", t.Width, t.Index)
	case TempEBBLocal:
		return fmt.Sprintf("[%s]%%t%d", t.Width, t.Index)
	default:
		return "<bad-temp>"
	}
}

// Label is an opaque identifier for a branch target within a block. It
// must have exactly one definition site and zero pending relocations by
// the time the block is frozen (spec.md §3).
type Label struct {
	ID uint16
	// Index is the instruction index the label resolves to, filled in by
	// Parse once the label's definition site has been seen.
	Index int
}

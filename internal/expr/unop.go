package expr

import (
	"github.com/qemu-qce/qce/internal/ir"
	"github.com/qemu-qce/qce/internal/solver"
)

// Ext8U zero-extends the low 8 bits of src to width w.
func Ext8U(f solver.Facade, w ir.Width, src Expr) Expr { return extend(f, w, src, 8, false) }

// Ext8S sign-extends the low 8 bits of src to width w.
func Ext8S(f solver.Facade, w ir.Width, src Expr) Expr { return extend(f, w, src, 8, true) }

// Ext16U zero-extends the low 16 bits of src to width w.
func Ext16U(f solver.Facade, w ir.Width, src Expr) Expr { return extend(f, w, src, 16, false) }

// Ext16S sign-extends the low 16 bits of src to width w.
func Ext16S(f solver.Facade, w ir.Width, src Expr) Expr { return extend(f, w, src, 16, true) }

// Ext32U zero-extends the low 32 bits of src to width w (64).
func Ext32U(f solver.Facade, w ir.Width, src Expr) Expr { return extend(f, w, src, 32, false) }

// Ext32S sign-extends the low 32 bits of src to width w (64).
func Ext32S(f solver.Facade, w ir.Width, src Expr) Expr { return extend(f, w, src, 32, true) }

// extend implements the ext{8,16,32}{u,s} family and the partial-load
// accessors of spec.md §4.2: take the low `bits` of src and zero- or
// sign-extend to width w. TCG temps are uniformly typed, so src and w
// agree in practice (ext32u_i64 reinterprets the low 32 bits of an
// already-i64 temp); extend tolerates src.Width != w defensively by
// widening through the solver's native extend primitive, which is the
// only way to keep a wider target's upper bits correctly sign-filled.
func extend(f solver.Facade, w ir.Width, src Expr, bits int, signed bool) Expr {
	if src.IsConcrete() {
		mask := uint64(1)<<uint(bits) - 1
		low := src.Value & mask
		if signed && low&(uint64(1)<<uint(bits-1)) != 0 {
			low |= ^mask
		}
		return Const(w, low&w.Mask())
	}
	term := src.asTerm(f)
	lowMask := f.ConstTerm(src.Width, uint64(1)<<uint(bits)-1)
	masked := f.And(term, lowMask)
	if !signed {
		return concretize(f, w, f.ZeroExtend(masked, int(w)))
	}
	signBit := f.ConstTerm(src.Width, uint64(1)<<uint(bits-1))
	isNeg := f.Ne(f.And(masked, signBit), f.ConstTerm(src.Width, 0))
	highFill := f.ConstTerm(w, ^(uint64(1)<<uint(bits)-1)&w.Mask())
	widenedMasked := f.ZeroExtend(masked, int(w))
	filled := f.Or(widenedMasked, highFill)
	selected := f.Ite(isNeg, filled, widenedMasked)
	return concretize(f, w, selected)
}

package expr

import (
	"github.com/qemu-qce/qce/internal/ir"
	"github.com/qemu-qce/qce/internal/solver"
)

// Add2 implements spec.md §4.2/§4.6: (aLo,aHi) + (bLo,bHi) -> (lo,hi),
// propagating carry from the low half into the high half.
func Add2(f solver.Facade, aLo, aHi, bLo, bHi Expr) (lo, hi Expr, err error) {
	if err := checkWidth(aLo, aHi); err != nil {
		return Expr{}, Expr{}, err
	}
	if err := checkWidth(aLo, bLo); err != nil {
		return Expr{}, Expr{}, err
	}
	if err := checkWidth(bLo, bHi); err != nil {
		return Expr{}, Expr{}, err
	}
	w := aLo.Width
	if aLo.IsConcrete() && aHi.IsConcrete() && bLo.IsConcrete() && bHi.IsConcrete() {
		resLo := (aLo.Value + bLo.Value) & w.Mask()
		carry := uint64(0)
		if resLo < aLo.Value {
			carry = 1
		}
		resHi := (aHi.Value + bHi.Value + carry) & w.Mask()
		return Const(w, resLo), Const(w, resHi), nil
	}
	loTerm, hiTerm := f.Add2(aLo.asTerm(f), aHi.asTerm(f), bLo.asTerm(f), bHi.asTerm(f))
	return concretize(f, w, loTerm), concretize(f, w, hiTerm), nil
}

// Sub2 implements the borrow-propagating wide subtraction of spec.md §4.2.
func Sub2(f solver.Facade, aLo, aHi, bLo, bHi Expr) (lo, hi Expr, err error) {
	if err := checkWidth(aLo, aHi); err != nil {
		return Expr{}, Expr{}, err
	}
	if err := checkWidth(aLo, bLo); err != nil {
		return Expr{}, Expr{}, err
	}
	if err := checkWidth(bLo, bHi); err != nil {
		return Expr{}, Expr{}, err
	}
	w := aLo.Width
	if aLo.IsConcrete() && aHi.IsConcrete() && bLo.IsConcrete() && bHi.IsConcrete() {
		borrow := uint64(0)
		if aLo.Value&w.Mask() < bLo.Value&w.Mask() {
			borrow = 1
		}
		resLo := (aLo.Value - bLo.Value) & w.Mask()
		resHi := (aHi.Value - bHi.Value - borrow) & w.Mask()
		return Const(w, resLo), Const(w, resHi), nil
	}
	loTerm, hiTerm := f.Sub2(aLo.asTerm(f), aHi.asTerm(f), bLo.asTerm(f), bHi.asTerm(f))
	return concretize(f, w, loTerm), concretize(f, w, hiTerm), nil
}

// Muls2 implements spec.md §4.2: signed N×N->2N multiply, returning
// (low, high) where high is the arithmetic shift right by N of the full
// 2N-bit signed product.
func Muls2(f solver.Facade, a, b Expr) (lo, hi Expr, err error) {
	if err := checkWidth(a, b); err != nil {
		return Expr{}, Expr{}, err
	}
	w := a.Width
	if a.IsConcrete() && b.IsConcrete() {
		if w == ir.Width32 {
			full := int64(int32(uint32(a.Value))) * int64(int32(uint32(b.Value)))
			return Const(w, uint64(uint32(full))), Const(w, uint64(uint32(full>>32))), nil
		}
		full := mulSigned64(a.Signed(), b.Signed())
		return Const(w, full.lo), Const(w, full.hi), nil
	}
	loTerm, hiTerm := f.Muls2(a.asTerm(f), b.asTerm(f))
	return concretize(f, w, loTerm), concretize(f, w, hiTerm), nil
}

type wide128 struct{ lo, hi uint64 }

// mulSigned64 computes the full 128-bit signed product of two int64
// operands using mul64 on the magnitudes, then fixes the sign of
// the 128-bit result per standard two's-complement negation.
func mulSigned64(a, b int64) wide128 {
	negate := (a < 0) != (b < 0)
	ua, ub := absU64(a), absU64(b)
	hi, lo := mul64(ua, ub)
	if !negate {
		return wide128{lo: lo, hi: hi}
	}
	// Two's complement negate the 128-bit (hi,lo) pair.
	lo = ^lo + 1
	hi = ^hi
	if lo == 0 {
		hi++
	}
	return wide128{lo: lo, hi: hi}
}

func absU64(v int64) uint64 {
	if v < 0 {
		return uint64(-v)
	}
	return uint64(v)
}

// mul64 returns the 128-bit product (hi, lo) of two uint64 operands
// using schoolbook long multiplication over 32-bit limbs.
func mul64(a, b uint64) (hi, lo uint64) {
	aLo, aHi := a&0xffffffff, a>>32
	bLo, bHi := b&0xffffffff, b>>32

	t0 := aLo * bLo
	t1 := aHi*bLo + t0>>32
	t2 := aLo*bHi + t1&0xffffffff
	lo = t2<<32 | t0&0xffffffff
	hi = aHi*bHi + t1>>32 + t2>>32
	return hi, lo
}

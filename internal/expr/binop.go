package expr

import (
	"github.com/qemu-qce/qce/internal/ir"
	"github.com/qemu-qce/qce/internal/solver"
)

// binOp implements the three-step rule of spec.md §4.2: compute directly
// when both operands are concrete, otherwise lift to solver terms,
// invoke sym, and concretize the result.
func binOp(f solver.Facade, a, b Expr, concrete func(w ir.Width, x, y uint64) uint64, sym func(solver.Facade, solver.Term, solver.Term) solver.Term) (Expr, error) {
	if err := checkWidth(a, b); err != nil {
		return Expr{}, err
	}
	if a.IsConcrete() && b.IsConcrete() {
		return Const(a.Width, concrete(a.Width, a.Value, b.Value)), nil
	}
	term := sym(f, a.asTerm(f), b.asTerm(f))
	return concretize(f, a.Width, term), nil
}

func Add(f solver.Facade, a, b Expr) (Expr, error) {
	return binOp(f, a, b,
		func(w ir.Width, x, y uint64) uint64 { return (x + y) & w.Mask() },
		func(f solver.Facade, x, y solver.Term) solver.Term { return f.Add(x, y) })
}

func Sub(f solver.Facade, a, b Expr) (Expr, error) {
	return binOp(f, a, b,
		func(w ir.Width, x, y uint64) uint64 { return (x - y) & w.Mask() },
		func(f solver.Facade, x, y solver.Term) solver.Term { return f.Sub(x, y) })
}

func Mul(f solver.Facade, a, b Expr) (Expr, error) {
	return binOp(f, a, b,
		func(w ir.Width, x, y uint64) uint64 { return (x * y) & w.Mask() },
		func(f solver.Facade, x, y solver.Term) solver.Term { return f.Mul(x, y) })
}

func DivS(f solver.Facade, a, b Expr) (Expr, error) {
	if err := checkWidth(a, b); err != nil {
		return Expr{}, err
	}
	if a.IsConcrete() && b.IsConcrete() {
		if b.Value&a.Width.Mask() == 0 {
			return Expr{}, ErrDivideByZero
		}
		return Const(a.Width, uint64(signedWrap(a.Width, a.Signed()/signedOf(b)))), nil
	}
	term := f.Div(a.asTerm(f), b.asTerm(f), true)
	return concretize(f, a.Width, term), nil
}

func DivU(f solver.Facade, a, b Expr) (Expr, error) {
	if err := checkWidth(a, b); err != nil {
		return Expr{}, err
	}
	if a.IsConcrete() && b.IsConcrete() {
		if b.Value&a.Width.Mask() == 0 {
			return Expr{}, ErrDivideByZero
		}
		return Const(a.Width, a.Value/b.Value), nil
	}
	term := f.Div(a.asTerm(f), b.asTerm(f), false)
	return concretize(f, a.Width, term), nil
}

func RemS(f solver.Facade, a, b Expr) (Expr, error) {
	if err := checkWidth(a, b); err != nil {
		return Expr{}, err
	}
	if a.IsConcrete() && b.IsConcrete() {
		if b.Value&a.Width.Mask() == 0 {
			return Expr{}, ErrDivideByZero
		}
		return Const(a.Width, uint64(signedWrap(a.Width, a.Signed()%signedOf(b)))), nil
	}
	term := f.Rem(a.asTerm(f), b.asTerm(f), true)
	return concretize(f, a.Width, term), nil
}

func RemU(f solver.Facade, a, b Expr) (Expr, error) {
	if err := checkWidth(a, b); err != nil {
		return Expr{}, err
	}
	if a.IsConcrete() && b.IsConcrete() {
		if b.Value&a.Width.Mask() == 0 {
			return Expr{}, ErrDivideByZero
		}
		return Const(a.Width, a.Value%b.Value), nil
	}
	term := f.Rem(a.asTerm(f), b.asTerm(f), false)
	return concretize(f, a.Width, term), nil
}

func And(f solver.Facade, a, b Expr) (Expr, error) {
	return binOp(f, a, b,
		func(w ir.Width, x, y uint64) uint64 { return x & y },
		func(f solver.Facade, x, y solver.Term) solver.Term { return f.And(x, y) })
}

func Or(f solver.Facade, a, b Expr) (Expr, error) {
	return binOp(f, a, b,
		func(w ir.Width, x, y uint64) uint64 { return x | y },
		func(f solver.Facade, x, y solver.Term) solver.Term { return f.Or(x, y) })
}

func Xor(f solver.Facade, a, b Expr) (Expr, error) {
	return binOp(f, a, b,
		func(w ir.Width, x, y uint64) uint64 { return x ^ y },
		func(f solver.Facade, x, y solver.Term) solver.Term { return f.Xor(x, y) })
}

func AndC(f solver.Facade, a, b Expr) (Expr, error) {
	return binOp(f, a, b,
		func(w ir.Width, x, y uint64) uint64 { return x &^ y },
		func(f solver.Facade, x, y solver.Term) solver.Term { return f.AndC(x, y) })
}

func OrC(f solver.Facade, a, b Expr) (Expr, error) {
	return binOp(f, a, b,
		func(w ir.Width, x, y uint64) uint64 { return (x | (y ^ w.Mask())) & w.Mask() },
		func(f solver.Facade, x, y solver.Term) solver.Term { return f.OrC(x, y) })
}

func Nand(f solver.Facade, a, b Expr) (Expr, error) {
	return binOp(f, a, b,
		func(w ir.Width, x, y uint64) uint64 { return (x & y) ^ w.Mask() },
		func(f solver.Facade, x, y solver.Term) solver.Term { return f.Nand(x, y) })
}

func Nor(f solver.Facade, a, b Expr) (Expr, error) {
	return binOp(f, a, b,
		func(w ir.Width, x, y uint64) uint64 { return (x | y) ^ w.Mask() },
		func(f solver.Facade, x, y solver.Term) solver.Term { return f.Nor(x, y) })
}

func Eqv(f solver.Facade, a, b Expr) (Expr, error) {
	return binOp(f, a, b,
		func(w ir.Width, x, y uint64) uint64 { return (x ^ y) ^ w.Mask() },
		func(f solver.Facade, x, y solver.Term) solver.Term { return f.Eqv(x, y) })
}

func Shl(f solver.Facade, a, b Expr) (Expr, error) {
	return binOp(f, a, b,
		func(w ir.Width, x, y uint64) uint64 { return (x << (y % uint64(w))) & w.Mask() },
		func(f solver.Facade, x, y solver.Term) solver.Term { return f.Shl(x, y) })
}

// Shr is the logical (unsigned) right shift.
func Shr(f solver.Facade, a, b Expr) (Expr, error) {
	return binOp(f, a, b,
		func(w ir.Width, x, y uint64) uint64 { return x >> (y % uint64(w)) },
		func(f solver.Facade, x, y solver.Term) solver.Term { return f.Shr(x, y) })
}

// Sar is the arithmetic (signed) right shift.
func Sar(f solver.Facade, a, b Expr) (Expr, error) {
	if err := checkWidth(a, b); err != nil {
		return Expr{}, err
	}
	if a.IsConcrete() && b.IsConcrete() {
		shift := b.Value % uint64(a.Width)
		return Const(a.Width, uint64(a.Signed()>>shift)), nil
	}
	term := f.Sar(a.asTerm(f), b.asTerm(f))
	return concretize(f, a.Width, term), nil
}

func signedOf(e Expr) int64 { return e.Signed() }

// signedWrap re-masks a signed 64-bit host computation back down to the
// target width's two's-complement range.
func signedWrap(w ir.Width, v int64) int64 {
	masked := uint64(v) & w.Mask()
	if w == ir.Width32 {
		return int64(int32(uint32(masked)))
	}
	return int64(masked)
}

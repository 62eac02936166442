// Package expr implements the dual-mode expression algebra (spec.md
// §4.2): a value is either a concrete bit-vector or a symbolic term of
// matching width, with concretization after every operation that
// collapses a symbolic result back to concrete whenever the solver
// proves it is uniquely determined.
package expr

import (
	"fmt"

	"github.com/qemu-qce/qce/internal/ir"
	"github.com/qemu-qce/qce/internal/solver"
)

// Expr is Concrete{width,value} | Symbolic{width, term} (spec.md §3).
// The zero value is not meaningful; always construct through Const or
// Sym.
type Expr struct {
	Width    ir.Width
	Value    uint64 // meaningful iff Term == nil
	Term     solver.Term
}

// Const builds a concrete expression, masking value to width.
func Const(w ir.Width, value uint64) Expr {
	return Expr{Width: w, Value: value & w.Mask()}
}

// Sym builds a symbolic expression from a solver term.
func Sym(w ir.Width, term solver.Term) Expr {
	return Expr{Width: w, Term: term}
}

// IsConcrete reports whether e currently holds a concrete value.
func (e Expr) IsConcrete() bool { return e.Term == nil }

func (e Expr) String() string {
	if e.IsConcrete() {
		return fmt.Sprintf("%s:0x%x", e.Width, e.Value)
	}
	return fmt.Sprintf("%s:<sym>", e.Width)
}

// Signed reinterprets the concrete value as a signed N-bit integer. Only
// meaningful when IsConcrete.
func (e Expr) Signed() int64 {
	if e.Width == ir.Width32 {
		return int64(int32(uint32(e.Value)))
	}
	return int64(e.Value)
}

// asTerm lifts e to a solver term of its declared width, materializing a
// constant term for a concrete value. Used internally whenever an
// operation must go through the solver because at least one operand is
// symbolic (spec.md §4.2 step 2: "lift either operand to a symbolic
// constant of the proper width").
func (e Expr) asTerm(f solver.Facade) solver.Term {
	if e.Term != nil {
		return e.Term
	}
	return f.ConstTerm(e.Width, e.Value)
}

func checkWidth(a, b Expr) error {
	if a.Width != b.Width {
		return fmt.Errorf("%w: %s vs %s", ErrWidthMismatch, a.Width, b.Width)
	}
	return nil
}

// concretize probes a freshly-produced symbolic term and collapses it to
// Concrete if the solver proves it unique (spec.md §4.2 step 3). A probe
// result of "unknown" is non-fatal (spec.md §7): the expression simply
// stays symbolic.
func concretize(f solver.Facade, w ir.Width, term solver.Term) Expr {
	if v, ok := f.ProbeBV(term, w); ok {
		return Const(w, v)
	}
	return Sym(w, term)
}

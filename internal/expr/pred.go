package expr

import (
	"fmt"

	"github.com/qemu-qce/qce/internal/ir"
	"github.com/qemu-qce/qce/internal/solver"
)

// Pred is Concrete(bool) | Symbolic(term of sort bool) (spec.md §3).
type Pred struct {
	Value uint8 // 0 or 1, meaningful iff Term == nil
	Term  solver.Term
}

func PredConst(v bool) Pred {
	if v {
		return Pred{Value: 1}
	}
	return Pred{Value: 0}
}

func PredSym(term solver.Term) Pred { return Pred{Term: term} }

func (p Pred) IsConcrete() bool { return p.Term == nil }
func (p Pred) Bool() bool       { return p.Value != 0 }

func (p Pred) String() string {
	if p.IsConcrete() {
		return fmt.Sprintf("%t", p.Bool())
	}
	return "<sym-bool>"
}

func concretizePred(f solver.Facade, term solver.Term) Pred {
	if v, ok := f.ProbeBool(term); ok {
		return PredConst(v)
	}
	return PredSym(term)
}

func compare(f solver.Facade, a, b Expr, concrete func(x, y int64, ux, uy uint64) bool, sym func(solver.Facade, solver.Term, solver.Term) solver.Term) (Pred, error) {
	if err := checkWidth(a, b); err != nil {
		return Pred{}, err
	}
	if a.IsConcrete() && b.IsConcrete() {
		return PredConst(concrete(a.Signed(), b.Signed(), a.Value, b.Value)), nil
	}
	term := sym(f, a.asTerm(f), b.asTerm(f))
	return concretizePred(f, term), nil
}

func Eq(f solver.Facade, a, b Expr) (Pred, error) {
	return compare(f, a, b, func(_, _ int64, x, y uint64) bool { return x == y },
		func(f solver.Facade, x, y solver.Term) solver.Term { return f.Eq(x, y) })
}

func Ne(f solver.Facade, a, b Expr) (Pred, error) {
	return compare(f, a, b, func(_, _ int64, x, y uint64) bool { return x != y },
		func(f solver.Facade, x, y solver.Term) solver.Term { return f.Ne(x, y) })
}

func Slt(f solver.Facade, a, b Expr) (Pred, error) {
	return compare(f, a, b, func(x, y int64, _, _ uint64) bool { return x < y },
		func(f solver.Facade, x, y solver.Term) solver.Term { return f.Slt(x, y) })
}

func Sle(f solver.Facade, a, b Expr) (Pred, error) {
	return compare(f, a, b, func(x, y int64, _, _ uint64) bool { return x <= y },
		func(f solver.Facade, x, y solver.Term) solver.Term { return f.Sle(x, y) })
}

func Sge(f solver.Facade, a, b Expr) (Pred, error) {
	return compare(f, a, b, func(x, y int64, _, _ uint64) bool { return x >= y },
		func(f solver.Facade, x, y solver.Term) solver.Term { return f.Sge(x, y) })
}

func Sgt(f solver.Facade, a, b Expr) (Pred, error) {
	return compare(f, a, b, func(x, y int64, _, _ uint64) bool { return x > y },
		func(f solver.Facade, x, y solver.Term) solver.Term { return f.Sgt(x, y) })
}

func Ult(f solver.Facade, a, b Expr) (Pred, error) {
	return compare(f, a, b, func(_, _ int64, x, y uint64) bool { return x < y },
		func(f solver.Facade, x, y solver.Term) solver.Term { return f.Ult(x, y) })
}

func Ule(f solver.Facade, a, b Expr) (Pred, error) {
	return compare(f, a, b, func(_, _ int64, x, y uint64) bool { return x <= y },
		func(f solver.Facade, x, y solver.Term) solver.Term { return f.Ule(x, y) })
}

func Uge(f solver.Facade, a, b Expr) (Pred, error) {
	return compare(f, a, b, func(_, _ int64, x, y uint64) bool { return x >= y },
		func(f solver.Facade, x, y solver.Term) solver.Term { return f.Uge(x, y) })
}

func Ugt(f solver.Facade, a, b Expr) (Pred, error) {
	return compare(f, a, b, func(_, _ int64, x, y uint64) bool { return x > y },
		func(f solver.Facade, x, y solver.Term) solver.Term { return f.Ugt(x, y) })
}

// Tsteq/Tstne implement the CondTSTEQ/CondTSTNE rows of spec.md §4.6's
// condition table: "(a & b) ==/!= 0".
func Tsteq(f solver.Facade, a, b Expr) (Pred, error) {
	masked, err := And(f, a, b)
	if err != nil {
		return Pred{}, err
	}
	return Eq(f, masked, Const(a.Width, 0))
}

func Tstne(f solver.Facade, a, b Expr) (Pred, error) {
	masked, err := And(f, a, b)
	if err != nil {
		return Pred{}, err
	}
	return Ne(f, masked, Const(a.Width, 0))
}

// Eval applies the condition-code table of spec.md §4.6 to build the Pred
// for a brcond/movcond instruction.
func Eval(f solver.Facade, cond ir.CondCode, a, b Expr) (Pred, error) {
	switch cond {
	case ir.CondEQ:
		return Eq(f, a, b)
	case ir.CondNE:
		return Ne(f, a, b)
	case ir.CondLT:
		return Slt(f, a, b)
	case ir.CondLE:
		return Sle(f, a, b)
	case ir.CondGE:
		return Sge(f, a, b)
	case ir.CondGT:
		return Sgt(f, a, b)
	case ir.CondLTU:
		return Ult(f, a, b)
	case ir.CondLEU:
		return Ule(f, a, b)
	case ir.CondGEU:
		return Uge(f, a, b)
	case ir.CondGTU:
		return Ugt(f, a, b)
	case ir.CondTSTEQ:
		return Tsteq(f, a, b)
	case ir.CondTSTNE:
		return Tstne(f, a, b)
	case ir.CondNever:
		return PredConst(false), nil
	case ir.CondAlways:
		return PredConst(true), nil
	default:
		return Pred{}, fmt.Errorf("expr: unknown condition code %v", cond)
	}
}

// Movcond implements spec.md §4.6's movcond rule: concrete select when
// both the condition's operands are concrete (equivalently, when the
// resulting Pred is concrete), otherwise a symbolic ite over the two
// value operands, then probed.
func Movcond(f solver.Facade, cond Pred, whenTrue, whenFalse Expr) (Expr, error) {
	if err := checkWidth(whenTrue, whenFalse); err != nil {
		return Expr{}, err
	}
	if cond.IsConcrete() {
		if cond.Bool() {
			return whenTrue, nil
		}
		return whenFalse, nil
	}
	term := f.Ite(cond.Term, whenTrue.asTerm(f), whenFalse.asTerm(f))
	return concretize(f, whenTrue.Width, term), nil
}

package solver

import (
	"fmt"

	"github.com/aclements/go-z3/z3"
	"github.com/qemu-qce/qce/internal/ir"
)

// z3Facade implements Facade on top of Z3. It owns one context and one
// incremental solver for the lifetime of a session (spec.md §5: "Solver
// context: acquired on session start, released on session teardown with
// guaranteed release even on error").
type z3Facade struct {
	ctx *z3.Context
	s   *z3.Solver
}

// NewZ3 constructs a Facade backed by Z3. Bit-vector results of the
// arithmetic, bitwise, wide, extract/concat, extend and ite operations are
// passed through Simplify before being handed back; compare, Lnot, Select
// and Store results are returned unsimplified.
func NewZ3() Facade {
	cfg := z3.NewConfig()
	ctx := z3.NewContext(cfg)
	return &z3Facade{ctx: ctx, s: ctx.NewSolver()}
}

func sortOf(ctx *z3.Context, w ir.Width) z3.Sort {
	return ctx.BVSort(int(w))
}

func bv(t Term) z3.BV   { return t.(z3.BV) }
func bl(t Term) z3.Bool { return t.(z3.Bool) }

func simplify(v z3.BV) z3.BV {
	return v.Simplify()
}

func (f *z3Facade) Var(w ir.Width, name string) Term {
	return f.ctx.Const(name, sortOf(f.ctx, w)).(z3.BV)
}

func (f *z3Facade) ConstTerm(w ir.Width, value uint64) Term {
	return f.ctx.FromBigUint(nil, value, int(w)).(z3.BV)
}

func (f *z3Facade) Add(a, b Term) Term  { return simplify(bv(a).Add(bv(b))) }
func (f *z3Facade) Sub(a, b Term) Term  { return simplify(bv(a).Sub(bv(b))) }
func (f *z3Facade) Mul(a, b Term) Term  { return simplify(bv(a).Mul(bv(b))) }

func (f *z3Facade) Div(a, b Term, signed bool) Term {
	if signed {
		return simplify(bv(a).SDiv(bv(b)))
	}
	return simplify(bv(a).UDiv(bv(b)))
}

func (f *z3Facade) Rem(a, b Term, signed bool) Term {
	if signed {
		return simplify(bv(a).SRem(bv(b)))
	}
	return simplify(bv(a).URem(bv(b)))
}

func (f *z3Facade) Shl(a, b Term) Term { return simplify(bv(a).Lsh(bv(b))) }
func (f *z3Facade) Shr(a, b Term) Term { return simplify(bv(a).URsh(bv(b))) }
func (f *z3Facade) Sar(a, b Term) Term { return simplify(bv(a).SRsh(bv(b))) }

func (f *z3Facade) And(a, b Term) Term { return simplify(bv(a).And(bv(b))) }
func (f *z3Facade) Or(a, b Term) Term  { return simplify(bv(a).Or(bv(b))) }
func (f *z3Facade) Xor(a, b Term) Term { return simplify(bv(a).Xor(bv(b))) }
func (f *z3Facade) Not(a Term) Term    { return simplify(bv(a).Not()) }

func (f *z3Facade) Lnot(term Term) Term { return bl(term).Not() }

func (f *z3Facade) AndC(a, b Term) Term { return f.And(a, f.Not(b)) }
func (f *z3Facade) OrC(a, b Term) Term  { return f.Or(a, f.Not(b)) }
func (f *z3Facade) Nand(a, b Term) Term { return f.Not(f.And(a, b)) }
func (f *z3Facade) Nor(a, b Term) Term  { return f.Not(f.Or(a, b)) }
func (f *z3Facade) Eqv(a, b Term) Term  { return f.Not(f.Xor(a, b)) }

func (f *z3Facade) Eq(a, b Term) Term { return bv(a).Eq(bv(b)) }
func (f *z3Facade) Ne(a, b Term) Term { return bv(a).Eq(bv(b)).Not() }
func (f *z3Facade) Slt(a, b Term) Term { return bv(a).SLT(bv(b)) }
func (f *z3Facade) Sle(a, b Term) Term { return bv(a).SLE(bv(b)) }
func (f *z3Facade) Sge(a, b Term) Term { return bv(a).SGE(bv(b)) }
func (f *z3Facade) Sgt(a, b Term) Term { return bv(a).SGT(bv(b)) }
func (f *z3Facade) Ult(a, b Term) Term { return bv(a).ULT(bv(b)) }
func (f *z3Facade) Ule(a, b Term) Term { return bv(a).ULE(bv(b)) }
func (f *z3Facade) Uge(a, b Term) Term { return bv(a).UGE(bv(b)) }
func (f *z3Facade) Ugt(a, b Term) Term { return bv(a).UGT(bv(b)) }

func (f *z3Facade) Add2(aLo, aHi, bLo, bHi Term) (lo, hi Term) {
	wide := func(x, y z3.BV) z3.BV { return x.Concat(y) }
	aWide := wide(bv(aHi), bv(aLo))
	bWide := wide(bv(bHi), bv(bLo))
	sum := aWide.Add(bWide)
	w := bv(aLo).Sort().BVSize()
	return simplify(sum.Extract(w-1, 0)), simplify(sum.Extract(2*w-1, w))
}

func (f *z3Facade) Sub2(aLo, aHi, bLo, bHi Term) (lo, hi Term) {
	aWide := bv(aHi).Concat(bv(aLo))
	bWide := bv(bHi).Concat(bv(bLo))
	diff := aWide.Sub(bWide)
	w := bv(aLo).Sort().BVSize()
	return simplify(diff.Extract(w-1, 0)), simplify(diff.Extract(2*w-1, w))
}

func (f *z3Facade) Muls2(a, b Term) (lo, hi Term) {
	w := bv(a).Sort().BVSize()
	aWide := bv(a).SignExt(w)
	bWide := bv(b).SignExt(w)
	prod := aWide.Mul(bWide)
	return simplify(prod.Extract(w-1, 0)), simplify(prod.Extract(2*w-1, w))
}

func (f *z3Facade) Extract32(a Term) (lo, hi Term) {
	v := bv(a)
	return simplify(v.Extract(31, 0)), simplify(v.Extract(63, 32))
}

func (f *z3Facade) Concat32(lo, hi Term) Term {
	return simplify(bv(hi).Concat(bv(lo)))
}

func (f *z3Facade) ZeroExtend(term Term, toBits int) Term {
	v := bv(term)
	cur := v.Sort().BVSize()
	if cur >= toBits {
		return term
	}
	return simplify(v.ZeroExt(toBits - cur))
}

func (f *z3Facade) Ite(cond, whenTrue, whenFalse Term) Term {
	return simplify(bl(cond).IfThenElse(bv(whenTrue), bv(whenFalse)).(z3.BV))
}

func (f *z3Facade) ArrayVar(name string) Term {
	idx := f.ctx.BVSort(64)
	elt := f.ctx.BVSort(8)
	return f.ctx.Const(name, f.ctx.ArraySort(idx, elt))
}

func (f *z3Facade) Select(arr, index Term) Term {
	return arr.(z3.Array).Select(bv(index)).(z3.BV)
}

func (f *z3Facade) Store(arr, index, value Term) Term {
	return arr.(z3.Array).Store(bv(index), bv(value))
}

// ProbeBool reports whether term is forced to a single boolean value
// under the current constraint set: forced true iff asserting ¬term is
// unsatisfiable, forced false iff asserting term is unsatisfiable.
func (f *z3Facade) ProbeBool(term Term) (bool, bool) {
	f.s.Push()
	negSat, negErr := f.checkWith(bl(term).Not())
	f.s.Pop()
	if negErr == nil && !negSat {
		return true, true
	}

	f.s.Push()
	posSat, posErr := f.checkWith(bl(term))
	f.s.Pop()
	if posErr == nil && !posSat {
		return false, true
	}
	return false, false
}

func (f *z3Facade) checkWith(prop z3.Bool) (bool, error) {
	f.s.Assert(prop)
	return f.s.Check()
}

// ProbeBV reports term's value only when it simplifies to a constant; the
// solver's asserted constraints are not consulted.
func (f *z3Facade) ProbeBV(term Term, w ir.Width) (uint64, bool) {
	v := simplify(bv(term))
	if v.IsConst() {
		u, ok := v.AsBigUint()
		if ok {
			return u, true
		}
	}
	return 0, false
}

func (f *z3Facade) Prove(prop Term) ProveResult {
	f.s.Push()
	defer f.s.Pop()
	f.s.Assert(bl(prop).Not())
	notSat, err := f.s.Check()
	if err != nil {
		return Unknown
	}
	if !notSat {
		return Proved
	}
	f.s.Pop()
	f.s.Push()
	f.s.Assert(bl(prop))
	sat, err := f.s.Check()
	if err != nil {
		return Unknown
	}
	if !sat {
		return Refuted
	}
	return Unknown
}

func (f *z3Facade) ProveEquiv(a, b Term) ProveResult {
	return f.Prove(f.Eq(a, b).(z3.Bool))
}

func (f *z3Facade) ConcretizeBool(blobAddr, blobSize uint64, blobBytes []byte, pred Term) bool {
	f.s.Push()
	defer f.s.Pop()
	// Model substitution is expressed as extra equality constraints on the
	// three session-global symbols rather than a term-rewrite pass; pred is
	// then reported true iff it is satisfiable under these constraints.
	addrVar := f.ctx.Const("addr", f.ctx.BVSort(64)).(z3.BV)
	sizeVar := f.ctx.Const("size", f.ctx.BVSort(64)).(z3.BV)
	f.s.Assert(addrVar.Eq(f.ctx.FromBigUint(nil, blobAddr, 64).(z3.BV)))
	f.s.Assert(sizeVar.Eq(f.ctx.FromBigUint(nil, blobSize, 64).(z3.BV)))
	blobVar := f.ctx.Const("blob", f.ctx.ArraySort(f.ctx.BVSort(64), f.ctx.BVSort(8))).(z3.Array)
	for i, byt := range blobBytes {
		idx := f.ctx.FromBigUint(nil, blobAddr+uint64(i), 64).(z3.BV)
		val := f.ctx.FromBigUint(nil, uint64(byt), 8).(z3.BV)
		f.s.Assert(blobVar.Select(idx).(z3.BV).Eq(val))
	}
	f.s.Assert(bl(pred))
	sat, err := f.s.Check()
	return err == nil && sat
}

func (f *z3Facade) SolveFor(cond Term, outBuf []byte) (int, error) {
	f.s.Push()
	defer f.s.Pop()
	f.s.Assert(bl(cond))
	sat, err := f.s.Check()
	if err != nil {
		return 0, fmt.Errorf("solver: solve_for failed: %w", err)
	}
	if !sat {
		return 0, fmt.Errorf("solver: solve_for: no satisfying assignment")
	}
	model := f.s.Model()
	blobVar := f.ctx.Const("blob", f.ctx.ArraySort(f.ctx.BVSort(64), f.ctx.BVSort(8))).(z3.Array)
	n := 0
	for i := range outBuf {
		idx := f.ctx.FromBigUint(nil, uint64(i), 64).(z3.BV)
		byteTerm := model.Eval(blobVar.Select(idx), true)
		u, ok := byteTerm.(z3.BV).AsBigUint()
		if !ok {
			break
		}
		outBuf[i] = byte(u)
		n = i + 1
	}
	return n, nil
}

func (f *z3Facade) Assert(prop Term) {
	f.s.Assert(bl(prop))
}

func (f *z3Facade) Close() {
	f.s = nil
	f.ctx = nil
}

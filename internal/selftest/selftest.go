// Package selftest implements the QCE_CHECK property suite (spec.md §9),
// grounded on the original's qce_unit_test, which runs
// qce_unit_test_smt_z3/qce_unit_test_expr/qce_unit_test_state in sequence
// and exits the process. This package mirrors that three-part structure
// as three Go functions exercising the same layers this module built
// in place of the original's: the solver facade, the expression
// algebra, and the machine state.
package selftest

import (
	"fmt"

	"github.com/qemu-qce/qce/internal/expr"
	"github.com/qemu-qce/qce/internal/ir"
	"github.com/qemu-qce/qce/internal/machine"
	"github.com/qemu-qce/qce/internal/solver"
)

// Run executes every check and returns the first failure, or nil if all
// pass.
func Run() error {
	f := solver.NewZ3()
	defer f.Close()

	if err := checkSolver(f); err != nil {
		return fmt.Errorf("selftest: solver: %w", err)
	}
	if err := checkExpr(f); err != nil {
		return fmt.Errorf("selftest: expr: %w", err)
	}
	if err := checkState(f); err != nil {
		return fmt.Errorf("selftest: state: %w", err)
	}
	return nil
}

// checkSolver exercises the Facade's arithmetic, compare, and Prove
// primitives directly, equivalent to the original's qce_unit_test_smt_z3.
func checkSolver(f solver.Facade) error {
	a := f.ConstTerm(ir.Width64, 2)
	b := f.ConstTerm(ir.Width64, 3)
	sum := f.Add(a, b)
	if v, ok := f.ProbeBV(sum, ir.Width64); !ok || v != 5 {
		return fmt.Errorf("2+3 probed as %d, ok=%v, want 5", v, ok)
	}

	x := f.Var(ir.Width64, "selftest_x")
	eq := f.Eq(x, f.ConstTerm(ir.Width64, 42))
	if f.Prove(eq) != solver.Unknown {
		return fmt.Errorf("an unconstrained variable's equality to a constant must be Unknown, not %v", f.Prove(eq))
	}

	alwaysTrue := f.Eq(a, f.ConstTerm(ir.Width64, 2))
	if f.Prove(alwaysTrue) != solver.Proved {
		return fmt.Errorf("2 == 2 must be Proved")
	}
	return nil
}

// checkExpr exercises the dual-mode algebra's concrete arithmetic and
// concretization-after-every-op rule, equivalent to qce_unit_test_expr:
// the full per-opcode battery the original runs (add/sub/mul/div/rem,
// every bitwise op, all three shifts, every compare, the wide and partial
// operations), not just a handful of spot checks.
func checkExpr(f solver.Facade) error {
	a := expr.Const(ir.Width32, 10)
	b := expr.Const(ir.Width32, 3)

	type binCheck struct {
		name string
		fn   func(solver.Facade, expr.Expr, expr.Expr) (expr.Expr, error)
		want uint64
	}
	for _, c := range []binCheck{
		{"add", expr.Add, 13},
		{"sub", expr.Sub, 7},
		{"mul", expr.Mul, 30},
		{"divu", expr.DivU, 3},
		{"divs", expr.DivS, 3},
		{"remu", expr.RemU, 1},
		{"rems", expr.RemS, 1},
		{"and", expr.And, 10 & 3},
		{"or", expr.Or, 10 | 3},
		{"xor", expr.Xor, 10 ^ 3},
		{"andc", expr.AndC, 10 &^ 3},
		{"orc", expr.OrC, (10 | (3 ^ ir.Width32.Mask())) & ir.Width32.Mask()},
		{"nand", expr.Nand, (10 & 3) ^ ir.Width32.Mask()},
		{"nor", expr.Nor, (10 | 3) ^ ir.Width32.Mask()},
		{"eqv", expr.Eqv, (10 ^ 3) ^ ir.Width32.Mask()},
		{"shl", expr.Shl, 10 << 3},
		{"shr", expr.Shr, 10 >> 3},
		{"sar", expr.Sar, 10 >> 3},
	} {
		got, err := c.fn(f, a, b)
		if err != nil {
			return fmt.Errorf("%s: %w", c.name, err)
		}
		if !got.IsConcrete() || got.Value != c.want {
			return fmt.Errorf("%s(10,3) = %v, want concrete %d", c.name, got, c.want)
		}
	}

	type cmpCheck struct {
		name string
		fn   func(solver.Facade, expr.Expr, expr.Expr) (expr.Pred, error)
		want bool
	}
	for _, c := range []cmpCheck{
		{"eq", expr.Eq, false},
		{"ne", expr.Ne, true},
		{"slt", expr.Slt, false},
		{"sle", expr.Sle, false},
		{"sge", expr.Sge, true},
		{"sgt", expr.Sgt, true},
		{"ult", expr.Ult, false},
		{"ule", expr.Ule, false},
		{"uge", expr.Uge, true},
		{"ugt", expr.Ugt, true},
	} {
		got, err := c.fn(f, a, b)
		if err != nil {
			return fmt.Errorf("%s: %w", c.name, err)
		}
		if !got.IsConcrete() || got.Bool() != c.want {
			return fmt.Errorf("%s(10,3) = %v, want concrete %v", c.name, got, c.want)
		}
	}
	// 10 & 3 = 2 != 0: tsteq (result == 0) is false, tstne is true.
	tsteq, err := expr.Tsteq(f, a, b)
	if err != nil {
		return err
	}
	if !tsteq.IsConcrete() || tsteq.Bool() {
		return fmt.Errorf("tsteq(10,3) = %v, want concrete false", tsteq)
	}
	tstne, err := expr.Tstne(f, a, b)
	if err != nil {
		return err
	}
	if !tstne.IsConcrete() || !tstne.Bool() {
		return fmt.Errorf("tstne(10,3) = %v, want concrete true", tstne)
	}

	lo, hi, err := expr.Add2(f, expr.Const(ir.Width32, 1), expr.Const(ir.Width32, 0xffffffff), expr.Const(ir.Width32, 0), expr.Const(ir.Width32, 0))
	if err != nil {
		return err
	}
	if !lo.IsConcrete() || lo.Value != 1 || !hi.IsConcrete() || hi.Value != 0xffffffff {
		return fmt.Errorf("add2 pass-through mismatch: lo=%v hi=%v", lo, hi)
	}

	slo, shi, err := expr.Sub2(f, expr.Const(ir.Width64, 0xdeadbeef), expr.Const(ir.Width64, 0), expr.Const(ir.Width64, 0xdeadbeef), expr.Const(ir.Width64, 0))
	if err != nil {
		return err
	}
	if !slo.IsConcrete() || slo.Value != 0 || !shi.IsConcrete() || shi.Value != 0 {
		return fmt.Errorf("sub2(a,a) mismatch: lo=%v hi=%v", slo, shi)
	}

	mlo, mhi, err := expr.Muls2(f, expr.Const(ir.Width32, 0x7fffffff), expr.Const(ir.Width32, 0x7fffffff))
	if err != nil {
		return err
	}
	if !mlo.IsConcrete() || mlo.Value != 1 || !mhi.IsConcrete() || mhi.Value != 1073741823 {
		return fmt.Errorf("muls2(INT32_MAX,INT32_MAX) mismatch: lo=%v hi=%v", mlo, mhi)
	}

	whole := expr.Const(ir.Width32, 0xdeadbeef)
	part := expr.LoadPartial(f, whole, 8, false)
	if !part.IsConcrete() || part.Value != 0xef {
		return fmt.Errorf("load_partial(8 bits) = %v, want 0xef", part)
	}
	stored, err := expr.StorePartial(f, whole, expr.Const(ir.Width32, 0x12), 8)
	if err != nil {
		return err
	}
	if !stored.IsConcrete() || stored.Value != 0xdeadbe12 {
		return fmt.Errorf("store_partial(8 bits, 0x12) = %v, want 0xdeadbe12", stored)
	}
	return nil
}

type fixedHost struct{ env, reg uint64 }

func (h fixedHost) ReadEnv(offset uint64, w ir.Width) uint64 { return h.env }
func (h fixedHost) ReadReg(reg uint16, w ir.Width) uint64    { return h.reg }

type fixedGuest struct{ word byte }

func (g fixedGuest) ReadGuest(addr uint64, w ir.Width) uint64 { return uint64(g.word) }
func (g fixedGuest) ReadGuestByte(addr uint64) byte           { return g.word }

// checkState exercises the machine state's touched-cell-vs-concrete-
// fallback rule, equivalent to qce_unit_test_state.
func checkState(f solver.Facade) error {
	const envBase = 0x100000
	st := machine.New(f, fixedHost{env: 0xaa, reg: 0xbb}, fixedGuest{word: 0xcc}, envBase)

	if v := st.GetEnv(envBase, ir.Width64); !v.IsConcrete() || v.Value != 0xaa {
		return fmt.Errorf("untouched env cell = %v, want concrete fallback 0xaa", v)
	}
	st.SetEnv(envBase, expr.Const(ir.Width64, 0x42))
	if v := st.GetEnv(envBase, ir.Width64); !v.IsConcrete() || v.Value != 0x42 {
		return fmt.Errorf("touched env cell = %v, want 0x42", v)
	}

	if v := st.GetReg(7, ir.Width64); !v.IsConcrete() || v.Value != 0xbb {
		return fmt.Errorf("untouched reg = %v, want concrete fallback 0xbb", v)
	}

	if _, err := st.EnvAddr(expr.Const(ir.Width64, envBase), machine.EnvEnvelope); err == nil {
		return fmt.Errorf("expected an envelope violation at the boundary offset")
	}
	return nil
}

// Package solver defines the capability contract this engine assumes of
// a bit-vector SMT solver (spec.md §4.1, §4.7) and provides a Z3-backed
// implementation of it. The engine core depends only on the Facade
// interface; nothing outside this package ever imports Z3 directly.
package solver

import "github.com/qemu-qce/qce/internal/ir"

// Term is an opaque handle to a solver-owned expression. Its concrete
// type is backend-specific; callers never inspect it, only pass it back
// into Facade methods. Term lifetime is scoped to the Facade's context
// (spec.md §9: "the engine itself must never hand a term out past the
// solver context's lifetime").
type Term interface{}

// ProveResult is the three-valued outcome of a path query (spec.md §4.7).
type ProveResult uint8

const (
	Proved ProveResult = iota
	Refuted
	Unknown
)

func (r ProveResult) String() string {
	switch r {
	case Proved:
		return "proved"
	case Refuted:
		return "refuted"
	default:
		return "unknown"
	}
}

// Facade is the capability contract of §4.1: a thin typed layer over a
// QF_ABV bit-vector theory (32/64-bit scalars plus array<bv64,bv8>),
// restricted to exactly the operations the expression algebra and the
// machine state need. The Z3 implementation passes bit-vector result
// terms through an eager simplify pass before returning them; bool-sorted
// results are not simplified.
//
// All width-taking methods accept ir.Width32 or ir.Width64; passing
// anything else is a programmer error.
type Facade interface {
	// Var creates a fresh free bit-vector variable of the given width.
	Var(w ir.Width, name string) Term
	// ConstTerm creates an immediate bit-vector constant.
	ConstTerm(w ir.Width, value uint64) Term

	// Arithmetic. Div/Rem take a signed flag; the rest are invariant
	// between signed/unsigned bit-vector wrap.
	Add(a, b Term) Term
	Sub(a, b Term) Term
	Mul(a, b Term) Term
	Div(a, b Term, signed bool) Term
	Rem(a, b Term, signed bool) Term
	Shl(a, b Term) Term
	Shr(a, b Term) Term // logical (unsigned)
	Sar(a, b Term) Term // arithmetic (signed)

	// Bitwise.
	And(a, b Term) Term
	Or(a, b Term) Term
	Xor(a, b Term) Term
	AndC(a, b Term) Term
	OrC(a, b Term) Term
	Nand(a, b Term) Term
	Nor(a, b Term) Term
	Eqv(a, b Term) Term
	Not(a Term) Term

	// Lnot negates a bool-sorted Term, as opposed to Not's bitwise
	// complement of a bit-vector. Used to assert the untaken side of a
	// branch (spec.md §4.8 step 5).
	Lnot(term Term) Term

	// Compares. Each returns a bool-sorted Term.
	Eq(a, b Term) Term
	Ne(a, b Term) Term
	Slt(a, b Term) Term
	Sle(a, b Term) Term
	Sge(a, b Term) Term
	Sgt(a, b Term) Term
	Ult(a, b Term) Term
	Ule(a, b Term) Term
	Uge(a, b Term) Term
	Ugt(a, b Term) Term

	// Wide ops: two N-bit inputs (plus, for Add2/Sub2, two N-bit high
	// halves) produce two N-bit outputs (low, high) per spec.md §4.2.
	Add2(aLo, aHi, bLo, bHi Term) (lo, hi Term)
	Sub2(aLo, aHi, bLo, bHi Term) (lo, hi Term)
	Muls2(a, b Term) (lo, hi Term)

	// Extract/concat a 64-bit term into/from two 32-bit halves.
	Extract32(a Term) (lo, hi Term)
	Concat32(lo, hi Term) Term

	// ZeroExtend widens a term (of any bit-width, including the 8-bit
	// bytes selected out of the blob array) up to toBits, which must be
	// >= the term's current width.
	ZeroExtend(term Term, toBits int) Term

	// Ite is the symbolic conditional-select (movcond) primitive; cond
	// must be a bool-sorted Term.
	Ite(cond, whenTrue, whenFalse Term) Term

	// Array theory over the symbolic blob.
	ArrayVar(name string) Term          // array<bv64, bv8>
	Select(arr, index Term) Term        // bv8
	Store(arr, index, value Term) Term  // array<bv64, bv8>; unused by guest stores (§4.5) but needed for model construction

	// ProbeBool reports whether term is forced to a single value under the
	// solver's current constraint set. ProbeBV reports a value only when
	// term simplifies to a constant; a bit-vector fixed only by the
	// asserted constraints is reported with ok false. ok false (value
	// meaningless) is non-fatal per spec.md §7: the expression just stays
	// symbolic.
	ProbeBool(term Term) (value bool, ok bool)
	ProbeBV(term Term, w ir.Width) (value uint64, ok bool)

	// Prove tests both prop and ¬prop for satisfiability (spec.md §4.1).
	// Constant-only queries must never return Unknown (spec.md §4.7).
	Prove(prop Term) ProveResult
	ProveEquiv(a, b Term) ProveResult

	// ConcretizeBool substitutes a concrete blob model (address, size,
	// and byte contents) into pred and simplifies to a boolean
	// (spec.md §4.1).
	ConcretizeBool(blobAddr, blobSize uint64, blobBytes []byte, pred Term) bool

	// SolveFor emits a concrete blob of length <= len(outBuf) under which
	// cond holds, returning the number of bytes written. An error here
	// is the solver-failure category of spec.md §7.
	SolveFor(cond Term, outBuf []byte) (n int, err error)

	// Assert adds prop permanently to the solver's constraint set, used
	// to fix the taken path after a branch resolves (spec.md §4.8 step 5).
	Assert(prop Term)

	// Close releases the solver context. Safe to call once per session,
	// and guaranteed to run even on a fatal error (spec.md §5).
	Close()
}

// Package transfer implements the per-opcode transfer functions of
// spec.md §4.6: read operand temps into Expr/Pred via the machine state,
// invoke the matching internal/expr algebra operation, and write the
// result back. This generalizes the teacher's single big interpreter
// loop switch (internal/engine/interpreter/interpreter.go's
// callListener/execution dispatch over OperationKind) from a Wasm value
// stack machine to a register/temp machine operating on dual-mode Expr
// cells.
package transfer

import (
	"fmt"

	"github.com/qemu-qce/qce/internal/expr"
	"github.com/qemu-qce/qce/internal/ir"
	"github.com/qemu-qce/qce/internal/machine"
	"github.com/qemu-qce/qce/internal/solver"
)

// OutcomeKind discriminates what the caller (the session's block-walking
// loop) must do after a Step.
type OutcomeKind uint8

const (
	// OutcomeNext means fall through to the next instruction.
	OutcomeNext OutcomeKind = iota
	// OutcomeBranch is a brcond: Pred carries the (possibly symbolic)
	// condition and Label the target; the branch handler of spec.md §4.8
	// owns concretizing it and deciding which edge is actually taken.
	OutcomeBranch
	// OutcomeGotoTB hands control to translation-block slot Target.
	OutcomeGotoTB
	// OutcomeExitTB ends the current block's execution.
	OutcomeExitTB
	// OutcomeGotoPtr hands control to the concrete host address Addr.
	OutcomeGotoPtr
	// OutcomeCall reports a dispatched call's resolved intent; the
	// session layer owns any intent-specific state mutation (spec.md
	// §4.3's table only fixes identification, not harness-specific
	// effects such as what an allocator call should return).
	OutcomeCall
)

// Outcome is the control-flow signal a Step produces in addition to its
// ordinary operand reads/writes.
type Outcome struct {
	Kind OutcomeKind

	Pred  expr.Pred // OutcomeBranch
	Label ir.Label  // OutcomeBranch

	Target uint32 // OutcomeGotoTB

	Addr uint64 // OutcomeGotoPtr (goto_ptr requires a concrete destination)

	Call ir.CallIntent // OutcomeCall

	GuestPC uint64 // set on every Step from the most recent insn_start, for coverage/trace use
}

// Interpreter executes Inst values against a machine.State, threading
// per-block Locals for TB-local/EBB-local temps.
type Interpreter struct {
	f      solver.Facade
	st     *machine.State
	locals *Locals

	lastPC uint64 // last_pc of spec.md §4.8, updated by insn_start
}

// New builds an Interpreter bound to st. f must be the same Facade st
// was constructed with.
func New(f solver.Facade, st *machine.State, locals *Locals) *Interpreter {
	return &Interpreter{f: f, st: st, locals: locals}
}

// LastPC reports the guest PC of the most recently executed insn_start.
func (ip *Interpreter) LastPC() uint64 { return ip.lastPC }

// Step executes one instruction and reports the control-flow outcome.
func (ip *Interpreter) Step(inst ir.Inst) (Outcome, error) {
	switch inst.Op {
	case ir.OpMov:
		v, err := ip.read(inst.Src1)
		if err != nil {
			return Outcome{}, err
		}
		return ip.next(), ip.write(inst.Dst, v)

	case ir.OpExt8U, ir.OpExt8S, ir.OpExt16U, ir.OpExt16S, ir.OpExt32U, ir.OpExt32S:
		return ip.stepExt(inst)

	case ir.OpLdEnv:
		return ip.stepLdEnv(inst)
	case ir.OpStEnv:
		return ip.stepStEnv(inst)
	case ir.OpLd:
		return ip.stepLd(inst)
	case ir.OpSt:
		return ip.stepSt(inst)

	case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpDivS, ir.OpDivU, ir.OpRemS, ir.OpRemU,
		ir.OpAnd, ir.OpOr, ir.OpXor, ir.OpAndC, ir.OpOrC, ir.OpNand, ir.OpNor, ir.OpEqv,
		ir.OpShl, ir.OpShr, ir.OpSar:
		return ip.stepBinOp(inst)

	case ir.OpBrcond:
		return ip.stepBrcond(inst)
	case ir.OpMovcond:
		return ip.stepMovcond(inst)

	case ir.OpAdd2, ir.OpSub2, ir.OpMuls2:
		return ip.stepWide(inst)

	case ir.OpCall:
		return ip.stepCall(inst)

	case ir.OpGotoTB:
		return Outcome{Kind: OutcomeGotoTB, Target: inst.Target, GuestPC: ip.lastPC}, nil
	case ir.OpExitTB:
		return Outcome{Kind: OutcomeExitTB, GuestPC: ip.lastPC}, nil
	case ir.OpGotoPtr:
		return ip.stepGotoPtr(inst)
	case ir.OpInsnStart:
		ip.lastPC = inst.GuestPC
		return Outcome{Kind: OutcomeNext, GuestPC: ip.lastPC}, nil

	default:
		return Outcome{}, fmt.Errorf("%w: %s", ErrUnhandledOp, inst.Op)
	}
}

func (ip *Interpreter) next() Outcome { return Outcome{Kind: OutcomeNext, GuestPC: ip.lastPC} }

func (ip *Interpreter) stepExt(inst ir.Inst) (Outcome, error) {
	src, err := ip.read(inst.Src1)
	if err != nil {
		return Outcome{}, err
	}
	var result expr.Expr
	switch inst.Op {
	case ir.OpExt8U:
		result = expr.Ext8U(ip.f, inst.Width, src)
	case ir.OpExt8S:
		result = expr.Ext8S(ip.f, inst.Width, src)
	case ir.OpExt16U:
		result = expr.Ext16U(ip.f, inst.Width, src)
	case ir.OpExt16S:
		result = expr.Ext16S(ip.f, inst.Width, src)
	case ir.OpExt32U:
		result = expr.Ext32U(ip.f, inst.Width, src)
	case ir.OpExt32S:
		result = expr.Ext32S(ip.f, inst.Width, src)
	}
	return ip.next(), ip.write(inst.Dst, result)
}

func (ip *Interpreter) stepBinOp(inst ir.Inst) (Outcome, error) {
	a, err := ip.read(inst.Src1)
	if err != nil {
		return Outcome{}, err
	}
	b, err := ip.read(inst.Src2)
	if err != nil {
		return Outcome{}, err
	}
	var result expr.Expr
	switch inst.Op {
	case ir.OpAdd:
		result, err = expr.Add(ip.f, a, b)
	case ir.OpSub:
		result, err = expr.Sub(ip.f, a, b)
	case ir.OpMul:
		result, err = expr.Mul(ip.f, a, b)
	case ir.OpDivS:
		result, err = expr.DivS(ip.f, a, b)
	case ir.OpDivU:
		result, err = expr.DivU(ip.f, a, b)
	case ir.OpRemS:
		result, err = expr.RemS(ip.f, a, b)
	case ir.OpRemU:
		result, err = expr.RemU(ip.f, a, b)
	case ir.OpAnd:
		result, err = expr.And(ip.f, a, b)
	case ir.OpOr:
		result, err = expr.Or(ip.f, a, b)
	case ir.OpXor:
		result, err = expr.Xor(ip.f, a, b)
	case ir.OpAndC:
		result, err = expr.AndC(ip.f, a, b)
	case ir.OpOrC:
		result, err = expr.OrC(ip.f, a, b)
	case ir.OpNand:
		result, err = expr.Nand(ip.f, a, b)
	case ir.OpNor:
		result, err = expr.Nor(ip.f, a, b)
	case ir.OpEqv:
		result, err = expr.Eqv(ip.f, a, b)
	case ir.OpShl:
		result, err = expr.Shl(ip.f, a, b)
	case ir.OpShr:
		result, err = expr.Shr(ip.f, a, b)
	case ir.OpSar:
		result, err = expr.Sar(ip.f, a, b)
	}
	if err != nil {
		return Outcome{}, err
	}
	return ip.next(), ip.write(inst.Dst, result)
}

func (ip *Interpreter) stepBrcond(inst ir.Inst) (Outcome, error) {
	a, err := ip.read(inst.Src1)
	if err != nil {
		return Outcome{}, err
	}
	b, err := ip.read(inst.Src2)
	if err != nil {
		return Outcome{}, err
	}
	pred, err := expr.Eval(ip.f, inst.Cond, a, b)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Kind: OutcomeBranch, Pred: pred, Label: inst.Label, GuestPC: ip.lastPC}, nil
}

func (ip *Interpreter) stepMovcond(inst ir.Inst) (Outcome, error) {
	a, err := ip.read(inst.Src1)
	if err != nil {
		return Outcome{}, err
	}
	b, err := ip.read(inst.Src2)
	if err != nil {
		return Outcome{}, err
	}
	cond, err := expr.Eval(ip.f, inst.Cond, a, b)
	if err != nil {
		return Outcome{}, err
	}
	whenTrue, err := ip.read(inst.Src3)
	if err != nil {
		return Outcome{}, err
	}
	whenFalse, err := ip.read(inst.Src4)
	if err != nil {
		return Outcome{}, err
	}
	result, err := expr.Movcond(ip.f, cond, whenTrue, whenFalse)
	if err != nil {
		return Outcome{}, err
	}
	return ip.next(), ip.write(inst.Dst, result)
}

func (ip *Interpreter) stepWide(inst ir.Inst) (Outcome, error) {
	aLo, err := ip.read(inst.Src1)
	if err != nil {
		return Outcome{}, err
	}
	bLo, err := ip.read(inst.Src2)
	if err != nil {
		return Outcome{}, err
	}

	var lo, hi expr.Expr
	if inst.Op == ir.OpMuls2 {
		lo, hi, err = expr.Muls2(ip.f, aLo, bLo)
	} else {
		aHi, rerr := ip.read(inst.Src1Hi)
		if rerr != nil {
			return Outcome{}, rerr
		}
		bHi, rerr := ip.read(inst.Src2Hi)
		if rerr != nil {
			return Outcome{}, rerr
		}
		if inst.Op == ir.OpAdd2 {
			lo, hi, err = expr.Add2(ip.f, aLo, aHi, bLo, bHi)
		} else {
			lo, hi, err = expr.Sub2(ip.f, aLo, aHi, bLo, bHi)
		}
	}
	if err != nil {
		return Outcome{}, err
	}
	// add2/sub2/muls2 write two destinations atomically (spec.md §4.6):
	// both writes happen here, with neither visible to a reader until both
	// have landed, since Step never yields control mid-instruction (§5).
	if err := ip.write(inst.Dst, lo); err != nil {
		return Outcome{}, err
	}
	return ip.next(), ip.write(inst.Dst2, hi)
}

func (ip *Interpreter) stepLdEnv(inst ir.Inst) (Outcome, error) {
	addr, err := ip.resolveGlobalAddr(inst.Src1)
	if err != nil {
		return Outcome{}, err
	}
	whole := ip.st.GetEnv(addr, inst.Width)
	result := whole
	if uint64(inst.Mem.Size) != uint64(inst.Width) {
		result = expr.LoadPartial(ip.f, whole, int(inst.Mem.Size), inst.Mem.Signed)
	}
	return ip.next(), ip.write(inst.Dst, result)
}

func (ip *Interpreter) stepStEnv(inst ir.Inst) (Outcome, error) {
	// st_env shares ld_env's {Dst, Src1} parse shape (spec.md §4.3): Src1
	// is the address temp in both cases, but for a store the value being
	// written is the trailing operand the parser assigns to Dst.
	addr, err := ip.resolveGlobalAddr(inst.Src1)
	if err != nil {
		return Outcome{}, err
	}
	value, err := ip.read(inst.Dst)
	if err != nil {
		return Outcome{}, err
	}
	if uint64(inst.Mem.Size) == uint64(inst.Width) {
		ip.st.SetEnv(addr, value)
		return ip.next(), nil
	}
	return ip.next(), ip.st.StoreEnvPartial(addr, inst.Width, value, int(inst.Mem.Size))
}

func (ip *Interpreter) stepLd(inst ir.Inst) (Outcome, error) {
	addr, err := ip.read(inst.Src1)
	if err != nil {
		return Outcome{}, err
	}
	result, err := ip.st.LoadGuest(addr, inst.Width, inst.Mem)
	if err != nil {
		return Outcome{}, err
	}
	return ip.next(), ip.write(inst.Dst, result)
}

func (ip *Interpreter) stepSt(inst ir.Inst) (Outcome, error) {
	addr, err := ip.read(inst.Src1)
	if err != nil {
		return Outcome{}, err
	}
	value, err := ip.read(inst.Src2)
	if err != nil {
		return Outcome{}, err
	}
	return ip.next(), ip.st.StoreGuest(addr, value, inst.Mem)
}

func (ip *Interpreter) stepCall(inst ir.Inst) (Outcome, error) {
	if !inst.Call.Known {
		return Outcome{}, fmt.Errorf("%w: %s", ErrUnknownCall, inst.Call.Name)
	}
	return Outcome{Kind: OutcomeCall, Call: inst.Call, GuestPC: ip.lastPC}, nil
}

func (ip *Interpreter) stepGotoPtr(inst ir.Inst) (Outcome, error) {
	addr, err := ip.read(inst.Src1)
	if err != nil {
		return Outcome{}, err
	}
	if !addr.IsConcrete() {
		return Outcome{}, fmt.Errorf("%w: symbolic goto_ptr target", machine.ErrHostMemoryViolation)
	}
	return Outcome{Kind: OutcomeGotoPtr, Addr: addr.Value, GuestPC: ip.lastPC}, nil
}

// read resolves a Temp to its current Expr via the machine state, for
// every Temp variant of spec.md §3.
func (ip *Interpreter) read(t ir.Temp) (expr.Expr, error) {
	switch t.Kind {
	case ir.TempConst:
		return expr.Const(t.Width, t.Value), nil
	case ir.TempFixed:
		return ip.st.GetReg(t.Reg, t.Width), nil
	case ir.TempGlobalDirect, ir.TempGlobalIndirect:
		addr, err := ip.resolveGlobalAddr(t)
		if err != nil {
			return expr.Expr{}, err
		}
		return ip.st.GetEnv(addr, t.Width), nil
	case ir.TempTBLocal, ir.TempEBBLocal:
		return ip.locals.get(t.Kind, t.Index, t.Width), nil
	default:
		return expr.Expr{}, fmt.Errorf("transfer: unknown temp kind %v", t.Kind)
	}
}

// write stores v into the location t names.
func (ip *Interpreter) write(t ir.Temp, v expr.Expr) error {
	switch t.Kind {
	case ir.TempFixed:
		ip.st.SetReg(t.Reg, v)
		return nil
	case ir.TempGlobalDirect, ir.TempGlobalIndirect:
		addr, err := ip.resolveGlobalAddr(t)
		if err != nil {
			return err
		}
		ip.st.SetEnv(addr, v)
		return nil
	case ir.TempTBLocal, ir.TempEBBLocal:
		ip.locals.set(t.Kind, t.Index, v)
		return nil
	default:
		return fmt.Errorf("transfer: temp kind %v is not a writable destination", t.Kind)
	}
}

// resolveGlobalAddr computes the env-map index for a GlobalDirect or
// GlobalIndirect temp, per spec.md §4.5: base_reg_value + offset, checked
// concrete and within the sanity envelope. GlobalIndirect dereferences
// the pointer field at offset1 and re-applies the same rule with offset2.
func (ip *Interpreter) resolveGlobalAddr(t ir.Temp) (uint64, error) {
	base := ip.st.GetReg(t.BaseReg, ir.Width64)
	addr, err := ip.st.EnvAddr(base, int64(t.Offset1))
	if err != nil {
		return 0, err
	}
	if t.Kind == ir.TempGlobalDirect {
		return addr, nil
	}
	ptr := ip.st.GetEnv(addr, ir.Width64)
	if !ptr.IsConcrete() {
		return 0, fmt.Errorf("%w: symbolic pointer field in global_indirect temp", machine.ErrHostMemoryViolation)
	}
	return ip.st.EnvAddr(ptr, int64(t.Offset2))
}

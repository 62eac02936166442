package transfer

import (
	"testing"

	"github.com/qemu-qce/qce/internal/ir"
	"github.com/qemu-qce/qce/internal/machine"
)

type fakeHost struct{ envBase uint64 }

func (h fakeHost) ReadEnv(offset uint64, w ir.Width) uint64 { return 0 }
func (h fakeHost) ReadReg(reg uint16, w ir.Width) uint64    { return h.envBase }

type fakeGuest struct{}

func (fakeGuest) ReadGuest(addr uint64, w ir.Width) uint64 { return 0 }
func (fakeGuest) ReadGuestByte(addr uint64) byte           { return 0 }

func newTestInterpreter(envBase uint64) *Interpreter {
	st := machine.New(nil, fakeHost{envBase: envBase}, fakeGuest{}, envBase)
	return New(nil, st, NewLocals())
}

func constTemp(w ir.Width, v uint64) ir.Temp { return ir.Const(w, v) }

func tbTemp(w ir.Width, idx uint32) ir.Temp {
	return ir.Temp{Kind: ir.TempTBLocal, Width: w, Index: idx}
}

func TestStepMovAndAdd(t *testing.T) {
	ip := newTestInterpreter(0x100000)

	mov := ir.Inst{Op: ir.OpMov, Width: ir.Width64, Dst: tbTemp(ir.Width64, 0), Src1: constTemp(ir.Width64, 5)}
	if _, err := ip.Step(mov); err != nil {
		t.Fatalf("mov: %v", err)
	}

	add := ir.Inst{Op: ir.OpAdd, Width: ir.Width64, Dst: tbTemp(ir.Width64, 1), Src1: tbTemp(ir.Width64, 0), Src2: constTemp(ir.Width64, 3)}
	if _, err := ip.Step(add); err != nil {
		t.Fatalf("add: %v", err)
	}

	got := ip.locals.get(ir.TempTBLocal, 1, ir.Width64)
	if !got.IsConcrete() || got.Value != 8 {
		t.Fatalf("tb_local[1] = %v, want 8", got)
	}
}

func TestStepBrcondConcrete(t *testing.T) {
	ip := newTestInterpreter(0x100000)
	inst := ir.Inst{
		Op: ir.OpBrcond, Width: ir.Width32, Cond: ir.CondEQ,
		Src1: constTemp(ir.Width32, 7), Src2: constTemp(ir.Width32, 7),
		Label: ir.Label{ID: 1, Index: 3},
	}
	out, err := ip.Step(inst)
	if err != nil {
		t.Fatalf("brcond: %v", err)
	}
	if out.Kind != OutcomeBranch {
		t.Fatalf("kind = %v, want OutcomeBranch", out.Kind)
	}
	if !out.Pred.IsConcrete() || !out.Pred.Bool() {
		t.Fatalf("pred = %v, want concrete true", out.Pred)
	}
	if out.Label.ID != 1 {
		t.Fatalf("label id = %d, want 1", out.Label.ID)
	}
}

func TestStepMovcond(t *testing.T) {
	ip := newTestInterpreter(0x100000)
	inst := ir.Inst{
		Op: ir.OpMovcond, Width: ir.Width64, Cond: ir.CondLT,
		Src1: constTemp(ir.Width64, 1), Src2: constTemp(ir.Width64, 2),
		Src3: constTemp(ir.Width64, 0xaa), Src4: constTemp(ir.Width64, 0xbb),
		Dst: tbTemp(ir.Width64, 0),
	}
	if _, err := ip.Step(inst); err != nil {
		t.Fatalf("movcond: %v", err)
	}
	got := ip.locals.get(ir.TempTBLocal, 0, ir.Width64)
	if got.Value != 0xaa {
		t.Fatalf("movcond result = 0x%x, want 0xaa", got.Value)
	}
}

func TestStepAdd2WritesBothHalves(t *testing.T) {
	ip := newTestInterpreter(0x100000)
	inst := ir.Inst{
		Op: ir.OpAdd2, Width: ir.Width32,
		Dst: tbTemp(ir.Width32, 0), Dst2: tbTemp(ir.Width32, 1),
		Src1: constTemp(ir.Width32, 1), Src1Hi: constTemp(ir.Width32, 0),
		Src2: constTemp(ir.Width32, 0x7fffffff), Src2Hi: constTemp(ir.Width32, 0),
	}
	if _, err := ip.Step(inst); err != nil {
		t.Fatalf("add2: %v", err)
	}
	lo := ip.locals.get(ir.TempTBLocal, 0, ir.Width32)
	hi := ip.locals.get(ir.TempTBLocal, 1, ir.Width32)
	if lo.Value != 0x80000000 || hi.Value != 0 {
		t.Fatalf("add2(1,INT32_MAX) low half = 0x%x, high = 0x%x", lo.Value, hi.Value)
	}
}

func TestStepEnvRoundTrip(t *testing.T) {
	ip := newTestInterpreter(0x100000)
	addr := ir.Temp{Kind: ir.TempGlobalDirect, Width: ir.Width64, BaseReg: 0, Offset1: 0x20}

	st := ir.Inst{
		Op: ir.OpStEnv, Width: ir.Width64,
		Src1: addr, Dst: constTemp(ir.Width64, 0x42),
		Mem: ir.MemOpFlags{Size: ir.Size64},
	}
	if _, err := ip.Step(st); err != nil {
		t.Fatalf("st_env: %v", err)
	}

	ld := ir.Inst{
		Op: ir.OpLdEnv, Width: ir.Width64,
		Src1: addr, Dst: tbTemp(ir.Width64, 0),
		Mem: ir.MemOpFlags{Size: ir.Size64},
	}
	if _, err := ip.Step(ld); err != nil {
		t.Fatalf("ld_env: %v", err)
	}
	got := ip.locals.get(ir.TempTBLocal, 0, ir.Width64)
	if got.Value != 0x42 {
		t.Fatalf("ld_env round trip = 0x%x, want 0x42", got.Value)
	}
}

func TestStepInsnStartUpdatesLastPC(t *testing.T) {
	ip := newTestInterpreter(0x100000)
	out, err := ip.Step(ir.Inst{Op: ir.OpInsnStart, GuestPC: 0xdead})
	if err != nil {
		t.Fatalf("insn_start: %v", err)
	}
	if out.GuestPC != 0xdead || ip.LastPC() != 0xdead {
		t.Fatalf("last_pc not updated: out=%x ip=%x", out.GuestPC, ip.LastPC())
	}
}

func TestStepCallUnknownIsFatal(t *testing.T) {
	ip := newTestInterpreter(0x100000)
	_, err := ip.Step(ir.Inst{Op: ir.OpCall, Call: ir.CallIntentUnknown})
	if err == nil {
		t.Fatal("expected error for unknown call")
	}
}

func TestStepCallKnownReportsIntent(t *testing.T) {
	ip := newTestInterpreter(0x100000)
	intent := ir.CallIntent{Name: "helper_alloc", Known: true, Alloc: true}
	out, err := ip.Step(ir.Inst{Op: ir.OpCall, Call: intent})
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if out.Kind != OutcomeCall || out.Call.Name != "helper_alloc" {
		t.Fatalf("out = %+v", out)
	}
}

func TestStepGotoTBAndExitTB(t *testing.T) {
	ip := newTestInterpreter(0x100000)
	out, err := ip.Step(ir.Inst{Op: ir.OpGotoTB, Target: 2})
	if err != nil || out.Kind != OutcomeGotoTB || out.Target != 2 {
		t.Fatalf("goto_tb: out=%+v err=%v", out, err)
	}
	out, err = ip.Step(ir.Inst{Op: ir.OpExitTB})
	if err != nil || out.Kind != OutcomeExitTB {
		t.Fatalf("exit_tb: out=%+v err=%v", out, err)
	}
}

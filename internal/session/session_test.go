package session

import (
	"testing"

	"github.com/qemu-qce/qce/internal/blockcache"
	"github.com/qemu-qce/qce/internal/coverage"
	"github.com/qemu-qce/qce/internal/ir"
)

const (
	testEnvBaseReg uint16 = 0
	testRipOffset  int32  = 0x20
	testArgReg0    uint16 = 1
	testArgReg1    uint16 = 2
)

type fakeHost struct {
	reg0, reg1 uint64
}

func (h fakeHost) ReadEnv(offset uint64, w ir.Width) uint64 { return 0 }
func (h fakeHost) ReadReg(reg uint16, w ir.Width) uint64 {
	switch reg {
	case testEnvBaseReg:
		return 0x100000
	case testArgReg0:
		return h.reg0
	case testArgReg1:
		return h.reg1
	default:
		return 0
	}
}

type fakeGuest struct{ bytes map[uint64]byte }

func (g fakeGuest) ReadGuest(addr uint64, w ir.Width) uint64 { return 0 }
func (g fakeGuest) ReadGuestByte(addr uint64) byte           { return g.bytes[addr] }

func testABI() ABIConfig {
	return ABIConfig{EnvBaseReg: testEnvBaseReg, RipOffset: testRipOffset, ArgReg0: testArgReg0, ArgReg1: testArgReg1}
}

func tempTB(w int, idx uint32) ir.RawTemp { return ir.RawTemp{Kind: ir.RawTempTBLocal, Width: w, Index: idx} }
func tempConst(w int, v uint64) ir.RawTemp {
	return ir.RawTemp{Kind: ir.RawTempConst, Width: w, Value: v}
}
func tempRip() ir.RawTemp {
	return ir.RawTemp{Kind: ir.RawTempGlobalDirect, Width: 64, BaseReg: testEnvBaseReg, Offset1: testRipOffset}
}
func tempArgReg(reg uint16) ir.RawTemp {
	return ir.RawTemp{Kind: ir.RawTempFixed, Width: 64, Reg: reg}
}

func newTestSession() *Session {
	return New(testABI(), blockcache.New(0), coverage.New(), nil)
}

func TestTraceStartRequiresNotStarted(t *testing.T) {
	s := newTestSession()
	host := fakeHost{}
	guest := fakeGuest{bytes: map[uint64]byte{}}
	if err := s.TraceStart(0x2000, 16, host, guest, 0x100000, t.TempDir(), "sess"); err != nil {
		t.Fatalf("trace_start: %v", err)
	}
	if s.Mode() != Kicked {
		t.Fatalf("mode = %v, want kicked", s.Mode())
	}
	if err := s.TraceStart(0x2000, 16, host, guest, 0x100000, t.TempDir(), "sess"); err == nil {
		t.Fatal("expected error re-starting an already-kicked session")
	}
}

func TestKickedBlockWithoutRipWriteStaysKicked(t *testing.T) {
	s := newTestSession()
	host := fakeHost{}
	guest := fakeGuest{bytes: map[uint64]byte{}}
	if err := s.TraceStart(0x2000, 16, host, guest, 0x100000, t.TempDir(), "sess"); err != nil {
		t.Fatalf("trace_start: %v", err)
	}

	raw := []ir.RawInst{
		{Op: ir.RawInsnStrt, GuestPC: 0x1000},
		{Op: ir.RawMov, Width: 64, Operands: []ir.RawTemp{tempConst(64, 1), tempTB(64, 0)}},
		{Op: ir.RawExitTB},
	}
	if err := s.OnIROptimized(ir.BlockID(1), raw); err != nil {
		t.Fatalf("on_ir_optimized: %v", err)
	}
	if _, err := s.OnBlockExecuted(ir.BlockID(1)); err != nil {
		t.Fatalf("on_block_executed: %v", err)
	}
	if s.Mode() != Kicked {
		t.Fatalf("mode = %v, want still kicked", s.Mode())
	}
}

func TestKickedToRunningTransition(t *testing.T) {
	s := newTestSession()
	host := fakeHost{reg0: 0x2000, reg1: 16}
	guest := fakeGuest{bytes: map[uint64]byte{}}
	if err := s.TraceStart(0x2000, 16, host, guest, 0x100000, t.TempDir(), "sess"); err != nil {
		t.Fatalf("trace_start: %v", err)
	}

	raw := []ir.RawInst{
		{Op: ir.RawInsnStrt, GuestPC: 0x1000},
		{Op: ir.RawAdd, Width: 64, Operands: []ir.RawTemp{tempRip(), tempConst(64, 4), tempRip()}},
		{Op: ir.RawExitTB},
	}
	if err := s.OnIROptimized(ir.BlockID(1), raw); err != nil {
		t.Fatalf("on_ir_optimized: %v", err)
	}
	if _, err := s.OnBlockExecuted(ir.BlockID(1)); err != nil {
		t.Fatalf("on_block_executed (kicked->capturing): %v", err)
	}
	if s.Mode() != Capturing {
		t.Fatalf("mode = %v, want capturing", s.Mode())
	}

	if _, err := s.OnBlockExecuted(ir.BlockID(1)); err != nil {
		t.Fatalf("on_block_executed (capturing->running): %v", err)
	}
	if s.Mode() != Running {
		t.Fatalf("mode = %v, want running", s.Mode())
	}
	addr := s.st.GetReg(testArgReg0, ir.Width64)
	if addr.IsConcrete() {
		t.Fatal("expected arg reg 0 to hold the symbolic blob address after confirmation")
	}
}

func TestCapturingMismatchStaysCapturing(t *testing.T) {
	s := newTestSession()
	host := fakeHost{reg0: 0xbad, reg1: 16}
	guest := fakeGuest{bytes: map[uint64]byte{}}
	if err := s.TraceStart(0x2000, 16, host, guest, 0x100000, t.TempDir(), "sess"); err != nil {
		t.Fatalf("trace_start: %v", err)
	}
	s.mode = Capturing

	raw := []ir.RawInst{
		{Op: ir.RawInsnStrt, GuestPC: 0x1000},
		{Op: ir.RawExitTB},
	}
	if err := s.OnIROptimized(ir.BlockID(2), raw); err != nil {
		t.Fatalf("on_ir_optimized: %v", err)
	}
	if _, err := s.OnBlockExecuted(ir.BlockID(2)); err != nil {
		t.Fatalf("on_block_executed: %v", err)
	}
	if s.Mode() != Capturing {
		t.Fatalf("mode = %v, want still capturing on mismatch", s.Mode())
	}
}

func TestSymbolicBranchConcretizesAndAsserts(t *testing.T) {
	s := newTestSession()
	host := fakeHost{reg0: 0x2000, reg1: 16}
	guest := fakeGuest{bytes: map[uint64]byte{0x2000: 0x41}}
	dir := t.TempDir()
	if err := s.TraceStart(0x2000, 16, host, guest, 0x100000, dir, "sess"); err != nil {
		t.Fatalf("trace_start: %v", err)
	}

	kickRaw := []ir.RawInst{
		{Op: ir.RawInsnStrt, GuestPC: 0x1000},
		{Op: ir.RawAdd, Width: 64, Operands: []ir.RawTemp{tempRip(), tempConst(64, 4), tempRip()}},
		{Op: ir.RawExitTB},
	}
	if err := s.OnIROptimized(ir.BlockID(1), kickRaw); err != nil {
		t.Fatalf("on_ir_optimized: %v", err)
	}
	if _, err := s.OnBlockExecuted(ir.BlockID(1)); err != nil {
		t.Fatalf("kicked->capturing: %v", err)
	}
	if _, err := s.OnBlockExecuted(ir.BlockID(1)); err != nil {
		t.Fatalf("capturing->running: %v", err)
	}
	if s.Mode() != Running {
		t.Fatalf("mode = %v, want running", s.Mode())
	}

	branchRaw := []ir.RawInst{
		{Op: ir.RawInsnStrt, GuestPC: 0x2000},
		{Op: ir.RawBrcond, Width: 64, Cond: "eq", Label: 1,
			Operands: []ir.RawTemp{tempArgReg(testArgReg0), tempConst(64, 0x2000)}},
		{Op: ir.RawExitTB},
		{Op: ir.RawSetLabel, Label: 1},
		{Op: ir.RawExitTB},
	}
	if err := s.OnIROptimized(ir.BlockID(2), branchRaw); err != nil {
		t.Fatalf("on_ir_optimized: %v", err)
	}
	res, err := s.OnBlockExecuted(ir.BlockID(2))
	if err != nil {
		t.Fatalf("on_block_executed: %v", err)
	}
	if len(s.vector) != 1 {
		t.Fatalf("coverage vector length = %d, want 1", len(s.vector))
	}
	_ = res
}

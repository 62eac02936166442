package ir

import (
	"errors"
	"testing"
)

func tempTB(w int, idx uint32) RawTemp {
	return RawTemp{Kind: RawTempTBLocal, Width: w, Index: idx}
}

func tempConst(w int, v uint64) RawTemp {
	return RawTemp{Kind: RawTempConst, Width: w, Value: v}
}

func TestParseSimpleBlock(t *testing.T) {
	raw := []RawInst{
		{Op: RawMov, Width: 64, Operands: []RawTemp{tempConst(64, 7), tempTB(64, 0)}},
		{Op: RawAdd, Width: 64, Operands: []RawTemp{tempTB(64, 0), tempConst(64, 1), tempTB(64, 1)}},
		{Op: RawExitTB},
	}
	b, err := Parse(BlockID(1), raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if b.NumInsts() != 3 {
		t.Fatalf("expected 3 insts, got %d", b.NumInsts())
	}
	if b.Insts[0].Op != OpMov || b.Insts[0].Dst.Index != 0 {
		t.Fatalf("bad mov lowering: %+v", b.Insts[0])
	}
	if b.Insts[1].Op != OpAdd || b.Insts[1].Dst.Index != 1 {
		t.Fatalf("bad add lowering: %+v", b.Insts[1])
	}
	if b.Insts[2].Op != OpExitTB {
		t.Fatalf("expected exit_tb, got %v", b.Insts[2].Op)
	}
}

func TestParseBrcondResolvesLabel(t *testing.T) {
	raw := []RawInst{
		{Op: RawBrcond, Width: 64, Cond: "eq", Label: 5, Operands: []RawTemp{tempTB(64, 0), tempConst(64, 0)}},
		{Op: RawSetLabel, Label: 5},
		{Op: RawExitTB},
	}
	b, err := Parse(BlockID(2), raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if b.Insts[0].Label.Index != 1 {
		t.Fatalf("expected label to resolve to instruction 1, got %d", b.Insts[0].Label.Index)
	}
	idx, ok := b.LabelIndex(5)
	if !ok || idx != 1 {
		t.Fatalf("LabelIndex(5) = %d, %v", idx, ok)
	}
}

func TestParseUnresolvedLabelIsFatal(t *testing.T) {
	raw := []RawInst{
		{Op: RawBrcond, Width: 64, Cond: "eq", Label: 9, Operands: []RawTemp{tempTB(64, 0), tempConst(64, 0)}},
		{Op: RawExitTB},
	}
	_, err := Parse(BlockID(3), raw)
	if !errors.Is(err, ErrUnresolvedLabel) {
		t.Fatalf("expected ErrUnresolvedLabel, got %v", err)
	}
}

func TestParseDuplicateLabelIsFatal(t *testing.T) {
	raw := []RawInst{
		{Op: RawSetLabel, Label: 1},
		{Op: RawSetLabel, Label: 1},
		{Op: RawExitTB},
	}
	_, err := Parse(BlockID(4), raw)
	if !errors.Is(err, ErrDuplicateLabel) {
		t.Fatalf("expected ErrDuplicateLabel, got %v", err)
	}
}

func TestParseRejectsVectorOperand(t *testing.T) {
	raw := []RawInst{
		{Op: RawMov, Width: 64, Operands: []RawTemp{{Kind: RawTempVector}, tempTB(64, 0)}},
	}
	_, err := Parse(BlockID(5), raw)
	if !errors.Is(err, ErrUnsupportedVector) {
		t.Fatalf("expected ErrUnsupportedVector, got %v", err)
	}
}

func TestParseRejectsUnsupportedOpcodes(t *testing.T) {
	for _, op := range []RawOpcode{RawMulsh, RawMuluh, RawCmp2, RawQemuLd32A, RawQemuLd128, RawQemuSt128, RawPluginCB} {
		raw := []RawInst{{Op: op, Width: 64}}
		_, err := Parse(BlockID(6), raw)
		if !errors.Is(err, ErrUnsupportedOpcode) {
			t.Fatalf("op %s: expected ErrUnsupportedOpcode, got %v", op, err)
		}
	}
}

func TestParseAdd2OperandConvention(t *testing.T) {
	raw := []RawInst{
		{Op: RawAdd2, Width: 64, Operands: []RawTemp{
			tempTB(64, 0), tempTB(64, 1), // dstLo, dstHi
			tempConst(64, 1), tempConst(64, 0), // aLo, aHi
			tempConst(64, 2), tempConst(64, 0), // bLo, bHi
		}},
	}
	b, err := Parse(BlockID(7), raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	inst := b.Insts[0]
	if inst.Op != OpAdd2 || inst.Dst.Index != 0 || inst.Dst2.Index != 1 {
		t.Fatalf("bad add2 lowering: %+v", inst)
	}
	if inst.Src1.Value != 1 || inst.Src2.Value != 2 {
		t.Fatalf("bad add2 operand values: %+v", inst)
	}
}

func TestParseMemOp(t *testing.T) {
	raw := []RawInst{
		{Op: RawQemuLd, Width: 64, MemSize: 32, MemSign: true, MemAlign: "natural",
			Operands: []RawTemp{tempTB(64, 0), tempTB(64, 1)}},
	}
	b, err := Parse(BlockID(8), raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	inst := b.Insts[0]
	if inst.Op != OpLd || inst.Mem.Size != Size32 || !inst.Mem.Signed {
		t.Fatalf("bad qemu_ld lowering: %+v", inst)
	}
	if inst.Mem.AlignBytes() != 4 {
		t.Fatalf("expected natural alignment of 4 bytes, got %d", inst.Mem.AlignBytes())
	}
}

func TestParseCallIntentUnknownByDefault(t *testing.T) {
	raw := []RawInst{{Op: RawCall, Helper: "some_unregistered_helper"}}
	b, err := Parse(BlockID(9), raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if b.Insts[0].Call.Known {
		t.Fatalf("expected unknown call intent, got %+v", b.Insts[0].Call)
	}
}

func TestRegisterCallIntent(t *testing.T) {
	RegisterCallIntent("my_custom_helper", CallIntent{Name: "my_custom_helper", Known: true, Alloc: true})
	raw := []RawInst{{Op: RawCall, Helper: "my_custom_helper"}}
	b, err := Parse(BlockID(10), raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !b.Insts[0].Call.Known || !b.Insts[0].Call.Alloc {
		t.Fatalf("expected registered call intent, got %+v", b.Insts[0].Call)
	}
}

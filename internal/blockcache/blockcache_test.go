package blockcache

import (
	"errors"
	"testing"

	"github.com/qemu-qce/qce/internal/ir"
)

func exitBlock() []ir.RawInst {
	return []ir.RawInst{{Op: ir.RawOpcode("exit_tb")}}
}

func TestGetOrParseCachesOnFirstEncounter(t *testing.T) {
	c := New(8)
	b1, err := c.GetOrParse(ir.BlockID(1), exitBlock())
	if err != nil {
		t.Fatalf("GetOrParse: %v", err)
	}
	b2, err := c.GetOrParse(ir.BlockID(1), nil) // nil stream: must not be reparsed
	if err != nil {
		t.Fatalf("GetOrParse (cached): %v", err)
	}
	if b1 != b2 {
		t.Fatalf("expected identical cached pointer, got distinct blocks")
	}
	if c.Len() != 1 {
		t.Fatalf("expected 1 cached entry, got %d", c.Len())
	}
}

func TestGetOrParseFailsFatallyAtCapacity(t *testing.T) {
	c := New(2)
	if _, err := c.GetOrParse(ir.BlockID(1), exitBlock()); err != nil {
		t.Fatalf("GetOrParse(1): %v", err)
	}
	if _, err := c.GetOrParse(ir.BlockID(2), exitBlock()); err != nil {
		t.Fatalf("GetOrParse(2): %v", err)
	}
	_, err := c.GetOrParse(ir.BlockID(3), exitBlock())
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("expected ErrCapacityExceeded, got %v", err)
	}
}

func TestParseErrorIsNotCached(t *testing.T) {
	c := New(8)
	bad := []ir.RawInst{{Op: ir.RawOpcode("mulsh")}}
	if _, err := c.GetOrParse(ir.BlockID(1), bad); err == nil {
		t.Fatalf("expected parse error")
	}
	if c.Len() != 0 {
		t.Fatalf("expected nothing cached after parse error, got %d", c.Len())
	}
	if _, err := c.GetOrParse(ir.BlockID(1), exitBlock()); err != nil {
		t.Fatalf("retry after fixing stream: %v", err)
	}
}

func TestDestroyAll(t *testing.T) {
	c := New(8)
	c.GetOrParse(ir.BlockID(1), exitBlock())
	c.GetOrParse(ir.BlockID(2), exitBlock())
	c.DestroyAll()
	if c.Len() != 0 {
		t.Fatalf("expected 0 entries after DestroyAll, got %d", c.Len())
	}
}

package machine

import (
	"fmt"

	"github.com/qemu-qce/qce/internal/expr"
	"github.com/qemu-qce/qce/internal/ir"
	"github.com/qemu-qce/qce/internal/solver"
)

// BlobSizeMax bounds the concrete blob length the engine will ever
// generate or accept (spec.md §9: "size ... a concrete bound
// BLOB_SIZE_MAX").
const BlobSizeMax = 4096

// LoadGuest implements the guest-side load half of spec.md §4.5. destWidth
// is the destination temp's width; flags.Size is the access width, which
// may be narrower. A concrete address goes through the mem-map exactly
// like the env-map (whole-width get plus a byte-partial extract); a
// symbolic address reads the blob array directly at the symbolic offset,
// after proving the three guest-memory-safety properties.
func (s *State) LoadGuest(addr expr.Expr, destWidth ir.Width, flags ir.MemOpFlags) (expr.Expr, error) {
	if addr.IsConcrete() {
		align := flags.AlignBytes()
		if addr.Value%align != 0 {
			return expr.Expr{}, fmt.Errorf("%w: unaligned concrete guest load at 0x%x (align %d)", ErrGuestMemoryViolation, addr.Value, align)
		}
		whole := s.getMem(addr.Value, destWidth)
		if uint64(flags.Size) == uint64(destWidth) {
			return whole, nil
		}
		return expr.LoadPartial(s.f, whole, int(flags.Size), flags.Signed), nil
	}
	return s.loadSymbolicGuest(addr, destWidth, flags)
}

// StoreGuest implements the guest-side store half of spec.md §4.5. A
// symbolic guest address is unsupported and always fatal (spec.md §9).
func (s *State) StoreGuest(addr expr.Expr, value expr.Expr, flags ir.MemOpFlags) error {
	if !addr.IsConcrete() {
		return fmt.Errorf("%w", ErrSymbolicGuestStore)
	}
	align := flags.AlignBytes()
	if addr.Value%align != 0 {
		return fmt.Errorf("%w: unaligned concrete guest store at 0x%x (align %d)", ErrGuestMemoryViolation, addr.Value, align)
	}
	if uint64(flags.Size) == uint64(value.Width) {
		s.setMem(addr.Value, value)
		return nil
	}
	whole := s.getMem(addr.Value, value.Width)
	result, err := expr.StorePartial(s.f, whole, value, int(flags.Size))
	if err != nil {
		return err
	}
	s.setMem(addr.Value, result)
	return nil
}

func (s *State) getMem(addr uint64, w ir.Width) expr.Expr {
	if e, ok := s.mem[addr]; ok {
		return e
	}
	return expr.Const(w, s.guest.ReadGuest(addr, w))
}

func (s *State) setMem(addr uint64, v expr.Expr) {
	s.mem[addr] = v
}

// loadSymbolicGuest implements spec.md §4.5's symbolic-address path:
// prove offset = addr - blob_addr is within [0, BLOB_SIZE_MAX) and
// properly aligned, then assemble the requested width little-endian out
// of the blob array.
func (s *State) loadSymbolicGuest(addr expr.Expr, destWidth ir.Width, flags ir.MemOpFlags) (expr.Expr, error) {
	if s.blob == nil {
		return expr.Expr{}, fmt.Errorf("%w: symbolic guest access before a session installed the blob", ErrGuestMemoryViolation)
	}

	blobAddrTerm := s.f.ConstTerm(ir.Width64, s.blobAddr)
	offsetTerm := s.f.Sub(addr.Term, blobAddrTerm)

	nonNeg := s.f.Sge(offsetTerm, s.f.ConstTerm(ir.Width64, 0))
	if s.f.Prove(nonNeg) != solver.Proved {
		return expr.Expr{}, fmt.Errorf("%w: symbolic guest offset not provably >= 0", ErrGuestMemoryViolation)
	}
	inBounds := s.f.Ult(offsetTerm, s.f.ConstTerm(ir.Width64, s.blobSizeMax))
	if s.f.Prove(inBounds) != solver.Proved {
		return expr.Expr{}, fmt.Errorf("%w: symbolic guest offset not provably within bounds", ErrGuestMemoryViolation)
	}
	align := flags.AlignBytes()
	alignedTerm := s.f.Eq(s.f.Rem(offsetTerm, s.f.ConstTerm(ir.Width64, align), false), s.f.ConstTerm(ir.Width64, 0))
	if s.f.Prove(alignedTerm) != solver.Proved {
		return expr.Expr{}, fmt.Errorf("%w: symbolic guest offset not provably aligned to %d", ErrGuestMemoryViolation, align)
	}

	nbytes := int(flags.Size / 8)
	assembled := s.f.ZeroExtend(s.f.Select(s.blob, addr.Term), int(destWidth))
	for i := 1; i < nbytes; i++ {
		byteAddr := s.f.Add(addr.Term, s.f.ConstTerm(ir.Width64, uint64(i)))
		b := s.f.ZeroExtend(s.f.Select(s.blob, byteAddr), int(destWidth))
		shifted := s.f.Shl(b, s.f.ConstTerm(destWidth, uint64(8*i)))
		assembled = s.f.Or(assembled, shifted)
	}

	if int(flags.Size) == int(destWidth) {
		return expr.Sym(destWidth, assembled), nil
	}
	return expr.LoadPartial(s.f, expr.Sym(destWidth, assembled), int(flags.Size), flags.Signed), nil
}

package expr

import "github.com/qemu-qce/qce/internal/solver"

// LoadPartial implements the ld8u/ld8s/ld16u/ld16s/ld32u/ld32s family of
// spec.md §4.2: extract the low `bits` of whole and zero- or
// sign-extend back up to whole's own width.
func LoadPartial(f solver.Facade, whole Expr, bits int, signed bool) Expr {
	return extend(f, whole.Width, whole, bits, signed)
}

// StorePartial implements the st8/st16/st32 family of spec.md §4.2:
// replace the low `bits` of whole with the low `bits` of value,
// preserving whole's higher bits.
func StorePartial(f solver.Facade, whole, value Expr, bits int) (Expr, error) {
	mask := Const(whole.Width, uint64(1)<<uint(bits)-1)
	highPart, err := AndC(f, whole, mask)
	if err != nil {
		return Expr{}, err
	}
	lowPart, err := And(f, value, mask)
	if err != nil {
		return Expr{}, err
	}
	return Or(f, highPart, lowPart)
}

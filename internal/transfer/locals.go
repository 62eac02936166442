package transfer

import (
	"github.com/qemu-qce/qce/internal/expr"
	"github.com/qemu-qce/qce/internal/ir"
)

// Locals holds the TBLocal/EBBLocal temporaries of spec.md §3. Unlike the
// env-map/mem-map, these never fall back to a concrete emulator snapshot:
// a TCG temp is scratch storage private to the interpreter, not a view
// onto the emulator's own state, so an unread slot is simply the zero
// Expr until first written.
//
// This interpreter walks one translation block at a time with no
// representation of chained extended-basic-blocks across goto_tb edges,
// so TB-local and EBB-local storage share the same per-entry lifetime
// here; both are cleared by Reset at block entry (see DESIGN.md).
type Locals struct {
	tb  map[uint32]expr.Expr
	ebb map[uint32]expr.Expr
}

// NewLocals builds an empty Locals, ready for one block's execution.
func NewLocals() *Locals {
	return &Locals{tb: make(map[uint32]expr.Expr), ebb: make(map[uint32]expr.Expr)}
}

// Reset clears both local stores, called at the start of each block.
func (l *Locals) Reset() {
	l.tb = make(map[uint32]expr.Expr)
	l.ebb = make(map[uint32]expr.Expr)
}

func (l *Locals) get(kind ir.TempKind, index uint32, w ir.Width) expr.Expr {
	m := l.tb
	if kind == ir.TempEBBLocal {
		m = l.ebb
	}
	if e, ok := m[index]; ok {
		return e
	}
	return expr.Const(w, 0)
}

func (l *Locals) set(kind ir.TempKind, index uint32, v expr.Expr) {
	if kind == ir.TempEBBLocal {
		l.ebb[index] = v
		return
	}
	l.tb[index] = v
}

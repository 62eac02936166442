package expr

import "errors"

// ErrWidthMismatch is the type-mismatch fatal condition of spec.md §7:
// the expression algebra received operands of differing declared width.
var ErrWidthMismatch = errors.New("expr: operand width mismatch")

// ErrDivideByZero surfaces a concrete division/remainder by zero. The
// source specification does not separately name this condition; it is
// folded into the same fatal category as a type mismatch since both are
// programmer errors in the instruction stream rather than something a
// branch-flip could route around.
var ErrDivideByZero = errors.New("expr: division by zero")

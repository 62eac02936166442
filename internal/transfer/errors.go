package transfer

import "errors"

var (
	// ErrUnknownCall is spec.md §4.6's "unknown calls are fatal when
	// reached during tracing".
	ErrUnknownCall = errors.New("transfer: unmatched call reached during tracing")
	// ErrUnhandledOp guards against an ir.Op the interpreter has no case
	// for, which would be a programmer error rather than a user one.
	ErrUnhandledOp = errors.New("transfer: no transfer function for opcode")
)

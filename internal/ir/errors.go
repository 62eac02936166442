package ir

import "errors"

// Parse errors are fatal per spec.md §7: unsupported opcode, malformed
// temporary, or a label with pending relocations when the block is frozen.
var (
	ErrUnsupportedOpcode  = errors.New("ir: unsupported opcode")
	ErrUnsupportedVector  = errors.New("ir: vector operand not supported")
	ErrUnsupportedWide    = errors.New("ir: 128-bit operand not supported outside paired halves")
	ErrMalformedTemp      = errors.New("ir: malformed temporary record")
	ErrUnresolvedLabel    = errors.New("ir: label has pending relocations at block freeze")
	ErrDuplicateLabel     = errors.New("ir: label defined more than once")
	ErrUnknownLabel       = errors.New("ir: branch references an undefined label")
	ErrWidthMismatch      = errors.New("ir: operand width mismatch")
)

// Package machine implements the concolic machine state of spec.md §4.5:
// a host CPU-state region (env-map) and a guest memory region (mem-map),
// both keyed maps of dual-mode cells with byte-partial access helpers
// and a concrete fallback for cells the interpreter has never touched.
package machine

import (
	"fmt"

	"github.com/qemu-qce/qce/internal/expr"
	"github.com/qemu-qce/qce/internal/ir"
	"github.com/qemu-qce/qce/internal/solver"
)

// EnvEnvelope is the sanity envelope around the CPU-state region
// (spec.md §4.5: "within [env_base − 16 KiB, env_base + 16 KiB)").
const EnvEnvelope = 16 * 1024

// ConcreteHost reads the emulator's underlying concrete CPU-state bytes.
// The engine never owns this memory; it only ever falls back to it for
// offsets the session hasn't touched (spec.md §4.5). ReadReg is the same
// fallback for a Fixed temp's hard-wired register slot (spec.md §3);
// fixed registers get their own namespace rather than sharing env-map
// offsets, since a register number and a CPU-state byte offset are not
// comparable addresses.
type ConcreteHost interface {
	ReadEnv(offset uint64, w ir.Width) uint64
	ReadReg(reg uint16, w ir.Width) uint64
}

// ConcreteGuest reads the emulator's underlying concrete guest-memory
// bytes, used as the fallback for untouched mem-map cells.
type ConcreteGuest interface {
	ReadGuest(addr uint64, w ir.Width) uint64
	ReadGuestByte(addr uint64) byte
}

// State is the concolic store of spec.md §3/§4.5.
type State struct {
	f solver.Facade

	env  map[uint64]expr.Expr
	mem  map[uint64]expr.Expr
	regs map[uint16]expr.Expr

	host  ConcreteHost
	guest ConcreteGuest

	envBase uint64

	blobAddr    uint64
	blobSize    uint64
	blobSizeMax uint64
	blob        solver.Term // array<bv64,bv8>, only set once a session is running
}

// New constructs an empty State. envBase is the host-address base of the
// CPU-state region, used to center the §4.5 sanity envelope.
func New(f solver.Facade, host ConcreteHost, guest ConcreteGuest, envBase uint64) *State {
	return &State{
		f:       f,
		env:     make(map[uint64]expr.Expr),
		mem:     make(map[uint64]expr.Expr),
		regs:    make(map[uint16]expr.Expr),
		host:    host,
		guest:   guest,
		envBase: envBase,
	}
}

// InstallBlob records the symbolic blob's address, concrete size bound,
// and backing solver array, entering the "running" state's machine-state
// half of spec.md §4.8 ("installs addr, size, and assigns symbolic bytes
// for blob").
func (s *State) InstallBlob(addr, sizeMax uint64, blobArray solver.Term) {
	s.blobAddr = addr
	s.blobSize = sizeMax
	s.blobSizeMax = sizeMax
	s.blob = blobArray
}

// BlobAddr, BlobSize, BlobSizeMax report the installed blob bounds.
// InstallBlob sets both BlobSize and BlobSizeMax to its sizeMax argument;
// the size observed at trace_start is not recorded here (the session
// keeps it). BlobSizeMax bounds the symbolic guest-load proof.
func (s *State) BlobAddr() uint64    { return s.blobAddr }
func (s *State) BlobSize() uint64    { return s.blobSize }
func (s *State) BlobSizeMax() uint64 { return s.blobSizeMax }

func envEnvelopeCheck(envBase, addr uint64) error {
	lo := envBase - EnvEnvelope
	hi := envBase + EnvEnvelope
	if addr < lo || addr >= hi {
		return fmt.Errorf("%w: host addr 0x%x outside [0x%x, 0x%x)", ErrHostMemoryViolation, addr, lo, hi)
	}
	return nil
}

// EnvAddr computes the env-map index from (baseRegValue + offset),
// requiring the result to be concrete and inside the sanity envelope
// (spec.md §4.5). A symbolic host address is always a fatal error.
func (s *State) EnvAddr(baseRegValue expr.Expr, offset int64) (uint64, error) {
	if !baseRegValue.IsConcrete() {
		return 0, fmt.Errorf("%w: symbolic host address", ErrHostMemoryViolation)
	}
	addr := baseRegValue.Value + uint64(offset)
	if err := envEnvelopeCheck(s.envBase, addr); err != nil {
		return 0, err
	}
	return addr, nil
}

// GetEnv reads the whole-word cell at offset, falling back to the
// concrete CPU-state snapshot if untouched.
func (s *State) GetEnv(offset uint64, w ir.Width) expr.Expr {
	if e, ok := s.env[offset]; ok {
		return e
	}
	return expr.Const(w, s.host.ReadEnv(offset, w))
}

// SetEnv always records an Expr, per spec.md §4.5 ("Writes always record
// an Expr").
func (s *State) SetEnv(offset uint64, v expr.Expr) {
	s.env[offset] = v
}

// GetReg reads a Fixed temp's register slot, falling back to the
// emulator's concrete value if untouched.
func (s *State) GetReg(reg uint16, w ir.Width) expr.Expr {
	if e, ok := s.regs[reg]; ok {
		return e
	}
	return expr.Const(w, s.host.ReadReg(reg, w))
}

// SetReg always records an Expr for the register slot.
func (s *State) SetReg(reg uint16, v expr.Expr) {
	s.regs[reg] = v
}

// LoadEnvPartial implements ld8s_i64 through the 32-bit partial loads on
// top of GetEnv via the expression-algebra partial operations.
func (s *State) LoadEnvPartial(offset uint64, whole ir.Width, bits int, signed bool) expr.Expr {
	return expr.LoadPartial(s.f, s.GetEnv(offset, whole), bits, signed)
}

// StoreEnvPartial implements st8_i64 through st32_i64 on top of
// GetEnv/SetEnv.
func (s *State) StoreEnvPartial(offset uint64, whole ir.Width, value expr.Expr, bits int) error {
	result, err := expr.StorePartial(s.f, s.GetEnv(offset, whole), value, bits)
	if err != nil {
		return err
	}
	s.SetEnv(offset, result)
	return nil
}

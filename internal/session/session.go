// Package session wires the block cache, solver facade, machine state
// and transfer interpreter into the tracing lifecycle of spec.md §4.8:
// the not-started/kicked/capturing/running state machine, and the
// branch handler that drives coverage-guided solving.
//
// The kicked->capturing and capturing->running triggers are ABI
// specific (spec.md §6 treats CPU-state offsets as opaque identifiers
// supplied by the emulator binding), so they are parameterized through
// ABIConfig rather than hardcoded to a particular guest register
// layout.
package session

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/qemu-qce/qce/internal/blockcache"
	"github.com/qemu-qce/qce/internal/coverage"
	"github.com/qemu-qce/qce/internal/expr"
	"github.com/qemu-qce/qce/internal/ir"
	"github.com/qemu-qce/qce/internal/machine"
	"github.com/qemu-qce/qce/internal/seed"
	"github.com/qemu-qce/qce/internal/solver"
	"github.com/qemu-qce/qce/internal/transfer"
)

// ABIConfig names the harness-specific CPU-state locations the
// kicked->capturing and capturing->running transitions key off of
// (spec.md §6). EnvBaseReg/RipOffset identify the "rip" global as a
// TempGlobalDirect address (env_base_reg :: rip_offset); ArgReg0/ArgReg1
// name the two TempFixed argument registers trace_start's addr/size are
// expected to arrive in.
type ABIConfig struct {
	EnvBaseReg uint16
	RipOffset  int32
	ArgReg0    uint16
	ArgReg1    uint16
}

// BlockResult reports how a traced block's execution ended, mirroring
// transfer.OutcomeKind for the subset that ends a block.
type BlockResult struct {
	Kind   transfer.OutcomeKind
	Target uint32
	Addr   uint64
}

// Session is one tracing context: exactly one blob, one solver context,
// one coverage accumulator and one seed writer, all torn down together
// on TraceStop (spec.md §5).
type Session struct {
	abi ABIConfig
	log logrus.FieldLogger

	cache *blockcache.Cache
	f     solver.Facade
	st    *machine.State
	cov   *coverage.DB
	seeds *seed.Writer

	locals *transfer.Locals
	interp *transfer.Interpreter
	guest  machine.ConcreteGuest

	mode Mode

	blobAddr uint64
	blobSize uint64

	vector coverage.Trace
}

// New builds a Session bound to the given block cache and coverage
// database; both are expected to outlive any one Session (spec.md §4.4,
// §4.8: the cache survives a reload, only the solver/blob/coverage
// vector are per-session).
func New(abi ABIConfig, cache *blockcache.Cache, cov *coverage.DB, log logrus.FieldLogger) *Session {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Session{abi: abi, log: log, cache: cache, cov: cov, mode: NotStarted}
}

// Mode reports the session's current tracing state.
func (s *Session) Mode() Mode { return s.mode }

// TraceStart begins a new trace (spec.md §4.8's not-started->kicked
// transition). host/guest back the machine state's concrete fallback;
// envBase centers the CPU-state sanity envelope; outputDir/sessionID
// locate this session's seed directory.
func (s *Session) TraceStart(addr, sizeMax uint64, host machine.ConcreteHost, guest machine.ConcreteGuest, envBase uint64, outputDir, sessionID string) error {
	if s.mode != NotStarted {
		return fmt.Errorf("%w: trace_start in mode %s", ErrWrongMode, s.mode)
	}
	w, err := seed.New(outputDir, sessionID)
	if err != nil {
		return err
	}
	s.f = solver.NewZ3()
	s.st = machine.New(s.f, host, guest, envBase)
	s.locals = transfer.NewLocals()
	s.interp = transfer.New(s.f, s.st, s.locals)
	s.guest = guest
	s.seeds = w
	s.blobAddr = addr
	s.blobSize = sizeMax
	s.vector = nil
	s.mode = Kicked
	s.log.WithFields(logrus.Fields{"addr": addr, "size": sizeMax}).Info("session: trace_start")
	return nil
}

// TraceStop tears down the current trace's solver context and resets to
// not-started (spec.md §4.8's running->not-started transition, spec.md
// §5's "solver context released on session teardown, even on error").
// The block cache is untouched: it is owned at engine scope, not
// session scope.
func (s *Session) TraceStop() error {
	if s.mode == NotStarted {
		return fmt.Errorf("%w: trace_stop with no active trace", ErrWrongMode)
	}
	if s.f != nil {
		s.f.Close()
	}
	s.f = nil
	s.st = nil
	s.interp = nil
	s.locals = nil
	s.guest = nil
	s.blobAddr = 0
	s.blobSize = 0
	s.vector = nil
	s.mode = NotStarted
	s.log.Info("session: trace_stop")
	return nil
}

// OnIROptimized parses and caches a newly-translated block (spec.md
// §4.4, §6: the emulator calls this once per block, handing over its
// raw IR stream).
func (s *Session) OnIROptimized(id ir.BlockID, rawStream []ir.RawInst) error {
	_, err := s.cache.GetOrParse(id, rawStream)
	return err
}

// OnBlockExecuted runs one already-translated block through the
// interpreter, driving the kicked->capturing->running transitions along
// the way (spec.md §4.8). It is a no-op, returning a zero BlockResult,
// whenever the session is not-started: the emulator calls this for
// every block regardless of tracing state.
func (s *Session) OnBlockExecuted(id ir.BlockID) (BlockResult, error) {
	if s.mode == NotStarted {
		return BlockResult{}, nil
	}
	b, ok := s.cache.Lookup(id)
	if !ok {
		return BlockResult{}, fmt.Errorf("session: block %d executed before it was cached", id)
	}

	if s.mode == Kicked {
		if s.detectRipWrite(b) {
			s.mode = Capturing
			s.log.WithField("block", id).Info("session: kicked -> capturing")
		}
		return BlockResult{}, nil
	}

	if s.mode == Capturing {
		gotAddr := s.st.GetReg(s.abi.ArgReg0, ir.Width64)
		gotSize := s.st.GetReg(s.abi.ArgReg1, ir.Width64)
		if !gotAddr.IsConcrete() || !gotSize.IsConcrete() ||
			gotAddr.Value != s.blobAddr || gotSize.Value != s.blobSize {
			s.log.WithFields(logrus.Fields{
				"want_addr": s.blobAddr, "want_size": s.blobSize,
			}).Warn("session: capturing confirmation mismatch, staying in capturing")
			return BlockResult{}, nil
		}
		s.enterRunning()
	}

	return s.runBlock(b)
}

// detectRipWrite scans a block's instructions backward from the end,
// stopping at the first insn_start, looking for an add whose destination
// is the ABI's rip global (spec.md's original trigger: "end of block
// assigns the rip global").
func (s *Session) detectRipWrite(b *ir.Block) bool {
	for i := len(b.Insts) - 1; i >= 0; i-- {
		inst := b.Insts[i]
		if inst.Op == ir.OpInsnStart {
			break
		}
		if inst.Op == ir.OpAdd && s.isRipTemp(inst.Dst) {
			return true
		}
	}
	return false
}

func (s *Session) isRipTemp(t ir.Temp) bool {
	return t.Kind == ir.TempGlobalDirect && t.BaseReg == s.abi.EnvBaseReg && t.Offset1 == s.abi.RipOffset
}

// enterRunning installs the symbolic blob and substitutes its address
// and size into the two confirmed argument registers, per spec.md §4.8:
// "installs addr, size, and assigns symbolic bytes for blob".
func (s *Session) enterRunning() {
	blobArray := s.f.ArrayVar("blob")
	s.st.InstallBlob(s.blobAddr, machine.BlobSizeMax, blobArray)

	sizeTerm := s.f.Var(ir.Width64, "size")
	// size is bounded to [0, BlobSizeMax] as two Assert calls rather than
	// a dedicated bounds primitive, keeping the Facade's capability
	// contract limited to the operations spec.md §4.1 enumerates.
	zero := s.f.ConstTerm(ir.Width64, 0)
	max := s.f.ConstTerm(ir.Width64, s.st.BlobSizeMax())
	s.f.Assert(s.f.Sge(sizeTerm, zero))
	s.f.Assert(s.f.Ule(sizeTerm, max))

	s.st.SetReg(s.abi.ArgReg0, expr.Sym(ir.Width64, s.f.Var(ir.Width64, "addr")))
	s.st.SetReg(s.abi.ArgReg1, expr.Sym(ir.Width64, sizeTerm))
	s.mode = Running
	s.log.Info("session: capturing -> running")
}

// runBlock interprets b to completion, resolving every branch it meets
// along the way via handleBranch.
func (s *Session) runBlock(b *ir.Block) (BlockResult, error) {
	s.locals.Reset()
	idx := 0
	for idx < len(b.Insts) {
		inst := b.Insts[idx]
		out, err := s.interp.Step(inst)
		if err != nil {
			return BlockResult{}, err
		}
		switch out.Kind {
		case transfer.OutcomeNext:
			idx++
		case transfer.OutcomeCall:
			// Intent is identified (spec.md §4.3); no harness-specific
			// state mutation is modeled, so execution simply continues.
			idx++
		case transfer.OutcomeBranch:
			taken, err := s.handleBranch(out)
			if err != nil {
				return BlockResult{}, err
			}
			if taken {
				next, ok := b.LabelIndex(out.Label.ID)
				if !ok {
					return BlockResult{}, fmt.Errorf("session: brcond target label %d not defined in block", out.Label.ID)
				}
				idx = next
			} else {
				idx++
			}
		case transfer.OutcomeGotoTB:
			return BlockResult{Kind: out.Kind, Target: out.Target}, nil
		case transfer.OutcomeExitTB:
			return BlockResult{Kind: out.Kind}, nil
		case transfer.OutcomeGotoPtr:
			return BlockResult{Kind: out.Kind, Addr: out.Addr}, nil
		default:
			return BlockResult{}, fmt.Errorf("session: unhandled outcome kind %v", out.Kind)
		}
	}
	return BlockResult{Kind: transfer.OutcomeExitTB}, nil
}

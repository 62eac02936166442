package session

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/qemu-qce/qce/internal/coverage"
	"github.com/qemu-qce/qce/internal/transfer"
)

// evalBitShift marks the branch direction in a trace word: the word is
// the guest PC with bit 48 replaced by which way the branch went.
// This keeps one word per branch site while still distinguishing the
// two edges out of it for coverage purposes.
const evalBitShift = 48

func traceWord(guestPC uint64, taken bool) uint64 {
	w := guestPC &^ (uint64(1) << evalBitShift)
	if taken {
		w |= uint64(1) << evalBitShift
	}
	return w
}

// handleBranch implements spec.md §4.8's five-step branch rule:
// concretize the predicate against the session's concrete blob model,
// record the resulting path in the coverage database, decide whether
// the untaken side is worth solving for, solve and persist a seed if
// so, then assert the taken direction as a permanent path constraint.
func (s *Session) handleBranch(out transfer.Outcome) (taken bool, err error) {
	if out.Pred.IsConcrete() {
		taken = out.Pred.Bool()
	} else {
		taken = s.f.ConcretizeBool(s.blobAddr, s.blobSize, s.currentBlobBytes(), out.Pred.Term)
	}

	s.vector = append(s.vector, traceWord(out.GuestPC, taken))
	hash := coverage.Hash(s.vector)
	s.cov.Record(hash, s.vector)

	if !out.Pred.IsConcrete() {
		if err := s.maybeSolveFlip(out, taken); err != nil {
			return taken, err
		}
		if taken {
			s.f.Assert(out.Pred.Term)
		} else {
			s.f.Assert(s.f.Lnot(out.Pred.Term))
		}
	}
	return taken, nil
}

// maybeSolveFlip checks the coverage database for the branch's untaken
// side and, if it looks new, asks the solver for a blob that takes it
// and persists the result as a seed (spec.md §4.8 steps 3-4, §6).
func (s *Session) maybeSolveFlip(out transfer.Outcome, taken bool) error {
	flipVec := make(coverage.Trace, len(s.vector))
	copy(flipVec, s.vector)
	flipVec[len(flipVec)-1] = traceWord(out.GuestPC, !taken)
	flipHash := coverage.Hash(flipVec)

	if !s.cov.ShouldSolve(flipHash, flipVec) {
		return nil
	}

	flipPred := out.Pred.Term
	if taken {
		flipPred = s.f.Lnot(flipPred)
	}
	buf := make([]byte, s.blobSize)
	n, err := s.f.SolveFor(flipPred, buf)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSolverFailure, err)
	}
	path, err := s.seeds.Write(buf[:n])
	if err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{"seed": path, "guest_pc": out.GuestPC}).Info("session: solved new branch direction")
	return nil
}

// currentBlobBytes reads the blob region's live concrete bytes out of
// guest memory, used as the model ConcretizeBool substitutes in to
// determine which way a symbolic branch actually went this run.
func (s *Session) currentBlobBytes() []byte {
	buf := make([]byte, s.blobSize)
	for i := range buf {
		buf[i] = s.guest.ReadGuestByte(s.blobAddr + uint64(i))
	}
	return buf
}

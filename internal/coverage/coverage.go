// Package coverage implements the coverage database of spec.md §3/§4.8/§6:
// per-depth sets of exact prefix-traces keyed by a running path hash, and
// the "should solve" decision that drives the branch handler.
package coverage

import "github.com/cespare/xxhash/v2"

// Trace is one coverage vector: a sequence of (last_pc | eval_bit) words
// in the execution order they were recorded (spec.md §4.8 step 2).
type Trace []uint64

// Hash computes the path hash of a trace: xxhash over the trace's words
// in big-endian byte-stream order (spec.md §4.8: "its running 64-bit
// hash is updated by the same byte-stream order"). Recomputing from the
// full vector on every step is equivalent to threading an incremental
// digest through each append — the same bytes are hashed either way —
// and is simpler to keep correct, since a branch handler never needs to
// "unhash" a previous step.
func Hash(t Trace) uint64 {
	buf := make([]byte, 8*len(t))
	for i, w := range t {
		buf[i*8+0] = byte(w >> 56)
		buf[i*8+1] = byte(w >> 48)
		buf[i*8+2] = byte(w >> 40)
		buf[i*8+3] = byte(w >> 32)
		buf[i*8+4] = byte(w >> 24)
		buf[i*8+5] = byte(w >> 16)
		buf[i*8+6] = byte(w >> 8)
		buf[i*8+7] = byte(w)
	}
	return xxhash.Sum64(buf)
}

// DB is the coverage database of spec.md §3: levels[k] holds, for each
// path hash at depth k+1, the set of exact prefix-traces of that length
// which have produced it. Depth 0 is absent.
type DB struct {
	levels []map[uint64][]Trace
}

// New returns an empty database.
func New() *DB { return &DB{} }

func cloneTrace(t Trace) Trace {
	cp := make(Trace, len(t))
	copy(cp, t)
	return cp
}

func equalTrace(a, b Trace) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (db *DB) ensureLevel(depth int) map[uint64][]Trace {
	for len(db.levels) < depth {
		db.levels = append(db.levels, make(map[uint64][]Trace))
	}
	return db.levels[depth-1]
}

// Record inserts trace under hash at its depth's level, unless an
// identical trace is already recorded there (spec.md §4.8 step 2: "the
// coverage vector is appended").
func (db *DB) Record(hash uint64, trace Trace) {
	level := db.ensureLevel(len(trace))
	for _, existing := range level[hash] {
		if equalTrace(existing, trace) {
			return
		}
	}
	level[hash] = append(level[hash], cloneTrace(trace))
}

// ShouldSolve implements spec.md §4.8 step 3's decision, applied to the
// flip-side hash and flip-side trace (the current prefix with its last
// step's eval_bit toggled):
//   - no recorded prefix of this depth exists yet (including a depth
//     deeper than any previously recorded) → solve;
//   - the hash is absent at this depth → solve;
//   - an exact match exists → the flip is already covered, skip;
//   - otherwise this is a hash collision with a genuinely new prefix →
//     solve.
func (db *DB) ShouldSolve(hash uint64, flipTrace Trace) bool {
	depth := len(flipTrace)
	if depth > len(db.levels) {
		return true
	}
	entries, ok := db.levels[depth-1][hash]
	if !ok {
		return true
	}
	for _, existing := range entries {
		if equalTrace(existing, flipTrace) {
			return false
		}
	}
	return true
}

// MaxDepth reports the deepest level with any recorded trace.
func (db *DB) MaxDepth() int { return len(db.levels) }

// LevelStat summarizes one depth's level for reporting purposes.
type LevelStat struct {
	Depth      int
	Hashes     int
	TotalPaths int
}

// Stats reports per-depth hash and trace counts, for covdump-style
// inspection of a loaded database.
func (db *DB) Stats() []LevelStat {
	stats := make([]LevelStat, len(db.levels))
	for i, level := range db.levels {
		total := 0
		for _, traces := range level {
			total += len(traces)
		}
		stats[i] = LevelStat{Depth: i + 1, Hashes: len(level), TotalPaths: total}
	}
	return stats
}

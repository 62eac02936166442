package session

import "errors"

// ErrWrongMode reports a lifecycle call made in a state that does not
// permit it (spec.md §4.8: e.g. trace_start while already tracing).
var ErrWrongMode = errors.New("session: operation not valid in current mode")

// ErrSolverFailure reports a solve_for call that failed to produce a
// model (spec.md §7's solver-failure category).
var ErrSolverFailure = errors.New("session: solver failed to produce a model")

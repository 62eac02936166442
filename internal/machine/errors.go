package machine

import "errors"

// Fatal error categories of spec.md §7, specific to the machine-state
// layer: host-memory and guest-memory violations.
var (
	ErrHostMemoryViolation  = errors.New("machine: host memory violation")
	ErrGuestMemoryViolation = errors.New("machine: guest memory violation")
	ErrSymbolicGuestStore   = errors.New("machine: symbolic guest store unsupported")
)

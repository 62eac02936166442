// Package config resolves this engine's environment-variable surface
// (spec.md §5, §9): the inbound toggles an emulator binding or operator
// sets before a session exists, as opposed to the per-session values
// (blob addr/size) that arrive through the trace_start call itself.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/qemu-qce/qce/internal/machine"
)

// Config is the resolved environment for one engine instance.
type Config struct {
	// TraceFile records the QCE_TRACE path (grounded on the original's
	// debug-build QCE_TRACE trace file). Load only records the path;
	// nothing in this module opens or writes the file.
	TraceFile string

	// Check records whether QCE_CHECK is set (spec.md §9, grounded on the
	// original's qce_unit_test/_exit(0) path). cmd/qce's check subcommand
	// runs the self-test without consulting this field.
	Check bool

	// OutputDir roots the per-session seed directories (internal/seed).
	OutputDir string

	// BlobSizeMax records QCE_BLOB_SIZE_MAX; defaults to
	// machine.BlobSizeMax. internal/machine and internal/session use the
	// machine.BlobSizeMax constant, not this field.
	BlobSizeMax uint64

	// MaxSolves records QCE_MAX_SOLVES (0 means unbounded). session.Session
	// does not read it: no per-session solve_for budget is enforced.
	MaxSolves int
}

const (
	envTrace       = "QCE_TRACE"
	envCheck       = "QCE_CHECK"
	envOutputDir   = "QCE_OUTPUT_DIR"
	envBlobSizeMax = "QCE_BLOB_SIZE_MAX"
	envMaxSolves   = "QCE_MAX_SOLVES"

	defaultOutputDir = "."
	defaultMaxSolves = 0 // 0 means unbounded
)

// Load resolves a Config from the process environment. A malformed
// numeric value is a configuration error, not silently ignored.
func Load() (Config, error) {
	cfg := Config{
		TraceFile:   stringEnv(envTrace, ""),
		Check:       boolEnv(envCheck),
		OutputDir:   stringEnv(envOutputDir, defaultOutputDir),
		BlobSizeMax: machine.BlobSizeMax,
		MaxSolves:   defaultMaxSolves,
	}
	if v, ok := os.LookupEnv(envBlobSizeMax); ok {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("config: %s: %w", envBlobSizeMax, err)
		}
		cfg.BlobSizeMax = n
	}
	if v, ok := os.LookupEnv(envMaxSolves); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: %s: %w", envMaxSolves, err)
		}
		cfg.MaxSolves = n
	}
	return cfg, nil
}

func boolEnv(name string) bool {
	v, ok := os.LookupEnv(name)
	if !ok {
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return v != "" // tolerate "yes"/"on"-style values the parser rejects, same as a non-empty flag
	}
	return b
}

func stringEnv(name, def string) string {
	if v, ok := os.LookupEnv(name); ok && v != "" {
		return v
	}
	return def
}

// Package logging builds the structured logger every other package
// accepts as a logrus.FieldLogger, rather than reaching for the global
// logrus instance directly. Centralizing construction here keeps the
// level/format decision in one place instead of duplicated at every
// call site that wants a logger (internal/session, cmd/qce).
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Options configures the process-wide logger.
type Options struct {
	// Verbose raises the level to Debug; otherwise Info.
	Verbose bool

	// Output defaults to os.Stderr, kept separate from the trace file path
	// internal/config's TraceFile records for IR-level tracing.
	Output io.Writer
}

// New builds a logrus.FieldLogger configured per opts. Each session gets
// its own logger instance rather than sharing the package-global
// logrus.StandardLogger, so two concurrent sessions' fields don't race
// on a shared default logger's output.
func New(opts Options) logrus.FieldLogger {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if opts.Output != nil {
		l.SetOutput(opts.Output)
	} else {
		l.SetOutput(os.Stderr)
	}
	if opts.Verbose {
		l.SetLevel(logrus.DebugLevel)
	} else {
		l.SetLevel(logrus.InfoLevel)
	}
	return l
}

// Command qce is the operator-facing entry point for the engine: it does
// not itself embed inside an emulator (that binding is the host's job,
// driven through internal/session's TraceStart/OnIROptimized/
// OnBlockExecuted/TraceStop calls), but it exposes the offline-facing
// parts of spec.md §9 an operator runs against a session's artifacts:
// the QCE_CHECK property suite and coverage-database inspection.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/qemu-qce/qce/internal/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var verbose bool
	var log logrus.FieldLogger = logrus.StandardLogger()

	root := &cobra.Command{
		Use:           "qce",
		Short:         "concolic execution engine operator CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			log = logging.New(logging.Options{Verbose: verbose})
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newCheckCmd(&log))
	root.AddCommand(newCovdumpCmd(&log))
	return root
}

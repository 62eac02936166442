package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/qemu-qce/qce/internal/selftest"
)

// newCheckCmd wires QCE_CHECK (spec.md §9) as an explicit subcommand in
// addition to the environment-variable trigger a host process honors on
// its own: an operator can run the same property suite without standing
// up an emulator at all.
func newCheckCmd(log *logrus.FieldLogger) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "run the self-test property suite and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := selftest.Run(); err != nil {
				return err
			}
			(*log).Info("self-test passed")
			return nil
		},
	}
}

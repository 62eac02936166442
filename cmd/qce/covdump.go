package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/qemu-qce/qce/internal/coverage"
)

// newCovdumpCmd reads a coverage database written by a session
// (internal/coverage's big-endian word stream, spec.md §6) and reports
// per-depth hash and path counts, surfacing the same ErrTruncated/
// ErrTrailingData corruption checks a session would hit on reload.
func newCovdumpCmd(log *logrus.FieldLogger) *cobra.Command {
	return &cobra.Command{
		Use:   "covdump <coverage.db>",
		Short: "print summary statistics for a coverage database file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			db, err := coverage.ReadDB(f)
			if err != nil {
				return fmt.Errorf("covdump: %w", err)
			}

			stats := db.Stats()
			if len(stats) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "empty database")
				return nil
			}
			for _, s := range stats {
				fmt.Fprintf(cmd.OutOrStdout(), "depth %3d: %8d hashes, %8d paths\n", s.Depth, s.Hashes, s.TotalPaths)
			}
			(*log).WithField("file", args[0]).Debug("covdump complete")
			return nil
		},
	}
}

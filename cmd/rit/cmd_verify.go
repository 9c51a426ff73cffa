package main

import (
	"errors"
	"fmt"

	"github.com/odvcencio/rit/pkg/object"
	"github.com/odvcencio/rit/pkg/repo"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Verify loose object integrity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := loggerFor(cmd)
			r, err := repo.Open(".", repo.WithLogger(logger))
			if err != nil {
				return err
			}
			if err := r.CheckFormat(); err != nil {
				if errors.Is(err, repo.ErrUnsupportedFormat) {
					return err
				}
				// Config written by other tools may use syntax we do not parse.
				logger.Warn("skipping config check", zap.Error(err))
			}

			report, err := r.Store.Verify()
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "ok: verified %d loose object(s)", report.LooseObjects)
			for _, t := range object.Types {
				if n := report.Types[t]; n > 0 {
					fmt.Fprintf(cmd.OutOrStdout(), ", %d %s", n, t)
				}
			}
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	}
}

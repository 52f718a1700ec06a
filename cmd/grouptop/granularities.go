package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nixlim/grouptop/internal/period"
)

func newGranularitiesCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "granularities",
		Short: "List bucket granularities, the configured one first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer opts.close()
			cfg, err := opts.load(cmd, false)
			if err != nil {
				return err
			}
			current := period.Granularity(cfg.Report.Granularity)
			out := cmd.OutOrStdout()
			for _, g := range period.GranularityOptions(current) {
				mark := " "
				if g == current {
					mark = "*"
				}
				fmt.Fprintf(out, "%s %-12s %s\n", mark, g, g.Label())
			}
			return nil
		},
	}
}

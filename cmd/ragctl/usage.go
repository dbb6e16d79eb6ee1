package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/ragstream/pkg/client"
)

// stages in report order.
var stages = []string{"ingest", "query", "other"}

func newUsageCmd(root *rootFlags) *cobra.Command {
	var period string

	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Show provider token usage by pipeline stage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := root.newClient(cmd)
			if err != nil {
				return err
			}
			rep, err := c.Usage(cmd.Context(), client.UsagePeriod(period))
			if err != nil {
				return err //nolint:wrapcheck // client errors are already prefixed
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "period: %s (%s .. %s)\n", rep.Period,
				rep.PeriodStart.Format(time.DateOnly), rep.PeriodEnd.Format(time.DateOnly))
			fmt.Fprintf(out, "tokens: %d\n", rep.Usage.Tokens)
			for _, stage := range stages {
				if n, ok := rep.Usage.ByStage[stage]; ok {
					fmt.Fprintf(out, "  %s: %d\n", stage, n)
				}
			}
			if rep.Budget.TokensLimit == 0 {
				fmt.Fprintln(out, "budget: unlimited")
				return nil
			}
			fmt.Fprintf(out, "budget: %d of %d remaining", rep.Budget.TokensRemaining, rep.Budget.TokensLimit)
			if rep.Budget.IsExhausted {
				fmt.Fprint(out, " (exhausted)")
			}
			fmt.Fprintln(out)
			return nil
		},
	}
	cmd.Flags().StringVar(&period, "period", string(client.PeriodMonth), "Budget window: day or month")
	return cmd
}

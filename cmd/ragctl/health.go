package main

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/spf13/cobra"
)

var errUnhealthy = errors.New("server is not healthy")

func newHealthCmd(root *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show server health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := root.newClient(cmd)
			if err != nil {
				return err
			}
			hs, err := c.Health(cmd.Context())
			if err != nil {
				return err //nolint:wrapcheck // client errors are already prefixed
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "status: %s\n", hs.Status)
			for _, name := range slices.Sorted(maps.Keys(hs.Checks)) {
				fmt.Fprintf(out, "  %s: %s\n", name, hs.Checks[name])
			}
			if !hs.Healthy() {
				return errUnhealthy
			}
			return nil
		},
	}
}

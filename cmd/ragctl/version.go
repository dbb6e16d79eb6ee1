package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/ragstream/internal/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "ragctl version %s\n", version.String())
		},
	}
}

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/ragstream/pkg/client"
)

func newUploadCmd(root *rootFlags) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "upload <file.pdf>",
		Short: "Upload a PDF for ingestion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := root.newClient(cmd)
			if err != nil {
				return err
			}

			path := args[0]
			f, err := os.Open(path) //nolint:gosec // path comes from the user
			if err != nil {
				return fmt.Errorf("open %s: %w", path, err)
			}
			defer func() { _ = f.Close() }()

			if name == "" {
				name = filepath.Base(path)
			}
			res, err := c.Upload(cmd.Context(), name, f)
			if err != nil {
				var apiErr *client.APIError
				if errors.As(err, &apiErr) && apiErr.Partial() {
					return fmt.Errorf("%w (stored %d of %d chunks)", err, apiErr.StoredCount, apiErr.ChunkCount)
				}
				return err //nolint:wrapcheck // client errors are already prefixed
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Document ID: %s\n", res.DocumentID)
			fmt.Fprintf(out, "Chunks:      %d\n", res.ChunkCount)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Filename to report to the server (default: base name of the file)")
	return cmd
}

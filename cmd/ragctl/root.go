package main

import (
	"cmp"
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/ragstream/pkg/client"
	"github.com/kailas-cloud/ragstream/pkg/stream"
)

const (
	envServer   = "RAGSTREAM_URL"
	envAPIKey   = "RAGSTREAM_API_KEY"
	defaultAddr = "http://localhost:8080"
)

type rootFlags struct {
	server    string
	apiKey    string
	framing   string
	maxUpload int64
	debug     bool
}

// newClient builds a client from the persistent flags.
func (f *rootFlags) newClient(cmd *cobra.Command) (*client.Client, error) {
	opts := []client.Option{
		client.WithAPIKey(f.apiKey),
		client.WithFraming(stream.Strategy(f.framing)),
		client.WithMaxUploadBytes(f.maxUpload),
	}
	if f.debug {
		opts = append(opts, client.WithLogger(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))))
	}
	return client.New(f.server, opts...) //nolint:wrapcheck // client errors are already prefixed
}

func newRootCmd() *cobra.Command {
	var flags rootFlags

	cmd := &cobra.Command{
		Use:   "ragctl",
		Short: "ragctl - ragstream command-line client",
		Long:  "ragctl uploads PDF documents to a ragstream server and streams answers to questions about them",
		Example: `  ragctl upload paper.pdf
  ragctl ask --rag "What does the paper conclude?"
  ragctl ask --rag --document-id 6f1c... "Summarize section 2"`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	cmd.PersistentFlags().StringVarP(&flags.server, "server", "s",
		cmp.Or(os.Getenv(envServer), defaultAddr), "Server base URL (env "+envServer+")")
	cmd.PersistentFlags().StringVar(&flags.apiKey, "api-key", os.Getenv(envAPIKey), "Bearer API key (env "+envAPIKey+")")
	cmd.PersistentFlags().StringVar(&flags.framing, "framing", string(stream.StrategyJSONLines),
		"Answer framing to assume when the server does not announce one (jsonl|control)")
	cmd.PersistentFlags().Int64Var(&flags.maxUpload, "max-upload-bytes", client.DefaultMaxUploadBytes, "Refuse larger files before uploading")
	cmd.PersistentFlags().BoolVarP(&flags.debug, "debug", "d", false, "Log client operations to stderr")

	cmd.AddCommand(newUploadCmd(&flags))
	cmd.AddCommand(newAskCmd(&flags))
	cmd.AddCommand(newHealthCmd(&flags))
	cmd.AddCommand(newUsageCmd(&flags))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs ragctl with args.
func Execute(ctx context.Context, stdout, stderr io.Writer, args ...string) error {
	rootCmd := newRootCmd()
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx) //nolint:wrapcheck // returned to main as-is
}

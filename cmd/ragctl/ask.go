package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/ragstream/pkg/client"
)

type askFlags struct {
	documentID  string
	rag         bool
	hideSources bool
}

func newAskCmd(root *rootFlags) *cobra.Command {
	var flags askFlags

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question and stream the answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := root.newClient(cmd)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			p := &deltaPrinter{w: out}
			ans, err := c.Query(cmd.Context(), client.QueryRequest{
				Question:   strings.Join(args, " "),
				DocumentID: flags.documentID,
				UseRAG:     flags.rag || flags.documentID != "",
			}, client.WithAnswerHandler(p.print))

			// Частичный ответ уже напечатан, завершаем строку до ошибки.
			if p.printed != "" {
				fmt.Fprintln(out)
			}
			if err != nil {
				return err //nolint:wrapcheck // client errors are already prefixed
			}
			if !flags.hideSources {
				printSources(out, ans.Documents)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&flags.documentID, "document-id", "", "Restrict retrieval to one uploaded document (implies --rag)")
	cmd.Flags().BoolVar(&flags.rag, "rag", false, "Answer from uploaded documents")
	cmd.Flags().BoolVar(&flags.hideSources, "no-sources", false, "Do not list the context documents after the answer")
	return cmd
}

// deltaPrinter writes only the part of the answer not yet printed.
type deltaPrinter struct {
	w       io.Writer
	printed string
}

func (p *deltaPrinter) print(answer string) {
	if strings.HasPrefix(answer, p.printed) {
		_, _ = io.WriteString(p.w, answer[len(p.printed):])
	} else {
		// The answer was re-derived with a different prefix; start over on a new line.
		_, _ = io.WriteString(p.w, "\n"+answer)
	}
	p.printed = answer
}

func printSources(w io.Writer, docs []client.Document) {
	if len(docs) == 0 {
		return
	}
	fmt.Fprintln(w, "\nSources:")
	for i, d := range docs {
		fmt.Fprintf(w, "  [%d] %s (score %.3f)", i+1, d.ID, d.Score)
		if d.Chunk.URL != "" {
			fmt.Fprintf(w, " %s", d.Chunk.URL)
		}
		fmt.Fprintln(w)
	}
}

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kailas-cloud/ragstream/pkg/stream"
)

// QueryRequest is a question for the server.
type QueryRequest struct {
	Question   string `json:"query"`
	DocumentID string `json:"document_id,omitempty"`
	UseRAG     bool   `json:"use_rag"`
}

// Document is one retrieved context chunk sent after the answer.
type Document struct {
	ID    string        `json:"id"`
	Score float64       `json:"score"`
	Chunk DocumentChunk `json:"chunk"`

	// Raw is the record as received.
	Raw json.RawMessage `json:"-"`
}

// DocumentChunk locates the chunk inside its source document.
type DocumentChunk struct {
	DocumentID  string `json:"documentId"`
	URL         string `json:"url,omitempty"`
	Text        string `json:"text"`
	Index       int    `json:"index"`
	StartOffset int    `json:"startOffset"`
	EndOffset   int    `json:"endOffset"`
}

// Answer is the decoded result of a query.
type Answer struct {
	Text      string
	Documents []Document
	// Framing is the strategy the response was decoded with.
	Framing stream.Strategy
	// Warnings lists frames the decoder skipped.
	Warnings []error
}

// Query asks a question and decodes the streamed answer.
//
// On a mid-stream failure the partial answer is returned together with an
// error: ErrTruncated when the transport ended early, *stream.RemoteError when
// the server reported a generation failure.
func (c *Client) Query(ctx context.Context, q QueryRequest, opts ...QueryOption) (ans Answer, err error) {
	start := time.Now()
	defer func() { c.obs.observe("query", start, err, "use_rag", q.UseRAG, "answer_len", len(ans.Text)) }()

	var qc queryConfig
	for _, o := range opts {
		o(&qc)
	}

	payload, err := json.Marshal(q)
	if err != nil {
		return Answer{}, fmt.Errorf("ragstream: encode query: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/query", bytes.NewReader(payload))
	if err != nil {
		return Answer{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Answer{}, fmt.Errorf("ragstream: query: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return Answer{}, decodeAPIError(resp)
	}

	ans.Framing = c.responseFraming(resp)
	dec, err := stream.NewDecoder(ans.Framing, decoderOptions(qc, &ans)...)
	if err != nil {
		return Answer{}, fmt.Errorf("ragstream: %w", err)
	}

	_, copyErr := io.Copy(dec, resp.Body)
	closeErr := dec.Close()

	ans.Text = dec.Answer()
	ans.Warnings = dec.Warnings()

	if copyErr != nil {
		return ans, fmt.Errorf("ragstream: read answer: %w", errors.Join(ErrTruncated, copyErr))
	}
	if closeErr != nil {
		return ans, fmt.Errorf("ragstream: decode answer: %w", closeErr)
	}
	return ans, nil
}

// responseFraming trusts the server header, falling back to the configured strategy.
func (c *Client) responseFraming(resp *http.Response) stream.Strategy {
	name := resp.Header.Get(HeaderFraming)
	if name == "" {
		return c.framing
	}
	if s, err := stream.ParseStrategy(name); err == nil {
		return s
	}
	return c.framing
}

func decoderOptions(qc queryConfig, ans *Answer) []stream.DecoderOption {
	opts := []stream.DecoderOption{
		stream.WithDocumentHandler(func(raw json.RawMessage) {
			doc := Document{Raw: raw}
			if err := json.Unmarshal(raw, &doc); err != nil {
				ans.Warnings = append(ans.Warnings, fmt.Errorf("decode document: %w", err))
			}
			ans.Documents = append(ans.Documents, doc)
			if qc.onDocument != nil {
				qc.onDocument(doc)
			}
		}),
	}
	if qc.onAnswer != nil {
		opts = append(opts, stream.WithAnswerHandler(qc.onAnswer))
	}
	return opts
}

package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kailas-cloud/ragstream/pkg/client"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	err := Execute(context.Background(), &out, &errOut, args...)
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "ragctl version dev") {
		t.Errorf("output = %q", out)
	}
}

func TestUpload(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
		}
		if got := r.FormValue("filename"); got != "report.pdf" {
			t.Errorf("filename = %q", got)
		}
		_, _ = io.WriteString(w, `{"chunkCount":7,"documentId":"doc-42"}`)
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "report.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4"), 0o600); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, "upload", "--server", srv.URL, "--api-key", "k", path)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if !strings.Contains(out, "doc-42") || !strings.Contains(out, "7") {
		t.Errorf("output = %q", out)
	}
	if gotAuth != "Bearer k" {
		t.Errorf("Authorization = %q", gotAuth)
	}
}

func TestUpload_TooLarge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.pdf")
	if err := os.WriteFile(path, bytes.Repeat([]byte("x"), 32), 0o600); err != nil {
		t.Fatal(err)
	}
	_, err := run(t, "upload", "--server", "http://127.0.0.1:1", "--max-upload-bytes", "16", path)
	if !errors.Is(err, client.ErrFileTooLarge) {
		t.Fatalf("err = %v, want ErrFileTooLarge", err)
	}
}

func TestUpload_Partial(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":"Error ingesting file","storedCount":2,"chunkCount":5}`)
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "a.pdf")
	if err := os.WriteFile(path, []byte("%PDF"), 0o600); err != nil {
		t.Fatal(err)
	}
	_, err := run(t, "upload", "--server", srv.URL, path)
	if err == nil || !strings.Contains(err.Error(), "stored 2 of 5 chunks") {
		t.Fatalf("err = %v", err)
	}
}

func TestAsk_StreamsAnswerAndSources(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Header().Set(client.HeaderFraming, "control")
		_, _ = io.WriteString(w, "Forty two.\x1e"+
			`{"id":"doc-1:0","score":0.5,"chunk":{"documentId":"doc-1","url":"file://a.pdf","text":"t","index":0,"startOffset":0,"endOffset":1}}`+
			"\x1d")
	}))
	defer srv.Close()

	out, err := run(t, "ask", "--server", srv.URL, "--document-id", "doc-1", "what", "is", "it?")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if !strings.HasPrefix(out, "Forty two.\n") {
		t.Errorf("output = %q", out)
	}
	if !strings.Contains(out, "[1] doc-1:0 (score 0.500) file://a.pdf") {
		t.Errorf("sources missing: %q", out)
	}
	if !strings.Contains(gotBody, `"query":"what is it?"`) || !strings.Contains(gotBody, `"use_rag":true`) {
		t.Errorf("request body = %s", gotBody)
	}
}

func TestAsk_PartialAnswerOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(client.HeaderFraming, "jsonl")
		_, _ = io.WriteString(w, `{"type":"chunk","value":"Half"}`+"\n"+`{"type":"error","value":"generation failed"}`+"\n")
	}))
	defer srv.Close()

	out, err := run(t, "ask", "--server", srv.URL, "q")
	if err == nil || !strings.Contains(err.Error(), "generation failed") {
		t.Fatalf("err = %v", err)
	}
	if out != "Half\n" {
		t.Errorf("output = %q", out)
	}
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(w, `{"status":"degraded","checks":{"openai":"ok","database":"error"}}`)
	}))
	defer srv.Close()

	out, err := run(t, "health", "--server", srv.URL)
	if !errors.Is(err, errUnhealthy) {
		t.Fatalf("err = %v, want errUnhealthy", err)
	}
	want := "status: degraded\n  database: error\n  openai: ok\n"
	if out != want {
		t.Errorf("output = %q, want %q", out, want)
	}
}

func TestDeltaPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := &deltaPrinter{w: &buf}
	for _, s := range []string{"He", "Hello", "Hello, world"} {
		p.print(s)
	}
	if buf.String() != "Hello, world" {
		t.Errorf("printed = %q", buf.String())
	}
}

func TestUsage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("period") != "day" {
			t.Errorf("period = %q", r.URL.Query().Get("period"))
		}
		_, _ = io.WriteString(w, `{"period":"day","periodStartAt":"2026-03-14T00:00:00Z","periodEndAt":"2026-03-15T00:00:00Z",`+
			`"usage":{"tokens":1000,"byStage":{"query":130,"ingest":870,"other":0}},"budget":{"tokensLimit":1000,"tokensRemaining":0,"isExhausted":true}}`)
	}))
	defer srv.Close()

	out, err := run(t, "usage", "--server", srv.URL, "--period", "day")
	if err != nil {
		t.Fatalf("usage: %v", err)
	}
	want := "period: day (2026-03-14 .. 2026-03-15)\ntokens: 1000\n" +
		"  ingest: 870\n  query: 130\n  other: 0\n" +
		"budget: 0 of 1000 remaining (exhausted)\n"
	if out != want {
		t.Errorf("output = %q, want %q", out, want)
	}
}

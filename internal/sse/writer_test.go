package sse

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/plexgate/plexgate/internal/upstream"
)

func fragmentStream(fragments ...string) *upstream.Stream {
	var b strings.Builder
	for _, f := range fragments {
		b.WriteString("data: " + f + "\n\n")
	}
	b.WriteString("event: end_of_stream\ndata: {}\n\n")
	return upstream.NewStream(io.NopCloser(strings.NewReader(b.String())))
}

func TestNegotiate(t *testing.T) {
	tests := []struct {
		accept string
		want   Format
	}{
		{"", FormatSSE},
		{"text/event-stream", FormatSSE},
		{"application/json", FormatSSE},
		{"application/x-ndjson", FormatNDJSON},
		{"application/ndjson", FormatNDJSON},
		{"application/x-ndjson; charset=utf-8", FormatNDJSON},
		{"text/event-stream, application/x-ndjson", FormatNDJSON},
	}
	for _, tt := range tests {
		if got := Negotiate(tt.accept); got != tt.want {
			t.Fatalf("Negotiate(%q) = %v, want %v", tt.accept, got, tt.want)
		}
	}
}

func TestWriteResultEnvelope(t *testing.T) {
	w := httptest.NewRecorder()
	WriteResult(w, json.RawMessage(`{"answer":"pong"}`))

	if w.Code != 200 {
		t.Fatalf("status: got %d", w.Code)
	}
	body := strings.TrimSpace(w.Body.String())
	if body != `{"data":{"answer":"pong"}}` {
		t.Fatalf("body: got %s", body)
	}
}

func TestWriteStreamSSEFraming(t *testing.T) {
	w := httptest.NewRecorder()
	WriteStream(context.Background(), w, fragmentStream(`{"n":1}`, `{"n":2}`), FormatSSE)

	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type: got %q", ct)
	}

	body := w.Body.String()
	wantLines := []string{
		`data: {"data":{"n":1}}`,
		`data: {"data":{"n":2}}`,
		"event: end",
	}
	idx := 0
	for _, want := range wantLines {
		pos := strings.Index(body[idx:], want)
		if pos < 0 {
			t.Fatalf("missing or out-of-order line %q in:\n%s", want, body)
		}
		idx += pos + len(want)
	}
	if strings.Count(body, "event: end") != 1 {
		t.Fatalf("terminal marker must appear exactly once:\n%s", body)
	}
}

func TestWriteStreamNDJSONFraming(t *testing.T) {
	w := httptest.NewRecorder()
	WriteStream(context.Background(), w, fragmentStream(`{"n":1}`, `{"n":2}`), FormatNDJSON)

	if ct := w.Header().Get("Content-Type"); ct != "application/x-ndjson" {
		t.Fatalf("content type: got %q", ct)
	}

	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("line count: got %d (%v)", len(lines), lines)
	}
	for i, line := range lines {
		var doc map[string]any
		if err := json.Unmarshal([]byte(line), &doc); err != nil {
			t.Fatalf("line %d not valid JSON: %q", i, line)
		}
		if _, ok := doc["data"]; !ok {
			t.Fatalf("line %d missing data envelope: %q", i, line)
		}
	}
	if strings.Contains(w.Body.String(), "event:") {
		t.Fatal("NDJSON must not carry SSE framing")
	}
}

func TestWriteStreamUnitCountMatchesFragments(t *testing.T) {
	fragments := []string{`{"n":1}`, `{"n":2}`, `{"n":3}`, `{"n":4}`}
	w := httptest.NewRecorder()
	WriteStream(context.Background(), w, fragmentStream(fragments...), FormatSSE)

	if got := strings.Count(w.Body.String(), `data: {"data":`); got != len(fragments) {
		t.Fatalf("streamed units: got %d, want %d", got, len(fragments))
	}
}

func TestWriteStreamStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := httptest.NewRecorder()
	WriteStream(ctx, w, fragmentStream(`{"n":1}`), FormatSSE)

	if strings.Contains(w.Body.String(), `{"n":1}`) {
		t.Fatalf("no fragments may be written after cancellation:\n%s", w.Body.String())
	}
}

func TestWriteStreamEmitsInStreamError(t *testing.T) {
	r := io.MultiReader(
		strings.NewReader("data: {\"n\":1}\n\n"),
		failingReader{},
	)
	stream := upstream.NewStream(io.NopCloser(r))

	w := httptest.NewRecorder()
	WriteStream(context.Background(), w, stream, FormatSSE)

	body := w.Body.String()
	if !strings.Contains(body, `data: {"data":{"n":1}}`) {
		t.Fatalf("first fragment missing:\n%s", body)
	}
	if !strings.Contains(body, "event: error") {
		t.Fatalf("expected in-stream error event:\n%s", body)
	}
	if strings.Contains(body, "event: end") {
		t.Fatalf("failed stream must not emit the end marker:\n%s", body)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, io.ErrUnexpectedEOF
}

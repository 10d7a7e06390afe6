// Package sse renders downstream outcomes onto the client connection:
// a single JSON document for non-streaming requests, or an incremental
// sequence of chunks in one of two wire formats for streaming requests.
package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/plexgate/plexgate/internal/codec"
	"github.com/plexgate/plexgate/internal/upstream"
)

// Format is the negotiated streaming wire format.
type Format int

const (
	// FormatSSE is the line-oriented event stream: one "data:" line per
	// fragment, a terminal "event: end" line, then closure.
	FormatSSE Format = iota
	// FormatNDJSON is newline-delimited JSON with no terminal marker
	// beyond stream closure.
	FormatNDJSON
)

// Negotiate picks the streaming wire format from the Accept header. The
// format is never chosen by request body content.
func Negotiate(accept string) Format {
	for _, part := range strings.Split(accept, ",") {
		mediaType := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		switch mediaType {
		case "application/x-ndjson", "application/ndjson":
			return FormatNDJSON
		}
	}
	return FormatSSE
}

// envelope is the {"data": ...} wrapper shared by single documents and SSE
// fragments.
type envelope struct {
	Data json.RawMessage `json:"data"`
}

// WriteResult writes a non-streaming outcome as one JSON document.
func WriteResult(w http.ResponseWriter, result json.RawMessage) {
	codec.WriteJSON(w, http.StatusOK, envelope{Data: result})
}

// WriteStream drains the fragment sequence onto the client connection in
// the negotiated format, in strict production order, and reports how many
// fragments were delivered. If the client goes away (write failure or
// context cancellation) it stops pulling fragments immediately; the stream
// is always closed. Failures after the first byte surface as an in-stream
// error followed by closure, never as a status change.
func WriteStream(ctx context.Context, w http.ResponseWriter, stream *upstream.Stream, format Format) (delivered int) {
	defer stream.Close()

	flusher, _ := w.(http.Flusher)
	flush := func() {
		if flusher != nil {
			flusher.Flush()
		}
	}

	switch format {
	case FormatNDJSON:
		w.Header().Set("Content-Type", "application/x-ndjson")
	default:
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
	}
	w.WriteHeader(http.StatusOK)

	for {
		select {
		case <-ctx.Done():
			slog.Debug("client disconnected mid-stream")
			return delivered
		default:
		}

		fragment, err := stream.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			writeStreamError(w, format, "provider stream failed: "+err.Error())
			flush()
			return delivered
		}

		if werr := writeFragment(w, format, fragment); werr != nil {
			slog.Debug("client write failed mid-stream", "error", werr)
			return delivered
		}
		delivered++
		flush()
	}

	if format == FormatSSE {
		fmt.Fprint(w, "event: end\ndata: {}\n\n")
		flush()
	}
	return delivered
}

func writeFragment(w http.ResponseWriter, format Format, fragment json.RawMessage) error {
	payload, err := json.Marshal(envelope{Data: fragment})
	if err != nil {
		return err
	}
	switch format {
	case FormatNDJSON:
		_, err = fmt.Fprintf(w, "%s\n", payload)
	default:
		_, err = fmt.Fprintf(w, "data: %s\n\n", payload)
	}
	return err
}

// writeStreamError emits an in-stream error unit. Headers are already sent
// at this point, so the status code cannot change.
func writeStreamError(w http.ResponseWriter, format Format, message string) {
	body, err := json.Marshal(codec.ErrorResponse{Error: &codec.Error{
		Code:    codec.CodeDownstream,
		Message: message,
	}})
	if err != nil {
		return
	}
	switch format {
	case FormatNDJSON:
		fmt.Fprintf(w, "%s\n", body)
	default:
		fmt.Fprintf(w, "event: error\ndata: %s\n\n", body)
	}
}

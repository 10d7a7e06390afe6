package upstream

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"

	"github.com/tidwall/gjson"
)

// Outcome is the result of one downstream call: exactly one of Result or
// Fragments is set, chosen by the request's stream flag. Keeping the two
// arms as separate fields lets callers branch statically instead of
// re-checking a boolean.
type Outcome struct {
	// Result is the single collected provider answer (non-streaming).
	Result json.RawMessage

	// Fragments is a lazy, produce-once sequence of provider fragments
	// (streaming). The consumer owns it and must Close it.
	Fragments *Stream
}

// Stream reads provider SSE fragments lazily from a live response body.
// It is not restartable; fragments come back in production order and the
// sequence ends with io.EOF once the provider signals completion.
type Stream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	done    bool
}

// NewStream wraps a provider SSE body.
func NewStream(body io.ReadCloser) *Stream {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 256*1024), 4*1024*1024)
	return &Stream{body: body, scanner: scanner}
}

// Next returns the next fragment payload. Returns io.EOF after the
// provider's end marker or when the body is exhausted.
func (s *Stream) Next() (json.RawMessage, error) {
	if s.done {
		return nil, io.EOF
	}
	for s.scanner.Scan() {
		line := s.scanner.Text()
		if strings.HasPrefix(line, "event: ") {
			if strings.TrimSpace(line[7:]) == "end_of_stream" {
				s.done = true
				return nil, io.EOF
			}
			continue
		}
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimSpace(line[6:])
		if data == "" || !gjson.Valid(data) {
			continue
		}
		if gjson.Get(data, "final").Bool() {
			s.done = true
		}
		return json.RawMessage(data), nil
	}
	s.done = true
	if err := s.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

// Close releases the underlying response body. Safe to call more than once.
func (s *Stream) Close() error {
	s.done = true
	if s.body == nil {
		return nil
	}
	err := s.body.Close()
	s.body = nil
	return err
}

// Collect drains the stream and returns the last fragment, which carries
// the provider's cumulative final answer. The stream is closed afterwards.
func (s *Stream) Collect() (json.RawMessage, error) {
	defer s.Close()

	var last json.RawMessage
	for {
		fragment, err := s.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		last = fragment
	}
	return last, nil
}

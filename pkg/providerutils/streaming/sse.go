// Package streaming decodes the tensor-runtime engine's own SSE response
// stream and frames this gateway's downstream `text/event-stream` chunks.
// Both directions only ever use the bare `data: <payload>\n\n` record
// shape, so neither the parser nor the writer carries the full SSE field
// set (event/id/retry) the spec allows.
package streaming

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// SSEEvent is one decoded `data: ...` record from an upstream SSE stream.
type SSEEvent struct {
	Data string
}

// SSEParser reads SSEEvents from an upstream response body.
type SSEParser struct {
	scanner *bufio.Scanner
	err     error
}

// NewSSEParser wraps r for line-by-line SSE decoding.
func NewSSEParser(r io.Reader) *SSEParser {
	return &SSEParser{
		scanner: bufio.NewScanner(r),
	}
}

// Next returns the next event, or io.EOF once the stream is exhausted.
func (p *SSEParser) Next() (*SSEEvent, error) {
	if p.err != nil {
		return nil, p.err
	}

	var dataLines []string

	for p.scanner.Scan() {
		line := p.scanner.Text()

		if line == "" {
			if len(dataLines) > 0 {
				return &SSEEvent{Data: strings.Join(dataLines, "\n")}, nil
			}
			continue
		}

		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		if len(value) > 0 && value[0] == ' ' {
			value = value[1:]
		}

		if field == "data" {
			dataLines = append(dataLines, value)
		}
	}

	if err := p.scanner.Err(); err != nil {
		p.err = err
		return nil, err
	}

	if len(dataLines) > 0 {
		return &SSEEvent{Data: strings.Join(dataLines, "\n")}, nil
	}

	p.err = io.EOF
	return nil, io.EOF
}

// SSEWriter frames chat-completion chunks for a `text/event-stream`
// response.
type SSEWriter struct {
	writer io.Writer
}

// NewSSEWriter wraps w for SSE framing.
func NewSSEWriter(w io.Writer) *SSEWriter {
	return &SSEWriter{writer: w}
}

// WriteJSON marshals v and writes it as a bare `data: <json>\n\n` record,
// matching the OpenAI chat-completion-chunk wire framing.
func (w *SSEWriter) WriteJSON(v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w.writer, "data: %s\n\n", payload)
	return err
}

// WriteRawDone writes the bare `data: [DONE]\n\n` terminator the
// chat-completions wire format expects.
func (w *SSEWriter) WriteRawDone() error {
	_, err := io.WriteString(w.writer, "data: [DONE]\n\n")
	return err
}

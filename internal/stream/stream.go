// Package stream implements the server-sent-events wire format used by
// the council endpoint. Each event is one JSON object framed as
//
//	data: {json}\n\n
//
// The Writer emits frames and flushes after each one so events reach the
// consumer as they happen. The Decoder is the consuming half: it tolerates
// arbitrary chunk boundaries, rejoins multi-line data fields, ignores
// unknown SSE fields and comments, and drops a truncated trailing event.
package stream

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/llmcouncil/councild/internal/errors"
)

// Writer frames JSON-marshalable values as SSE events. Not safe for
// concurrent use; the pipeline event loop is the only producer.
type Writer struct {
	w       io.Writer
	flusher http.Flusher
}

// NewWriter wraps w. When w implements http.Flusher each event is flushed
// immediately after being written.
func NewWriter(w io.Writer) *Writer {
	sw := &Writer{w: w}
	if f, ok := w.(http.Flusher); ok {
		sw.flusher = f
	}
	return sw
}

// Send marshals v and writes it as one SSE data frame.
func (w *Writer) Send(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "encoding stream event")
	}
	if _, err := fmt.Fprintf(w.w, "data: %s\n\n", payload); err != nil {
		return errors.Wrap(err, "writing stream event")
	}
	if w.flusher != nil {
		w.flusher.Flush()
	}
	return nil
}

// Decoder reads SSE frames and yields their data payloads.
type Decoder struct {
	scanner *bufio.Scanner
}

// maxEventSize bounds a single SSE line. Council responses are large but
// bounded by the content and context caps plus model output; 16 MiB is
// comfortably past anything a well-behaved server produces.
const maxEventSize = 16 << 20

// NewDecoder reads SSE frames from r.
func NewDecoder(r io.Reader) *Decoder {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64<<10), maxEventSize)
	return &Decoder{scanner: scanner}
}

// Next returns the payload of the next complete event. Multiple data:
// lines within one event are rejoined with a newline per the SSE spec.
// It returns io.EOF at the end of the stream; an event truncated by the
// stream ending before its blank-line delimiter is dropped, not returned.
func (d *Decoder) Next() ([]byte, error) {
	var data []string
	sawData := false

	for {
		if !d.scanner.Scan() {
			if err := d.scanner.Err(); err != nil {
				return nil, err
			}
			// Pending lines with no delimiter are a truncated event.
			return nil, io.EOF
		}
		line := strings.TrimSuffix(d.scanner.Text(), "\r")

		if line == "" {
			if sawData {
				return []byte(strings.Join(data, "\n")), nil
			}
			// Stray delimiter between events.
			continue
		}

		if value, ok := strings.CutPrefix(line, "data:"); ok {
			data = append(data, strings.TrimPrefix(value, " "))
			sawData = true
		}
		// Comments and other SSE fields (event:, id:, retry:) are ignored.
	}
}

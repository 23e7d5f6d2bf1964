// Package writers provides dispatcher writers for lookup events.
package writers

import (
	"io"
	"slices"
	"sync"

	"github.com/ipcheck/ipcheck/pkg/jsonutil"
	"github.com/ipcheck/ipcheck/pkg/output/dispatcher"
	"github.com/ipcheck/ipcheck/pkg/output/events"
)

var _ dispatcher.Writer = (*JSONLWriter)(nil)

// JSONLWriter writes events as newline-delimited JSON, one complete object
// per line, so each line can be parsed on its own by jq or a log shipper.
type JSONLWriter struct {
	w       io.Writer
	mu      sync.Mutex
	opts    JSONLOptions
	encoder *jsonutil.Encoder
}

// JSONLOptions configures the JSONL writer behavior.
type JSONLOptions struct {
	// Types restricts output to the listed event types. Empty means all.
	Types []events.EventType

	// Pretty enables indented JSON output.
	// Note: This is not JSONL compliant but useful for debugging.
	Pretty bool
}

// NewJSONLWriter creates a new JSONL writer that writes to w.
// The writer is safe for concurrent use.
func NewJSONLWriter(w io.Writer, opts JSONLOptions) *JSONLWriter {
	encoder := jsonutil.NewStreamEncoder(w)
	if opts.Pretty {
		encoder.SetIndent("", "  ")
	}
	return &JSONLWriter{w: w, opts: opts, encoder: encoder}
}

// Write writes an event as a single JSON line.
func (jw *JSONLWriter) Write(event events.Event) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()
	return jw.encoder.Encode(event)
}

// Flush is a no-op: every event is written immediately.
func (jw *JSONLWriter) Flush() error { return nil }

// Close closes the underlying writer if it is an io.Closer.
func (jw *JSONLWriter) Close() error {
	if closer, ok := jw.w.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// SupportsEvent applies the Types filter.
func (jw *JSONLWriter) SupportsEvent(eventType events.EventType) bool {
	return len(jw.opts.Types) == 0 || slices.Contains(jw.opts.Types, eventType)
}

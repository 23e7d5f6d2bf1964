// Package dispatcher routes lookup events to registered writers and hooks.
// Writers persist events (JSONL, templates); hooks feed live integrations
// (metrics, tracing, logs). Lookups never wait on a failing consumer.
package dispatcher

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/ipcheck/ipcheck/pkg/output/events"
)

// Writer is the interface for all output writers.
type Writer interface {
	// Write writes an event to the output.
	Write(event events.Event) error

	// Flush ensures all buffered events are written.
	Flush() error

	// Close closes the writer and releases any resources.
	Close() error

	// SupportsEvent returns true if the writer handles this event type.
	SupportsEvent(eventType events.EventType) bool
}

// Hook is the interface for event hooks.
type Hook interface {
	// OnEvent is called for each matching event.
	OnEvent(ctx context.Context, event events.Event) error

	// EventTypes returns the event types this hook handles.
	// Return nil or empty slice to receive all events.
	EventTypes() []events.EventType
}

// Dispatcher routes events to writers and hooks.
// It is safe for concurrent use.
type Dispatcher struct {
	mu      sync.RWMutex
	writers []Writer
	hooks   []Hook
	closed  bool

	async  bool
	hookWg sync.WaitGroup
	logger *slog.Logger
}

// Config configures the dispatcher behavior.
type Config struct {
	// Async runs hooks in their own goroutines. Close waits for them.
	Async bool

	Logger *slog.Logger
}

// New creates a new event dispatcher with the given configuration.
func New(cfg Config) *Dispatcher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{async: cfg.Async, logger: logger}
}

// RegisterWriter adds a writer to the dispatcher.
func (d *Dispatcher) RegisterWriter(w Writer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.writers = append(d.writers, w)
}

// RegisterHook adds a hook to the dispatcher.
func (d *Dispatcher) RegisterHook(h Hook) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hooks = append(d.hooks, h)
}

// Dispatch sends an event to all registered writers and hooks. Consumer
// failures are logged and never returned; a nil dispatcher drops the event.
func (d *Dispatcher) Dispatch(ctx context.Context, event events.Event) {
	if d == nil {
		return
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	for _, w := range d.writers {
		if !w.SupportsEvent(event.EventType()) {
			continue
		}
		if err := w.Write(event); err != nil {
			d.logger.Warn("output writer failed", "event", event.EventType(), "error", err)
		}
	}

	for _, h := range d.hooks {
		if !hookSupportsEvent(h, event.EventType()) {
			continue
		}
		if d.async {
			d.hookWg.Add(1)
			go func(hook Hook) {
				defer d.hookWg.Done()
				d.runHook(ctx, hook, event)
			}(h)
			continue
		}
		d.runHook(ctx, h, event)
	}
}

func (d *Dispatcher) runHook(ctx context.Context, h Hook, event events.Event) {
	if err := h.OnEvent(ctx, event); err != nil {
		d.logger.Warn("output hook failed", "event", event.EventType(), "error", err)
	}
}

func hookSupportsEvent(h Hook, eventType events.EventType) bool {
	types := h.EventTypes()
	return len(types) == 0 || slices.Contains(types, eventType)
}

// Flush flushes all registered writers.
func (d *Dispatcher) Flush() error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, w := range d.writers {
		if err := w.Flush(); err != nil {
			d.logger.Warn("output flush failed", "error", err)
		}
	}
	return nil
}

// Close waits for running hooks, then flushes and closes all writers.
// Events dispatched after Close are dropped.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	d.hookWg.Wait()

	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, w := range d.writers {
		_ = w.Flush()
		if err := w.Close(); err != nil {
			d.logger.Warn("output writer close failed", "error", err)
		}
	}
	return nil
}

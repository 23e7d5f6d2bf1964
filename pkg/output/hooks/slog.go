package hooks

import (
	"context"
	"log/slog"

	"github.com/ipcheck/ipcheck/pkg/output/dispatcher"
	"github.com/ipcheck/ipcheck/pkg/output/events"
)

var _ dispatcher.Hook = (*SlogHook)(nil)

// SlogHook writes one log record per lookup event.
type SlogHook struct {
	logger *slog.Logger
}

// NewSlogHook returns a hook logging to logger, or slog.Default when nil.
func NewSlogHook(logger *slog.Logger) *SlogHook {
	return &SlogHook{logger: orDefault(logger)}
}

// OnEvent logs the event.
func (h *SlogHook) OnEvent(ctx context.Context, event events.Event) error {
	log := h.logger.With("lookup_id", event.LookupID())
	switch e := event.(type) {
	case *events.StartEvent:
		log.InfoContext(ctx, "lookup started", "ip", e.IP, "source", e.Source, "providers", len(e.Providers))
	case *events.PartialEvent:
		level := slog.LevelInfo
		if e.Result.IsSentinel() {
			level = slog.LevelWarn
		}
		log.Log(ctx, level, "provider result",
			"ip", e.IP,
			"provider", e.Provider,
			"outcome", e.Result.Outcome(),
			"duration_ms", e.DurationMs,
		)
	case *events.CompleteEvent:
		log.InfoContext(ctx, "lookup complete", "ip", e.IP, "degraded", e.Degraded, "duration_ms", e.DurationMs)
	case *events.RejectedEvent:
		log.InfoContext(ctx, "lookup rejected", "ip", e.IP, "category", e.Category, "reason", e.Reason)
	}
	return nil
}

// EventTypes returns nil: every event is logged.
func (h *SlogHook) EventTypes() []events.EventType { return nil }

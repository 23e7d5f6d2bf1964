package hooks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/ipcheck/ipcheck/pkg/defaults"
	"github.com/ipcheck/ipcheck/pkg/duration"
	"github.com/ipcheck/ipcheck/pkg/output/dispatcher"
	"github.com/ipcheck/ipcheck/pkg/output/events"
)

var _ dispatcher.Hook = (*OTelHook)(nil)

// OTelHook exports one span per lookup, with a child span per provider
// result and a span event for rejections.
type OTelHook struct {
	opts           OTelOptions
	tracerProvider *sdktrace.TracerProvider
	tracer         trace.Tracer
	logger         *slog.Logger

	mu     sync.Mutex
	spans  map[string]lookupSpan
	closed bool
}

type lookupSpan struct {
	ctx  context.Context
	span trace.Span
}

// OTelOptions configures the OpenTelemetry hook behavior.
type OTelOptions struct {
	// Endpoint is the OTLP gRPC endpoint (default: "localhost:4317").
	Endpoint string

	// ServiceName is the service name for traces (default: "ipcheck").
	ServiceName string

	// Insecure disables TLS to the collector.
	Insecure bool

	// Headers contains additional headers for the OTLP exporter.
	Headers map[string]string

	Logger *slog.Logger
}

// NewOTelHook creates an exporter and a tracer provider. The exporter
// connects lazily, so an absent collector never blocks lookups.
func NewOTelHook(opts OTelOptions) (*OTelHook, error) {
	if opts.ServiceName == "" {
		opts.ServiceName = defaults.ToolName
	}
	if opts.Endpoint == "" {
		opts.Endpoint = "localhost:4317"
	}

	exporterOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(opts.Endpoint)}
	if opts.Insecure {
		exporterOpts = append(exporterOpts,
			otlptracegrpc.WithInsecure(),
			otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		)
	}
	if len(opts.Headers) > 0 {
		exporterOpts = append(exporterOpts, otlptracegrpc.WithHeaders(opts.Headers))
	}

	ctx, cancel := context.WithTimeout(context.Background(), duration.OTelExport)
	defer cancel()
	exporter, err := otlptracegrpc.New(ctx, exporterOpts...)
	if err != nil {
		return nil, fmt.Errorf("otel: create exporter: %w", err)
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(opts.ServiceName),
		semconv.ServiceVersion(defaults.Version),
	)
	return newOTelHook(opts, sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)), nil
}

func newOTelHook(opts OTelOptions, tp *sdktrace.TracerProvider) *OTelHook {
	return &OTelHook{
		opts:           opts,
		tracerProvider: tp,
		tracer:         tp.Tracer(defaults.ToolName + "/lookup"),
		logger:         orDefault(opts.Logger),
		spans:          make(map[string]lookupSpan),
	}
}

// OnEvent records the event on the lookup's span.
func (h *OTelHook) OnEvent(ctx context.Context, event events.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}

	switch e := event.(type) {
	case *events.StartEvent:
		spanCtx, span := h.tracer.Start(ctx, "ipcheck.lookup",
			trace.WithTimestamp(e.Time),
			trace.WithAttributes(
				attribute.String("lookup_id", e.Lookup),
				attribute.String("ip", e.IP),
				attribute.String("source", e.Source),
			),
		)
		h.spans[e.Lookup] = lookupSpan{ctx: spanCtx, span: span}

	case *events.PartialEvent:
		parent, ok := h.spans[e.Lookup]
		if !ok {
			return nil
		}
		start := e.Time.Add(-time.Duration(e.DurationMs * float64(time.Millisecond)))
		_, span := h.tracer.Start(parent.ctx, "ipcheck.scrape."+string(e.Provider),
			trace.WithTimestamp(start),
			trace.WithAttributes(
				attribute.String("provider", string(e.Provider)),
				attribute.String("outcome", e.Result.Outcome()),
				attribute.String("score", scoreOf(e)),
			),
		)
		if e.Result.IsSentinel() {
			span.SetStatus(codes.Error, e.Result.Outcome())
		}
		span.End(trace.WithTimestamp(e.Time))

	case *events.CompleteEvent:
		ls, ok := h.spans[e.Lookup]
		if !ok {
			return nil
		}
		delete(h.spans, e.Lookup)
		ls.span.SetAttributes(attribute.Int("degraded", e.Degraded))
		if e.Degraded > 0 {
			ls.span.SetStatus(codes.Error, "degraded results")
		} else {
			ls.span.SetStatus(codes.Ok, "")
		}
		ls.span.End(trace.WithTimestamp(e.Time))

	case *events.RejectedEvent:
		_, span := h.tracer.Start(ctx, "ipcheck.rejected",
			trace.WithTimestamp(e.Time),
			trace.WithAttributes(
				attribute.String("lookup_id", e.Lookup),
				attribute.String("ip", e.IP),
				attribute.String("category", e.Category),
			),
		)
		span.End(trace.WithTimestamp(e.Time))
	}
	return nil
}

func scoreOf(e *events.PartialEvent) string {
	if e.Result == nil {
		return ""
	}
	return e.Result.Score
}

// EventTypes returns nil: every lookup event is traced.
func (h *OTelHook) EventTypes() []events.EventType { return nil }

// Close ends open spans and flushes the exporter.
func (h *OTelHook) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true

	for id, ls := range h.spans {
		ls.span.SetStatus(codes.Error, "shutdown before completion")
		ls.span.End()
		delete(h.spans, id)
	}

	ctx, cancel := context.WithTimeout(context.Background(), duration.OTelExport)
	defer cancel()
	if err := h.tracerProvider.Shutdown(ctx); err != nil {
		h.logger.Warn("otel shutdown failed", "endpoint", h.opts.Endpoint, "error", err)
		return fmt.Errorf("otel: shutdown tracer provider: %w", err)
	}
	return nil
}

// Endpoint returns the OTLP endpoint being used.
func (h *OTelHook) Endpoint() string { return h.opts.Endpoint }

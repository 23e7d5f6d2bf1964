package hooks

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/ipcheck/ipcheck/pkg/output/events"
	"github.com/ipcheck/ipcheck/pkg/scrape"
)

func lookupEvents(id string) []events.Event {
	return []events.Event{
		events.NewStart(id, "8.8.8.8", "stream", []events.ProviderLink{
			{Provider: scrape.AbuseIPDB, URL: "https://www.abuseipdb.com/check/8.8.8.8"},
		}),
		events.NewPartial(id, "8.8.8.8", scrape.AbuseIPDB,
			&scrape.Result{Score: "0%", Reports: "12", Color: scrape.ColorGreen}, 4*time.Second),
		events.NewPartial(id, "8.8.8.8", scrape.VirusTotal,
			&scrape.Result{Score: scrape.ScoreTimeout, Color: scrape.ColorNeutral}, 17*time.Second),
		events.NewComplete(id, "8.8.8.8", map[scrape.Provider]*scrape.Result{
			scrape.AbuseIPDB:  {Score: "0%"},
			scrape.VirusTotal: {Score: scrape.ScoreTimeout},
		}, 17*time.Second),
	}
}

func TestPrometheusHookCountsLookups(t *testing.T) {
	h, err := NewPrometheusHook(PrometheusOptions{})
	require.NoError(t, err)

	ctx := context.Background()
	for _, e := range lookupEvents("a") {
		require.NoError(t, h.OnEvent(ctx, e))
	}
	require.NoError(t, h.OnEvent(ctx, events.NewRejected("b", "10.0.0.1", "Private Network", "not public")))

	assert.Equal(t, 1.0, testutil.ToFloat64(h.lookupsTotal.WithLabelValues("stream")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.rejectedTotal.WithLabelValues("Private Network")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.resultsTotal.WithLabelValues("abuseIpDb", "data")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.resultsTotal.WithLabelValues("virusTotal", "Timeout")))
	assert.Equal(t, 0.0, testutil.ToFloat64(h.inflight))
	assert.Equal(t, 2, testutil.CollectAndCount(h.providerSeconds))
}

func TestPrometheusHookHandler(t *testing.T) {
	h, err := NewPrometheusHook(PrometheusOptions{Namespace: "test"})
	require.NoError(t, err)
	require.NoError(t, h.OnEvent(context.Background(), events.NewStart("a", "1.1.1.1", "cli", nil)))

	rec := httptest.NewRecorder()
	h.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `test_lookups_total{source="cli"} 1`)
}

func TestPrometheusHookProcessMetrics(t *testing.T) {
	h, err := NewPrometheusHook(PrometheusOptions{ProcessMetrics: true})
	require.NoError(t, err)

	families, err := h.Registry().Gather()
	require.NoError(t, err)
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, strings.Join(names, " "), "go_goroutines")
}

func TestOTelHookSpans(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	h := newOTelHook(OTelOptions{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}, tp)

	ctx := context.Background()
	for _, e := range lookupEvents("a") {
		require.NoError(t, h.OnEvent(ctx, e))
	}

	ended := rec.Ended()
	require.Len(t, ended, 3)
	byName := map[string]sdktrace.ReadOnlySpan{}
	for _, s := range ended {
		byName[s.Name()] = s
	}

	root := byName["ipcheck.lookup"]
	require.NotNil(t, root)
	assert.Equal(t, codes.Error, root.Status().Code, "one provider degraded")

	vt := byName["ipcheck.scrape.virusTotal"]
	require.NotNil(t, vt)
	assert.Equal(t, root.SpanContext().SpanID(), vt.Parent().SpanID())
	assert.Equal(t, codes.Error, vt.Status().Code)

	abuse := byName["ipcheck.scrape.abuseIpDb"]
	require.NotNil(t, abuse)
	assert.Equal(t, codes.Unset, abuse.Status().Code)
	assert.InDelta(t, 4*time.Second, abuse.EndTime().Sub(abuse.StartTime()), float64(time.Millisecond))

	assert.Empty(t, h.spans)
	require.NoError(t, h.Close())
}

func TestOTelHookCloseEndsOpenSpans(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	h := newOTelHook(OTelOptions{}, tp)

	require.NoError(t, h.OnEvent(context.Background(), events.NewStart("a", "1.1.1.1", "cli", nil)))
	require.NoError(t, h.Close())
	require.NoError(t, h.Close())

	require.Len(t, rec.Ended(), 1)
	assert.Equal(t, codes.Error, rec.Ended()[0].Status().Code)

	// Events after Close are ignored.
	require.NoError(t, h.OnEvent(context.Background(), events.NewStart("b", "1.1.1.1", "cli", nil)))
	assert.Len(t, rec.Started(), 1)
}

func TestSlogHook(t *testing.T) {
	var buf bytes.Buffer
	h := NewSlogHook(slog.New(slog.NewTextHandler(&buf, nil)))

	for _, e := range lookupEvents("lk-1") {
		require.NoError(t, h.OnEvent(context.Background(), e))
	}
	out := buf.String()

	assert.Contains(t, out, "lookup started")
	assert.Contains(t, out, "lookup_id=lk-1")
	assert.Contains(t, out, "level=WARN msg=\"provider result\"")
	assert.Contains(t, out, "outcome=Timeout")
	assert.Contains(t, out, "degraded=1")
	assert.Nil(t, h.EventTypes())
}

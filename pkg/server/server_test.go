package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"

	"github.com/ipcheck/ipcheck/pkg/mcpserver"
	"github.com/ipcheck/ipcheck/pkg/scrape"
	"github.com/ipcheck/ipcheck/pkg/stream"
)

type fakeScraper struct {
	provider scrape.Provider
	result   *scrape.Result
}

func (f *fakeScraper) Provider() scrape.Provider { return f.provider }
func (f *fakeScraper) URL(ip string) string      { return "https://example.test/" + ip }
func (f *fakeScraper) Scrape(context.Context, string) *scrape.Result {
	return f.result
}

type fakeOpener struct {
	mu     sync.Mutex
	opened []string
	err    error
}

func (o *fakeOpener) OpenBackgroundTab(_ context.Context, url string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opened = append(o.opened, url)
	return o.err
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newTestServer(opener stream.TabOpener, origins ...string) *Server {
	svc := stream.NewService([]scrape.Scraper{
		&fakeScraper{provider: scrape.AbuseIPDB, result: &scrape.Result{Score: "0%", Reports: "0", Color: scrape.ColorGreen}},
		&fakeScraper{provider: scrape.VirusTotal, result: &scrape.Result{Score: "0/94", Color: scrape.ColorGreen}},
	}, stream.WithLogger(quiet()))
	return New(Config{
		Service:        svc,
		Opener:         opener,
		AllowedOrigins: origins,
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, "# metrics\n")
		}),
		Logger: quiet(),
	})
}

func do(t *testing.T, h http.Handler, method, target, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s := newTestServer(nil)
	h := s.Handler()

	assert.Equal(t, http.StatusServiceUnavailable, do(t, h, http.MethodGet, "/health", "").Code)

	s.MarkReady()
	rec := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "virustotal")
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestClassify(t *testing.T) {
	h := newTestServer(nil).Handler()

	rec := do(t, h, http.MethodGet, "/api/classify?ip=172.16.5.4", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "private", got["type"])
	assert.Equal(t, "Private IP", got["category"])

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/api/classify", "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(t, h, http.MethodPost, "/api/classify?ip=1.1.1.1", "").Code)
}

func TestLookup(t *testing.T) {
	h := newTestServer(nil).Handler()

	rec := do(t, h, http.MethodGet, "/api/lookup?ip=1.1.1.1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var rep stream.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rep))
	assert.Len(t, rep.Results, 2)
	assert.Equal(t, "0/94", rep.Results[scrape.VirusTotal].Score)

	rec = do(t, h, http.MethodGet, "/api/lookup?ip=127.0.0.1", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "Loopback Address")
}

func TestOpen(t *testing.T) {
	opener := &fakeOpener{}
	h := newTestServer(opener).Handler()

	rec := do(t, h, http.MethodPost, "/api/open", `{"url":"https://www.virustotal.com/gui/ip-address/1.1.1.1"}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/open", `{"url":"file:///etc/passwd"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/open", `not json`).Code)

	opener.err = errors.New("gone")
	assert.Equal(t, http.StatusBadGateway, do(t, h, http.MethodPost, "/api/open", `{"url":"https://example.com"}`).Code)

	assert.Equal(t, []string{"https://www.virustotal.com/gui/ip-address/1.1.1.1", "https://example.com"}, opener.opened)
}

func TestOpenWithoutBrowser(t *testing.T) {
	h := newTestServer(nil).Handler()
	rec := do(t, h, http.MethodPost, "/api/open", `{"url":"https://example.com"}`)
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestCORS(t *testing.T) {
	h := newTestServer(nil, "http://allowed.test").Handler()

	rec := do(t, h, http.MethodOptions, "/api/classify", "", "Origin", "http://allowed.test")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://allowed.test", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = do(t, h, http.MethodGet, "/api/classify?ip=1.1.1.1", "", "Origin", "http://evil.test")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/classify?ip=1.1.1.1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMCPHonorsAllowedOrigins(t *testing.T) {
	origins := []string{"https://good.test"}
	m := mcpserver.New(&mcpserver.Config{AllowedOrigins: origins, Logger: quiet()})
	s := New(Config{
		AllowedOrigins: origins,
		Service:        stream.NewService(nil, stream.WithLogger(quiet())),
		MCP:            m.HTTPHandler(),
		Logger:         quiet(),
	})
	h := s.Handler()

	rec := do(t, h, http.MethodOptions, "/mcp", "", "Origin", "https://evil.test")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	rec = do(t, h, http.MethodOptions, "/mcp", "", "Origin", "https://good.test")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://good.test", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestMCPGateWrapsOpaqueHandler(t *testing.T) {
	var reached bool
	s := New(Config{
		AllowedOrigins: []string{"https://good.test"},
		Service:        stream.NewService(nil, stream.WithLogger(quiet())),
		MCP: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			reached = true
			w.WriteHeader(http.StatusNoContent)
		}),
		Logger: quiet(),
	})
	rec := do(t, s.Handler(), http.MethodPost, "/mcp", "{}", "Origin", "https://evil.test")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.False(t, reached)
}

func TestMetricsMounted(t *testing.T) {
	rec := do(t, newTestServer(nil).Handler(), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "# metrics\n", rec.Body.String())
}

func TestServeWarnsWithoutAllowedOrigins(t *testing.T) {
	for _, tt := range []struct {
		name    string
		origins []string
		warn    bool
	}{
		{"open", nil, true},
		{"restricted", []string{"https://good.test"}, false},
	} {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			s := New(Config{
				AllowedOrigins: tt.origins,
				Service:        stream.NewService(nil, stream.WithLogger(quiet())),
				Logger:         slog.New(slog.NewTextHandler(&buf, nil)),
			})
			ln, err := net.Listen("tcp", "127.0.0.1:0")
			require.NoError(t, err)

			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			require.NoError(t, s.Serve(ctx, ln))
			assert.Equal(t, tt.warn, strings.Contains(buf.String(), "no allowed origins set"))
		})
	}
}

func TestServeStreamAndShutdown(t *testing.T) {
	s := newTestServer(nil)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	addr := ln.Addr().String()
	ws, err := websocket.Dial("ws://"+addr+"/reputation-stream", "", "http://"+addr)
	require.NoError(t, err)

	require.NoError(t, websocket.Message.Send(ws, `{"ip":"9.9.9.9"}`))
	seen := map[string]bool{}
	for range 2 {
		var frame string
		require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))
		require.NoError(t, websocket.Message.Receive(ws, &frame))
		var m stream.Message
		require.NoError(t, json.Unmarshal([]byte(frame), &m))
		assert.Equal(t, stream.TypePartialResult, m.Type)
		seen[string(m.Provider)] = true
	}
	assert.Len(t, seen, 2)
	require.NoError(t, ws.Close())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("server did not shut down")
	}
}

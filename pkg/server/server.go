// Package server hosts the lookup stream and a small JSON API over HTTP.
//
// Routes:
//
//	GET  /health               liveness and readiness
//	GET  /reputation-stream    websocket lookup stream
//	GET  /api/classify?ip=     address classification
//	GET  /api/lookup?ip=       blocking lookup returning the merged report
//	POST /api/open             {"url": "..."} opens a background tab
//	GET  /metrics              Prometheus exposition, when configured
//	     /mcp                  MCP streamable HTTP, when configured
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/ipcheck/ipcheck/pkg/defaults"
	"github.com/ipcheck/ipcheck/pkg/duration"
	"github.com/ipcheck/ipcheck/pkg/ipclass"
	"github.com/ipcheck/ipcheck/pkg/jsonutil"
	"github.com/ipcheck/ipcheck/pkg/mcpserver"
	"github.com/ipcheck/ipcheck/pkg/stream"
)

// Config wires the server's collaborators.
type Config struct {
	Addr string

	// AllowedOrigins restricts the stream handshake and API CORS. Empty allows any.
	AllowedOrigins []string

	// Service runs lookups. Required.
	Service *stream.Service

	// Opener backs POST /api/open and OPEN_IN_BACKGROUND_TAB. Optional.
	Opener stream.TabOpener

	// Metrics is mounted at /metrics when set.
	Metrics http.Handler

	// MCP is mounted at /mcp when set.
	MCP http.Handler

	Logger *slog.Logger
}

// Server is the HTTP front end.
type Server struct {
	cfg    Config
	logger *slog.Logger
	ready  atomic.Bool
}

// New builds a Server. Call MarkReady once the browser is up.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Addr == "" {
		cfg.Addr = defaults.ServerAddr
	}
	return &Server{cfg: cfg, logger: logger.With("component", "server")}
}

// MarkReady flips /health to 200.
func (s *Server) MarkReady() { s.ready.Store(true) }

// Handler returns the full route table wrapped in middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET "+defaults.StreamPath, stream.Handler(s.cfg.Service, stream.HandlerConfig{
		AllowedOrigins: s.cfg.AllowedOrigins,
		Opener:         s.cfg.Opener,
		Logger:         s.logger,
	}))
	mux.Handle("/api/", s.cors(s.apiRoutes()))
	if s.cfg.Metrics != nil {
		mux.Handle("GET "+defaults.MetricsPath, s.cfg.Metrics)
	}
	if s.cfg.MCP != nil {
		mcp := s.originGate(s.cfg.MCP)
		mux.Handle("/mcp", mcp)
		mux.Handle("/mcp/", mcp)
	}
	return mcpserver.Recovery(s.logger, mcpserver.SecurityHeaders(mux))
}

func (s *Server) apiRoutes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/classify", s.handleClassify)
	mux.HandleFunc("GET /api/lookup", s.handleLookup)
	mux.HandleFunc("POST /api/open", s.handleOpen)
	return mux
}

// ListenAndServe listens on Config.Addr and serves until ctx ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx ends, then shuts down gracefully. In-flight
// lookups get duration.ServerShutdown to finish.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: duration.ServerReadHeader,
		IdleTimeout:       duration.ServerIdle,
		MaxHeaderBytes:    1 << 20,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelDebug),
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	s.logger.Info("listening", "addr", ln.Addr().String(), "stream", defaults.StreamPath)
	if len(s.cfg.AllowedOrigins) == 0 {
		s.logger.Warn("no allowed origins set: any web page can start lookups and open tabs",
			"fix", "set server.allowed_origins or -origins")
	}

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), duration.ServerShutdown)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("shutdown incomplete", "error", err)
		return srv.Close()
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if !s.ready.Load() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "starting"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"version":   defaults.Version,
		"providers": s.cfg.Service.Providers(),
	})
}

type classifyResponse struct {
	IP string `json:"ip"`
	ipclass.Result
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	ip := strings.TrimSpace(r.URL.Query().Get("ip"))
	if ip == "" {
		writeError(w, http.StatusBadRequest, "missing ip query parameter")
		return
	}
	writeJSON(w, http.StatusOK, classifyResponse{IP: ip, Result: ipclass.Classify(ip)})
}

func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	ip := strings.TrimSpace(r.URL.Query().Get("ip"))
	if ip == "" {
		writeError(w, http.StatusBadRequest, "missing ip query parameter")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), duration.LookupMax)
	defer cancel()

	rep := s.cfg.Service.Collect(ctx, ip)
	status := http.StatusOK
	if rep.Rejected() {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, rep)
}

type openRequest struct {
	URL string `json:"url"`
}

func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Opener == nil {
		writeError(w, http.StatusNotImplemented, "no browser attached")
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, defaults.MaxRequestBody))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	}
	var req openRequest
	if err := jsonutil.UnmarshalLenient(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "body must be {\"url\": \"...\"}")
		return
	}
	if err := stream.ValidateTabURL(req.URL); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), duration.TabAction)
	defer cancel()
	if err := s.cfg.Opener.OpenBackgroundTab(ctx, req.URL); err != nil {
		s.logger.Warn("background tab failed", "url", req.URL, "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// cors allows browser callers from AllowedOrigins, or from anywhere when
// the list is empty.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Vary", "Origin")
		origin := r.Header.Get("Origin")
		if origin != "" {
			if !mcpserver.OriginAllowed(s.cfg.AllowedOrigins, origin) {
				writeError(w, http.StatusForbidden, "origin not allowed")
				return
			}
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// originGate refuses requests whose Origin is not in AllowedOrigins and
// leaves CORS headers to next.
func (s *Server) originGate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" && !mcpserver.OriginAllowed(s.cfg.AllowedOrigins, origin) {
			writeError(w, http.StatusForbidden, "origin not allowed")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := jsonutil.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", defaults.ContentTypeJSON)
	w.WriteHeader(status)
	_, _ = w.Write(append(data, '\n'))
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

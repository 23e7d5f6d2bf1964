package mcpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ipcheck/ipcheck/pkg/defaults"
	"github.com/ipcheck/ipcheck/pkg/jsonutil"
	"github.com/ipcheck/ipcheck/pkg/stream"
)

// The SDK defines LoggingLevel as a bare string type.
const (
	logInfo    mcp.LoggingLevel = "info"
	logWarning mcp.LoggingLevel = "warning"
)

const serverInstructions = `ipcheck looks up the reputation of public IP addresses on AbuseIPDB and VirusTotal.

Use classify_ip first when you only need to know whether an address is public,
private, reserved or malformed. It is local and instant.

Use check_ip_reputation for a full lookup. It drives a real browser against both
providers and can take tens of seconds. Non-public addresses are refused without
any network traffic. Scores such as Captcha?, Timeout, Err or ... are placeholders,
not data: say so instead of interpreting them.`

// Config holds MCP server configuration.
type Config struct {
	// Service runs reputation lookups. Required.
	Service *stream.Service

	// Opener backs open_background_tab. The tool is omitted when nil.
	Opener stream.TabOpener

	// AllowedOrigins limits browser callers of the HTTP transport. Empty
	// allows any origin.
	AllowedOrigins []string

	Logger *slog.Logger
}

// Server wraps the MCP server with ipcheck tools.
type Server struct {
	mcp    *mcp.Server
	config *Config
	logger *slog.Logger
	ready  atomic.Bool
}

// MCPServer returns the underlying MCP server, e.g. for in-memory transports.
func (s *Server) MCPServer() *mcp.Server { return s.mcp }

// MarkReady flips /health from 503 to 200.
func (s *Server) MarkReady() { s.ready.Store(true) }

// IsReady reports whether MarkReady has been called.
func (s *Server) IsReady() bool { return s.ready.Load() }

// New creates an MCP server with all tools, resources and prompts registered.
func New(cfg *Config) *Server {
	if cfg == nil {
		cfg = &Config{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config: cfg,
		logger: logger.With("component", "mcp"),
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    defaults.ToolName,
			Title:   "ipcheck IP reputation",
			Version: defaults.Version,
		},
		&mcp.ServerOptions{
			Instructions: serverInstructions,
		},
	)

	s.registerTools()
	s.registerResources()
	s.registerPrompts()

	return s
}

// RunStdio runs the MCP server over stdio until ctx ends or the client leaves.
func (s *Server) RunStdio(ctx context.Context) error {
	s.logger.Info("stdio transport started")
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

// HTTPHandler returns the streamable HTTP transport with CORS and a /health probe.
//
// The handler mounts:
//   - /health  readiness probe (GET, HEAD)
//   - /mcp     streamable HTTP transport
//   - /        streamable HTTP transport
func (s *Server) HTTPHandler() http.Handler {
	streamable := mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server { return s.mcp },
		&mcp.StreamableHTTPOptions{Stateless: false},
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/mcp", streamable)
	mux.Handle("/", streamable)

	return CORS(s.config.AllowedOrigins, Recovery(s.logger, SecurityHeaders(mux)))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", defaults.ContentTypeJSON)
	if !s.IsReady() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"starting","service":"ipcheck-mcp"}`))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok","service":"ipcheck-mcp"}`))
}

// CORS reflects the request origin for browser MCP clients listed in
// allowed, or for any origin when allowed is empty. Other origins get 403.
// Requests without an Origin header pass through untouched.
func CORS(allowed []string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Vary", "Origin")

		origin := r.Header.Get("Origin")
		if origin == "" {
			next.ServeHTTP(w, r)
			return
		}
		if !OriginAllowed(allowed, origin) {
			w.Header().Set("Content-Type", defaults.ContentTypeJSON)
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error":"origin not allowed"}`))
			return
		}

		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers",
			strings.Join([]string{
				"Content-Type",
				"Authorization",
				"Mcp-Session-Id",
				"MCP-Protocol-Version",
				"Last-Event-ID",
				"Accept",
			}, ", "))
		w.Header().Set("Access-Control-Expose-Headers", "Mcp-Session-Id, MCP-Protocol-Version")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// OriginAllowed reports whether origin is in allowed. An empty list allows
// every origin.
func OriginAllowed(allowed []string, origin string) bool {
	return len(allowed) == 0 || slices.Contains(allowed, origin)
}

// Recovery turns a handler panic into a 500 and logs the stack.
func Recovery(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("panic in HTTP handler",
					"path", r.URL.Path,
					"panic", fmt.Sprint(err),
					"stack", string(debug.Stack()))

				// WriteHeader is a no-op once a streamed response has started.
				w.Header().Set("Content-Type", defaults.ContentTypeJSON)
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"error":"internal server error"}`))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// SecurityHeaders sets nosniff and frame-deny on every response.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}

// notifyProgress is a no-op unless the client sent a progress token.
func notifyProgress(ctx context.Context, req *mcp.CallToolRequest, progress, total float64, message string) {
	token := req.Params.GetProgressToken()
	if token == nil || req.Session == nil {
		return
	}
	_ = req.Session.NotifyProgress(ctx, &mcp.ProgressNotificationParams{
		ProgressToken: token,
		Progress:      progress,
		Total:         total,
		Message:       message,
	})
}

func logToSession(ctx context.Context, req *mcp.CallToolRequest, level mcp.LoggingLevel, data any) {
	if req.Session == nil {
		return
	}
	_ = req.Session.Log(ctx, &mcp.LoggingMessageParams{
		Level:  level,
		Logger: defaults.ToolName,
		Data:   data,
	})
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := jsonutil.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling result: %w", err)
	}
	return textResult(string(data)), nil
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: msg},
		},
		IsError: true,
	}
}

func boolPtr(b bool) *bool { return &b }

// parseArgs unmarshals the raw JSON arguments from a tool call into dst.
func parseArgs(req *mcp.CallToolRequest, dst any) error {
	if len(req.Params.Arguments) == 0 {
		return nil
	}
	if err := jsonutil.Unmarshal(req.Params.Arguments, dst); err != nil {
		return fmt.Errorf("parsing tool arguments: %w", err)
	}
	return nil
}

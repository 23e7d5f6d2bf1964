package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ipcheck/ipcheck/pkg/defaults"
	"github.com/ipcheck/ipcheck/pkg/duration"
	"github.com/ipcheck/ipcheck/pkg/mcpserver"
	"github.com/ipcheck/ipcheck/pkg/ui"
)

// runMCP starts the MCP server on stdio, or on streamable HTTP with -http.
func runMCP(args []string) int {
	fs := flag.NewFlagSet("mcp", flag.ContinueOnError)
	var cf CommonFlags
	cf.Register(fs)
	useHTTP := fs.Bool("http", false, "Serve streamable HTTP instead of stdio")
	addr := fs.String("addr", "", "HTTP listen address (default from config server.mcp_addr)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s mcp [flags]\n\n", defaults.ToolName)
		fmt.Fprintf(os.Stderr, "Start an MCP server exposing classify_ip, check_ip_reputation and open_background_tab.\n\n")
		fmt.Fprintf(os.Stderr, "Examples:\n")
		fmt.Fprintf(os.Stderr, "  %s mcp\n", defaults.ToolName)
		fmt.Fprintf(os.Stderr, "  %s mcp -http -addr 127.0.0.1:8788\n\n", defaults.ToolName)
		fmt.Fprintf(os.Stderr, "Flags:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return defaults.ExitSuccess
		}
		return defaults.ExitUserError
	}
	if !*useHTTP {
		// stdout belongs to the protocol.
		cf.Silent = true
	}

	cfg, logger, err := cf.Load(os.Stderr)
	if err != nil {
		ui.PrintError(err.Error())
		return exitCodeFor(err)
	}
	if *addr != "" {
		cfg.Server.MCPAddr = *addr
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	app, err := NewApp(ctx, cfg, logger, AppOptions{Source: "mcp", Browser: true})
	if err != nil {
		ui.PrintError(err.Error())
		return exitCodeFor(err)
	}
	defer app.Close()

	srv := mcpserver.New(&mcpserver.Config{
		Service:        app.Service,
		Opener:         app.Chrome,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         logger,
	})
	srv.MarkReady()

	if !*useHTTP {
		if err := srv.RunStdio(ctx); err != nil && !errors.Is(err, context.Canceled) {
			ui.PrintError(err.Error())
			return defaults.ExitInternalError
		}
		return defaults.ExitSuccess
	}

	// No WriteTimeout: streamable HTTP responses stay open for the whole lookup.
	httpSrv := &http.Server{
		Addr:              cfg.Server.MCPAddr,
		Handler:           srv.HTTPHandler(),
		ReadHeaderTimeout: duration.ServerReadHeader,
		IdleTimeout:       duration.ServerIdle,
		MaxHeaderBytes:    1 << 20,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), duration.ServerShutdown)
		defer shutdownCancel()
		ui.PrintInfo("shutting down")
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("mcp shutdown incomplete", "error", err)
		}
	}()

	ui.PrintBanner()
	ui.PrintConfig([2]string{"MCP", "http://" + cfg.Server.MCPAddr + "/mcp"})
	if len(cfg.Server.AllowedOrigins) == 0 {
		logger.Warn("no allowed origins set: any web page can call the MCP tools",
			"fix", "set server.allowed_origins")
	}
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		ui.PrintError(err.Error())
		return defaults.ExitInternalError
	}
	return defaults.ExitSuccess
}

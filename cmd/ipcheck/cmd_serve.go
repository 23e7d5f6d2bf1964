package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ipcheck/ipcheck/pkg/defaults"
	"github.com/ipcheck/ipcheck/pkg/mcpserver"
	"github.com/ipcheck/ipcheck/pkg/scrape"
	"github.com/ipcheck/ipcheck/pkg/server"
	"github.com/ipcheck/ipcheck/pkg/stream"
	"github.com/ipcheck/ipcheck/pkg/ui"
)

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	var cf CommonFlags
	cf.Register(fs)
	addr := fs.String("addr", "", "Listen address (default from config, env IPCHECK_ADDR)")
	origins := fs.String("origins", "", "Comma-separated allowed Origin values for the stream and API")
	withMCP := fs.Bool("mcp", false, "Also serve MCP streamable HTTP at /mcp")

	fs.Usage = func() {
		serveUsage(os.Stderr)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return defaults.ExitSuccess
		}
		return defaults.ExitUserError
	}

	cfg, logger, err := cf.Load(os.Stderr)
	if err != nil {
		ui.PrintError(err.Error())
		return exitCodeFor(err)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *origins != "" {
		cfg.Server.AllowedOrigins = splitList(*origins)
	}

	ui.PrintBanner()
	ui.PrintConfig(
		[2]string{"Listen", cfg.Server.Addr},
		[2]string{"Stream", "ws://" + cfg.Server.Addr + defaults.StreamPath},
		[2]string{"Origins", strings.Join(cfg.Server.AllowedOrigins, ", ")},
		[2]string{"Headless", fmt.Sprint(cfg.Browser.Headless)},
		[2]string{"MCP", enabled(*withMCP, "/mcp")},
		[2]string{"Tracing", cfg.Telemetry.OTLPEndpoint},
	)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	app, err := NewApp(ctx, cfg, logger, AppOptions{Source: "stream", Browser: true})
	if err != nil {
		ui.PrintError(err.Error())
		return exitCodeFor(err)
	}
	defer app.Close()

	var metrics, mcpHandler http.Handler
	if app.Metrics != nil {
		metrics = app.Metrics.Handler()
	}
	if *withMCP {
		m := mcpserver.New(&mcpserver.Config{
			Service:        app.Service,
			Opener:         app.Chrome,
			AllowedOrigins: cfg.Server.AllowedOrigins,
			Logger:         logger,
		})
		m.MarkReady()
		mcpHandler = m.HTTPHandler()
	}

	srv := server.New(server.Config{
		Addr:           cfg.Server.Addr,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Service:        app.Service,
		Opener:         app.Chrome,
		Metrics:        metrics,
		MCP:            mcpHandler,
		Logger:         logger,
	})
	srv.MarkReady()
	ui.PrintSuccess("ready")

	if err := srv.ListenAndServe(ctx); err != nil {
		ui.PrintError(err.Error())
		return defaults.ExitInternalError
	}
	return defaults.ExitSuccess
}

// serveUsage writes the serve help text up to the flag list.
func serveUsage(w io.Writer) {
	fmt.Fprintf(w, "Usage: %s serve [flags]\n\n", defaults.ToolName)
	fmt.Fprintf(w, "Serve the lookup stream at ws://<addr>%s and the JSON API.\n\n", defaults.StreamPath)
	fmt.Fprintf(w, "Stream protocol:\n")
	fmt.Fprintf(w, "  -> {\"ip\":\"45.155.205.233\"}\n")
	fmt.Fprintf(w, "  <- {\"type\":\"%s\",\"provider\":\"%s\",\"data\":{...}}  (once per provider)\n",
		stream.TypePartialResult, scrape.AbuseIPDB)
	fmt.Fprintf(w, "  -> {\"type\":\"%s\",\"url\":\"https://...\"}\n\n", stream.TypeOpenTab)
	fmt.Fprintf(w, "Flags:\n")
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func enabled(on bool, detail string) string {
	if !on {
		return ""
	}
	return detail
}

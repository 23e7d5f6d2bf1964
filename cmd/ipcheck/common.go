package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/ipcheck/ipcheck/pkg/abuseipdb"
	"github.com/ipcheck/ipcheck/pkg/browser"
	"github.com/ipcheck/ipcheck/pkg/config"
	"github.com/ipcheck/ipcheck/pkg/defaults"
	"github.com/ipcheck/ipcheck/pkg/output/dispatcher"
	"github.com/ipcheck/ipcheck/pkg/output/hooks"
	"github.com/ipcheck/ipcheck/pkg/scrape"
	"github.com/ipcheck/ipcheck/pkg/stream"
	"github.com/ipcheck/ipcheck/pkg/ui"
	"github.com/ipcheck/ipcheck/pkg/virustotal"
)

// CommonFlags are shared by every subcommand that loads configuration.
type CommonFlags struct {
	ConfigPath string
	LogLevel   string
	LogFormat  string
	Headed     bool
	ChromePath string
	NoColor    bool
	Silent     bool
}

// Register adds the common flags to set.
func (cf *CommonFlags) Register(set *flag.FlagSet) {
	set.StringVar(&cf.ConfigPath, "config", "", "YAML config file (env "+config.EnvConfig+")")
	set.StringVar(&cf.LogLevel, "log-level", "", "Log level: debug, info, warn, error")
	set.StringVar(&cf.LogFormat, "log-format", "", "Log format: text or json")
	set.BoolVar(&cf.Headed, "headed", false, "Show the browser window")
	set.StringVar(&cf.ChromePath, "chrome", "", "Chrome or Chromium executable")
	set.BoolVar(&cf.NoColor, "no-color", false, "Disable colored output")
	set.BoolVar(&cf.Silent, "silent", false, "Suppress banner and status lines")
}

// Load reads the config file, applies env and flag overrides and builds
// the logger. Logs go to w.
func (cf *CommonFlags) Load(w io.Writer) (*config.Config, *slog.Logger, error) {
	ui.SetNoColor(cf.NoColor || os.Getenv("NO_COLOR") != "")
	ui.SetSilent(cf.Silent)

	cfg, err := config.Load(config.Path(cf.ConfigPath))
	if err != nil {
		return nil, nil, err
	}
	cfg.ApplyEnv()
	if cf.LogLevel != "" {
		cfg.Log.Level = cf.LogLevel
	}
	if cf.LogFormat != "" {
		cfg.Log.Format = cf.LogFormat
	}
	if cf.Headed {
		cfg.Browser.Headless = false
	}
	if cf.ChromePath != "" {
		cfg.Browser.ExecPath = cf.ChromePath
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	logger, err := config.NewLogger(cfg.Log.Level, cfg.Log.Format, w)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// App holds everything a lookup needs: the browser, the event pipeline and
// the service that ties them together.
type App struct {
	Config     *config.Config
	Logger     *slog.Logger
	Chrome     *browser.Chrome
	Dispatcher *dispatcher.Dispatcher
	Metrics    *hooks.PrometheusHook
	Service    *stream.Service

	otel *hooks.OTelHook
}

// AppOptions select the optional parts of an App.
type AppOptions struct {
	// Source labels lookups in events and metrics.
	Source string
	// Writers receive every lookup event.
	Writers []dispatcher.Writer
	// Metrics enables the Prometheus hook even when telemetry.metrics is off.
	Metrics bool
	// Browser launches Chrome. Without it the service has no scrapers and
	// can only refuse non-public addresses.
	Browser bool
}

// NewApp wires the dispatcher and hooks, launches Chrome when asked and
// builds the lookup service.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts AppOptions) (*App, error) {
	app := &App{Config: cfg, Logger: logger}

	app.Dispatcher = dispatcher.New(dispatcher.Config{Async: true, Logger: logger})
	for _, w := range opts.Writers {
		app.Dispatcher.RegisterWriter(w)
	}
	app.Dispatcher.RegisterHook(hooks.NewSlogHook(logger))

	if opts.Metrics || cfg.Telemetry.Metrics {
		m, err := hooks.NewPrometheusHook(hooks.PrometheusOptions{ProcessMetrics: cfg.Telemetry.ProcessMetrics})
		if err != nil {
			return nil, fmt.Errorf("metrics: %w", err)
		}
		app.Metrics = m
		app.Dispatcher.RegisterHook(m)
	}

	if cfg.Telemetry.OTLPEndpoint != "" {
		h, err := hooks.NewOTelHook(hooks.OTelOptions{
			Endpoint: cfg.Telemetry.OTLPEndpoint,
			Insecure: cfg.Telemetry.OTLPInsecure,
			Headers:  cfg.Telemetry.OTLPHeaders,
			Logger:   logger,
		})
		if err != nil {
			return nil, fmt.Errorf("tracing: %w", err)
		}
		app.otel = h
		app.Dispatcher.RegisterHook(h)
	}

	var scrapers []scrape.Scraper
	if opts.Browser {
		chrome, err := browser.Launch(ctx, cfg.Browser, logger)
		if err != nil {
			app.Close()
			return nil, err
		}
		app.Chrome = chrome
		scrapers = Scrapers(chrome, cfg, logger)
	}

	app.Service = stream.NewService(scrapers,
		stream.WithDispatcher(app.Dispatcher),
		stream.WithLogger(logger),
		stream.WithSource(opts.Source),
	)
	return app, nil
}

// Scrapers binds both provider routines to a runner over windows.
func Scrapers(windows scrape.WindowManager, cfg *config.Config, logger *slog.Logger) []scrape.Scraper {
	runner := scrape.NewRunner(windows,
		scrape.WithSettle(cfg.Scrape.Settle),
		scrape.WithLogger(logger),
	)
	return []scrape.Scraper{
		runner.Bind(abuseipdb.New(cfg.AbuseIPDB(logger))),
		runner.Bind(virustotal.New(cfg.VirusTotal(logger))),
	}
}

// Close drains the event pipeline, then stops tracing and the browser.
func (a *App) Close() {
	if err := a.Dispatcher.Close(); err != nil {
		a.Logger.Warn("closing output", "error", err)
	}
	if a.otel != nil {
		if err := a.otel.Close(); err != nil {
			a.Logger.Warn("flushing traces", "error", err)
		}
	}
	if a.Chrome != nil {
		if err := a.Chrome.Close(); err != nil {
			a.Logger.Warn("closing browser", "error", err)
		}
	}
}

// exitCodeFor maps a setup error to an exit code.
func exitCodeFor(err error) int {
	switch {
	case errors.Is(err, config.ErrInvalidConfig), errors.Is(err, config.ErrMissingRequired),
		errors.Is(err, fs.ErrNotExist):
		return defaults.ExitUserError
	case errors.Is(err, browser.ErrLaunch):
		return defaults.ExitBrowserError
	}
	return defaults.ExitInternalError
}

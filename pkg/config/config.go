// Package config loads the service configuration from a YAML file, applies
// environment overrides and turns it into the settings each component takes.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ipcheck/ipcheck/pkg/abuseipdb"
	"github.com/ipcheck/ipcheck/pkg/browser"
	"github.com/ipcheck/ipcheck/pkg/defaults"
	"github.com/ipcheck/ipcheck/pkg/duration"
	"github.com/ipcheck/ipcheck/pkg/poll"
	"github.com/ipcheck/ipcheck/pkg/virustotal"
)

// Environment variables read by the CLI.
const (
	EnvConfig = "IPCHECK_CONFIG"
	EnvAddr   = "IPCHECK_ADDR"
)

// Config is the whole configuration file.
type Config struct {
	Server    Server         `yaml:"server"`
	Browser   browser.Config `yaml:"browser"`
	Scrape    Scrape         `yaml:"scrape"`
	Providers Providers      `yaml:"providers"`
	Telemetry Telemetry      `yaml:"telemetry"`
	Log       Log            `yaml:"log"`
}

// Server configures the stream and HTTP API listener.
type Server struct {
	Addr    string `yaml:"addr"`
	MCPAddr string `yaml:"mcp_addr"`
	// AllowedOrigins restricts websocket and CORS origins. Empty allows any.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Scrape configures the scrape runner and polling.
type Scrape struct {
	Settle       time.Duration `yaml:"settle"`
	Attempts     int           `yaml:"attempts"`
	Interval     time.Duration `yaml:"interval"`
	PartialAfter int           `yaml:"virustotal_partial_after"`
	// Concurrency bounds how many addresses the lookup command checks at once.
	Concurrency int `yaml:"concurrency"`
}

// Providers configures the provider sites.
type Providers struct {
	AbuseIPDB  AbuseIPDB  `yaml:"abuseipdb"`
	VirusTotal VirusTotal `yaml:"virustotal"`
}

type AbuseIPDB struct {
	BaseURL string `yaml:"base_url"`
}

type VirusTotal struct {
	BaseURL string `yaml:"base_url"`
	// Paths overrides individual selector paths; empty fields keep the defaults.
	Paths virustotal.Paths `yaml:"paths"`
}

// Telemetry configures metrics and tracing.
type Telemetry struct {
	Metrics        bool              `yaml:"metrics"`
	ProcessMetrics bool              `yaml:"process_metrics"`
	OTLPEndpoint   string            `yaml:"otlp_endpoint"`
	OTLPInsecure   bool              `yaml:"otlp_insecure"`
	OTLPHeaders    map[string]string `yaml:"otlp_headers"`
}

// Log configures the structured logger.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: Server{
			Addr:    defaults.ServerAddr,
			MCPAddr: defaults.MCPAddr,
		},
		Browser: browser.DefaultConfig(),
		Scrape: Scrape{
			Settle:       duration.ScrapeSettle,
			Attempts:     defaults.PollAttempts,
			Interval:     duration.PollInterval,
			PartialAfter: defaults.VirusTotalPartialAfter,
			Concurrency:  defaults.ConcurrencyLookup,
		},
		Providers: Providers{
			AbuseIPDB:  AbuseIPDB{BaseURL: defaults.AbuseIPDBBaseURL},
			VirusTotal: VirusTotal{BaseURL: defaults.VirusTotalBaseURL},
		},
		Telemetry: Telemetry{Metrics: true},
		Log:       Log{Level: "info", Format: "text"},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
// Unknown keys are rejected so typos do not silently fall back.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := cfg.decode(data); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate checks ranges and selector syntax.
func (c *Config) Validate() error {
	var problems []string
	if c.Server.Addr == "" {
		return fmt.Errorf("%w: server.addr", ErrMissingRequired)
	}
	if c.Scrape.Attempts < 1 {
		problems = append(problems, "scrape.attempts must be at least 1")
	}
	if c.Scrape.Interval < 0 || c.Scrape.Settle < 0 {
		problems = append(problems, "scrape durations must not be negative")
	}
	if c.Scrape.PartialAfter < 0 || c.Scrape.PartialAfter >= c.Scrape.Attempts {
		problems = append(problems, "scrape.virustotal_partial_after must be below scrape.attempts")
	}
	if c.Scrape.Concurrency < 1 || c.Scrape.Concurrency > defaults.ConcurrencyMax {
		problems = append(problems, fmt.Sprintf("scrape.concurrency must be between 1 and %d", defaults.ConcurrencyMax))
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		problems = append(problems, err.Error())
	}
	if f := strings.ToLower(c.Log.Format); f != "text" && f != "json" {
		problems = append(problems, "log.format must be text or json")
	}
	if err := c.Providers.VirusTotal.Paths.WithDefaults().Validate(); err != nil {
		problems = append(problems, err.Error())
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// Poll returns the polling budget.
func (c *Config) Poll() poll.Config {
	return poll.Config{MaxAttempts: c.Scrape.Attempts, Interval: c.Scrape.Interval}
}

// AbuseIPDB returns the AbuseIPDB routine settings.
func (c *Config) AbuseIPDB(logger *slog.Logger) abuseipdb.Config {
	return abuseipdb.Config{
		BaseURL: c.Providers.AbuseIPDB.BaseURL,
		Poll:    c.Poll(),
		Logger:  logger,
	}
}

// VirusTotal returns the VirusTotal routine settings.
func (c *Config) VirusTotal(logger *slog.Logger) virustotal.Config {
	return virustotal.Config{
		BaseURL:      c.Providers.VirusTotal.BaseURL,
		Paths:        c.Providers.VirusTotal.Paths,
		Poll:         c.Poll(),
		PartialAfter: c.Scrape.PartialAfter,
		Logger:       logger,
	}
}

// ApplyEnv overrides the listen address from IPCHECK_ADDR.
func (c *Config) ApplyEnv() {
	c.Server.Addr = envOrDefault(EnvAddr, c.Server.Addr)
}

// Path returns flagValue, or IPCHECK_CONFIG when the flag is empty.
func Path(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return envOrDefault(EnvConfig, "")
}

func envOrDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

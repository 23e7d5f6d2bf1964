// Package duration provides canonical time constants for the entire codebase.
// This is the SINGLE SOURCE OF TRUTH for all time-based configuration.
//
// Usage:
//
//	ctx, cancel := context.WithTimeout(ctx, duration.LookupMax)
//	Interval: duration.PollInterval,
//
// DO NOT use hardcoded time.Duration values like `2 * time.Second` anywhere.
// Instead, reference the appropriate constant from this package.
package duration

import "time"

// ============================================================================
// SCRAPE TIMING
// ============================================================================
//
// A scrape run waits ScrapeSettle after opening its window, then polls the
// page every PollInterval until the attempt budget runs out.
// ============================================================================

const (
	// ScrapeSettle is the pause between window creation and the first
	// snapshot, giving navigation and first paint a head start (2s)
	ScrapeSettle = 2 * time.Second

	// PollInterval is the sleep between two poll attempts (1s)
	PollInterval = 1 * time.Second

	// LookupMax bounds a whole lookup from the CLI or MCP (2min)
	LookupMax = 2 * time.Minute
)

// ============================================================================
// BROWSER LIFECYCLE
// ============================================================================

const (
	// BrowserStartup bounds launching Chrome and attaching to it (30s)
	BrowserStartup = 30 * time.Second

	// BrowserShutdown is the grace period before the process tree is killed (5s)
	BrowserShutdown = 5 * time.Second

	// TabAction bounds a single CDP command such as creating or closing a target (10s)
	TabAction = 10 * time.Second
)

// ============================================================================
// SERVER TIMEOUTS
// ============================================================================

const (
	// ServerReadHeader bounds reading request headers (10s)
	ServerReadHeader = 10 * time.Second

	// ServerIdle is the keep-alive idle timeout (120s)
	ServerIdle = 120 * time.Second

	// ServerShutdown is the graceful shutdown window (10s)
	ServerShutdown = 10 * time.Second

	// StreamWrite bounds writing one message to a stream client (10s)
	StreamWrite = 10 * time.Second
)

// ============================================================================
// TELEMETRY
// ============================================================================

const (
	// OTelExport bounds flushing spans on shutdown (5s)
	OTelExport = 5 * time.Second
)

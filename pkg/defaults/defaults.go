// Package defaults provides canonical default values for the entire codebase.
// This is the SINGLE SOURCE OF TRUTH for all runtime configuration defaults.
//
// Usage:
//
//	cfg.MaxAttempts = defaults.PollAttempts
//	w.Header().Set("Content-Type", defaults.ContentTypeJSON)
//
// DO NOT use hardcoded values like `MaxAttempts: 15` anywhere.
// Instead, reference the appropriate constant from this package.
package defaults

import "fmt"

// Version is the current ipcheck version
const Version = "1.2.0"

// ToolName is the canonical binary and service name.
const ToolName = "ipcheck"

// UserAgent identifies ipcheck on its own HTTP surfaces.
var UserAgent = fmt.Sprintf("%s/%s", ToolName, Version)

// ============================================================================
// POLLING
// ============================================================================

const (
	// PollAttempts is the attempt budget of one extraction routine (15)
	PollAttempts = 15

	// VirusTotalPartialAfter is the attempt index after which a VirusTotal
	// score is returned without country and date (10)
	VirusTotalPartialAfter = 10
)

// ============================================================================
// PROVIDERS
// ============================================================================

const (
	// AbuseIPDBBaseURL is the AbuseIPDB site root.
	AbuseIPDBBaseURL = "https://www.abuseipdb.com"

	// VirusTotalBaseURL is the VirusTotal site root.
	VirusTotalBaseURL = "https://www.virustotal.com"
)

// ============================================================================
// DOM SNAPSHOTS
// ============================================================================

const (
	// MaxDOMDepth caps how deep a snapshot or a tree walk descends,
	// counting shadow root crossings (256)
	MaxDOMDepth = 256
)

// ============================================================================
// CONCURRENCY SETTINGS
// ============================================================================

const (
	// ConcurrencyLookup is the number of CLI lookups in flight; each one owns
	// two browser windows (2)
	ConcurrencyLookup = 2

	// ConcurrencyMax caps the -c flag (8)
	ConcurrencyMax = 8
)

// ============================================================================
// SERVER
// ============================================================================

const (
	// ServerAddr is the default listen address of `ipcheck serve` (loopback only)
	ServerAddr = "127.0.0.1:8787"

	// MCPAddr is the default listen address of `ipcheck mcp -http`
	MCPAddr = "127.0.0.1:8788"

	// StreamPath is the websocket endpoint carrying lookups
	StreamPath = "/reputation-stream"

	// MetricsPath is where Prometheus metrics are served
	MetricsPath = "/metrics"

	// ContentTypeJSON is the JSON content type
	ContentTypeJSON = "application/json"

	// MaxRequestBody caps request bodies on the HTTP API (64KB)
	MaxRequestBody = 64 * 1024
)

package mcpserver

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ipcheck/ipcheck/pkg/duration"
	"github.com/ipcheck/ipcheck/pkg/ipclass"
	"github.com/ipcheck/ipcheck/pkg/scrape"
	"github.com/ipcheck/ipcheck/pkg/stream"
)

func (s *Server) registerTools() {
	s.addClassifyTool()
	s.addReputationTool()
	if s.config.Opener != nil {
		s.addOpenTabTool()
	}
}

var ipArgSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"ip": map[string]any{
			"type":        "string",
			"description": "IPv4 or IPv6 address. Surrounding whitespace is ignored.",
		},
	},
	"required": []string{"ip"},
}

type ipArgs struct {
	IP string `json:"ip"`
}

// ---------------------------------------------------------------------------
// classify_ip
// ---------------------------------------------------------------------------

func (s *Server) addClassifyTool() {
	s.mcp.AddTool(
		&mcp.Tool{
			Name:  "classify_ip",
			Title: "Classify IP Address",
			Description: `Decide whether a token is a valid IPv4/IPv6 address and whether it is publicly routable.

Local only. No network traffic.

EXAMPLE INPUTS:
• {"ip": "8.8.8.8"}        → public, "Public IP"
• {"ip": "192.168.1.10"}   → private, "Private IP"
• {"ip": "fe80::1"}        → private, "Link-Local Address"
• {"ip": "999.1.1.1"}      → invalid

Returns: valid, type (public | private | invalid), category.`,
			InputSchema: ipArgSchema,
			Annotations: &mcp.ToolAnnotations{
				ReadOnlyHint:   true,
				IdempotentHint: true,
				OpenWorldHint:  boolPtr(false),
				Title:          "Classify IP Address",
			},
		},
		s.handleClassify,
	)
}

type classifyResponse struct {
	IP string `json:"ip"`
	ipclass.Result
}

func (s *Server) handleClassify(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args ipArgs
	if err := parseArgs(req, &args); err != nil {
		return errorResult(fmt.Sprintf("invalid arguments: %v. Expected 'ip' (string).", err)), nil
	}
	ip := strings.TrimSpace(args.IP)
	if ip == "" {
		return errorResult("'ip' is required, e.g. {\"ip\": \"8.8.8.8\"}"), nil
	}
	return jsonResult(classifyResponse{IP: ip, Result: ipclass.Classify(ip)})
}

// ---------------------------------------------------------------------------
// check_ip_reputation
// ---------------------------------------------------------------------------

func (s *Server) addReputationTool() {
	s.mcp.AddTool(
		&mcp.Tool{
			Name:  "check_ip_reputation",
			Title: "Check IP Reputation",
			Description: `Look up a public IP address on AbuseIPDB and VirusTotal through a real browser.

USE THIS TOOL WHEN the user wants abuse scores, report counts or detections for an address.
Call classify_ip instead when only the address scope matters.

Both providers run concurrently. One progress notification is sent per provider.
Non-public addresses are refused without any network traffic (rejected: true).

Placeholder scores:
• Captcha?  the provider showed a bot challenge
• Timeout   the page never rendered a result
• Err       the browser failed
• ...       VirusTotal had not finished its analysis

Returns: classification, per-provider results with score, color and optional
reports, country, domain and date fields, plus the provider page URLs.`,
			InputSchema: ipArgSchema,
			Annotations: &mcp.ToolAnnotations{
				ReadOnlyHint:   true,
				IdempotentHint: false,
				OpenWorldHint:  boolPtr(true),
				Title:          "Check IP Reputation",
			},
		},
		s.handleReputation,
	)
}

type providerReport struct {
	Provider scrape.Provider `json:"provider"`
	URL      string          `json:"url"`
	*scrape.Result
}

type reputationResponse struct {
	IP             string           `json:"ip"`
	Classification ipclass.Result   `json:"classification"`
	Rejected       bool             `json:"rejected"`
	Results        []providerReport `json:"results,omitempty"`
	Degraded       int              `json:"degraded"`
}

func (s *Server) handleReputation(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.config.Service == nil {
		return errorResult("reputation lookups are not available: no browser configured for this server"), nil
	}
	var args ipArgs
	if err := parseArgs(req, &args); err != nil {
		return errorResult(fmt.Sprintf("invalid arguments: %v. Expected 'ip' (string).", err)), nil
	}
	ip := strings.TrimSpace(args.IP)
	if ip == "" {
		return errorResult("'ip' is required, e.g. {\"ip\": \"8.8.8.8\"}"), nil
	}

	resp := reputationResponse{IP: ip, Classification: ipclass.Classify(ip)}
	if resp.Classification.Type != ipclass.Public {
		resp.Rejected = true
		logToSession(ctx, req, logWarning, fmt.Sprintf("%s not looked up: %s", ip, stream.CategoryOf(resp.Classification)))
		return jsonResult(resp)
	}

	ctx, cancel := context.WithTimeout(ctx, duration.LookupMax)
	defer cancel()

	urls := make(map[scrape.Provider]string)
	for _, link := range s.config.Service.Links(ip) {
		urls[link.Provider] = link.URL
	}
	total := float64(len(urls))
	logToSession(ctx, req, logInfo, fmt.Sprintf("looking up %s on %d providers", ip, len(urls)))

	var (
		mu   sync.Mutex
		done float64
	)
	s.config.Service.Lookup(ctx, ip, func(m stream.Message) {
		if m.Type != stream.TypePartialResult {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		done++
		resp.Results = append(resp.Results, providerReport{Provider: m.Provider, URL: urls[m.Provider], Result: m.Data})
		if m.Data.IsSentinel() {
			resp.Degraded++
		}
		notifyProgress(ctx, req, done, total, fmt.Sprintf("%s: %s", m.Provider.DisplayName(), m.Data.Score))
	})

	return jsonResult(resp)
}

// ---------------------------------------------------------------------------
// open_background_tab
// ---------------------------------------------------------------------------

func (s *Server) addOpenTabTool() {
	s.mcp.AddTool(
		&mcp.Tool{
			Name:  "open_background_tab",
			Title: "Open Background Tab",
			Description: `Open an absolute http(s) URL in a background tab of the lookup browser.

Typically used with a provider URL returned by check_ip_reputation so the user can
inspect the full page. Fire and forget: nothing is scraped.`,
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"url": map[string]any{
						"type":        "string",
						"description": "Absolute http or https URL.",
					},
				},
				"required": []string{"url"},
			},
			Annotations: &mcp.ToolAnnotations{
				ReadOnlyHint:    false,
				DestructiveHint: boolPtr(false),
				OpenWorldHint:   boolPtr(true),
				Title:           "Open Background Tab",
			},
		},
		s.handleOpenTab,
	)
}

type openTabArgs struct {
	URL string `json:"url"`
}

func (s *Server) handleOpenTab(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args openTabArgs
	if err := parseArgs(req, &args); err != nil {
		return errorResult(fmt.Sprintf("invalid arguments: %v. Expected 'url' (string).", err)), nil
	}
	if err := stream.ValidateTabURL(args.URL); err != nil {
		return errorResult(err.Error()), nil
	}
	ctx, cancel := context.WithTimeout(ctx, duration.TabAction)
	defer cancel()
	if err := s.config.Opener.OpenBackgroundTab(ctx, args.URL); err != nil {
		return errorResult(fmt.Sprintf("opening tab: %v", err)), nil
	}
	return textResult("opened " + args.URL), nil
}

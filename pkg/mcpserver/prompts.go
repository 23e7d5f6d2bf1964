package mcpserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func (s *Server) registerPrompts() {
	s.mcp.AddPrompt(
		&mcp.Prompt{
			Name:        "investigate_ip",
			Description: "Classify an address, look up its reputation and summarise the verdict.",
			Arguments: []*mcp.PromptArgument{
				{Name: "ip", Description: "IPv4 or IPv6 address to investigate", Required: true},
				{Name: "context", Description: "Where the address was seen, e.g. 'ssh auth log' or 'web access log'", Required: false},
			},
		},
		func(_ context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
			ip := strings.TrimSpace(req.Params.Arguments["ip"])
			if ip == "" {
				return nil, fmt.Errorf("'ip' argument is required")
			}
			seen := req.Params.Arguments["context"]
			if seen == "" {
				seen = "an unspecified source"
			}

			return &mcp.GetPromptResult{
				Description: "Investigate " + ip,
				Messages: []*mcp.PromptMessage{
					{
						Role: "user",
						Content: &mcp.TextContent{
							Text: fmt.Sprintf(`Investigate the address %s, seen in %s.

## Step 1: Classify
Run classify_ip on %s. If it is not public, report its category and stop:
private, reserved and documentation ranges have no public reputation.

## Step 2: Look up
Run check_ip_reputation on %s. It takes a while; both providers run at once.

## Step 3: Summarise
- AbuseIPDB: confidence score, report count, country and ISP domain.
- VirusTotal: detections out of engines, and the analysis date.
- Treat Captcha?, Timeout, Err and ... as missing data, not as clean.
- Give a one-line verdict: block, watch, or benign, and say how confident you are.
- Include the provider URLs so the user can check the pages themselves.`, ip, seen, ip, ip),
						},
					},
				},
			}, nil
		},
	)
}

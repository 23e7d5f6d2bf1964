package mcpserver

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ipcheck/ipcheck/pkg/defaults"
	"github.com/ipcheck/ipcheck/pkg/ipclass"
	"github.com/ipcheck/ipcheck/pkg/jsonutil"
	"github.com/ipcheck/ipcheck/pkg/scrape"
)

const (
	versionURI    = "ipcheck://version"
	exclusionsURI = "ipcheck://exclusions"
)

func (s *Server) registerResources() {
	s.addJSONResource(versionURI, "ipcheck Version",
		"Server version, tools and providers.", s.versionInfo)
	s.addJSONResource(exclusionsURI, "Address Exclusion Tables",
		"Ordered IPv4 and IPv6 CIDR tables used to refuse non-public addresses. First match wins.", exclusionInfo)
}

func (s *Server) addJSONResource(uri, name, description string, build func() any) {
	s.mcp.AddResource(
		&mcp.Resource{
			URI:         uri,
			Name:        name,
			Description: description,
			MIMEType:    defaults.ContentTypeJSON,
		},
		func(_ context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			data, err := jsonutil.MarshalIndent(build(), "", "  ")
			if err != nil {
				return nil, err
			}
			return &mcp.ReadResourceResult{
				Contents: []*mcp.ResourceContents{
					{URI: uri, MIMEType: defaults.ContentTypeJSON, Text: string(data)},
				},
			}, nil
		},
	)
}

func (s *Server) versionInfo() any {
	tools := []string{"classify_ip", "check_ip_reputation"}
	if s.config.Opener != nil {
		tools = append(tools, "open_background_tab")
	}
	providers := scrape.Providers
	if s.config.Service != nil {
		providers = s.config.Service.Providers()
	}
	return map[string]any{
		"name":      defaults.ToolName,
		"version":   defaults.Version,
		"tools":     tools,
		"providers": providers,
	}
}

func exclusionInfo() any {
	v4, v6 := ipclass.Tables()
	return map[string]any{
		"ipv4": v4,
		"ipv6": v6,
	}
}

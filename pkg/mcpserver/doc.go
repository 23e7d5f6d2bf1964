// Package mcpserver exposes ipcheck as a Model Context Protocol (MCP) server,
// so an assistant can classify addresses and run reputation lookups.
//
// # Capabilities
//
//   - Tools:     classify_ip, check_ip_reputation, open_background_tab
//   - Resources: ipcheck://version, ipcheck://exclusions
//   - Prompts:   investigate_ip
//
// check_ip_reputation drives the same lookup service as the websocket stream
// and reports one progress notification per provider as results arrive.
// open_background_tab is only registered when a tab opener is configured.
//
// # Transports
//
//   - stdio:  stdin/stdout, for IDE integrations.
//   - HTTP:   streamable HTTP mounted at /mcp and /, with /health.
package mcpserver

// Command ipcheck looks up the reputation of IP addresses on AbuseIPDB and
// VirusTotal by driving a real Chrome, from the terminal, over a websocket
// stream, or as an MCP server.
package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/ipcheck/ipcheck/pkg/defaults"
	"github.com/ipcheck/ipcheck/pkg/ipclass"
	"github.com/ipcheck/ipcheck/pkg/ui"
)

func printUsage() {
	ui.PrintBanner()

	fmt.Println(ui.SectionStyle.Render("COMMANDS"))
	fmt.Println()
	for _, c := range [][2]string{
		{"lookup  ", "Look up addresses and print a card, JSON, JSONL or a report"},
		{"serve   ", "Serve the websocket lookup stream, JSON API and /metrics"},
		{"mcp     ", "Run as an MCP server (stdio or streamable HTTP)"},
		{"classify", "Classify addresses as public, private or invalid (offline)"},
		{"version ", "Print version information"},
	} {
		fmt.Printf("  %s  %s\n", ui.ConfigValueStyle.Render(c[0]), c[1])
	}
	fmt.Println()
	fmt.Println(ui.SectionStyle.Render("EXAMPLES"))
	fmt.Println()
	fmt.Printf("  %s lookup 45.155.205.233\n", defaults.ToolName)
	fmt.Printf("  %s lookup -o markdown -l suspects.txt\n", defaults.ToolName)
	fmt.Printf("  %s serve -addr 127.0.0.1:8787 -mcp\n", defaults.ToolName)
	fmt.Printf("  %s classify 10.0.0.1 2001:db8::1\n", defaults.ToolName)
	fmt.Println()
	fmt.Printf("Run '%s <command> -h' for command flags.\n", defaults.ToolName)
}

func printVersion() {
	fmt.Printf("%s %s (commit %s, %s %s/%s)\n",
		defaults.ToolName, ui.Version, ui.Commit, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(defaults.ExitUserError)
	}

	switch os.Args[1] {
	case "lookup", "check":
		os.Exit(runLookup(os.Args[2:]))
	case "serve", "server":
		os.Exit(runServe(os.Args[2:]))
	case "mcp":
		os.Exit(runMCP(os.Args[2:]))
	case "classify":
		os.Exit(runClassify(os.Args[2:], os.Stdin, os.Stdout))
	case "-v", "--version", "version":
		printVersion()
	case "-h", "--help", "help":
		printUsage()
	default:
		// A bare address is shorthand for lookup.
		if ipclass.IsValidIP(os.Args[1]) {
			os.Exit(runLookup(os.Args[1:]))
		}
		ui.PrintError(fmt.Sprintf("unknown command %q", os.Args[1]))
		printUsage()
		os.Exit(defaults.ExitUserError)
	}
}

package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/ipcheck/ipcheck/pkg/defaults"
)

// Build information. Commit can be overridden at build time via ldflags:
// go build -ldflags "-X github.com/ipcheck/ipcheck/pkg/ui.Commit=abc123"
var (
	Version = defaults.Version
	Commit  = "dev"
)

var (
	silentMode  bool
	noColorMode bool
	uiMu        sync.RWMutex

	// stderr is where banners and status lines go.
	stderr io.Writer = os.Stderr
)

// SetSilent suppresses banners and status lines.
func SetSilent(silent bool) {
	uiMu.Lock()
	defer uiMu.Unlock()
	silentMode = silent
}

// IsSilent returns whether silent mode is enabled.
func IsSilent() bool {
	uiMu.RLock()
	defer uiMu.RUnlock()
	return silentMode
}

// SetNoColor disables colored output.
func SetNoColor(noColor bool) {
	uiMu.Lock()
	defer uiMu.Unlock()
	noColorMode = noColor
	if noColor {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}

// IsNoColor returns whether color is disabled.
func IsNoColor() bool {
	uiMu.RLock()
	defer uiMu.RUnlock()
	return noColorMode
}

const bannerArt = `
 _            _               _    
(_)_ __   ___| |__   ___  ___| | __
| | '_ \ / __| '_ \ / _ \/ __| |/ /
| | |_) | (__| | | |  __/ (__|   < 
|_| .__/ \___|_| |_|\___|\___|_|\_\
  |_|                              
`

const bannerSeparator = "________________________________________________"

// PrintBanner prints the banner and version to stderr.
func PrintBanner() {
	if IsSilent() {
		return
	}
	for _, line := range strings.Split(bannerArt, "\n") {
		if line != "" {
			fmt.Fprintln(stderr, BannerStyle.Render(line))
		}
	}
	fmt.Fprintf(stderr, "              v%s\n\n", VersionStyle.Render(Version))
}

// PrintConfig prints settings in the order given, ffuf style:
//
//	:: Listen               : 127.0.0.1:8787
func PrintConfig(pairs ...[2]string) {
	if IsSilent() {
		return
	}
	for _, p := range pairs {
		if p[1] == "" {
			continue
		}
		fmt.Fprintf(stderr, " :: %-20s : %s\n", ConfigLabelStyle.Render(p[0]), ConfigValueStyle.Render(p[1]))
	}
	fmt.Fprintf(stderr, "%s\n\n", DividerStyle.Render(bannerSeparator))
}

// PrintSection prints a section header.
func PrintSection(title string) {
	if IsSilent() {
		return
	}
	fmt.Fprintln(stderr)
	fmt.Fprintln(stderr, SectionStyle.Render("> "+title))
	fmt.Fprintln(stderr, DividerStyle.Render(strings.Repeat("-", 60)))
}

// PrintSuccess prints a success message to stderr.
func PrintSuccess(message string) {
	if IsSilent() {
		return
	}
	fmt.Fprintln(stderr, SuccessStyle.Render("  "+Icon("✔", "[+]")+" "+message))
}

// PrintError prints an error message to stderr. Errors are shown even in
// silent mode.
func PrintError(message string) {
	fmt.Fprintln(stderr, ErrorStyle.Render("  "+Icon("✖", "[X]")+" "+message))
}

// PrintWarning prints a warning message to stderr.
func PrintWarning(message string) {
	if IsSilent() {
		return
	}
	fmt.Fprintln(stderr, WarningStyle.Render("  [!] "+message))
}

// PrintInfo prints an info message to stderr.
func PrintInfo(message string) {
	if IsSilent() {
		return
	}
	fmt.Fprintf(stderr, "  %s %s\n", MutedStyle.Render("*"), message)
}

package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"

	"github.com/ipcheck/ipcheck/pkg/defaults"
	"github.com/ipcheck/ipcheck/pkg/scrape"
)

func captureStderr(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	old := stderr
	stderr = &buf
	t.Cleanup(func() { stderr = old })
	return &buf
}

func TestVersion(t *testing.T) {
	assert.Equal(t, defaults.Version, Version)
	assert.NotEmpty(t, Commit)
}

func TestSilentSuppressesStatusButNotErrors(t *testing.T) {
	buf := captureStderr(t)
	SetSilent(true)
	t.Cleanup(func() { SetSilent(false) })

	PrintBanner()
	PrintInfo("info")
	PrintWarning("warn")
	PrintSuccess("ok")
	PrintSection("section")
	PrintConfig([2]string{"Listen", "127.0.0.1:8787"})
	assert.Empty(t, buf.String())

	PrintError("broken")
	assert.Contains(t, buf.String(), "broken")
}

func TestPrintConfigSkipsEmpty(t *testing.T) {
	buf := captureStderr(t)
	PrintConfig([2]string{"Listen", "127.0.0.1:8787"}, [2]string{"Proxy", ""})

	out := buf.String()
	assert.Contains(t, out, "127.0.0.1:8787")
	assert.NotContains(t, out, "Proxy")
}

func TestPrintBanner(t *testing.T) {
	buf := captureStderr(t)
	PrintBanner()
	assert.Contains(t, buf.String(), Version)
}

func TestRenderCard(t *testing.T) {
	lipgloss.SetColorProfile(termenv.Ascii)

	out := RenderCard("8.8.8.8", "Public IP", []ProviderRow{
		{
			Provider: scrape.AbuseIPDB,
			URL:      "https://www.abuseipdb.com/check/8.8.8.8",
			Result:   &scrape.Result{Score: "0%", Reports: "12", Color: scrape.ColorGreen},
		},
		{Provider: scrape.VirusTotal},
	})

	for _, want := range []string{
		"8.8.8.8", "Public IP",
		"AbuseIPDB", "0%", "Reports", "12", "https://www.abuseipdb.com/check/8.8.8.8",
		"VirusTotal", scrape.ScorePending,
	} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "Country", "empty fields are omitted")
}

func TestRenderRejected(t *testing.T) {
	lipgloss.SetColorProfile(termenv.Ascii)
	out := RenderRejected("10.0.0.1", "Private IP")
	assert.Equal(t, "10.0.0.1  Private IP, not looked up", strings.TrimSpace(out))
}

func TestScoreStyleFallsBackToMuted(t *testing.T) {
	assert.Equal(t, lipgloss.Color(Muted), ScoreStyle("").GetForeground())
	assert.Equal(t, lipgloss.Color(scrape.ColorRed), ScoreStyle(scrape.ColorRed).GetForeground())
}

func TestIcon(t *testing.T) {
	got := Icon("✔", "[+]")
	assert.Contains(t, []string{"✔", "[+]"}, got)
}

package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ipcheck/ipcheck/pkg/browser"
	"github.com/ipcheck/ipcheck/pkg/config"
	"github.com/ipcheck/ipcheck/pkg/defaults"
	"github.com/ipcheck/ipcheck/pkg/ipclass"
	"github.com/ipcheck/ipcheck/pkg/runner"
	"github.com/ipcheck/ipcheck/pkg/scrape"
	"github.com/ipcheck/ipcheck/pkg/stream"
	"github.com/ipcheck/ipcheck/pkg/ui"
)

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestCollectTargets(t *testing.T) {
	list := filepath.Join(t.TempDir(), "ips.txt")
	require.NoError(t, os.WriteFile(list, []byte("# suspects\n1.1.1.1\n\n 8.8.8.8 # resolver\n1.1.1.1\n"), 0o600))

	got, err := collectTargets([]string{"9.9.9.9", "8.8.8.8"}, list, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"9.9.9.9", "8.8.8.8", "1.1.1.1"}, got)

	got, err = collectTargets(nil, "-", strings.NewReader("2001:4860::8888\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"2001:4860::8888"}, got)

	_, err = collectTargets(nil, filepath.Join(t.TempDir(), "missing"), nil)
	assert.Error(t, err)
}

func TestResolveFormat(t *testing.T) {
	assert.Equal(t, "csv", resolveFormat("CSV", "", true))
	assert.Equal(t, formatTemplate, resolveFormat("", "report.tmpl", true))
	assert.Equal(t, formatCard, resolveFormat("", "", true))
	assert.Equal(t, formatJSONL, resolveFormat("", "", false))
}

func TestLookupWriters(t *testing.T) {
	w := nopCloser{io.Discard}

	for _, f := range []string{formatCard, formatJSON} {
		ws, err := lookupWriters(f, "", w)
		require.NoError(t, err)
		assert.Empty(t, ws, f)
	}

	ws, err := lookupWriters(formatJSONL, "", w)
	require.NoError(t, err)
	assert.Len(t, ws, 1)

	ws, err = lookupWriters("markdown", "", w)
	require.NoError(t, err)
	assert.Len(t, ws, 1)

	_, err = lookupWriters(formatTemplate, "", w)
	assert.Error(t, err)

	_, err = lookupWriters("yaml", "", w)
	assert.ErrorContains(t, err, "unknown output format")
}

func TestRunClassify(t *testing.T) {
	ui.SetNoColor(true)
	var out bytes.Buffer
	code := runClassify([]string{"-json", "8.8.8.8", "192.168.1.1", "not-an-ip"}, nil, &out)
	assert.Equal(t, defaults.ExitUserError, code)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], `"type":"public"`)
	assert.Contains(t, lines[1], `"category":"Private IP"`)
	assert.Contains(t, lines[2], `"valid":false`)

	out.Reset()
	code = runClassify([]string{"-l", "-"}, strings.NewReader("127.0.0.1\n"), &out)
	assert.Equal(t, defaults.ExitSuccess, code)
	assert.Contains(t, out.String(), "Loopback Address")

	assert.Equal(t, defaults.ExitUserError, runClassify(nil, nil, &out))
}

type stubScraper struct {
	provider scrape.Provider
	result   *scrape.Result
}

func (s stubScraper) Provider() scrape.Provider { return s.provider }
func (s stubScraper) URL(ip string) string      { return "https://example.test/" + ip }
func (s stubScraper) Scrape(context.Context, string) *scrape.Result {
	return s.result
}

func TestRenderReport(t *testing.T) {
	ui.SetNoColor(true)
	svc := stream.NewService([]scrape.Scraper{
		stubScraper{scrape.AbuseIPDB, &scrape.Result{Score: "87%", Reports: "412", Color: scrape.ColorRed}},
		stubScraper{scrape.VirusTotal, &scrape.Result{Score: "5/94", Color: scrape.ColorAmber}},
	}, stream.WithLogger(quiet()))

	card := renderReport(svc, svc.Collect(context.Background(), "45.155.205.233"))
	assert.Contains(t, card, "45.155.205.233")
	assert.Contains(t, card, "87%")
	assert.Contains(t, card, "5/94")
	assert.Contains(t, card, "https://example.test/45.155.205.233")

	line := renderReport(svc, svc.Collect(context.Background(), "banana"))
	assert.Contains(t, line, "Invalid IP")

	assert.Empty(t, renderReport(svc, nil))
}

func TestLookupExitCode(t *testing.T) {
	ok := &stream.Report{Results: map[scrape.Provider]*scrape.Result{scrape.AbuseIPDB: {Score: "0%"}}}
	degraded := &stream.Report{Results: map[scrape.Provider]*scrape.Result{scrape.VirusTotal: scrape.Degraded()}}
	rejected := &stream.Report{Classification: ipclass.Result{Valid: true, Type: ipclass.Private}}

	ctx := context.Background()
	assert.Equal(t, defaults.ExitSuccess, lookupExitCode(ctx, []runner.Result[*stream.Report]{{Data: ok}, {Data: rejected}}))
	assert.Equal(t, defaults.ExitLookupFailed, lookupExitCode(ctx, []runner.Result[*stream.Report]{{Data: ok}, {Data: degraded}}))
	assert.Equal(t, defaults.ExitLookupFailed, lookupExitCode(ctx, []runner.Result[*stream.Report]{{Error: runner.ErrNotStarted}}))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.Equal(t, defaults.ExitLookupFailed, lookupExitCode(cancelled, []runner.Result[*stream.Report]{{Data: ok}}))
}

func TestExitCodeFor(t *testing.T) {
	assert.Equal(t, defaults.ExitUserError, exitCodeFor(fmt.Errorf("%w: bad", config.ErrInvalidConfig)))
	assert.Equal(t, defaults.ExitUserError, exitCodeFor(fmt.Errorf("read: %w", os.ErrNotExist)))
	assert.Equal(t, defaults.ExitBrowserError, exitCodeFor(fmt.Errorf("%w: no chrome", browser.ErrLaunch)))
	assert.Equal(t, defaults.ExitInternalError, exitCodeFor(errors.New("other")))
}

func TestCommonFlagsLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ipcheck.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: warn\n"), 0o600))
	t.Setenv(config.EnvConfig, "")
	t.Setenv(config.EnvAddr, "")

	cf := CommonFlags{ConfigPath: path, LogFormat: "json", Headed: true, ChromePath: "/opt/chrome", Silent: true}
	cfg, logger, err := cf.Load(io.Discard)
	require.NoError(t, err)
	require.NotNil(t, logger)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, "/opt/chrome", cfg.Browser.ExecPath)
	assert.True(t, ui.IsSilent())
	ui.SetSilent(false)

	cf = CommonFlags{LogLevel: "loud"}
	_, _, err = cf.Load(io.Discard)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestNewAppWithoutBrowser(t *testing.T) {
	cfg := config.Default()
	app, err := NewApp(context.Background(), cfg, quiet(), AppOptions{Source: "test", Metrics: true})
	require.NoError(t, err)
	defer app.Close()

	assert.Nil(t, app.Chrome)
	require.NotNil(t, app.Metrics)
	assert.Empty(t, app.Service.Providers())

	rep := app.Service.Collect(context.Background(), "10.0.0.1")
	assert.True(t, rep.Rejected())
}

func TestScrapers(t *testing.T) {
	got := Scrapers(nil, config.Default(), quiet())
	require.Len(t, got, 2)
	assert.Equal(t, scrape.AbuseIPDB, got[0].Provider())
	assert.Equal(t, scrape.VirusTotal, got[1].Provider())
	assert.Contains(t, got[0].URL("1.2.3.4"), "1.2.3.4")
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"http://a", "http://b"}, splitList(" http://a, ,http://b "))
	assert.Nil(t, splitList(""))
}

func TestServeUsageShowsWireProviderName(t *testing.T) {
	var buf bytes.Buffer
	serveUsage(&buf)
	out := buf.String()
	assert.Contains(t, out, `"provider":"abuseIpDb"`)
	assert.Contains(t, out, `"type":"partial_result"`)
	assert.Contains(t, out, `"type":"OPEN_IN_BACKGROUND_TAB"`)
}

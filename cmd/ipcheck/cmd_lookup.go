package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"github.com/ipcheck/ipcheck/pkg/defaults"
	"github.com/ipcheck/ipcheck/pkg/ipclass"
	"github.com/ipcheck/ipcheck/pkg/jsonutil"
	"github.com/ipcheck/ipcheck/pkg/output/dispatcher"
	"github.com/ipcheck/ipcheck/pkg/output/writers"
	"github.com/ipcheck/ipcheck/pkg/runner"
	"github.com/ipcheck/ipcheck/pkg/stream"
	"github.com/ipcheck/ipcheck/pkg/ui"
)

// Output formats handled directly by the lookup command. Everything else is
// a built-in template name.
const (
	formatCard     = "card"
	formatJSON     = "json"
	formatJSONL    = "jsonl"
	formatTemplate = "template"
)

func runLookup(args []string) int {
	fs := flag.NewFlagSet("lookup", flag.ContinueOnError)
	var cf CommonFlags
	cf.Register(fs)
	format := fs.String("o", "", "Output: card, json, jsonl, "+strings.Join(writers.BuiltInNames(), ", ")+
		" (default card on a terminal, jsonl otherwise)")
	tmplPath := fs.String("template", "", "Go template file rendered once all lookups finish")
	listFile := fs.String("l", "", "File with one address per line, - for stdin")
	concurrency := fs.Int("c", 0, "Addresses looked up at once (default from config)")
	perMinute := fs.Int("rate", 0, "Max lookups started per minute, 0 for no limit")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s lookup [flags] <ip>...\n\n", defaults.ToolName)
		fmt.Fprintf(os.Stderr, "Look up addresses on AbuseIPDB and VirusTotal.\n\n")
		fmt.Fprintf(os.Stderr, "Examples:\n")
		fmt.Fprintf(os.Stderr, "  %s lookup 45.155.205.233\n", defaults.ToolName)
		fmt.Fprintf(os.Stderr, "  %s lookup -o csv -l suspects.txt > report.csv\n", defaults.ToolName)
		fmt.Fprintf(os.Stderr, "  grep -oE '[0-9.]{7,15}' access.log | %s lookup -l - -o jsonl -rate 20\n\n", defaults.ToolName)
		fmt.Fprintf(os.Stderr, "Flags:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return defaults.ExitSuccess
		}
		return defaults.ExitUserError
	}

	targets, err := collectTargets(fs.Args(), *listFile, os.Stdin)
	if err != nil {
		ui.PrintError(err.Error())
		return defaults.ExitUserError
	}
	if len(targets) == 0 {
		exitWithUsage("no addresses given", defaults.ToolName+" lookup [flags] <ip>...")
	}

	out := resolveFormat(*format, *tmplPath, ui.StdoutIsTerminal())
	stdout := nopCloser{os.Stdout}
	outs, err := lookupWriters(out, *tmplPath, stdout)
	if err != nil {
		ui.PrintError(err.Error())
		return defaults.ExitUserError
	}

	cfg, logger, err := cf.Load(os.Stderr)
	if err != nil {
		ui.PrintError(err.Error())
		return exitCodeFor(err)
	}
	if *concurrency <= 0 {
		*concurrency = cfg.Scrape.Concurrency
	}
	*concurrency = min(*concurrency, defaults.ConcurrencyMax)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	public := slices.ContainsFunc(targets, func(t string) bool {
		return ipclass.Classify(t).Type == ipclass.Public
	})

	if out == formatCard {
		ui.PrintBanner()
		ui.PrintConfig(
			[2]string{"Addresses", fmt.Sprint(len(targets))},
			[2]string{"Concurrency", fmt.Sprint(*concurrency)},
			[2]string{"Headless", fmt.Sprint(cfg.Browser.Headless)},
		)
	}

	app, err := NewApp(ctx, cfg, logger, AppOptions{Source: "cli", Writers: outs, Browser: public})
	if err != nil {
		ui.PrintError(err.Error())
		return exitCodeFor(err)
	}
	defer app.Close()

	r := runner.NewRunner[*stream.Report](*concurrency)
	r.PerMinute = *perMinute
	if out == formatCard {
		r.OnResult = func(_, _ int64, res runner.Result[*stream.Report]) {
			fmt.Fprintln(os.Stdout, renderReport(app.Service, res.Data))
		}
	}
	results := r.Run(ctx, targets, func(ctx context.Context, ip string) (*stream.Report, error) {
		return app.Service.Collect(ctx, ip), nil
	})

	reports := make([]*stream.Report, 0, len(results))
	for _, res := range results {
		if res.Error == nil && res.Data != nil {
			reports = append(reports, res.Data)
		}
	}
	if out == formatJSON {
		data, err := jsonutil.MarshalIndent(reports, "", "  ")
		if err != nil {
			ui.PrintError(err.Error())
			return defaults.ExitInternalError
		}
		fmt.Fprintln(os.Stdout, string(data))
	}

	return lookupExitCode(ctx, results)
}

// resolveFormat picks the output format: an explicit -o wins, -template
// implies the template format, and otherwise terminals get cards.
func resolveFormat(format, tmplPath string, terminal bool) string {
	switch {
	case format != "":
		return strings.ToLower(format)
	case tmplPath != "":
		return formatTemplate
	case terminal:
		return formatCard
	}
	return formatJSONL
}

// lookupWriters returns the event writers for a streaming or template format.
func lookupWriters(format, tmplPath string, w io.WriteCloser) ([]dispatcher.Writer, error) {
	switch format {
	case formatCard, formatJSON:
		return nil, nil
	case formatJSONL:
		return []dispatcher.Writer{writers.NewJSONLWriter(w, writers.JSONLOptions{})}, nil
	case formatTemplate:
		if tmplPath == "" {
			return nil, errors.New("-o template needs -template <file>")
		}
		tw, err := writers.NewTemplateWriter(w, writers.TemplateConfig{TemplatePath: tmplPath})
		if err != nil {
			return nil, err
		}
		return []dispatcher.Writer{tw}, nil
	}
	if !slices.Contains(writers.BuiltInNames(), format) {
		return nil, fmt.Errorf("unknown output format %q", format)
	}
	tw, err := writers.NewTemplateWriter(w, writers.TemplateConfig{BuiltIn: format})
	if err != nil {
		return nil, err
	}
	return []dispatcher.Writer{tw}, nil
}

// collectTargets merges positional addresses with those read from listFile,
// dropping blanks, # comments and duplicates while keeping first-seen order.
func collectTargets(args []string, listFile string, stdin io.Reader) ([]string, error) {
	var raw []string
	raw = append(raw, args...)

	if listFile != "" {
		var r io.Reader = stdin
		if listFile != "-" {
			f, err := os.Open(listFile)
			if err != nil {
				return nil, err
			}
			defer f.Close()
			r = f
		}
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			raw = append(raw, sc.Text())
		}
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("reading %s: %w", listFile, err)
		}
	}

	seen := make(map[string]bool, len(raw))
	targets := make([]string, 0, len(raw))
	for _, t := range raw {
		if i := strings.IndexByte(t, '#'); i >= 0 {
			t = t[:i]
		}
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		targets = append(targets, t)
	}
	return targets, nil
}

// renderReport renders one finished lookup as a card, or the one-line
// notice for an address that was refused.
func renderReport(svc *stream.Service, rep *stream.Report) string {
	if rep == nil {
		return ""
	}
	if rep.Rejected() {
		return ui.RenderRejected(rep.IP, stream.CategoryOf(rep.Classification))
	}
	links := svc.Links(rep.IP)
	rows := make([]ui.ProviderRow, len(links))
	for i, l := range links {
		rows[i] = ui.ProviderRow{Provider: l.Provider, URL: l.URL, Result: rep.Results[l.Provider]}
	}
	return ui.RenderCard(rep.IP, rep.Classification.Category, rows)
}

// lookupExitCode is ExitLookupFailed when the run was interrupted or any
// provider returned a placeholder instead of data.
func lookupExitCode(ctx context.Context, results []runner.Result[*stream.Report]) int {
	if ctx.Err() != nil {
		return defaults.ExitLookupFailed
	}
	for _, res := range results {
		if res.Error != nil || res.Data == nil {
			return defaults.ExitLookupFailed
		}
		for _, r := range res.Data.Results {
			if r.IsSentinel() {
				return defaults.ExitLookupFailed
			}
		}
	}
	return defaults.ExitSuccess
}

// nopCloser keeps writers from closing stdout.
type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

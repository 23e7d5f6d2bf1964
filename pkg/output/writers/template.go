package writers

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/Masterminds/sprig/v3"

	"github.com/ipcheck/ipcheck/pkg/jsonutil"
	"github.com/ipcheck/ipcheck/pkg/output/dispatcher"
	"github.com/ipcheck/ipcheck/pkg/output/events"
	"github.com/ipcheck/ipcheck/pkg/scrape"
)

var _ dispatcher.Writer = (*TemplateWriter)(nil)

// TemplateConfig configures the template writer. Exactly one source is used,
// in the order TemplatePath, TemplateString, BuiltIn.
type TemplateConfig struct {
	// TemplatePath is the path to a custom template file.
	TemplatePath string

	// TemplateString is an inline template string.
	TemplateString string

	// BuiltIn is the name of a built-in template: "csv", "markdown", "text-summary".
	BuiltIn string
}

var builtInTemplates = map[string]string{
	"csv": `ip,provider,score,reports,country,domain,date,color
{{- range .Lookups }}{{ $ip := .IP }}
{{- if .Rejected }}
{{ $ip }},,{{ escapeCSV .Category }},,,,,
{{- end }}
{{- range .Results }}
{{ $ip }},{{ .Provider }},{{ escapeCSV .Score }},{{ escapeCSV .Reports }},{{ escapeCSV .Country }},{{ escapeCSV .Domain }},{{ escapeCSV .Date }},{{ .Color }}
{{- end }}
{{- end }}
`,

	"markdown": `| IP | Provider | Score | Reports | Country | Domain | Last analysis |
|---|---|---|---|---|---|---|
{{- range .Lookups }}{{ $ip := .IP }}
{{- if .Rejected }}
| {{ $ip }} | - | {{ .Category }} | | | | |
{{- end }}
{{- range .Results }}
| {{ $ip }} | [{{ .Name }}]({{ .URL }}) | {{ .Score }} | {{ .Reports | default "-" }} | {{ .Country | default "-" }} | {{ .Domain | default "-" }} | {{ .Date | default "-" }} |
{{- end }}
{{- end }}
`,

	"text-summary": `ipcheck summary ({{ .Generated }})
{{ repeat 40 "=" }}
Lookups: {{ len .Lookups }}  Rejected: {{ .Rejected }}  Degraded results: {{ .Degraded }}
{{ range .Lookups }}
{{ .IP }}{{ if .Rejected }}  [{{ .Category }}]{{ end }}
{{- range .Results }}
  {{ printf "%-11s" .Name }} {{ .Score }}{{ if .Reports }}  reports {{ .Reports }}{{ end }}{{ if .Country }}  {{ .Country }}{{ end }}
{{- end }}
{{- end }}
`,
}

// BuiltInNames lists the built-in template names.
func BuiltInNames() []string {
	names := make([]string, 0, len(builtInTemplates))
	for n := range builtInTemplates {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// TemplateWriter buffers lookup events and renders one document on Close.
// Sprig functions are available in templates, plus escapeCSV and json.
type TemplateWriter struct {
	w      io.Writer
	mu     sync.Mutex
	tmpl   *template.Template
	order  []string
	byID   map[string]*tmplLookup
	closed bool
}

// NewTemplateWriter parses the template immediately.
func NewTemplateWriter(w io.Writer, config TemplateConfig) (*TemplateWriter, error) {
	content, err := templateSource(config)
	if err != nil {
		return nil, err
	}

	funcMap := sprig.TxtFuncMap()
	funcMap["escapeCSV"] = tmplEscapeCSV
	funcMap["json"] = tmplToJSON

	tmpl, err := template.New("ipcheck").Funcs(funcMap).Parse(content)
	if err != nil {
		return nil, fmt.Errorf("parse output template: %w", err)
	}
	return &TemplateWriter{w: w, tmpl: tmpl, byID: make(map[string]*tmplLookup)}, nil
}

func templateSource(config TemplateConfig) (string, error) {
	switch {
	case config.TemplatePath != "":
		content, err := os.ReadFile(config.TemplatePath)
		if err != nil {
			return "", fmt.Errorf("read template file: %w", err)
		}
		return string(content), nil
	case config.TemplateString != "":
		return config.TemplateString, nil
	case config.BuiltIn != "":
		content, ok := builtInTemplates[config.BuiltIn]
		if !ok {
			return "", fmt.Errorf("unknown built-in template: %s (available: %s)",
				config.BuiltIn, strings.Join(BuiltInNames(), ", "))
		}
		return content, nil
	}
	return "", fmt.Errorf("no template specified: set TemplatePath, TemplateString, or BuiltIn")
}

// tmplData holds all data available to templates.
type tmplData struct {
	Generated string
	Lookups   []*tmplLookup
	Rejected  int
	Degraded  int
}

type tmplLookup struct {
	ID         string
	IP         string
	Rejected   bool
	Category   string
	Results    []*tmplResult
	DurationMs float64
}

// tmplResult flattens a provider result with its display name and link.
type tmplResult struct {
	Provider scrape.Provider
	Name     string
	URL      string
	Outcome  string
	scrape.Result
}

func (tw *TemplateWriter) lookup(e events.Event) *tmplLookup {
	id := e.LookupID()
	l, ok := tw.byID[id]
	if !ok {
		l = &tmplLookup{ID: id}
		tw.byID[id] = l
		tw.order = append(tw.order, id)
	}
	return l
}

// Write buffers an event for later rendering.
func (tw *TemplateWriter) Write(event events.Event) error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	l := tw.lookup(event)
	switch e := event.(type) {
	case *events.StartEvent:
		l.IP = e.IP
		for _, p := range e.Providers {
			l.result(p.Provider).URL = p.URL
		}
	case *events.PartialEvent:
		l.IP = e.IP
		r := l.result(e.Provider)
		r.Outcome = e.Result.Outcome()
		if e.Result != nil {
			r.Result = *e.Result
		}
	case *events.CompleteEvent:
		l.IP = e.IP
		l.DurationMs = e.DurationMs
	case *events.RejectedEvent:
		l.IP = e.IP
		l.Rejected = true
		l.Category = e.Category
	}
	return nil
}

// result returns the entry for p, keeping results in provider display order.
func (l *tmplLookup) result(p scrape.Provider) *tmplResult {
	for _, r := range l.Results {
		if r.Provider == p {
			return r
		}
	}
	r := &tmplResult{Provider: p, Name: p.DisplayName(), Result: scrape.Result{Score: scrape.ScorePending}}
	l.Results = append(l.Results, r)
	slices.SortStableFunc(l.Results, func(a, b *tmplResult) int {
		return slices.Index(scrape.Providers, a.Provider) - slices.Index(scrape.Providers, b.Provider)
	})
	return r
}

// Flush is a no-op; the document is rendered on Close.
func (tw *TemplateWriter) Flush() error { return nil }

// Close renders the template with all buffered lookups.
func (tw *TemplateWriter) Close() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.closed {
		return nil
	}
	tw.closed = true

	data := &tmplData{Generated: time.Now().UTC().Format(time.RFC3339)}
	for _, id := range tw.order {
		l := tw.byID[id]
		data.Lookups = append(data.Lookups, l)
		if l.Rejected {
			data.Rejected++
		}
		for _, r := range l.Results {
			if r.Result.IsSentinel() {
				data.Degraded++
			}
		}
	}

	var buf bytes.Buffer
	if err := tw.tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("execute output template: %w", err)
	}
	if _, err := tw.w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write output template: %w", err)
	}
	if closer, ok := tw.w.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// SupportsEvent returns true for every lookup event.
func (tw *TemplateWriter) SupportsEvent(events.EventType) bool { return true }

// tmplEscapeCSV quotes s when it contains a comma, quote or newline.
func tmplEscapeCSV(s string) string {
	if !strings.ContainsAny(s, ",\"\n\r") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func tmplToJSON(v any) string {
	b, err := jsonutil.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

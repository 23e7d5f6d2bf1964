// Package virustotal extracts detections, country, WHOIS domain and last
// analysis date from a rendered VirusTotal IP address report.
//
// The report is built from nested web components, so every field is reached
// through a declarative path that crosses several shadow roots.
package virustotal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/ipcheck/ipcheck/pkg/defaults"
	"github.com/ipcheck/ipcheck/pkg/dom"
	"github.com/ipcheck/ipcheck/pkg/poll"
	"github.com/ipcheck/ipcheck/pkg/scrape"
)

var detectionsPattern = regexp.MustCompile(`(\d+)\s*/\s*(\d+)`)

// Config configures the routine.
type Config struct {
	BaseURL string
	Paths   Paths
	Poll    poll.Config

	// PartialAfter is the attempt index after which a score alone is
	// returned without waiting for country and date.
	PartialAfter int

	Logger *slog.Logger
}

// DefaultConfig returns the public site with the standard attempt budget.
func DefaultConfig() Config {
	return Config{
		BaseURL:      defaults.VirusTotalBaseURL,
		Paths:        DefaultPaths(),
		Poll:         poll.DefaultConfig(),
		PartialAfter: defaults.VirusTotalPartialAfter,
	}
}

// Routine implements scrape.Routine for VirusTotal.
type Routine struct {
	cfg    Config
	paths  compiledPaths
	logger *slog.Logger
}

// New returns a routine. Empty fields fall back to DefaultConfig, except
// PartialAfter: zero is a valid threshold and is kept as given.
func New(cfg Config) *Routine {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Poll.MaxAttempts == 0 {
		cfg.Poll = def.Poll
	}
	cfg.Paths = cfg.Paths.merge(def.Paths)

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Routine{
		cfg:    cfg,
		paths:  cfg.Paths.compile(),
		logger: logger.With("provider", string(scrape.VirusTotal)),
	}
}

// Provider implements scrape.Routine.
func (r *Routine) Provider() scrape.Provider { return scrape.VirusTotal }

// URL returns the report page for ip.
func (r *Routine) URL(ip string) string {
	return strings.TrimRight(r.cfg.BaseURL, "/") + "/gui/ip-address/" + url.PathEscape(ip)
}

// TimeoutResult is returned when no field appeared within the budget.
func TimeoutResult() *scrape.Result {
	return &scrape.Result{Score: scrape.ScoreTimeout, Color: scrape.ColorNeutral}
}

// FatalResult is returned when the poll loop itself broke.
func FatalResult() *scrape.Result {
	return &scrape.Result{
		Score:   scrape.ScoreErr,
		Color:   scrape.ColorRed,
		Country: scrape.ScoreErr,
		Domain:  scrape.ScoreErr,
		Date:    scrape.ScoreErr,
	}
}

// ScoreColor maps a positive detection count to a color.
func ScoreColor(positives int) string {
	switch {
	case positives >= 5:
		return scrape.ColorRed
	case positives > 0:
		return scrape.ColorAmber
	}
	return scrape.ColorGreen
}

// report accumulates fields across attempts. A field found once is kept
// even if a later render hides it.
type report struct {
	score   string
	color   string
	country string
	domain  string
	date    string
}

func newReport() report {
	return report{
		score:   scrape.ScorePending,
		color:   scrape.ColorNeutral,
		country: scrape.CountryUnknown,
		domain:  scrape.FieldMissing,
		date:    scrape.FieldMissing,
	}
}

func (rep *report) hasScore() bool { return rep.score != scrape.ScorePending }

func (rep *report) hasData() bool {
	return rep.country != scrape.CountryUnknown && rep.date != scrape.FieldMissing
}

// ready applies the return policy for attempt a, in order: score with
// country and date; score after partialAfter; anything on the last attempt.
func (rep *report) ready(a poll.Attempt, partialAfter int) bool {
	switch {
	case rep.hasScore() && rep.hasData():
		return true
	case rep.hasScore() && a.Index > partialAfter:
		return true
	case a.Last && (rep.hasScore() || rep.country != scrape.CountryUnknown):
		return true
	}
	return false
}

func (rep *report) result() *scrape.Result {
	return &scrape.Result{
		Score:   rep.score,
		Color:   rep.color,
		Country: rep.country,
		Domain:  rep.domain,
		Date:    rep.date,
	}
}

// Extract polls page until the return policy is met.
func (r *Routine) Extract(ctx context.Context, page scrape.Page) (res *scrape.Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("poll loop panicked", "panic", fmt.Sprint(p))
			res, err = FatalResult(), nil
		}
	}()

	rep := newReport()
	stats, err := poll.Run(ctx, r.cfg.Poll, func(ctx context.Context, a poll.Attempt) (bool, error) {
		snap, err := page.Snapshot(ctx)
		if err != nil {
			r.logger.Debug("snapshot failed", "attempt", a.Index, "error", err)
		} else {
			if snap.IsChallenge() {
				r.logger.Debug("challenge page", "attempt", a.Index, "fingerprint", snap.Fingerprint())
				return false, nil
			}
			r.read(snap, &rep)
		}
		return rep.ready(a, r.cfg.PartialAfter), nil
	})

	switch {
	case err == nil:
		r.logger.Debug("extracted", "attempts", stats.Attempts, "score", rep.score)
		return rep.result(), nil
	case errors.Is(err, poll.ErrExhausted):
		r.logger.Info("no report before budget ran out", "attempts", stats.Attempts)
		return TimeoutResult(), nil
	default:
		return nil, err
	}
}

// Read extracts whatever fields a single snapshot shows.
func (r *Routine) Read(snap *scrape.Snapshot) *scrape.Result {
	rep := newReport()
	r.read(snap, &rep)
	return rep.result()
}

func (r *Routine) read(snap *scrape.Snapshot, rep *report) {
	doc := snap.Tree
	if doc == nil {
		return
	}
	app := doc.Query(r.paths.appRoot)

	if el := r.paths.country.Resolve(app); el != nil {
		if v := el.TrimmedText(); v != "" {
			rep.country = v
		}
	}

	if el := r.paths.score.Resolve(app); el != nil {
		if m := detectionsPattern.FindStringSubmatch(el.TrimmedText()); m != nil {
			positives, _ := strconv.Atoi(m[1])
			total, _ := strconv.Atoi(m[2])
			rep.score = fmt.Sprintf("%d/%d", positives, total)
			rep.color = ScoreColor(positives)
		}
	}

	if el := r.paths.domain.Resolve(app); el != nil {
		if v := el.TrimmedText(); v != "" {
			rep.domain = v
		}
	}

	if date, ok := dateFrom(r.timeAgo(doc, app)); ok {
		rep.date = date
	}
}

// timeAgo finds the analysis date element, first structurally and then next
// to its label.
func (r *Routine) timeAgo(doc, app *dom.Node) *dom.Node {
	if container := r.paths.dateContainer.Resolve(app); container != nil {
		if el := container.Query(r.paths.timeAgo); el != nil {
			return el
		}
	}
	if label := dom.FindByText(doc, r.paths.dateLabel); label != nil {
		return label.NextElementSibling()
	}
	return nil
}

// Package abuseipdb extracts the abuse confidence score, report count,
// country and domain from a rendered AbuseIPDB check page.
package abuseipdb

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/cases"

	"github.com/ipcheck/ipcheck/pkg/defaults"
	"github.com/ipcheck/ipcheck/pkg/poll"
	"github.com/ipcheck/ipcheck/pkg/scrape"
)

var (
	scorePattern   = regexp.MustCompile(`(?i)Confidence of Abuse is\s*(\d+)%`)
	reportsPattern = regexp.MustCompile(`(?i)reported\s*([\d,]+)\s*times`)
)

const notFoundPhrase = "not found in our database"

// Config configures the routine.
type Config struct {
	BaseURL string
	Poll    poll.Config
	Logger  *slog.Logger
}

// DefaultConfig returns the public site with the standard attempt budget.
func DefaultConfig() Config {
	return Config{
		BaseURL: defaults.AbuseIPDBBaseURL,
		Poll:    poll.DefaultConfig(),
	}
}

// Routine implements scrape.Routine for AbuseIPDB.
type Routine struct {
	cfg    Config
	logger *slog.Logger
}

// New returns a routine. Empty fields fall back to DefaultConfig.
func New(cfg Config) *Routine {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaults.AbuseIPDBBaseURL
	}
	if cfg.Poll.MaxAttempts == 0 {
		cfg.Poll = poll.DefaultConfig()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Routine{cfg: cfg, logger: logger.With("provider", string(scrape.AbuseIPDB))}
}

// Provider implements scrape.Routine.
func (r *Routine) Provider() scrape.Provider { return scrape.AbuseIPDB }

// URL returns the check page for ip.
func (r *Routine) URL(ip string) string {
	return strings.TrimRight(r.cfg.BaseURL, "/") + "/check/" + url.PathEscape(ip)
}

// CaptchaResult is returned when the page never left its challenge.
func CaptchaResult() *scrape.Result {
	return &scrape.Result{Score: scrape.ScoreCaptcha, Reports: "0", Color: scrape.ColorRed}
}

// Extract polls page until a score or a not-found notice appears.
func (r *Routine) Extract(ctx context.Context, page scrape.Page) (*scrape.Result, error) {
	var res *scrape.Result
	rep, err := poll.Run(ctx, r.cfg.Poll, func(ctx context.Context, a poll.Attempt) (bool, error) {
		snap, err := page.Snapshot(ctx)
		if err != nil {
			r.logger.Debug("snapshot failed", "attempt", a.Index, "error", err)
			return false, nil
		}
		if snap.IsChallenge() {
			r.logger.Debug("challenge page", "attempt", a.Index, "fingerprint", snap.Fingerprint())
			return false, nil
		}
		out, ok := Parse(snap)
		if ok {
			res = out
		}
		return ok, nil
	})

	switch {
	case err == nil:
		r.logger.Debug("extracted", "attempts", rep.Attempts, "score", res.Score)
		return res, nil
	case errors.Is(err, poll.ErrExhausted):
		r.logger.Info("no score before budget ran out", "attempts", rep.Attempts)
		return CaptchaResult(), nil
	default:
		return nil, err
	}
}

// Parse reads a snapshot. It reports false while the page shows neither a
// score nor a not-found notice.
func Parse(snap *scrape.Snapshot) (*scrape.Result, bool) {
	m := scorePattern.FindStringSubmatch(snap.Text)
	if m == nil && !strings.Contains(snap.Text, notFoundPhrase) {
		return nil, false
	}

	score := 0
	if m != nil {
		score, _ = strconv.Atoi(m[1])
	}

	reports := "0"
	if rm := reportsPattern.FindStringSubmatch(snap.Text); rm != nil {
		reports = rm[1]
	}

	country, domain := TableFields(snap.HTML)
	return &scrape.Result{
		Score:   strconv.Itoa(score) + "%",
		Reports: reports,
		Color:   SeverityColor(score),
		Country: country,
		Domain:  domain,
	}, true
}

// SeverityColor maps an abuse confidence percentage to a color.
func SeverityColor(score int) string {
	switch {
	case score >= 50:
		return scrape.ColorRed
	case score > 0:
		return scrape.ColorAmber
	}
	return scrape.ColorGreen
}

// TableFields scans the first ".table" of the page for the country and
// domain rows. Missing rows keep their placeholders.
func TableFields(html string) (country, domain string) {
	country, domain = scrape.CountryUnknown, scrape.FieldMissing
	if html == "" {
		return country, domain
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return country, domain
	}

	fold := cases.Fold()
	doc.Find(".table").First().Find("tr").Each(func(_ int, row *goquery.Selection) {
		th := row.Find("th").First()
		if th.Length() == 0 {
			return
		}
		header := fold.String(th.Text())
		td := row.Find("td").First()
		if td.Length() == 0 {
			return
		}
		value := strings.Join(strings.Fields(td.Text()), " ")
		if strings.Contains(header, "country") {
			country = value
		}
		if strings.Contains(header, "domain name") {
			domain = value
		}
	})
	return country, domain
}

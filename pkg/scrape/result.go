// Package scrape runs provider extraction routines inside short-lived,
// isolated browser windows and defines the result model they produce.
//
// A scrape run never fails outward: every error path is converted into a
// displayable Result carrying a sentinel score.
package scrape

// Provider names one reputation source.
type Provider string

const (
	AbuseIPDB  Provider = "abuseIpDb"
	VirusTotal Provider = "virusTotal"
)

// Providers lists every provider in display order.
var Providers = []Provider{AbuseIPDB, VirusTotal}

// DisplayName returns a human label for p.
func (p Provider) DisplayName() string {
	switch p {
	case AbuseIPDB:
		return "AbuseIPDB"
	case VirusTotal:
		return "VirusTotal"
	}
	return string(p)
}

// Severity colors, as hex strings consumed directly by UIs.
const (
	ColorGreen   = "#34d399"
	ColorAmber   = "#fbbf24"
	ColorRed     = "#f87171"
	ColorNeutral = "#9ca3af"
)

// Sentinel scores and field placeholders.
const (
	ScoreCaptcha = "Captcha?"
	ScoreTimeout = "Timeout"
	ScoreErr     = "Err"
	ScorePending = "..."

	CountryUnknown = "?"
	FieldMissing   = "-"
)

// Result is what one provider reports for one address. Optional fields are
// omitted from JSON when empty.
type Result struct {
	Score   string `json:"score"`
	Reports string `json:"reports,omitempty"`
	Color   string `json:"color"`
	Country string `json:"country,omitempty"`
	Domain  string `json:"domain,omitempty"`
	Date    string `json:"date,omitempty"`
}

// Degraded is the result of a run whose infrastructure failed.
func Degraded() *Result {
	return &Result{Score: ScoreErr, Color: ColorNeutral}
}

// IsSentinel reports whether the score is a placeholder rather than data.
func (r *Result) IsSentinel() bool {
	if r == nil {
		return true
	}
	switch r.Score {
	case ScoreCaptcha, ScoreTimeout, ScoreErr, ScorePending, "":
		return true
	}
	return false
}

// Outcome is a short label for metrics and logs: "data" or the sentinel.
func (r *Result) Outcome() string {
	if r == nil {
		return "missing"
	}
	if r.IsSentinel() {
		if r.Score == "" {
			return "empty"
		}
		return r.Score
	}
	return "data"
}

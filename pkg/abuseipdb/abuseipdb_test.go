package abuseipdb

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ipcheck/ipcheck/pkg/poll"
	"github.com/ipcheck/ipcheck/pkg/scrape"
)

const reportHTML = `<html><body>
<table class="table table-sm">
  <tr><th>ISP</th><td>Example Networks</td></tr>
  <tr><th>Usage Type</th><td>Data Center</td></tr>
  <tr><th>Domain Name</th><td>
      example.net
  </td></tr>
  <tr><th>COUNTRY</th><td><img src="us.png"> United
      States</td></tr>
</table>
<table class="table"><tr><th>Country</th><td>Elsewhere</td></tr></table>
</body></html>`

// scriptedPage returns its snapshots in order, repeating the last one.
type scriptedPage struct {
	snaps []*scrape.Snapshot
	errs  []error
	calls int
}

func (p *scriptedPage) Snapshot(context.Context) (*scrape.Snapshot, error) {
	i := min(p.calls, len(p.snaps)-1)
	p.calls++
	if i < len(p.errs) && p.errs[i] != nil {
		return nil, p.errs[i]
	}
	return p.snaps[i], nil
}

func testRoutine() *Routine {
	return New(Config{
		Poll:   poll.Config{MaxAttempts: 15},
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func TestSeverityColorBoundaries(t *testing.T) {
	tests := map[int]string{
		0:   scrape.ColorGreen,
		1:   scrape.ColorAmber,
		25:  scrape.ColorAmber,
		49:  scrape.ColorAmber,
		50:  scrape.ColorRed,
		75:  scrape.ColorRed,
		100: scrape.ColorRed,
	}
	for score, want := range tests {
		assert.Equal(t, want, SeverityColor(score), "score %d", score)
	}
}

func TestParse(t *testing.T) {
	snap := &scrape.Snapshot{
		Title: "8.8.8.8 | AbuseIPDB",
		Text:  "This IP was reported 1,234 times. Confidence of Abuse is 75%",
		HTML:  reportHTML,
	}
	res, ok := Parse(snap)
	require.True(t, ok)
	assert.Equal(t, &scrape.Result{
		Score:   "75%",
		Reports: "1,234",
		Color:   scrape.ColorRed,
		Country: "United States",
		Domain:  "example.net",
	}, res)
}

func TestParseNotFound(t *testing.T) {
	res, ok := Parse(&scrape.Snapshot{Text: "203.0.113.1 was not found in our database"})
	require.True(t, ok)
	assert.Equal(t, &scrape.Result{
		Score:   "0%",
		Reports: "0",
		Color:   scrape.ColorGreen,
		Country: scrape.CountryUnknown,
		Domain:  scrape.FieldMissing,
	}, res)
}

func TestParseCaseInsensitive(t *testing.T) {
	res, ok := Parse(&scrape.Snapshot{Text: "confidence of abuse is 25% ... REPORTED 3 TIMES"})
	require.True(t, ok)
	assert.Equal(t, "25%", res.Score)
	assert.Equal(t, "3", res.Reports)
	assert.Equal(t, scrape.ColorAmber, res.Color)
}

func TestParseWaiting(t *testing.T) {
	_, ok := Parse(&scrape.Snapshot{Text: "Loading..."})
	assert.False(t, ok)
}

func TestTableFields(t *testing.T) {
	country, domain := TableFields(reportHTML)
	assert.Equal(t, "United States", country)
	assert.Equal(t, "example.net", domain)

	country, domain = TableFields("")
	assert.Equal(t, scrape.CountryUnknown, country)
	assert.Equal(t, scrape.FieldMissing, domain)

	country, domain = TableFields(`<div class="table"><p>no rows</p></div>`)
	assert.Equal(t, scrape.CountryUnknown, country)
	assert.Equal(t, scrape.FieldMissing, domain)
}

func TestExtractWaitsOutChallenge(t *testing.T) {
	page := &scriptedPage{
		snaps: []*scrape.Snapshot{
			{Title: "Just a moment..."},
			{Title: "Just a moment..."},
			{Title: "AbuseIPDB", Text: "Verify you are human"},
			nil,
			{Title: "AbuseIPDB", Text: "Confidence of Abuse is 0%"},
		},
		errs: []error{nil, nil, nil, errors.New("execution context was destroyed")},
	}

	res, err := testRoutine().Extract(context.Background(), page)
	require.NoError(t, err)
	assert.Equal(t, "0%", res.Score)
	assert.Equal(t, scrape.ColorGreen, res.Color)
	assert.Equal(t, 5, page.calls)
}

func TestExtractCaptchaOnExhaustion(t *testing.T) {
	page := &scriptedPage{snaps: []*scrape.Snapshot{{Title: "Just a moment..."}}}

	res, err := testRoutine().Extract(context.Background(), page)
	require.NoError(t, err)
	assert.Equal(t, &scrape.Result{Score: "Captcha?", Reports: "0", Color: "#f87171"}, res)
	assert.Equal(t, 15, page.calls)
}

func TestExtractCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := testRoutine().Extract(ctx, &scriptedPage{snaps: []*scrape.Snapshot{{}}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestURL(t *testing.T) {
	r := New(Config{BaseURL: "https://www.abuseipdb.com/"})
	assert.Equal(t, "https://www.abuseipdb.com/check/8.8.8.8", r.URL("8.8.8.8"))
	assert.Equal(t, "https://www.abuseipdb.com/check/2001:4860::8888", r.URL("2001:4860::8888"))
	assert.Equal(t, scrape.AbuseIPDB, r.Provider())
}

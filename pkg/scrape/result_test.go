package scrape

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ipcheck/ipcheck/pkg/jsonutil"
)

func TestResultJSONOmitsEmptyFields(t *testing.T) {
	data, err := jsonutil.Marshal(Degraded())
	require.NoError(t, err)
	assert.JSONEq(t, `{"score":"Err","color":"#9ca3af"}`, string(data))

	data, err = jsonutil.Marshal(&Result{Score: "12%", Reports: "1,024", Color: ColorAmber, Country: "US", Domain: "example.com"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"score":"12%","reports":"1,024","color":"#fbbf24","country":"US","domain":"example.com"}`, string(data))
}

func TestResultOutcome(t *testing.T) {
	tests := []struct {
		r    *Result
		want string
	}{
		{nil, "missing"},
		{&Result{}, "empty"},
		{&Result{Score: ScoreTimeout}, ScoreTimeout},
		{&Result{Score: ScoreCaptcha}, ScoreCaptcha},
		{&Result{Score: ScorePending}, ScorePending},
		{&Result{Score: "5/90"}, "data"},
		{&Result{Score: "0%"}, "data"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.r.Outcome())
		assert.Equal(t, tt.want != "data", tt.r.IsSentinel())
	}
}

func TestProviderDisplayName(t *testing.T) {
	assert.Equal(t, "AbuseIPDB", AbuseIPDB.DisplayName())
	assert.Equal(t, "VirusTotal", VirusTotal.DisplayName())
	assert.Equal(t, "other", Provider("other").DisplayName())
}

func TestIsChallenge(t *testing.T) {
	tests := []struct {
		title, text string
		want        bool
	}{
		{"Just a moment...", "", true},
		{"Attention Required! | Cloudflare", "", true},
		{"AbuseIPDB", "Verify you are human by completing the action below.", true},
		{"AbuseIPDB", "1.1.1.1 is owned by Cloudflare, Inc.", false},
		{"8.8.8.8 | AbuseIPDB", "Confidence of Abuse is 0%", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsChallenge(tt.title, tt.text), "%q / %q", tt.title, tt.text)
	}
}

func TestDecodeSnapshot(t *testing.T) {
	raw := `{"title":"t","text":"body","html":"<html></html>",
		"tree":{"k":9,"c":[{"k":1,"n":"html","c":[{"k":1,"n":"body","c":[{"k":3,"v":"body"}]}]}]}}`
	snap, err := DecodeSnapshot([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, "t", snap.Title)
	require.NotNil(t, snap.Tree)
	body := snap.Tree.Query("body")
	require.NotNil(t, body)
	assert.Equal(t, "body", body.Text())
	assert.False(t, snap.IsChallenge())

	_, err = DecodeSnapshot([]byte("not json"))
	assert.Error(t, err)
}

func TestSnapshotFingerprint(t *testing.T) {
	a := &Snapshot{Title: "x", Text: "y"}
	b := &Snapshot{Title: "x", Text: "y"}
	c := &Snapshot{Title: "xy", Text: ""}
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())
}

func TestSnapshotScriptEmbedsDepth(t *testing.T) {
	assert.Contains(t, SnapshotScript(), "})(256)")
}

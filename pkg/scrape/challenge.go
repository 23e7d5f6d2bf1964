package scrape

import "strings"

// Markers of an anti-bot interstitial. Title markers match the title only;
// report bodies can name Cloudflare as an address owner.
var (
	challengeTitleMarkers = []string{"Just a moment", "Cloudflare"}
	challengeTextMarkers  = []string{"Verify you are human"}
)

// IsChallenge reports whether a page is still showing a challenge.
func IsChallenge(title, text string) bool {
	for _, m := range challengeTitleMarkers {
		if strings.Contains(title, m) {
			return true
		}
	}
	for _, m := range challengeTextMarkers {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}

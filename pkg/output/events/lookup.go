package events

import (
	"time"

	"github.com/ipcheck/ipcheck/pkg/scrape"
)

// ProviderLink is the page a provider's result is read from.
type ProviderLink struct {
	Provider scrape.Provider `json:"provider"`
	URL      string          `json:"url"`
}

// StartEvent is emitted when scraping starts for a public address.
type StartEvent struct {
	BaseEvent
	Source    string         `json:"source"`
	Providers []ProviderLink `json:"providers"`
}

// PartialEvent carries one provider's result, in completion order.
type PartialEvent struct {
	BaseEvent
	Provider   scrape.Provider `json:"provider"`
	Result     *scrape.Result  `json:"data"`
	DurationMs float64         `json:"duration_ms"`
}

// CompleteEvent closes a lookup.
type CompleteEvent struct {
	BaseEvent
	Results    map[scrape.Provider]*scrape.Result `json:"results"`
	DurationMs float64                            `json:"duration_ms"`
	// Degraded counts providers that ended on a sentinel score.
	Degraded int `json:"degraded"`
}

// RejectedEvent is emitted instead of scraping when the address is private,
// reserved or malformed.
type RejectedEvent struct {
	BaseEvent
	Category string `json:"category"`
	Reason   string `json:"reason"`
}

// NewStart builds a StartEvent.
func NewStart(lookupID, ip, source string, links []ProviderLink) *StartEvent {
	return &StartEvent{BaseEvent: base(EventTypeStart, lookupID, ip), Source: source, Providers: links}
}

// NewPartial builds a PartialEvent.
func NewPartial(lookupID, ip string, p scrape.Provider, res *scrape.Result, took time.Duration) *PartialEvent {
	return &PartialEvent{
		BaseEvent:  base(EventTypePartial, lookupID, ip),
		Provider:   p,
		Result:     res,
		DurationMs: milliseconds(took),
	}
}

// NewComplete builds a CompleteEvent and counts degraded results.
func NewComplete(lookupID, ip string, results map[scrape.Provider]*scrape.Result, took time.Duration) *CompleteEvent {
	e := &CompleteEvent{
		BaseEvent:  base(EventTypeComplete, lookupID, ip),
		Results:    results,
		DurationMs: milliseconds(took),
	}
	for _, r := range results {
		if r.IsSentinel() {
			e.Degraded++
		}
	}
	return e
}

// NewRejected builds a RejectedEvent.
func NewRejected(lookupID, ip, category, reason string) *RejectedEvent {
	return &RejectedEvent{BaseEvent: base(EventTypeRejected, lookupID, ip), Category: category, Reason: reason}
}

func milliseconds(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

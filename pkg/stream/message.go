package stream

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/ipcheck/ipcheck/pkg/scrape"
)

// Message types on the stream.
const (
	TypePartialResult = "partial_result"
	TypeRejected      = "rejected"
	TypeOpenTab       = "OPEN_IN_BACKGROUND_TAB"
)

// Request is an inbound stream message: either a lookup {ip} or a
// {type:"OPEN_IN_BACKGROUND_TAB", url} command.
type Request struct {
	Type string `json:"type,omitempty"`
	IP   string `json:"ip,omitempty"`
	URL  string `json:"url,omitempty"`
}

// Message is an outbound stream message. A partial result carries
// exactly type, provider and data; a rejection carries type, ip and category.
type Message struct {
	Type     string          `json:"type"`
	Provider scrape.Provider `json:"provider,omitempty"`
	Data     *scrape.Result  `json:"data,omitempty"`
	IP       string          `json:"ip,omitempty"`
	Category string          `json:"category,omitempty"`
}

// PartialResult builds the per-provider message.
func PartialResult(p scrape.Provider, res *scrape.Result) Message {
	return Message{Type: TypePartialResult, Provider: p, Data: res}
}

// Rejected builds the message sent instead of scraping a non-public address.
func Rejected(ip, category string) Message {
	return Message{Type: TypeRejected, IP: ip, Category: category}
}

var (
	// ErrBadMessage marks an inbound frame that is not a valid request.
	ErrBadMessage = errors.New("stream: malformed message")

	// ErrTabURL is returned for background-tab URLs that are not absolute http(s).
	ErrTabURL = errors.New("stream: background tab url must be absolute http or https")
)

// ValidateTabURL accepts absolute http and https URLs with a host.
func ValidateTabURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTabURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrTabURL, raw)
	}
	return nil
}

package virustotal

import (
	"fmt"

	"github.com/ipcheck/ipcheck/pkg/dom"
)

// Paths locates each field on the IP address report. Step lists use
// dom.ShadowStep to cross into a component's shadow root. They can be
// overridden from the config file when the site's markup moves.
type Paths struct {
	AppRoot       string   `yaml:"app_root"`
	Country       []string `yaml:"country"`
	Score         []string `yaml:"score"`
	Domain        []string `yaml:"domain"`
	DateContainer []string `yaml:"date_container"`
	TimeAgo       string   `yaml:"time_ago"`
	DateLabel     string   `yaml:"date_label"`
}

const ipCard = "div > div > div.col-12.col-md > vt-ui-ip-card"

// DefaultPaths matches the current VirusTotal report layout.
func DefaultPaths() Paths {
	return Paths{
		AppRoot: "#view-container > default-layout > ip-address-view",
		Country: []string{
			dom.ShadowStep, ipCard,
			dom.ShadowStep, "div > div.card-body.d-flex > div > div.hstack.gap-4 > a",
		},
		Score: []string{
			dom.ShadowStep, "div > div > div.col-12.col-md-auto > vt-ioc-score-widget",
			dom.ShadowStep, "div > vt-ioc-score-widget-detections-chart",
			dom.ShadowStep, "div > div",
		},
		Domain: []string{
			dom.ShadowStep, ipCard,
			dom.ShadowStep, "div > div.card-body.d-flex > div > div.hstack.gap-4 > div.vstack.gap-2.align-self-center.text-truncate.me-auto > div:nth-child(2) > span > a",
		},
		DateContainer: []string{
			dom.ShadowStep, ipCard,
			dom.ShadowStep, "div > div.card-body.d-flex > div > div.hstack.gap-4", "div:nth-child(5)",
		},
		TimeAgo:   "vt-ui-time-ago",
		DateLabel: "Last Analysis Date",
	}
}

// WithDefaults fills empty fields from DefaultPaths.
func (p Paths) WithDefaults() Paths {
	return p.merge(DefaultPaths())
}

// merge fills empty fields of p from def.
func (p Paths) merge(def Paths) Paths {
	if p.AppRoot == "" {
		p.AppRoot = def.AppRoot
	}
	if len(p.Country) == 0 {
		p.Country = def.Country
	}
	if len(p.Score) == 0 {
		p.Score = def.Score
	}
	if len(p.Domain) == 0 {
		p.Domain = def.Domain
	}
	if len(p.DateContainer) == 0 {
		p.DateContainer = def.DateContainer
	}
	if p.TimeAgo == "" {
		p.TimeAgo = def.TimeAgo
	}
	if p.DateLabel == "" {
		p.DateLabel = def.DateLabel
	}
	return p
}

// Validate reports an error when a selector in p does not parse.
func (p Paths) Validate() error {
	check := func(field, sel string) error {
		if _, err := dom.Doc().QuerySelector(sel); err != nil {
			return fmt.Errorf("virustotal: paths.%s: %w", field, err)
		}
		return nil
	}
	if err := check("app_root", p.AppRoot); err != nil {
		return err
	}
	if err := check("time_ago", p.TimeAgo); err != nil {
		return err
	}
	for field, tokens := range map[string][]string{
		"country": p.Country, "score": p.Score, "domain": p.Domain, "date_container": p.DateContainer,
	} {
		for _, tok := range tokens {
			if tok == dom.ShadowStep {
				continue
			}
			if err := check(field, tok); err != nil {
				return err
			}
		}
	}
	return nil
}

type compiledPaths struct {
	appRoot       string
	country       dom.Path
	score         dom.Path
	domain        dom.Path
	dateContainer dom.Path
	timeAgo       string
	dateLabel     string
}

func (p Paths) compile() compiledPaths {
	return compiledPaths{
		appRoot:       p.AppRoot,
		country:       dom.ParsePath(p.Country...),
		score:         dom.ParsePath(p.Score...),
		domain:        dom.ParsePath(p.Domain...),
		dateContainer: dom.ParsePath(p.DateContainer...),
		timeAgo:       p.TimeAgo,
		dateLabel:     p.DateLabel,
	}
}

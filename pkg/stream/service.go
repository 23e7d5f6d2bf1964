// Package stream fans one lookup request out to every provider scraper and
// pushes each provider's result back as soon as it is ready.
package stream

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ipcheck/ipcheck/pkg/ipclass"
	"github.com/ipcheck/ipcheck/pkg/output/dispatcher"
	"github.com/ipcheck/ipcheck/pkg/output/events"
	"github.com/ipcheck/ipcheck/pkg/scrape"
)

// EmitFunc receives outbound messages. It is called from the scraper
// goroutines and must be safe for concurrent use.
type EmitFunc func(Message)

// Service runs lookups against a fixed set of scrapers.
type Service struct {
	scrapers   []scrape.Scraper
	dispatcher *dispatcher.Dispatcher
	logger     *slog.Logger
	source     string
}

// Option configures a Service.
type Option func(*Service)

// WithDispatcher sends lookup events to d.
func WithDispatcher(d *dispatcher.Dispatcher) Option {
	return func(s *Service) { s.dispatcher = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSource labels lookup events with where the request came from.
func WithSource(source string) Option {
	return func(s *Service) { s.source = source }
}

// NewService returns a service querying every scraper for each lookup.
func NewService(scrapers []scrape.Scraper, opts ...Option) *Service {
	s := &Service{
		scrapers: scrapers,
		logger:   slog.Default(),
		source:   "stream",
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Providers lists the providers a lookup reports on, in scraper order.
func (s *Service) Providers() []scrape.Provider {
	out := make([]scrape.Provider, len(s.scrapers))
	for i, sc := range s.scrapers {
		out[i] = sc.Provider()
	}
	return out
}

// Links returns the provider page URL for ip, in scraper order.
func (s *Service) Links(ip string) []events.ProviderLink {
	ip = strings.TrimSpace(ip)
	links := make([]events.ProviderLink, len(s.scrapers))
	for i, sc := range s.scrapers {
		links[i] = events.ProviderLink{Provider: sc.Provider(), URL: sc.URL(ip)}
	}
	return links
}

// Lookup starts every scraper for ip concurrently and calls emit once per
// provider, in completion order, as each one finishes. It returns after all
// providers have emitted. An address that is not public is not scraped: emit
// receives a single Rejected message instead.
func (s *Service) Lookup(ctx context.Context, ip string, emit EmitFunc) {
	ip = strings.TrimSpace(ip)
	id := events.NewLookupID()
	log := s.logger.With("lookup_id", id, "ip", ip)

	class := ipclass.Classify(ip)
	if class.Type != ipclass.Public {
		category := CategoryOf(class)
		log.Debug("lookup rejected", "category", category)
		s.dispatcher.Dispatch(ctx, events.NewRejected(id, ip, category, string(class.Type)))
		emit(Rejected(ip, category))
		return
	}

	s.dispatcher.Dispatch(ctx, events.NewStart(id, ip, s.source, s.Links(ip)))

	start := time.Now()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results = make(map[scrape.Provider]*scrape.Result, len(s.scrapers))
	)
	for _, sc := range s.scrapers {
		wg.Add(1)
		go func(sc scrape.Scraper) {
			defer wg.Done()
			res := s.scrapeOne(ctx, sc, ip, log)

			mu.Lock()
			results[sc.Provider()] = res
			mu.Unlock()

			s.dispatcher.Dispatch(ctx, events.NewPartial(id, ip, sc.Provider(), res, time.Since(start)))
			emit(PartialResult(sc.Provider(), res))
		}(sc)
	}
	wg.Wait()

	s.dispatcher.Dispatch(ctx, events.NewComplete(id, ip, results, time.Since(start)))
}

// scrapeOne always yields a result, whatever the scraper does.
func (s *Service) scrapeOne(ctx context.Context, sc scrape.Scraper, ip string, log *slog.Logger) (res *scrape.Result) {
	defer func() {
		if p := recover(); p != nil {
			log.Error("scraper panicked", "provider", sc.Provider(), "panic", fmt.Sprint(p))
			res = scrape.Degraded()
		}
	}()
	res = sc.Scrape(ctx, ip)
	if res == nil {
		res = scrape.Degraded()
	}
	return res
}

// CategoryInvalid labels tokens that are not IP addresses.
const CategoryInvalid = "Invalid IP"

// CategoryOf is the category reported for a classification.
func CategoryOf(r ipclass.Result) string {
	if !r.Valid || r.Category == "" {
		return CategoryInvalid
	}
	return r.Category
}

// Report is the merged outcome of one lookup.
type Report struct {
	IP             string                             `json:"ip"`
	Classification ipclass.Result                     `json:"classification"`
	Results        map[scrape.Provider]*scrape.Result `json:"results,omitempty"`
	// Order is the order providers reported in.
	Order []scrape.Provider `json:"order,omitempty"`
}

// Rejected reports whether the address was refused without scraping.
func (r *Report) Rejected() bool {
	return r.Classification.Type != ipclass.Public
}

// Collect runs Lookup and merges the messages into a Report.
func (s *Service) Collect(ctx context.Context, ip string) *Report {
	ip = strings.TrimSpace(ip)
	rep := &Report{IP: ip, Classification: ipclass.Classify(ip)}
	var mu sync.Mutex
	s.Lookup(ctx, ip, func(m Message) {
		if m.Type != TypePartialResult {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if rep.Results == nil {
			rep.Results = make(map[scrape.Provider]*scrape.Result)
		}
		rep.Results[m.Provider] = m.Data
		rep.Order = append(rep.Order, m.Provider)
	})
	return rep
}

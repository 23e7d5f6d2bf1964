package scrape

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ipcheck/ipcheck/pkg/duration"
)

// Window is a freshly opened browser window and the tabs reported with it.
type Window struct {
	ID   string
	Tabs []string
}

// ExtractFunc is the routine executed against a window's page.
type ExtractFunc func(ctx context.Context, page Page) (*Result, error)

// WindowManager is the browser capability the runner depends on.
type WindowManager interface {
	// Create opens a minimized, unfocused window navigated to url.
	Create(ctx context.Context, url string) (*Window, error)
	// Tabs lists the tabs of a window.
	Tabs(ctx context.Context, windowID string) ([]string, error)
	// Execute runs fn against the page loaded in tab.
	Execute(ctx context.Context, tabID string, fn ExtractFunc) (*Result, error)
	// Remove closes the window.
	Remove(ctx context.Context, windowID string) error
}

// Routine is a provider's extraction logic.
type Routine interface {
	Provider() Provider
	URL(ip string) string
	Extract(ctx context.Context, page Page) (*Result, error)
}

// Scraper looks one address up at one provider.
type Scraper interface {
	Provider() Provider
	// URL is the provider page Scrape reads for ip.
	URL(ip string) string
	Scrape(ctx context.Context, ip string) *Result
}

// Runner executes routines inside windows it owns for the duration of a run.
type Runner struct {
	windows WindowManager
	settle  time.Duration
	logger  *slog.Logger
	wait    func(ctx context.Context, d time.Duration) error
}

// Option configures a Runner.
type Option func(*Runner)

// WithSettle sets the pause between window creation and the routine.
func WithSettle(d time.Duration) Option {
	return func(r *Runner) { r.settle = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRunner returns a runner opening windows through windows.
func NewRunner(windows WindowManager, opts ...Option) *Runner {
	r := &Runner{
		windows: windows,
		settle:  duration.ScrapeSettle,
		logger:  slog.Default(),
		wait:    sleepCtx,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// RunInWindow opens a window at url, waits the settle delay, runs extract
// against the window's page and closes the window. The window is closed
// exactly once on every path. Failures yield Degraded(); RunInWindow never
// panics.
func (r *Runner) RunInWindow(ctx context.Context, url string, extract ExtractFunc) (res *Result) {
	log := r.logger.With("url", url)
	defer func() {
		if p := recover(); p != nil {
			log.Error("scrape run panicked", "panic", fmt.Sprint(p))
			res = Degraded()
		}
	}()

	win, err := r.windows.Create(ctx, url)
	if win != nil && win.ID != "" {
		defer r.release(ctx, win.ID, log)
	}
	if err != nil || win == nil {
		log.Warn("scrape window not opened", "error", fmt.Errorf("%w: %v", ErrWindowCreate, err))
		return Degraded()
	}

	tab, err := r.resolveTab(ctx, win)
	if err != nil {
		log.Warn("scrape window has no page", "window", win.ID, "error", err)
		return Degraded()
	}

	if err := r.wait(ctx, r.settle); err != nil {
		log.Warn("scrape settle interrupted", "window", win.ID, "error", err)
		return Degraded()
	}

	res, err = r.windows.Execute(ctx, tab, extract)
	if err != nil {
		log.Warn("scrape routine failed", "window", win.ID, "error", fmt.Errorf("%w: %w", ErrExecute, err))
		return Degraded()
	}
	if res == nil {
		log.Warn("scrape routine failed", "window", win.ID, "error", ErrEmptyResult)
		return Degraded()
	}
	return res
}

// Bind pairs the runner with a routine.
func (r *Runner) Bind(routine Routine) Scraper {
	return &boundScraper{runner: r, routine: routine}
}

func (r *Runner) resolveTab(ctx context.Context, win *Window) (string, error) {
	for _, t := range win.Tabs {
		if t != "" {
			return t, nil
		}
	}
	tabs, err := r.windows.Tabs(ctx, win.ID)
	if err != nil {
		return "", fmt.Errorf("%w: %w", &NoTabError{WindowID: win.ID}, err)
	}
	for _, t := range tabs {
		if t != "" {
			return t, nil
		}
	}
	return "", &NoTabError{WindowID: win.ID}
}

// release closes the window even when ctx has been cancelled.
func (r *Runner) release(ctx context.Context, windowID string, log *slog.Logger) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), duration.TabAction)
	defer cancel()
	if err := r.windows.Remove(rctx, windowID); err != nil {
		log.Debug("scrape window close failed", "window", windowID, "error", err)
	}
}

type boundScraper struct {
	runner  *Runner
	routine Routine
}

func (b *boundScraper) Provider() Provider { return b.routine.Provider() }

func (b *boundScraper) URL(ip string) string { return b.routine.URL(ip) }

func (b *boundScraper) Scrape(ctx context.Context, ip string) *Result {
	return b.runner.RunInWindow(ctx, b.routine.URL(ip), b.routine.Extract)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

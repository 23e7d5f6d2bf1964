// Package browser drives a local Chrome over the DevTools protocol and
// provides the window capability scrape runs depend on: opening minimized
// background windows, evaluating the snapshot script in them and closing
// them again.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"

	"github.com/ipcheck/ipcheck/pkg/duration"
	"github.com/ipcheck/ipcheck/pkg/scrape"
)

var (
	// ErrClosed is returned once the browser has been shut down.
	ErrClosed = errors.New("browser: closed")

	// ErrLaunch wraps every failure to start Chrome.
	ErrLaunch = errors.New("browser: launch")
)

// Config controls how Chrome is launched.
type Config struct {
	ExecPath    string `yaml:"exec_path"`
	Headless    bool   `yaml:"headless"`
	NoSandbox   bool   `yaml:"no_sandbox"`
	Stealth     bool   `yaml:"stealth"`
	UserAgent   string `yaml:"user_agent"`
	Proxy       string `yaml:"proxy"`
	UserDataDir string `yaml:"user_data_dir"`
	WindowSize  string `yaml:"window_size"`
}

// DefaultUserAgent is a current desktop Chrome user agent.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/138.0.0.0 Safari/537.36"

// DefaultConfig returns a headless, stealthy configuration.
func DefaultConfig() Config {
	return Config{
		Headless:   true,
		Stealth:    true,
		UserAgent:  DefaultUserAgent,
		WindowSize: "1366,900",
	}
}

// allocatorOptions builds the Chrome command line.
func allocatorOptions(cfg Config) []chromedp.ExecAllocatorOption {
	var opts []chromedp.ExecAllocatorOption
	if cfg.Headless {
		opts = append(opts, chromedp.DefaultExecAllocatorOptions[:]...)
		opts = append(opts, chromedp.Flag("disable-gpu", true))
	} else {
		// DefaultExecAllocatorOptions[2] is chromedp.Headless
		defaultOpts := chromedp.DefaultExecAllocatorOptions[:]
		opts = append(opts, defaultOpts[0], defaultOpts[1])
		opts = append(opts, defaultOpts[3:]...)
	}

	if cfg.Stealth {
		opts = append(opts,
			chromedp.Flag("disable-blink-features", "AutomationControlled"),
			chromedp.Flag("enable-automation", false),
			chromedp.Flag("disable-infobars", true),
		)
	}
	if cfg.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	if cfg.WindowSize != "" {
		opts = append(opts, chromedp.Flag("window-size", cfg.WindowSize))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	if cfg.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(cfg.UserDataDir))
	}
	if cfg.Proxy != "" {
		opts = append(opts, chromedp.ProxyServer(cfg.Proxy))
	}
	return opts
}

// Chrome is a running browser. It implements scrape.WindowManager.
type Chrome struct {
	cfg    Config
	logger *slog.Logger

	browserCtx    context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc

	mu     sync.Mutex
	tabs   map[target.ID]tab
	closed bool
}

// tab is a chromedp context for one target. Cancelling it closes the
// target only once the context has attached.
type tab struct {
	ctx    context.Context
	cancel context.CancelFunc
}

var _ scrape.WindowManager = (*Chrome)(nil)

// Launch starts Chrome and waits until it accepts commands.
func Launch(ctx context.Context, cfg Config, logger *slog.Logger) (*Chrome, error) {
	if logger == nil {
		logger = slog.Default()
	}
	// The browser outlives ctx, which only bounds startup.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocatorOptions(cfg)...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			logger.Debug(fmt.Sprintf(format, args...), "component", "chromedp")
		}),
	)

	c := &Chrome{
		cfg:           cfg,
		logger:        logger,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		allocCancel:   allocCancel,
		tabs:          make(map[target.ID]tab),
	}

	startCtx, cancel := context.WithTimeout(ctx, duration.BrowserStartup)
	defer cancel()
	started := make(chan error, 1)
	go func() { started <- chromedp.Run(browserCtx) }()
	select {
	case err := <-started:
		if err != nil {
			c.shutdown()
			return nil, fmt.Errorf("%w: %w", ErrLaunch, err)
		}
	case <-startCtx.Done():
		c.shutdown()
		return nil, fmt.Errorf("%w: %w", ErrLaunch, startCtx.Err())
	}

	logger.Info("browser started", "headless", cfg.Headless, "stealth", cfg.Stealth)
	return c, nil
}

// executor returns a context that sends commands to the browser target.
func (c *Chrome) executor(ctx context.Context) (context.Context, error) {
	bc := chromedp.FromContext(c.browserCtx)
	if bc == nil || bc.Browser == nil {
		return nil, ErrClosed
	}
	return cdp.WithExecutor(ctx, bc.Browser), nil
}

// Create opens a new minimized background window and starts loading url.
// It does not wait for the page to load.
func (c *Chrome) Create(ctx context.Context, url string) (*scrape.Window, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	actx, cancel := context.WithTimeout(ctx, duration.TabAction)
	defer cancel()
	exec, err := c.executor(actx)
	if err != nil {
		return nil, err
	}

	id, err := target.CreateTarget("about:blank").
		WithNewWindow(true).
		WithBackground(true).
		WithWindowState(target.WindowStateMinimized).
		Do(exec)
	if err != nil {
		return nil, fmt.Errorf("browser: create target: %w", err)
	}

	tabCtx, tabCancel := chromedp.NewContext(c.browserCtx, chromedp.WithTargetID(id))
	c.mu.Lock()
	c.tabs[id] = tab{ctx: tabCtx, cancel: tabCancel}
	c.mu.Unlock()

	err = chromedp.Run(tabCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		if c.cfg.Stealth {
			if _, err := page.AddScriptToEvaluateOnNewDocument(stealthScript).Do(ctx); err != nil {
				return err
			}
		}
		_, _, errorText, _, err := page.Navigate(url).Do(ctx)
		if err != nil {
			return err
		}
		if errorText != "" {
			return fmt.Errorf("navigate: %s", errorText)
		}
		return nil
	}))
	if err != nil {
		// Hand the window back so the caller's cleanup still closes it.
		return &scrape.Window{ID: string(id), Tabs: []string{string(id)}}, fmt.Errorf("browser: open %s: %w", url, err)
	}

	return &scrape.Window{ID: string(id), Tabs: []string{string(id)}}, nil
}

// Tabs lists the page targets belonging to windowID.
func (c *Chrome) Tabs(ctx context.Context, windowID string) ([]string, error) {
	infos, err := chromedp.Targets(c.browserCtx)
	if err != nil {
		return nil, fmt.Errorf("browser: list targets: %w", err)
	}
	var tabs []string
	for _, info := range infos {
		if info.Type == "page" && (string(info.TargetID) == windowID || string(info.OpenerID) == windowID) {
			tabs = append(tabs, string(info.TargetID))
		}
	}
	return tabs, nil
}

// Execute runs fn against the page loaded in tabID.
func (c *Chrome) Execute(ctx context.Context, tabID string, fn scrape.ExtractFunc) (*scrape.Result, error) {
	tabCtx, err := c.attach(target.ID(tabID))
	if err != nil {
		return nil, err
	}
	return fn(ctx, &chromePage{tabCtx: tabCtx})
}

// attach returns the chromedp context for id, attaching to the target when
// it was not opened by Create.
func (c *Chrome) attach(id target.ID) (context.Context, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	if t, ok := c.tabs[id]; ok {
		return t.ctx, nil
	}
	ctx, cancel := chromedp.NewContext(c.browserCtx, chromedp.WithTargetID(id))
	c.tabs[id] = tab{ctx: ctx, cancel: cancel}
	return ctx, nil
}

// Remove closes the window.
func (c *Chrome) Remove(ctx context.Context, windowID string) error {
	id := target.ID(windowID)
	c.mu.Lock()
	t, ok := c.tabs[id]
	delete(c.tabs, id)
	c.mu.Unlock()

	if ok {
		// Cancelling an attached chromedp context detaches and closes the
		// target. A context that never attached leaves it open.
		attached := !needsExplicitClose(t.ctx)
		t.cancel()
		if attached {
			return nil
		}
	}
	exec, err := c.executor(ctx)
	if err != nil {
		return err
	}
	return target.CloseTarget(id).Do(exec)
}

// needsExplicitClose reports whether tabCtx never attached to its target.
func needsExplicitClose(tabCtx context.Context) bool {
	c := chromedp.FromContext(tabCtx)
	return c == nil || c.Target == nil
}

// OpenBackgroundTab opens url in a new tab of the running browser without
// focusing it. The tab is left open.
func (c *Chrome) OpenBackgroundTab(ctx context.Context, url string) error {
	actx, cancel := context.WithTimeout(ctx, duration.TabAction)
	defer cancel()
	exec, err := c.executor(actx)
	if err != nil {
		return err
	}
	if _, err := target.CreateTarget(url).WithBackground(true).Do(exec); err != nil {
		return fmt.Errorf("browser: open background tab: %w", err)
	}
	return nil
}

// Close shuts Chrome down, killing the process tree if a graceful shutdown
// does not finish within duration.BrowserShutdown.
func (c *Chrome) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	tabs := c.tabs
	c.tabs = map[target.ID]tab{}
	c.mu.Unlock()

	for _, t := range tabs {
		t.cancel()
	}
	c.shutdown()
	return nil
}

// shutdown cancels the chromedp contexts with a deadline. On Windows the
// allocator cancel can block on Chrome helpers, so the tree is force-killed.
func (c *Chrome) shutdown() {
	var proc *os.Process
	if bc := chromedp.FromContext(c.browserCtx); bc != nil && bc.Browser != nil {
		proc = bc.Browser.Process()
	}

	done := make(chan struct{})
	go func() {
		c.browserCancel()
		c.allocCancel()
		close(done)
	}()

	timer := time.NewTimer(duration.BrowserShutdown)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		killProcessTree(proc)
		c.logger.Warn("browser shutdown timed out, killed process tree")
	}
}

// chromePage reads snapshots from an attached tab.
type chromePage struct {
	tabCtx context.Context
}

// Snapshot evaluates the snapshot script in the tab. ctx bounds the call.
func (p *chromePage) Snapshot(ctx context.Context) (*scrape.Snapshot, error) {
	runCtx, cancel := context.WithTimeout(p.tabCtx, duration.TabAction)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var raw string
	if err := chromedp.Run(runCtx, chromedp.Evaluate(scrape.SnapshotScript(), &raw)); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("browser: snapshot: %w", err)
	}
	return scrape.DecodeSnapshot([]byte(raw))
}

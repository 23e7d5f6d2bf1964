package scrape

import (
	"context"
	"errors"
	"sync"
)

// fakeWindows is an in-memory WindowManager that records every call.
type fakeWindows struct {
	mu sync.Mutex

	createErr error
	partial   bool // Create returns the window along with createErr
	noTabs    bool // Create reports no tabs
	tabsList  []string
	tabsErr   error
	page      Page

	created []string
	removed map[string]int
	urls    []string
	next    int
}

func newFakeWindows() *fakeWindows {
	return &fakeWindows{removed: map[string]int{}, page: staticPage{&Snapshot{Title: "ok"}}}
}

func (f *fakeWindows) Create(_ context.Context, url string) (*Window, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.urls = append(f.urls, url)
	if f.createErr != nil && !f.partial {
		return nil, f.createErr
	}
	f.next++
	id := "win-" + string(rune('0'+f.next))
	f.created = append(f.created, id)
	w := &Window{ID: id}
	if !f.noTabs {
		w.Tabs = []string{id + "/tab"}
	}
	return w, f.createErr
}

func (f *fakeWindows) Tabs(_ context.Context, windowID string) ([]string, error) {
	return f.tabsList, f.tabsErr
}

func (f *fakeWindows) Execute(ctx context.Context, _ string, fn ExtractFunc) (*Result, error) {
	return fn(ctx, f.page)
}

func (f *fakeWindows) Remove(ctx context.Context, windowID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ctx.Err() != nil {
		return errors.New("remove called with a dead context")
	}
	f.removed[windowID]++
	return nil
}

type staticPage struct{ snap *Snapshot }

func (p staticPage) Snapshot(context.Context) (*Snapshot, error) { return p.snap, nil }

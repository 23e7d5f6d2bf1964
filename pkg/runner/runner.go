// Package runner fans a batch of targets out over a bounded set of workers,
// optionally pacing how fast new targets start.
package runner

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/ipcheck/ipcheck/pkg/duration"
)

// Result is the outcome of one target. Index is the target's position in
// the input slice.
type Result[T any] struct {
	Target   string
	Index    int
	Data     T
	Error    error
	Duration time.Duration
}

// Stats tracks execution statistics. Fields are updated atomically.
type Stats struct {
	Total      int64
	Completed  int64
	Successful int64
	Failed     int64
	StartTime  time.Time
}

// Progress returns completion percentage (0-100)
func (s *Stats) Progress() float64 {
	total := atomic.LoadInt64(&s.Total)
	if total == 0 {
		return 0
	}
	return float64(atomic.LoadInt64(&s.Completed)) / float64(total) * 100
}

// Runner executes a task for every target with bounded concurrency.
type Runner[T any] struct {
	// Concurrency is the number of parallel workers (default 1)
	Concurrency int

	// PerMinute caps how many targets start per minute (0 = unlimited)
	PerMinute int

	// Timeout bounds each target (default duration.LookupMax)
	Timeout time.Duration

	Stats Stats

	// OnResult is called after each target completes, never concurrently.
	OnResult func(completed, total int64, result Result[T])
}

// NewRunner returns a Runner with the given concurrency.
func NewRunner[T any](concurrency int) *Runner[T] {
	return &Runner[T]{
		Concurrency: concurrency,
		Timeout:     duration.LookupMax,
	}
}

// TaskFunc processes a single target.
type TaskFunc[T any] func(ctx context.Context, target string) (T, error)

// Run processes every target and returns results in input order. Targets
// not started before ctx ends carry ErrNotStarted.
func (r *Runner[T]) Run(ctx context.Context, targets []string, task TaskFunc[T]) []Result[T] {
	if len(targets) == 0 {
		return nil
	}

	r.Stats = Stats{
		Total:     int64(len(targets)),
		StartTime: time.Now(),
	}

	concurrency := max(r.Concurrency, 1)
	concurrency = min(concurrency, len(targets))

	var limiter *rate.Limiter
	if r.PerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(r.PerMinute)), 1)
	}

	results := make([]Result[T], len(targets))
	for i, t := range targets {
		results[i] = Result[T]{Target: t, Index: i, Error: ErrNotStarted}
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		sem    = make(chan struct{}, concurrency)
		report = func(res Result[T]) {
			mu.Lock()
			defer mu.Unlock()
			results[res.Index] = res
			completed := atomic.AddInt64(&r.Stats.Completed, 1)
			if res.Error == nil {
				atomic.AddInt64(&r.Stats.Successful, 1)
			} else {
				atomic.AddInt64(&r.Stats.Failed, 1)
			}
			if r.OnResult != nil {
				r.OnResult(completed, r.Stats.Total, res)
			}
		}
	)

	for i, target := range targets {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				break
			}
		}
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		go func(i int, t string) {
			defer wg.Done()
			defer func() { <-sem }()

			taskCtx := ctx
			if r.Timeout > 0 {
				var cancel context.CancelFunc
				taskCtx, cancel = context.WithTimeout(ctx, r.Timeout)
				defer cancel()
			}

			start := time.Now()
			data, err := task(taskCtx, t)
			report(Result[T]{Target: t, Index: i, Data: data, Error: err, Duration: time.Since(start)})
		}(i, target)
	}

	wg.Wait()
	return results
}

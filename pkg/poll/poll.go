// Package poll runs a bounded, strictly sequential polling loop: a probe is
// called once per attempt with a fixed sleep between attempts until it
// reports a terminal result or the attempt budget runs out.
//
// The budget is a count, not a deadline, so the worst-case elapsed time is
// roughly MaxAttempts*Interval plus the time spent inside the probe.
//
// Usage:
//
//	rep, err := poll.Run(ctx, poll.DefaultConfig(), func(ctx context.Context, a poll.Attempt) (bool, error) {
//	    return pageIsReady(ctx), nil
//	})
//	if errors.Is(err, poll.ErrExhausted) {
//	    // timed out
//	}
package poll

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ipcheck/ipcheck/pkg/defaults"
	"github.com/ipcheck/ipcheck/pkg/duration"
)

// ErrExhausted is returned when every attempt ran without a terminal result.
var ErrExhausted = errors.New("poll: attempt budget exhausted")

// State is the state of a polling loop.
type State int

const (
	// Waiting means no terminal signal has been seen yet.
	Waiting State = iota
	// Done means the probe reported a terminal result.
	Done
	// TimedOut means the attempt budget ran out.
	TimedOut
	// Aborted means the probe failed or the context was cancelled.
	Aborted
)

func (s State) String() string {
	switch s {
	case Waiting:
		return "waiting"
	case Done:
		return "done"
	case TimedOut:
		return "timed_out"
	case Aborted:
		return "aborted"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Config controls the loop.
type Config struct {
	MaxAttempts int           // Total attempts. 0 or less means no attempt is made.
	Interval    time.Duration // Sleep between two attempts. 0 disables sleeping.
}

// DefaultConfig returns 15 attempts one second apart.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: defaults.PollAttempts,
		Interval:    duration.PollInterval,
	}
}

// Attempt describes the current iteration to the probe.
type Attempt struct {
	Index int  // 0-based, strictly increasing
	Last  bool // true on the final attempt of the budget
}

// Probe inspects the target once. It returns true when a terminal result has
// been captured. A non-nil error aborts the loop.
type Probe func(ctx context.Context, a Attempt) (bool, error)

// Report summarises a finished loop.
type Report struct {
	State    State
	Attempts int
}

// sleeper is an interface for waiting, allowing tests to override time.After.
type sleeper interface {
	sleep(ctx context.Context, d time.Duration) error
}

// realSleeper uses a timer for production code.
type realSleeper struct{}

func (realSleeper) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run calls probe up to cfg.MaxAttempts times. It returns nil once the probe
// reports done, ErrExhausted when the budget runs out, or the probe's error
// (or ctx.Err()) when the loop is aborted.
func Run(ctx context.Context, cfg Config, probe Probe) (Report, error) {
	return runWithSleeper(ctx, cfg, probe, realSleeper{})
}

func runWithSleeper(ctx context.Context, cfg Config, probe Probe, s sleeper) (Report, error) {
	rep := Report{State: Waiting}
	for i := range max(cfg.MaxAttempts, 0) {
		if err := ctx.Err(); err != nil {
			rep.State = Aborted
			return rep, err
		}

		rep.Attempts = i + 1
		done, err := probe(ctx, Attempt{Index: i, Last: i == cfg.MaxAttempts-1})
		if err != nil {
			rep.State = Aborted
			return rep, err
		}
		if done {
			rep.State = Done
			return rep, nil
		}

		// No sleep after the final attempt.
		if i < cfg.MaxAttempts-1 {
			if err := s.sleep(ctx, cfg.Interval); err != nil {
				rep.State = Aborted
				return rep, err
			}
		}
	}
	rep.State = TimedOut
	return rep, ErrExhausted
}

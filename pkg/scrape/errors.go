package scrape

import (
	"errors"
	"fmt"
)

// Errors logged by the runner. They never reach callers of RunInWindow.
var (
	ErrWindowCreate = errors.New("scrape: window creation failed")
	ErrExecute      = errors.New("scrape: routine execution failed")
	ErrEmptyResult  = errors.New("scrape: routine returned no result")
)

// NoTabError reports a window without any page to run a routine in.
type NoTabError struct {
	WindowID string
}

func (e *NoTabError) Error() string {
	return fmt.Sprintf("scrape: no tab in window %s", e.WindowID)
}

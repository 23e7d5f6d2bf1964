package runner

import "errors"

// ErrNotStarted marks targets left unprocessed because the context ended
// before a worker picked them up.
var ErrNotStarted = errors.New("runner: target not started")

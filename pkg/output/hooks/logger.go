// Package hooks provides dispatcher hooks that feed lookup events to
// metrics, tracing and the structured log.
package hooks

import "log/slog"

// orDefault returns l if non-nil, otherwise slog.Default().
func orDefault(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return slog.Default()
}

package config

import "errors"

// Load and Validate wrap these; the CLI maps both to a usage exit code.
var (
	// ErrInvalidConfig covers unreadable YAML, unknown keys and values out
	// of range (log level, concurrency, selector paths).
	ErrInvalidConfig = errors.New("config: invalid configuration")

	// ErrMissingRequired means a field with no usable default was emptied,
	// such as server.addr.
	ErrMissingRequired = errors.New("config: missing required field")
)

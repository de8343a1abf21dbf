package errors

import "errors"

// Pool lifecycle errors
var (
	// ErrAcquireTimeout is returned when a queued caller waits longer than
	// the configured connection timeout
	ErrAcquireTimeout = errors.New("timed out waiting for a pooled connection")

	// ErrPoolShutdown is returned to callers still queued when the pool shuts down
	ErrPoolShutdown = errors.New("pool shutting down")
)

// Backend connection errors
var (
	// ErrConnectionFailed is returned when a new backend handle cannot be validated
	ErrConnectionFailed = errors.New("backend connection failed")

	// ErrUnknownBackend is returned when the configured backend type has no factory
	ErrUnknownBackend = errors.New("unknown backend type")
)

// Configuration errors
var (
	// ErrConfigNotFound is returned when the configuration file is not found
	ErrConfigNotFound = errors.New("configuration not found")

	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid configuration")
)

// API errors
var (
	// ErrAuthFailed is returned when API authentication fails
	ErrAuthFailed = errors.New("authentication failed")
)

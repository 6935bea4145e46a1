package utils

import (
	"context"
	"time"
)

const (
	// DefaultTimeout bounds feedback persistence and similar I/O
	DefaultTimeout = 10 * time.Second

	// LongTimeout is for dataset reloads, which re-embed every entry
	LongTimeout = 10 * time.Minute

	// ShortTimeout is for quick operations (cache lookups, etc.)
	ShortTimeout = 2 * time.Second
)

func WithTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, DefaultTimeout)
}

func WithLongTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, LongTimeout)
}

func WithShortTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, ShortTimeout)
}

// WithCustomTimeout falls back to DefaultTimeout when duration is not positive.
func WithCustomTimeout(parent context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	if duration <= 0 {
		duration = DefaultTimeout
	}
	return context.WithTimeout(parent, duration)
}

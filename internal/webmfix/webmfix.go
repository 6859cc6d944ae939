// Package webmfix repairs the duration of WebM recordings.
//
// Browser recorders stream WebM with an unknown-size Segment and no Duration
// element in the Info section, so players show no length and cannot seek.
// A Fixer returns a copy of the recording with the duration set.
package webmfix

import (
	"context"
	"errors"
	"math"
)

var (
	// ErrUnavailable is returned by fixers that cannot run in this environment.
	ErrUnavailable = errors.New("webmfix: fixer unavailable")
	// ErrInvalidDuration is returned for non-finite or non-positive durations.
	ErrInvalidDuration = errors.New("webmfix: duration must be finite and positive")
)

// Fixer sets the duration of a WebM recording. Implementations must not
// modify data; the returned slice is a new buffer.
type Fixer interface {
	Fix(ctx context.Context, data []byte, durationMs float64) ([]byte, error)
}

// Func adapts an ordinary function to the Fixer interface.
type Func func(ctx context.Context, data []byte, durationMs float64) ([]byte, error)

func (f Func) Fix(ctx context.Context, data []byte, durationMs float64) ([]byte, error) {
	return f(ctx, data, durationMs)
}

// Noop always fails with ErrUnavailable. Pipelines configured with it pass
// WebM recordings through unchanged.
type Noop struct{}

func (Noop) Fix(context.Context, []byte, float64) ([]byte, error) {
	return nil, ErrUnavailable
}

func validDuration(ms float64) bool {
	return !math.IsNaN(ms) && !math.IsInf(ms, 0) && ms > 0
}

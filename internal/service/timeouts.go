package service

import (
	"context"
	"errors"
	"time"

	"github.com/sakif/geopoint/internal/apperror"
)

// Default bounds for outbound calls.
const (
	DefaultStoreTimeout  = 5 * time.Second
	DefaultVerifyTimeout = 10 * time.Second
)

// Timeouts bounds every call a service makes to a dependency. A zero value
// means "use the default".
type Timeouts struct {
	Store  time.Duration // each repository call
	Verify time.Duration // each identity provider call
}

func (t Timeouts) withDefaults() Timeouts {
	if t.Store <= 0 {
		t.Store = DefaultStoreTimeout
	}
	if t.Verify <= 0 {
		t.Verify = DefaultVerifyTimeout
	}
	return t
}

// bounded runs fn under a child context limited to d. If the deadline fires,
// the error becomes apperror.Unavailable for "what", whatever fn returned.
func bounded[T any](ctx context.Context, d time.Duration, what string, fn func(context.Context) (T, error)) (T, error) {
	cctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	v, err := fn(cctx)
	if err != nil && timedOut(cctx, err) {
		var zero T
		return zero, apperror.Unavailable(what, err)
	}
	return v, err
}

// boundedErr is bounded for calls with no result.
func boundedErr(ctx context.Context, d time.Duration, what string, fn func(context.Context) error) error {
	_, err := bounded(ctx, d, what, func(c context.Context) (struct{}, error) {
		return struct{}{}, fn(c)
	})
	return err
}

// timedOut reports whether err comes from the deadline rather than from the
// dependency's own answer. Errors that are already classified stay as they are.
func timedOut(ctx context.Context, err error) bool {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return false
	}
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded)
}

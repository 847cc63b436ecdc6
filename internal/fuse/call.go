package fuse

import (
	"context"
	"time"
)

// callWithTimeout bounds a provider call. A provider that ignores its
// context still cannot stall the caller: the result is abandoned and the
// deadline error returned instead.
func callWithTimeout[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn(cctx)
		ch <- result{v, err}
	}()

	select {
	case r := <-ch:
		return r.v, r.err
	case <-cctx.Done():
		var zero T
		return zero, cctx.Err()
	}
}

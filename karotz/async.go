package karotz

import (
	"context"
	"fmt"
)

// Result carries the outcome of an asynchronous call. Exactly one of Value
// and Err is meaningful.
type Result[T any] struct {
	Value T
	Err   error
}

// Go runs call on its own goroutine and returns immediately. When the call
// completes, exactly one of onSuccess and onFailure is invoked, once; a nil
// callback is skipped. Callbacks dispatched through the same client never run
// concurrently, but their order follows reply arrival, not call order.
//
//	karotz.Go(ctx, c, c.Sleep, func(r *karotz.Response) { ... }, nil)
func Go[T any](ctx context.Context, c *Client, call func(context.Context) (T, error), onSuccess func(T), onFailure func(error)) {
	go func() {
		value, err := safeCall(ctx, call)
		c.dispatchMu.Lock()
		defer c.dispatchMu.Unlock()
		if err != nil {
			if onFailure != nil {
				onFailure(err)
			}
			return
		}
		if onSuccess != nil {
			onSuccess(value)
		}
	}()
}

// Async runs call in the background. The returned channel receives exactly
// one Result and is then closed.
func Async[T any](ctx context.Context, call func(context.Context) (T, error)) <-chan Result[T] {
	out := make(chan Result[T], 1)
	go func() {
		defer close(out)
		value, err := safeCall(ctx, call)
		out <- Result[T]{Value: value, Err: err}
	}()
	return out
}

// safeCall turns a panic inside call into a transport error so a background
// call always reaches a continuation.
func safeCall[T any](ctx context.Context, call func(context.Context) (T, error)) (value T, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			value = zero
			err = &Error{Kind: KindTransport, Message: fmt.Sprintf("call panicked: %v", r)}
		}
	}()
	return call(ctx)
}

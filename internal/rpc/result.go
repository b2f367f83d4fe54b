package rpc

import "context"

// Result carries the outcome of one asynchronous call.
type Result[T any] struct {
	Method string
	Value  T
	Err    error
}

// OK reports whether the call succeeded.
func (r Result[T]) OK() bool { return r.Err == nil }

// Go issues a call on its own goroutine. The returned channel is buffered
// and receives exactly one Result, so callers may abandon it.
func Go[T any](ctx context.Context, caller Caller, method string, args any) <-chan Result[T] {
	out := make(chan Result[T], 1)
	go func() {
		var value T
		err := caller.Call(ctx, method, args, &value)
		out <- Result[T]{Method: method, Value: value, Err: err}
	}()
	return out
}

// Do issues a call synchronously and returns its Result.
func Do[T any](ctx context.Context, caller Caller, method string, args any) Result[T] {
	var value T
	err := caller.Call(ctx, method, args, &value)
	return Result[T]{Method: method, Value: value, Err: err}
}

package rawcore

import (
	"context"

	"github.com/corvidlabs/rawcore/pkg/wire"
)

// Future is a handle to a request dispatched by ExecuteAsync. It is the
// suspending counterpart to Execute: the caller's goroutine only blocks
// once it calls Wait, not at dispatch time.
type Future struct {
	done chan struct{}
	resp *Response
	err  error
}

// ExecuteAsync dispatches req on a new goroutine and returns immediately
// with a Future the caller can Wait on later, or abandon entirely if the
// result is no longer needed.
func (c *Client) ExecuteAsync(ctx context.Context, req *wire.Request) *Future {
	f := &Future{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		f.resp, f.err = c.Execute(ctx, req)
	}()
	return f
}

// Wait blocks until f's request completes or ctx is cancelled, whichever
// happens first. Calling Wait more than once returns the same result
// every time.
func (f *Future) Wait(ctx context.Context) (*Response, error) {
	select {
	case <-f.done:
		return f.resp, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Run drives fn — a suspending computation that itself issues requests
// against c — to completion, returning whatever fn returns. It exists so
// callers composing several Future-based calls have a single place to
// thread ctx and c through without repeating boilerplate.
func (c *Client) Run(ctx context.Context, fn func(ctx context.Context, c *Client) (*Response, error)) (*Response, error) {
	return fn(ctx, c)
}

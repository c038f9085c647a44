package task

import (
	"context"
	"sync"
)

// Func adapts a plain cold function into an Item, the common case for
// a work item that has no external stream to attach to: it is
// subscribed to (started) the first time InvokeAsync is called.
type Func[R any] struct {
	prepare func(context.Context) error
	fn      func(context.Context) (R, error)

	mu     sync.Mutex
	result R
	done   bool
}

// NewFunc wraps fn as a cold Item.
func NewFunc[R any](fn func(context.Context) (R, error)) *Func[R] {
	return &Func[R]{fn: fn}
}

// WithPrepare attaches a Prepare hook, run before InvokeAsync starts
// fn. It returns f for chaining at the construction site.
func (f *Func[R]) WithPrepare(prepare func(context.Context) error) *Func[R] {
	f.prepare = prepare
	return f
}

func (f *Func[R]) Prepare(ctx context.Context) error {
	if f.prepare == nil {
		return nil
	}
	return f.prepare(ctx)
}

func (f *Func[R]) IsHot() bool { return false }

func (f *Func[R]) InvokeAsync(ctx context.Context) (<-chan Outcome, error) {
	out := make(chan Outcome, 1)
	go func() {
		defer close(out)
		r, err := f.fn(ctx)
		if err == nil {
			f.mu.Lock()
			f.result = r
			f.done = true
			f.mu.Unlock()
		}
		out <- Outcome{Value: r, Err: err}
	}()
	return out, nil
}

func (f *Func[R]) Result() any {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.done {
		panic("task: Result called before Func completed successfully")
	}
	return f.result
}

// Hot adapts an already-running (or externally-driven) outcome
// channel into an Item. Unlike Func, InvokeAsync does not start any
// new work; it only relays the single Outcome the wrapped channel
// eventually produces — a hot item's underlying stream has already
// been started by something other than this Item.
type Hot[R any] struct {
	ch <-chan Outcome

	mu     sync.Mutex
	result R
	done   bool
}

// NewHot wraps ch, which must produce exactly one Outcome, as a hot
// Item.
func NewHot[R any](ch <-chan Outcome) *Hot[R] {
	return &Hot[R]{ch: ch}
}

func (h *Hot[R]) Prepare(context.Context) error { return nil }
func (h *Hot[R]) IsHot() bool                   { return true }

func (h *Hot[R]) InvokeAsync(ctx context.Context) (<-chan Outcome, error) {
	out := make(chan Outcome, 1)
	go func() {
		defer close(out)
		select {
		case o, ok := <-h.ch:
			if !ok {
				out <- Outcome{Err: context.Canceled}
				return
			}
			if o.Err == nil {
				if v, ok := o.Value.(R); ok {
					h.mu.Lock()
					h.result = v
					h.done = true
					h.mu.Unlock()
				}
			}
			out <- o
		case <-ctx.Done():
			out <- Outcome{Err: ctx.Err()}
		}
	}()
	return out, nil
}

func (h *Hot[R]) Result() any {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.done {
		panic("task: Result called before Hot completed successfully")
	}
	return h.result
}

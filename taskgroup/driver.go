package taskgroup

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"go.lepak.sg/taskgraph/dag"
	"go.lepak.sg/taskgraph/task"
)

// Emission is one item produced on an Invocation's Results channel:
// either an entry's key and its work item's result, or an entry's key
// and the error that faulted it.
type Emission struct {
	Key   string
	Value any
	Err   error
}

// Invocation is the handle returned by Driver.Invoke: a lazy stream of
// Emissions plus a Wait that blocks until the stream is fully drained
// and reports the invocation's aggregate outcome. The split separates
// "run everything, then report one error" into "stream results as
// they arrive, then report the aggregate error."
type Invocation struct {
	Results <-chan Emission

	wait func() error
}

// Wait blocks until every Emission has been produced and returns the
// invocation's aggregate error: nil on full success, the first fault
// under TerminateOnInProgressCompletion, every fault joined under
// TerminateOnHubCompletion, or the context's error if it was
// canceled.
func (inv *Invocation) Wait() error { return inv.wait() }

// Driver is the invocation driver: it walks a TaskGroup's effective
// DAG, dispatching ready entries concurrently and reporting their
// completion back into the DAG to unblock successors.
type Driver struct {
	// Logger receives structured diagnostics about dispatch and
	// faults. Nil is treated as a no-op logger, never a package-level
	// global, so every Driver instance can be configured
	// independently.
	Logger *zap.Logger
	// MaxInFlight bounds the number of entries dispatched
	// concurrently. Zero means unbounded.
	MaxInFlight int
}

// NewDriver returns a Driver with a no-op logger and no concurrency
// bound.
func NewDriver() *Driver {
	return &Driver{Logger: zap.NewNop()}
}

func (d *Driver) logger() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}

// DefaultDriver is the Driver TaskGroup.InvokeAsync delegates to when
// the caller has no need for a custom logger or concurrency bound.
var DefaultDriver = NewDriver()

// InvokeAsync starts g's invocation using DefaultDriver. Use
// Driver.Invoke directly for a custom logger or MaxInFlight.
func (g *TaskGroup) InvokeAsync(ctx context.Context) (*Invocation, error) {
	return DefaultDriver.Invoke(ctx, g)
}

type workerResult struct {
	entry   *dag.Entry
	outcome task.Outcome
}

// Invoke starts a streaming invocation: it chooses the effective DAG
// (g's proxy, if active, otherwise g itself), prepares it for
// enumeration, and returns immediately with an Invocation whose
// Results channel is fed by a background goroutine walking the ready
// queue.
func (d *Driver) Invoke(ctx context.Context, g *TaskGroup) (*Invocation, error) {
	mu.Lock()
	if g.invoking {
		mu.Unlock()
		return nil, ErrAlreadyStarted
	}
	g.invoking = true
	mu.Unlock()

	eff := g.effectiveDAG()
	eff.PrepareForEnumeration()

	out := make(chan Emission)
	done := make(chan struct{})
	var finalErr error

	go func() {
		finalErr = d.run(ctx, g, eff, out)
		close(done)
	}()

	return &Invocation{
		Results: out,
		wait: func() error {
			<-done
			return finalErr
		},
	}, nil
}

// run owns eff exclusively for the lifetime of one invocation: every
// GetNext/ReportCompletion/ReportFailure call happens on this single
// goroutine, satisfying the "conceptually single-threaded with
// respect to DAG mutation" requirement without an explicit lock on
// DAG itself. Dispatched work items run on their own goroutines and
// report back over results.
func (d *Driver) run(ctx context.Context, g *TaskGroup, eff *dag.DAG, out chan<- Emission) (retErr error) {
	defer close(out)
	defer func() {
		mu.Lock()
		g.invoking = false
		mu.Unlock()
	}()

	logger := d.logger()

	results := make(chan workerResult)
	var wg sync.WaitGroup

	var sema *semaphore.Weighted
	if d.MaxInFlight > 0 {
		sema = semaphore.NewWeighted(int64(d.MaxInFlight))
	}

	dispatch := func(entry *dag.Entry) {
		wg.Add(1)
		go func() {
			defer wg.Done()

			if sema != nil {
				if err := sema.Acquire(ctx, 1); err != nil {
					results <- workerResult{entry: entry, outcome: task.Outcome{Err: err}}
					return
				}
				defer sema.Release(1)
			}

			if err := entry.Item.Prepare(ctx); err != nil {
				results <- workerResult{entry: entry, outcome: task.Outcome{Err: err}}
				return
			}

			ch, err := entry.Item.InvokeAsync(ctx)
			if err != nil {
				results <- workerResult{entry: entry, outcome: task.Outcome{Err: err}}
				return
			}

			select {
			case o, ok := <-ch:
				if !ok {
					o = task.Outcome{Err: fmt.Errorf("taskgroup: %s closed its outcome stream without a value", entry.Key)}
				}
				results <- workerResult{entry: entry, outcome: o}
			case <-ctx.Done():
				results <- workerResult{entry: entry, outcome: task.Outcome{Err: ctx.Err()}}
			}
		}()
	}

	inFlight := 0
	faulted := false
	var collected []error

	pump := func() {
		if ctx.Err() != nil {
			return
		}
		if faulted && g.strategy == TerminateOnInProgressCompletion {
			return
		}
		for {
			entry, ok := eff.GetNext()
			if !ok {
				return
			}
			inFlight++
			dispatch(entry)
		}
	}

	pump()

	for inFlight > 0 {
		r := <-results
		inFlight--

		if ctx.Err() != nil {
			// In-progress results are discarded on cancellation to
			// preserve external side-effect atomicity; dispatch has
			// already stopped via pump's ctx.Err() guard.
			continue
		}

		if r.outcome.Err != nil {
			wrapped := &task.FailureError{Key: r.entry.Key, Cause: r.outcome.Err}
			logger.Warn("taskgroup: entry failed", zap.String("key", r.entry.Key), zap.Error(r.outcome.Err))

			_ = eff.ReportFailure(r.entry, wrapped)
			faulted = true
			collected = append(collected, wrapped)

			select {
			case out <- Emission{Key: r.entry.Key, Err: wrapped}:
			case <-ctx.Done():
			}
		} else {
			_ = eff.ReportCompletion(r.entry)

			select {
			case out <- Emission{Key: r.entry.Key, Value: r.entry.Item.Result()}:
			case <-ctx.Done():
			}
		}

		pump()
	}

	wg.Wait()

	switch {
	case ctx.Err() != nil:
		return ctx.Err()
	case len(collected) == 0:
		return nil
	case g.strategy == TerminateOnInProgressCompletion:
		return collected[0]
	default:
		return errors.Join(collected...)
	}
}

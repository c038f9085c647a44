package taskgroup

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"

	"go.lepak.sg/taskgraph/task"
)

func drainEmissions(inv *Invocation) []Emission {
	var out []Emission
	for e := range inv.Results {
		out = append(out, e)
	}
	return out
}

func TestDriver_Invoke_AllSucceed(t *testing.T) {
	defer goleak.VerifyNone(t)

	g := buildLetterGroup(t, "ABCDEF")

	inv, err := g.InvokeAsync(context.Background())
	assert.NoError(t, err)

	emissions := drainEmissions(inv)
	assert.NoError(t, inv.Wait())
	assert.Len(t, emissions, 6)

	for _, e := range emissions {
		assert.NoError(t, e.Err)
	}
}

func failingEntryGroup(t *testing.T, rootFails bool) *TaskGroup {
	t.Helper()

	keys := []string{"A", "B", "C", "D", "E", "F"}
	g := New(keys[5], failableItem(keys[5], rootFails), TerminateOnInProgressCompletion)
	for _, k := range keys[:5] {
		fails := k == "C"
		assert.NoError(t, g.AddEntry(k, failableItem(k, fails)))
	}

	assert.NoError(t, g.AddEdge(keys[1], keys[5]))
	assert.NoError(t, g.AddEdge(keys[4], keys[5]))
	assert.NoError(t, g.AddEdge(keys[2], keys[4]))
	assert.NoError(t, g.AddEdge(keys[3], keys[4]))
	assert.NoError(t, g.AddEdge(keys[0], keys[1]))
	assert.NoError(t, g.AddEdge(keys[0], keys[2]))
	assert.NoError(t, g.AddEdge(keys[0], keys[3]))

	return g
}

func failableItem(key string, fails bool) task.Item {
	return task.NewFunc(func(context.Context) (string, error) {
		if fails {
			return "", errors.New(key + " failed")
		}
		return key, nil
	})
}

// TestDriver_TerminateOnInProgressCompletion exercises the default
// termination strategy: once C faults, E and F (which depend on it,
// transitively) must never be dispatched, but the sibling branch B
// (independent of C, already ready alongside it since both depend only
// on A) is still allowed to finish, since it was in flight or ready
// concurrently with C, not newly started after the fault.
func TestDriver_TerminateOnInProgressCompletion(t *testing.T) {
	defer goleak.VerifyNone(t)

	g := failingEntryGroup(t, false)

	inv, err := g.InvokeAsync(context.Background())
	assert.NoError(t, err)

	emissions := drainEmissions(inv)
	waitErr := inv.Wait()
	assert.Error(t, waitErr)

	seen := map[string]bool{}
	var failedKeys []string
	for _, e := range emissions {
		seen[e.Key] = true
		if e.Err != nil {
			failedKeys = append(failedKeys, e.Key)
		}
	}

	assert.True(t, seen["A"])
	assert.True(t, seen["C"])
	assert.False(t, seen["E"], "E depends on the faulted C and must never be dispatched")
	assert.False(t, seen["F"], "F depends on E and must never be dispatched")
	assert.Contains(t, failedKeys, "C")
}

// TestDriver_TerminateOnHubCompletion exercises the supplemented
// alternative strategy: branches independent of the faulted entry
// keep running to completion.
func TestDriver_TerminateOnHubCompletion(t *testing.T) {
	defer goleak.VerifyNone(t)

	keys := []string{"A", "B", "C", "D", "E", "F"}
	g := New(keys[5], failableItem(keys[5], false), TerminateOnHubCompletion)
	for _, k := range keys[:5] {
		assert.NoError(t, g.AddEntry(k, failableItem(k, k == "D")))
	}
	assert.NoError(t, g.AddEdge(keys[1], keys[5]))
	assert.NoError(t, g.AddEdge(keys[4], keys[5]))
	assert.NoError(t, g.AddEdge(keys[2], keys[4]))
	assert.NoError(t, g.AddEdge(keys[3], keys[4]))
	assert.NoError(t, g.AddEdge(keys[0], keys[1]))
	assert.NoError(t, g.AddEdge(keys[0], keys[2]))
	assert.NoError(t, g.AddEdge(keys[0], keys[3]))

	inv, err := g.InvokeAsync(context.Background())
	assert.NoError(t, err)

	emissions := drainEmissions(inv)
	waitErr := inv.Wait()
	assert.Error(t, waitErr)

	seen := map[string]bool{}
	for _, e := range emissions {
		seen[e.Key] = true
	}

	assert.True(t, seen["A"])
	assert.True(t, seen["B"], "B does not depend on the faulted D and must still run")
	assert.True(t, seen["C"], "C does not depend on the faulted D and must still run")
	assert.True(t, seen["D"])
	assert.False(t, seen["E"], "E depends on the faulted D and must never be dispatched")
	assert.False(t, seen["F"], "F depends on E and must never be dispatched")
}

func TestDriver_Cancellation(t *testing.T) {
	defer goleak.VerifyNone(t)

	started := make(chan struct{})
	release := make(chan struct{})

	root := task.NewFunc(func(context.Context) (string, error) { return "root", nil })
	slow := task.NewFunc(func(ctx context.Context) (string, error) {
		close(started)
		select {
		case <-release:
			return "slow", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	})

	g := New("root", root, TerminateOnInProgressCompletion)
	assert.NoError(t, g.AddEntry("slow", slow))
	assert.NoError(t, g.AddEdge("slow", "root"))

	ctx, cancel := context.WithCancel(context.Background())

	inv, err := g.InvokeAsync(ctx)
	assert.NoError(t, err)

	<-started
	cancel()
	close(release)

	// Drain whatever trickles through; cancellation discards in-flight
	// results, so the root must never appear.
	for e := range inv.Results {
		assert.NotEqual(t, "root", e.Key)
	}

	waitErr := inv.Wait()
	assert.ErrorIs(t, waitErr, context.Canceled)
}

func TestDriver_InvokeAsync_RejectsConcurrentInvocation(t *testing.T) {
	defer goleak.VerifyNone(t)

	block := make(chan struct{})
	item := task.NewFunc(func(context.Context) (string, error) {
		<-block
		return "done", nil
	})
	g := New("root", item, TerminateOnInProgressCompletion)

	inv, err := g.InvokeAsync(context.Background())
	assert.NoError(t, err)

	_, err = g.InvokeAsync(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyStarted)

	close(block)
	drainEmissions(inv)
	assert.NoError(t, inv.Wait())
}

func TestDriver_MaxInFlight(t *testing.T) {
	defer goleak.VerifyNone(t)

	const n = 5
	var mu sync.Mutex
	var concurrent, maxConcurrent int

	bump := func(delta int) {
		mu.Lock()
		defer mu.Unlock()
		concurrent += delta
		if concurrent > maxConcurrent {
			maxConcurrent = concurrent
		}
	}

	g := New("root", task.NoOp(), TerminateOnInProgressCompletion)
	for i := 0; i < n; i++ {
		key := string(rune('a' + i))
		assert.NoError(t, g.AddEntry(key, task.NewFunc(func(context.Context) (string, error) {
			bump(1)
			defer bump(-1)
			time.Sleep(5 * time.Millisecond)
			return key, nil
		})))
		assert.NoError(t, g.AddEdge(key, "root"))
	}

	d := &Driver{MaxInFlight: 2}
	inv, err := d.Invoke(context.Background(), g)
	assert.NoError(t, err)

	drainEmissions(inv)
	assert.NoError(t, inv.Wait())

	assert.LessOrEqual(t, maxConcurrent, 2)
}

// Package taskgroup implements the composition algebra and streaming
// invocation driver that sit on top of package dag: TaskGroup (a DAG
// plus cross-group parent bookkeeping and post-run dependents),
// ProxyWrapper (the late-activated shadow structure that keeps
// ordering correct when post-run dependents are attached after
// parents already exist), and Driver (the InvocationDriver).
//
// All composition and invocation-state mutation across TaskGroups is
// serialized through the package-level mu, widened to span every
// TaskGroup instance at once — composition routinely links entries
// owned by two different TaskGroups in the same critical section, so
// a per-group lock alone cannot prevent interleaving between them.
package taskgroup

import (
	"fmt"
	"sync"

	"go.lepak.sg/taskgraph/dag"
	"go.lepak.sg/taskgraph/task"
)

var mu sync.Mutex

// TerminationStrategy governs Driver behavior when an entry faults.
type TerminationStrategy int

const (
	// TerminateOnInProgressCompletion stops dispatching new entries as
	// soon as any entry faults; entries already in flight are allowed
	// to finish, and Wait returns the first fault's error.
	TerminateOnInProgressCompletion TerminationStrategy = iota
	// TerminateOnHubCompletion keeps dispatching entries that are not
	// transitively dependent on a faulted one; Wait returns every
	// collected error joined together.
	TerminateOnHubCompletion
)

// TaskGroup is a DAG augmented with a designated root, the set of
// TaskGroups that currently depend on it, the ordered list of
// TaskGroups scheduled to run after it via the proxy protocol, and
// its (possibly absent) ProxyWrapper.
type TaskGroup struct {
	d        *dag.DAG
	rootKey  string
	strategy TerminationStrategy

	parentDAGs        []*TaskGroup
	postRunDependents []*TaskGroup
	proxy             *ProxyWrapper

	invoking bool
}

// New constructs a TaskGroup whose root entry is keyed rootKey and
// wraps rootItem.
func New(rootKey string, rootItem task.Item, strategy TerminationStrategy) *TaskGroup {
	root := dag.NewEntry(rootKey, rootItem)
	return &TaskGroup{
		d:        dag.New(root),
		rootKey:  rootKey,
		strategy: strategy,
	}
}

// RootKey returns the group's root entry's key.
func (g *TaskGroup) RootKey() string { return g.rootKey }

// Strategy returns the group's configured termination strategy.
func (g *TaskGroup) Strategy() TerminationStrategy { return g.strategy }

// DAG exposes the group's own DAG (never the proxy's, even if active)
// for direct inspection and intra-group construction.
func (g *TaskGroup) DAG() *dag.DAG { return g.d }

// AddEntry registers a new, non-root entry inside this group's own
// DAG. Use AddEdge afterward to wire it to other entries in the
// group.
func (g *TaskGroup) AddEntry(key string, item task.Item) error {
	mu.Lock()
	defer mu.Unlock()
	if g.invoking {
		return ErrInvalidState
	}
	return g.d.AddEntry(dag.NewEntry(key, item))
}

// AddEdge wires toKey to depend on fromKey, both already registered
// within this group's own DAG.
func (g *TaskGroup) AddEdge(fromKey, toKey string) error {
	mu.Lock()
	defer mu.Unlock()
	if g.invoking {
		return ErrInvalidState
	}
	return g.d.AddEdge(fromKey, toKey)
}

// attachmentRoot returns the entry external dependents and post-run
// proxies should link against: the active proxy's root if one
// exists, otherwise the group's own root. This is what lets proxy
// edges thread through already-existing proxies, never around them,
// falling out of ordinary recursive use of this accessor rather than
// needing bespoke nested-proxy handling.
func (g *TaskGroup) attachmentRoot() *dag.Entry {
	if g.proxy != nil {
		return g.proxy.group.d.Root()
	}
	return g.d.Root()
}

// effectiveDAG returns the DAG an invocation starting from g should
// enumerate: the proxy's DAG if active, otherwise g's own.
func (g *TaskGroup) effectiveDAG() *dag.DAG {
	if g.proxy != nil {
		return g.proxy.group.d
	}
	return g.d
}

// EffectiveDAG exposes effectiveDAG for callers that need to inspect
// or dry-run enumeration (e.g. a plan/dry-run command) without
// invoking any work.
func (g *TaskGroup) EffectiveDAG() *dag.DAG {
	mu.Lock()
	defer mu.Unlock()
	return g.effectiveDAG()
}

// ParentDAGs returns a snapshot of the TaskGroups whose root currently
// depends (directly) on this group's root.
func (g *TaskGroup) ParentDAGs() []*TaskGroup {
	mu.Lock()
	defer mu.Unlock()
	out := make([]*TaskGroup, len(g.parentDAGs))
	copy(out, g.parentDAGs)
	return out
}

// PostRunDependents returns a snapshot of the TaskGroups registered to
// run after this group's root via AddPostRunDependentTaskGroup.
func (g *TaskGroup) PostRunDependents() []*TaskGroup {
	mu.Lock()
	defer mu.Unlock()
	out := make([]*TaskGroup, len(g.postRunDependents))
	copy(out, g.postRunDependents)
	return out
}

// ProxyTaskGroup returns the group's proxy task group, if one has
// been activated.
func (g *TaskGroup) ProxyTaskGroup() (*TaskGroup, bool) {
	mu.Lock()
	defer mu.Unlock()
	if g.proxy == nil {
		return nil, false
	}
	return g.proxy.group, true
}

// AddDependencyTaskGroup makes g's root depend on other: other must
// complete (and, if other itself has an active proxy, everything the
// proxy shadows must complete) before g's root is dispatched. g is
// recorded as a parent of other, since g's root is the one now
// depending on it. Idempotent: calling this twice with the same other
// has the same effect as calling it once.
func (g *TaskGroup) AddDependencyTaskGroup(other *TaskGroup) error {
	mu.Lock()
	defer mu.Unlock()

	if g == other {
		return fmt.Errorf("%w: task group cannot depend on itself", dag.ErrCycleDetected)
	}
	if g.invoking || other.invoking {
		return ErrInvalidState
	}

	if err := dag.Link(other.attachmentRoot(), g.d.Root()); err != nil {
		return err
	}

	if !containsGroup(other.parentDAGs, g) {
		other.parentDAGs = append(other.parentDAGs, g)
	}

	return nil
}

// AddPostRunDependentTaskGroup declares that other must run only
// after g's root completes, and after every current parent of g's
// root has observed g's root complete — i.e. other is interposed
// ahead of g's existing parents via the proxy protocol (see proxy.go).
func (g *TaskGroup) AddPostRunDependentTaskGroup(other *TaskGroup) error {
	mu.Lock()
	defer mu.Unlock()

	if g == other {
		return fmt.Errorf("%w: task group cannot be its own post-run dependent", dag.ErrCycleDetected)
	}
	if g.invoking || other.invoking {
		return ErrInvalidState
	}

	if g.proxy == nil {
		if err := g.activateProxyLocked(); err != nil {
			return err
		}
	}
	p := g.proxy

	if err := dag.Link(other.attachmentRoot(), p.group.d.Root()); err != nil {
		return err
	}

	// other's root runs after g's root: F -> other.root.
	if err := dag.Link(g.d.Root(), other.d.Root()); err != nil {
		_ = dag.Unlink(other.attachmentRoot(), p.group.d.Root())
		return err
	}

	g.postRunDependents = append(g.postRunDependents, other)

	if !containsGroup(g.parentDAGs, other) {
		g.parentDAGs = append(g.parentDAGs, other)
	}
	if !containsGroup(other.parentDAGs, p.group) {
		other.parentDAGs = append(other.parentDAGs, p.group)
	}

	return nil
}

func containsGroup(list []*TaskGroup, g *TaskGroup) bool {
	for _, x := range list {
		if x == g {
			return true
		}
	}
	return false
}
